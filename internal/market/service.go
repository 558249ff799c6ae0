package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Endpoint names, also used as metric labels.
const (
	EndpointPrice     = "price"
	EndpointSentiment = "sentiment"
	EndpointNews      = "news"
	EndpointStats     = "solana-stats"
)

// Freshness windows per endpoint. Stale values are kept for twice as long.
const (
	PriceTTL     = 30 * time.Second
	SentimentTTL = 60 * time.Second
	NewsTTL      = 300 * time.Second
	StatsTTL     = 30 * time.Second
)

const (
	binanceSymbol = "SOLUSDT"
	newsPageSize  = 10
	userAgent     = "Solana Weekly Roundup"

	defaultTimeout = 10 * time.Second

	// Figures with no free upstream; reported as fixed values.
	openInterestChange = 3.7
	takerFlow          = 1.16
	activeWallets      = 2_100_000
	volume24h          = 45_000_000_000
	networkTPS         = 3500
)

var errNoData = errors.New("upstream returned no data")

// CacheControl formats the response header for an endpoint's freshness window.
func CacheControl(ttl time.Duration) string {
	s := int(ttl.Seconds())
	return fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", s, 2*s)
}

type Price struct {
	USD       float64 `json:"usd"`
	MarketCap float64 `json:"usd_market_cap"`
	Change24h float64 `json:"usd_24h_change"`
}

type PriceResponse struct {
	Solana Price `json:"solana"`
}

type Sentiment struct {
	FundingRate        float64 `json:"fundingRate"`
	OpenInterest       float64 `json:"openInterest"`
	OpenInterestChange float64 `json:"openInterestChange"`
	LongShortRatio     float64 `json:"longShortRatio"`
	TakerFlow          float64 `json:"takerFlow"`
}

type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

type Stats struct {
	Price          float64 `json:"price"`
	PriceChange24h float64 `json:"priceChange24h"`
	MarketCap      float64 `json:"marketCap"`
	TVL            float64 `json:"tvl"`
	ActiveWallets  int64   `json:"activeWallets"`
	Volume24h      float64 `json:"volume24h"`
	TPS            int     `json:"tps"`
}

// FallbackSentiment is served when Binance cannot be reached.
var FallbackSentiment = Sentiment{
	FundingRate:        0.01,
	OpenInterest:       1_380_000_000,
	OpenInterestChange: openInterestChange,
	LongShortRatio:     2.55,
	TakerFlow:          takerFlow,
}

// FallbackNews is served when no news upstream returns anything usable.
var FallbackNews = []NewsItem{
	{Title: "Morgan Stanley files ETF applications for bitcoin and solana", Source: "Yahoo Finance", URL: "https://finance.yahoo.com"},
	{Title: "US spot Solana ETFs record $10.43M net inflow in single day", Source: "AMBCrypto", URL: "https://ambcrypto.com"},
	{Title: "Solana RWA ecosystem hits record $873M in January 2026, up 325% in one year", Source: "Cryptonews", URL: "https://cryptonews.com"},
	{Title: "Alpenglow upgrade to reduce finality from 12.8s to 100-150ms launching early-mid 2026", Source: "Allinvest", URL: "https://allinvest.com"},
	{Title: "Short liquidation imbalance soars 19,138% as SOL rebounds to $126.57 daily high", Source: "TradingView", URL: "https://tradingview.com"},
	{Title: "Jupiter launches new perpetuals trading platform with zero slippage", Source: "The Block", URL: "https://theblock.co"},
	{Title: "Solana network processes record 65M transactions in single day", Source: "CoinDesk", URL: "https://coindesk.com"},
	{Title: "New DeFi protocols launch on Solana with $50M+ TVL", Source: "DeFi Pulse", URL: "https://defipulse.com"},
}

// Options configures the upstream base URLs, filled from config.
type Options struct {
	CoinGeckoURL     string
	LlamaURL         string
	BinanceURL       string
	NewsAPIURL       string
	CryptoCompareURL string
	NewsAPIKey       string
	Timeout          time.Duration
	HTTPClient       *http.Client
	// OnSource is called once per request with the endpoint and the source
	// that answered it.
	OnSource func(endpoint, source string)
}

// Service proxies the public market-data APIs behind per-endpoint caches.
type Service struct {
	opts   Options
	client *http.Client
	logger *zap.Logger

	price     *Cache
	sentiment *Cache
	news      *Cache
	stats     *Cache
}

func NewService(opts Options, logger *zap.Logger) *Service {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	// News may try two upstreams in turn and stats waits on price.
	return &Service{
		opts:      opts,
		client:    client,
		logger:    logger,
		price:     NewCache(PriceTTL, 2*PriceTTL, timeout),
		sentiment: NewCache(SentimentTTL, 2*SentimentTTL, timeout),
		news:      NewCache(NewsTTL, 2*NewsTTL, 2*timeout),
		stats:     NewCache(StatsTTL, 2*StatsTTL, 2*timeout),
	}
}

// Price returns the current SOL price. It fails only when CoinGecko is
// unreachable and no recent value is cached.
func (s *Service) Price(ctx context.Context) (*PriceResponse, error) {
	p, source, err := s.cachedPrice(ctx)
	s.record(EndpointPrice, source)
	if err != nil {
		s.logger.Warn("price upstream failed", zap.Error(err))
		return nil, err
	}
	return &PriceResponse{Solana: p}, nil
}

func (s *Service) cachedPrice(ctx context.Context) (Price, string, error) {
	v, source, err := s.price.Get(ctx, EndpointPrice, func(ctx context.Context) (any, error) {
		return s.fetchPrice(ctx)
	})
	if err != nil {
		return Price{}, source, err
	}
	return v.(Price), source, nil
}

// Sentiment never fails: any upstream problem yields FallbackSentiment.
func (s *Service) Sentiment(ctx context.Context) Sentiment {
	v, source, err := s.sentiment.Get(ctx, EndpointSentiment, func(ctx context.Context) (any, error) {
		return s.fetchSentiment(ctx)
	})
	if err != nil {
		s.logger.Warn("sentiment upstream failed, serving fallback", zap.Error(err))
		s.record(EndpointSentiment, SourceFallback)
		return FallbackSentiment
	}
	s.record(EndpointSentiment, source)
	return v.(Sentiment)
}

// News tries NewsAPI (when a key is configured), then CryptoCompare, then
// the static list. It never fails.
func (s *Service) News(ctx context.Context) []NewsItem {
	v, source, err := s.news.Get(ctx, EndpointNews, s.fetchNews)
	if err != nil {
		s.logger.Warn("news upstreams failed, serving fallback", zap.Error(err))
		s.record(EndpointNews, SourceFallback)
		return FallbackNews
	}
	s.record(EndpointNews, source)
	return v.([]NewsItem)
}

// Stats combines price, DeFiLlama TVL and fixed network figures. A TVL
// failure reports zero; a price failure fails the whole call.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	v, source, err := s.stats.Get(ctx, EndpointStats, func(ctx context.Context) (any, error) {
		var (
			p   Price
			tvl float64
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			p, _, err = s.cachedPrice(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			tvl, err = s.fetchTVL(gctx)
			if err != nil {
				s.logger.Warn("tvl upstream failed", zap.Error(err))
				tvl = 0
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return Stats{
			Price:          p.USD,
			PriceChange24h: p.Change24h,
			MarketCap:      p.MarketCap,
			TVL:            tvl,
			ActiveWallets:  activeWallets,
			Volume24h:      volume24h,
			TPS:            networkTPS,
		}, nil
	})
	s.record(EndpointStats, source)
	if err != nil {
		s.logger.Warn("solana stats failed", zap.Error(err))
		return nil, err
	}
	st := v.(Stats)
	return &st, nil
}

func (s *Service) fetchPrice(ctx context.Context) (any, error) {
	q := url.Values{
		"ids":                 {"solana"},
		"vs_currencies":       {"usd"},
		"include_market_cap":  {"true"},
		"include_24hr_change": {"true"},
	}
	var body struct {
		Solana *Price `json:"solana"`
	}
	if err := s.getJSON(ctx, s.opts.CoinGeckoURL+"/simple/price?"+q.Encode(), nil, &body); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	if body.Solana == nil {
		return nil, fmt.Errorf("coingecko: %w", errNoData)
	}
	return *body.Solana, nil
}

func (s *Service) fetchSentiment(ctx context.Context) (any, error) {
	var (
		funding struct {
			LastFundingRate string `json:"lastFundingRate"`
		}
		oi struct {
			OpenInterest string `json:"openInterest"`
		}
		ratios []struct {
			LongShortRatio string `json:"longShortRatio"`
		}
	)

	base := s.opts.BinanceURL
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.getJSON(gctx, base+"/fapi/v1/premiumIndex?symbol="+binanceSymbol, nil, &funding)
	})
	g.Go(func() error {
		return s.getJSON(gctx, base+"/fapi/v1/openInterest?symbol="+binanceSymbol, nil, &oi)
	})
	g.Go(func() error {
		return s.getJSON(gctx, base+"/futures/data/topLongShortAccountRatio?symbol="+binanceSymbol+"&period=5m&limit=1", nil, &ratios)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("binance: %w", err)
	}

	ratio := 1.0
	if len(ratios) > 0 {
		ratio = parseFloat(ratios[0].LongShortRatio, 1)
	}
	return Sentiment{
		FundingRate:        parseFloat(funding.LastFundingRate, 0) * 100,
		OpenInterest:       parseFloat(oi.OpenInterest, 0),
		OpenInterestChange: openInterestChange,
		LongShortRatio:     ratio,
		TakerFlow:          takerFlow,
	}, nil
}

func (s *Service) fetchNews(ctx context.Context) (any, error) {
	var errs []error
	if s.opts.NewsAPIKey != "" {
		items, err := s.fetchNewsAPI(ctx)
		if err == nil {
			return items, nil
		}
		s.logger.Warn("newsapi failed, trying cryptocompare", zap.Error(err))
		errs = append(errs, err)
	}
	items, err := s.fetchCryptoCompare(ctx)
	if err == nil {
		return items, nil
	}
	errs = append(errs, err)
	return nil, errors.Join(errs...)
}

func (s *Service) fetchNewsAPI(ctx context.Context) ([]NewsItem, error) {
	q := url.Values{
		"q":        {"solana crypto"},
		"apiKey":   {s.opts.NewsAPIKey},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(newsPageSize)},
		"language": {"en"},
	}
	var body struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	headers := http.Header{"User-Agent": {userAgent}}
	if err := s.getJSON(ctx, s.opts.NewsAPIURL+"/everything?"+q.Encode(), headers, &body); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if body.Status == "error" {
		return nil, fmt.Errorf("newsapi: %s", body.Message)
	}

	items := make([]NewsItem, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.Title == "" || a.URL == "" {
			continue
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		items = append(items, NewsItem{Title: a.Title, Source: source, URL: a.URL, PublishedAt: a.PublishedAt})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("newsapi: %w", errNoData)
	}
	return items, nil
}

func (s *Service) fetchCryptoCompare(ctx context.Context) ([]NewsItem, error) {
	var body struct {
		Data []struct {
			Title       string `json:"title"`
			Source      string `json:"source"`
			URL         string `json:"url"`
			PublishedOn int64  `json:"published_on"`
		} `json:"Data"`
	}
	if err := s.getJSON(ctx, s.opts.CryptoCompareURL+"/data/v2/news/?categories=SOL&lang=EN", nil, &body); err != nil {
		return nil, fmt.Errorf("cryptocompare: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("cryptocompare: %w", errNoData)
	}

	data := body.Data
	if len(data) > newsPageSize {
		data = data[:newsPageSize]
	}
	items := make([]NewsItem, 0, len(data))
	for _, a := range data {
		item := NewsItem{Title: a.Title, Source: a.Source, URL: a.URL}
		if item.Source == "" {
			item.Source = "CryptoCompare"
		}
		if a.PublishedOn > 0 {
			item.PublishedAt = time.Unix(a.PublishedOn, 0).UTC().Format("2006-01-02T15:04:05.000Z")
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) fetchTVL(ctx context.Context) (float64, error) {
	var chains []struct {
		Name string  `json:"name"`
		TVL  float64 `json:"tvl"`
	}
	if err := s.getJSON(ctx, s.opts.LlamaURL+"/chains", nil, &chains); err != nil {
		return 0, fmt.Errorf("defillama: %w", err)
	}
	for _, c := range chains {
		if c.Name == "Solana" {
			return c.TVL, nil
		}
	}
	return 0, nil
}

func (s *Service) getJSON(ctx context.Context, rawURL string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *Service) record(endpoint, source string) {
	if s.opts.OnSource != nil {
		s.opts.OnSource(endpoint, source)
	}
}

func parseFloat(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}
