package market_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solweekly/weekly-roundup/internal/market"
)

type sourceLog struct {
	mu   sync.Mutex
	seen []string
}

func (l *sourceLog) record(endpoint, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, endpoint+":"+source)
}

func newService(t *testing.T, h http.Handler, newsKey string) (*market.Service, *sourceLog) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	log := &sourceLog{}
	svc := market.NewService(market.Options{
		CoinGeckoURL:     srv.URL + "/coingecko",
		LlamaURL:         srv.URL + "/llama",
		BinanceURL:       srv.URL + "/binance",
		NewsAPIURL:       srv.URL + "/newsapi",
		CryptoCompareURL: srv.URL + "/cryptocompare",
		NewsAPIKey:       newsKey,
		Timeout:          2 * time.Second,
		OnSource:         log.record,
	}, zap.NewNop())
	return svc, log
}

func TestService_PriceCachesUpstream(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/coingecko/simple/price", func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"solana":{"usd":142.5,"usd_market_cap":68000000000,"usd_24h_change":-2.1}}`))
	})
	svc, log := newService(t, mux, "")

	p, err := svc.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 142.5, p.Solana.USD)
	assert.Equal(t, -2.1, p.Solana.Change24h)

	_, err = svc.Price(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, []string{"price:upstream", "price:cache"}, log.seen)
}

func TestService_PriceFailsWithoutCachedValue(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/coingecko/simple/price", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	svc, _ := newService(t, mux, "")

	_, err := svc.Price(context.Background())
	assert.Error(t, err)
}

func TestService_SentimentFromBinance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/binance/fapi/v1/premiumIndex", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"lastFundingRate":"0.00025"}`))
	})
	mux.HandleFunc("/binance/fapi/v1/openInterest", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"openInterest":"9876543.2"}`))
	})
	mux.HandleFunc("/binance/futures/data/topLongShortAccountRatio", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5m", r.URL.Query().Get("period"))
		_, _ = w.Write([]byte(`[{"longShortRatio":"1.87"}]`))
	})
	svc, _ := newService(t, mux, "")

	s := svc.Sentiment(context.Background())
	assert.InDelta(t, 0.025, s.FundingRate, 1e-9)
	assert.Equal(t, 9876543.2, s.OpenInterest)
	assert.Equal(t, 1.87, s.LongShortRatio)
	assert.Equal(t, 3.7, s.OpenInterestChange)
	assert.Equal(t, 1.16, s.TakerFlow)
}

func TestService_SentimentFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/binance/fapi/v1/premiumIndex", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"lastFundingRate":"0.0001"}`))
	})
	// openInterest and ratio routes are missing and answer 404.
	svc, log := newService(t, mux, "")

	assert.Equal(t, market.FallbackSentiment, svc.Sentiment(context.Background()))
	assert.Equal(t, []string{"sentiment:fallback"}, log.seen)
}

func TestService_NewsPrefersNewsAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/newsapi/everything", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "Solana Weekly Roundup", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"status":"ok","articles":[
			{"title":"Firedancer ships","url":"https://example.com/a","publishedAt":"2026-10-01T10:00:00Z","source":{"name":"The Block"}},
			{"title":"","url":"https://example.com/b"},
			{"title":"No source","url":"https://example.com/c"}
		]}`))
	})
	mux.HandleFunc("/cryptocompare/data/v2/news/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("cryptocompare should not be called")
	})
	svc, _ := newService(t, mux, "key-1")

	news := svc.News(context.Background())
	require.Len(t, news, 2)
	assert.Equal(t, market.NewsItem{Title: "Firedancer ships", Source: "The Block", URL: "https://example.com/a", PublishedAt: "2026-10-01T10:00:00Z"}, news[0])
	assert.Equal(t, "Unknown", news[1].Source)
}

func TestService_NewsFallsBackToCryptoCompare(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/newsapi/everything", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"apiKeyInvalid"}`))
	})
	mux.HandleFunc("/cryptocompare/data/v2/news/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL", r.URL.Query().Get("categories"))
		_, _ = w.Write([]byte(`{"Data":[{"title":"SOL ETF inflows","url":"https://example.com/x","source":"","published_on":1760000000}]}`))
	})
	svc, _ := newService(t, mux, "bad-key")

	news := svc.News(context.Background())
	require.Len(t, news, 1)
	assert.Equal(t, "CryptoCompare", news[0].Source)
	assert.Equal(t, "2025-10-09T08:53:20.000Z", news[0].PublishedAt)
}

func TestService_NewsStaticFallback(t *testing.T) {
	svc, log := newService(t, http.NotFoundHandler(), "")

	assert.Equal(t, market.FallbackNews, svc.News(context.Background()))
	assert.Len(t, market.FallbackNews, 8)
	assert.Equal(t, []string{"news:fallback"}, log.seen)
}

func TestService_Stats(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/coingecko/simple/price", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"solana":{"usd":150,"usd_market_cap":70000000000,"usd_24h_change":1.5}}`))
	})
	mux.HandleFunc("/llama/chains", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"Ethereum","tvl":60000000000},{"name":"Solana","tvl":9100000000}]`))
	})
	svc, _ := newService(t, mux, "")

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150.0, st.Price)
	assert.Equal(t, 9100000000.0, st.TVL)
	assert.Equal(t, int64(2100000), st.ActiveWallets)
	assert.Equal(t, 3500, st.TPS)
}

func TestService_StatsTVLFailureReportsZero(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/coingecko/simple/price", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"solana":{"usd":150,"usd_market_cap":1,"usd_24h_change":0}}`))
	})
	svc, _ := newService(t, mux, "")

	st, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TVL)
}

func TestService_StatsFailsWithoutPrice(t *testing.T) {
	svc, _ := newService(t, http.NotFoundHandler(), "")

	_, err := svc.Stats(context.Background())
	assert.Error(t, err)
}

func TestCacheControl(t *testing.T) {
	assert.Equal(t, "public, s-maxage=30, stale-while-revalidate=60", market.CacheControl(market.PriceTTL))
	assert.Equal(t, "public, s-maxage=300, stale-while-revalidate=600", market.CacheControl(market.NewsTTL))
}
