package handler

import (
	"net/http"

	"github.com/solweekly/weekly-roundup/internal/market"
)

// MarketHandler serves the read-only market-data proxies.
type MarketHandler struct {
	svc *market.Service
}

func NewMarketHandler(svc *market.Service) *MarketHandler {
	return &MarketHandler{svc: svc}
}

// Price handles GET /api/price
//
// @Summary  Current SOL price from CoinGecko
// @Tags     market
// @Produce  json
// @Success  200  {object}  market.PriceResponse
// @Failure  500  {object}  map[string]string
// @Router   /api/price [get]
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Price(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch price")
		return
	}
	w.Header().Set("Cache-Control", market.CacheControl(market.PriceTTL))
	respondJSON(w, http.StatusOK, p)
}

// Sentiment handles GET /api/sentiment
//
// @Summary  SOL perpetual futures sentiment
// @Tags     market
// @Produce  json
// @Success  200  {object}  market.Sentiment
// @Router   /api/sentiment [get]
func (h *MarketHandler) Sentiment(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", market.CacheControl(market.SentimentTTL))
	respondJSON(w, http.StatusOK, h.svc.Sentiment(r.Context()))
}

// News handles GET /api/news
//
// @Summary  Latest Solana headlines
// @Tags     market
// @Produce  json
// @Success  200  {array}  market.NewsItem
// @Router   /api/news [get]
func (h *MarketHandler) News(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", market.CacheControl(market.NewsTTL))
	respondJSON(w, http.StatusOK, h.svc.News(r.Context()))
}

// Stats handles GET /api/solana-stats
//
// @Summary  Network overview
// @Tags     market
// @Produce  json
// @Success  200  {object}  market.Stats
// @Failure  500  {object}  map[string]string
// @Router   /api/solana-stats [get]
func (h *MarketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch Solana stats")
		return
	}
	w.Header().Set("Cache-Control", market.CacheControl(market.StatsTTL))
	respondJSON(w, http.StatusOK, st)
}
