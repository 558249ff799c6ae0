package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solweekly/weekly-roundup/internal/api/handler"
	apimw "github.com/solweekly/weekly-roundup/internal/api/middleware"
	"github.com/solweekly/weekly-roundup/internal/market"
	"github.com/solweekly/weekly-roundup/internal/ratelimiter"
	"github.com/solweekly/weekly-roundup/internal/service"
)

// Deps groups everything the HTTP layer needs. Limiter, Market and Gatherer
// may be nil; the routes they back are then not registered.
type Deps struct {
	Registry      *service.Registry
	Auth          *service.AdminAuth
	Dispatcher    *service.Dispatcher
	Market        *market.Service
	Limiter       *ratelimiter.ClientLimiters
	Gatherer      prometheus.Gatherer
	EmailProvider string
	SenderReady   bool
	// TrustProxy enables chi's RealIP. Without it the client address is
	// the socket peer and forwarding headers are ignored.
	TrustProxy bool

	// Optional metric callbacks.
	OnSubscribe   func(result string)
	OnRateLimited func()
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer) // recover panics, return 500
	if d.TrustProxy {
		r.Use(chimw.RealIP) // trust X-Forwarded-For / X-Real-IP
	}
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.RequestID)          // X-Request-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	sh := handler.NewSubscribeHandler(d.Registry, d.Auth, d.OnSubscribe, logger)
	nh := handler.NewNewsletterHandler(d.Dispatcher, logger)
	st := handler.NewStatusHandler(d.Registry, d.Auth, d.EmailProvider, d.SenderReady)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// Public signup is throttled per client; the admin methods on the
		// same path are not.
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware(d.OnRateLimited))
			}
			r.Post("/subscribe", sh.Subscribe)
		})
		r.Get("/subscribe", sh.List)
		r.Delete("/subscribe", sh.Remove)

		r.Post("/newsletter/send", nh.Send)
		r.Post("/newsletter/test", nh.SendTest)

		if d.Market != nil {
			mh := handler.NewMarketHandler(d.Market)
			r.Get("/price", mh.Price)
			r.Get("/sentiment", mh.Sentiment)
			r.Get("/news", mh.News)
			r.Get("/solana-stats", mh.Stats)
		}

		r.Get("/status", st.GetStatus)
	})

	return r
}
