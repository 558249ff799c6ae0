package ratelimiter

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

// Middleware rejects requests from clients over their budget with 429.
// It keys on the host part of r.RemoteAddr; chi's RealIP rewrites that
// when the router trusts a proxy. onReject may be nil.
func (cl *ClientLimiters) Middleware(onReject func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cl.Allow(clientKey(r)) {
				if onReject != nil {
					onReject()
				}
				retry := 1
				if cl.limit > 0 {
					retry = max(1, int(1/float64(cl.limit)))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": domain.ErrRateLimited.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
