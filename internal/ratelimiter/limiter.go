package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleTTL      = 10 * time.Minute
	sweepEvery   = time.Minute
	defaultBurst = 1
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiters holds one token bucket per client key (usually the client
// IP). Buckets idle for longer than idleTTL are dropped lazily.
type ClientLimiters struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// New creates a ClientLimiters granting ratePerSec tokens per second with
// the given burst to every client.
func New(ratePerSec float64, burst int) *ClientLimiters {
	if burst < 1 {
		burst = defaultBurst
	}
	return &ClientLimiters{
		clients: make(map[string]*client),
		limit:   rate.Limit(ratePerSec),
		burst:   burst,
		now:     time.Now,
	}
}

// Allow reports whether the client identified by key may proceed now.
// It never blocks.
func (cl *ClientLimiters) Allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := cl.now()
	cl.sweep(now)

	c, ok := cl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (cl *ClientLimiters) Len() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.clients)
}

func (cl *ClientLimiters) sweep(now time.Time) {
	if now.Sub(cl.lastSweep) < sweepEvery {
		return
	}
	cl.lastSweep = now
	for k, c := range cl.clients {
		if now.Sub(c.lastSeen) > idleTTL {
			delete(cl.clients, k)
		}
	}
}
