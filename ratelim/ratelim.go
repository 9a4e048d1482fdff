package ratelim

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"foodcart/utils"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

// idleTTL is how long a visitor's limiter is kept after its last request.
const idleTTL = 10 * time.Minute

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Get or create a rate limiter for an IP
func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = time.Now()
	return v.limiter
}

// Cleanup forgets visitors idle for longer than idleTTL, once a minute,
// until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			rl.prune(now.Add(-idleTTL))
		}
	}
}

func (rl *RateLimiter) prune(before time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.seen.Before(before) {
			delete(rl.visitors, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Limit is middleware that answers 429 once a client exceeds its budget.
func (rl *RateLimiter) Limit(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !rl.getLimiter(clientIP(r)).Allow() {
			utils.RespondWithError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r, ps)
	}
}
