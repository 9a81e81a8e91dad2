package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"entrygate/internal/platform/metrics"
	"entrygate/pkg/requestcontext"
)

// idleLimiterTTL is how long an untouched per-client bucket is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onReject func(*http.Request)
	now      func() time.Time
	lastScan time.Time
}

type RateLimitOption func(*RateLimiter)

func WithRateLimitMetrics(m *metrics.Metrics) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.metrics = m
	}
}

// WithRejectHook runs fn for every rejected request, after the metric is counted.
func WithRejectHook(fn func(*http.Request)) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.onReject = fn
	}
}

func withClock(now func() time.Time) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter allows rps requests per second per client with the given burst.
// A zero rps disables limiting.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Allow reports whether the client may proceed and, if not, how long to wait.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.rps <= 0 {
		return true, 0
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.evictIdle(now)
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now

	r := cl.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	if now.Sub(rl.lastScan) < time.Minute {
		return
	}
	rl.lastScan = now
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(rl.clients, key)
		}
	}
}

// Middleware rejects over-limit clients with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		allowed, wait := rl.Allow(ip)
		if !allowed {
			rl.metrics.IncrementRateLimited()
			if rl.onReject != nil {
				rl.onReject(r)
			}
			rl.logger.WarnContext(ctx, "submission rate limited",
				"request_id", GetRequestID(ctx),
				"retry_after_s", wait.Seconds(),
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
