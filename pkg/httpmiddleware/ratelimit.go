package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero disables the
	// limiter.
	Max    int
	Window time.Duration
	// TrustForwarded keys clients by X-Forwarded-For / X-Real-IP. Enable it
	// only behind a proxy that sets those headers.
	TrustForwarded bool
	// KeyFunc overrides client identification.
	KeyFunc func(*http.Request) string
}

// Validate reports a window that cannot be used with a positive Max.
func (c RateLimitConfig) Validate() error {
	if c.Max < 0 {
		return errors.Errorf("rate limit max %d is negative", c.Max)
	}
	if c.Max > 0 && c.Window <= 0 {
		return errors.Errorf("rate limit window %s must be positive", c.Window)
	}
	return nil
}

// window holds counts for the current and the previous fixed window of one
// client. The sliding count weights the previous window by its overlap.
type window struct {
	prevCount float64
	currCount float64
	currStart time.Time
}

type rateLimiter struct {
	max    int
	period time.Duration
	key    func(*http.Request) string

	mu      sync.Mutex
	clients map[string]*window
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	key := cfg.KeyFunc
	if key == nil {
		key = func(r *http.Request) string { return clientIP(r, cfg.TrustForwarded) }
	}
	return &rateLimiter{
		max:     cfg.Max,
		period:  cfg.Window,
		key:     key,
		clients: make(map[string]*window),
	}
}

// allow records a request of key at now. It returns the requests left in the
// window, when the current window ends and whether the request may proceed.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, found := rl.clients[key]
	if !found {
		w = &window{currStart: now.Truncate(rl.period)}
		rl.clients[key] = w
	}

	if elapsed := now.Sub(w.currStart); elapsed >= rl.period {
		// A gap of two or more windows leaves nothing to carry over.
		if elapsed >= 2*rl.period {
			w.prevCount = 0
		} else {
			w.prevCount = w.currCount
		}
		w.currCount = 0
		w.currStart = now.Truncate(rl.period)
	}

	overlap := 1 - now.Sub(w.currStart).Seconds()/rl.period.Seconds()
	count := w.prevCount*max(overlap, 0) + w.currCount
	resetAt = w.currStart.Add(rl.period)
	if count >= float64(rl.max) {
		return 0, resetAt, false
	}

	w.currCount++
	return max(int(float64(rl.max)-count-1), 0), resetAt, true
}

// evict drops clients idle for two full windows.
func (rl *rateLimiter) evict(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var n int
	for key, w := range rl.clients {
		if now.Sub(w.currStart) >= 2*rl.period {
			delete(rl.clients, key)
			n++
		}
	}
	return n
}

func (rl *rateLimiter) runEviction(ctx context.Context) {
	ticker := time.NewTicker(2 * rl.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := rl.evict(now); n > 0 {
				zctx.From(ctx).Debug("Rate limiter evicted idle clients", zap.Int("count", n))
			}
		}
	}
}

// RateLimit enforces a per-client sliding window limit. Rejected requests get
// 429 with Retry-After. Every limited response carries the X-RateLimit-*
// headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 {
		return passthrough
	}
	return newRateLimiter(cfg).middleware
}

// RateLimitWithCleanup is RateLimit with a background goroutine that evicts
// idle clients until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 {
		return passthrough
	}
	rl := newRateLimiter(cfg)
	go rl.runEviction(ctx)
	return rl.middleware
}

func passthrough(next http.Handler) http.Handler { return next }

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		remaining, resetAt, ok := rl.allow(key, time.Now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if !ok {
			wait := max(time.Until(resetAt), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			zctx.From(r.Context()).Warn("Rate limit exceeded",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
			)
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
