package middleware

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimit = 100
	DefaultBurstSize = 10

	// idle limiters are evicted after limiterTTL, checked every sweepInterval
	sweepInterval = 5 * time.Minute
	limiterTTL    = 10 * time.Minute
)

// RateLimiter keeps one token bucket per authenticated user
type RateLimiter struct {
	perMinute int
	perSecond float64
	burst     int

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Decision is the outcome of one rate-limit check
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithConfig(DefaultRateLimit, DefaultBurstSize)
}

// NewRateLimiterWithConfig starts a limiter allowing requestsPerMinute with
// bursts of burstSize. Call Stop to end its eviction loop.
func NewRateLimiterWithConfig(requestsPerMinute, burstSize int) *RateLimiter {
	rl := &RateLimiter{
		perMinute: requestsPerMinute,
		perSecond: float64(requestsPerMinute) / 60.0,
		burst:     burstSize,
		buckets:   make(map[string]*bucket),
		stopCh:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Check consumes one token for key and reports the resulting state
func (r *RateLimiter) Check(key string) Decision {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(r.perSecond), r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	d := Decision{
		Allowed:   allowed,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		Reset:     now.Add(r.refillTime(float64(r.burst) - tokens)),
	}
	if !allowed {
		d.RetryAfter = r.refillTime(1 - tokens)
	}
	return d
}

// Allow reports whether one more request from key is permitted
func (r *RateLimiter) Allow(key string) bool {
	return r.Check(key).Allowed
}

func (r *RateLimiter) refillTime(tokens float64) time.Duration {
	if tokens <= 0 || r.perSecond <= 0 {
		return 0
	}
	return time.Duration(tokens / r.perSecond * float64(time.Second))
}

func (r *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			r.evictIdle(now)
		case <-r.stopCh:
			return
		}
	}
}

func (r *RateLimiter) evictIdle(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) > limiterTTL {
			delete(r.buckets, key)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Int("active", len(r.buckets)).Msg("Evicted idle rate limiters")
	}
	return evicted
}

// Stop ends the eviction loop; safe to call more than once
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// RateLimitMiddleware limits authenticated requests per user and sets the
// X-RateLimit-* headers. It must run after Authenticate.
func RateLimitMiddleware(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := GetUserID(c)
			if userID == "" {
				return next(c)
			}

			d := rl.Check(userID)

			header := c.Response().Header()
			header.Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))
			header.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			header.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

			if d.Allowed {
				return next(c)
			}

			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			header.Set("Retry-After", strconv.Itoa(retryAfter))

			log.Warn().
				Str("user_id", userID).
				Int("retry_after", retryAfter).
				Msg("Rate limit exceeded")

			return rateLimitError(c, fmt.Sprintf("Too many requests. Please retry after %d seconds.", retryAfter))
		}
	}
}
