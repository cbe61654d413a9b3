package queryapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Per-(IP, route class) token bucket rate limiter, stdlib only. Unlike a
// single shared bucket per IP, each route class gets its own limiter
// instance with its own IP-keyed buckets: a monitoring dashboard hammering the public read surface from one IP
// does not eat into the budget that same IP gets on the admin surface,
// and vice versa. An exhausted bucket gets HTTP 429 with a Retry-After
// header. A background goroutine evicts buckets idle for more than
// cleanupIdleDuration.
//
// This API serves a handful of known federation dashboards and relay
// watchers rather than general public web traffic, so idle buckets are
// swept more aggressively than the teacher's public-facing limiter.
const cleanupIdleDuration = 5 * time.Minute

type bucket struct {
	tokens   float64
	lastSeen time.Time
	mu       sync.Mutex
}

// RateLimiter enforces one rate/burst budget per (class, IP) pair,
// where class identifies a route group (e.g. "public", "admin") sharing
// this limiter's configuration.
type RateLimiter struct {
	name    string // route class this limiter guards, used in the 429 body
	rate    float64 // tokens added per second
	burst   float64 // max bucket capacity
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a rate limiter named for the route class it
// guards (reported back to callers on a 429), allowing ratePerMin
// requests per minute per IP within that class, with a burst capacity
// of burst requests.
func NewRateLimiter(name string, ratePerMin, burst int) *RateLimiter {
	rl := &RateLimiter{
		name:    name,
		rate:    float64(ratePerMin) / 60.0,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{tokens: rl.burst}
		rl.buckets[ip] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastSeen).Seconds()
	b.tokens += elapsed * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastSeen = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}

	retryAfter := time.Duration((1.0-b.tokens)/rl.rate*1000) * time.Millisecond
	return false, retryAfter
}

// Middleware returns a Gin handler that enforces the rate limit for
// whichever route group installed this limiter.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, retryAfter := rl.allow(ip)
		if !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      fmt.Sprintf("rate limit exceeded for the %s API", rl.name),
				"class":      rl.name,
				"retryAfter": retryAfter.String(),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-cleanupIdleDuration)
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			b.mu.Lock()
			idle := b.lastSeen.Before(cutoff)
			b.mu.Unlock()
			if idle {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
