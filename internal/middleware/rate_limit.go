package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront_back_end/internal/cache"
)

type Limit struct {
	Max    int64
	Window time.Duration
}

var (
	LoginLimit    = Limit{Max: 5, Window: 15 * time.Minute}
	RegisterLimit = Limit{Max: 3, Window: 30 * time.Minute}
	CartLimit     = Limit{Max: 20, Window: time.Minute}
	SearchLimit   = Limit{Max: 30, Window: time.Minute}
)

// RateLimiter keeps its counters in Redis. With caching disabled every
// request is allowed.
type RateLimiter struct {
	cache *cache.Cache
}

func NewRateLimiter(c *cache.Cache) *RateLimiter {
	return &RateLimiter{cache: c}
}

func tooMany(c *gin.Context, msg string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	secs := int(retryAfter.Seconds())
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg, "retry_after": secs})
}

// remaining returns how many attempts key has left in the current window.
func (r *RateLimiter) remaining(c *gin.Context, key string, limit Limit) (int64, time.Duration) {
	n, ttl, err := r.cache.Count(c.Request.Context(), key)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ rate limit counter unavailable")
		return limit.Max, 0
	}
	return limit.Max - n, ttl
}

func (r *RateLimiter) hit(c *gin.Context, key string, limit Limit) int64 {
	n, err := r.cache.Hit(c.Request.Context(), key, limit.Window)
	if err != nil {
		logrus.WithError(err).Warn("⚠️ rate limit counter unavailable")
	}
	return n
}

// Login counts failed logins per email. A success clears the counter.
func (r *RateLimiter) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.cache.Enabled() {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		var input struct {
			Email string `json:"email"`
		}
		if json.Unmarshal(body, &input) != nil || input.Email == "" {
			c.Next()
			return
		}

		key := "ratelimit:login:" + strings.ToLower(strings.TrimSpace(input.Email))
		left, ttl := r.remaining(c, key, LoginLimit)
		if left <= 0 {
			tooMany(c, fmt.Sprintf("too many failed logins, retry in %d minutes", int(ttl.Minutes())+1), ttl)
			return
		}
		// Headers must be written before the handler sends the body.
		c.Header("X-RateLimit-Limit", strconv.FormatInt(LoginLimit.Max, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(left, 10))

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			r.hit(c, key, LoginLimit)
		case http.StatusOK:
			if err := r.cache.Reset(c.Request.Context(), key); err != nil {
				logrus.WithError(err).Warn("⚠️ login counter not reset")
			}
		}
	}
}

// Register counts successful registrations per client IP.
func (r *RateLimiter) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:register:" + c.ClientIP()
		if left, ttl := r.remaining(c, key, RegisterLimit); left <= 0 {
			tooMany(c, "too many registrations from this address", ttl)
			return
		}
		c.Next()
		if c.Writer.Status() == http.StatusCreated {
			r.hit(c, key, RegisterLimit)
		}
	}
}

// CartWrites limits cart and wishlist mutations per owner.
func (r *RateLimiter) CartWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:cart:" + Owner(c).Key()
		if n := r.hit(c, key, CartLimit); n > CartLimit.Max {
			tooMany(c, "too many cart updates, slow down", CartLimit.Window)
			return
		}
		c.Next()
	}
}

// Search limits free text product queries per client IP.
func (r *RateLimiter) Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.Query("q")) == "" {
			c.Next()
			return
		}
		key := "ratelimit:search:" + c.ClientIP()
		n := r.hit(c, key, SearchLimit)
		if n > SearchLimit.Max {
			tooMany(c, "too many searches, retry in a minute", SearchLimit.Window)
			return
		}
		if r.cache.Enabled() {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(SearchLimit.Max, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(SearchLimit.Max-n, 10))
		}
		c.Next()
	}
}
