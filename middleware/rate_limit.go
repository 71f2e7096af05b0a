package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"house-alert-api/utils"
)

type RateLimiter struct {
	client *redis.Client
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

var endpointConfigs = map[string]RateLimitConfig{
	"/api/checkout": {
		Requests: 10,
		Window:   time.Minute,
		Message:  "Too many checkout attempts. Please wait a minute.",
	},
	"/api/auth/refresh": {
		Requests: 10,
		Window:   5 * time.Minute,
		Message:  "Too many token refresh attempts. Please wait 5 minutes.",
	},
	"/api/internal/session": {
		Requests: 100,
		Window:   time.Minute,
		Message:  "Internal API rate limit exceeded.",
	},
}

// Fixed window counter; the key already carries the window start.
var rateLimitScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return current
`)

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// RateLimitMiddleware throttles the endpoints listed in endpointConfigs per
// client. Redis faults let the request through.
func (rl *RateLimiter) RateLimitMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			config, limited := endpointConfigs[r.URL.Path]
			if !limited {
				next.ServeHTTP(w, r)
				return
			}

			key := rateLimitKey(r)

			allowed, remaining, resetTime, err := rl.checkRateLimit(r.Context(), key, config, time.Now())
			if err != nil {
				log.Printf("Rate limit check error: %v", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				log.Printf("Rate limit exceeded for key: %s, endpoint: %s", key, r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetTime).Seconds())+1))
				utils.SendErrorResponse(w, http.StatusTooManyRequests, config.Message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, "/api/internal/") {
		if secret := r.Header.Get(InternalSecretHeader); secret != "" {
			sum := sha256.Sum256([]byte(secret))
			return "rate_limit:internal:" + hex.EncodeToString(sum[:8])
		}
	}
	return fmt.Sprintf("rate_limit:%s:%s", clientIP(r), r.URL.Path)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string, config RateLimitConfig, now time.Time) (bool, int, time.Time, error) {
	windowStart := now.Truncate(config.Window)
	windowEnd := windowStart.Add(config.Window)
	windowKey := fmt.Sprintf("%s:%d", key, windowStart.Unix())

	count, err := rateLimitScript.Run(ctx, rl.client, []string{windowKey}, int(config.Window.Seconds())).Int()
	if err != nil {
		return false, 0, time.Time{}, err
	}

	remaining := config.Requests - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= config.Requests, remaining, windowEnd, nil
}

// SecurityHeadersMiddleware sets browser hardening headers. Handlers may
// replace the Content-Security-Policy before writing.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
			w.Header().Set("Pragma", "no-cache")
			w.Header().Set("Expires", "0")
		}

		next.ServeHTTP(w, r)
	})
}
