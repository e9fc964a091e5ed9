package router

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/gabrielmiguelok/crimedesk/pkg/limits"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
)

// Recovery middleware turns panics into 500 responses.
func Recovery(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic serving request",
						logging.String("path", r.URL.Path),
						logging.String("panic", fmt.Sprint(rec)),
						logging.String("stack", string(debug.Stack())),
					)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// BodyLimit caps request bodies at max bytes.
func BodyLimit(max int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && max > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecureHeadersConfig configures security headers.
type SecureHeadersConfig struct {
	// FrameOptions controls X-Frame-Options. Default "DENY".
	FrameOptions string

	ContentTypeNosniff bool

	// ReferrerPolicy default: "strict-origin-when-cross-origin"
	ReferrerPolicy string

	// PermissionsPolicy allows same-origin geolocation by default.
	PermissionsPolicy string

	// HSTSEnabled sets Strict-Transport-Security on HTTPS requests.
	HSTSEnabled bool
	HSTSMaxAge  int

	// ContentSecurityPolicy overrides the generated nonce policy when set.
	ContentSecurityPolicy string
}

// DefaultSecureHeadersConfig returns secure default configuration.
func DefaultSecureHeadersConfig() SecureHeadersConfig {
	return SecureHeadersConfig{
		FrameOptions:       "DENY",
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		PermissionsPolicy:  "geolocation=(self), microphone=(), camera=()",
		HSTSEnabled:        true,
		HSTSMaxAge:         31536000, // 1 year
	}
}

type cspNonceKey struct{}

// GetCSPNonce retrieves the CSP nonce for inline scripts from context.
func GetCSPNonce(ctx context.Context) string {
	nonce, _ := ctx.Value(cspNonceKey{}).(string)
	return nonce
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.StdEncoding.EncodeToString(b)
}

// SecureHeaders middleware adds security headers with the default config.
func SecureHeaders() Middleware {
	return SecureHeadersWithConfig(DefaultSecureHeadersConfig())
}

// SecureHeadersWithConfig creates middleware with custom config.
func SecureHeadersWithConfig(config SecureHeadersConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if config.FrameOptions != "" {
				h.Set("X-Frame-Options", config.FrameOptions)
			}
			if config.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", config.PermissionsPolicy)
			}
			if config.HSTSEnabled && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(config.HSTSMaxAge)+"; includeSubDomains")
			}

			nonce := generateNonce()
			csp := config.ContentSecurityPolicy
			if csp == "" {
				csp = "default-src 'self'; " +
					"script-src 'self' 'nonce-" + nonce + "'; " +
					"style-src 'self' 'nonce-" + nonce + "'; " +
					"img-src 'self' data: blob:; " +
					"connect-src 'self' ws: wss:; " +
					"frame-ancestors 'none'; " +
					"base-uri 'self'; " +
					"form-action 'self'"
			}
			h.Set("Content-Security-Policy", csp)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), cspNonceKey{}, nonce)))
		})
	}
}

// RateLimit applies a per-client token bucket allowing requestsPerSecond
// with an equal burst.
func RateLimit(requestsPerSecond int) Middleware {
	return RateLimitWith(limits.NewTokenBucket(float64(requestsPerSecond), requestsPerSecond))
}

// RateLimitWith throttles clients against a caller-owned bucket, so the
// caller can Prune it.
func RateLimitWith(tb *limits.TokenBucket) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tb.Allow(limits.ClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
