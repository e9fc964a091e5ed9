// Package security provides authentication, sessions and request forgery
// protection.
package security

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Common CSRF errors.
var (
	ErrInvalidToken     = errors.New("invalid CSRF token")
	ErrMissingToken     = errors.New("missing CSRF token")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// CSRFProtection implements signed double-submit tokens: the token lives in a
// cookie and every unsafe request must echo it in a form field or header.
type CSRFProtection struct {
	secret     []byte
	maxAge     time.Duration
	secure     bool
	cookieName string
	headerName string
	formField  string
	onFailure  func(r *http.Request, err error)
}

// CSRFConfig configures CSRF protection.
type CSRFConfig struct {
	// Secret key for signing tokens. A random key is used when empty.
	Secret []byte

	// MaxAge is how long tokens are valid (default 24h)
	MaxAge time.Duration

	Secure bool

	CookieName string // default "_csrf"
	HeaderName string // default "X-CSRF-Token"
	FormField  string // default "_csrf"

	// OnFailure is called before a request with a bad token is rejected.
	OnFailure func(r *http.Request, err error)
}

// NewCSRFProtection creates a new CSRF protection instance.
func NewCSRFProtection(config CSRFConfig) *CSRFProtection {
	if len(config.Secret) == 0 {
		config.Secret = make([]byte, 32)
		rand.Read(config.Secret)
	}
	if config.MaxAge == 0 {
		config.MaxAge = 24 * time.Hour
	}
	if config.CookieName == "" {
		config.CookieName = "_csrf"
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-CSRF-Token"
	}
	if config.FormField == "" {
		config.FormField = "_csrf"
	}

	return &CSRFProtection{
		secret:     config.Secret,
		maxAge:     config.MaxAge,
		secure:     config.Secure,
		cookieName: config.CookieName,
		headerName: config.HeaderName,
		formField:  config.FormField,
		onFailure:  config.OnFailure,
	}
}

// GenerateToken creates a new signed token.
func (c *CSRFProtection) GenerateToken() (string, error) {
	randomBytes := make([]byte, 24)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}

	payload := base64.RawURLEncoding.EncodeToString(randomBytes) + "|" + strconv.FormatInt(time.Now().Unix(), 10)
	return payload + "." + base64.RawURLEncoding.EncodeToString(c.sign([]byte(payload))), nil
}

// ValidateToken checks the submitted token against the cookie token.
func (c *CSRFProtection) ValidateToken(submitted, cookie string) error {
	if submitted == "" || cookie == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(submitted), []byte(cookie)) != 1 {
		return ErrInvalidToken
	}

	payload, sigB64, ok := strings.Cut(submitted, ".")
	if !ok {
		return ErrInvalidToken
	}
	signature, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return ErrInvalidToken
	}
	if !hmac.Equal(signature, c.sign([]byte(payload))) {
		return ErrInvalidSignature
	}

	_, ts, ok := strings.Cut(payload, "|")
	if !ok {
		return ErrInvalidToken
	}
	issued, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidToken
	}
	if time.Since(time.Unix(issued, 0)) > c.maxAge {
		return ErrTokenExpired
	}
	return nil
}

func (c *CSRFProtection) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	return mac.Sum(nil)
}

type csrfTokenKey struct{}

// Middleware issues a token on safe requests and verifies it on unsafe ones.
func (c *CSRFProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookieToken := ""
			if cookie, err := r.Cookie(c.cookieName); err == nil {
				cookieToken = cookie.Value
			}

			if isSafeMethod(r.Method) {
				if cookieToken == "" {
					cookieToken = c.issue(w)
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, cookieToken)))
				return
			}

			if err := c.ValidateToken(c.submitted(r), cookieToken); err != nil {
				if c.onFailure != nil {
					c.onFailure(r, err)
				}
				http.Error(w, "Forbidden - Invalid CSRF Token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfTokenKey{}, cookieToken)))
		})
	}
}

func (c *CSRFProtection) issue(w http.ResponseWriter) string {
	token, err := c.GenerateToken()
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		Secure:   c.secure,
		HttpOnly: false, // read by the client runtime for fetch requests
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func (c *CSRFProtection) submitted(r *http.Request) string {
	if token := r.Header.Get(c.headerName); token != "" {
		return token
	}
	return r.FormValue(c.formField)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// Token returns the CSRF token for the request being served.
func Token(r *http.Request) string {
	token, _ := r.Context().Value(csrfTokenKey{}).(string)
	return token
}

// Hidden returns an HTML hidden input with the CSRF token.
func (c *CSRFProtection) Hidden(r *http.Request) string {
	return fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, c.formField, html.EscapeString(Token(r)))
}
