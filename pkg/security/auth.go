package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gabrielmiguelok/crimedesk/pkg/state"
)

// Common auth errors.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrSessionExpired = errors.New("session expired")
)

// AuthContext contains authentication information for a signed-in user.
type AuthContext struct {
	UserID    int64     `msgpack:"uid"`
	Username  string    `msgpack:"name"`
	Admin     bool      `msgpack:"admin"`
	SessionID string    `msgpack:"sid"`
	ExpiresAt time.Time `msgpack:"exp"`
}

// IsExpired returns true if the session has expired.
func (ac *AuthContext) IsExpired() bool {
	return time.Now().After(ac.ExpiresAt)
}

// IsAuthenticated returns true if there is a valid, non-expired user.
func (ac *AuthContext) IsAuthenticated() bool {
	return ac != nil && ac.UserID != 0 && !ac.IsExpired()
}

type authContextKey struct{}

// WithAuthContext adds authentication context to a context.
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext retrieves authentication context.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}

// IsAuthenticated returns true if the context has a valid authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return AuthFromContext(ctx).IsAuthenticated()
}

// RequireAuth middleware requires authentication.
func RequireAuth(onUnauthorized http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAuthenticated(r.Context()) {
				if onUnauthorized != nil {
					onUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin middleware requires an authenticated administrator.
func RequireAdmin(onForbidden http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := AuthFromContext(r.Context())
			if !ac.IsAuthenticated() || !ac.Admin {
				if onForbidden != nil {
					onForbidden(w, r)
				} else {
					http.Error(w, "Forbidden", http.StatusForbidden)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionManager keeps signed-in sessions in a state store keyed by a cookie.
type SessionManager struct {
	sessions     *state.TypedStore[AuthContext]
	cookieName   string
	cookieSecure bool
	sessionTTL   time.Duration
}

// SessionManagerConfig configures the session manager.
type SessionManagerConfig struct {
	Store        state.Store
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
}

// NewSessionManager creates a new session manager.
func NewSessionManager(config SessionManagerConfig) *SessionManager {
	if config.Store == nil {
		config.Store = state.NewMemoryStore(time.Minute)
	}
	if config.CookieName == "" {
		config.CookieName = "session"
	}
	if config.SessionTTL == 0 {
		config.SessionTTL = 24 * time.Hour
	}

	return &SessionManager{
		sessions:     state.NewTypedStore[AuthContext](config.Store, state.NewGenericSerializer[AuthContext](), "session:"),
		cookieName:   config.CookieName,
		cookieSecure: config.CookieSecure,
		sessionTTL:   config.SessionTTL,
	}
}

// CookieName returns the name of the session cookie.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Lookup loads the session identified by the request cookie.
func (sm *SessionManager) Lookup(r *http.Request) (*AuthContext, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrUnauthorized
	}
	auth, err := sm.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, state.ErrKeyNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if auth.IsExpired() {
		return nil, ErrSessionExpired
	}
	return &auth, nil
}

// Middleware adds the session's AuthContext to requests that carry one.
func (sm *SessionManager) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth, err := sm.Lookup(r); err == nil {
				r = r.WithContext(WithAuthContext(r.Context(), auth))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Login creates a session for a user and sets the session cookie.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, auth *AuthContext) error {
	auth.SessionID = generateSessionID()
	auth.ExpiresAt = time.Now().Add(sm.sessionTTL)

	if err := sm.sessions.Set(r.Context(), auth.SessionID, *auth, sm.sessionTTL); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    auth.SessionID,
		Path:     "/",
		MaxAge:   int(sm.sessionTTL.Seconds()),
		Secure:   sm.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout destroys the session and clears the cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return nil
	}

	if err := sm.sessions.Delete(r.Context(), cookie.Value); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   sm.cookieSecure,
		HttpOnly: true,
	})
	return nil
}

// Active returns the number of live sessions.
func (sm *SessionManager) Active(ctx context.Context) (int, error) {
	return sm.sessions.Count(ctx)
}

func generateSessionID() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
