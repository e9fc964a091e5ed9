package security

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/crimedesk/pkg/state"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("admin123")
	require.NoError(t, err)
	assert.NotEqual(t, "admin123", hash)

	assert.NoError(t, CheckPassword(hash, "admin123"))
	assert.ErrorIs(t, CheckPassword(hash, "admin124"), ErrInvalidCredentials)
}

func TestSessionLoginLookupLogout(t *testing.T) {
	store := state.NewMemoryStore(0)
	defer store.Close()
	sm := NewSessionManager(SessionManagerConfig{Store: store, SessionTTL: time.Hour})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	require.NoError(t, sm.Login(rec, req, &AuthContext{UserID: 7, Username: "alice"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	next := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	next.AddCookie(cookies[0])

	var seen *AuthContext
	sm.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AuthFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), next)

	require.NotNil(t, seen)
	assert.Equal(t, int64(7), seen.UserID)
	assert.Equal(t, "alice", seen.Username)
	assert.True(t, seen.IsAuthenticated())

	n, err := sm.Active(req.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, sm.Logout(httptest.NewRecorder(), next))
	_, err = sm.Lookup(next)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRequireAuthAndAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	redirect := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}

	anon := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	RequireAuth(redirect)(ok).ServeHTTP(rec, anon)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	user := &AuthContext{UserID: 2, Username: "bob", ExpiresAt: time.Now().Add(time.Hour)}
	userReq := anon.WithContext(WithAuthContext(anon.Context(), user))

	rec = httptest.NewRecorder()
	RequireAuth(redirect)(ok).ServeHTTP(rec, userReq)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	RequireAdmin(nil)(ok).ServeHTTP(rec, userReq)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := *user
	admin.Admin = true
	rec = httptest.NewRecorder()
	RequireAdmin(nil)(ok).ServeHTTP(rec, anon.WithContext(WithAuthContext(anon.Context(), &admin)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFMiddleware(t *testing.T) {
	csrf := NewCSRFProtection(CSRFConfig{Secret: []byte("test-secret")})

	var rendered string
	h := csrf.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rendered = csrf.Hidden(r)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	token := cookies[0].Value
	assert.Contains(t, rendered, `name="_csrf"`)
	assert.Contains(t, rendered, token)

	form := url.Values{"_csrf": {token}, "username": {"alice"}}
	post := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	post.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	post.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, post)
	assert.Equal(t, http.StatusOK, rec.Code)

	forged := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("username=alice"))
	forged.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	forged.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, forged)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	header := httptest.NewRequest(http.MethodPost, "/update_status/1", strings.NewReader(`{}`))
	header.Header.Set("X-CSRF-Token", token)
	header.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, header)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFValidateToken(t *testing.T) {
	csrf := NewCSRFProtection(CSRFConfig{Secret: []byte("a")})
	other := NewCSRFProtection(CSRFConfig{Secret: []byte("b")})

	token, err := csrf.GenerateToken()
	require.NoError(t, err)

	assert.NoError(t, csrf.ValidateToken(token, token))
	assert.ErrorIs(t, csrf.ValidateToken("", token), ErrMissingToken)
	assert.ErrorIs(t, csrf.ValidateToken(token, token+"x"), ErrInvalidToken)
	assert.ErrorIs(t, other.ValidateToken(token, token), ErrInvalidSignature)

	expired := NewCSRFProtection(CSRFConfig{Secret: []byte("a"), MaxAge: -time.Second})
	assert.ErrorIs(t, expired.ValidateToken(token, token), ErrTokenExpired)
}

func TestFlashes(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", nil)

	AddFlash(rec, req, FlashSuccess, "Registered! Log in now.")
	AddFlash(rec, req, FlashInfo, "second")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]

	next := httptest.NewRequest(http.MethodGet, "/login", nil)
	next.AddCookie(last)
	rec = httptest.NewRecorder()

	flashes := PopFlashes(rec, next)
	require.Len(t, flashes, 2)
	assert.Equal(t, Flash{Category: FlashSuccess, Message: "Registered! Log in now."}, flashes[0])
	assert.Equal(t, "second", flashes[1].Message)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)

	assert.Nil(t, PopFlashes(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}
