// Package web serves the crimedesk site: authentication, the reporter
// dashboard, report submission through the live wizard, and the admin panel
// with CSV export and status updates.
package web

import (
	"net/http"
	"time"

	clientassets "github.com/gabrielmiguelok/crimedesk/client"
	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/internal/metrics"
	"github.com/gabrielmiguelok/crimedesk/internal/reportwizard"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/audit"
	"github.com/gabrielmiguelok/crimedesk/pkg/health"
	"github.com/gabrielmiguelok/crimedesk/pkg/limits"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
	"github.com/gabrielmiguelok/crimedesk/pkg/recovery"
	"github.com/gabrielmiguelok/crimedesk/pkg/router"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
	"github.com/gabrielmiguelok/crimedesk/pkg/transport"
	"github.com/gabrielmiguelok/crimedesk/pkg/uploads"
)

// Flash messages.
const (
	msgLoggedIn        = "Logged in successfully!"
	msgBadCredentials  = "Invalid credentials."
	msgUsernameTaken   = "Username taken."
	msgRegistered      = "Registered! Log in now."
	msgReportSubmitted = "Report submitted!"
	msgAdminOnly       = "Admin only!"
	msgLoginRequired   = "Please log in to access this page."
	msgFixFields       = "Please correct the highlighted fields."
	msgLockedOut       = "Too many failed login attempts. Try again in %d minutes."
)

// loginWindow is how long failed logins count against a client.
const loginWindow = 15 * time.Minute

// Options wires the server to its collaborators. Store and Uploader are
// required; everything else has a working default.
type Options struct {
	Store    *store.Store
	Uploader *uploads.Uploader

	Audit   audit.Logger
	Metrics *metrics.Metrics
	Health  *health.Checker
	Logger  logging.Logger

	CSRFSecret    []byte
	SecureCookies bool
	SessionTTL    time.Duration

	// RateLimit is requests per second per client. Zero disables limiting.
	RateLimit int
	// PageSize is the number of rows per admin page.
	PageSize int
	// MaxLiveSessions feeds the readiness capacity check. Zero skips it.
	MaxLiveSessions int
	// LiveConnsPerIP caps concurrent live connections per client. Zero
	// disables the cap.
	LiveConnsPerIP int
	// LoginAttempts is how many failed logins a client may make per
	// fifteen minutes. Zero disables the lockout.
	LoginAttempts int

	AllowedOrigins []string
	Codec          protocol.Codec
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	store    *store.Store
	uploader *uploads.Uploader
	sessions *security.SessionManager
	csrf     *security.CSRFProtection
	audit    audit.Logger
	metrics  *metrics.Metrics
	health   *health.Checker
	log      logging.Logger
	pageSize int

	requests *limits.TokenBucket
	logins   *limits.Attempts
	drafts   *recovery.Manager

	router *router.Router
}

// New builds the server and registers every route.
func New(opts Options) *Server {
	if opts.Audit == nil {
		opts.Audit = audit.NopLogger{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Health == nil {
		opts.Health = health.NewChecker("dev")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger{}
	}
	if opts.PageSize <= 0 {
		opts.PageSize = store.DefaultPageSize
	}

	s := &Server{
		store:    opts.Store,
		uploader: opts.Uploader,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		health:   opts.Health,
		log:      opts.Logger,
		pageSize: opts.PageSize,
		router:   router.New(),
		drafts:   recovery.NewManager(recovery.Config{Secret: opts.CSRFSecret}),
	}
	s.sessions = security.NewSessionManager(security.SessionManagerConfig{
		CookieName:   "crimedesk_session",
		CookieSecure: opts.SecureCookies,
		SessionTTL:   opts.SessionTTL,
	})
	s.csrf = security.NewCSRFProtection(security.CSRFConfig{
		Secret: opts.CSRFSecret,
		Secure: opts.SecureCookies,
		OnFailure: func(r *http.Request, err error) {
			audit.LogCSRFViolation(s.audit, r, err)
		},
	})

	s.health.AddCritical("store", s.store.Ping, 2*time.Second)
	if opts.MaxLiveSessions > 0 {
		s.health.Add("live_sessions", health.CapacityCheck("live sessions", s.router.SessionManager().Count, opts.MaxLiveSessions), time.Second)
	}

	s.router.SetLogger(s.log)
	s.router.SetObserver(s.metrics)
	s.router.SetOriginPolicy(&transport.OriginPolicy{AllowedOrigins: opts.AllowedOrigins})
	if opts.Codec != nil {
		s.router.SetCodec(opts.Codec)
	}
	s.router.SetConnectionLimit(opts.LiveConnsPerIP)
	if opts.LoginAttempts > 0 {
		s.logins = limits.NewAttempts(opts.LoginAttempts, loginWindow)
	}
	s.router.SetErrorHandler(s.serverError)

	s.router.Use(router.Recovery(s.log))
	s.router.Use(logging.RequestLogger(s.log))
	s.router.Use(s.metrics.Middleware())
	s.router.Use(router.SecureHeaders())
	if opts.RateLimit > 0 {
		s.requests = limits.NewTokenBucket(float64(opts.RateLimit), opts.RateLimit)
		s.router.Use(router.RateLimitWith(s.requests))
	}
	if max := s.uploader.Config().MaxFileSize; max > 0 {
		s.router.Use(router.BodyLimit(max + 1<<20))
	}
	s.router.Use(s.sessions.Middleware())
	s.router.Use(s.csrf.Middleware())

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc("GET /{$}", s.handleSplash)
	r.HandleFunc("GET /help", s.handleHelp)
	r.HandleFunc("GET /login", s.handleLoginPage)
	r.HandleFunc("POST /login", s.handleLogin)
	r.HandleFunc("GET /register", s.handleRegisterPage)
	r.HandleFunc("POST /register", s.handleRegister)

	r.Group("", func(g *router.RouteGroup) {
		g.Use(security.RequireAuth(s.redirectToLogin))

		g.Get("/logout", s.handleLogout)
		g.Get("/dashboard", s.handleDashboard)
		g.Post(reportwizard.Path, s.handleSubmitReport)
		g.Get("/attachments/{key}", s.handleAttachment)
		g.Live(reportwizard.Path, reportwizard.New(reportwizard.Options{
			Allowed:  s.uploader.Allowed,
			MaxSize:  s.uploader.Config().MaxFileSize,
			Recorder: s.metrics,
			Drafts:   s.drafts,
		}))
	})

	r.Group("", func(g *router.RouteGroup) {
		g.Use(security.RequireAdmin(s.adminOnlyPage))
		g.Get("/admin", s.handleAdmin)
	})

	r.Group("", func(g *router.RouteGroup) {
		g.Use(security.RequireAdmin(s.adminOnlyJSON))
		g.Get("/admin/export", s.handleExport)
		g.Post("/update_status/{id}", s.handleUpdateStatus)
	})

	r.Handle("GET /healthz", s.health.LivenessHandler())
	r.Handle("GET /readyz", s.health.ReadinessHandler())
	r.Handle("GET /metrics", s.metrics.Handler())
	r.Static("/assets/", http.FS(clientassets.Assets()))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Prune drops idle live sessions and stale limiter state. It returns the
// number of live sessions closed.
func (s *Server) Prune(maxIdle time.Duration) int {
	if s.requests != nil {
		s.requests.Prune(maxIdle)
	}
	if s.logins != nil {
		s.logins.Prune()
	}
	return s.router.Reap(maxIdle)
}

// Close releases the wizard draft store.
func (s *Server) Close() error {
	return s.drafts.Close()
}

// Router returns the underlying router, for shutdown and reaping.
func (s *Server) Router() *router.Router {
	return s.router
}

// Sessions returns the session manager.
func (s *Server) Sessions() *security.SessionManager {
	return s.sessions
}

// page prepares the layout of a server-rendered page and pops its flashes.
func (s *Server) page(w http.ResponseWriter, r *http.Request, title, active string) layout.Page {
	var user *security.AuthContext
	if auth := security.AuthFromContext(r.Context()); auth.IsAuthenticated() {
		user = auth
	}
	return layout.Page{
		Title:   title,
		Nonce:   router.GetCSPNonce(r.Context()),
		User:    user,
		Flashes: security.PopFlashes(w, r),
		Active:  active,
	}
}

func (s *Server) html(w http.ResponseWriter, status int, doc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(doc)); err != nil {
		s.log.Debug("write response", logging.Err(err))
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	audit.LogUnauthorized(s.audit, r)
	security.AddFlash(w, r, security.FlashInfo, msgLoginRequired)
	s.redirect(w, r, "/login")
}

func (s *Server) adminOnlyPage(w http.ResponseWriter, r *http.Request) {
	if !security.IsAuthenticated(r.Context()) {
		s.redirectToLogin(w, r)
		return
	}
	audit.LogUnauthorized(s.audit, r)
	security.AddFlash(w, r, security.FlashError, msgAdminOnly)
	s.redirect(w, r, "/dashboard")
}

func (s *Server) adminOnlyJSON(w http.ResponseWriter, r *http.Request) {
	if security.IsAuthenticated(r.Context()) {
		audit.LogUnauthorized(s.audit, r)
	} else if r.Method == http.MethodGet {
		s.redirectToLogin(w, r)
		return
	}
	writeJSON(w, http.StatusForbidden, map[string]any{"error": "Unauthorized"})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	logging.L(r.Context()).Error("request failed", logging.String("path", r.URL.Path), logging.Err(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
