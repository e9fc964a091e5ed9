package web

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabrielmiguelok/crimedesk/internal/layout"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/audit"
	"github.com/gabrielmiguelok/crimedesk/pkg/forms"
	"github.com/gabrielmiguelok/crimedesk/pkg/limits"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

var registerSchema = forms.Schema{
	forms.Field("username", forms.Required(), forms.MaxLength(80)),
	forms.Field("password", forms.Required()),
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if security.IsAuthenticated(r.Context()) {
		s.redirect(w, r, "/dashboard")
		return
	}
	p := s.page(w, r, "Log in", "/login")
	s.html(w, http.StatusOK, layout.Document(p, authForm(r, "Log in", "/login", "")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	ip := limits.ClientIP(r)

	if s.logins != nil {
		if blocked, wait := s.logins.Blocked(ip); blocked {
			audit.LogAuthFailure(s.audit, r, username, "locked out")
			s.metrics.Login(false)
			minutes := int(math.Ceil(wait.Minutes()))
			p := s.page(w, r, "Log in", "/login")
			p.Flashes = append(p.Flashes, security.Flash{Category: security.FlashError, Message: fmt.Sprintf(msgLockedOut, max(minutes, 1))})
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			s.html(w, http.StatusTooManyRequests, layout.Document(p, authForm(r, "Log in", "/login", username)))
			return
		}
	}

	user, err := s.store.UserByName(r.Context(), username)
	if err == nil {
		err = security.CheckPassword(user.PasswordHash, password)
	}
	if err != nil {
		reason := "bad password"
		if errors.Is(err, store.ErrNotFound) {
			reason = "unknown user"
		}
		audit.LogAuthFailure(s.audit, r, username, reason)
		s.metrics.Login(false)
		if s.logins != nil {
			s.logins.Fail(ip)
		}

		p := s.page(w, r, "Log in", "/login")
		p.Flashes = append(p.Flashes, security.Flash{Category: security.FlashError, Message: msgBadCredentials})
		s.html(w, http.StatusOK, layout.Document(p, authForm(r, "Log in", "/login", username)))
		return
	}

	auth := &security.AuthContext{UserID: user.ID, Username: user.Username, Admin: user.IsAdmin}
	if err := s.sessions.Login(w, r, auth); err != nil {
		s.serverError(w, r, fmt.Errorf("create session: %w", err))
		return
	}
	if s.logins != nil {
		s.logins.Reset(ip)
	}
	audit.LogAuthSuccess(s.audit, r, user.ID, user.Username)
	s.metrics.Login(true)
	logging.L(r.Context()).Info("user logged in", logging.UserID(user.ID))

	security.AddFlash(w, r, security.FlashSuccess, msgLoggedIn)
	s.redirect(w, r, "/dashboard")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	p := s.page(w, r, "Register", "/register")
	s.html(w, http.StatusOK, layout.Document(p, authForm(r, "Register", "/register", "")))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	values := registerSchema.Trimmed(r.PostForm)
	username := values.Get("username")

	var msg string
	if errs := registerSchema.Validate(values); errs != nil {
		field := errs.Fields()[0]
		msg = fmt.Sprintf("%s: %s", field, errs[field])
	} else {
		hash, err := security.HashPassword(r.PostForm.Get("password"))
		if err != nil {
			s.serverError(w, r, fmt.Errorf("hash password: %w", err))
			return
		}
		user, err := s.store.CreateUser(r.Context(), username, hash, false)
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			msg = msgUsernameTaken
		case err != nil:
			s.serverError(w, r, fmt.Errorf("create user: %w", err))
			return
		default:
			ev := audit.FromRequest(r, audit.EventUserRegistered, audit.SeverityInfo)
			ev.UserID = user.ID
			ev.Username = user.Username
			s.audit.Log(ev)

			security.AddFlash(w, r, security.FlashSuccess, msgRegistered)
			s.redirect(w, r, "/login")
			return
		}
	}

	p := s.page(w, r, "Register", "/register")
	p.Flashes = append(p.Flashes, security.Flash{Category: security.FlashError, Message: msg})
	s.html(w, http.StatusOK, layout.Document(p, authForm(r, "Register", "/register", username)))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.audit.Log(audit.FromRequest(r, audit.EventLogout, audit.SeverityInfo))
	if err := s.sessions.Logout(w, r); err != nil {
		s.log.Warn("logout", logging.Err(err))
	}
	s.redirect(w, r, "/")
}

func authForm(r *http.Request, title, action, username string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="card auth-card">` + "\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", layout.Esc(title)))
	sb.WriteString(fmt.Sprintf(`<form method="post" action="%s">`+"\n", action))
	sb.WriteString(layout.CSRFField(security.Token(r)) + "\n")
	sb.WriteString(fmt.Sprintf(`<div class="form-group"><label for="username">Username</label>`+
		`<input id="username" name="username" class="form-control" autocomplete="username" required value="%s"></div>`+"\n",
		layout.Esc(username)))

	autocomplete := "current-password"
	if action == "/register" {
		autocomplete = "new-password"
	}
	sb.WriteString(fmt.Sprintf(`<div class="form-group"><label for="password">Password</label>`+
		`<input id="password" name="password" type="password" class="form-control" autocomplete="%s" required></div>`+"\n",
		autocomplete))
	sb.WriteString(fmt.Sprintf(`<button type="submit" class="btn btn-primary">%s</button>`+"\n", layout.Esc(title)))
	sb.WriteString(`</form>` + "\n")

	if action == "/login" {
		sb.WriteString(`<p class="muted">No account yet? <a href="/register">Register</a>.</p>` + "\n")
	} else {
		sb.WriteString(`<p class="muted">Already registered? <a href="/login">Log in</a>.</p>` + "\n")
	}
	sb.WriteString(`</div>`)
	return sb.String()
}
