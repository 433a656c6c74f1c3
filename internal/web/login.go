package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
)

type loginVM struct {
	Now         string
	Platform    model.Platform
	ContextPath string
	Users       []model.User
	Error       string
	Return      string
}

// returnPath keeps post-login redirects on this site.
func (s *Server) returnPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return s.link("/")
	}
	if s.cfg.ContextPath != "" && (raw == s.cfg.ContextPath || strings.HasPrefix(raw, s.cfg.ContextPath+"/")) {
		return raw
	}
	return s.link(raw)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = s.tmpl.ExecuteTemplate(w, "login.html", loginVM{
		Now:         time.Now().Format(time.RFC3339),
		Platform:    s.cfg.Platform,
		ContextPath: s.cfg.ContextPath,
		Users:       users,
		Error:       errMsg,
		Return:      strings.TrimSpace(r.Form.Get("return")),
	})
}

func (s *Server) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthMode != "dev" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.renderLogin(w, r, http.StatusOK, "")
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthMode != "dev" {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	username := strings.TrimSpace(r.Form.Get("username"))
	if username == "" {
		http.Redirect(w, r, s.link("/login"), http.StatusSeeOther)
		return
	}
	u, err := s.store.FindUserByUsername(r.Context(), username)
	if err != nil {
		if store.IsNotFound(err) {
			s.renderLogin(w, r, http.StatusUnauthorized, "unknown user")
			return
		}
		s.internalError(w, err)
		return
	}

	sess, err := s.session(w, r)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if err := sess.SetUser(u.ID); err != nil {
		s.internalError(w, err)
		return
	}
	if err := s.sessions.Save(sess); err != nil {
		s.internalError(w, err)
		return
	}
	glog.Infof("web: %s signed in (session %s)", u.Username, sess.ID)
	http.Redirect(w, r, s.returnPath(r.Form.Get("return")), http.StatusSeeOther)
}

func (s *Server) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthMode != "dev" {
		http.NotFound(w, r)
		return
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if id, err := verifySessionCookie(s.secret, c.Value); err == nil {
			s.sessions.Destroy(id)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, s.link("/"), http.StatusSeeOther)
}
