package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/dispatch"
	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/prefs"
	"github.com/rajkowski/cms-platform-sub001/internal/session"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widgets"
)

//go:embed templates/*.html static/*.css
var assetsFS embed.FS

type ServerConfig struct {
	Addr        string
	SiteDir     string // layout YAML files
	DBPath      string // sqlite content database
	SessionDB   string // bbolt file; empty keeps sessions in memory
	SecretKey   string // HMAC key file; defaults to <SiteDir>/.cms/secret.key
	AuthMode    string // none|dev
	ContextPath string // URL prefix the site is mounted under, e.g. /cms
	SessionTTL  time.Duration
	Platform    model.Platform
}

type Server struct {
	cfg    ServerConfig
	tmpl   *template.Template
	secret []byte

	site       *layout.Site
	store      *store.Store
	sessions   *session.Manager
	boltDB     *session.BoltBackend
	dispatcher *dispatch.Dispatcher
}

func normalizeContextPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.SiteDir = strings.TrimSpace(cfg.SiteDir)
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.SessionDB = strings.TrimSpace(cfg.SessionDB)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	cfg.ContextPath = normalizeContextPath(cfg.ContextPath)
	if cfg.SiteDir == "" {
		return nil, errors.New("web: site dir is empty")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("web: db path is empty")
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "none"
	}
	if cfg.AuthMode != "none" && cfg.AuthMode != "dev" {
		return nil, errors.New("web: invalid auth mode (expected none|dev)")
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = filepath.Join(cfg.SiteDir, ".cms", "secret.key")
	}

	site, err := layout.Load(cfg.SiteDir)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	secret, err := loadOrInitSecretKey(cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}

	reg, err := widgets.NewRegistry(st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := layout.Validate(site, reg.Has); err != nil {
		_ = st.Close()
		return nil, err
	}
	wt, err := widgets.NewTemplates()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	srv := &Server{
		cfg:    cfg,
		tmpl:   tmpl,
		secret: secret,
		site:   site,
		store:  st,
		dispatcher: dispatch.New(reg, &prefs.Resolver{
			Platform: cfg.Platform,
			Entities: st,
		}, wt),
	}

	var backend session.Backend
	if cfg.SessionDB != "" {
		b, err := session.OpenBolt(cfg.SessionDB)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		srv.boltDB = b
		backend = b
	}
	srv.sessions = session.NewManager(backend, cfg.SessionTTL)
	return srv, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Store exposes the content store to callers that seed or inspect it.
func (s *Server) Store() *store.Store { return s.store }

func (s *Server) Close() error {
	var errs []error
	if s.boltDB != nil {
		errs = append(errs, s.boltDB.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// SweepSessions expires idle sessions every interval until ctx is done.
func (s *Server) SweepSessions(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sessions.Sweep(); n > 0 {
				glog.V(1).Infof("web: expired %d sessions", n)
			}
		}
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /static/site.css", s.handleSiteCSS)
	mux.HandleFunc("GET /login", s.handleLoginGet)
	mux.HandleFunc("POST /login", s.handleLoginPost)
	mux.HandleFunc("POST /logout", s.handleLogoutPost)
	mux.HandleFunc("/", s.handlePage)

	var h http.Handler = mux
	if cp := s.cfg.ContextPath; cp != "" {
		outer := http.NewServeMux()
		outer.Handle(cp+"/", http.StripPrefix(cp, mux))
		outer.Handle(cp, http.RedirectHandler(cp+"/", http.StatusMovedPermanently))
		h = outer
	}

	compress, err := httpcompression.DefaultAdapter()
	if err != nil {
		glog.Warningf("web: response compression disabled: %v", err)
		return h
	}
	return compress(h)
}

func (s *Server) link(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.cfg.ContextPath + path
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleSiteCSS(w http.ResponseWriter, r *http.Request) {
	b, err := assetsFS.ReadFile("static/site.css")
	if err != nil || len(b) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// session returns the request's session, creating one (and its cookie) when
// the cookie is missing, invalid, or points at an expired session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	id := ""
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if sid, err := verifySessionCookie(s.secret, c.Value); err == nil {
			id = sid
		} else {
			glog.V(2).Infof("web: ignoring session cookie: %v", err)
		}
	}
	sess, created, err := s.sessions.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if created {
		if err := s.setSessionCookie(w, sess.ID); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// currentUser loads the signed-in user; a session pointing at a removed user
// is downgraded to anonymous.
func (s *Server) currentUser(ctx context.Context, sess *session.Session) *model.User {
	if s.cfg.AuthMode == "none" {
		return nil
	}
	uid := sess.UserID()
	if uid == "" {
		return nil
	}
	u, err := s.store.FindUserByID(ctx, uid)
	if err != nil {
		if !store.IsNotFound(err) {
			glog.Warningf("web: loading user %s: %v", uid, err)
		}
		_ = sess.SetUser("")
		return nil
	}
	return u
}

func (s *Server) saveSession(sess *session.Session) {
	if err := s.sessions.Save(sess); err != nil {
		glog.Warningf("web: saving session %s: %v", sess.ID, err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, "error.html", map[string]any{
		"Status":      status,
		"StatusText":  http.StatusText(status),
		"Message":     msg,
		"Platform":    s.cfg.Platform,
		"ContextPath": s.cfg.ContextPath,
	}); err != nil {
		glog.Errorf("web: error page: %v", err)
	}
}

func (s *Server) notFound(w http.ResponseWriter) {
	s.renderError(w, http.StatusNotFound, "The page you requested could not be found.")
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	glog.Errorf("web: %v", err)
	s.renderError(w, http.StatusInternalServerError, fmt.Sprintf("Something went wrong (%s).", time.Now().UTC().Format(time.RFC3339)))
}
