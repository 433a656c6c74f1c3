package web

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/dispatch"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/render"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

const maxFormMemory = 32 << 20

// verbFor maps an HTTP request onto a widget verb. It must run after the form
// is parsed.
func verbFor(r *http.Request) widget.Verb {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return widget.Read
	case http.MethodDelete:
		return widget.Delete
	}
	if strings.EqualFold(strings.TrimSpace(r.Form.Get("_method")), "delete") {
		return widget.Delete
	}
	if strings.TrimSpace(r.Form.Get("action")) != "" {
		return widget.Action
	}
	return widget.Post
}

func parseForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return err
		}
		return nil
	}
	return r.ParseForm()
}

type pageView struct {
	Platform    model.Platform
	ContextPath string
	Path        string
	User        *model.User
	AuthMode    string

	Tree   *render.Tree
	Header *render.Tree
	Footer *render.Tree
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodDelete:
	default:
		w.Header().Set("Allow", "GET, HEAD, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page, pp, ok := s.site.PageFor(r.URL.Path)
	if !ok {
		s.notFound(w)
		return
	}

	if err := parseForm(r); err != nil {
		http.Error(w, "bad form: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := s.session(w, r)
	if err != nil {
		s.internalError(w, err)
		return
	}
	defer s.saveSession(sess)

	user := s.currentUser(r.Context(), sess)
	rq := &dispatch.Request{
		Context:     r.Context(),
		Verb:        verbFor(r),
		Params:      r.Form,
		Header:      r.Header,
		ContextPath: s.cfg.ContextPath,
		Path:        r.URL.Path,
		PathParams:  pp,
		User:        user,
		Session:     sess,
		Response:    w,
		Attributes:  map[string]any{},
	}

	out, err := s.dispatcher.Dispatch(page, rq)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			glog.V(1).Infof("web: %s %s: %v", r.Method, r.URL.Path, err)
			s.notFound(w)
			return
		}
		s.internalError(w, err)
		return
	}

	switch out.State {
	case dispatch.RedirectPending:
		http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
		return
	case dispatch.JSONShortCircuit:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.JSON)
		return
	case dispatch.HandledExternally:
		return
	}

	view := s.view(rq, out)
	view.AuthMode = s.cfg.AuthMode
	s.renderPage(w, view)
}

func (s *Server) view(rq *dispatch.Request, out *dispatch.Outcome) pageView {
	return pageView{
		Platform:    s.cfg.Platform,
		ContextPath: s.cfg.ContextPath,
		Path:        rq.Path,
		User:        rq.User,
		Tree:        out.Tree,
		Header:      s.dispatcher.Region(s.site.Header, rq),
		Footer:      s.dispatcher.Region(s.site.Footer, rq),
	}
}

func (s *Server) renderPage(w http.ResponseWriter, view pageView) {
	var b bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&b, "page.html", view); err != nil {
		s.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b.Bytes())
}

// RenderPage renders path for an anonymous visitor without a session. ok is
// false when the path has no plain page form.
func (s *Server) RenderPage(ctx context.Context, path string) ([]byte, bool, error) {
	page, pp, ok := s.site.PageFor(path)
	if !ok {
		return nil, false, nil
	}
	rq := &dispatch.Request{
		Context:     ctx,
		Verb:        widget.Read,
		Params:      url.Values{},
		Header:      http.Header{},
		ContextPath: s.cfg.ContextPath,
		Path:        path,
		PathParams:  pp,
		Attributes:  map[string]any{},
	}
	out, err := s.dispatcher.Dispatch(page, rq)
	if err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if out.Handled() {
		return nil, false, nil
	}
	var b bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&b, "page.html", s.view(rq, out)); err != nil {
		return nil, false, err
	}
	return b.Bytes(), true, nil
}

// Assets are the files served under /static.
func Assets() fs.FS {
	sub, err := fs.Sub(assetsFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
