// Package dispatch walks a page layout for one request, runs the widgets the
// identity may see, and assembles the render tree or the terminal outcome
// (redirect, JSON document, externally handled response, not found).
package dispatch

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/perm"
	"github.com/rajkowski/cms-platform-sub001/internal/prefs"
	"github.com/rajkowski/cms-platform-sub001/internal/render"
	"github.com/rajkowski/cms-platform-sub001/internal/session"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

// Request parameters read by the dispatcher.
const (
	ParamTarget = "widget"
	ParamToken  = "token"
)

// MsgTokenMismatch is left for the target widget when a form is replayed or expired.
const MsgTokenMismatch = "Your form has expired. Please review it and submit again."

// Renderer renders named widget templates.
type Renderer interface {
	Render(name string, bindings map[string]any) (string, error)
}

// Request is everything the dispatcher needs from the transport.
type Request struct {
	Context     context.Context
	Verb        widget.Verb
	Params      url.Values
	Header      http.Header
	ContextPath string
	// Path is the site-relative request path, without the context path.
	Path       string
	PathParams layout.PathParams

	User    *model.User
	Session *session.Session

	// Response lets widgets stream the reply themselves.
	Response http.ResponseWriter

	// Attributes are shared by every container dispatched for the same request.
	Attributes map[string]any
}

func (rq *Request) controller() *session.Controller {
	if rq.Session != nil {
		return rq.Session.Controller
	}
	// Without a session nothing can survive the request.
	return session.NewController()
}

func (rq *Request) formToken() string {
	if rq.Session == nil {
		return ""
	}
	return rq.Session.FormToken()
}

func (rq *Request) link(path string) string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return path
	}
	cp := strings.TrimRight(rq.ContextPath, "/")
	if cp != "" && (path == cp || strings.HasPrefix(path, cp+"/")) {
		return path
	}
	return cp + path
}

// Dispatcher runs page layouts against requests. It holds no per-request
// state and is safe for concurrent use once built.
type Dispatcher struct {
	Invoker   *widget.Invoker
	Resolver  *prefs.Resolver
	Templates Renderer
}

// New builds a Dispatcher over reg. A nil resolver expands nothing but the
// built-in markers; a nil renderer drops template results.
func New(reg *widget.Registry, res *prefs.Resolver, tmpl Renderer) *Dispatcher {
	if res == nil {
		res = &prefs.Resolver{}
	}
	return &Dispatcher{
		Invoker:   &widget.Invoker{Registry: reg},
		Resolver:  res,
		Templates: tmpl,
	}
}

// Dispatch runs page for rq. Errors matching ErrNotFound are terminal
// not-found outcomes; any other error is an internal failure.
func (d *Dispatcher) Dispatch(page *layout.Container, rq *Request) (*Outcome, error) {
	if page == nil {
		return nil, &EmptyRenderError{}
	}
	if rq == nil {
		return nil, fmt.Errorf("dispatch %s: nil request", page.UniqueID())
	}
	w := d.newWalk(page, rq)
	return w.run()
}

// Region renders a header or footer for a read request. Denied or empty
// regions yield nil and leave the session untouched.
func (d *Dispatcher) Region(c *layout.Container, rq *Request) *render.Tree {
	if c == nil || rq == nil {
		return nil
	}
	region := *rq
	region.Verb = widget.Read
	w := d.newWalk(c, &region)
	if !perm.Allows(c.Access, w.ctx.Identity()) {
		return nil
	}
	out, err := w.walk()
	if err != nil {
		glog.V(2).Infof("dispatch: region %s: %v", c.UniqueID(), err)
		return nil
	}
	if out.State != Completed || !out.Tree.HasWidgets() {
		return nil
	}
	return out.Tree
}

// walk is the per-request, single-goroutine state of one container dispatch.
type walk struct {
	d    *Dispatcher
	page *layout.Container
	rq   *Request
	ctrl *session.Controller
	ctx  *widget.Context
	tree *render.Tree
	out  *Outcome
}

func (d *Dispatcher) newWalk(page *layout.Container, rq *Request) *walk {
	ctx := widget.NewContext(rq.Context, rq.Verb)
	if rq.Params != nil {
		ctx.Params = rq.Params
	}
	if rq.Header != nil {
		ctx.Header = rq.Header
	}
	if rq.Attributes != nil {
		ctx.Attributes = rq.Attributes
	}
	ctx.User = rq.User
	ctx.FormToken = rq.formToken()
	ctx.ContextPath = rq.ContextPath
	ctx.RequestPath = rq.Path
	ctx.Page = page
	ctx.PathParams = rq.PathParams
	ctx.Response = rq.Response

	tree := render.NewTree(page)
	return &walk{
		d:    d,
		page: page,
		rq:   rq,
		ctrl: rq.controller(),
		ctx:  ctx,
		tree: tree,
		out:  &Outcome{State: Walking, Tree: tree},
	}
}

func (w *walk) run() (*Outcome, error) {
	id := w.ctx.Identity()
	if !perm.Allows(w.page.Access, id) {
		w.ctrl.ClearAll()
		glog.V(1).Infof("dispatch %s: page denied", w.page.UniqueID())
		return nil, &AuthorizationDeniedError{Page: w.page.UniqueID()}
	}

	if w.rq.Verb.Mutating() {
		target := strings.TrimSpace(w.ctx.Param(ParamTarget))
		pos, wd, ok := w.page.FindInstance(target)
		if !ok {
			glog.V(1).Infof("dispatch %s: %s without a valid target %q", w.page.UniqueID(), w.rq.Verb, target)
			return nil, &TargetNotFoundError{Page: w.page.UniqueID(), Target: target}
		}
		if node, denied := w.deniedAt(pos, wd); denied {
			w.ctrl.ClearAll()
			glog.V(1).Infof("dispatch %s: target %s denied at %s", w.page.UniqueID(), target, node)
			return nil, &AuthorizationDeniedError{Page: w.page.UniqueID(), Node: node}
		}
		w.out.Target = target
	}

	out, err := w.walk()
	if err != nil {
		return nil, err
	}
	if out.State == Completed && !out.Tree.HasWidgets() {
		return nil, &EmptyRenderError{Page: w.page.UniqueID()}
	}
	if out.State == Completed && !w.rq.Verb.Mutating() {
		// Entries this read did not collect are stale.
		w.ctrl.ClearAll()
	}
	return out, nil
}

// deniedAt reports the first node between the page and wd that rejects the identity.
func (w *walk) deniedAt(pos layout.Position, wd *layout.Widget) (string, bool) {
	id := w.ctx.Identity()
	s := w.page.Sections[pos.Section]
	if !perm.Allows(s.Access, id) {
		return fmt.Sprintf("section %d", pos.Section), true
	}
	col := s.Columns[pos.Column]
	if !perm.Allows(col.Access, id) {
		return fmt.Sprintf("section %d column %d", pos.Section, pos.Column), true
	}
	if !perm.Allows(wd.Access, id) {
		return "widget " + wd.InstanceID(pos.Ordinal), true
	}
	return "", false
}

func (w *walk) walk() (*Outcome, error) {
	identity := w.ctx.Identity()
	var err error
	w.page.Walk(func(pos layout.Position, s *layout.Section, col *layout.Column, wd *layout.Widget) bool {
		id := wd.InstanceID(pos.Ordinal)
		if !perm.Allows(s.Access, identity) || !perm.Allows(col.Access, identity) || !perm.Allows(wd.Access, identity) {
			glog.V(2).Infof("dispatch %s: %s skipped by access", w.page.UniqueID(), id)
			w.out.report(id, wd.Name, SkippedByAccess)
			return true
		}
		if w.rq.Verb.Mutating() && id != w.out.Target {
			w.out.report(id, wd.Name, SkippedNotTarget)
			return true
		}
		var stop bool
		stop, err = w.execute(pos, id, wd)
		return !stop && err == nil
	})
	if err != nil {
		return nil, err
	}
	if w.out.State == Walking {
		w.out.State = Completed
	}
	return w.out, nil
}

// execute runs one visible widget. It reports whether the walk must stop.
func (w *walk) execute(pos layout.Position, id string, wd *layout.Widget) (bool, error) {
	ctx := w.ctx
	targeted := w.rq.Verb.Mutating()

	if targeted && !w.consumeToken() {
		w.ctrl.ClearAll()
		w.ctrl.Put(id, session.SlotMessage, MsgTokenMismatch)
		w.out.State = RedirectPending
		w.out.Redirect = w.rq.link(w.rq.Path)
		glog.V(1).Infof("dispatch %s: token mismatch for %s", w.page.UniqueID(), id)
		return true, nil
	}

	ctx.Reset(id, wd.Name)
	ctx.Preferences = w.d.Resolver.Resolve(wd.Preferences, w.env())
	pending := w.ctrl.TakeAll(id)
	if !targeted {
		// Messages are shown once; a submission only carries its own.
		ctx.Messages = widget.Messages{
			Message: pending.Message,
			Success: pending.Success,
			Warning: pending.Warning,
			Error:   pending.Error,
		}
	}
	ctx.RequestObject = pending.RequestObject
	for k, v := range pending.SharedValues {
		ctx.SharedValues[k] = v
	}

	w.out.report(id, wd.Name, Executed)
	res, err := w.d.Invoker.Invoke(wd.Name, w.rq.Verb, ctx)
	if err != nil {
		// Widget failures never abort the walk; the invoker has logged them.
		glog.V(2).Infof("dispatch %s: %s produced no result: %v", w.page.UniqueID(), id, err)
		res = nil
	}
	if res != nil {
		mergeMessages(&ctx.Messages, res.Messages)
		if res.RequestObject != nil {
			ctx.RequestObject = res.RequestObject
		}
		for k, v := range res.SharedValues {
			ctx.SharedValues[k] = v
		}
	}

	switch {
	case res != nil && res.Kind == widget.JSONDocument:
		w.ctrl.ClearAll()
		w.out.State = JSONShortCircuit
		w.out.JSON = res.JSON
		w.out.Tree = nil
		return true, nil
	case res != nil && res.Kind == widget.HandledExternally:
		w.ctrl.ClearAll()
		w.out.State = HandledExternally
		w.out.Tree = nil
		return true, nil
	case !targeted && res != nil && res.Kind == widget.Redirect:
		w.ctrl.ClearAll()
		w.out.State = RedirectPending
		w.out.Redirect = w.rq.link(res.RedirectURL)
		return true, nil
	case targeted:
		dest := ""
		if res != nil && res.Kind == widget.Redirect {
			dest = strings.TrimSpace(res.RedirectURL)
		}
		if dest == "" {
			dest = w.defaultRedirect()
		}
		w.ctrl.PutEntry(id, session.Entry{
			Message:       ctx.Messages.Message,
			Success:       ctx.Messages.Success,
			Warning:       ctx.Messages.Warning,
			Error:         ctx.Messages.Error,
			RequestObject: ctx.RequestObject,
			SharedValues:  ctx.SharedValues,
		})
		w.out.State = RedirectPending
		w.out.Redirect = w.rq.link(dest)
		return true, nil
	}

	if res == nil {
		return false, nil
	}
	w.tree.ApplyOverrides(res.Title, res.Description, res.Keywords)
	if !res.HasContent() {
		return false, nil
	}
	html, ok := w.content(id, res)
	if !ok {
		return false, nil
	}
	w.tree.Attach(pos.Section, pos.Column, render.Output{
		InstanceID: id,
		Name:       wd.Name,
		HTML:       template.HTML(html),
		CSSClass:   wd.CSSClass,
		HTMLID:     wd.HTMLID,
		Sticky:     wd.Sticky,
		HR:         wd.HR,
	})
	return false, nil
}

// consumeToken checks the submitted token and issues the next one, so a
// replayed form fails the check.
func (w *walk) consumeToken() bool {
	if w.rq.Session == nil {
		return false
	}
	if !w.rq.Session.ConsumeToken(w.ctx.Param(ParamToken)) {
		return false
	}
	w.ctx.FormToken = w.rq.Session.FormToken()
	return true
}

// content returns the widget's fragment, rendering its template when needed.
func (w *walk) content(id string, res *widget.Result) (string, bool) {
	if res.HTML != "" {
		return res.HTML, true
	}
	if w.d.Templates == nil {
		glog.Errorf("dispatch %s: %s wants template %s but no renderer is configured", w.page.UniqueID(), id, res.Template)
		return "", false
	}
	bindings := make(map[string]any, len(res.Bindings)+6)
	for k, v := range res.Bindings {
		bindings[k] = v
	}
	defaults := map[string]any{
		"instanceId":    id,
		"formToken":     w.ctx.FormToken,
		"contextPath":   w.ctx.ContextPath,
		"preferences":   w.ctx.Preferences,
		"messages":      w.ctx.Messages,
		"requestObject": w.ctx.RequestObject,
	}
	for k, v := range defaults {
		if _, ok := bindings[k]; !ok {
			bindings[k] = v
		}
	}
	s, err := w.d.Templates.Render(res.Template, bindings)
	if err != nil {
		glog.Errorf("dispatch %s: %s template %s: %v", w.page.UniqueID(), id, res.Template, err)
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func (w *walk) defaultRedirect() string {
	if tmpl := strings.TrimSpace(w.page.RedirectTemplate); tmpl != "" {
		if dest := strings.TrimSpace(w.d.Resolver.ResolveString(tmpl, w.env())); dest != "" {
			return dest
		}
	}
	return w.rq.Path
}

func (w *walk) env() prefs.Env {
	env := prefs.Env{
		Context:       w.ctx.Context(),
		ContextPath:   w.rq.ContextPath,
		PageLink:      w.page.Link,
		PageID:        w.page.UniqueID(),
		Params:        w.ctx.Params,
		CollectionKey: w.rq.PathParams.Collection,
		ItemKey:       w.rq.PathParams.Item,
	}
	if w.rq.User != nil {
		env.User = w.rq.User
	}
	return env
}

func mergeMessages(dst *widget.Messages, src widget.Messages) {
	if src.Message != "" {
		dst.Message = src.Message
	}
	if src.Success != "" {
		dst.Success = src.Success
	}
	if src.Warning != "" {
		dst.Warning = src.Warning
	}
	if src.Error != "" {
		dst.Error = src.Error
	}
}
