package widget

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/perm"
)

// Verb is the semantic verb of a request.
type Verb int

const (
	Read Verb = iota
	Post
	Delete
	Action
)

var verbNames = [...]string{"execute", "post", "delete", "action"}

// String returns the lifecycle entry point name for the verb.
func (v Verb) String() string {
	if v < 0 || int(v) >= len(verbNames) {
		return "unknown"
	}
	return verbNames[v]
}

// Mutating reports whether only the targeted widget may run.
func (v Verb) Mutating() bool { return v != Read }

// Messages are the user-facing notices a widget can carry across a redirect.
type Messages struct {
	Message string `json:"message,omitempty"`
	Success string `json:"success,omitempty"`
	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (m Messages) Empty() bool {
	return m.Message == "" && m.Success == "" && m.Warning == "" && m.Error == ""
}

// Context is the per-request state handed to widgets.
// It is never shared between requests.
type Context struct {
	ctx context.Context

	Verb        Verb
	Params      url.Values
	Header      http.Header
	User        *model.User
	FormToken   string
	ContextPath string
	RequestPath string

	Page       *layout.Container
	PathParams layout.PathParams

	// Attributes live for the whole walk and let one widget hand values to the next.
	Attributes map[string]any
	// SharedValues are opted into by cooperating widgets (e.g. a search box and its
	// results) and round-trip across the redirect after a targeted request.
	SharedValues map[string]string

	// Response is set when the transport lets widgets write the response themselves.
	Response http.ResponseWriter

	// Per-widget slots, reset before every widget.
	UniqueID      string
	WidgetName    string
	Preferences   map[string]string
	Messages      Messages
	RequestObject any
}

// NewContext returns a Context with its maps initialized.
func NewContext(ctx context.Context, verb Verb) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{
		ctx:          ctx,
		Verb:         verb,
		Params:       url.Values{},
		Header:       http.Header{},
		Attributes:   map[string]any{},
		SharedValues: map[string]string{},
		Preferences:  map[string]string{},
	}
}

// Context returns the request's context.Context.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Identity is the access-control view of the current user.
func (c *Context) Identity() perm.Identity {
	if c.User == nil {
		return perm.Anonymous
	}
	return c.User
}

// Reset clears the per-widget slots before the next widget runs.
func (c *Context) Reset(uniqueID, name string) {
	c.UniqueID = uniqueID
	c.WidgetName = name
	c.Preferences = map[string]string{}
	c.Messages = Messages{}
	c.RequestObject = nil
}

func (c *Context) Param(name string) string {
	if c.Params == nil {
		return ""
	}
	return strings.TrimSpace(c.Params.Get(name))
}

func (c *Context) ParamInt(name string, def int) int {
	if n, err := strconv.Atoi(c.Param(name)); err == nil {
		return n
	}
	return def
}

// Pref returns a resolved preference, or def when it is missing or blank.
func (c *Context) Pref(name, def string) string {
	if v, ok := c.Preferences[name]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func (c *Context) PrefInt(name string, def int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(c.Pref(name, ""))); err == nil {
		return n
	}
	return def
}

func (c *Context) PrefBool(name string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(c.Pref(name, ""))); err == nil {
		return b
	}
	return def
}

// Link joins the context path and a site-relative path.
func (c *Context) Link(path string) string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.ContextPath, "/") + path
}
