package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/perm"
	"github.com/rajkowski/cms-platform-sub001/internal/prefs"
	"github.com/rajkowski/cms-platform-sub001/internal/session"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

type calls struct{ names []string }

func (c *calls) add(s string) { c.names = append(c.names, s) }

type stubRenderer struct{}

func (stubRenderer) Render(name string, b map[string]any) (string, error) {
	if name == "broken" {
		return "", errors.New("boom")
	}
	return fmt.Sprintf("<%s id=%v>", name, b["instanceId"]), nil
}

func fixture(t *testing.T, c *calls) *Dispatcher {
	t.Helper()
	echo := func(label string) widget.Func {
		return func(ctx *widget.Context) (*widget.Result, error) {
			c.add(ctx.UniqueID + ":" + ctx.Verb.String())
			return widget.HTML("<p>" + label + " " + ctx.Pref("text", "") + "</p>"), nil
		}
	}
	reg, err := widget.NewRegistry(map[string]any{
		"text": widget.Funcs{
			Execute: echo("text"),
			Post: func(ctx *widget.Context) (*widget.Result, error) {
				c.add(ctx.UniqueID + ":post")
				if ctx.Param("name") == "" {
					return nil, widget.Invalid("Name is required")
				}
				return widget.Empty().WithSuccess("Thanks " + ctx.Param("name")).
					WithRequestObject(map[string]any{"name": ctx.Param("name")}), nil
			},
			Delete: func(ctx *widget.Context) (*widget.Result, error) {
				c.add(ctx.UniqueID + ":delete")
				return widget.RedirectTo("/done"), nil
			},
		},
		"json": widget.Funcs{
			Execute: func(ctx *widget.Context) (*widget.Result, error) {
				c.add(ctx.UniqueID + ":execute")
				return widget.JSON([]byte(`{"ok":true}`)), nil
			},
			Action: func(ctx *widget.Context) (*widget.Result, error) {
				c.add(ctx.UniqueID + ":action")
				return widget.JSONValue(map[string]int{"likes": 3})
			},
		},
		"tmpl": widget.Funcs{Execute: func(ctx *widget.Context) (*widget.Result, error) {
			c.add(ctx.UniqueID + ":execute")
			return widget.Template(ctx.Pref("template", "card"), nil).WithPage("Card title", "", ""), nil
		}},
		"panics": widget.Funcs{Execute: func(ctx *widget.Context) (*widget.Result, error) {
			c.add(ctx.UniqueID + ":execute")
			panic("kaboom")
		}},
		"redirect": widget.Funcs{Execute: func(ctx *widget.Context) (*widget.Result, error) {
			c.add(ctx.UniqueID + ":execute")
			return widget.RedirectTo("/elsewhere"), nil
		}},
		"messages": widget.Funcs{Execute: func(ctx *widget.Context) (*widget.Result, error) {
			c.add(ctx.UniqueID + ":execute")
			return widget.HTML("<p>" + ctx.Messages.Message + ctx.Messages.Success + ctx.Messages.Error + "</p>"), nil
		}},
	})
	require.NoError(t, err)
	return New(reg, &prefs.Resolver{}, stubRenderer{})
}

func page(widgets ...*layout.Widget) *layout.Container {
	return &layout.Container{
		Name: "home",
		Link: "/home",
		Sections: []*layout.Section{
			{Columns: []*layout.Column{{Widgets: widgets}}},
		},
	}
}

func w(name string, roles ...string) *layout.Widget {
	return &layout.Widget{Name: name, Access: perm.Access{Roles: roles}}
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.NewManager(nil, 0).Create()
	require.NoError(t, err)
	return s
}

func readRequest(user *model.User) *Request {
	return &Request{Context: context.Background(), Verb: widget.Read, Params: url.Values{}, Path: "/home", User: user}
}

func TestDispatch_ReadFiltersByRole(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	p := page(w("text"), w("text", "admin"))

	out, err := d.Dispatch(p, readRequest(&model.User{ID: "u1", RoleNames: []string{"users"}}))
	require.NoError(t, err)
	assert.Equal(t, Completed, out.State)
	assert.True(t, out.Tree.HasWidgets())
	assert.Equal(t, []string{"text1"}, out.Tree.InstanceIDs())
	st, _ := out.StateOf("text2")
	assert.Equal(t, SkippedByAccess, st)

	c = calls{}
	out, err = d.Dispatch(p, readRequest(&model.User{ID: "u2", RoleNames: []string{"Admin"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"text1", "text2"}, out.Tree.InstanceIDs())
}

func TestDispatch_SubtreeDeniedSkipsDescendants(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	p := &layout.Container{
		Name: "home", Link: "/home",
		Sections: []*layout.Section{
			{Access: perm.Access{Roles: []string{"admin"}}, Columns: []*layout.Column{{Widgets: []*layout.Widget{w("text"), w("text", "guest")}}}},
			{Columns: []*layout.Column{{Widgets: []*layout.Widget{w("text")}}}},
		},
	}
	out, err := d.Dispatch(p, readRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"text3:execute"}, c.names)
	assert.Equal(t, []string{"text3"}, out.Tree.InstanceIDs())
	assert.Len(t, out.Tree.Sections, 1)
	assert.Equal(t, 1, out.Tree.Sections[0].Index)
}

func TestDispatch_AllSkippedIsNotFound(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	_, err := d.Dispatch(page(w("text", "admin"), w("text", "admin")), readRequest(nil))
	var empty *EmptyRenderError
	require.ErrorAs(t, err, &empty)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, c.names)
}

func TestDispatch_PageDeniedClearsSession(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	p := page(w("text"))
	p.Access = perm.Access{Groups: []string{"staff"}}

	s := newSession(t)
	s.Controller.Put("text1", session.SlotMessage, "pending")
	rq := readRequest(nil)
	rq.Session = s

	_, err := d.Dispatch(p, rq)
	var denied *AuthorizationDeniedError
	require.ErrorAs(t, err, &denied)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 0, s.Controller.Len())
	assert.Empty(t, c.names)
}

func TestDispatch_TargetedRunsOnlyTarget(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	p := page(w("text"), w("text"), w("text"))
	s := newSession(t)

	rq := &Request{
		Verb:    widget.Post,
		Path:    "/home",
		Session: s,
		Params:  url.Values{ParamTarget: {"text2"}, ParamToken: {s.FormToken()}, "name": {"Ann"}},
	}
	out, err := d.Dispatch(p, rq)
	require.NoError(t, err)
	assert.Equal(t, []string{"text2:post"}, c.names)
	assert.Equal(t, []string{"text2"}, out.Executed())
	st, _ := out.StateOf("text1")
	assert.Equal(t, SkippedNotTarget, st)
	assert.Equal(t, RedirectPending, out.State)
	assert.Equal(t, "/home", out.Redirect)
	assert.True(t, out.Handled())

	e := s.Controller.TakeAll("text2")
	assert.Equal(t, "Thanks Ann", e.Success)
	assert.Equal(t, map[string]any{"name": "Ann"}, e.RequestObject)
}

func TestDispatch_TargetedValidationErrorRoundTrips(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	p := page(w("messages"), w("text"))
	s := newSession(t)

	rq := &Request{
		Verb:    widget.Post,
		Path:    "/home",
		Session: s,
		Params:  url.Values{ParamTarget: {"text2"}, ParamToken: {s.FormToken()}},
	}
	out, err := d.Dispatch(p, rq)
	require.NoError(t, err)
	assert.Equal(t, RedirectPending, out.State)

	v, ok := s.Controller.Take("text2", session.SlotErrorMessage)
	require.True(t, ok)
	assert.Equal(t, "Name is required", v)
}

func TestDispatch_ReplayedFormRunsOnce(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	p := page(w("text"))
	s := newSession(t)
	tok := s.FormToken()

	submit := func() *Outcome {
		rq := &Request{Verb: widget.Post, Path: "/home", Session: s,
			Params: url.Values{ParamTarget: {"text1"}, ParamToken: {tok}, "name": {"Ann"}}}
		out, err := d.Dispatch(p, rq)
		require.NoError(t, err)
		return out
	}

	out := submit()
	assert.Equal(t, RedirectPending, out.State)
	assert.NotEqual(t, tok, s.FormToken())
	s.Controller.ClearAll()

	out = submit()
	assert.Equal(t, RedirectPending, out.State)
	assert.Equal(t, []string{"text1:post"}, c.names, "the replay must not run the widget")
	v, ok := s.Controller.Take("text1", session.SlotMessage)
	require.True(t, ok)
	assert.Equal(t, MsgTokenMismatch, v)
}

func TestDispatch_SubmissionDropsPendingMessages(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.PutEntry("text1", session.Entry{Message: "shown before", Error: "old error"})

	rq := &Request{Verb: widget.Post, Path: "/home", Session: s,
		Params: url.Values{ParamTarget: {"text1"}, ParamToken: {s.FormToken()}, "name": {"Ann"}}}
	_, err := d.Dispatch(page(w("text")), rq)
	require.NoError(t, err)

	e := s.Controller.TakeAll("text1")
	assert.Empty(t, e.Message)
	assert.Empty(t, e.Error)
	assert.Equal(t, "Thanks Ann", e.Success)
}

func TestDispatch_SuccessfulReadClearsSession(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.PutEntry("text2", session.Entry{Message: "for the admin widget"})
	s.Controller.PutEntry("other9", session.Entry{Success: "from another page"})
	rq := readRequest(nil)
	rq.Session = s

	out, err := d.Dispatch(page(w("text"), w("text", "admin")), rq)
	require.NoError(t, err)
	assert.Equal(t, Completed, out.State)
	assert.Equal(t, 0, s.Controller.Len())
}

func TestDispatch_MissingOrUnknownTarget(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	p := page(w("text"))

	for _, target := range []string{"", "text9", "nope1"} {
		rq := &Request{Verb: widget.Delete, Path: "/home", Session: s,
			Params: url.Values{ParamTarget: {target}, ParamToken: {s.FormToken()}}}
		_, err := d.Dispatch(p, rq)
		var tnf *TargetNotFoundError
		require.ErrorAs(t, err, &tnf, "target %q", target)
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Empty(t, c.names)
}

func TestDispatch_TargetInsideDeniedSubtree(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.Put("text2", session.SlotMessage, "x")
	p := page(w("text"), w("text", "admin"))

	rq := &Request{Verb: widget.Delete, Path: "/home", Session: s,
		Params: url.Values{ParamTarget: {"text2"}, ParamToken: {s.FormToken()}}}
	_, err := d.Dispatch(p, rq)
	var denied *AuthorizationDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "widget text2", denied.Node)
	assert.Equal(t, 0, s.Controller.Len())
	assert.Empty(t, c.names)
}

func TestDispatch_StaleTokenRedirectsWithMessage(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.Put("other1", session.SlotMessage, "old")
	p := page(w("text"), w("text"))

	rq := &Request{Verb: widget.Post, Path: "/home", ContextPath: "/cms", Session: s,
		Params: url.Values{ParamTarget: {"text1"}, ParamToken: {"stale"}, "name": {"Ann"}}}
	out, err := d.Dispatch(p, rq)
	require.NoError(t, err)
	assert.Empty(t, c.names, "target must not run")
	assert.Equal(t, RedirectPending, out.State)
	assert.Equal(t, "/cms/home", out.Redirect)
	assert.False(t, out.Tree.HasWidgets())

	v, ok := s.Controller.Take("text1", session.SlotMessage)
	require.True(t, ok)
	assert.Equal(t, MsgTokenMismatch, v)
	assert.Equal(t, 0, s.Controller.Len(), "other widgets' data is cleared")
}

func TestDispatch_NoSessionMeansStaleToken(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	rq := &Request{Verb: widget.Post, Path: "/home",
		Params: url.Values{ParamTarget: {"text1"}, ParamToken: {""}}}
	out, err := d.Dispatch(page(w("text")), rq)
	require.NoError(t, err)
	assert.Equal(t, RedirectPending, out.State)
	assert.Empty(t, c.names)
}

func TestDispatch_JSONShortCircuit(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.Put("text9", session.SlotMessage, "x")
	rq := readRequest(nil)
	rq.Session = s

	out, err := d.Dispatch(page(w("text"), w("json"), w("text")), rq)
	require.NoError(t, err)
	assert.Equal(t, JSONShortCircuit, out.State)
	assert.JSONEq(t, `{"ok":true}`, string(out.JSON))
	assert.Nil(t, out.Tree)
	assert.Equal(t, []string{"text1:execute", "json2:execute"}, c.names)
	_, reached := out.StateOf("text3")
	assert.False(t, reached)
	assert.Equal(t, 0, s.Controller.Len())
}

func TestDispatch_ActionReturnsJSON(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	rq := &Request{Verb: widget.Action, Path: "/home", Session: s,
		Params: url.Values{ParamTarget: {"json1"}, ParamToken: {s.FormToken()}}}
	out, err := d.Dispatch(page(w("json")), rq)
	require.NoError(t, err)
	assert.Equal(t, JSONShortCircuit, out.State)
	assert.JSONEq(t, `{"likes":3}`, string(out.JSON))
}

func TestDispatch_ReadRedirectStopsWalk(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	rq := readRequest(nil)
	rq.ContextPath = "/cms"
	out, err := d.Dispatch(page(w("redirect"), w("text")), rq)
	require.NoError(t, err)
	assert.Equal(t, RedirectPending, out.State)
	assert.Equal(t, "/cms/elsewhere", out.Redirect)
	assert.Equal(t, []string{"redirect1:execute"}, c.names)
}

func TestDispatch_PanicDoesNotAbortSiblings(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	out, err := d.Dispatch(page(w("panics"), w("text")), readRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"text2"}, out.Tree.InstanceIDs())
	assert.Equal(t, []string{"panics1", "text2"}, out.Executed())
}

func TestDispatch_TemplatesAndOverrides(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	broken := w("tmpl")
	broken.Preferences = layout.Preferences{{Name: "template", Value: "broken"}}
	out, err := d.Dispatch(page(w("tmpl"), broken), readRequest(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"tmpl1"}, out.Tree.InstanceIDs())
	assert.Equal(t, "<card id=tmpl1>", string(out.Tree.Sections[0].Columns[0].Widgets[0].HTML))
	assert.Equal(t, "Card title", out.Tree.Title)
}

func TestDispatch_PendingMessagesReachWidgetOnce(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.PutEntry("messages1", session.Entry{Success: "Saved"})
	rq := readRequest(nil)
	rq.Session = s

	out, err := d.Dispatch(page(w("messages")), rq)
	require.NoError(t, err)
	assert.Equal(t, "<p>Saved</p>", string(out.Tree.Sections[0].Columns[0].Widgets[0].HTML))

	out, err = d.Dispatch(page(w("messages")), rq)
	require.NoError(t, err)
	assert.Equal(t, "<p></p>", string(out.Tree.Sections[0].Columns[0].Widgets[0].HTML))
}

func TestDispatch_PreferencesResolved(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	tw := w("text")
	tw.Preferences = layout.Preferences{{Name: "text", Value: "${request.q:html}"}}
	rq := readRequest(nil)
	rq.Params.Set("q", "<b>")
	out, err := d.Dispatch(page(tw), rq)
	require.NoError(t, err)
	assert.Equal(t, "<p>text &lt;b&gt;</p>", string(out.Tree.Sections[0].Columns[0].Widgets[0].HTML))
}

func TestDispatch_RedirectTemplate(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	p := page(w("text"))
	p.RedirectTemplate = "/list?from=${webPage.uniqueId}"

	rq := &Request{Verb: widget.Post, Path: "/home", Session: s,
		Params: url.Values{ParamTarget: {"text1"}, ParamToken: {s.FormToken()}, "name": {"x"}}}
	out, err := d.Dispatch(p, rq)
	require.NoError(t, err)
	assert.Equal(t, "/list?from=home", out.Redirect)

	// A widget-chosen destination wins.
	rq.Verb = widget.Delete
	rq.Params.Set(ParamToken, s.FormToken())
	out, err = d.Dispatch(p, rq)
	require.NoError(t, err)
	assert.Equal(t, "/done", out.Redirect)
}

func TestRegion_DeniedOrEmptyIsNil(t *testing.T) {
	var c calls
	d := fixture(t, &c)
	s := newSession(t)
	s.Controller.Put("x1", session.SlotMessage, "keep")

	header := page(w("text"))
	header.Kind = layout.KindHeader
	rq := &Request{Verb: widget.Post, Path: "/home", Session: s, Params: url.Values{}}

	tree := d.Region(header, rq)
	require.NotNil(t, tree)
	assert.Equal(t, []string{"text1"}, tree.InstanceIDs())

	header.Access = perm.Access{Roles: []string{"admin"}}
	assert.Nil(t, d.Region(header, rq))
	assert.Equal(t, 1, s.Controller.Len())
	assert.True(t, strings.HasPrefix(c.names[0], "text1:execute"))
}
