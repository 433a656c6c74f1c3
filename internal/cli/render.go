package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rajkowski/cms-platform-sub001/internal/dispatch"
	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/prefs"
	"github.com/rajkowski/cms-platform-sub001/internal/render"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
	"github.com/rajkowski/cms-platform-sub001/internal/widgets"
)

type renderedWidget struct {
	InstanceID string `json:"instanceId"`
	Name       string `json:"name"`
	Section    int    `json:"section"`
	Column     int    `json:"column"`
	HTML       string `json:"html"`
}

type renderedPage struct {
	Page        string                  `json:"page"`
	Link        string                  `json:"link"`
	State       dispatch.State          `json:"state"`
	Title       string                  `json:"title,omitempty"`
	Description string                  `json:"description,omitempty"`
	Keywords    string                  `json:"keywords,omitempty"`
	User        string                  `json:"user,omitempty"`
	Widgets     []dispatch.WidgetReport `json:"widgets"`
	Output      []renderedWidget        `json:"output"`
	Header      []renderedWidget        `json:"header,omitempty"`
	Footer      []renderedWidget        `json:"footer,omitempty"`
}

func flatten(t *render.Tree) []renderedWidget {
	if t == nil {
		return nil
	}
	var out []renderedWidget
	for _, s := range t.Sections {
		for _, c := range s.Columns {
			for _, w := range c.Widgets {
				out = append(out, renderedWidget{
					InstanceID: w.InstanceID,
					Name:       w.Name,
					Section:    s.Index,
					Column:     c.Index,
					HTML:       string(w.HTML),
				})
			}
		}
	}
	return out
}

func parseParams(kvs []string) (url.Values, error) {
	v := url.Values{}
	for _, kv := range kvs {
		k, val, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q (expected key=value)", kv)
		}
		v.Add(k, val)
	}
	return v, nil
}

func newRenderCmd(app *App) *cobra.Command {
	var (
		username string
		params   []string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "render <path>",
		Short: "Render a page as a read request and print the result",
		Args:  cobra.ExactArgs(1),
		Example: strings.TrimSpace(`
cms render /about
cms render /directory --param q=bakery
cms render /admin --user admin --pretty
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			site, err := loadSite(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			page, pp, ok := site.PageFor(args[0])
			if !ok {
				return writeErr(cmd, fmt.Errorf("no page for %s", args[0]))
			}
			q, err := parseParams(params)
			if err != nil {
				return writeErr(cmd, err)
			}

			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			var user *model.User
			if u := strings.TrimSpace(username); u != "" {
				user, err = st.FindUserByUsername(ctx, u)
				if err != nil {
					return writeErr(cmd, err)
				}
			}

			reg, err := widgets.NewRegistry(st)
			if err != nil {
				return writeErr(cmd, err)
			}
			tmpl, err := widgets.NewTemplates()
			if err != nil {
				return writeErr(cmd, err)
			}
			d := dispatch.New(reg, &prefs.Resolver{
				Platform: model.Platform{Name: name, Version: Version},
				Entities: st,
			}, tmpl)

			rq := &dispatch.Request{
				Context:    ctx,
				Verb:       widget.Read,
				Params:     q,
				Path:       args[0],
				PathParams: pp,
				User:       user,
				Attributes: map[string]any{},
			}
			out, err := d.Dispatch(page, rq)
			if err != nil {
				if errors.Is(err, dispatch.ErrNotFound) {
					return writeErr(cmd, fmt.Errorf("%s: %w", args[0], err))
				}
				return writeErr(cmd, err)
			}

			res := renderedPage{
				Page:    page.UniqueID(),
				Link:    page.Link,
				State:   out.State,
				Widgets: out.Widgets,
				Output:  flatten(out.Tree),
				Header:  flatten(d.Region(site.Header, rq)),
				Footer:  flatten(d.Region(site.Footer, rq)),
			}
			if user != nil {
				res.User = user.Username
			}
			if out.Tree != nil {
				res.Title = out.Tree.Title
				res.Description = out.Tree.Description
				res.Keywords = out.Tree.Keywords
			}
			hints := []string{}
			if out.State == dispatch.RedirectPending {
				hints = append(hints, "cms render "+out.Redirect)
			}
			return writeOut(cmd, app, map[string]any{"data": res, "_hints": hints})
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Render as this username (default: anonymous)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Request parameter key=value (repeatable)")
	cmd.Flags().StringVar(&name, "name", envOr("CMS_NAME", "CMS"), "Platform name exposed as ${platform.name}")
	return cmd
}
