package widgets

import "github.com/rajkowski/cms-platform-sub001/internal/widget"

// dynamic hands every verb to the widget named by its "widget" preference,
// so a layout can pick an implementation through preference markers.
type dynamic struct{}

func (dynamic) delegate(ctx *widget.Context) (*widget.Result, error) {
	name := ctx.Pref("widget", "")
	if name == "" {
		return widget.Empty(), nil
	}
	return widget.Delegate(name), nil
}

func (d dynamic) Execute(ctx *widget.Context) (*widget.Result, error) { return d.delegate(ctx) }
func (d dynamic) Post(ctx *widget.Context) (*widget.Result, error)    { return d.delegate(ctx) }
func (d dynamic) Delete(ctx *widget.Context) (*widget.Result, error)  { return d.delegate(ctx) }
func (d dynamic) Action(ctx *widget.Context) (*widget.Result, error)  { return d.delegate(ctx) }
