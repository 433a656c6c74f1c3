package widgets

import (
	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

// likeButton counts likes on the current item; the action answers with JSON.
type likeButton struct {
	st *store.Store
}

func (w likeButton) Execute(ctx *widget.Context) (*widget.Result, error) {
	_, it, err := currentItem(ctx, w.st)
	if err != nil {
		return missing(ctx, err)
	}
	return widget.Template("likeButton", map[string]any{
		"item":  it,
		"label": ctx.Pref("label", "Like"),
	}), nil
}

func (w likeButton) Action(ctx *widget.Context) (*widget.Result, error) {
	_, it, err := currentItem(ctx, w.st)
	if err != nil {
		if store.IsNotFound(err) {
			return widget.JSONValue(map[string]any{"ok": false, "error": "not found"})
		}
		return nil, err
	}
	n, err := w.st.LikeItem(ctx.Context(), it.ID)
	if err != nil {
		return nil, err
	}
	// token lets a script post again without reloading the page.
	return widget.JSONValue(map[string]any{"ok": true, "item": it.UniqueID, "likes": n, "token": ctx.FormToken})
}
