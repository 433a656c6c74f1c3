package widgets

import (
	"github.com/golang/glog"

	"github.com/rajkowski/cms-platform-sub001/internal/model"
	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

// currentCollection is the collection named by the "collection" preference,
// else the one captured from the page link.
func currentCollection(ctx *widget.Context, st *store.Store) (*model.Collection, error) {
	key := ctx.Pref("collection", ctx.PathParams.Collection)
	if key == "" {
		return nil, store.NotFoundError{Kind: "collection", ID: key}
	}
	return st.FindCollection(ctx.Context(), key)
}

// currentItem resolves the item from the "item" preference or the page link.
func currentItem(ctx *widget.Context, st *store.Store) (*model.Collection, *model.Item, error) {
	c, err := currentCollection(ctx, st)
	if err != nil {
		return nil, nil, err
	}
	key := ctx.Pref("item", ctx.PathParams.Item)
	if key == "" {
		return c, nil, store.NotFoundError{Kind: "item", ID: key}
	}
	it, err := st.FindItem(ctx.Context(), c.ID, key)
	if err != nil {
		return c, nil, err
	}
	return c, it, nil
}

// missing turns a not-found lookup into "no content"; other errors propagate.
func missing(ctx *widget.Context, err error) (*widget.Result, error) {
	if store.IsNotFound(err) {
		glog.V(2).Infof("widget %s: %v", ctx.UniqueID, err)
		return widget.Empty(), nil
	}
	return nil, err
}

type itemList struct {
	st *store.Store
}

func (w itemList) Execute(ctx *widget.Context) (*widget.Result, error) {
	c, err := currentCollection(ctx, w.st)
	if err != nil {
		return missing(ctx, err)
	}
	term := ctx.SharedValues[SharedSearchTerm]
	items, err := w.st.ListItems(ctx.Context(), c.ID, term, ctx.PrefInt("limit", 20))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && !ctx.PrefBool("showWhenEmpty", true) {
		return widget.Empty(), nil
	}
	return widget.Template("itemList", map[string]any{
		"title":        ctx.Pref("title", c.Name),
		"collection":   c,
		"items":        items,
		"term":         term,
		"emptyMessage": ctx.Pref("emptyMessage", "No items found"),
		"itemLink":     ctx.Link("/" + c.UniqueID),
	}), nil
}

type itemDetails struct {
	st *store.Store
}

func (w itemDetails) Execute(ctx *widget.Context) (*widget.Result, error) {
	c, it, err := currentItem(ctx, w.st)
	if err != nil {
		return missing(ctx, err)
	}
	res := widget.Template("itemDetails", map[string]any{
		"collection": c,
		"item":       it,
		"showDelete": ctx.PrefBool("showDelete", false),
	})
	return res.WithPage(it.Name, it.Summary, ""), nil
}

func (w itemDetails) Delete(ctx *widget.Context) (*widget.Result, error) {
	c, it, err := currentItem(ctx, w.st)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, widget.Invalid("That item no longer exists")
		}
		return nil, err
	}
	if err := w.st.DeleteItem(ctx.Context(), it.ID); err != nil {
		if store.IsNotFound(err) {
			return nil, widget.Invalid("That item no longer exists")
		}
		return nil, err
	}
	glog.Infof("widget %s: deleted item %s from %s", ctx.UniqueID, it.ID, c.UniqueID)
	res := widget.Empty().WithSuccess("Deleted " + it.Name)
	if dest := ctx.Pref("deleteRedirect", ""); dest != "" {
		res.Kind = widget.Redirect
		res.RedirectURL = dest
	}
	return res, nil
}
