package widgets

import (
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

// SharedSearchTerm is the shared value a search form publishes for result widgets.
const SharedSearchTerm = "searchTerm"

// searchForm renders a search box. Posting it stores the term as a shared
// value, which comes back after the redirect and is picked up by itemList.
type searchForm struct{}

func (searchForm) Execute(ctx *widget.Context) (*widget.Result, error) {
	term := ctx.SharedValues[SharedSearchTerm]
	if q := ctx.Param(ctx.Pref("param", "q")); q != "" {
		term = q
	}
	res := widget.Template("searchForm", map[string]any{
		"title":       ctx.Pref("title", ""),
		"placeholder": ctx.Pref("placeholder", "Search"),
		"term":        term,
		"action":      ctx.Link(ctx.RequestPath),
	})
	if term != "" {
		res.WithSharedValue(SharedSearchTerm, term)
	}
	return res, nil
}

func (searchForm) Post(ctx *widget.Context) (*widget.Result, error) {
	term := strings.TrimSpace(ctx.Param(ctx.Pref("param", "q")))
	if term == "" {
		return widget.Empty(), nil
	}
	if n := ctx.PrefInt("maxLength", 100); len(term) > n {
		return nil, widget.Invalid("Search terms are limited to %d characters", n)
	}
	res := widget.Empty().WithSharedValue(SharedSearchTerm, term)
	if dest := ctx.Pref("resultsLink", ""); dest != "" {
		res.Kind = widget.Redirect
		res.RedirectURL = dest
	}
	return res, nil
}
