// Package widgets holds the built-in widget implementations and their templates.
package widgets

import (
	"github.com/rajkowski/cms-platform-sub001/internal/store"
	"github.com/rajkowski/cms-platform-sub001/internal/widget"
)

// Implementations returns every built-in widget keyed by its declared name.
func Implementations(st *store.Store) map[string]any {
	return map[string]any{
		"content":      content{},
		"searchForm":   searchForm{},
		"itemList":     itemList{st: st},
		"itemDetails":  itemDetails{st: st},
		"contactForm":  contactForm{st: st},
		"likeButton":   likeButton{st: st},
		"fileDownload": fileDownload{st: st},
		"dynamic":      dynamic{},
		"userGreeting": userGreeting{},
	}
}

// NewRegistry builds the registry of built-in widgets.
func NewRegistry(st *store.Store) (*widget.Registry, error) {
	return widget.NewRegistry(Implementations(st))
}
