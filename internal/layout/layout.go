// Package layout models page definitions: containers of sections, columns and widgets.
//
// A loaded tree is shared by every request and must be treated as read-only.
package layout

import (
	"strconv"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/perm"
)

type Kind string

const (
	KindPage   Kind = "page"
	KindHeader Kind = "header"
	KindFooter Kind = "footer"
)

// Container is the root of a layout tree (a page, the site header or the site footer).
type Container struct {
	Kind        Kind   `yaml:"kind,omitempty" json:"kind"`
	Name        string `yaml:"name" json:"name"`
	Link        string `yaml:"link,omitempty" json:"link,omitempty"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	CSSClass    string `yaml:"class,omitempty" json:"class,omitempty"`

	// RedirectTemplate is where a targeted request lands when the widget
	// did not pick a destination, e.g. "/directory/${collection.uniqueId}".
	RedirectTemplate string `yaml:"redirect,omitempty" json:"redirect,omitempty"`

	perm.Access `yaml:",inline"`

	Sections []*Section `yaml:"sections" json:"sections"`
}

type Section struct {
	CSSClass    string `yaml:"class,omitempty" json:"class,omitempty"`
	HTMLID      string `yaml:"id,omitempty" json:"id,omitempty"`
	perm.Access `yaml:",inline"`

	Columns []*Column `yaml:"columns" json:"columns"`
}

type Column struct {
	CSSClass    string `yaml:"class,omitempty" json:"class,omitempty"`
	perm.Access `yaml:",inline"`

	Widgets []*Widget `yaml:"widgets" json:"widgets"`
}

type Widget struct {
	// Name is the declared widget name used to resolve the implementation.
	Name        string      `yaml:"name" json:"name"`
	Preferences Preferences `yaml:"preferences,omitempty" json:"preferences,omitempty"`
	perm.Access `yaml:",inline"`

	CSSClass string `yaml:"class,omitempty" json:"class,omitempty"`
	HTMLID   string `yaml:"id,omitempty" json:"id,omitempty"`
	Sticky   bool   `yaml:"sticky,omitempty" json:"sticky,omitempty"`
	HR       bool   `yaml:"hr,omitempty" json:"hr,omitempty"`
}

// InstanceID is the per-render identity of a widget: declared name + 1-based ordinal.
func (w *Widget) InstanceID(ordinal int) string {
	return strings.TrimSpace(w.Name) + strconv.Itoa(ordinal)
}

// Position locates a widget inside its container.
type Position struct {
	Section int
	Column  int
	Ordinal int // 1-based, document order over the whole container
}

// Walk visits every widget in document order. Returning false stops the walk.
//
// Ordinals are positional: widgets under subtrees a given user cannot see are
// still counted, so an instance id addresses the same widget for everyone.
func (c *Container) Walk(fn func(pos Position, s *Section, col *Column, w *Widget) bool) {
	if c == nil {
		return
	}
	ordinal := 0
	for si, s := range c.Sections {
		if s == nil {
			continue
		}
		for ci, col := range s.Columns {
			if col == nil {
				continue
			}
			for _, w := range col.Widgets {
				if w == nil {
					continue
				}
				ordinal++
				if !fn(Position{Section: si, Column: ci, Ordinal: ordinal}, s, col, w) {
					return
				}
			}
		}
	}
}

// FindInstance locates the widget whose instance id equals id.
func (c *Container) FindInstance(id string) (Position, *Widget, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Position{}, nil, false
	}
	var (
		found    *Widget
		foundPos Position
	)
	c.Walk(func(pos Position, _ *Section, _ *Column, w *Widget) bool {
		if w.InstanceID(pos.Ordinal) == id {
			found, foundPos = w, pos
			return false
		}
		return true
	})
	return foundPos, found, found != nil
}

// WidgetCount returns the number of widgets declared in the container.
func (c *Container) WidgetCount() int {
	n := 0
	c.Walk(func(Position, *Section, *Column, *Widget) bool {
		n++
		return true
	})
	return n
}

// UniqueID is the page identity exposed as ${webPage.uniqueId}.
func (c *Container) UniqueID() string {
	if c == nil {
		return ""
	}
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return strings.Trim(strings.TrimSpace(c.Link), "/")
}
