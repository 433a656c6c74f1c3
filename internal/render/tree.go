// Package render holds the subset of a layout that produced output for one request.
package render

import (
	"html/template"
	"strings"

	"github.com/rajkowski/cms-platform-sub001/internal/layout"
)

// Output is one widget's rendered fragment plus its display hints.
type Output struct {
	InstanceID string
	Name       string
	HTML       template.HTML
	CSSClass   string
	HTMLID     string
	Sticky     bool
	HR         bool
}

type Column struct {
	Index    int
	CSSClass string
	Widgets  []Output
}

type Section struct {
	Index    int
	CSSClass string
	HTMLID   string
	Columns  []*Column
}

// Tree parallels a layout.Container but only contains sections and columns that
// received at least one widget. It is owned by a single request.
type Tree struct {
	Container *layout.Container

	Title       string
	Description string
	Keywords    string
	CSSClass    string

	Sections []*Section

	widgets int
}

func NewTree(c *layout.Container) *Tree {
	t := &Tree{Container: c}
	if c != nil {
		t.Title = c.Title
		t.Description = c.Description
		t.Keywords = c.Keywords
		t.CSSClass = c.CSSClass
	}
	return t
}

// Attach adds a widget's output under its section and column, creating those
// nodes the first time they receive content.
func (t *Tree) Attach(sectionIdx, columnIdx int, out Output) {
	sec := t.section(sectionIdx)
	col := sec.column(t.layoutColumn(sectionIdx, columnIdx), columnIdx)
	col.Widgets = append(col.Widgets, out)
	t.widgets++
}

func (t *Tree) HasWidgets() bool { return t != nil && t.widgets > 0 }

func (t *Tree) WidgetCount() int {
	if t == nil {
		return 0
	}
	return t.widgets
}

// ApplyOverrides replaces page metadata with non-blank widget-provided values.
func (t *Tree) ApplyOverrides(title, description, keywords string) {
	if s := strings.TrimSpace(title); s != "" {
		t.Title = s
	}
	if s := strings.TrimSpace(description); s != "" {
		t.Description = s
	}
	if s := strings.TrimSpace(keywords); s != "" {
		t.Keywords = s
	}
}

// InstanceIDs lists rendered widget ids in document order.
func (t *Tree) InstanceIDs() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, s := range t.Sections {
		for _, c := range s.Columns {
			for _, w := range c.Widgets {
				out = append(out, w.InstanceID)
			}
		}
	}
	return out
}

func (t *Tree) section(idx int) *Section {
	if n := len(t.Sections); n > 0 && t.Sections[n-1].Index == idx {
		return t.Sections[n-1]
	}
	for _, s := range t.Sections {
		if s.Index == idx {
			return s
		}
	}
	s := &Section{Index: idx}
	if ls := t.layoutSection(idx); ls != nil {
		s.CSSClass = ls.CSSClass
		s.HTMLID = ls.HTMLID
	}
	t.Sections = append(t.Sections, s)
	return s
}

func (s *Section) column(lc *layout.Column, idx int) *Column {
	if n := len(s.Columns); n > 0 && s.Columns[n-1].Index == idx {
		return s.Columns[n-1]
	}
	for _, c := range s.Columns {
		if c.Index == idx {
			return c
		}
	}
	c := &Column{Index: idx}
	if lc != nil {
		c.CSSClass = lc.CSSClass
	}
	s.Columns = append(s.Columns, c)
	return c
}

func (t *Tree) layoutSection(idx int) *layout.Section {
	if t.Container == nil || idx < 0 || idx >= len(t.Container.Sections) {
		return nil
	}
	return t.Container.Sections[idx]
}

func (t *Tree) layoutColumn(sectionIdx, columnIdx int) *layout.Column {
	ls := t.layoutSection(sectionIdx)
	if ls == nil || columnIdx < 0 || columnIdx >= len(ls.Columns) {
		return nil
	}
	return ls.Columns[columnIdx]
}
