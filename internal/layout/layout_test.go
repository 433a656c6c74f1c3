package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const samplePage = `
name: directory
link: /directory/{collection}
title: Directory
redirect: /directory/${collection.uniqueId}
sections:
  - class: hero
    columns:
      - class: col-12
        widgets:
          - name: content
            preferences:
              zeta: last
              alpha: first
              count: 3
          - name: itemList
            roles: [admin]
  - groups: [staff]
    columns:
      - widgets:
          - name: content
`

func TestParse_PreservesPreferenceOrderAndAccess(t *testing.T) {
	cs, err := Parse([]byte(samplePage))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cs) != 1 {
		t.Fatalf("expected 1 container, got %d", len(cs))
	}
	c := cs[0]
	if c.Kind != KindPage {
		t.Fatalf("expected default kind page, got %q", c.Kind)
	}
	w := c.Sections[0].Columns[0].Widgets[0]
	var names []string
	for _, p := range w.Preferences {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "zeta,alpha,count" {
		t.Fatalf("expected declaration order, got %v", names)
	}
	if v, _ := w.Preferences.Get("count"); v != "3" {
		t.Fatalf("expected scalar preference as string, got %q", v)
	}
	if got := c.Sections[0].Columns[0].Widgets[1].Roles; len(got) != 1 || got[0] != "admin" {
		t.Fatalf("expected inline roles on widget, got %v", got)
	}
	if got := c.Sections[1].Groups; len(got) != 1 || got[0] != "staff" {
		t.Fatalf("expected inline groups on section, got %v", got)
	}
}

func TestWalk_AssignsPositionalInstanceIDs(t *testing.T) {
	cs, err := Parse([]byte(samplePage))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var ids []string
	cs[0].Walk(func(pos Position, _ *Section, _ *Column, w *Widget) bool {
		ids = append(ids, w.InstanceID(pos.Ordinal))
		return true
	})
	if strings.Join(ids, ",") != "content1,itemList2,content3" {
		t.Fatalf("unexpected instance ids: %v", ids)
	}

	pos, w, ok := cs[0].FindInstance("content3")
	if !ok || w.Name != "content" || pos.Section != 1 || pos.Column != 0 {
		t.Fatalf("expected content3 in section 1, got ok=%v pos=%+v", ok, pos)
	}
	if _, _, ok := cs[0].FindInstance("content9"); ok {
		t.Fatalf("expected unknown instance id to be missing")
	}
	if n := cs[0].WidgetCount(); n != 3 {
		t.Fatalf("expected 3 widgets, got %d", n)
	}
}

func TestSite_PageForExactAndPattern(t *testing.T) {
	home := &Container{Kind: KindPage, Name: "home", Link: "/"}
	about := &Container{Kind: KindPage, Name: "about", Link: "about/"}
	dir := &Container{Kind: KindPage, Name: "directory", Link: "/directory/{collection}"}
	item := &Container{Kind: KindPage, Name: "show", Link: "/directory/{collection}/{item}"}
	newPage := &Container{Kind: KindPage, Name: "new", Link: "/directory/{collection}/new"}
	hdr := &Container{Kind: KindHeader, Name: "header"}

	s, err := NewSite([]*Container{home, about, dir, item, newPage, hdr})
	if err != nil {
		t.Fatalf("new site: %v", err)
	}
	if s.Header != hdr {
		t.Fatalf("expected header to be indexed")
	}

	if c, _, ok := s.PageFor("/about"); !ok || c != about {
		t.Fatalf("expected normalized exact match for /about")
	}
	if c, _, ok := s.PageFor(""); !ok || c != home {
		t.Fatalf("expected empty path to map to /")
	}
	c, pp, ok := s.PageFor("/directory/parks")
	if !ok || c != dir || pp.Collection != "parks" {
		t.Fatalf("expected collection page, got ok=%v c=%v pp=%+v", ok, c, pp)
	}
	c, pp, ok = s.PageFor("/directory/parks/new")
	if !ok || c != newPage || pp.Collection != "parks" {
		t.Fatalf("expected literal segment to win over {item}, got %v %+v", c, pp)
	}
	c, pp, ok = s.PageFor("/directory/parks/central")
	if !ok || c != item || pp.Item != "central" {
		t.Fatalf("expected item page, got %v %+v", c, pp)
	}
	if _, _, ok := s.PageFor("/missing"); ok {
		t.Fatalf("expected /missing to be unmatched")
	}
}

func TestNewSite_RejectsDuplicates(t *testing.T) {
	_, err := NewSite([]*Container{
		{Kind: KindPage, Name: "a", Link: "/x"},
		{Kind: KindPage, Name: "b", Link: "/x/"},
		{Kind: KindPage, Name: "c"},
	})
	if err == nil {
		t.Fatalf("expected duplicate/missing link errors")
	}
	if !strings.Contains(err.Error(), "duplicate link /x") || !strings.Contains(err.Error(), "has no link") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_ReadsDirectoryAndValidates(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "10-home.yml"), []byte("name: home\nlink: /\nsections:\n  - columns:\n      - widgets:\n          - name: content\n          - name: bogus\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "00-header.yaml"), []byte("kind: header\nname: header\nsections: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Header == nil || len(s.Pages()) != 1 {
		t.Fatalf("expected header + 1 page, got header=%v pages=%d", s.Header, len(s.Pages()))
	}

	err = Validate(s, func(name string) bool { return name == "content" })
	if err == nil || !strings.Contains(err.Error(), `unknown widget "bogus" (bogus2)`) {
		t.Fatalf("expected unknown widget error, got %v", err)
	}
}

func TestValidate_RejectsNamesEndingInDigit(t *testing.T) {
	ws := []*Widget{{Name: "w1"}}
	for i := 0; i < 10; i++ {
		ws = append(ws, &Widget{Name: "w"})
	}
	c := &Container{Kind: KindPage, Name: "home", Link: "/", Sections: []*Section{{Columns: []*Column{{Widgets: ws}}}}}
	s, err := NewSite([]*Container{c})
	if err != nil {
		t.Fatalf("site: %v", err)
	}
	err = Validate(s, nil)
	if err == nil || !strings.Contains(err.Error(), `widget name "w1" must not end in a digit`) {
		t.Fatalf("expected ambiguous name error, got %v", err)
	}
	if strings.Count(err.Error(), "must not end in a digit") != 1 {
		t.Fatalf("expected only w1 to be reported, got %v", err)
	}
}

func TestPreferences_MarshalJSONKeepsOrder(t *testing.T) {
	p := Preferences{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"b":"2","a":"1"}` {
		t.Fatalf("unexpected json: %s", b)
	}
}
