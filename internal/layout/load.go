package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// Parse decodes one or more YAML documents, each describing a container.
func Parse(b []byte) ([]*Container, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	var out []*Container
	for {
		var c Container
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if c.Kind == "" {
			c.Kind = KindPage
		}
		c.Kind = Kind(strings.ToLower(strings.TrimSpace(string(c.Kind))))
		switch c.Kind {
		case KindPage, KindHeader, KindFooter:
		default:
			return nil, fmt.Errorf("layout: %s: unknown kind %q", c.Name, c.Kind)
		}
		if strings.TrimSpace(c.Name) == "" {
			c.Name = strings.Trim(normalizeLink(c.Link), "/")
		}
		out = append(out, &c)
	}
	return out, nil
}

// Load reads every *.yml / *.yaml file in dir (non-recursive) and builds a Site.
func Load(dir string) (*Site, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("layout: dir is empty")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yml", ".yaml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var all []*Container
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		cs, err := Parse(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n, err)
		}
		all = append(all, cs...)
	}
	return NewSite(all)
}

// Validate reports widgets whose declared name has no implementation.
func Validate(s *Site, known func(name string) bool) error {
	if s == nil {
		return errors.New("layout: nil site")
	}
	var errs []error
	check := func(c *Container) {
		c.Walk(func(pos Position, _ *Section, _ *Column, w *Widget) bool {
			name := strings.TrimSpace(w.Name)
			if name == "" {
				errs = append(errs, fmt.Errorf("%s: widget #%d has no name", c.Name, pos.Ordinal))
				return true
			}
			if last := name[len(name)-1]; last >= '0' && last <= '9' {
				// name+ordinal would be ambiguous: w1 at 1 and w at 11 are both w11.
				errs = append(errs, fmt.Errorf("%s: widget name %q must not end in a digit", c.Name, name))
			}
			if known != nil && !known(name) {
				errs = append(errs, fmt.Errorf("%s: unknown widget %q (%s)", c.Name, name, w.InstanceID(pos.Ordinal)))
			}
			return true
		})
	}
	if s.Header != nil {
		check(s.Header)
	}
	for _, c := range s.Pages() {
		check(c)
	}
	if s.Footer != nil {
		check(s.Footer)
	}
	return errors.Join(errs...)
}
