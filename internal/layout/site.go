package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Path placeholders a page link may declare.
const (
	ParamCollection = "{collection}"
	ParamItem       = "{item}"
)

// Site is the immutable set of containers served by one instance.
type Site struct {
	Header *Container
	Footer *Container

	pages    map[string]*Container // exact links
	patterns []*Container          // links with placeholders, most specific first
}

// PathParams are the values captured by a page link's placeholders.
type PathParams struct {
	Collection string
	Item       string
}

// NewSite indexes containers by kind and link.
func NewSite(containers []*Container) (*Site, error) {
	s := &Site{pages: map[string]*Container{}}
	var errs []error
	for _, c := range containers {
		if c == nil {
			continue
		}
		switch c.Kind {
		case KindHeader:
			if s.Header != nil {
				errs = append(errs, fmt.Errorf("layout: duplicate header (%s, %s)", s.Header.Name, c.Name))
				continue
			}
			s.Header = c
		case KindFooter:
			if s.Footer != nil {
				errs = append(errs, fmt.Errorf("layout: duplicate footer (%s, %s)", s.Footer.Name, c.Name))
				continue
			}
			s.Footer = c
		default:
			link := normalizeLink(c.Link)
			if link == "" {
				errs = append(errs, fmt.Errorf("layout: page %q has no link", c.Name))
				continue
			}
			c.Link = link
			if strings.Contains(link, "{") {
				if dup := s.patternFor(link); dup != nil {
					errs = append(errs, fmt.Errorf("layout: duplicate link %s (%s, %s)", link, dup.Name, c.Name))
					continue
				}
				s.patterns = append(s.patterns, c)
				continue
			}
			if dup, ok := s.pages[link]; ok {
				errs = append(errs, fmt.Errorf("layout: duplicate link %s (%s, %s)", link, dup.Name, c.Name))
				continue
			}
			s.pages[link] = c
		}
	}
	sort.SliceStable(s.patterns, func(i, j int) bool {
		return literalSegments(s.patterns[i].Link) > literalSegments(s.patterns[j].Link)
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Site) patternFor(link string) *Container {
	for _, p := range s.patterns {
		if p.Link == link {
			return p
		}
	}
	return nil
}

// Pages returns every page container, exact links first, sorted by link.
func (s *Site) Pages() []*Container {
	out := make([]*Container, 0, len(s.pages)+len(s.patterns))
	for _, c := range s.pages {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Link < out[j].Link })
	return append(out, s.patterns...)
}

// PageFor resolves a request path to a page.
func (s *Site) PageFor(path string) (*Container, PathParams, bool) {
	if s == nil {
		return nil, PathParams{}, false
	}
	path = normalizeLink(path)
	if c, ok := s.pages[path]; ok {
		return c, PathParams{}, true
	}
	got := splitLink(path)
	for _, c := range s.patterns {
		want := splitLink(c.Link)
		if len(want) != len(got) {
			continue
		}
		var pp PathParams
		ok := true
		for i, seg := range want {
			switch seg {
			case ParamCollection:
				pp.Collection = got[i]
			case ParamItem:
				pp.Item = got[i]
			default:
				if seg != got[i] {
					ok = false
				}
			}
			if !ok {
				break
			}
		}
		if ok {
			return c, pp, true
		}
	}
	return nil, PathParams{}, false
}

func normalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	if len(link) > 1 {
		link = strings.TrimRight(link, "/")
	}
	return link
}

func splitLink(link string) []string {
	link = strings.Trim(link, "/")
	if link == "" {
		return nil
	}
	return strings.Split(link, "/")
}

func literalSegments(link string) int {
	n := 0
	for _, seg := range splitLink(link) {
		if !strings.HasPrefix(seg, "{") {
			n++
		}
	}
	return n
}
