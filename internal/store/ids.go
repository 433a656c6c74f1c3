package store

import (
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// newID returns prefix-<ulid>, lowercased so ids read well in URLs.
func newID(prefix string) string {
	return prefix + "-" + strings.ToLower(ulid.Make().String())
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a display name into a lowercase, dash-separated unique id.
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}
