// Package format renders command results for stdout.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Write renders v as json (the default) or yaml.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "yaml", "yml":
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}

// WriteJSON writes v as one JSON document followed by a newline. Rendered
// fragments stay readable: <, > and & are not escaped.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
