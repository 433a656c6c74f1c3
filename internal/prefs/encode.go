package prefs

import (
	"bytes"
	"encoding/json"
	"html"
	"strings"
)

// Encodings accepted after a request parameter name, e.g. ${request.q:html}.
const (
	EncodingHTML   = "html"
	EncodingToHTML = "toHtml"
	EncodingJSON   = "json"
	EncodingSQL    = "sql"
)

// Encode applies a named encoding. Unknown or empty encodings return v unchanged.
func Encode(v, encoding string) string {
	switch strings.TrimSpace(encoding) {
	case EncodingHTML:
		return html.EscapeString(v)
	case EncodingToHTML:
		return TextToHTML(v)
	case EncodingJSON:
		return jsonString(v)
	case EncodingSQL:
		return strings.ReplaceAll(v, "'", "''")
	default:
		return v
	}
}

// TextToHTML escapes plain text and keeps its line structure.
// Blank lines separate paragraphs; single newlines become <br />.
func TextToHTML(v string) string {
	v = strings.ReplaceAll(v, "\r\n", "\n")
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	paras := strings.Split(v, "\n\n")
	var b strings.Builder
	n := 0
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if n > 0 {
			b.WriteString("\n")
		}
		n++
		lines := strings.Split(p, "\n")
		for i, l := range lines {
			lines[i] = html.EscapeString(strings.TrimRight(l, " \t"))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br />"))
		b.WriteString("</p>")
	}
	return b.String()
}

// jsonString returns the body of a JSON string literal (no surrounding quotes).
func jsonString(v string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	out := strings.TrimSuffix(buf.String(), "\n")
	return strings.TrimSuffix(strings.TrimPrefix(out, `"`), `"`)
}
