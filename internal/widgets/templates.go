package widgets

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates renders the built-in widget templates. Each file defines one
// template named after the widget that uses it.
type Templates struct {
	tmpl *template.Template
}

func NewTemplates() (*Templates, error) {
	tmpl, err := template.New("widgets").Funcs(template.FuncMap{
		"trim":  strings.TrimSpace,
		"field": field,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Templates{tmpl: tmpl}, nil
}

func (t *Templates) Render(name string, bindings map[string]any) (string, error) {
	if t.tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("widgets: unknown template %q", name)
	}
	var b bytes.Buffer
	if err := t.tmpl.ExecuteTemplate(&b, name, bindings); err != nil {
		return "", err
	}
	return b.String(), nil
}

// field reads a form value back out of a request object, which is a
// map[string]string in memory and a map[string]any after a session restore.
func field(obj any, name string) string {
	switch m := obj.(type) {
	case map[string]string:
		return m[name]
	case map[string]any:
		if s, ok := m[name].(string); ok {
			return s
		}
	}
	return ""
}
