package layout

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"
)

// Preference is a single raw (unresolved) widget preference.
type Preference struct {
	Name  string
	Value string
}

// Preferences keeps declaration order, which matters to some widgets (e.g. form fields).
type Preferences []Preference

func (p Preferences) Get(name string) (string, bool) {
	for _, x := range p {
		if x.Name == name {
			return x.Value, true
		}
	}
	return "", false
}

// UnmarshalYAML reads a YAML mapping while preserving key order.
func (p *Preferences) UnmarshalYAML(unmarshal func(any) error) error {
	var ms yaml.MapSlice
	if err := unmarshal(&ms); err != nil {
		return err
	}
	out := make(Preferences, 0, len(ms))
	for _, kv := range ms {
		name := strings.TrimSpace(fmt.Sprint(kv.Key))
		if name == "" {
			continue
		}
		out = append(out, Preference{Name: name, Value: scalarString(kv.Value)})
	}
	*p = out
	return nil
}

func (p Preferences) MarshalYAML() (any, error) {
	ms := make(yaml.MapSlice, 0, len(p))
	for _, x := range p {
		ms = append(ms, yaml.MapItem{Key: x.Name, Value: x.Value})
	}
	return ms, nil
}

// MarshalJSON emits an object; key order follows declaration order.
func (p Preferences) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, x := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(x.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(x.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any, yaml.MapSlice, map[any]any:
		// Nested values are kept as JSON so widgets can decode them.
		b, err := json.Marshal(toJSONable(t))
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func toJSONable(v any) any {
	switch t := v.(type) {
	case yaml.MapSlice:
		m := make(map[string]any, len(t))
		for _, kv := range t {
			m[fmt.Sprint(kv.Key)] = toJSONable(kv.Value)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[fmt.Sprint(k)] = toJSONable(x)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = toJSONable(x)
		}
		return out
	default:
		return t
	}
}
