package format

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v2"
)

// WriteYAML writes v as YAML. Values go through JSON first so field names
// follow the json tags, matching WriteJSON output key for key.
func WriteYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var x yaml.MapSlice
	if err := yaml.Unmarshal(b, &x); err != nil {
		// Not an object at the top level (list, scalar).
		var val any
		if err := yaml.Unmarshal(b, &val); err != nil {
			return err
		}
		return encode(w, val)
	}
	return encode(w, x)
}

func encode(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
