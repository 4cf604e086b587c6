package frontmatter

import (
	"bytes"
	"slices"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// Canonical returns a deep copy of fields with keys sorted at every level.
// Plain maps are turned into bags on the way.
func Canonical(fields *model.Bag) *model.Bag {
	out := model.NewBag()
	keys := fields.Keys()
	slices.Sort(keys)
	for _, k := range keys {
		v, _ := fields.Get(k)
		out.Set(k, canonicalValue(v))
	}
	return out
}

func canonicalValue(v any) any {
	switch t := v.(type) {
	case *model.Bag:
		return Canonical(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		return Canonical(model.BagFrom(t, keys...))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = canonicalValue(e)
		}
		return out
	default:
		return model.CloneValue(v)
	}
}

// SerializeYAML renders fields in canonical order without delimiters, using
// the newline convention of style. Equal metadata always serializes to equal
// bytes, which makes the output usable in content fingerprints.
func SerializeYAML(fields *model.Bag, style Style) ([]byte, error) {
	if fields.Len() == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Canonical(fields)); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	out := buf.Bytes()
	if style.Newline != "" && style.Newline != "\n" {
		out = bytes.ReplaceAll(out, []byte("\n"), []byte(style.Newline))
	}
	return out, nil
}
