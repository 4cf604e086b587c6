package model

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Bag is an insertion-ordered property map for schema-less data. Nested
// mappings decode as *Bag and sequences as []any so that both round-trip
// through YAML and JSON without losing key order.
type Bag struct {
	keys []string
	vals map[string]any
}

// NewBag returns an empty bag.
func NewBag() *Bag {
	return &Bag{vals: make(map[string]any)}
}

// BagFrom copies m into a new bag. Keys are inserted in the order given by
// keys; map entries not listed are ignored.
func BagFrom(m map[string]any, keys ...string) *Bag {
	b := NewBag()
	for _, k := range keys {
		if v, ok := m[k]; ok {
			b.Set(k, v)
		}
	}
	return b
}

// Len returns the number of entries.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	return append([]string(nil), b.keys...)
}

// Get returns the value stored for key.
func (b *Bag) Get(key string) (any, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b.vals[key]
	return v, ok
}

// GetString returns the value for key when it is a string.
func (b *Bag) GetString(key string) string {
	v, _ := b.Get(key)
	s, _ := v.(string)
	return s
}

// Set stores value under key, keeping the original position of an existing key.
func (b *Bag) Set(key string, value any) {
	if b.vals == nil {
		b.vals = make(map[string]any)
	}
	if _, ok := b.vals[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.vals[key] = value
}

// Delete removes key.
func (b *Bag) Delete(key string) {
	if _, ok := b.vals[key]; !ok {
		return
	}
	delete(b.vals, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy. Values other than *Bag, []any and maps are
// shared.
func (b *Bag) Clone() *Bag {
	if b == nil {
		return nil
	}
	out := &Bag{keys: append([]string(nil), b.keys...), vals: make(map[string]any, len(b.vals))}
	for k, v := range b.vals {
		out.vals[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies bags, slices and maps.
func CloneValue(v any) any {
	switch t := v.(type) {
	case *Bag:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// UnmarshalYAML decodes a mapping node preserving key order.
func (b *Bag) UnmarshalYAML(node *yaml.Node) error {
	v, err := decodeNode(node)
	if err != nil {
		return err
	}
	nb, ok := v.(*Bag)
	if !ok {
		if v == nil {
			*b = Bag{vals: make(map[string]any)}
			return nil
		}
		return fmt.Errorf("expected mapping, got %s", kindName(node))
	}
	*b = *nb
	return nil
}

// MarshalYAML encodes the bag as an ordered mapping node.
func (b *Bag) MarshalYAML() (any, error) {
	return encodeNode(b)
}

// MarshalJSON writes the entries in insertion order.
func (b *Bag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(b.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object preserving key order.
func (b *Bag) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSON(dec)
	if err != nil {
		return err
	}
	nb, ok := v.(*Bag)
	if !ok {
		return fmt.Errorf("expected JSON object")
	}
	*b = *nb
	return nil
}

// DecodeYAMLValue converts a YAML node into plain values with mappings as *Bag.
func DecodeYAMLValue(node *yaml.Node) (any, error) {
	return decodeNode(node)
}

func decodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return decodeNode(node.Content[0])
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	case yaml.MappingNode:
		b := NewBag()
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key string
			if err := node.Content[i].Decode(&key); err != nil {
				return nil, err
			}
			if key == "<<" {
				merged, err := decodeNode(node.Content[i+1])
				if err != nil {
					return nil, err
				}
				if mb, ok := merged.(*Bag); ok {
					for _, k := range mb.keys {
						if _, exists := b.vals[k]; !exists {
							b.Set(k, mb.vals[k])
						}
					}
				}
				continue
			}
			v, err := decodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			b.Set(key, v)
		}
		return b, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := decodeNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

func encodeNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Bag:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.Keys() {
			vn, err := encodeNode(t.vals[k])
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, vn)
		}
		return n, nil
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range t {
			en, err := encodeNode(e)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, en)
		}
		return n, nil
	default:
		n := &yaml.Node{}
		if err := n.Encode(v); err != nil {
			return nil, err
		}
		return n, nil
	}
}

func decodeJSON(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			b := NewBag()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				v, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				b.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return b, nil
		case '[':
			out := make([]any, 0)
			for dec.More() {
				v, err := decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}
		return t.Float64()
	default:
		return tok, nil
	}
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	default:
		return "node"
	}
}
