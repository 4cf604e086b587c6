package xref

import (
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// Well-known descriptor keys.
const (
	KeyUID          = "uid"
	KeyName         = "name"
	KeyHref         = "href"
	KeyCommentID    = "commentId"
	KeyFullName     = "fullName"
	KeyNameWithType = "nameWithType"
	KeyIsSpec       = "isSpec"
)

// Spec describes what a UID resolves to. Values are immutable once
// published; use Builder or the With* helpers to derive new ones.
type Spec struct {
	UID          string
	Name         string
	Href         string
	CommentID    string
	FullName     string
	NameWithType string
	// IsSpec is false for placeholders recorded for unresolved references.
	IsSpec bool
	extra  *model.Bag
}

// Extra returns a copy of the unrecognized keys.
func (s Spec) Extra() *model.Bag { return s.extra.Clone() }

// Get returns a known or extra value by key.
func (s Spec) Get(key string) (any, bool) {
	switch key {
	case KeyUID:
		return s.UID, true
	case KeyName:
		return s.Name, s.Name != ""
	case KeyHref:
		return s.Href, s.Href != ""
	case KeyCommentID:
		return s.CommentID, s.CommentID != ""
	case KeyFullName:
		return s.FullName, s.FullName != ""
	case KeyNameWithType:
		return s.NameWithType, s.NameWithType != ""
	case KeyIsSpec:
		return s.IsSpec, true
	}
	return s.extra.Get(key)
}

// DisplayName returns the best available text for rendering a link.
func (s Spec) DisplayName() string {
	for _, v := range []string{s.Name, s.NameWithType, s.FullName} {
		if v != "" {
			return v
		}
	}
	return s.UID
}

// WithHref returns a copy pointing at href.
func (s Spec) WithHref(href string) Spec {
	s.Href = href
	return s
}

// Merge combines two descriptors for the same UID. Extra keys are unioned
// with the receiver winning conflicts; href prefers the more specific one.
func (s Spec) Merge(other Spec) Spec {
	out := s
	if out.UID == "" {
		out.UID = other.UID
	}
	for _, p := range []struct{ dst *string; src string }{
		{&out.Name, other.Name},
		{&out.CommentID, other.CommentID},
		{&out.FullName, other.FullName},
		{&out.NameWithType, other.NameWithType},
	} {
		if *p.dst == "" {
			*p.dst = p.src
		}
	}
	out.Href = moreSpecificHref(s.Href, other.Href)
	out.IsSpec = s.IsSpec || other.IsSpec
	if other.extra.Len() > 0 {
		merged := s.extra.Clone()
		if merged == nil {
			merged = model.NewBag()
		}
		for _, k := range other.extra.Keys() {
			if _, ok := merged.Get(k); !ok {
				v, _ := other.extra.Get(k)
				merged.Set(k, model.CloneValue(v))
			}
		}
		out.extra = merged
	}
	return out
}

func moreSpecificHref(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	if strings.Contains(a, "#") != strings.Contains(b, "#") {
		if strings.Contains(b, "#") {
			return b
		}
		return a
	}
	if strings.Count(b, "/") > strings.Count(a, "/") {
		return b
	}
	return a
}

// Builder assembles a Spec.
type Builder struct {
	spec Spec
}

// NewBuilder starts a descriptor for uid.
func NewBuilder(uid string) *Builder {
	return &Builder{spec: Spec{UID: uid, IsSpec: true}}
}

func (b *Builder) Name(v string) *Builder         { b.spec.Name = v; return b }
func (b *Builder) Href(v string) *Builder         { b.spec.Href = v; return b }
func (b *Builder) CommentID(v string) *Builder    { b.spec.CommentID = v; return b }
func (b *Builder) FullName(v string) *Builder     { b.spec.FullName = v; return b }
func (b *Builder) NameWithType(v string) *Builder { b.spec.NameWithType = v; return b }

// Set stores a value under key, routing well-known keys to their fields.
func (b *Builder) Set(key string, v any) *Builder {
	s, _ := v.(string)
	switch key {
	case KeyUID:
		b.spec.UID = s
	case KeyName:
		b.spec.Name = s
	case KeyHref:
		b.spec.Href = s
	case KeyCommentID:
		b.spec.CommentID = s
	case KeyFullName:
		b.spec.FullName = s
	case KeyNameWithType:
		b.spec.NameWithType = s
	case KeyIsSpec:
		if bv, ok := v.(bool); ok {
			b.spec.IsSpec = bv
		}
	default:
		if b.spec.extra == nil {
			b.spec.extra = model.NewBag()
		}
		b.spec.extra.Set(key, model.CloneValue(v))
	}
	return b
}

// Build returns the finished descriptor. The builder must not be reused.
func (b *Builder) Build() Spec {
	out := b.spec
	b.spec = Spec{}
	return out
}

// FromBag builds a descriptor from decoded key/value data.
func FromBag(bag *model.Bag) Spec {
	b := NewBuilder("")
	for _, k := range bag.Keys() {
		v, _ := bag.Get(k)
		b.Set(k, v)
	}
	return b.Build()
}

// Bag renders the descriptor as ordered key/value data.
func (s Spec) Bag() *model.Bag {
	out := model.NewBag()
	out.Set(KeyUID, s.UID)
	out.Set(KeyName, s.Name)
	out.Set(KeyHref, s.Href)
	for _, kv := range []struct{ k, v string }{
		{KeyCommentID, s.CommentID},
		{KeyFullName, s.FullName},
		{KeyNameWithType, s.NameWithType},
	} {
		if kv.v != "" {
			out.Set(kv.k, kv.v)
		}
	}
	if !s.IsSpec {
		out.Set(KeyIsSpec, false)
	}
	for _, k := range s.extra.Keys() {
		v, _ := s.extra.Get(k)
		out.Set(k, v)
	}
	return out
}

func (s Spec) MarshalYAML() (any, error) { return s.Bag(), nil }

func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	var bag model.Bag
	if err := node.Decode(&bag); err != nil {
		return err
	}
	*s = FromBag(&bag)
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) { return json.Marshal(s.Bag()) }

func (s *Spec) UnmarshalJSON(data []byte) error {
	var bag model.Bag
	if err := json.Unmarshal(data, &bag); err != nil {
		return err
	}
	*s = FromBag(&bag)
	return nil
}
