package xref

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// MapFileName is the fixed name of the major map inside an archive and the
// default name of a written map.
const MapFileName = "xrefmap.yml"

// Redirection synthesizes descriptors for UIDs under a prefix. Href may
// contain {uid} and {suffix} placeholders; suffix is the UID without the
// prefix.
type Redirection struct {
	UIDPrefix string `yaml:"uidPrefix" json:"uidPrefix"`
	Href      string `yaml:"href" json:"href"`
}

// Expand returns the descriptor synthesized for uid.
func (r Redirection) Expand(uid string) Spec {
	href := strings.NewReplacer("{uid}", url.PathEscape(uid), "{suffix}", url.PathEscape(strings.TrimPrefix(uid, r.UIDPrefix))).Replace(r.Href)
	return NewBuilder(uid).Name(uid).Href(href).Build()
}

// Map is the on-disk reference map format.
type Map struct {
	BaseURL      string        `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Sorted       bool          `yaml:"sorted,omitempty" json:"sorted,omitempty"`
	HrefUpdated  bool          `yaml:"hrefUpdated,omitempty" json:"hrefUpdated,omitempty"`
	References   []Spec        `yaml:"references" json:"references"`
	Redirections []Redirection `yaml:"redirections,omitempty" json:"redirections,omitempty"`
}

// Format selects the map codec.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks a codec from a file name or URL path.
func FormatFor(name string) Format {
	if strings.EqualFold(path.Ext(name), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ParseMap decodes a reference map.
func ParseMap(data []byte, format Format) (*Map, error) {
	var m Map
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode json reference map: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode yaml reference map: %w", err)
		}
	}
	return &m, nil
}

// Encode writes the map in the given format.
func (m *Map) Encode(format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(m, "", "  ")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Sort orders references by UID and marks the map sorted.
func (m *Map) Sort() {
	slices.SortStableFunc(m.References, func(a, b Spec) int { return strings.Compare(a.UID, b.UID) })
	m.Sorted = true
}

// Index returns the references keyed by UID, applying baseUrl to relative
// hrefs unless they were already absolutized. Later duplicates merge into
// earlier ones.
func (m *Map) Index() map[string]Spec {
	out := make(map[string]Spec, len(m.References))
	for _, s := range m.References {
		if s.UID == "" {
			continue
		}
		if !m.HrefUpdated {
			s = s.WithHref(joinBase(m.BaseURL, s.Href))
		}
		if prev, ok := out[s.UID]; ok {
			s = prev.Merge(s)
		}
		out[s.UID] = s
	}
	return out
}

func joinBase(base, href string) string {
	if base == "" || href == "" {
		return href
	}
	if u, err := url.Parse(href); err == nil && (u.IsAbs() || strings.HasPrefix(href, "/")) {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
