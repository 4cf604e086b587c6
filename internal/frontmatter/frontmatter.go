// Package frontmatter reads the YAML metadata blocks that lead Markdown
// articles and overwrite documents.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// ErrMissingClosingDelimiter is returned when a leading `---` is never closed.
var ErrMissingClosingDelimiter = errors.New("front matter opened but never closed")

// Style records the newline convention of the source so rewritten metadata
// keeps it.
type Style struct {
	Newline            string
	HasTrailingNewline bool
}

// Parsed is an article split into metadata and body.
type Parsed struct {
	// Raw is the metadata text without delimiters.
	Raw    []byte
	Body   []byte
	Fields *model.Bag
	// Present is false when the document has no leading metadata block.
	Present bool
	Style   Style
}

// Parse splits content and decodes its metadata. Documents without a leading
// `---` line come back with an empty Fields bag and the full input as Body.
func Parse(content []byte) (*Parsed, error) {
	p := &Parsed{Style: detectStyle(content), Fields: model.NewBag()}
	raw, body, present, err := split(content, p.Style.Newline)
	if err != nil {
		return nil, err
	}
	p.Raw, p.Body, p.Present = raw, body, present
	if present {
		if p.Fields, err = ParseYAML(raw); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// KeyLine returns the 1-based source line of a top-level metadata key, or 0.
// The opening delimiter is line 1.
func (p *Parsed) KeyLine(key string) int {
	if !p.Present {
		return 0
	}
	prefix := []byte(key + ":")
	for i, l := range bytes.Split(p.Raw, []byte("\n")) {
		if bytes.HasPrefix(l, prefix) {
			return i + 2
		}
	}
	return 0
}

func split(content []byte, nl string) (raw, body []byte, present bool, err error) {
	delim := []byte("---" + nl)
	if !bytes.HasPrefix(content, delim) {
		return nil, content, false, nil
	}
	rest := content[len(delim):]
	if bytes.HasPrefix(rest, delim) {
		return []byte{}, rest[len(delim):], true, nil
	}

	closing := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closing)
	if idx < 0 {
		// A closing delimiter at EOF leaves an empty body.
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			return rest[:len(rest)-len("---")], nil, true, nil
		}
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return rest[:idx+len(nl)], rest[idx+len(closing):], true, nil
}

// ParseYAML decodes raw metadata into an ordered bag. Blank input gives an
// empty bag; anything but a mapping is an error.
func ParseYAML(raw []byte) (*model.Bag, error) {
	bag := model.NewBag()
	if len(bytes.TrimSpace(raw)) == 0 {
		return bag, nil
	}
	if err := yaml.Unmarshal(raw, bag); err != nil {
		return nil, err
	}
	return bag, nil
}

func detectStyle(content []byte) Style {
	s := Style{Newline: "\n", HasTrailingNewline: bytes.HasSuffix(content, []byte("\n"))}
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		s.Newline = "\r\n"
	}
	return s
}
