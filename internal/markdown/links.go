package markdown

import (
	"net/url"
	"strings"
)

// Options controls how Markdown is parsed and rendered.
type Options struct {
	HardWraps bool
}

type LinkKind string

const (
	LinkKindInline              LinkKind = "inline"
	LinkKindImage               LinkKind = "image"
	LinkKindAuto                LinkKind = "auto"
	LinkKindReferenceDefinition LinkKind = "reference_definition"
)

type Link struct {
	Kind        LinkKind
	Destination string
	Text        string
}

// Heading is a section heading with its generated anchor.
type Heading struct {
	Level int
	ID    string
	Text  string
}

// Analysis is what Analyze learns about a body.
type Analysis struct {
	Links    []Link
	Headings []Heading
	// Title is the text of the first level one heading.
	Title string
}

// XRefScheme prefixes cross reference destinations.
const XRefScheme = "xref:"

// XRefUID returns the UID addressed by an `xref:` destination. Query and
// fragment are dropped and percent escapes decoded.
func XRefUID(dest string) (string, bool) {
	if len(dest) <= len(XRefScheme) || !strings.EqualFold(dest[:len(XRefScheme)], XRefScheme) {
		return "", false
	}
	uid := dest[len(XRefScheme):]
	if i := strings.IndexAny(uid, "?#"); i >= 0 {
		uid = uid[:i]
	}
	if dec, err := url.PathUnescape(uid); err == nil {
		uid = dec
	}
	return uid, uid != ""
}

// IsRelative reports whether dest points at a file of the same build:
// no scheme, no host, not an in-page anchor and not site-absolute.
func IsRelative(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return false
	}
	u, err := url.Parse(dest)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

// SplitFragment separates the path and the fragment (with '#') of dest.
func SplitFragment(dest string) (p, fragment string) {
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		return dest[:i], dest[i:]
	}
	return dest, ""
}
