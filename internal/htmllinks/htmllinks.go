// Package htmllinks finds and rewrites links in rendered HTML fragments.
package htmllinks

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Link is one link-bearing element of a fragment.
type Link struct {
	URL       string // attribute value
	Text      string // plain text content
	Tag       string // a, img or xref
	Attribute string // href or src
}

// Action tells Rewrite what to do with a link.
type Action int

const (
	// Keep leaves the element untouched.
	Keep Action = iota
	// Replace points the element at Decision.URL.
	Replace
	// Unlink replaces the element with its text.
	Unlink
)

// Decision is returned by a RewriteFunc.
type Decision struct {
	Action Action
	URL    string
	// Text becomes the element text when the link had none of its own or
	// only echoed its target.
	Text string
}

// RewriteFunc decides the fate of one link.
type RewriteFunc func(Link) Decision

// `<xref href="..."/>` is not a void element in HTML5, so self-closing
// forms are expanded before parsing.
var selfClosingXRef = regexp.MustCompile(`(?i)(<xref\b[^>]*?)\s*/>`)

func parse(src []byte) (*html.Node, error) {
	src = selfClosingXRef.ReplaceAll(src, []byte("$1></xref>"))
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(src), body)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to parse HTML").Build()
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return body, nil
}

// Extract returns the links of an HTML fragment in document order.
func Extract(src []byte) ([]Link, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var links []Link
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if l, ok := linkOf(n); ok {
			links = append(links, l)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links, nil
}

// Rewrite applies fn to every link of an HTML fragment and renders the
// result. xref elements that are replaced become anchors.
func Rewrite(src []byte, fn RewriteFunc) ([]byte, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if l, ok := linkOf(c); ok {
				apply(c, l, fn(l))
			}
			walk(c)
			c = next
		}
	}
	walk(root)

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "failed to render HTML").Build()
		}
	}
	return buf.Bytes(), nil
}

func apply(n *html.Node, l Link, d Decision) {
	switch d.Action {
	case Replace:
		if n.DataAtom != atom.A && l.Tag == "xref" {
			n.Data, n.DataAtom = "a", atom.A
			n.Attr = []html.Attribute{{Key: "href", Val: d.URL}}
		} else {
			setAttr(n, l.Attribute, d.URL)
		}
		if d.Text != "" && (l.Text == "" || l.Text == l.URL) {
			setText(n, d.Text)
		}
	case Unlink:
		text := l.Text
		if text == "" || text == l.URL {
			if d.Text != "" {
				text = d.Text
			}
		}
		if l.Tag == "img" {
			text = attr(n, "alt")
		}
		n.Parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text}, n)
		n.Parent.RemoveChild(n)
	}
}

func linkOf(n *html.Node) (Link, bool) {
	if n.Type != html.ElementNode {
		return Link{}, false
	}
	var key string
	switch n.Data {
	case "a", "xref":
		key = "href"
	case "img":
		key = "src"
	default:
		return Link{}, false
	}
	v := attr(n, key)
	if v == "" {
		return Link{}, false
	}
	return Link{URL: v, Text: text(n), Tag: n.Data, Attribute: key}, true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func setText(n *html.Node, s string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
