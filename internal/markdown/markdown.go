package markdown

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Renderer parses and renders Markdown bodies. It is safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer with GitHub flavored extensions and generated
// heading IDs.
func New(opts Options) *Renderer {
	rendererOpts := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	htmlOpts := []renderer.Option{html.WithUnsafe()}
	if opts.HardWraps {
		htmlOpts = append(htmlOpts, html.WithHardWraps())
	}
	rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(htmlOpts...))
	return &Renderer{md: goldmark.New(rendererOpts...)}
}

// Render converts body (front matter already removed) to HTML.
func (r *Renderer) Render(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Analyze parses body and collects its links, headings and title.
func (r *Renderer) Analyze(body []byte) Analysis {
	ctx := parser.NewContext()
	root := r.md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	var a Analysis
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.AutoLink:
			a.Links = append(a.Links, Link{Kind: LinkKindAuto, Destination: string(node.URL(body))})
		case *gmast.Image:
			a.Links = append(a.Links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			a.Links = append(a.Links, Link{Kind: LinkKindInline, Destination: string(node.Destination), Text: plainText(node, body)})
		case *gmast.Heading:
			h := Heading{Level: node.Level, Text: plainText(node, body)}
			if id, ok := node.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					h.ID = string(b)
				}
			}
			a.Headings = append(a.Headings, h)
			if node.Level == 1 && a.Title == "" {
				a.Title = h.Text
			}
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not the tree.
	refs := ctx.References()
	sort.Slice(refs, func(i, j int) bool {
		return string(refs[i].Label()) < string(refs[j].Label())
	})
	for _, ref := range refs {
		a.Links = append(a.Links, Link{Kind: LinkKindReferenceDefinition, Destination: string(ref.Destination())})
	}
	return a
}

// ExtractLinks parses a Markdown body and extracts link-like constructs.
func ExtractLinks(body []byte, opts Options) ([]Link, error) {
	return New(opts).Analyze(body).Links, nil
}

func plainText(n gmast.Node, src []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
