package page

import (
	"context"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/htmllinks"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/model"
)

// RewriteLinks points the links of an HTML fragment owned by doc at their
// final locations: xref links through the resolver, relative file links
// through the output path table. Unresolved xrefs are reported and
// rendered as text. Relative links to files outside the build are
// returned as dangling and left untouched.
func RewriteLinks(ctx context.Context, bc *build.Context, doc *model.Document, src []byte) (out []byte, dangling []string, err error) {
	out, err = htmllinks.Rewrite(src, func(l htmllinks.Link) htmllinks.Decision {
		if uid, ok := xrefTarget(l); ok {
			return resolveXRef(ctx, bc, doc, uid, l)
		}
		if !markdown.IsRelative(l.URL) {
			return htmllinks.Decision{Action: htmllinks.Keep}
		}
		p, frag := markdown.SplitFragment(l.URL)
		if p == "" {
			return htmllinks.Decision{Action: htmllinks.Keep}
		}
		if dec, err := url.PathUnescape(p); err == nil {
			p = dec
		}
		target := path.Join(path.Dir(doc.Key), p)
		if outPath, ok := bc.OutputPath(target); ok {
			doc.ReferenceFile(target)
			return htmllinks.Decision{Action: htmllinks.Replace, URL: bc.RelativeHref(doc.Key, outPath) + frag}
		}
		dangling = append(dangling, l.URL)
		return htmllinks.Decision{Action: htmllinks.Keep}
	})
	return out, dangling, err
}

func xrefTarget(l htmllinks.Link) (string, bool) {
	if l.Tag == "xref" {
		uid, err := url.PathUnescape(l.URL)
		if err != nil {
			uid = l.URL
		}
		return uid, uid != ""
	}
	if l.Tag != "a" {
		return "", false
	}
	return markdown.XRefUID(l.URL)
}

func resolveXRef(ctx context.Context, bc *build.Context, doc *model.Document, uid string, l htmllinks.Link) htmllinks.Decision {
	doc.ReferenceUID(uid)
	spec, ok := bc.Find(ctx, uid)
	if !ok {
		text := l.Text
		if text == "" || text == l.URL {
			text = uid
		}
		bc.Resolver().ReportUnresolved(uid, doc.Key, text)
		return htmllinks.Decision{Action: htmllinks.Unlink, Text: text}
	}
	href := spec.Href
	if _, local := bc.Definition(uid); local && !strings.Contains(href, "://") {
		href = bc.RelativeHref(doc.Key, href)
	}
	if href == "" {
		return htmllinks.Decision{Action: htmllinks.Unlink, Text: spec.DisplayName()}
	}
	return htmllinks.Decision{Action: htmllinks.Replace, URL: href, Text: spec.DisplayName()}
}
