package htmllinks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	links, err := Extract([]byte(`<p><a href="a.md">A</a> <img src="img/x.png" alt="x"> <xref href="N.T"/> tail</p>`))
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.Equal(t, Link{URL: "a.md", Text: "A", Tag: "a", Attribute: "href"}, links[0])
	assert.Equal(t, "src", links[1].Attribute)
	assert.Equal(t, "xref", links[2].Tag)
	assert.Equal(t, "", links[2].Text, "self-closing xref must not swallow its siblings")
}

func TestRewrite(t *testing.T) {
	src := `<p><a href="xref:A">xref:A</a>, <a href="xref:B">custom</a>, <a href="guide.md#s">guide</a>, <xref href="Gone"/> and <a href="https://x">x</a></p>`
	out, err := Rewrite([]byte(src), func(l Link) Decision {
		switch l.URL {
		case "xref:A":
			return Decision{Action: Replace, URL: "api/a.html", Text: "Type A"}
		case "xref:B":
			return Decision{Action: Replace, URL: "api/b.html", Text: "Type B"}
		case "guide.md#s":
			return Decision{Action: Replace, URL: "guide.html#s"}
		case "Gone":
			return Decision{Action: Unlink, Text: "Gone"}
		}
		return Decision{Action: Keep}
	})
	require.NoError(t, err)
	html := string(out)
	assert.Contains(t, html, `<a href="api/a.html">Type A</a>`)
	assert.Contains(t, html, `<a href="api/b.html">custom</a>`)
	assert.Contains(t, html, `<a href="guide.html#s">guide</a>`)
	assert.Contains(t, html, `<a href="https://x">x</a>`)
	assert.Contains(t, html, "Gone and")
	assert.False(t, strings.Contains(html, "xref"), html)
}

func TestRewriteXRefElementBecomesAnchor(t *testing.T) {
	out, err := Rewrite([]byte(`<xref href="A" data-throw-if-not-resolved="true"></xref>`), func(Link) Decision {
		return Decision{Action: Replace, URL: "a.html", Text: "A"}
	})
	require.NoError(t, err)
	assert.Equal(t, `<a href="a.html">A</a>`, string(out))
}

func TestUnlinkImageKeepsAltText(t *testing.T) {
	out, err := Rewrite([]byte(`<p><img src="missing.png" alt="diagram"></p>`), func(Link) Decision {
		return Decision{Action: Unlink}
	})
	require.NoError(t, err)
	assert.Equal(t, `<p>diagram</p>`, string(out))
}
