package conceptual

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/markdown"
)

func load(t *testing.T, name, body string) (*Processor, build.File) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	return New(markdown.Options{}), build.File{Key: name, Path: name, BaseDir: dir}
}

func TestSupports(t *testing.T) {
	p := New(markdown.Options{})
	assert.Equal(t, build.Normal, p.Supports(build.File{Path: "a/b.md"}))
	assert.Equal(t, build.Normal, p.Supports(build.File{Path: "B.MARKDOWN"}))
	assert.Equal(t, build.NotSupported, p.Supports(build.File{Path: "b.yml"}))
}

func TestLoadDefinesUIDAtFrontMatterLine(t *testing.T) {
	p, f := load(t, "guide.md", "---\ntitle: Guide\nuid: guide\n---\nBody\n")
	doc, err := p.Load(f)
	require.NoError(t, err)
	require.Len(t, doc.UIDs, 1)
	assert.Equal(t, "guide", doc.UIDs[0].Name)
	assert.Equal(t, 3, doc.UIDs[0].Line)
	assert.Equal(t, "/uid", doc.UIDs[0].Path)

	a := doc.Content.(*Article)
	assert.Equal(t, "Guide", a.Title)
	assert.NotEmpty(t, a.Fingerprint)
	assert.Equal(t, "guide.html", p.OutputPath(doc))
}

func TestFingerprintIgnoresFrontMatterKeyOrder(t *testing.T) {
	p, f1 := load(t, "a.md", "---\ntitle: T\nuid: x\n---\nBody\n")
	_, f2 := load(t, "a.md", "---\nuid: x\ntitle: T\n---\nBody\n")
	d1, err := p.Load(f1)
	require.NoError(t, err)
	d2, err := p.Load(f2)
	require.NoError(t, err)
	assert.Equal(t, d1.Content.(*Article).Fingerprint, d2.Content.(*Article).Fingerprint)
}

func TestLoadRejectsUnterminatedFrontMatter(t *testing.T) {
	p, f := load(t, "bad.md", "---\ntitle: x\nno closing delimiter\n")
	_, err := p.Load(f)
	require.Error(t, err)
}

func TestRenderStepTakesTitleFromHeading(t *testing.T) {
	p, f := load(t, "h.md", "# First *Heading*\n\nSee <xref:Other>.\n")
	doc, err := p.Load(f)
	require.NoError(t, err)

	bc := build.NewContext(build.ContextOptions{})
	steps := p.Steps()
	require.NoError(t, steps[0].Build(context.Background(), bc, doc))
	a := doc.Content.(*Article)
	assert.Equal(t, "First Heading", a.Title)
	assert.Contains(t, string(a.HTML), `href="xref:Other"`)
	assert.Equal(t, []string{"Other"}, doc.UIDReferences())
}
