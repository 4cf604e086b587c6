package overwrite

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

const doc = `Preamble is ignored.
---
uid: A
summary: '*content'
remarks: plain
---
Hello **world**.

---
uid: B
---
Body of B.
`

func TestLoadFragments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.overwrite.md"), []byte(doc), 0o644))
	p := New(markdown.Options{})
	f := build.File{Key: "x.overwrite.md", Path: "x.overwrite.md", BaseDir: dir}
	require.Equal(t, build.High, p.Supports(f))

	d, err := p.Load(f)
	require.NoError(t, err)
	frags := Fragments(d)
	require.Len(t, frags, 2)

	a := frags[0]
	assert.Equal(t, "A", a.UID)
	assert.Equal(t, 2, a.Line)
	require.Len(t, a.Properties, 2)
	assert.Equal(t, "summary", a.Properties[0].OPath)
	assert.Equal(t, "<p>Hello <strong>world</strong>.</p>\n", a.Properties[0].Value)
	assert.Equal(t, 4, a.Properties[0].Line)
	assert.Equal(t, "remarks", a.Properties[1].OPath)

	b := frags[1]
	require.Len(t, b.Properties, 1)
	assert.Equal(t, DefaultContentProperty, b.Properties[0].OPath)
	assert.Equal(t, "<p>Body of B.</p>\n", b.Properties[0].Value)

	assert.Equal(t, []string{"A", "B"}, d.UIDReferences())
	assert.Empty(t, p.OutputPath(d))
}

func TestCollectRegistersFragments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.overwrite.md"), []byte(doc), 0o644))
	p := New(markdown.Options{})
	d, err := p.Load(build.File{Key: "x.overwrite.md", Path: "x.overwrite.md", BaseDir: dir})
	require.NoError(t, err)

	bc := build.NewContext(build.ContextOptions{})
	docs, err := p.Steps()[0].Prebuild(context.Background(), bc, nil)
	require.NoError(t, err)
	require.Empty(t, docs)
	_, err = p.Steps()[0].Prebuild(context.Background(), bc, append(docs, d))
	require.NoError(t, err)
	require.Len(t, bc.Overwrites("A"), 1)
	require.Len(t, bc.Overwrites("B"), 1)
}

func TestLoadRejectsNonStringUID(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "n.overwrite.md"), []byte("---\nuid: [1]\n---\n"), 0o644))
	_, err := New(markdown.Options{}).Load(build.File{Key: "n.overwrite.md", Path: "n.overwrite.md", BaseDir: dir})
	require.Error(t, err)
}
