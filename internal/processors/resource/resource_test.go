package resource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/model"
)

func TestCopiesBytes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "img", "a.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))

	p := New()
	f := build.File{Key: "v1/img/a.png", Path: "img/a.png", BaseDir: dir, Group: "v1"}
	assert.Equal(t, build.Lowest, p.Supports(f))
	d, err := p.Load(f)
	require.NoError(t, err)
	assert.Equal(t, model.KindResource, d.Kind)
	assert.Equal(t, "v1", d.Group)

	res, err := p.Save(nil, d)
	require.NoError(t, err)
	assert.Equal(t, "v1/img/a.png", res.OutputPath)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, res.Content)
	assert.NotEmpty(t, res.Fingerprint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := New().Load(build.File{Key: "x", Path: "x", BaseDir: t.TempDir()})
	require.Error(t, err)
}
