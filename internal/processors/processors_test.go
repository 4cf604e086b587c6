package processors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/markdown"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

const widgetPage = `### YamlMime:ManagedReference
items:
- uid: Sample.Widget
  id: Widget
  name: Widget
  fullName: Sample.Widget
  type: Class
  summary: A widget, see <xref href="Sample.Gadget"/>.
  children:
  - Sample.Widget.Spin(System.Int32)
- uid: Sample.Widget.Spin(System.Int32)
  parent: Sample.Widget
  name: Spin(Int32)
  type: Method
  syntax:
    content: public void Spin(int times)
    parameters:
    - id: times
      type: System.Int32
      description: generated
`

const widgetOverwrite = `---
uid: Sample.Widget.Spin(System.Int32)
syntax/parameters[id="times"]/description: How often to spin.
summary: '*content'
---
Spins the [widget](xref:Sample.Widget).

---
uid: Sample.Widget
syntax/content: 42
---
`

const introArticle = `---
uid: intro
title: Introduction
---
# Ignored heading

Read <xref:Sample.Widget> and the [spin method](xref:Sample.Widget.Spin(System.Int32)).
See also [setup](setup.md#install), <xref:System.String> and <xref:Missing.Thing>.

![logo](../images/logo.png)
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func readOut(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func TestStandardBuild(t *testing.T) {
	src := writeTree(t, map[string]string{
		"articles/intro.md":       introArticle,
		"articles/setup.md":       "# Setup\n\n## Install\n\nBack to [intro](intro.md) or [nowhere](gone.md).\n",
		"api/Sample.Widget.yml":   widgetPage,
		"api/widget.overwrite.md": widgetOverwrite,
		"toc.yml":                 "- name: Intro\n  href: articles/intro.md\n- uid: Sample.Widget\n",
		"images/logo.png":         "PNG",
	})
	out := filepath.Join(t.TempDir(), "site")
	cfg := &config.Config{
		Version: config.CurrentVersion,
		Source:  config.SourceConfig{Dirs: []string{src}},
		Output:  config.OutputConfig{Directory: out},
		Build:   config.BuildConfig{MaxParallelism: 4, LRUCapacity: 16},
	}
	external := xref.NewMemoryContainer("dotnet", []xref.Spec{
		xref.NewBuilder("System.String").Name("String").Href("https://learn.example/system.string").Build(),
		xref.NewBuilder("System.Int32").Name("Int32").Href("https://learn.example/system.int32").Build(),
	})

	svc := build.NewBuildService(Default(markdown.Options{})...).WithContainers(external)
	res, err := svc.Run(context.Background(), build.BuildRequest{Config: cfg, BuildID: "std"})
	require.NoError(t, err)
	require.NotNil(t, res)

	intro := readOut(t, out, "articles/intro.html")
	assert.Contains(t, intro, "<title>Introduction</title>")
	assert.Contains(t, intro, `<a href="../api/Sample.Widget.html">Widget</a>`)
	assert.Contains(t, intro, `<a href="../api/Sample.Widget.html#sample-widget-spin-system-int32">spin method</a>`)
	assert.Contains(t, intro, `<a href="setup.html#install">setup</a>`)
	assert.Contains(t, intro, `<a href="https://learn.example/system.string">String</a>`)
	assert.Contains(t, intro, "Missing.Thing")
	assert.NotContains(t, intro, "xref:Missing.Thing")
	assert.Contains(t, intro, `src="../images/logo.png"`)
	assert.Contains(t, intro, `<link rel="contents" href="../toc.json">`)

	setup := readOut(t, out, "articles/setup.html")
	assert.Contains(t, setup, "<title>Setup</title>")
	assert.Contains(t, setup, `<a href="intro.html">intro</a>`)
	assert.Contains(t, setup, `href="gone.md"`, "dangling links stay untouched")

	widget := readOut(t, out, "api/Sample.Widget.html")
	assert.Contains(t, widget, "How often to spin.")
	assert.NotContains(t, widget, "generated")
	assert.Contains(t, widget, `Spins the <a href="Sample.Widget.html">widget</a>`)
	assert.Contains(t, widget, `<a href="https://learn.example/system.int32">Int32</a>`)
	assert.Contains(t, widget, "Sample.Gadget", "unresolved xref keeps its text")
	assert.Contains(t, widget, "<code>42</code>")

	assert.Equal(t, "PNG", readOut(t, out, "images/logo.png"))

	var entries []struct {
		Name string `json:"name"`
		Href string `json:"href"`
	}
	require.NoError(t, json.Unmarshal([]byte(readOut(t, out, "toc.json")), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "articles/intro.html", entries[0].Href)
	assert.Equal(t, "Widget", entries[1].Name)
	assert.Equal(t, "api/Sample.Widget.html", entries[1].Href)

	xrefmap, err := xref.ParseMap([]byte(readOut(t, out, xref.MapFileName)), xref.FormatYAML)
	require.NoError(t, err)
	byUID := map[string]xref.Spec{}
	for _, s := range xrefmap.References {
		byUID[s.UID] = s
	}
	assert.Equal(t, "Introduction", byUID["intro"].Name)
	assert.Equal(t, "api/Sample.Widget.html#sample-widget-spin-system-int32", byUID["Sample.Widget.Spin(System.Int32)"].Href)

	report := res.Report
	assert.Equal(t, build.OutcomeWarning, report.Outcome)
	assert.Equal(t, 0, report.Count(build.DiagMergeConflict))
	assert.Equal(t, 1, report.Count(build.DiagUnresolvedReference))
	unresolved := report.Diagnostics[len(report.Diagnostics)-1]
	assert.Contains(t, unresolved.Message, "Missing.Thing")
	assert.Contains(t, unresolved.Message, "Sample.Gadget")

	entry, ok := res.Manifest.Lookup("articles/setup.md")
	require.True(t, ok)
	assert.Equal(t, []string{"gone.md"}, entry.Dangling)
}

func TestMergeConflictKeepsPage(t *testing.T) {
	src := writeTree(t, map[string]string{
		"api/Sample.Widget.yml": widgetPage,
		"api/bad.overwrite.md":  "---\nuid: Sample.Widget\nsyntax: not a record\n---\n",
	})
	out := filepath.Join(t.TempDir(), "site")
	cfg := &config.Config{
		Version: config.CurrentVersion,
		Source:  config.SourceConfig{Dirs: []string{src}},
		Output:  config.OutputConfig{Directory: out},
	}
	res, err := build.NewBuildService(Default(markdown.Options{})...).Run(context.Background(), build.BuildRequest{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Count(build.DiagMergeConflict))
	assert.Contains(t, readOut(t, out, "api/Sample.Widget.html"), "A widget")
}
