package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	var out bytes.Buffer
	g := &Global{Stdout: &out, Stderr: io.Discard}
	parser, err := kong.New(&cli,
		kong.Name("docweave"),
		kong.Vars{"version": "test"},
		kong.Bind(g),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(g, &cli)
	return out.String(), err
}

type project struct {
	root   string
	config string
	out    string
}

func newProject(t *testing.T, extra string) project {
	t.Helper()
	root := t.TempDir()
	p := project{root: root, config: filepath.Join(root, "docweave.yaml"), out: filepath.Join(root, "_site")}
	body := "source:\n  dirs: [" + filepath.Join(root, "docs") + "]\noutput:\n  directory: " + p.out + "\n" + extra
	require.NoError(t, os.WriteFile(p.config, []byte(body), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	return p
}

func (p project) write(t *testing.T, rel, content string) {
	t.Helper()
	full := filepath.Join(p.root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildCommandWritesSite(t *testing.T) {
	p := newProject(t, "")
	p.write(t, "docs/intro.md", "---\nuid: intro\n---\n# Introduction\n\nSee [setup](setup.md).\n")
	p.write(t, "docs/setup.md", "# Setup\n")

	out, err := runCLI(t, "build", "-c", p.config)
	require.NoError(t, err)
	assert.Contains(t, out, "outcome=success")

	html, err := os.ReadFile(filepath.Join(p.out, "intro.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), `href="setup.html"`)

	xrefmap, err := os.ReadFile(filepath.Join(p.out, "xrefmap.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(xrefmap), "uid: intro")
}

func TestBuildOutputOverride(t *testing.T) {
	p := newProject(t, "")
	p.write(t, "docs/a.md", "# A\n")
	alt := filepath.Join(p.root, "alt")

	_, err := runCLI(t, "build", "-c", p.config, "--output", alt, "--max-parallelism", "2")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(alt, "a.html"))
	assert.NoFileExists(t, filepath.Join(p.out, "a.html"))
}

func TestBuildPolicyFailureExitCode(t *testing.T) {
	p := newProject(t, "build:\n  fail_on_unresolved: true\n")
	p.write(t, "docs/a.md", "# A\n\nSee <xref:Missing.Thing>.\n")

	out, err := runCLI(t, "build", "-c", p.config)
	require.Error(t, err)
	assert.Contains(t, out, "unresolved_reference")
	assert.Equal(t, 11, ExitCode(err, false, nil))
}

func TestXRefLookup(t *testing.T) {
	p := newProject(t, "xref:\n  containers:\n    - name: local\n      path: ROOT/maps/xrefmap.yml\n")
	cfg, err := os.ReadFile(p.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.config, []byte(strings.ReplaceAll(string(cfg), "ROOT", p.root)), 0o644))
	p.write(t, "maps/xrefmap.yml", `references:
  - uid: System.String
    name: String
    href: https://example.com/system.string
`)

	out, err := runCLI(t, "xref", "lookup", "-c", p.config, "System.String", "Missing.Thing")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
	assert.Contains(t, out, "System.String\tString\thttps://example.com/system.string\t[local]")
	assert.Contains(t, out, "Missing.Thing\t(not found)")

	out, err = runCLI(t, "xref", "lookup", "-c", p.config, "--json", "System.String")
	require.NoError(t, err)
	assert.Contains(t, out, `System.String`)
	assert.Contains(t, out, `https://example.com/system.string`)
}

func TestHistoryAfterBuilds(t *testing.T) {
	p := newProject(t, "events:\n  database: EVENTS\n")
	cfg, err := os.ReadFile(p.config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.config, []byte(strings.ReplaceAll(string(cfg), "EVENTS", filepath.Join(p.root, "events.db"))), 0o644))
	p.write(t, "docs/a.md", "# A\n")

	_, err = runCLI(t, "build", "-c", p.config)
	require.NoError(t, err)
	_, err = runCLI(t, "build", "-c", p.config)
	require.NoError(t, err)

	out, err := runCLI(t, "history", "-c", p.config)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "BUILD"))
	assert.Contains(t, lines[1], "success")
}

func TestHistoryRequiresDatabase(t *testing.T) {
	p := newProject(t, "")
	_, err := runCLI(t, "history", "-c", p.config)
	require.Error(t, err)
	assert.Equal(t, 7, ExitCode(err, false, nil))
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := runCLI(t, "init", "--output", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "initialized successfully")

	cfg, err := config.Load(filepath.Join(dir, "docweave.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.XRef.Containers)

	_, err = runCLI(t, "init", "--output", dir)
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err, false, nil))

	_, err = runCLI(t, "init", "--output", dir, "--force")
	require.NoError(t, err)
}

func TestLoggingSettings(t *testing.T) {
	assert.Equal(t, "DEBUG", slogLevel(config.LogLevelDebug).String())
	assert.Equal(t, "WARN", slogLevel(config.LogLevelWarn).String())
	assert.Equal(t, "INFO", slogLevel("bogus").String())

	var buf bytes.Buffer
	newLogger(&buf, config.LogLevelInfo, config.LogFormatJSON).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestExitCodeForPlainError(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 0, ExitCode(nil, false, &stderr))
	assert.Equal(t, 1, ExitCode(io.ErrUnexpectedEOF, false, &stderr))
	assert.Contains(t, stderr.String(), "Error: unexpected EOF")
}
