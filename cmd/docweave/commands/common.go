package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Global carries state shared by every subcommand.
type Global struct {
	// Stdout receives user-facing command output.
	Stdout io.Writer
	// Stderr receives log output.
	Stderr io.Writer
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) stderr() io.Writer {
	if g == nil || g.Stderr == nil {
		return os.Stderr
	}
	return g.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"docweave.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Override logging.format (text|json)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the documentation set"`
	Watch   WatchCmd   `cmd:"" help:"Build, then rebuild whenever a source changes"`
	XRef    XRefCmd    `cmd:"" name:"xref" help:"Query external reference containers"`
	History HistoryCmd `cmd:"" help:"Show recent builds from the event log"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`

	global *Global
}

// AfterApply runs after flag parsing and installs a flag-level logger.
// Commands that load the configuration refine it with configureLogging.
func (c *CLI) AfterApply(g *Global) error {
	c.global = g
	level := config.LogLevelInfo
	if c.Verbose {
		level = config.LogLevelDebug
	}
	slog.SetDefault(newLogger(g.stderr(), level, config.NormalizeLogFormat(c.LogFormat)))
	return nil
}

// loadConfig loads the configuration and applies its logging settings.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	c.configureLogging(cfg)
	return cfg, nil
}

func (c *CLI) configureLogging(cfg *config.Config) {
	level := cfg.Logging.Level
	if c.Verbose {
		level = config.LogLevelDebug
	}
	format := cfg.Logging.Format
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}
	slog.SetDefault(newLogger(c.global.stderr(), level, format))
}

func newLogger(w io.Writer, level config.LogLevel, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExitCode reports err through the CLI adapter and returns the process exit code.
func ExitCode(err error, verbose bool, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	adapter := errors.NewCLIErrorAdapter(verbose, slog.Default())
	adapter.Log(err)
	if stderr != nil {
		_, _ = io.WriteString(stderr, adapter.FormatError(err)+"\n")
	}
	return adapter.ExitCodeFor(err)
}
