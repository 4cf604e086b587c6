package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Output   string        `short:"o" help:"Output directory (overrides output.directory)" type:"path"`
	Debounce time.Duration `help:"Quiet period before a rebuild" default:"300ms"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	applyBuildOverrides(cfg, w.Output, 0)

	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer rt.Close()

	return watchAndBuild(ctx, rt, cfg, root.Config, w.Output, w.Debounce, g)
}

// watchAndBuild runs an initial build, then rebuilds after each batch of
// changes until ctx ends. Build failures are logged and watching continues.
// A change to the configuration file reloads it before the next build.
func watchAndBuild(ctx context.Context, rt *runtime, cfg *config.Config, configPath, output string, debounce time.Duration, g *Global) error {
	logger := rt.logger
	if _, err := runBuild(ctx, rt.service, cfg, g); err != nil {
		logger.Warn("Initial build failed", logfields.Error(err))
	}

	w, err := watch.New(watchRoots(cfg), watch.Options{
		Debounce: debounce,
		Ignore:   []string{cfg.Output.Directory},
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Info("Watching for changes", logfields.Count(len(watchRoots(cfg))))

	return w.Run(ctx, func(ctx context.Context, paths []string) {
		logger.Info("Rebuilding", logfields.Count(len(paths)))
		if touches(paths, configPath) {
			next, err := config.Load(configPath)
			if err != nil {
				logger.Warn("Keeping previous configuration", logfields.Error(err))
			} else {
				applyBuildOverrides(next, output, 0)
				cfg = next
			}
		}
		if _, err := runBuild(ctx, rt.service, cfg, g); err != nil {
			logger.Warn("Rebuild failed", logfields.Error(err))
		}
	})
}

func watchRoots(cfg *config.Config) []string {
	roots := append([]string(nil), cfg.Source.Dirs...)
	for _, grp := range cfg.Build.Groups {
		roots = append(roots, grp.Dirs...)
	}
	return roots
}

func touches(paths []string, target string) bool {
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil && abs == target {
			return true
		}
	}
	return false
}
