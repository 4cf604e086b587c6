package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docweave/internal/build"
	"git.home.luguber.info/inful/docweave/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output         string `short:"o" help:"Output directory (overrides output.directory)" type:"path"`
	MaxParallelism int    `name:"max-parallelism" help:"Override build.max_parallelism"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	applyBuildOverrides(cfg, b.Output, b.MaxParallelism)

	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer rt.Close()

	_, err = runBuild(ctx, rt.service, cfg, g)
	return err
}

func applyBuildOverrides(cfg *config.Config, output string, maxParallelism int) {
	if output != "" {
		cfg.Output.Directory = output
	}
	if maxParallelism > 0 {
		cfg.Build.MaxParallelism = maxParallelism
	}
}

// runBuild executes one build and prints its summary.
func runBuild(ctx context.Context, svc build.BuildService, cfg *config.Config, g *Global) (*build.BuildResult, error) {
	result, err := svc.Run(ctx, build.BuildRequest{Config: cfg})
	if result != nil && result.Report != nil {
		if result.Report.Outcome == build.OutcomeSuccess {
			_, _ = fmt.Fprintln(g.stdout(), result.Report.Summary())
		} else {
			_, _ = fmt.Fprint(g.stdout(), result.Report.Text())
		}
	}
	return result, err
}
