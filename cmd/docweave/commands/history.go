package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"

	"git.home.luguber.info/inful/docweave/internal/eventstore"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of builds to show" default:"10"`
	JSON  bool `help:"Print summaries as JSON"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Events.Database == "" {
		return errors.ConfigError("events.database is not configured").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.Events.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return printHistory(context.Background(), store, h.Limit, h.JSON, g.stdout())
}

func printHistory(ctx context.Context, store eventstore.Store, limit int, asJSON bool, out io.Writer) error {
	proj := eventstore.NewBuildHistoryProjection(store, limit)
	if err := proj.Rebuild(ctx); err != nil {
		return err
	}
	builds := append(proj.Running(), proj.History()...)

	if asJSON {
		data, err := json.MarshalIndent(builds, "", "  ")
		if err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "encode history").Build()
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTARTED\tSTATUS\tDOCUMENTS\tWRITTEN\tDIAGNOSTICS\tDURATION")
	for _, b := range builds {
		diags := 0
		for _, n := range b.Diagnostics {
			diags += n
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			b.BuildID, b.StartedAt.Format(time.RFC3339), b.Status, b.Documents, b.Written, diags,
			b.Duration.Truncate(time.Millisecond))
	}
	return tw.Flush()
}
