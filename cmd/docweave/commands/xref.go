package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	json "github.com/goccy/go-json"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// XRefCmd groups reference container queries.
type XRefCmd struct {
	Lookup XRefLookupCmd `cmd:"" help:"Resolve UIDs against the configured containers"`
}

// XRefLookupCmd implements 'xref lookup'.
type XRefLookupCmd struct {
	UIDs []string `arg:"" name:"uid" help:"UIDs to resolve"`
	JSON bool     `help:"Print descriptors as JSON"`
}

func (x *XRefLookupCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rt, err := newRuntime(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer rt.Close()
	return lookup(ctx, rt, cfg, x.UIDs, x.JSON, g.stdout())
}

func lookup(ctx context.Context, rt *runtime, cfg *config.Config, uids []string, asJSON bool, out io.Writer) error {
	resolver := xref.NewResolver(nil, rt.containers(cfg), xref.Options{
		Logger:   rt.logger,
		Recorder: rt.recorder,
		OnUnavailable: func(container string, err error) {
			rt.logger.Warn("Reference container unavailable", logfields.Container(container), logfields.Error(err))
		},
	})
	defer func() { _ = resolver.Close() }()

	var missing []string
	found := make([]xref.Spec, 0, len(uids))
	for _, uid := range uids {
		res, err := resolver.FindExternal(ctx, uid)
		if err != nil {
			return err
		}
		if !res.Found {
			missing = append(missing, uid)
			if !asJSON {
				_, _ = fmt.Fprintf(out, "%s\t(not found)\n", uid)
			}
			continue
		}
		found = append(found, res.Spec)
		if !asJSON {
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t[%s]\n", uid, res.Spec.DisplayName(), res.Spec.Href, res.Container)
		}
	}

	if asJSON {
		data, err := json.MarshalIndent(found, "", "  ")
		if err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "encode descriptors").Build()
		}
		_, _ = fmt.Fprintln(out, string(data))
	}
	if len(missing) > 0 {
		return errors.NotFoundError(fmt.Sprintf("%d of %d UIDs not found", len(missing), len(uids))).
			WithContext("uids", strings.Join(missing, ",")).Build()
	}
	return nil
}
