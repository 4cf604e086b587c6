package build

import (
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/docweave/internal/config"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/parallel"
	"git.home.luguber.info/inful/docweave/internal/retry"
	"git.home.luguber.info/inful/docweave/internal/xref"
)

// ContainerDeps are the shared collaborators handed to configured containers.
type ContainerDeps struct {
	Throttle *parallel.Throttle
	Recorder metrics.Recorder
	Cache    xref.BlobCache
	Client   *http.Client
	Logger   *slog.Logger
}

// ContainersFromConfig builds the external reference containers in
// declaration order.
func ContainersFromConfig(cfg *config.Config, deps ContainerDeps) []xref.Container {
	out := make([]xref.Container, 0, len(cfg.XRef.Containers))
	for _, c := range cfg.XRef.Containers {
		switch c.Kind {
		case config.ContainerArchive:
			out = append(out, xref.NewArchiveContainer(c.Name, c.Path, cfg.Build.LRUCapacity, deps.Throttle, deps.Recorder))
		case config.ContainerRemote:
			rc := xref.NewRemoteContainer(c.Name, c.URL)
			rc.Timeout = cfg.XRefTimeout()
			rc.Policy = retry.FromConfig(cfg)
			rc.Cache = deps.Cache
			rc.Throttle = deps.Throttle
			rc.Recorder = deps.Recorder
			rc.ShardCapacity = cfg.Build.LRUCapacity
			rc.Logger = deps.Logger
			if deps.Client != nil {
				rc.Client = deps.Client
			}
			out = append(out, rc)
		default:
			out = append(out, xref.NewFileContainer(c.Name, c.Path, deps.Throttle))
		}
	}
	return out
}
