package config

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Defaults for knobs the pipeline relies on.
const (
	DefaultMaxParallelism = 64
	DefaultLRUCapacity    = 4096
	DefaultXRefTimeout    = "30s"
	DefaultXRefRetries    = 3
	DefaultMetricsListen  = ":9464"
	DefaultCacheBucket    = "docweave-xrefmaps"
)

// normalize case-folds enumerations; unknown container kinds are errors
// because guessing the wrong reader silently drops references.
func normalize(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	for i := range cfg.XRef.Containers {
		c := &cfg.XRef.Containers[i]
		if c.Kind == "" {
			c.Kind = inferContainerKind(*c)
			continue
		}
		kind, err := containerKindNormalizer.Strict("container kind", string(c.Kind))
		if err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "normalize xref containers").
				Fatal().WithContext("container", c.Name).Build()
		}
		c.Kind = kind
	}
	if cfg.XRef.RetryBackoff != "" {
		cfg.XRef.RetryBackoff = NormalizeRetryBackoff(string(cfg.XRef.RetryBackoff))
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

func inferContainerKind(c ContainerConfig) ContainerKind {
	if c.URL != "" {
		return ContainerRemote
	}
	if strings.EqualFold(path.Ext(c.Path), ".zip") {
		return ContainerArchive
	}
	return ContainerFile
}

// applyDefaults fills zero values after normalization.
func applyDefaults(cfg *Config) {
	if len(cfg.Source.Dirs) == 0 {
		cfg.Source.Dirs = []string{"."}
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "./_site"
	}
	if cfg.Build.MaxParallelism <= 0 {
		cfg.Build.MaxParallelism = DefaultMaxParallelism
	}
	if cfg.Build.LRUCapacity <= 0 {
		cfg.Build.LRUCapacity = DefaultLRUCapacity
	}
	if cfg.XRef.Timeout == "" {
		cfg.XRef.Timeout = DefaultXRefTimeout
	}
	if cfg.XRef.MaxRetries < 0 {
		cfg.XRef.MaxRetries = 0
	} else if cfg.XRef.MaxRetries == 0 {
		cfg.XRef.MaxRetries = DefaultXRefRetries
	}
	if cfg.XRef.RetryBackoff == "" {
		cfg.XRef.RetryBackoff = RetryBackoffExponential
	}
	if cfg.XRef.RetryInitialDelay == "" {
		cfg.XRef.RetryInitialDelay = "500ms"
	}
	if cfg.XRef.RetryMaxDelay == "" {
		cfg.XRef.RetryMaxDelay = "10s"
	}
	if cfg.XRef.Cache.NATSURL != "" && cfg.XRef.Cache.Bucket == "" {
		cfg.XRef.Cache.Bucket = DefaultCacheBucket
	}
	if cfg.XRef.Cache.TTL == "" {
		cfg.XRef.Cache.TTL = "24h"
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	for i, c := range cfg.XRef.Containers {
		if c.Name == "" {
			cfg.XRef.Containers[i].Name = defaultContainerName(i, c)
		}
	}
}

func defaultContainerName(i int, c ContainerConfig) string {
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
			return u.Host
		}
	}
	if c.Path != "" {
		return path.Base(c.Path)
	}
	return fmt.Sprintf("container-%d", i)
}
