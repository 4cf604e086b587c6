package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Validate checks the configuration after defaults have been applied.
func Validate(cfg *Config) error {
	if cfg.Version != CurrentVersion {
		return errors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected %s)", cfg.Version, CurrentVersion)).Build()
	}
	if err := validateContainers(cfg.XRef.Containers); err != nil {
		return err
	}
	for _, field := range []struct{ name, value string }{
		{"xref.timeout", cfg.XRef.Timeout},
		{"xref.retry_initial_delay", cfg.XRef.RetryInitialDelay},
		{"xref.retry_max_delay", cfg.XRef.RetryMaxDelay},
		{"xref.cache.ttl", cfg.XRef.Cache.TTL},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "invalid duration").
				Fatal().WithContext("field", field.name).Build()
		}
	}
	groups := make(map[string]bool, len(cfg.Build.Groups))
	for _, g := range cfg.Build.Groups {
		if g.Name == "" {
			return errors.ConfigError("group name cannot be empty").Build()
		}
		if groups[g.Name] {
			return errors.ConfigError("duplicate group name: " + g.Name).Build()
		}
		groups[g.Name] = true
	}
	return nil
}

func validateContainers(containers []ContainerConfig) error {
	names := make(map[string]bool, len(containers))
	for _, c := range containers {
		if names[c.Name] {
			return errors.ConfigError("duplicate xref container name: " + c.Name).Build()
		}
		names[c.Name] = true

		if (c.Path == "") == (c.URL == "") {
			return errors.ConfigError("xref container needs exactly one of path or url").
				WithContext("container", c.Name).Build()
		}
		if c.Kind == ContainerRemote && c.URL == "" {
			return errors.ConfigError("remote xref container requires url").
				WithContext("container", c.Name).Build()
		}
		if c.Kind != ContainerRemote && c.URL != "" {
			return errors.ConfigError("url is only valid for remote xref containers").
				WithContext("container", c.Name).Build()
		}
	}
	return nil
}

// XRefTimeout returns the parsed per-download timeout.
func (c *Config) XRefTimeout() time.Duration {
	return mustDuration(c.XRef.Timeout, 30*time.Second)
}

// XRefRetryDelays returns the parsed initial and maximum retry delays.
func (c *Config) XRefRetryDelays() (initial, maxDelay time.Duration) {
	return mustDuration(c.XRef.RetryInitialDelay, 500*time.Millisecond), mustDuration(c.XRef.RetryMaxDelay, 10*time.Second)
}

// XRefCacheTTL returns the parsed cache TTL.
func (c *Config) XRefCacheTTL() time.Duration {
	return mustDuration(c.XRef.Cache.TTL, 24*time.Hour)
}

func mustDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
