package config

import (
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

// Config represents the docweave configuration file.
type Config struct {
	Version string        `yaml:"version"`
	Source  SourceConfig  `yaml:"source"`
	Output  OutputConfig  `yaml:"output"`
	Build   BuildConfig   `yaml:"build"`
	XRef    XRefConfig    `yaml:"xref"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Events  EventsConfig  `yaml:"events,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// SourceConfig lists the directories scanned for input documents.
type SourceConfig struct {
	Dirs    []string `yaml:"dirs"`
	Include []string `yaml:"include,omitempty"` // glob patterns relative to each dir
	Exclude []string `yaml:"exclude,omitempty"`
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     bool   `yaml:"clean"`
	// BaseURL is used when publishing the produced xrefmap so that external
	// consumers can resolve hrefs without knowing the site root.
	BaseURL string `yaml:"base_url,omitempty"`
}

// BuildConfig holds pipeline tuning knobs and driver policy.
type BuildConfig struct {
	MaxParallelism     int  `yaml:"max_parallelism,omitempty"`
	CPUPermits         int  `yaml:"cpu_permits,omitempty"`
	DiskPermits        int  `yaml:"disk_permits,omitempty"`
	NetworkPermits     int  `yaml:"network_permits,omitempty"`
	LRUCapacity        int  `yaml:"lru_capacity,omitempty"`
	FailOnDuplicateUID bool `yaml:"fail_on_duplicate_uid,omitempty"`
	FailOnUnresolved   bool `yaml:"fail_on_unresolved,omitempty"`
	// Groups maps group names (e.g. versions) to output destination prefixes.
	Groups []GroupConfig `yaml:"groups,omitempty"`
}

// GroupConfig declares a version/group and the source dirs belonging to it.
type GroupConfig struct {
	Name        string         `yaml:"name"`
	Destination string         `yaml:"destination,omitempty"`
	Dirs        []string       `yaml:"dirs,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty"`
}

// XRefConfig configures external reference containers and their download policy.
type XRefConfig struct {
	Containers        []ContainerConfig `yaml:"containers,omitempty"`
	Timeout           string            `yaml:"timeout,omitempty"`
	MaxRetries        int               `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode  `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string            `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string            `yaml:"retry_max_delay,omitempty"`
	Cache             XRefCacheConfig   `yaml:"cache,omitempty"`
}

// ContainerConfig describes one external reference container. Exactly one of
// Path or URL must be set.
type ContainerConfig struct {
	Name string        `yaml:"name"`
	Kind ContainerKind `yaml:"kind,omitempty"`
	Path string        `yaml:"path,omitempty"`
	URL  string        `yaml:"url,omitempty"`
}

// XRefCacheConfig configures the optional NATS KV cache for downloaded maps.
type XRefCacheConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Bucket  string `yaml:"bucket,omitempty"`
	TTL     string `yaml:"ttl,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// EventsConfig enables the SQLite build event log.
type EventsConfig struct {
	Database string `yaml:"database,omitempty"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load loads, normalizes, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	if loaded := loadEnvFiles(); loaded != "" {
		slog.Debug("Loaded environment variables", "path", loaded)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "read config file").Fatal().Build()
	}

	// Expand environment variables in the YAML content
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "unmarshal config").Fatal().Build()
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}

	example := Config{
		Version: CurrentVersion,
		Source:  SourceConfig{Dirs: []string{"docs", "api"}},
		Output:  OutputConfig{Directory: "./_site", Clean: true},
		Build:   BuildConfig{MaxParallelism: DefaultMaxParallelism},
		XRef: XRefConfig{
			Containers: []ContainerConfig{
				{Name: "dotnet", Kind: ContainerRemote, URL: "https://learn.microsoft.com/en-us/dotnet/.xrefmap.json"},
			},
			Timeout:      "30s",
			MaxRetries:   3,
			RetryBackoff: RetryBackoffExponential,
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}
