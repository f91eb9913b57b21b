// Package config loads and validates the worker's easel.yml configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the top-level easel.yml configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Backend   BackendConfig   `yaml:"backend"`
	Worker    WorkerConfig    `yaml:"worker"`
	Intervals IntervalsConfig `yaml:"intervals,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
}

// BackendConfig locates and authenticates against the game backend.
type BackendConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// WorkerConfig identifies this worker process.
type WorkerConfig struct {
	// ID identifies the worker to the backend. Defaults to a generated
	// uuid, which is fine for stateless workers.
	ID string `yaml:"id,omitempty"`

	// PinnedInstance skips unclaimed-instance discovery and always claims
	// this instance id. For pinned and dev deployments.
	PinnedInstance string `yaml:"pinned_instance,omitempty"`
}

// IntervalsConfig sets the driver tick intervals. Values are Go duration
// strings ("20s", "1m30s"); empty values take the defaults.
type IntervalsConfig struct {
	Board      string `yaml:"board,omitempty"`
	LobbyLinks string `yaml:"lobby_links,omitempty"`
	Flags      string `yaml:"flags,omitempty"`

	// Parsed in Validate.
	BoardEvery      time.Duration `yaml:"-"`
	LobbyLinksEvery time.Duration `yaml:"-"`
	FlagsEvery      time.Duration `yaml:"-"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the metrics listen address. Empty disables the endpoint.
	Listen string `yaml:"listen,omitempty"`
}

const (
	defaultBoardInterval      = 20 * time.Second
	defaultLobbyLinksInterval = time.Minute
	defaultFlagsInterval      = 30 * time.Second
)

// Validate performs strict validation and fills defaults.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Backend.APIKey == "" {
		return fmt.Errorf("backend.api_key is required")
	}
	if c.Worker.ID == "" {
		c.Worker.ID = uuid.NewString()
	}

	var err error
	if c.Intervals.BoardEvery, err = parseInterval("intervals.board", c.Intervals.Board, defaultBoardInterval); err != nil {
		return err
	}
	if c.Intervals.LobbyLinksEvery, err = parseInterval("intervals.lobby_links", c.Intervals.LobbyLinks, defaultLobbyLinksInterval); err != nil {
		return err
	}
	if c.Intervals.FlagsEvery, err = parseInterval("intervals.flags", c.Intervals.Flags, defaultFlagsInterval); err != nil {
		return err
	}
	return nil
}

func parseInterval(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q (use values like '20s' or '1m30s')", field, value)
	}
	if d < time.Second {
		return 0, fmt.Errorf("%s: %s is below the 1s minimum", field, d)
	}
	return d, nil
}

// Load reads and validates easel.yml from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
