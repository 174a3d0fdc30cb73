package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"

	"github.com/plus3/flatspawn/ecs"
)

type Config struct {
	Run       RunConfig       `toml:"run"`
	Hierarchy HierarchyConfig `toml:"hierarchy"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type RunConfig struct {
	Duration       time.Duration `toml:"duration"`
	Policy         string        `toml:"policy"`    // "skip" or "abort"
	Blueprint      string        `toml:"blueprint"` // optional, replaces the generated tree
	GCPauseMetrics bool          `toml:"gc_pause_metrics"`
}

// HierarchyConfig shapes the tree built for every root. Each level has
// Breadth children per node; nodes on the last level get Batch leaves.
type HierarchyConfig struct {
	Roots   int `toml:"roots"`
	Depth   int `toml:"depth"`
	Breadth int `toml:"breadth"`
	Batch   int `toml:"batch"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	Listen string `toml:"listen"` // empty disables the /metrics endpoint
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Run: RunConfig{
			Duration: 10 * time.Second,
			Policy:   "skip",
		},
		Hierarchy: HierarchyConfig{
			Roots:   100,
			Depth:   3,
			Breadth: 4,
			Batch:   8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.Run.Duration <= 0 {
		err = multierr.Append(err, fmt.Errorf("run.duration must be positive, got %s", c.Run.Duration))
	}
	if _, perr := c.FlushPolicy(); perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.Hierarchy.Roots < 1 {
		err = multierr.Append(err, fmt.Errorf("hierarchy.roots must be at least 1, got %d", c.Hierarchy.Roots))
	}
	if c.Hierarchy.Depth < 0 {
		err = multierr.Append(err, fmt.Errorf("hierarchy.depth cannot be negative, got %d", c.Hierarchy.Depth))
	}
	if c.Hierarchy.Breadth < 1 {
		err = multierr.Append(err, fmt.Errorf("hierarchy.breadth must be at least 1, got %d", c.Hierarchy.Breadth))
	}
	if c.Hierarchy.Batch < 0 {
		err = multierr.Append(err, fmt.Errorf("hierarchy.batch cannot be negative, got %d", c.Hierarchy.Batch))
	}
	return err
}

func (c *Config) FlushPolicy() (ecs.FlushPolicy, error) {
	switch c.Run.Policy {
	case "", "skip":
		return ecs.FlushSkip, nil
	case "abort":
		return ecs.FlushAbort, nil
	default:
		return ecs.FlushSkip, fmt.Errorf("run.policy must be \"skip\" or \"abort\", got %q", c.Run.Policy)
	}
}

// EntitiesPerRoot is the size of one generated tree, root included.
func (h HierarchyConfig) EntitiesPerRoot() int {
	total, level := 1, 1
	for range h.Depth {
		level *= h.Breadth
		total += level
	}
	return total + level*h.Batch
}
