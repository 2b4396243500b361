// Package config loads and validates analysis configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for codegraph.
type Config struct {
	Flow   FlowConfig  `koanf:"flow"`
	Clones CloneConfig `koanf:"clones"`
	Deps   DepsConfig  `koanf:"deps"`
}

// FlowConfig controls control-/data-flow analysis.
type FlowConfig struct {
	// InfiniteLoopHeuristic enables the advisory non-terminating-loop check.
	InfiniteLoopHeuristic bool `koanf:"infinite_loop_heuristic"`
}

// CloneConfig defines clone detection thresholds.
type CloneConfig struct {
	MinLinesSameFile  int     `koanf:"min_lines_same_file"`
	MinLinesCrossFile int     `koanf:"min_lines_cross_file"`
	WindowSize        int     `koanf:"window_size"`
	Type2Similarity   float64 `koanf:"type2_similarity"`
	Type3Similarity   float64 `koanf:"type3_similarity"`
	Type4Similarity   float64 `koanf:"type4_similarity"`
}

// DepsConfig defines cross-file dependency thresholds.
type DepsConfig struct {
	GodModuleFanOut int `koanf:"god_module_fan_out"`
}

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Flow: FlowConfig{
			InfiniteLoopHeuristic: true,
		},
		Clones: CloneConfig{
			MinLinesSameFile:  15,
			MinLinesCrossFile: 10,
			WindowSize:        6,
			Type2Similarity:   0.85,
			Type3Similarity:   0.60,
			Type4Similarity:   0.75,
		},
		Deps: DepsConfig{
			GodModuleFanOut: 10,
		},
	}
}

// Load loads configuration from a file, layered over defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"codegraph.toml",
		"codegraph.yaml",
		"codegraph.yml",
		"codegraph.json",
		".codegraph.toml",
		".codegraph.yaml",
		".codegraph.yml",
		".codegraph.json",
	}

	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			cfg, err := Load(name)
			if err == nil {
				return cfg
			}
		}
	}

	return Default()
}

// Validate rejects configurations that would make downstream results
// meaningless. It must be called before any file is processed: a bad
// threshold fails the whole invocation, not individual files.
func (c *Config) Validate() error {
	if c.Clones.MinLinesSameFile < 1 {
		return fmt.Errorf("invalid config: clones.min_lines_same_file must be >= 1, got %d", c.Clones.MinLinesSameFile)
	}
	if c.Clones.MinLinesCrossFile < 1 {
		return fmt.Errorf("invalid config: clones.min_lines_cross_file must be >= 1, got %d", c.Clones.MinLinesCrossFile)
	}
	if c.Clones.WindowSize < 2 {
		return fmt.Errorf("invalid config: clones.window_size must be >= 2, got %d", c.Clones.WindowSize)
	}
	if c.Clones.Type2Similarity <= 0 || c.Clones.Type2Similarity > 1 {
		return fmt.Errorf("invalid config: clones.type2_similarity must be in (0, 1], got %g", c.Clones.Type2Similarity)
	}
	if c.Clones.Type3Similarity <= 0 || c.Clones.Type3Similarity > 1 {
		return fmt.Errorf("invalid config: clones.type3_similarity must be in (0, 1], got %g", c.Clones.Type3Similarity)
	}
	if c.Clones.Type3Similarity >= c.Clones.Type2Similarity {
		return fmt.Errorf("invalid config: clones.type3_similarity (%g) must be below clones.type2_similarity (%g)",
			c.Clones.Type3Similarity, c.Clones.Type2Similarity)
	}
	if c.Clones.Type4Similarity <= 0 || c.Clones.Type4Similarity > 1 {
		return fmt.Errorf("invalid config: clones.type4_similarity must be in (0, 1], got %g", c.Clones.Type4Similarity)
	}
	if c.Deps.GodModuleFanOut < 1 {
		return fmt.Errorf("invalid config: deps.god_module_fan_out must be >= 1, got %d", c.Deps.GodModuleFanOut)
	}
	return nil
}
