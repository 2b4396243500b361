package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadTOMLLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codegraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[clones]
min_lines_cross_file = 5

[deps]
god_module_fan_out = 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Clones.MinLinesCrossFile)
	assert.Equal(t, 3, cfg.Deps.GodModuleFanOut)
	// untouched keys keep their defaults
	assert.Equal(t, 15, cfg.Clones.MinLinesSameFile)
	assert.True(t, cfg.Flow.InfiniteLoopHeuristic)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
clones:
  window_size: 4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Clones.WindowSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.Equal(t, Default(), LoadOrDefault())
}

func TestLoadOrDefaultFindsProjectConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codegraph.toml"), []byte(`
[deps]
god_module_fan_out = 7
`), 0o644))
	t.Chdir(dir)

	assert.Equal(t, 7, LoadOrDefault().Deps.GodModuleFanOut)
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := map[string]func(*Config){
		"zero min lines same file":  func(c *Config) { c.Clones.MinLinesSameFile = 0 },
		"zero min lines cross file": func(c *Config) { c.Clones.MinLinesCrossFile = 0 },
		"window too small":          func(c *Config) { c.Clones.WindowSize = 1 },
		"type2 above one":           func(c *Config) { c.Clones.Type2Similarity = 1.5 },
		"type3 zero":                func(c *Config) { c.Clones.Type3Similarity = 0 },
		"type3 band inverted":       func(c *Config) { c.Clones.Type3Similarity = 0.9 },
		"type4 negative":            func(c *Config) { c.Clones.Type4Similarity = -0.1 },
		"zero god module fan out":   func(c *Config) { c.Deps.GodModuleFanOut = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
