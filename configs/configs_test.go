package configs_test

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/graphreadout/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Readout readoutConfig `yaml:"readout"`
	Tags    []string      `yaml:"tags"`
}

type readoutConfig struct {
	Type     string `yaml:"type"`
	OutDim   int    `yaml:"out_dim"`
	NumHeads int    `yaml:"num_heads"`
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
name: base
readout:
  type: mean
  out_dim: 128
tags: [a, b]
`)
	experiment := writeFile(t, dir, "experiment.yaml", `
readout:
  type: weighted_mean
  num_heads: 8
tags: [c]
`)

	var cfg testConfig
	require.NoError(t, configs.Load(&cfg, []string{base, experiment}, nil))
	assert.Equal(t, "base", cfg.Name, "untouched fields come from the earlier file")
	assert.Equal(t, "weighted_mean", cfg.Readout.Type, "later files override earlier ones")
	assert.Equal(t, 128, cfg.Readout.OutDim, "sections are merged, not replaced")
	assert.Equal(t, 8, cfg.Readout.NumHeads)
	assert.Equal(t, []string{"c"}, cfg.Tags, "lists are replaced, not appended")
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
readout:
  type: mean
  out_dim: 128
`)

	var cfg testConfig
	require.NoError(t, configs.Load(&cfg, []string{base},
		[]string{"readout.out_dim=64", "readout.num_heads=4", "name=overridden"}))
	assert.Equal(t, "mean", cfg.Readout.Type)
	assert.Equal(t, 64, cfg.Readout.OutDim, "overrides win over files")
	assert.Equal(t, 4, cfg.Readout.NumHeads, "overrides may create new fields")
	assert.Equal(t, "overridden", cfg.Name)

	err := configs.Load(&cfg, nil, []string{"no-equal-sign"})
	require.ErrorContains(t, err, "key=value")

	err = configs.Load(&cfg, []string{base}, []string{"readout.type.deeper=1"})
	require.Error(t, err, "descending through a scalar must fail")
}

func TestLoadKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	partial := writeFile(t, dir, "partial.yaml", `
readout:
  out_dim: 32
`)
	cfg := testConfig{Name: "default-name", Readout: readoutConfig{Type: "sum", OutDim: 128}}
	require.NoError(t, configs.Load(&cfg, []string{partial}, nil))
	assert.Equal(t, "default-name", cfg.Name, "pre-filled defaults survive")
	assert.Equal(t, "sum", cfg.Readout.Type)
	assert.Equal(t, 32, cfg.Readout.OutDim)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	var cfg testConfig

	err := configs.Load(&cfg, []string{filepath.Join(dir, "missing.yaml")}, nil)
	require.ErrorContains(t, err, "missing.yaml")

	bad := writeFile(t, dir, "bad.yaml", "readout: [unclosed")
	err = configs.Load(&cfg, []string{bad}, nil)
	require.ErrorContains(t, err, "bad.yaml")

	unknown := writeFile(t, dir, "unknown.yaml", "no_such_field: 1")
	err = configs.Load(&cfg, []string{unknown}, nil)
	require.Error(t, err, "unknown fields must be rejected")
}

func TestParseArgs(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", `
readout:
  type: mean
  out_dim: 128
`)
	experiment := writeFile(t, dir, "experiment.yaml", "name: exp")

	var cfg testConfig
	rest, err := configs.ParseArgs(&cfg, []string{
		"--config", base, "--config=" + experiment,
		"readout.out_dim=16", "train", "-v",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"train", "-v"}, rest)
	assert.Equal(t, "exp", cfg.Name)
	assert.Equal(t, "mean", cfg.Readout.Type)
	assert.Equal(t, 16, cfg.Readout.OutDim, "command line overrides come after all files")

	_, err = configs.ParseArgs(&cfg, []string{"--config"})
	require.ErrorContains(t, err, "missing its file path")
}

func TestFilesFlag(t *testing.T) {
	var files configs.Files
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&files, "config", "")
	require.NoError(t, fs.Parse([]string{"-config", "a.yaml", "-config", "b.yaml"}))
	assert.Equal(t, configs.Files{"a.yaml", "b.yaml"}, files)
	assert.Equal(t, "a.yaml,b.yaml", files.String())
}
