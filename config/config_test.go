package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/huddle-media/media/processor"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func testOptions(dir string, mode EnvMode) ConfigOptions {
	return ConfigOptions{
		BasePath:  dir,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: EnvPrefix,
		Mode:      mode,
	}
}

func TestParseEnv(t *testing.T) {
	tests := map[string]EnvMode{
		"":            DevMode,
		"dev":         DevMode,
		"PRODUCTION":  ProMode,
		" prod ":      ProMode,
		"testing":     TestMode,
		"staging-ish": DevMode,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseEnv(in), "input %q", in)
	}
}

func TestLoadDefaultsWithoutFiles(t *testing.T) {
	app, c, err := Load(testOptions(filepath.Join(t.TempDir(), "missing"), TestMode))
	require.NoError(t, err)
	assert.Empty(t, c.Files())

	assert.Equal(t, ":8080", app.Server.Addr)
	assert.Equal(t, 15*time.Second, app.Server.ReadTimeout)
	assert.Equal(t, int64(20<<20), app.Server.MaxBodyBytes)
	assert.Equal(t, 20, app.Server.RateBurst)
	assert.Equal(t, []string{"GET", "POST", "OPTIONS"}, app.Server.CORS.AllowedMethods)
	assert.Empty(t, app.Server.CORS.AllowedOrigins)
	assert.Equal(t, int64(64<<20), app.Source.CacheMaxBytes)
	assert.Equal(t, "bilinear", app.Media.Resampler)
	assert.Equal(t, 0.92, app.Media.CropQuality)
	assert.Equal(t, int64(20<<20), app.Source.MaxBytes)
	assert.Equal(t, int64(50_000_000), app.Media.MaxPixels)
	assert.False(t, app.Source.AllowPrivateNetworks)
	assert.Equal(t, 4, app.Batch.Workers)
	assert.Equal(t, "local", app.Storage.Type)
	assert.Equal(t, "info", app.Log.Level)

	assert.Equal(t, processor.DefaultPresets(), app.Media.PresetTable())
}

func TestLoadMergesEnvironmentFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
server:
  addr: ":9000"
media:
  presets:
    banner:
      max-width: 1600
      max-height: 400
    avatar:
      max-width: 256
      max-height: 256
      quality: 0.9
source:
  allowed-origins:
    - https://cdn.huddle.example
`)
	writeFile(t, dir, "config.production.yaml", `
server:
  addr: ":80"
batch:
  workers: 8
`)
	writeFile(t, dir, "config.test.yaml", `
server:
  addr: ":7000"
`)

	app, c, err := Load(testOptions(dir, ProMode))
	require.NoError(t, err)
	assert.Len(t, c.Files(), 2)

	assert.Equal(t, ":80", app.Server.Addr)
	assert.Equal(t, 8, app.Batch.Workers)
	assert.Equal(t, []string{"https://cdn.huddle.example"}, app.Source.AllowedOrigins)

	presets := app.Media.PresetTable()
	assert.Equal(t, processor.CompressionOptions{MaxWidth: 1600, MaxHeight: 400, Quality: 0.7}, presets["banner"])
	assert.Equal(t, processor.CompressionOptions{MaxWidth: 256, MaxHeight: 256, Quality: 0.9}, presets[processor.PresetAvatar])
	assert.Equal(t, 1200, presets[processor.PresetVerificationDocument].MaxWidth)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "server:\n  addr: \":9000\"\n")

	t.Setenv("HUDDLE_SERVER_ADDR", ":9100")
	t.Setenv("HUDDLE_BATCH_WORKERS", "2")
	t.Setenv("HUDDLE_SOURCE_FETCH_TIMEOUT", "3s")

	app, _, err := Load(testOptions(dir, DevMode))
	require.NoError(t, err)
	assert.Equal(t, ":9100", app.Server.Addr)
	assert.Equal(t, 2, app.Batch.Workers)
	assert.Equal(t, 3*time.Second, app.Source.FetchTimeout)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"bad quality":   "media:\n  presets:\n    x:\n      quality: 1.5\n",
		"bad resampler": "media:\n  resampler: sinc\n",
		"bad storage":   "storage:\n  type: s3\n",
		"oss w/o host":  "storage:\n  type: oss\n",
		"bad log":       "log:\n  format: xml\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "config.yaml", content)
			_, _, err := Load(testOptions(dir, DevMode))
			assert.Error(t, err)
		})
	}
}

func TestWatchRequiresFile(t *testing.T) {
	c, err := NewConfig(testOptions(t.TempDir(), DevMode))
	require.NoError(t, err)
	assert.Error(t, c.Watch(func() any { return &AppConfig{} }, nil))
}

func TestGetSet(t *testing.T) {
	c, err := NewConfig(testOptions(t.TempDir(), DevMode))
	require.NoError(t, err)

	c.Set("media.resampler", "lanczos3")
	assert.Equal(t, "lanczos3", c.Get("media.resampler"))
}
