package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/huddle-media/media/processor"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

// isolate points config loading at an empty directory and keeps logs quiet.
func isolate(t *testing.T) string {
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", dir)
	t.Setenv("HUDDLE_LOG_OUTPUT", "none")
	return dir
}

func TestPresetOptions(t *testing.T) {
	presets := processor.DefaultPresets()

	opts, err := presetOptions(presets, "avatar", -1, 100, -1)
	require.NoError(t, err)
	assert.Equal(t, processor.CompressionOptions{MaxWidth: 400, MaxHeight: 100, Quality: 0.8}, opts)

	_, err = presetOptions(presets, "poster", -1, -1, -1)
	assert.Error(t, err)

	_, err = presetOptions(presets, "", -1, -1, 3)
	assert.Error(t, err)

	_, err = presetOptions(presets, "", 0, -1, -1)
	assert.Error(t, err)

	opts, err = presetOptions(presets, "", -1, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, opts.Quality)
}

func TestRunCompress(t *testing.T) {
	dir := isolate(t)
	in := writePNG(t, dir, "wide.png", 160, 80)

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), "compress", []string{"-in", in, "-max-width", "40"}, &stdout))

	img := processor.EncodedImage(strings.TrimSpace(stdout.String()))
	cfg, err := img.Config()
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestRunCropToFile(t *testing.T) {
	dir := isolate(t)
	in := writePNG(t, dir, "src.png", 60, 40)
	out := filepath.Join(dir, "crop.txt")

	args := []string{"-src", in, "-x", "5", "-y", "5", "-w", "20", "-h", "10", "-rotation", "180", "-flip-h", "-out", out}
	require.NoError(t, run(context.Background(), "crop", args, &bytes.Buffer{}))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	cfg, err := processor.EncodedImage(raw).Config()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
}

func TestRunBatch(t *testing.T) {
	dir := isolate(t)
	a := writePNG(t, dir, "a.png", 30, 30)
	b := writePNG(t, dir, "b.png", 50, 20)
	missing := filepath.Join(dir, "missing.png")
	outDir := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	err := run(context.Background(), "batch", []string{"-out", outDir, "-workers", "2", a, b, missing}, &stdout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "OK   a"))
	assert.True(t, strings.HasPrefix(lines[1], "OK   b"))
	assert.True(t, strings.HasPrefix(lines[2], "FAIL missing"))

	_, err = os.Stat(filepath.Join(outDir, "compressed", "a.b64"))
	assert.NoError(t, err)
}

func TestRunUsageErrors(t *testing.T) {
	isolate(t)
	assert.Error(t, run(context.Background(), "resize", nil, &bytes.Buffer{}))
	assert.Error(t, run(context.Background(), "compress", nil, &bytes.Buffer{}))
	assert.Error(t, run(context.Background(), "batch", nil, &bytes.Buffer{}))

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), "help", nil, &stdout))
	assert.Contains(t, stdout.String(), "usage")
}
