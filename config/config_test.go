package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abihf/framecast/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, def, *cfg)
	assert.Equal(t, "localhost:8000", cfg.Server.Bind)
	assert.Equal(t, "pattern", cfg.Source.Kind)
	assert.Equal(t, 1280, cfg.Source.MaxWidth)
	assert.Equal(t, 30.0, cfg.Stream.FPS)
	assert.Equal(t, 80, cfg.Stream.Quality)
	assert.Equal(t, 95, cfg.Output.Quality)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
lock_file = "/run/framecastd.lock"

[server]
bind = "0.0.0.0:9000"
path = "ws"

[source]
kind = "FFmpeg"
path = "/srv/VideoTest.mp4"
cpus = [2]

[stream]
quality = 70

[output]
dir = "/srv/frames"
manifest = ""
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Bind)
	assert.Equal(t, "/ws", cfg.Server.Path)
	assert.Equal(t, "ffmpeg", cfg.Source.Kind)
	assert.Equal(t, []int{2}, cfg.Source.CPUs)
	assert.Equal(t, 70, cfg.Stream.Quality)
	assert.Equal(t, 30.0, cfg.Stream.FPS)
	assert.Equal(t, "/srv/frames", cfg.Output.Dir)
	assert.Empty(t, cfg.Output.Manifest)
	assert.Equal(t, "/run/framecastd.lock", cfg.LockFile)

	opts := cfg.SourceOptions()
	assert.Equal(t, "ffmpeg", opts.Kind)
	assert.Equal(t, "/srv/VideoTest.mp4", opts.Path)
}

func TestLoad_InvalidToml(t *testing.T) {
	_, err := config.Load(writeConfig(t, "[server\nbind ="))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *config.Config){
		"source.kind":    func(c *config.Config) { c.Source.Kind = "rtsp" },
		"source.path":    func(c *config.Config) { c.Source.Kind = "sequence" },
		"source.fps":     func(c *config.Config) { c.Source.FPS = -1 },
		"source.cpus":    func(c *config.Config) { c.Source.CPUs = []int{-3} },
		"stream.quality": func(c *config.Config) { c.Stream.Quality = 101 },
		"output.quality": func(c *config.Config) { c.Output.Quality = 0 },
	}
	for want, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		err := cfg.Validate()
		if assert.Error(t, err, want) {
			assert.Contains(t, err.Error(), want)
		}
	}

	cfg := config.Default()
	assert.NoError(t, cfg.Validate())
}
