package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, gfx.PresentModeMailbox, c.PreferredPresentMode())
	assert.Equal(t, gfx.FormatB8G8R8A8Srgb, c.PreferredFormat().Format)
	d, err := c.Timeout()
	require.NoError(t, err)
	assert.Equal(t, gfx.NoTimeout, d)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triangle.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseFile(t *testing.T) {
	path := writeConfig(t, `
title = "resize test"
width = 1024
height = 768
frames_in_flight = 3
validation = false
present_mode = "fifo"
fence_timeout = "2s"
`)
	c, err := Parse("triangle", []string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, "resize test", c.Title)
	assert.Equal(t, 1024, c.Width)
	assert.Equal(t, 768, c.Height)
	assert.Equal(t, 3, c.FramesInFlight)
	assert.False(t, c.Validation)
	assert.Equal(t, gfx.PresentModeFIFO, c.PreferredPresentMode())
	assert.Equal(t, "bgra8-srgb", c.Format)
	d, err := c.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "width = 1024\nframes_in_flight = 3\n")
	c, err := Parse("triangle", []string{"--config", path, "--frames", "1", "--validation=false", "-v"})
	require.NoError(t, err)
	assert.Equal(t, 1024, c.Width)
	assert.Equal(t, 1, c.FramesInFlight)
	assert.False(t, c.Validation)
	assert.True(t, c.Verbose)
}

func TestMissingFileUsesDefaults(t *testing.T) {
	c, err := Parse("triangle", []string{"--config", filepath.Join(t.TempDir(), "none.toml")})
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestMalformedFile(t *testing.T) {
	path := writeConfig(t, "width = \n")
	_, err := Parse("triangle", []string{"--config", path})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"negative height", func(c *Config) { c.Height = -1 }},
		{"no frames", func(c *Config) { c.FramesInFlight = 0 }},
		{"present mode", func(c *Config) { c.PresentMode = "vsync" }},
		{"format", func(c *Config) { c.Format = "rgb565" }},
		{"timeout", func(c *Config) { c.FenceTimeout = "soon" }},
		{"negative timeout", func(c *Config) { c.FenceTimeout = "-1s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}
