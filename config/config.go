// Package config holds the application settings, read from an optional TOML
// file and then overridden from the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// Config is the full set of settings.
type Config struct {
	Title          string `toml:"title"`
	Width          int    `toml:"width"`
	Height         int    `toml:"height"`
	FramesInFlight int    `toml:"frames_in_flight"`
	// Validation enables VK_LAYER_KHRONOS_validation.
	Validation  bool   `toml:"validation"`
	PresentMode string `toml:"present_mode"`
	Format      string `toml:"format"`
	// FenceTimeout is a Go duration; "0" waits forever.
	FenceTimeout string `toml:"fence_timeout"`
	ShaderDir    string `toml:"shader_dir"`
	Verbose      bool   `toml:"verbose"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Title:          "vks tutorial-triangle",
		Width:          800,
		Height:         600,
		FramesInFlight: 2,
		Validation:     true,
		PresentMode:    "mailbox",
		Format:         "bgra8-srgb",
		FenceTimeout:   "0",
		ShaderDir:      ".",
	}
}

var presentModes = map[string]gfx.PresentMode{
	"immediate":    gfx.PresentModeImmediate,
	"mailbox":      gfx.PresentModeMailbox,
	"fifo":         gfx.PresentModeFIFO,
	"fifo-relaxed": gfx.PresentModeFIFORelaxed,
}

var formats = map[string]gfx.Format{
	"bgra8-srgb":  gfx.FormatB8G8R8A8Srgb,
	"bgra8-unorm": gfx.FormatB8G8R8A8Unorm,
	"rgba8-srgb":  gfx.FormatR8G8B8A8Srgb,
	"rgba8-unorm": gfx.FormatR8G8B8A8Unorm,
}

// LoadFile reads path over c. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// Parse builds the configuration from the command line: defaults, then the
// file named by --config, then any other flag that was set.
func Parse(name string, args []string) (Config, error) {
	c := Default()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := fs.String("config", "triangle.toml", "TOML configuration file")
	var flags Config
	fs.StringVar(&flags.Title, "title", c.Title, "window title")
	fs.IntVar(&flags.Width, "width", c.Width, "initial window width")
	fs.IntVar(&flags.Height, "height", c.Height, "initial window height")
	fs.IntVar(&flags.FramesInFlight, "frames", c.FramesInFlight, "frames in flight")
	fs.BoolVar(&flags.Validation, "validation", c.Validation, "enable the Khronos validation layer")
	fs.StringVar(&flags.PresentMode, "present-mode", c.PresentMode, "preferred present mode (immediate, mailbox, fifo, fifo-relaxed)")
	fs.StringVar(&flags.Format, "format", c.Format, "preferred surface format (bgra8-srgb, bgra8-unorm, rgba8-srgb, rgba8-unorm)")
	fs.StringVar(&flags.FenceTimeout, "fence-timeout", c.FenceTimeout, "timeout for GPU waits, 0 for none")
	fs.StringVar(&flags.ShaderDir, "shaders", c.ShaderDir, "directory holding vert.spv and frag.spv")
	fs.BoolVarP(&flags.Verbose, "verbose", "v", c.Verbose, "debug logging")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if err := c.LoadFile(*path); err != nil {
		return c, err
	}
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "title":
			c.Title = flags.Title
		case "width":
			c.Width = flags.Width
		case "height":
			c.Height = flags.Height
		case "frames":
			c.FramesInFlight = flags.FramesInFlight
		case "validation":
			c.Validation = flags.Validation
		case "present-mode":
			c.PresentMode = flags.PresentMode
		case "format":
			c.Format = flags.Format
		case "fence-timeout":
			c.FenceTimeout = flags.FenceTimeout
		case "shaders":
			c.ShaderDir = flags.ShaderDir
		case "verbose":
			c.Verbose = flags.Verbose
		}
	})
	return c, c.Validate()
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: window size %dx%d must be positive", c.Width, c.Height)
	}
	if c.FramesInFlight < 1 {
		return fmt.Errorf("config: frames_in_flight must be at least 1, got %d", c.FramesInFlight)
	}
	if _, ok := presentModes[c.PresentMode]; !ok {
		return fmt.Errorf("config: unknown present mode %q", c.PresentMode)
	}
	if _, ok := formats[c.Format]; !ok {
		return fmt.Errorf("config: unknown format %q", c.Format)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// PreferredPresentMode returns the configured present mode.
func (c *Config) PreferredPresentMode() gfx.PresentMode {
	return presentModes[c.PresentMode]
}

// PreferredFormat returns the configured format in the sRGB nonlinear color
// space.
func (c *Config) PreferredFormat() gfx.SurfaceFormat {
	return gfx.SurfaceFormat{Format: formats[c.Format], ColorSpace: gfx.ColorSpaceSrgbNonlinear}
}

// Timeout parses FenceTimeout. An empty string means no timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.FenceTimeout == "" {
		return gfx.NoTimeout, nil
	}
	d, err := time.ParseDuration(c.FenceTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: fence_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: fence_timeout %s is negative", d)
	}
	return d, nil
}
