package swapchain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

var (
	bgraSrgb  = gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	bgraUnorm = gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
	rgbaUnorm = gfx.SurfaceFormat{Format: gfx.FormatR8G8B8A8Unorm, ColorSpace: gfx.ColorSpaceSrgbNonlinear}
)

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		name    string
		formats []gfx.SurfaceFormat
		want    gfx.SurfaceFormat
		ok      bool
	}{
		{"preferred present", []gfx.SurfaceFormat{bgraUnorm, bgraSrgb, rgbaUnorm}, bgraSrgb, true},
		{"falls back to first", []gfx.SurfaceFormat{rgbaUnorm, bgraUnorm}, rgbaUnorm, true},
		{"fallback is order stable", []gfx.SurfaceFormat{bgraUnorm, rgbaUnorm}, bgraUnorm, true},
		{"color space must match", []gfx.SurfaceFormat{{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: 1000104001}, rgbaUnorm}, gfx.SurfaceFormat{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: 1000104001}, true},
		{"undefined means any", []gfx.SurfaceFormat{{Format: gfx.FormatUndefined}}, bgraSrgb, true},
		{"none", nil, gfx.SurfaceFormat{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectFormat(tt.formats, bgraSrgb)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectFormatRepeatable(t *testing.T) {
	formats := []gfx.SurfaceFormat{rgbaUnorm, bgraUnorm}
	for i := 0; i < 10; i++ {
		got, _ := SelectFormat(formats, bgraSrgb)
		assert.Equal(t, rgbaUnorm, got)
	}
}

func TestSelectPresentMode(t *testing.T) {
	assert.Equal(t, gfx.PresentModeMailbox,
		SelectPresentMode([]gfx.PresentMode{gfx.PresentModeFIFO, gfx.PresentModeMailbox}, gfx.PresentModeMailbox))
	assert.Equal(t, gfx.PresentModeFIFO,
		SelectPresentMode([]gfx.PresentMode{gfx.PresentModeImmediate, gfx.PresentModeFIFO}, gfx.PresentModeMailbox))
	assert.Equal(t, gfx.PresentModeFIFO, SelectPresentMode(nil, gfx.PresentModeMailbox))
	assert.Equal(t, gfx.PresentModeImmediate,
		SelectPresentMode([]gfx.PresentMode{gfx.PresentModeFIFO, gfx.PresentModeImmediate}, gfx.PresentModeImmediate))
}

func TestSelectExtent(t *testing.T) {
	caps := gfx.Capabilities{
		CurrentExtent:  gfx.Extent{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
		MinImageExtent: gfx.Extent{Width: 64, Height: 64},
		MaxImageExtent: gfx.Extent{Width: 4096, Height: 4096},
	}
	assert.Equal(t, gfx.Extent{Width: 64, Height: 64}, SelectExtent(caps, gfx.Extent{Width: 10, Height: 10}))
	assert.Equal(t, gfx.Extent{Width: 4096, Height: 4096}, SelectExtent(caps, gfx.Extent{Width: 8000, Height: 8000}))
	assert.Equal(t, gfx.Extent{Width: 800, Height: 600}, SelectExtent(caps, gfx.Extent{Width: 800, Height: 600}))
	assert.Equal(t, gfx.Extent{Width: 64, Height: 4096}, SelectExtent(caps, gfx.Extent{Width: 1, Height: 9000}))

	caps.CurrentExtent = gfx.Extent{Width: 1024, Height: 768}
	assert.Equal(t, gfx.Extent{Width: 1024, Height: 768}, SelectExtent(caps, gfx.Extent{Width: 10, Height: 10}))
}

func TestSelectImageCount(t *testing.T) {
	assert.Equal(t, uint32(3), SelectImageCount(gfx.Capabilities{MinImageCount: 2}))
	assert.Equal(t, uint32(3), SelectImageCount(gfx.Capabilities{MinImageCount: 2, MaxImageCount: 8}))
	assert.Equal(t, uint32(2), SelectImageCount(gfx.Capabilities{MinImageCount: 2, MaxImageCount: 2}))
}
