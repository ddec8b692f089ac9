package swapchain

import (
	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// SelectFormat picks the preferred format when the surface supports it.
// A surface reporting a single undefined format has no preference and gets
// the preferred one. Otherwise the first supported format is used.
func SelectFormat(formats []gfx.SurfaceFormat, preferred gfx.SurfaceFormat) (gfx.SurfaceFormat, bool) {
	if len(formats) == 0 {
		return gfx.SurfaceFormat{}, false
	}
	if len(formats) == 1 && formats[0].Format == gfx.FormatUndefined {
		return preferred, true
	}
	for _, f := range formats {
		if f == preferred {
			return f, true
		}
	}
	return formats[0], true
}

// SelectPresentMode returns preferred if the surface supports it and FIFO,
// which every surface supports, otherwise.
func SelectPresentMode(modes []gfx.PresentMode, preferred gfx.PresentMode) gfx.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return gfx.PresentModeFIFO
}

// SelectExtent uses the surface's current extent when it reports one, and
// otherwise clamps the window size into the supported range.
func SelectExtent(caps gfx.Capabilities, window gfx.Extent) gfx.Extent {
	if caps.CurrentExtent.Width != gfx.UndefinedExtent {
		return caps.CurrentExtent
	}
	return gfx.Extent{
		Width:  clamp(window.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(window.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// SelectImageCount asks for one image more than the minimum, bounded by
// the maximum when the surface has one.
func SelectImageCount(caps gfx.Capabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
