package gfxtest

import (
	"fmt"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// Surface is a fake gfx.Surface with fixed answers.
type Surface struct {
	Caps       gfx.Capabilities
	FormatList []gfx.SurfaceFormat
	ModeList   []gfx.PresentMode
	Err        error
}

// NewSurface returns a surface with a free extent between 64x64 and
// 4096x4096, minImageCount 2 and no maximum, one sRGB format and FIFO.
func NewSurface() *Surface {
	return &Surface{
		Caps: gfx.Capabilities{
			MinImageCount:  2,
			CurrentExtent:  gfx.Extent{Width: gfx.UndefinedExtent, Height: gfx.UndefinedExtent},
			MinImageExtent: gfx.Extent{Width: 64, Height: 64},
			MaxImageExtent: gfx.Extent{Width: 4096, Height: 4096},
		},
		FormatList: []gfx.SurfaceFormat{{Format: gfx.FormatB8G8R8A8Srgb, ColorSpace: gfx.ColorSpaceSrgbNonlinear}},
		ModeList:   []gfx.PresentMode{gfx.PresentModeFIFO},
	}
}

func (s *Surface) Capabilities() (gfx.Capabilities, error) { return s.Caps, s.Err }

func (s *Surface) Formats() ([]gfx.SurfaceFormat, error) { return s.FormatList, s.Err }

func (s *Surface) PresentModes() ([]gfx.PresentMode, error) { return s.ModeList, s.Err }

// Window is a fake gfx.Window that replays a list of framebuffer sizes.
// The last size sticks once the list is exhausted.
type Window struct {
	Sizes      [][2]int
	Polls      int
	EventWaits int
	// OnWait, if set, runs on every WaitEvents call.
	OnWait func()
}

// NewWindow returns a window that reports the given sizes in order.
func NewWindow(sizes ...[2]int) *Window {
	return &Window{Sizes: sizes}
}

func (w *Window) FramebufferSize() (int, int) {
	w.Polls++
	if len(w.Sizes) == 0 {
		return 0, 0
	}
	sz := w.Sizes[0]
	if len(w.Sizes) > 1 {
		w.Sizes = w.Sizes[1:]
	}
	return sz[0], sz[1]
}

func (w *Window) WaitEvents() {
	w.EventWaits++
	if w.OnWait != nil {
		w.OnWait()
	}
}

// Renderer is a fake gfx.Renderer that shares the handle space and call
// log of a Device.
type Renderer struct {
	Dev *Device
	// Recorded maps each command buffer to the target it was recorded for.
	Recorded map[gfx.CommandBuffer]gfx.RenderTarget

	passes    map[gfx.RenderPass]gfx.Format
	pipelines map[gfx.Pipeline]gfx.Extent
}

// NewRenderer returns a renderer bound to dev.
func NewRenderer(dev *Device) *Renderer {
	return &Renderer{
		Dev:       dev,
		Recorded:  map[gfx.CommandBuffer]gfx.RenderTarget{},
		passes:    map[gfx.RenderPass]gfx.Format{},
		pipelines: map[gfx.Pipeline]gfx.Extent{},
	}
}

func (r *Renderer) CreateRenderPass(format gfx.Format) (gfx.RenderPass, error) {
	if err := r.Dev.call("CreateRenderPass"); err != nil {
		return 0, err
	}
	rp := gfx.RenderPass(r.Dev.id())
	r.passes[rp] = format
	return rp, nil
}

func (r *Renderer) DestroyRenderPass(rp gfx.RenderPass) {
	r.Dev.call("DestroyRenderPass")
	delete(r.passes, rp)
}

func (r *Renderer) CreatePipeline(rp gfx.RenderPass, extent gfx.Extent) (gfx.Pipeline, error) {
	if err := r.Dev.call("CreatePipeline"); err != nil {
		return 0, err
	}
	if _, ok := r.passes[rp]; !ok {
		return 0, fmt.Errorf("gfxtest: pipeline on unknown render pass %d", rp)
	}
	p := gfx.Pipeline(r.Dev.id())
	r.pipelines[p] = extent
	return p, nil
}

func (r *Renderer) DestroyPipeline(p gfx.Pipeline) {
	r.Dev.call("DestroyPipeline")
	delete(r.pipelines, p)
}

func (r *Renderer) Record(cmd gfx.CommandBuffer, target gfx.RenderTarget) error {
	if err := r.Dev.call("Record"); err != nil {
		return err
	}
	if !r.Dev.hasCmd(cmd) {
		return fmt.Errorf("gfxtest: record into unknown command buffer %d", cmd)
	}
	r.Recorded[cmd] = target
	return nil
}

// LivePasses is the number of render passes not yet destroyed.
func (r *Renderer) LivePasses() int { return len(r.passes) }

// LivePipelines is the number of pipelines not yet destroyed.
func (r *Renderer) LivePipelines() int { return len(r.pipelines) }
