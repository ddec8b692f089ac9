// Package swapchain builds and tears down the swapchain together with every
// resource whose count or size depends on it: image views, the render pass
// and pipeline, framebuffers and pre-recorded command buffers.
//
// The whole set is one generation. A generation is only ever replaced as a
// unit; nothing is resized in place.
package swapchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// Options are the caller's preferences for new swapchains.
type Options struct {
	Format      gfx.SurfaceFormat
	PresentMode gfx.PresentMode
	Logger      *slog.Logger
}

// DefaultOptions prefers B8G8R8A8 sRGB with mailbox presentation.
func DefaultOptions() Options {
	return Options{
		Format: gfx.SurfaceFormat{
			Format:     gfx.FormatB8G8R8A8Srgb,
			ColorSpace: gfx.ColorSpaceSrgbNonlinear,
		},
		PresentMode: gfx.PresentModeMailbox,
	}
}

// Image is one swapchain image and what was built for it.
type Image struct {
	Handle        gfx.Image
	View          gfx.ImageView
	Framebuffer   gfx.Framebuffer
	CommandBuffer gfx.CommandBuffer
}

type generation struct {
	config     gfx.SwapchainConfig
	swapchain  gfx.Swapchain
	renderPass gfx.RenderPass
	pipeline   gfx.Pipeline
	images     []Image
	rel        releaser
}

// Manager owns at most one generation at a time.
type Manager struct {
	dev      gfx.Device
	surface  gfx.Surface
	renderer gfx.Renderer
	opts     Options
	log      *slog.Logger

	gen   *generation
	count uint64
}

// NewManager returns a manager with nothing built yet; call Create.
func NewManager(dev gfx.Device, surface gfx.Surface, renderer gfx.Renderer, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		dev:      dev,
		surface:  surface,
		renderer: renderer,
		opts:     opts,
		log:      log,
	}
}

// Create builds a new generation for a window of the given pixel size.
// Destroy must have been called on any previous generation. A failure at
// any step releases what was already built and is returned.
func (m *Manager) Create(window gfx.Extent) error {
	if m.gen != nil {
		return errors.New("swapchain: create called with a live generation")
	}
	cfg, err := m.configure(window)
	if err != nil {
		return err
	}
	gen := &generation{config: cfg}
	if err := m.build(gen); err != nil {
		gen.rel.release()
		return err
	}
	m.gen = gen
	m.count++
	m.log.Info("swapchain created",
		"generation", m.count,
		"width", cfg.Extent.Width,
		"height", cfg.Extent.Height,
		"format", cfg.Format.Format,
		"present_mode", cfg.PresentMode,
		"images", len(gen.images))
	return nil
}

func (m *Manager) configure(window gfx.Extent) (gfx.SwapchainConfig, error) {
	caps, err := m.surface.Capabilities()
	if err != nil {
		return gfx.SwapchainConfig{}, fmt.Errorf("swapchain: surface capabilities: %w", err)
	}
	formats, err := m.surface.Formats()
	if err != nil {
		return gfx.SwapchainConfig{}, fmt.Errorf("swapchain: surface formats: %w", err)
	}
	modes, err := m.surface.PresentModes()
	if err != nil {
		return gfx.SwapchainConfig{}, fmt.Errorf("swapchain: surface present modes: %w", err)
	}
	format, ok := SelectFormat(formats, m.opts.Format)
	if !ok {
		return gfx.SwapchainConfig{}, errors.New("swapchain: surface reports no formats")
	}
	return gfx.SwapchainConfig{
		Format:      format,
		PresentMode: SelectPresentMode(modes, m.opts.PresentMode),
		Extent:      SelectExtent(caps, window),
		ImageCount:  SelectImageCount(caps),
	}, nil
}

// build creates the generation's resources in dependency order, pushing
// the matching release for each onto gen.rel as it goes.
func (m *Manager) build(gen *generation) error {
	cfg := gen.config
	sc, imgs, err := m.dev.CreateSwapchain(cfg)
	if err != nil {
		return fmt.Errorf("swapchain: create swapchain: %w", err)
	}
	gen.swapchain = sc
	gen.rel.push(func() { m.dev.DestroySwapchain(sc) })

	gen.images = make([]Image, len(imgs))
	for i, img := range imgs {
		view, err := m.dev.CreateImageView(img, cfg.Format.Format)
		if err != nil {
			return fmt.Errorf("swapchain: image view %d: %w", i, err)
		}
		gen.images[i] = Image{Handle: img, View: view}
		gen.rel.push(func() { m.dev.DestroyImageView(view) })
	}

	rp, err := m.renderer.CreateRenderPass(cfg.Format.Format)
	if err != nil {
		return fmt.Errorf("swapchain: render pass: %w", err)
	}
	gen.renderPass = rp
	gen.rel.push(func() { m.renderer.DestroyRenderPass(rp) })

	pl, err := m.renderer.CreatePipeline(rp, cfg.Extent)
	if err != nil {
		return fmt.Errorf("swapchain: pipeline: %w", err)
	}
	gen.pipeline = pl
	gen.rel.push(func() { m.renderer.DestroyPipeline(pl) })

	for i := range gen.images {
		fb, err := m.dev.CreateFramebuffer(rp, gen.images[i].View, cfg.Extent)
		if err != nil {
			return fmt.Errorf("swapchain: framebuffer %d: %w", i, err)
		}
		gen.images[i].Framebuffer = fb
		gen.rel.push(func() { m.dev.DestroyFramebuffer(fb) })
	}

	cmds, err := m.dev.AllocateCommandBuffers(len(gen.images))
	if err != nil {
		return fmt.Errorf("swapchain: command buffers: %w", err)
	}
	gen.rel.push(func() { m.dev.FreeCommandBuffers(cmds) })

	for i, cmd := range cmds {
		gen.images[i].CommandBuffer = cmd
		err := m.renderer.Record(cmd, gfx.RenderTarget{
			RenderPass:  rp,
			Pipeline:    pl,
			Framebuffer: gen.images[i].Framebuffer,
			Extent:      cfg.Extent,
		})
		if err != nil {
			return fmt.Errorf("swapchain: record command buffer %d: %w", i, err)
		}
	}
	return nil
}

// Destroy releases the current generation: command buffers, framebuffers,
// pipeline, render pass, image views and finally the swapchain. The device
// must not be using any of them.
func (m *Manager) Destroy() {
	if m.gen == nil {
		return
	}
	m.gen.rel.release()
	m.gen = nil
}

// Recreate replaces the current generation with one sized for the window.
// While the window reports a zero size (minimized) it keeps waiting for
// window events; ctx can abort that wait. It then idles the device before
// tearing anything down.
func (m *Manager) Recreate(ctx context.Context, window gfx.Window) error {
	w, h := window.FramebufferSize()
	for w == 0 || h == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		window.WaitEvents()
		w, h = window.FramebufferSize()
	}
	if err := m.dev.WaitIdle(); err != nil {
		return fmt.Errorf("swapchain: wait idle: %w", err)
	}
	m.Destroy()
	return m.Create(gfx.Extent{Width: uint32(w), Height: uint32(h)})
}

// Live reports whether a generation is currently built.
func (m *Manager) Live() bool { return m.gen != nil }

// Generation counts how many generations have been created so far.
func (m *Manager) Generation() uint64 { return m.count }

// Swapchain returns the current swapchain handle.
func (m *Manager) Swapchain() gfx.Swapchain {
	if m.gen == nil {
		return gfx.NullSwapchain
	}
	return m.gen.swapchain
}

// Config returns the parameters the current generation was built with.
func (m *Manager) Config() gfx.SwapchainConfig {
	if m.gen == nil {
		return gfx.SwapchainConfig{}
	}
	return m.gen.config
}

// ImageCount is the number of images in the current generation.
func (m *Manager) ImageCount() int {
	if m.gen == nil {
		return 0
	}
	return len(m.gen.images)
}

// Image returns the i'th image of the current generation.
func (m *Manager) Image(i int) Image { return m.gen.images[i] }

// RenderPass returns the current generation's render pass.
func (m *Manager) RenderPass() gfx.RenderPass {
	if m.gen == nil {
		return 0
	}
	return m.gen.renderPass
}

// Pipeline returns the current generation's pipeline.
func (m *Manager) Pipeline() gfx.Pipeline {
	if m.gen == nil {
		return 0
	}
	return m.gen.pipeline
}
