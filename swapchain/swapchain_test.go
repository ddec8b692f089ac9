package swapchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
	"github.com/TorrentialFire/vulkan-tutorial/gfx/gfxtest"
)

type fixture struct {
	dev      *gfxtest.Device
	surface  *gfxtest.Surface
	renderer *gfxtest.Renderer
	m        *Manager
}

func newFixture() *fixture {
	dev := gfxtest.NewDevice()
	r := gfxtest.NewRenderer(dev)
	s := gfxtest.NewSurface()
	return &fixture{
		dev:      dev,
		surface:  s,
		renderer: r,
		m:        NewManager(dev, s, r, DefaultOptions()),
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	f.surface.ModeList = []gfx.PresentMode{gfx.PresentModeFIFO, gfx.PresentModeMailbox}
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))

	cfg := f.m.Config()
	assert.Equal(t, gfx.Extent{Width: 800, Height: 600}, cfg.Extent)
	assert.Equal(t, gfx.PresentModeMailbox, cfg.PresentMode)
	assert.Equal(t, gfx.FormatB8G8R8A8Srgb, cfg.Format.Format)
	assert.Equal(t, uint32(3), cfg.ImageCount)
	assert.Equal(t, uint64(1), f.m.Generation())

	assert.Equal(t, 3, f.m.ImageCount())
	live := f.dev.Live()
	assert.Equal(t, 3, live.Images)
	assert.Equal(t, 3, live.Views)
	assert.Equal(t, 3, live.Framebuffers)
	assert.Equal(t, 3, live.CommandBuffers)
	assert.Equal(t, 1, f.renderer.LivePasses())
	assert.Equal(t, 1, f.renderer.LivePipelines())

	for i := 0; i < f.m.ImageCount(); i++ {
		img := f.m.Image(i)
		target, ok := f.renderer.Recorded[img.CommandBuffer]
		require.True(t, ok, "command buffer %d recorded", i)
		assert.Equal(t, img.Framebuffer, target.Framebuffer)
		assert.Equal(t, f.m.RenderPass(), target.RenderPass)
		assert.Equal(t, f.m.Pipeline(), target.Pipeline)
		assert.Equal(t, cfg.Extent, target.Extent)
	}
}

func TestCreateTwiceFails(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))
	assert.Error(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))
}

func TestCreateNoFormats(t *testing.T) {
	f := newFixture()
	f.surface.FormatList = nil
	assert.Error(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))
	assert.False(t, f.m.Live())
}

func TestCreateFailureReleasesPartialGeneration(t *testing.T) {
	for _, step := range []string{
		"CreateSwapchain",
		"CreateImageView",
		"CreateRenderPass",
		"CreatePipeline",
		"CreateFramebuffer",
		"AllocateCommandBuffers",
		"Record",
	} {
		t.Run(step, func(t *testing.T) {
			f := newFixture()
			boom := errors.New("rejected by driver")
			f.dev.Fail[step] = boom

			err := f.m.Create(gfx.Extent{Width: 800, Height: 600})
			assert.ErrorIs(t, err, boom)
			assert.False(t, f.m.Live())
			assert.Equal(t, gfxtest.Live{}, f.dev.Live())
			assert.Equal(t, 0, f.renderer.LivePasses())
			assert.Equal(t, 0, f.renderer.LivePipelines())
		})
	}
}

func TestDestroyOrder(t *testing.T) {
	f := newFixture()
	f.surface.Caps.MinImageCount = 1
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))
	f.dev.ResetCalls()

	f.m.Destroy()
	assert.Equal(t, []string{
		"FreeCommandBuffers",
		"DestroyFramebuffer",
		"DestroyFramebuffer",
		"DestroyPipeline",
		"DestroyRenderPass",
		"DestroyImageView",
		"DestroyImageView",
		"DestroySwapchain",
	}, f.dev.Calls)
	assert.Equal(t, gfxtest.Live{}, f.dev.Live())
	assert.False(t, f.m.Live())

	f.dev.ResetCalls()
	f.m.Destroy()
	assert.Empty(t, f.dev.Calls)
}

func TestRecreateReplacesGeneration(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))

	var old []uint64
	old = append(old, uint64(f.m.Swapchain()))
	for i := 0; i < f.m.ImageCount(); i++ {
		img := f.m.Image(i)
		old = append(old, uint64(img.Handle), uint64(img.View), uint64(img.Framebuffer), uint64(img.CommandBuffer))
	}

	f.surface.Caps.MinImageCount = 3
	win := gfxtest.NewWindow([2]int{1024, 768})
	require.NoError(t, f.m.Recreate(context.Background(), win))

	assert.Equal(t, uint64(2), f.m.Generation())
	assert.Equal(t, gfx.Extent{Width: 1024, Height: 768}, f.m.Config().Extent)
	live := f.dev.Live()
	assert.Equal(t, 4, f.m.ImageCount())
	assert.Equal(t, 1, live.Swapchains)
	assert.Equal(t, live.Images, live.Views)
	assert.Equal(t, live.Views, live.Framebuffers)
	assert.Equal(t, live.Framebuffers, live.CommandBuffers)
	assert.Equal(t, 4, live.Images)
	assert.Equal(t, 1, f.renderer.LivePasses())
	assert.Equal(t, 1, f.renderer.LivePipelines())
	for _, h := range old {
		assert.False(t, f.dev.IsLive(h), "handle %d from the old generation is still alive", h)
	}
	assert.Contains(t, f.dev.Calls, "WaitIdle")
}

func TestRecreateWaitsIdleBeforeDestroy(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))
	f.dev.ResetCalls()

	require.NoError(t, f.m.Recreate(context.Background(), gfxtest.NewWindow([2]int{640, 480})))
	require.NotEmpty(t, f.dev.Calls)
	assert.Equal(t, "WaitIdle", f.dev.Calls[0])
}

func TestRecreateStallsWhileMinimized(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))

	win := gfxtest.NewWindow([2]int{0, 0}, [2]int{0, 0}, [2]int{800, 600})
	gen := f.m.Generation()
	win.OnWait = func() {
		assert.Equal(t, gen, f.m.Generation(), "recreated while minimized")
		assert.NotContains(t, f.dev.Calls, "WaitIdle")
	}
	f.dev.ResetCalls()

	require.NoError(t, f.m.Recreate(context.Background(), win))
	assert.Equal(t, 2, win.EventWaits)
	assert.Equal(t, 3, win.Polls)
	assert.Equal(t, gfx.Extent{Width: 800, Height: 600}, f.m.Config().Extent)
	assert.Equal(t, gen+1, f.m.Generation())
}

func TestRecreateCanceledWhileMinimized(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))

	ctx, cancel := context.WithCancel(context.Background())
	win := gfxtest.NewWindow([2]int{0, 0})
	win.OnWait = func() {
		if win.EventWaits == 3 {
			cancel()
		}
	}
	err := f.m.Recreate(ctx, win)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(1), f.m.Generation())
	assert.True(t, f.m.Live())
}

func TestRecreateFailureIsReturned(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.m.Create(gfx.Extent{Width: 800, Height: 600}))
	boom := errors.New("device lost")
	f.dev.Fail["CreateSwapchain"] = boom

	err := f.m.Recreate(context.Background(), gfxtest.NewWindow([2]int{800, 600}))
	assert.ErrorIs(t, err, boom)
	assert.False(t, f.m.Live())
}
