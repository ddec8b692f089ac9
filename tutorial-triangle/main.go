package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"cogentcore.org/core/base/errors"
	"github.com/ibd1279/vks"
	"github.com/spf13/pflag"
	"github.com/xlab/closer"

	"github.com/TorrentialFire/vulkan-tutorial/config"
	"github.com/TorrentialFire/vulkan-tutorial/gfx"
	"github.com/TorrentialFire/vulkan-tutorial/glfwshell"
	"github.com/TorrentialFire/vulkan-tutorial/scheduler"
	"github.com/TorrentialFire/vulkan-tutorial/swapchain"
	"github.com/TorrentialFire/vulkan-tutorial/vksgfx"
)

func init() {
	runtime.LockOSThread()
}

// Main function.
func main() {
	cfg, err := config.Parse("tutorial-triangle", os.Args[1:])
	if err == pflag.ErrHelp {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	vks.Init().OrPanic()

	var version uint32
	if result := vks.EnumerateInstanceVersion(&version); result.IsSuccess() {
		slog.Info("vulkan", "api", vks.ApiVersion(version), "header", vks.VK_HEADER_VERSION_COMPLETE)
	}

	// The closer runs on its own goroutine, but GLFW and the device have to
	// be torn down from this one. It asks the frame loop to stop and waits
	// for it.
	ctx, cancel := context.WithCancel(context.Background())
	app := &TriangleApplication{cfg: cfg}
	done := make(chan struct{})
	closer.Bind(func() {
		cancel()
		app.wake()
		<-done
		vks.Destroy()
		slog.Info("bye")
	})

	err = app.Run(ctx)
	close(done)
	if err != nil && ctx.Err() == nil {
		closer.Fatalln(err)
	}
	closer.Close()
}

// TriangleApplication owns the window and everything built on it.
type TriangleApplication struct {
	cfg config.Config

	mu  sync.Mutex
	win *glfwshell.Window
}

// wake unblocks the frame loop if it is waiting for window events.
func (app *TriangleApplication) wake() {
	app.mu.Lock()
	defer app.mu.Unlock()
	if app.win != nil {
		app.win.Wake()
	}
}

func (app *TriangleApplication) setWindow(win *glfwshell.Window) {
	app.mu.Lock()
	app.win = win
	app.mu.Unlock()
}

// Run opens the window and draws until it is closed or ctx is canceled.
// Everything is released before it returns.
func (app *TriangleApplication) Run(ctx context.Context) error {
	cfg := app.cfg

	timeout, err := cfg.Timeout()
	if err != nil {
		return err
	}

	win, err := glfwshell.Open(cfg.Title, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	app.setWindow(win)
	defer func() {
		app.setWindow(nil)
		win.Close()
	}()

	dev, err := vksgfx.Open(win, vksgfx.Options{
		AppName:    "tutorial-triangle",
		Validation: cfg.Validation,
		Verbose:    cfg.Verbose,
	})
	if err != nil {
		return err
	}
	defer dev.Close()
	if cfg.Verbose {
		fmt.Fprintln(os.Stderr, dev.Describe())
	}

	triangle, err := vksgfx.LoadTriangle(dev, cfg.ShaderDir)
	if err != nil {
		return err
	}

	chain := swapchain.NewManager(dev, dev, triangle, swapchain.Options{
		Format:      cfg.PreferredFormat(),
		PresentMode: cfg.PreferredPresentMode(),
	})
	w, h := win.FramebufferSize()
	if err := chain.Create(gfx.Extent{Width: uint32(w), Height: uint32(h)}); err != nil {
		return err
	}
	defer chain.Destroy()

	sched, err := scheduler.New(dev, chain, win, scheduler.Options{
		FramesInFlight: cfg.FramesInFlight,
		FenceTimeout:   timeout,
	})
	if err != nil {
		return err
	}
	defer func() { errors.Log(sched.Close()) }()

	win.OnResize(func(width, height int) {
		slog.Debug("framebuffer resized", "width", width, "height", height)
		sched.NotifyResize()
	})

	return app.mainLoop(ctx, win, sched)
}

func (app *TriangleApplication) mainLoop(ctx context.Context, win *glfwshell.Window, sched *scheduler.Scheduler) error {
	for !win.ShouldClose() && ctx.Err() == nil {
		win.PollEvents()
		err := sched.DrawFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, gfx.ErrTimeout):
			slog.Warn("frame skipped", "err", err)
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}
	}
	return nil
}
