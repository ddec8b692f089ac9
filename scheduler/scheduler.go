// Package scheduler drives one frame per call: wait for the frame slot,
// acquire an image, submit its pre-recorded commands and present it,
// rebuilding the swapchain whenever the surface goes stale.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/TorrentialFire/vulkan-tutorial/frameslot"
	"github.com/TorrentialFire/vulkan-tutorial/gfx"
	"github.com/TorrentialFire/vulkan-tutorial/swapchain"
)

// DefaultFramesInFlight is how far the CPU may run ahead of the GPU.
const DefaultFramesInFlight = 2

// Options configure a Scheduler.
type Options struct {
	// FramesInFlight is the number of frame slots.
	FramesInFlight int
	// FenceTimeout bounds the wait for the frame slot and the image
	// acquisition; gfx.NoTimeout waits forever. The wait for an image still
	// owned by another slot is never bounded.
	FenceTimeout time.Duration
	Logger       *slog.Logger
}

// Scheduler owns the frame slots and the frame counter. All methods except
// NotifyResize must be called from the same goroutine.
type Scheduler struct {
	dev    gfx.Device
	chain  *swapchain.Manager
	window gfx.Window
	slots  *frameslot.Registry
	opts   Options
	log    *slog.Logger

	frame   int
	resized atomic.Bool
}

// New creates the frame slots for the manager's current swapchain, which
// must already be built.
func New(dev gfx.Device, chain *swapchain.Manager, window gfx.Window, opts Options) (*Scheduler, error) {
	if opts.FramesInFlight == 0 {
		opts.FramesInFlight = DefaultFramesInFlight
	}
	if !chain.Live() {
		return nil, errors.New("scheduler: swapchain has not been created")
	}
	slots, err := frameslot.New(dev, opts.FramesInFlight, chain.ImageCount())
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		dev:    dev,
		chain:  chain,
		window: window,
		slots:  slots,
		opts:   opts,
		log:    log,
	}, nil
}

// NotifyResize records that the window's framebuffer changed size. It is
// safe to call from a platform callback at any time.
func (s *Scheduler) NotifyResize() {
	s.resized.Store(true)
}

// Frame is the current frame counter, in [0, FramesInFlight).
func (s *Scheduler) Frame() int { return s.frame }

// Slots exposes the frame slot registry.
func (s *Scheduler) Slots() *frameslot.Registry { return s.slots }

// DrawFrame runs one iteration of the frame protocol.
//
// A stale swapchain is rebuilt and is not an error. An expired wait for the
// frame slot or an expired acquire returns an error wrapping gfx.ErrTimeout
// and leaves the frame counter alone so the call can be retried. Any other
// error is fatal.
func (s *Scheduler) DrawFrame(ctx context.Context) error {
	slot := s.slots.Slot(s.frame)

	if err := s.dev.WaitFence(slot.InFlight, s.opts.FenceTimeout); err != nil {
		return fmt.Errorf("scheduler: wait for frame %d: %w", s.frame, err)
	}

	index, err := s.dev.AcquireNextImage(s.chain.Swapchain(), s.opts.FenceTimeout, slot.ImageAvailable)
	switch {
	case errors.Is(err, gfx.ErrOutOfDate):
		s.log.Debug("acquire reported out of date", "frame", s.frame)
		return s.recreate(ctx)
	case err != nil && !errors.Is(err, gfx.ErrSuboptimal):
		return fmt.Errorf("scheduler: acquire image: %w", err)
	}
	image := int(index)

	// The acquire has signaled ImageAvailable. Past this point the frame
	// reaches Submit or fails for good; nothing here is retryable.
	if owner, ok := s.slots.Owner(image); ok && owner != slot.InFlight {
		if err := s.dev.WaitFence(owner, gfx.NoTimeout); err != nil {
			return fmt.Errorf("scheduler: wait for image %d: %v", image, err)
		}
	}
	s.slots.RecordOwnership(image, slot.Index)

	if err := s.dev.ResetFence(slot.InFlight); err != nil {
		return fmt.Errorf("scheduler: reset fence: %w", err)
	}
	err = s.dev.Submit(gfx.Submission{
		Wait:          slot.ImageAvailable,
		CommandBuffer: s.chain.Image(image).CommandBuffer,
		Signal:        slot.RenderFinished,
		Fence:         slot.InFlight,
	})
	if err != nil {
		return fmt.Errorf("scheduler: submit image %d: %w", image, err)
	}

	err = s.dev.Present(gfx.Presentation{
		Wait:       slot.RenderFinished,
		Swapchain:  s.chain.Swapchain(),
		ImageIndex: index,
	})
	resized := s.resized.Load()
	switch {
	case gfx.IsStale(err) || resized:
		s.log.Debug("presentation needs a new swapchain", "frame", s.frame, "err", err, "resized", resized)
		if err := s.recreate(ctx); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("scheduler: present image %d: %w", image, err)
	}

	s.frame = (s.frame + 1) % s.slots.Len()
	return nil
}

// recreate rebuilds the swapchain and resets image ownership for the new
// image set.
func (s *Scheduler) recreate(ctx context.Context) error {
	s.resized.Store(false)
	if err := s.chain.Recreate(ctx, s.window); err != nil {
		return fmt.Errorf("scheduler: recreate swapchain: %w", err)
	}
	s.slots.ResetOwnership(s.chain.ImageCount())
	return nil
}

// Close waits for the device to go idle and destroys the frame slots.
func (s *Scheduler) Close() error {
	err := s.dev.WaitIdle()
	s.slots.Teardown()
	return err
}
