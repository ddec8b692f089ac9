// Package gfx describes the slice of the graphics API, the window and the
// pipeline builder that the frame loop depends on.
//
// Handles are opaque identifiers handed out by a Device; zero is always the
// null handle.
package gfx

import (
	"errors"
	"math"
	"time"
)

// Opaque handles.
type (
	Semaphore     uint64
	Fence         uint64
	Swapchain     uint64
	Image         uint64
	ImageView     uint64
	Framebuffer   uint64
	RenderPass    uint64
	Pipeline      uint64
	CommandBuffer uint64
)

// Null handles.
const (
	NullSemaphore Semaphore = 0
	NullFence     Fence     = 0
	NullSwapchain Swapchain = 0
)

// NoTimeout makes a wait block until the condition holds.
const NoTimeout time.Duration = 0

// UndefinedExtent is the CurrentExtent width a surface reports when the
// swapchain extent is decided by the application.
const UndefinedExtent = math.MaxUint32

var (
	// ErrOutOfDate means the surface changed and the swapchain can no longer
	// be used for presentation.
	ErrOutOfDate = errors.New("gfx: swapchain out of date")
	// ErrSuboptimal means presentation still works but the swapchain no
	// longer matches the surface exactly.
	ErrSuboptimal = errors.New("gfx: swapchain suboptimal")
	// ErrTimeout means a wait expired before the GPU signaled.
	ErrTimeout = errors.New("gfx: wait timed out")
)

// IsStale reports whether err asks for a swapchain recreation.
func IsStale(err error) bool {
	return errors.Is(err, ErrOutOfDate) || errors.Is(err, ErrSuboptimal)
}

// Extent is a two dimensional size in pixels.
type Extent struct {
	Width, Height uint32
}

// IsZero reports whether either side of the extent is zero.
func (e Extent) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// Format is a pixel format, numerically identical to VkFormat.
type Format int32

const (
	FormatUndefined     Format = 0
	FormatR8G8B8A8Unorm Format = 37
	FormatR8G8B8A8Srgb  Format = 43
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50
)

// ColorSpace is numerically identical to VkColorSpaceKHR.
type ColorSpace int32

const ColorSpaceSrgbNonlinear ColorSpace = 0

// SurfaceFormat pairs a format with its color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// PresentMode is numerically identical to VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "immediate"
	case PresentModeMailbox:
		return "mailbox"
	case PresentModeFIFO:
		return "fifo"
	case PresentModeFIFORelaxed:
		return "fifo-relaxed"
	}
	return "unknown"
}

// Capabilities is what a surface reports about the swapchains it accepts.
// A MaxImageCount of zero means there is no upper bound.
type Capabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

// SwapchainConfig is the resolved set of parameters for one swapchain.
type SwapchainConfig struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent
	ImageCount  uint32
}

// Submission is one batch for the graphics queue.
type Submission struct {
	Wait          Semaphore
	CommandBuffer CommandBuffer
	Signal        Semaphore
	Fence         Fence
}

// Presentation is one present request for the presentation queue.
type Presentation struct {
	Wait       Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

// RenderTarget is everything a command buffer needs to draw into one
// swapchain image.
type RenderTarget struct {
	RenderPass  RenderPass
	Pipeline    Pipeline
	Framebuffer Framebuffer
	Extent      Extent
}

// Surface is the presentation surface of a window.
type Surface interface {
	Capabilities() (Capabilities, error)
	Formats() ([]SurfaceFormat, error)
	PresentModes() ([]PresentMode, error)
}

// SyncDevice creates and waits on synchronization primitives.
type SyncDevice interface {
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(Semaphore)
	// CreateFence creates a fence, already signaled when signaled is true.
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(Fence)
	// WaitFence blocks until f is signaled. A zero timeout never expires;
	// otherwise expiry is reported as ErrTimeout.
	WaitFence(f Fence, timeout time.Duration) error
	ResetFence(Fence) error
}

// Device is the logical device plus its graphics and presentation queues.
type Device interface {
	SyncDevice

	CreateSwapchain(cfg SwapchainConfig) (Swapchain, []Image, error)
	DestroySwapchain(Swapchain)
	CreateImageView(img Image, format Format) (ImageView, error)
	DestroyImageView(ImageView)
	CreateFramebuffer(rp RenderPass, view ImageView, extent Extent) (Framebuffer, error)
	DestroyFramebuffer(Framebuffer)
	AllocateCommandBuffers(n int) ([]CommandBuffer, error)
	FreeCommandBuffers([]CommandBuffer)

	// AcquireNextImage signals signal once the returned image may be
	// rendered to. ErrSuboptimal comes with a valid index; ErrOutOfDate and
	// ErrTimeout do not.
	AcquireNextImage(sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, error)
	Submit(Submission) error
	// Present returns ErrOutOfDate or ErrSuboptimal for a stale swapchain.
	Present(Presentation) error
	WaitIdle() error
}

// Renderer owns the render pass, the pipeline and what gets recorded into
// each command buffer. Both objects depend on the swapchain format and
// extent and are rebuilt with it.
type Renderer interface {
	CreateRenderPass(format Format) (RenderPass, error)
	DestroyRenderPass(RenderPass)
	CreatePipeline(rp RenderPass, extent Extent) (Pipeline, error)
	DestroyPipeline(Pipeline)
	Record(cmd CommandBuffer, target RenderTarget) error
}

// Window is the platform window the surface belongs to.
type Window interface {
	// FramebufferSize is the drawable size in pixels; zero while minimized.
	FramebufferSize() (width, height int)
	// WaitEvents blocks until the platform delivers at least one event.
	WaitEvents()
}
