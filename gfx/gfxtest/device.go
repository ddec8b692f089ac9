// Package gfxtest provides in-memory implementations of the gfx interfaces.
//
// Device simulates the GPU side of the frame loop: submitted work stays
// pending until its fence is waited on (or the device is idled), at which
// point the fence becomes signaled. That is enough to observe throttling,
// image hazards and resource lifetimes without a real driver.
package gfxtest

import (
	"fmt"
	"time"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

type fence struct {
	signaled bool
}

// Submitted is one recorded queue submission.
type Submitted struct {
	gfx.Submission
	Image int
	Done  bool
}

// Device is a fake gfx.Device. The zero value is not usable; use NewDevice.
type Device struct {
	// Calls lists every method call in order, by method name.
	Calls []string
	// Fail makes the named method return the given error.
	Fail map[string]error

	// AcquireResults are returned by AcquireNextImage, one per call, before
	// falling back to success.
	AcquireResults []error
	// AcquireOrder, when set, lists the image indices to hand out in order;
	// otherwise images are handed out round robin.
	AcquireOrder []uint32
	// PresentResults are returned by Present, one per call.
	PresentResults []error
	// StallFences keeps pending fences from completing, so waits time out.
	StallFences bool

	Submissions   []*Submitted
	Presentations []gfx.Presentation
	// MaxPending is the highest number of submissions pending at once.
	MaxPending int
	// Hazards lists submissions issued while older work on the same image
	// was still pending.
	Hazards []*Submitted
	// FenceWaits lists waited fences in order, and FenceTimeouts the
	// timeout each wait was given.
	FenceWaits    []gfx.Fence
	FenceTimeouts []time.Duration
	// Reacquired lists semaphores passed to AcquireNextImage while the
	// signal from an earlier acquire had not been waited on by a submit.
	Reacquired []gfx.Semaphore

	next       uint64
	semaphores map[gfx.Semaphore]bool
	fences     map[gfx.Fence]*fence
	swapchains map[gfx.Swapchain][]gfx.Image
	images     map[gfx.Image]bool
	views      map[gfx.ImageView]bool
	fbs        map[gfx.Framebuffer]bool
	cmds       map[gfx.CommandBuffer]int
	acquired   int
	unwaited   map[gfx.Semaphore]bool
}

// NewDevice returns an empty fake device.
func NewDevice() *Device {
	return &Device{
		Fail:       map[string]error{},
		semaphores: map[gfx.Semaphore]bool{},
		fences:     map[gfx.Fence]*fence{},
		swapchains: map[gfx.Swapchain][]gfx.Image{},
		images:     map[gfx.Image]bool{},
		views:      map[gfx.ImageView]bool{},
		fbs:        map[gfx.Framebuffer]bool{},
		cmds:       map[gfx.CommandBuffer]int{},
		unwaited:   map[gfx.Semaphore]bool{},
	}
}

func (d *Device) call(name string) error {
	d.Calls = append(d.Calls, name)
	return d.Fail[name]
}

func (d *Device) id() uint64 {
	d.next++
	return d.next
}

func (d *Device) CreateSemaphore() (gfx.Semaphore, error) {
	if err := d.call("CreateSemaphore"); err != nil {
		return gfx.NullSemaphore, err
	}
	s := gfx.Semaphore(d.id())
	d.semaphores[s] = true
	return s, nil
}

func (d *Device) DestroySemaphore(s gfx.Semaphore) {
	d.call("DestroySemaphore")
	delete(d.semaphores, s)
	delete(d.unwaited, s)
}

func (d *Device) CreateFence(signaled bool) (gfx.Fence, error) {
	if err := d.call("CreateFence"); err != nil {
		return gfx.NullFence, err
	}
	f := gfx.Fence(d.id())
	d.fences[f] = &fence{signaled: signaled}
	return f, nil
}

func (d *Device) DestroyFence(f gfx.Fence) {
	d.call("DestroyFence")
	delete(d.fences, f)
}

// Signaled reports whether f is currently signaled.
func (d *Device) Signaled(f gfx.Fence) bool {
	st, ok := d.fences[f]
	return ok && st.signaled
}

func (d *Device) WaitFence(f gfx.Fence, timeout time.Duration) error {
	if err := d.call("WaitFence"); err != nil {
		return err
	}
	d.FenceWaits = append(d.FenceWaits, f)
	d.FenceTimeouts = append(d.FenceTimeouts, timeout)
	st, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("gfxtest: wait on unknown fence %d", f)
	}
	if st.signaled {
		return nil
	}
	if d.StallFences || !d.complete(f) {
		if timeout == gfx.NoTimeout {
			return fmt.Errorf("gfxtest: fence %d would block forever", f)
		}
		return gfx.ErrTimeout
	}
	return nil
}

// complete finishes the pending submission guarded by f.
func (d *Device) complete(f gfx.Fence) bool {
	for _, s := range d.Submissions {
		if !s.Done && s.Fence == f {
			s.Done = true
			d.fences[f].signaled = true
			return true
		}
	}
	return false
}

func (d *Device) ResetFence(f gfx.Fence) error {
	if err := d.call("ResetFence"); err != nil {
		return err
	}
	st, ok := d.fences[f]
	if !ok {
		return fmt.Errorf("gfxtest: reset of unknown fence %d", f)
	}
	st.signaled = false
	return nil
}

func (d *Device) CreateSwapchain(cfg gfx.SwapchainConfig) (gfx.Swapchain, []gfx.Image, error) {
	if err := d.call("CreateSwapchain"); err != nil {
		return gfx.NullSwapchain, nil, err
	}
	sc := gfx.Swapchain(d.id())
	imgs := make([]gfx.Image, cfg.ImageCount)
	for i := range imgs {
		imgs[i] = gfx.Image(d.id())
		d.images[imgs[i]] = true
	}
	d.swapchains[sc] = imgs
	d.acquired = 0
	return sc, imgs, nil
}

func (d *Device) DestroySwapchain(sc gfx.Swapchain) {
	d.call("DestroySwapchain")
	for _, img := range d.swapchains[sc] {
		delete(d.images, img)
	}
	delete(d.swapchains, sc)
}

func (d *Device) CreateImageView(img gfx.Image, format gfx.Format) (gfx.ImageView, error) {
	if err := d.call("CreateImageView"); err != nil {
		return 0, err
	}
	if !d.images[img] {
		return 0, fmt.Errorf("gfxtest: view of unknown image %d", img)
	}
	v := gfx.ImageView(d.id())
	d.views[v] = true
	return v, nil
}

func (d *Device) DestroyImageView(v gfx.ImageView) {
	d.call("DestroyImageView")
	delete(d.views, v)
}

func (d *Device) CreateFramebuffer(rp gfx.RenderPass, view gfx.ImageView, extent gfx.Extent) (gfx.Framebuffer, error) {
	if err := d.call("CreateFramebuffer"); err != nil {
		return 0, err
	}
	if !d.views[view] {
		return 0, fmt.Errorf("gfxtest: framebuffer on unknown view %d", view)
	}
	fb := gfx.Framebuffer(d.id())
	d.fbs[fb] = true
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb gfx.Framebuffer) {
	d.call("DestroyFramebuffer")
	delete(d.fbs, fb)
}

func (d *Device) AllocateCommandBuffers(n int) ([]gfx.CommandBuffer, error) {
	if err := d.call("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	cmds := make([]gfx.CommandBuffer, n)
	for i := range cmds {
		cmds[i] = gfx.CommandBuffer(d.id())
		d.cmds[cmds[i]] = i
	}
	return cmds, nil
}

func (d *Device) FreeCommandBuffers(cmds []gfx.CommandBuffer) {
	d.call("FreeCommandBuffers")
	for _, c := range cmds {
		delete(d.cmds, c)
	}
}

func (d *Device) AcquireNextImage(sc gfx.Swapchain, timeout time.Duration, signal gfx.Semaphore) (uint32, error) {
	if err := d.call("AcquireNextImage"); err != nil {
		return 0, err
	}
	var res error
	if len(d.AcquireResults) > 0 {
		res = d.AcquireResults[0]
		d.AcquireResults = d.AcquireResults[1:]
		if res != nil && res != gfx.ErrSuboptimal {
			return 0, res
		}
	}
	imgs, ok := d.swapchains[sc]
	if !ok {
		return 0, fmt.Errorf("gfxtest: acquire on unknown swapchain %d", sc)
	}
	var idx uint32
	if len(d.AcquireOrder) > 0 {
		idx = d.AcquireOrder[0]
		d.AcquireOrder = d.AcquireOrder[1:]
	} else {
		idx = uint32(d.acquired % len(imgs))
	}
	d.acquired++
	if d.unwaited[signal] {
		d.Reacquired = append(d.Reacquired, signal)
	}
	d.unwaited[signal] = true
	return idx, res
}

func (d *Device) Submit(s gfx.Submission) error {
	if err := d.call("Submit"); err != nil {
		return err
	}
	st, ok := d.fences[s.Fence]
	if !ok {
		return fmt.Errorf("gfxtest: submit with unknown fence %d", s.Fence)
	}
	if st.signaled {
		return fmt.Errorf("gfxtest: submit with signaled fence %d", s.Fence)
	}
	img, ok := d.cmds[s.CommandBuffer]
	if !ok {
		return fmt.Errorf("gfxtest: submit of unknown command buffer %d", s.CommandBuffer)
	}
	delete(d.unwaited, s.Wait)
	sub := &Submitted{Submission: s, Image: img}
	if len(d.pendingOn(img)) > 0 {
		d.Hazards = append(d.Hazards, sub)
	}
	d.Submissions = append(d.Submissions, sub)
	if n := len(d.Pending()); n > d.MaxPending {
		d.MaxPending = n
	}
	return nil
}

// Pending returns the submissions whose fence has not completed yet.
func (d *Device) Pending() []*Submitted {
	var out []*Submitted
	for _, s := range d.Submissions {
		if !s.Done {
			out = append(out, s)
		}
	}
	return out
}

func (d *Device) pendingOn(img int) []*Submitted {
	var out []*Submitted
	for _, s := range d.Pending() {
		if s.Image == img {
			out = append(out, s)
		}
	}
	return out
}

func (d *Device) Present(p gfx.Presentation) error {
	if err := d.call("Present"); err != nil {
		return err
	}
	d.Presentations = append(d.Presentations, p)
	if len(d.PresentResults) > 0 {
		err := d.PresentResults[0]
		d.PresentResults = d.PresentResults[1:]
		return err
	}
	return nil
}

// WaitIdle completes every pending submission.
func (d *Device) WaitIdle() error {
	if err := d.call("WaitIdle"); err != nil {
		return err
	}
	for _, s := range d.Submissions {
		if !s.Done {
			s.Done = true
			if st, ok := d.fences[s.Fence]; ok {
				st.signaled = true
			}
		}
	}
	return nil
}

// Live counts the objects that have been created and not destroyed.
type Live struct {
	Semaphores     int
	Fences         int
	Swapchains     int
	Images         int
	Views          int
	Framebuffers   int
	CommandBuffers int
}

func (d *Device) Live() Live {
	return Live{
		Semaphores:     len(d.semaphores),
		Fences:         len(d.fences),
		Swapchains:     len(d.swapchains),
		Images:         len(d.images),
		Views:          len(d.views),
		Framebuffers:   len(d.fbs),
		CommandBuffers: len(d.cmds),
	}
}

// IsLive reports whether a handle of any kind is still alive.
func (d *Device) IsLive(h uint64) bool {
	return d.semaphores[gfx.Semaphore(h)] ||
		d.fences[gfx.Fence(h)] != nil ||
		d.swapchains[gfx.Swapchain(h)] != nil ||
		d.images[gfx.Image(h)] ||
		d.views[gfx.ImageView(h)] ||
		d.fbs[gfx.Framebuffer(h)] ||
		d.hasCmd(gfx.CommandBuffer(h))
}

func (d *Device) hasCmd(c gfx.CommandBuffer) bool {
	_, ok := d.cmds[c]
	return ok
}

// ResetCalls clears the call log.
func (d *Device) ResetCalls() { d.Calls = nil }
