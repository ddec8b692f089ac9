// Package frameslot holds the fixed ring of per-frame synchronization
// primitives and the table recording which frame last used each swapchain
// image.
package frameslot

import (
	"fmt"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// Slot is the set of primitives one in-flight frame uses.
type Slot struct {
	Index int
	// ImageAvailable is signaled by the presentation engine once the
	// acquired image can be rendered to.
	ImageAvailable gfx.Semaphore
	// RenderFinished is signaled by the graphics queue and waited on by
	// presentation.
	RenderFinished gfx.Semaphore
	// InFlight is signaled when the work submitted with this slot completes.
	// It starts signaled so the first frames do not block.
	InFlight gfx.Fence
}

// Registry is the ring of slots plus the image ownership table.
type Registry struct {
	dev    gfx.SyncDevice
	slots  []Slot
	owners []gfx.Fence
}

// New creates slotCount slots and an ownership table for imageCount images,
// every entry unowned. If any primitive cannot be created the ones already
// made are destroyed and the error is returned.
func New(dev gfx.SyncDevice, slotCount, imageCount int) (*Registry, error) {
	if slotCount < 1 {
		return nil, fmt.Errorf("frameslot: slot count must be positive, got %d", slotCount)
	}
	r := &Registry{
		dev:    dev,
		slots:  make([]Slot, 0, slotCount),
		owners: make([]gfx.Fence, imageCount),
	}
	for i := 0; i < slotCount; i++ {
		s, err := r.create(i)
		if err != nil {
			r.Teardown()
			return nil, fmt.Errorf("frameslot: creating slot %d: %w", i, err)
		}
		r.slots = append(r.slots, s)
	}
	return r, nil
}

func (r *Registry) create(i int) (Slot, error) {
	s := Slot{Index: i}
	var err error
	if s.ImageAvailable, err = r.dev.CreateSemaphore(); err != nil {
		return s, err
	}
	if s.RenderFinished, err = r.dev.CreateSemaphore(); err != nil {
		r.dev.DestroySemaphore(s.ImageAvailable)
		return s, err
	}
	if s.InFlight, err = r.dev.CreateFence(true); err != nil {
		r.dev.DestroySemaphore(s.RenderFinished)
		r.dev.DestroySemaphore(s.ImageAvailable)
		return s, err
	}
	return s, nil
}

// Len is the number of slots.
func (r *Registry) Len() int { return len(r.slots) }

// Slot returns the slot used for the given frame counter value.
func (r *Registry) Slot(frame int) Slot {
	return r.slots[frame%len(r.slots)]
}

// Owner returns the fence of the slot that last submitted work against the
// image, if any.
func (r *Registry) Owner(image int) (gfx.Fence, bool) {
	f := r.owners[image]
	return f, f != gfx.NullFence
}

// RecordOwnership marks image as used by the given slot. Callers must have
// waited on the previous owner, if any, before calling.
func (r *Registry) RecordOwnership(image, slot int) {
	r.owners[image] = r.slots[slot].InFlight
}

// ResetOwnership replaces the table with imageCount unowned entries. It is
// used when the swapchain is rebuilt.
func (r *Registry) ResetOwnership(imageCount int) {
	r.owners = make([]gfx.Fence, imageCount)
}

// Teardown destroys every primitive. No submitted work referencing them may
// still be pending.
func (r *Registry) Teardown() {
	for _, s := range r.slots {
		r.dev.DestroyFence(s.InFlight)
		r.dev.DestroySemaphore(s.RenderFinished)
		r.dev.DestroySemaphore(s.ImageAvailable)
	}
	r.slots = nil
	r.owners = nil
}
