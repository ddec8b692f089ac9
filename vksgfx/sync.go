package vksgfx

import (
	"time"

	"github.com/ibd1279/vks"
	"github.com/pkg/errors"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

func (d *Device) CreateSemaphore() (gfx.Semaphore, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.SemaphoreCreateInfo{},
		vks.SetDefaultSType,
	)
	var sem vks.Semaphore
	if result := d.device.CreateSemaphore(info, nil, &sem); result.IsError() {
		return gfx.NullSemaphore, errors.Wrap(result.AsErr(), "create semaphore")
	}
	return d.semaphores.put(gfx.Semaphore(d.id()), sem), nil
}

func (d *Device) DestroySemaphore(s gfx.Semaphore) {
	if sem, ok := d.semaphores.take(s); ok {
		d.device.DestroySemaphore(sem, nil)
	}
}

func (d *Device) CreateFence(signaled bool) (gfx.Fence, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.FenceCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.FenceCreateInfo) {
			if signaled {
				in.SetFlags(vks.FenceCreateFlags(vks.VK_FENCE_CREATE_SIGNALED_BIT))
			}
		},
	)
	var fence vks.Fence
	if result := d.device.CreateFence(info, nil, &fence); result.IsError() {
		return gfx.NullFence, errors.Wrap(result.AsErr(), "create fence")
	}
	return d.fences.put(gfx.Fence(d.id()), fence), nil
}

func (d *Device) DestroyFence(f gfx.Fence) {
	if fence, ok := d.fences.take(f); ok {
		d.device.DestroyFence(fence, nil)
	}
}

func (d *Device) WaitFence(f gfx.Fence, timeout time.Duration) error {
	fences := []vks.Fence{d.fences.get(f)}
	return check(d.device.WaitForFences(1, fences, vks.VK_TRUE, nanos(timeout)), "wait for fence")
}

func (d *Device) ResetFence(f gfx.Fence) error {
	fences := []vks.Fence{d.fences.get(f)}
	return check(d.device.ResetFences(1, fences), "reset fence")
}

func (d *Device) WaitIdle() error {
	return check(d.device.DeviceWaitIdle(), "wait idle")
}
