package vksgfx

import (
	"time"

	"github.com/ibd1279/vks"
	"github.com/pkg/errors"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

func extent(e vks.Extent2D) gfx.Extent {
	return gfx.Extent{Width: e.Width(), Height: e.Height()}
}

func (d *Device) capabilities() (vks.SurfaceCapabilitiesKHR, error) {
	var caps vks.SurfaceCapabilitiesKHR
	result := d.physicalDevice.GetPhysicalDeviceSurfaceCapabilitiesKHR(d.surface, &caps)
	if result.IsError() {
		return caps, errors.Wrap(result.AsErr(), "surface capabilities")
	}
	return caps, nil
}

// Capabilities implements gfx.Surface.
func (d *Device) Capabilities() (gfx.Capabilities, error) {
	caps, err := d.capabilities()
	if err != nil {
		return gfx.Capabilities{}, err
	}
	return gfx.Capabilities{
		MinImageCount:  caps.MinImageCount(),
		MaxImageCount:  caps.MaxImageCount(),
		CurrentExtent:  extent(caps.CurrentExtent()),
		MinImageExtent: extent(caps.MinImageExtent()),
		MaxImageExtent: extent(caps.MaxImageExtent()),
	}, nil
}

// Formats implements gfx.Surface.
func (d *Device) Formats() ([]gfx.SurfaceFormat, error) {
	var count uint32
	if result := d.physicalDevice.GetPhysicalDeviceSurfaceFormatsKHR(d.surface, &count, nil); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "surface formats")
	}
	formats := make([]vks.SurfaceFormatKHR, count)
	if result := d.physicalDevice.GetPhysicalDeviceSurfaceFormatsKHR(d.surface, &count, formats); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "surface formats")
	}
	out := make([]gfx.SurfaceFormat, len(formats))
	for k, v := range formats {
		out[k] = gfx.SurfaceFormat{
			Format:     gfx.Format(v.Format()),
			ColorSpace: gfx.ColorSpace(v.ColorSpace()),
		}
	}
	return out, nil
}

// PresentModes implements gfx.Surface.
func (d *Device) PresentModes() ([]gfx.PresentMode, error) {
	var count uint32
	if result := d.physicalDevice.GetPhysicalDeviceSurfacePresentModesKHR(d.surface, &count, nil); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "surface present modes")
	}
	modes := make([]vks.PresentModeKHR, count)
	if result := d.physicalDevice.GetPhysicalDeviceSurfacePresentModesKHR(d.surface, &count, modes); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "surface present modes")
	}
	out := make([]gfx.PresentMode, len(modes))
	for k, v := range modes {
		out[k] = gfx.PresentMode(v)
	}
	return out, nil
}

// CreateSwapchain creates a swapchain for the surface. Images are shared
// between the graphics and presentation families when those differ. The
// previous swapchain is always destroyed before the next one is created, so
// no old swapchain is handed to the driver.
func (d *Device) CreateSwapchain(cfg gfx.SwapchainConfig) (gfx.Swapchain, []gfx.Image, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	caps, err := d.capabilities()
	if err != nil {
		return gfx.NullSwapchain, nil, err
	}

	families := d.queueFamilies()
	shareMode := vks.VK_SHARING_MODE_CONCURRENT
	if len(families) == 1 {
		shareMode = vks.VK_SHARING_MODE_EXCLUSIVE
	}

	info := vks.CPtr(arp, &vks.SwapchainCreateInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.SwapchainCreateInfoKHR) {
			in.SetSurface(d.surface)
			in.SetMinImageCount(cfg.ImageCount)
			in.SetImageFormat(vks.Format(cfg.Format.Format))
			in.SetImageColorSpace(vks.ColorSpaceKHR(cfg.Format.ColorSpace))
			in.SetImageExtent(vks.Extent2D{}.
				WithWidth(cfg.Extent.Width).
				WithHeight(cfg.Extent.Height))
			in.SetImageArrayLayers(1)
			in.SetImageUsage(vks.ImageUsageFlags(vks.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT))
			in.SetImageSharingMode(shareMode)
			in.SetQueueFamilyIndexCount(uint32(len(families)))
			in.SetPQueueFamilyIndices(families)
			in.SetPreTransform(caps.CurrentTransform())
			in.SetCompositeAlpha(vks.VK_COMPOSITE_ALPHA_OPAQUE_BIT_KHR)
			in.SetPresentMode(vks.PresentModeKHR(cfg.PresentMode))
			in.SetClipped(vks.VK_TRUE)
			in.SetOldSwapchain(vks.NullSwapchainKHR)
		},
	)

	var sc vks.SwapchainKHR
	if result := d.device.CreateSwapchainKHR(info, nil, &sc); result.IsError() {
		return gfx.NullSwapchain, nil, errors.Wrap(result.AsErr(), "create swapchain")
	}

	var count uint32
	d.device.GetSwapchainImagesKHR(sc, &count, nil)
	vkImages := make([]vks.Image, count)
	if result := d.device.GetSwapchainImagesKHR(sc, &count, vkImages); result.IsError() {
		d.device.DestroySwapchainKHR(sc, nil)
		return gfx.NullSwapchain, nil, errors.Wrap(result.AsErr(), "swapchain images")
	}

	images := make([]gfx.Image, len(vkImages))
	for k, img := range vkImages {
		images[k] = d.images.put(gfx.Image(d.id()), img)
	}
	id := d.swapchains.put(gfx.Swapchain(d.id()), swapchain{handle: sc, images: images})
	return id, images, nil
}

// DestroySwapchain destroys the swapchain. Its images go with it.
func (d *Device) DestroySwapchain(s gfx.Swapchain) {
	sc, ok := d.swapchains.take(s)
	if !ok {
		return
	}
	for _, img := range sc.images {
		d.images.take(img)
	}
	d.device.DestroySwapchainKHR(sc.handle, nil)
}

func (d *Device) CreateImageView(img gfx.Image, format gfx.Format) (gfx.ImageView, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.ImageViewCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.ImageViewCreateInfo) {
			in.SetImage(d.images.get(img))
			in.SetViewType(vks.VK_IMAGE_VIEW_TYPE_2D)
			in.SetFormat(vks.Format(format))
			in.SetSubresourceRange(vks.ImageSubresourceRange{}.
				WithAspectMask(vks.ImageAspectFlags(vks.VK_IMAGE_ASPECT_COLOR_BIT)).
				WithLevelCount(1).
				WithLayerCount(1))
		},
	)
	var view vks.ImageView
	if result := d.device.CreateImageView(info, nil, &view); result.IsError() {
		return 0, errors.Wrap(result.AsErr(), "create image view")
	}
	return d.views.put(gfx.ImageView(d.id()), view), nil
}

func (d *Device) DestroyImageView(v gfx.ImageView) {
	if view, ok := d.views.take(v); ok {
		d.device.DestroyImageView(view, nil)
	}
}

func (d *Device) CreateFramebuffer(rp gfx.RenderPass, view gfx.ImageView, ext gfx.Extent) (gfx.Framebuffer, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.FramebufferCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.FramebufferCreateInfo) {
			in.SetRenderPass(d.renderPasses.get(rp))
			in.SetPAttachments([]vks.ImageView{d.views.get(view)})
			in.SetWidth(ext.Width)
			in.SetHeight(ext.Height)
			in.SetLayers(1)
		},
	)
	var fb vks.Framebuffer
	if result := d.device.CreateFramebuffer(info, nil, &fb); result.IsError() {
		return 0, errors.Wrap(result.AsErr(), "create framebuffer")
	}
	return d.framebuffers.put(gfx.Framebuffer(d.id()), fb), nil
}

func (d *Device) DestroyFramebuffer(f gfx.Framebuffer) {
	if fb, ok := d.framebuffers.take(f); ok {
		d.device.DestroyFramebuffer(fb, nil)
	}
}

// AllocateCommandBuffers allocates n primary buffers from the graphics pool.
func (d *Device) AllocateCommandBuffers(n int) ([]gfx.CommandBuffer, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.CommandBufferAllocateInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandBufferAllocateInfo) {
			in.SetCommandPool(d.commandPool.H)
			in.SetLevel(vks.VK_COMMAND_BUFFER_LEVEL_PRIMARY)
			in.SetCommandBufferCount(uint32(n))
		},
	)
	bufs := make([]vks.CommandBuffer, n)
	if result := d.device.AllocateCommandBuffers(info, bufs); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "allocate command buffers")
	}
	out := make([]gfx.CommandBuffer, n)
	for k, b := range bufs {
		out[k] = d.cmds.put(gfx.CommandBuffer(d.id()), b)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(cmds []gfx.CommandBuffer) {
	bufs := make([]vks.CommandBuffer, 0, len(cmds))
	for _, c := range cmds {
		if b, ok := d.cmds.take(c); ok {
			bufs = append(bufs, b)
		}
	}
	if len(bufs) == 0 {
		return
	}
	d.device.FreeCommandBuffers(d.commandPool.H, uint32(len(bufs)), bufs)
}

// AcquireNextImage implements gfx.Device.
func (d *Device) AcquireNextImage(s gfx.Swapchain, timeout time.Duration, signal gfx.Semaphore) (uint32, error) {
	var index uint32
	result := d.device.AcquireNextImageKHR(
		d.swapchains.get(s).handle,
		nanos(timeout),
		d.semaphores.get(signal),
		vks.NullFence,
		&index,
	)
	return index, check(result, "acquire next image")
}

// Submit queues one command buffer on the graphics queue. It waits on
// sub.Wait at the color attachment output stage.
func (d *Device) Submit(sub gfx.Submission) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	infos := vks.SubmitInfoCSlice(arp,
		vks.SubmitInfo{}.
			WithDefaultSType().
			WithPWaitSemaphores([]vks.Semaphore{d.semaphores.get(sub.Wait)}).
			WithWaitSemaphoreCount(1).
			WithPWaitDstStageMask([]vks.PipelineStageFlags{
				vks.PipelineStageFlags(vks.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT),
			}).
			WithPCommandBuffers([]vks.CommandBuffer{d.cmds.get(sub.CommandBuffer)}).
			WithCommandBufferCount(1).
			WithPSignalSemaphores([]vks.Semaphore{d.semaphores.get(sub.Signal)}).
			WithSignalSemaphoreCount(1),
	)
	return check(d.graphicQueue.QueueSubmit(1, infos, d.fences.get(sub.Fence)), "queue submit")
}

// Present queues the image for presentation.
func (d *Device) Present(p gfx.Presentation) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.PresentInfoKHR{},
		vks.SetDefaultSType,
		func(in *vks.PresentInfoKHR) {
			in.SetPWaitSemaphores([]vks.Semaphore{d.semaphores.get(p.Wait)})
			in.SetWaitSemaphoreCount(1)
			in.SetPSwapchains([]vks.SwapchainKHR{d.swapchains.get(p.Swapchain).handle})
			in.SetPImageIndices([]uint32{p.ImageIndex})
		},
	)
	return check(d.presentQueue.QueuePresentKHR(info), "queue present")
}
