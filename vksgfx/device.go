// Package vksgfx implements the gfx interfaces on top of
// github.com/ibd1279/vks.
//
// Device owns the instance, the window surface, the logical device with its
// graphics and presentation queues and the graphics command pool. Everything
// it hands out is tracked by opaque id so the frame loop never touches a
// Vulkan handle directly.
package vksgfx

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"unsafe"

	cerrors "cogentcore.org/core/base/errors"
	"github.com/ibd1279/vks"
	"github.com/pkg/errors"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// Window is what the device needs from the platform window.
type Window interface {
	RequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

// Options select the instance layers and what gets logged during setup.
type Options struct {
	AppName string
	// Validation enables VK_LAYER_KHRONOS_validation and routes its
	// messages to Logger.
	Validation bool
	// Verbose logs every available instance extension, per layer.
	Verbose bool
	Logger  *slog.Logger
}

func (o Options) layers() []string {
	if o.Validation {
		return []string{"VK_LAYER_KHRONOS_validation"}
	}
	return nil
}

func (o Options) instanceExtensions() []string {
	exts := []string{
		vks.VK_KHR_SURFACE_EXTENSION_NAME,
		vks.VK_KHR_GET_SURFACE_CAPABILITIES_2_EXTENSION_NAME,
	}
	if o.Validation {
		exts = append(exts, vks.VK_EXT_DEBUG_UTILS_EXTENSION_NAME)
	}
	if runtime.GOOS == "darwin" {
		exts = append(exts,
			vks.VK_KHR_PORTABILITY_ENUMERATION_EXTENSION_NAME,
			vks.VK_KHR_GET_PHYSICAL_DEVICE_PROPERTIES_2_EXTENSION_NAME,
		)
	}
	return exts
}

func (o Options) deviceExtensions() []string {
	exts := []string{vks.VK_KHR_SWAPCHAIN_EXTENSION_NAME}
	if runtime.GOOS == "darwin" {
		exts = append(exts, vks.VK_KHR_PORTABILITY_SUBSET_EXTENSION_NAME)
	}
	return exts
}

type swapchain struct {
	handle vks.SwapchainKHR
	images []gfx.Image
}

type pipeline struct {
	layout   vks.PipelineLayout
	pipeline vks.Pipeline
}

// Device is a Vulkan gfx.Device and gfx.Surface.
type Device struct {
	log *slog.Logger

	instance       vks.InstanceFacade
	messenger      vks.DebugUtilsMessengerEXT
	hasMessenger   bool
	surface        vks.SurfaceKHR
	physicalDevice vks.PhysicalDeviceFacade
	graphicIndex   uint32
	presentIndex   uint32
	device         vks.DeviceFacade
	graphicQueue   vks.QueueFacade
	presentQueue   vks.QueueFacade
	commandPool    vks.CommandPoolFacade
	hasPool        bool

	next         uint64
	semaphores   handles[gfx.Semaphore, vks.Semaphore]
	fences       handles[gfx.Fence, vks.Fence]
	swapchains   handles[gfx.Swapchain, swapchain]
	images       handles[gfx.Image, vks.Image]
	views        handles[gfx.ImageView, vks.ImageView]
	framebuffers handles[gfx.Framebuffer, vks.Framebuffer]
	cmds         handles[gfx.CommandBuffer, vks.CommandBuffer]
	renderPasses handles[gfx.RenderPass, vks.RenderPass]
	pipelines    handles[gfx.Pipeline, pipeline]
}

// Open creates the instance, the surface for win, picks the first physical
// device that can present to it and creates the logical device and command
// pool. On failure everything created so far is destroyed.
func Open(win Window, opts Options) (*Device, error) {
	d := &Device{
		log:          opts.Logger,
		semaphores:   newHandles[gfx.Semaphore, vks.Semaphore](),
		fences:       newHandles[gfx.Fence, vks.Fence](),
		swapchains:   newHandles[gfx.Swapchain, swapchain](),
		images:       newHandles[gfx.Image, vks.Image](),
		views:        newHandles[gfx.ImageView, vks.ImageView](),
		framebuffers: newHandles[gfx.Framebuffer, vks.Framebuffer](),
		cmds:         newHandles[gfx.CommandBuffer, vks.CommandBuffer](),
		renderPasses: newHandles[gfx.RenderPass, vks.RenderPass](),
		pipelines:    newHandles[gfx.Pipeline, pipeline](),
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	steps := []func() error{
		func() error { return d.createInstance(win, opts) },
		func() error { return d.createMessenger(opts) },
		d.logPhysicalDevices,
		func() error { return d.createSurface(win) },
		func() error { return d.selectPhysicalDevice(opts) },
		func() error { return d.createDevice(opts) },
		d.createCommandPool,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Device) createInstance(win Window, opts Options) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	if opts.Verbose {
		d.logInstanceOptions(opts.layers())
	}

	layers, err := instanceLayers()
	if err != nil {
		return err
	}
	if gone := missing(opts.layers(), layers); len(gone) > 0 {
		return errors.Errorf("validation layers requested, but not available: %s", strings.Join(gone, ", "))
	}

	extensions := append(opts.instanceExtensions(), win.RequiredInstanceExtensions()...)
	var available []string
	for _, layer := range append([]string{""}, opts.layers()...) {
		names, err := instanceExtensions(layer)
		if err != nil {
			return err
		}
		available = append(available, names...)
	}
	if gone := missing(extensions, available); len(gone) > 0 {
		return errors.Errorf("vulkan driver missing required extensions: %s", strings.Join(gone, ", "))
	}

	// Chained so instance creation and destruction are reported too.
	var debugInfo *vks.DebugUtilsMessengerCreateInfoEXT
	if opts.Validation {
		debugLog.Store(d.log)
		debugInfo = vks.CPtr(arp, &vks.DebugUtilsMessengerCreateInfoEXT{},
			vks.SetDefaultSType,
			setDebugMessenger,
		)
	}
	appInfo := vks.CPtr(arp, &vks.ApplicationInfo{},
		vks.SetEngine(arp, "NoEngine", vks.MakeApiVersion(0, 1, 0, 0)),
		vks.SetApplication(arp, opts.AppName, vks.MakeApiVersion(0, 0, 1, 0)),
		vks.SetDefaultSType,
		func(in *vks.ApplicationInfo) {
			in.SetApiVersion(uint32(vks.VK_API_VERSION_1_3))
		},
	)
	createInfo := vks.CPtr(arp, &vks.InstanceCreateInfo{},
		vks.SetInstanceLayers(arp, opts.layers()),
		vks.SetInstanceExtensions(arp, extensions),
		vks.SetDefaultSType,
		func(in *vks.InstanceCreateInfo) {
			in.SetPApplicationInfo(appInfo)
			if debugInfo != nil {
				vks.SetPNext[*vks.InstanceCreateInfo](debugInfo)(in)
			}
			if runtime.GOOS == "darwin" {
				in.SetFlags(vks.InstanceCreateFlags(vks.VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR))
			}
		},
	)

	var instance vks.Instance
	if result := vks.CreateInstance(createInfo, nil, &instance); result.IsError() {
		return errors.Wrap(result.AsErr(), "create instance")
	}
	d.instance = vks.MakeInstanceFacade(instance)
	return nil
}

func (d *Device) createMessenger(opts Options) error {
	if !opts.Validation {
		return nil
	}
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.DebugUtilsMessengerCreateInfoEXT{},
		vks.SetDefaultSType,
		setDebugMessenger,
	)
	if result := d.instance.CreateDebugUtilsMessengerEXT(info, nil, &d.messenger); result.IsError() {
		return errors.Wrap(result.AsErr(), "create debug messenger")
	}
	d.hasMessenger = true
	return nil
}

// instanceLayers lists the names of the installed instance layers.
func instanceLayers() ([]string, error) {
	var count uint32
	if result := vks.EnumerateInstanceLayerProperties(&count, nil); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "enumerate instance layers")
	}
	props := make([]vks.LayerProperties, count)
	if result := vks.EnumerateInstanceLayerProperties(&count, props); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "enumerate instance layers")
	}
	names := make([]string, len(props))
	for k, p := range props {
		names[k] = vks.ToString(p.LayerName())
	}
	return names, nil
}

func instanceExtensionProperties(layer string) ([]vks.ExtensionProperties, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	name := vks.NewCStr(arp, layer)
	var count uint32
	if result := vks.EnumerateInstanceExtensionProperties(name, &count, nil); result.IsError() {
		return nil, errors.Wrapf(result.AsErr(), "enumerate instance extensions of %q", layer)
	}
	props := make([]vks.ExtensionProperties, count)
	if result := vks.EnumerateInstanceExtensionProperties(name, &count, props); result.IsError() {
		return nil, errors.Wrapf(result.AsErr(), "enumerate instance extensions of %q", layer)
	}
	return props, nil
}

// instanceExtensions lists the extensions provided by layer, or by the
// implementation when layer is empty.
func instanceExtensions(layer string) ([]string, error) {
	props, err := instanceExtensionProperties(layer)
	if err != nil {
		return nil, err
	}
	return extensionNames(props), nil
}

func extensionNames(props []vks.ExtensionProperties) []string {
	names := make([]string, len(props))
	for k, ext := range props {
		names[k] = vks.ToString(ext.ExtensionName())
	}
	return names
}

// missing returns the entries of required that are not in available, in
// order.
func missing(required, available []string) []string {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}
	var out []string
	for _, name := range required {
		if !have[name] {
			out = append(out, name)
		}
	}
	return out
}

// logInstanceOptions dumps the extensions available globally and from each
// requested layer.
func (d *Device) logInstanceOptions(layers []string) {
	for _, layer := range append([]string{""}, layers...) {
		props, err := instanceExtensionProperties(layer)
		if err != nil {
			d.log.Warn("enumerate instance extensions", "layer", layer, "err", err)
			continue
		}
		for _, ext := range props {
			d.log.Debug("instance extension",
				"layer", layer,
				"name", vks.ToString(ext.ExtensionName()),
				"version", vks.ApiVersion(ext.SpecVersion()))
		}
	}
}

func (d *Device) physicalDevices() ([]vks.PhysicalDevice, error) {
	var count uint32
	if result := d.instance.EnumeratePhysicalDevices(&count, nil); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "enumerate physical devices")
	}
	devices := make([]vks.PhysicalDevice, count)
	if result := d.instance.EnumeratePhysicalDevices(&count, devices); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "enumerate physical devices")
	}
	return devices, nil
}

func (d *Device) logPhysicalDevices() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	devices, err := d.physicalDevices()
	if err != nil {
		return err
	}
	for k, pd := range devices {
		driverProps := vks.CPtr(arp, &vks.PhysicalDeviceDriverProperties{},
			vks.SetDefaultSType,
		)
		props := vks.CPtr(arp, &vks.PhysicalDeviceProperties2{},
			vks.SetDefaultSType,
			vks.SetPNext[*vks.PhysicalDeviceProperties2](driverProps),
		)
		d.instance.MakePhysicalDeviceFacade(pd).GetPhysicalDeviceProperties2(props)
		d.log.Info("physical device",
			"index", k,
			"name", vks.ToString(props.Properties().DeviceName()),
			"type", props.Properties().DeviceType(),
			"api", vks.ApiVersion(props.Properties().ApiVersion()),
			"driver", vks.ToString(driverProps.DriverName()),
			"driverVersion", vks.ApiVersion(props.Properties().DriverVersion()))
	}
	return nil
}

func (d *Device) createSurface(win Window) error {
	surface, err := win.CreateWindowSurface(d.instance.H)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}
	d.surface = *(*vks.SurfaceKHR)(unsafe.Pointer(surface))
	return nil
}

// suitability is what a physical device offers for drawing to the surface.
type suitability struct {
	graphic, present  option[uint32]
	missingExtensions []string
	formats, modes    int
}

// problems lists why the device cannot be used. Empty means suitable.
func (s suitability) problems() []string {
	var out []string
	if !s.graphic.isSet() {
		out = append(out, "no graphics queue family")
	}
	if !s.present.isSet() {
		out = append(out, "no presentation queue family")
	}
	if len(s.missingExtensions) > 0 {
		out = append(out, "missing extensions "+strings.Join(s.missingExtensions, ", "))
	}
	if s.formats == 0 {
		out = append(out, "no surface formats")
	}
	if s.modes == 0 {
		out = append(out, "no present modes")
	}
	return out
}

// selectPhysicalDevice takes the first device with a graphics queue family,
// a family that can present to the surface, every device extension and at
// least one surface format and present mode.
func (d *Device) selectPhysicalDevice(opts Options) error {
	devices, err := d.physicalDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.New("failed to find GPUs with Vulkan support")
	}
	for k, pd := range devices {
		d.physicalDevice = d.instance.MakePhysicalDeviceFacade(pd)
		s, err := d.inspect(opts)
		if err != nil {
			return err
		}
		if problems := s.problems(); len(problems) > 0 {
			d.log.Info("physical device skipped", "index", k, "problems", problems)
			continue
		}
		d.graphicIndex = s.graphic.get(0)
		d.presentIndex = s.present.get(0)
		d.log.Info("queue families", "device", k, "graphics", d.graphicIndex, "present", d.presentIndex)
		return nil
	}
	d.physicalDevice = vks.PhysicalDeviceFacade{}
	return errors.New("failed to find a suitable GPU")
}

// inspect reports what d.physicalDevice offers.
func (d *Device) inspect(opts Options) (suitability, error) {
	var s suitability

	var count uint32
	d.physicalDevice.GetPhysicalDeviceQueueFamilyProperties2(&count, nil)
	families := make([]vks.QueueFamilyProperties2, count)
	for k, v := range families {
		families[k] = v.WithDefaultSType()
	}
	d.physicalDevice.GetPhysicalDeviceQueueFamilyProperties2(&count, families)

	for k, v := range families {
		index := uint32(k)
		if !s.graphic.isSet() && v.QueueFamilyProperties().QueueFlags()&vks.QueueFlags(vks.VK_QUEUE_GRAPHICS_BIT) != 0 {
			s.graphic = some(index)
		}
		var supported vks.Bool32
		d.physicalDevice.GetPhysicalDeviceSurfaceSupportKHR(index, d.surface, &supported)
		if !s.present.isSet() && supported.IsTrue() {
			s.present = some(index)
		}
		if s.graphic.isSet() && s.present.isSet() {
			break
		}
	}

	exts, err := d.supportedExtensions()
	if err != nil {
		return s, err
	}
	s.missingExtensions = missing(opts.deviceExtensions(), exts)
	if len(s.missingExtensions) > 0 {
		// Swapchain support is only queried once the extension is there.
		return s, nil
	}

	formats, err := d.Formats()
	if err != nil {
		return s, err
	}
	modes, err := d.PresentModes()
	if err != nil {
		return s, err
	}
	s.formats, s.modes = len(formats), len(modes)
	return s, nil
}

// supportedExtensions lists the extensions d.physicalDevice supports.
func (d *Device) supportedExtensions() ([]string, error) {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	name := vks.NewCStr(arp, "")
	var count uint32
	if result := d.physicalDevice.EnumerateDeviceExtensionProperties(name, &count, nil); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "enumerate device extensions")
	}
	props := make([]vks.ExtensionProperties, count)
	if result := d.physicalDevice.EnumerateDeviceExtensionProperties(name, &count, props); result.IsError() {
		return nil, errors.Wrap(result.AsErr(), "enumerate device extensions")
	}
	return extensionNames(props), nil
}

func (d *Device) queueFamilies() []uint32 {
	if d.graphicIndex == d.presentIndex {
		return []uint32{d.graphicIndex}
	}
	return []uint32{d.graphicIndex, d.presentIndex}
}

func (d *Device) createDevice(opts Options) error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	families := d.queueFamilies()
	queueInfos := make([]vks.DeviceQueueCreateInfo, len(families))
	for k, idx := range families {
		queueInfos[k] = vks.DeviceQueueCreateInfo{}.
			WithDefaultSType().
			WithQueueFamilyIndex(idx).
			WithPQueuePriorities([]float32{1.0})
	}
	queueInfos = vks.DeviceQueueCreateInfoCSlice(arp, queueInfos...)

	createInfo := vks.CPtr(arp, &vks.DeviceCreateInfo{},
		vks.SetDefaultSType,
		vks.SetDeviceExtensions(arp, opts.deviceExtensions()),
		func(in *vks.DeviceCreateInfo) {
			in.SetPQueueCreateInfos(queueInfos)
		},
	)

	var device vks.Device
	if result := d.physicalDevice.CreateDevice(createInfo, nil, &device); result.IsError() {
		return errors.Wrap(result.AsErr(), "create device")
	}
	d.device = d.physicalDevice.MakeDeviceFacade(device)

	var queue vks.Queue
	d.device.GetDeviceQueue(d.graphicIndex, 0, &queue)
	d.graphicQueue = d.device.MakeQueueFacade(queue)
	d.device.GetDeviceQueue(d.presentIndex, 0, &queue)
	d.presentQueue = d.device.MakeQueueFacade(queue)
	return nil
}

func (d *Device) createCommandPool() error {
	arp := vks.NewAutoReleaser()
	defer arp.Release()

	info := vks.CPtr(arp, &vks.CommandPoolCreateInfo{},
		vks.SetDefaultSType,
		func(in *vks.CommandPoolCreateInfo) {
			in.SetQueueFamilyIndex(d.graphicIndex)
		},
	)
	var pool vks.CommandPool
	if result := d.device.CreateCommandPool(info, nil, &pool); result.IsError() {
		return errors.Wrap(result.AsErr(), "create command pool")
	}
	d.commandPool = d.device.MakeCommandPoolFacade(pool)
	d.hasPool = true
	return nil
}

// Close waits for the device to go idle, then destroys the command pool, the
// device, the surface, the debug messenger and the instance. Every other
// object must already be gone.
func (d *Device) Close() {
	defer debugLog.CompareAndSwap(d.log, nil)
	if d.instance.H == vks.NullInstance {
		return
	}
	if d.device.H != vks.NullDevice {
		logResult(d.device.DeviceWaitIdle(), "wait for device idle")
		if d.hasPool {
			d.device.DestroyCommandPool(d.commandPool.H, nil)
		}
		d.device.DestroyDevice(nil)
	}
	if d.surface != vks.NullSurfaceKHR {
		d.instance.DestroySurfaceKHR(d.surface, nil)
	}
	if d.hasMessenger {
		d.instance.DestroyDebugUtilsMessengerEXT(d.messenger, nil)
		d.hasMessenger = false
	}
	d.instance.DestroyInstance(nil)
	d.instance = vks.InstanceFacade{}
}

// logResult logs a failed result that has no caller to return to.
func logResult(result vks.Result, op string) error {
	return cerrors.Log(check(result, op))
}

func (d *Device) id() uint64 {
	d.next++
	return d.next
}

func (d *Device) String() string {
	return fmt.Sprintf("vksgfx.Device(graphics=%d, present=%d)", d.graphicIndex, d.presentIndex)
}

var (
	_ gfx.Device   = (*Device)(nil)
	_ gfx.Surface  = (*Device)(nil)
	_ gfx.Renderer = (*Triangle)(nil)
)
