package vulkan

import (
	"runtime"
	"slices"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// The binding refuses to load instance entry points unless the surface
// queries resolve, so the extension is enabled whenever the loader has it.
const extSurface = "VK_KHR_surface"

func (d *Driver) CreateInstance(desc driver.InstanceDesc) (vk.Instance, error) {
	extensions := slices.Clone(desc.Extensions)
	if available, err := instanceExtensions(d.cmds); err == nil &&
		slices.Contains(available, extSurface) && !slices.Contains(extensions, extSurface) {
		extensions = append(extensions, extSurface)
	}

	appName := cString(desc.ApplicationName)
	engineName := cString(desc.EngineName)
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   uintptr(unsafe.Pointer(&appName[0])),
		ApplicationVersion: driver.MakeVersion(1, 0, 0),
		PEngineName:        uintptr(unsafe.Pointer(&engineName[0])),
		EngineVersion:      driver.MakeVersion(1, 0, 0),
		ApiVersion:         desc.APIVersion,
	}

	exts := newCStrings(extensions)
	layers := newCStrings(desc.Layers)
	info := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledLayerCount:       layers.count(),
		PpEnabledLayerNames:     layers.pointer(),
		EnabledExtensionCount:   exts.count(),
		PpEnabledExtensionNames: exts.pointer(),
	}
	if desc.Portability {
		info.Flags = vk.InstanceCreateFlags(vk.InstanceCreateEnumeratePortabilityBitKhr)
	}

	var instance vk.Instance
	ret := d.cmds.CreateInstance(&info, nil, &instance)
	runtime.KeepAlive(appName)
	runtime.KeepAlive(engineName)
	exts.keepAlive()
	layers.keepAlive()
	if err := driver.Check("vkCreateInstance", ret); err != nil {
		return 0, err
	}

	if err := d.cmds.LoadInstance(instance); err != nil {
		d.cmds.DestroyInstance(instance, nil)
		return 0, errors.Wrap(err, "vulkan: instance entry points")
	}
	// Some drivers only hand out vkGetDeviceProcAddr through a live instance.
	vk.SetDeviceProcAddr(instance)
	return instance, nil
}

func (d *Driver) DestroyInstance(inst vk.Instance) {
	d.cmds.DestroyInstance(inst, nil)
}

func (d *Driver) PhysicalDevices(inst vk.Instance) ([]vk.PhysicalDevice, error) {
	var count uint32
	if err := driver.Check("vkEnumeratePhysicalDevices", d.cmds.EnumeratePhysicalDevices(inst, &count, nil)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := driver.Check("vkEnumeratePhysicalDevices", d.cmds.EnumeratePhysicalDevices(inst, &count, &devices[0])); err != nil {
		return nil, err
	}
	return devices[:count], nil
}

func (d *Driver) AdapterCapabilities(pd vk.PhysicalDevice) driver.AdapterCapabilities {
	var base vk.PhysicalDeviceProperties
	d.cmds.GetPhysicalDeviceProperties(pd, &base)

	caps := driver.AdapterCapabilities{
		Name:       goString(base.DeviceName[:]),
		DeviceType: base.DeviceType,
		VendorID:   base.VendorID,
		DeviceID:   base.DeviceID,
		APIVersion: base.ApiVersion,
		Limits: driver.Limits{
			MaxMemoryAllocationCount: base.Limits.MaxMemoryAllocationCount,
			NonCoherentAtomSize:      uint64(base.Limits.NonCoherentAtomSize),
			BufferImageGranularity:   uint64(base.Limits.BufferImageGranularity),
			MaxBoundDescriptorSets:   base.Limits.MaxBoundDescriptorSets,
			MaxComputeWorkGroupSize:  base.Limits.MaxComputeWorkGroupSize,
		},
	}
	caps.Extensions, _ = deviceExtensions(d.cmds, pd)

	var memory vk.PhysicalDeviceMemoryProperties
	d.cmds.GetPhysicalDeviceMemoryProperties(pd, &memory)
	caps.Memory.Types = slices.Clone(memory.MemoryTypes[:memory.MemoryTypeCount])
	caps.Memory.Heaps = slices.Clone(memory.MemoryHeaps[:memory.MemoryHeapCount])

	if !d.cmds.HasPhysicalDeviceFeatures2() {
		return caps
	}

	// Structs are only chained when the device knows them.
	hasInline := caps.HasExtension(driver.ExtInlineUniformBlock) || base.ApiVersion >= driver.MakeVersion(1, 3, 0)
	hasTimeline := caps.HasExtension(driver.ExtTimelineSemaphore) || base.ApiVersion >= driver.MakeVersion(1, 2, 0)

	inlineProps := vk.PhysicalDeviceInlineUniformBlockProperties{SType: driver.StructureTypePhysicalDeviceInlineUniformBlockProperties}
	props := vk.PhysicalDeviceProperties2{SType: vk.StructureTypePhysicalDeviceProperties2}
	inlineFeatures := vk.PhysicalDeviceInlineUniformBlockFeatures{SType: driver.StructureTypePhysicalDeviceInlineUniformBlockFeatures}
	timelineFeatures := vk.PhysicalDeviceTimelineSemaphoreFeatures{SType: vk.StructureTypePhysicalDeviceTimelineSemaphoreFeatures}
	features := vk.PhysicalDeviceFeatures2{SType: vk.StructureTypePhysicalDeviceFeatures2}

	if hasInline {
		props.PNext = (*uintptr)(unsafe.Pointer(&inlineProps))
		inlineFeatures.PNext = features.PNext
		features.PNext = (*uintptr)(unsafe.Pointer(&inlineFeatures))
	}
	if hasTimeline {
		timelineFeatures.PNext = features.PNext
		features.PNext = (*uintptr)(unsafe.Pointer(&timelineFeatures))
	}
	d.cmds.GetPhysicalDeviceProperties2(pd, &props)
	d.cmds.GetPhysicalDeviceFeatures2(pd, &features)
	runtime.KeepAlive(&inlineProps)
	runtime.KeepAlive(&inlineFeatures)
	runtime.KeepAlive(&timelineFeatures)

	caps.MaxInlineUniformBlockSize = inlineProps.MaxInlineUniformBlockSize
	caps.MaxDescriptorSetInlineUniformBlocks = inlineProps.MaxDescriptorSetInlineUniformBlocks
	caps.InlineUniformBlock = inlineFeatures.InlineUniformBlock == vk.True
	caps.TimelineSemaphore = timelineFeatures.TimelineSemaphore == vk.True
	return caps
}

func (d *Driver) CreateDevice(pd vk.PhysicalDevice, desc driver.DeviceDesc) (vk.Device, error) {
	var chain *uintptr
	inline := vk.PhysicalDeviceInlineUniformBlockFeatures{
		SType:              driver.StructureTypePhysicalDeviceInlineUniformBlockFeatures,
		InlineUniformBlock: vk.True,
	}
	timeline := vk.PhysicalDeviceTimelineSemaphoreFeatures{
		SType:             vk.StructureTypePhysicalDeviceTimelineSemaphoreFeatures,
		TimelineSemaphore: vk.True,
	}
	if desc.InlineUniformBlock {
		inline.PNext = chain
		chain = (*uintptr)(unsafe.Pointer(&inline))
	}
	if desc.TimelineSemaphore {
		timeline.PNext = chain
		chain = (*uintptr)(unsafe.Pointer(&timeline))
	}

	priority := float32(1)
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: desc.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: &priority,
	}
	exts := newCStrings(desc.Extensions)
	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   chain,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       &queueInfo,
		EnabledExtensionCount:   exts.count(),
		PpEnabledExtensionNames: exts.pointer(),
	}

	var device vk.Device
	ret := d.cmds.CreateDevice(pd, &info, nil, &device)
	exts.keepAlive()
	runtime.KeepAlive(&inline)
	runtime.KeepAlive(&timeline)
	runtime.KeepAlive(&priority)
	if err := driver.Check("vkCreateDevice", ret); err != nil {
		return 0, err
	}

	if err := d.cmds.LoadDevice(device); err != nil {
		d.cmds.DestroyDevice(device, nil)
		return 0, errors.Wrap(err, "vulkan: device entry points")
	}
	if desc.TimelineSemaphore && !d.cmds.HasTimelineSemaphore() {
		d.cmds.DestroyDevice(device, nil)
		return 0, driver.Check("vkGetDeviceProcAddr(vkWaitSemaphores)", vk.ErrorFeatureNotPresent)
	}
	update := vk.GetDeviceProcAddr(device, "vkUpdateDescriptorSetWithTemplate")
	if update == nil {
		update = vk.GetDeviceProcAddr(device, "vkUpdateDescriptorSetWithTemplateKHR")
	}
	if update == nil {
		d.cmds.DestroyDevice(device, nil)
		return 0, driver.Check("vkGetDeviceProcAddr(vkUpdateDescriptorSetWithTemplate)", vk.ErrorExtensionNotPresent)
	}

	d.mu.Lock()
	d.updateTemplate[device] = update
	d.mu.Unlock()
	return device, nil
}
