package bladevk

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

const engineName = "blade"

// minimumInstanceVersion is the first version with the extended feature
// and property queries.
var minimumInstanceVersion = driver.MakeVersion(1, 1, 0)

// Init creates a context on the backend named by desc, or on the best
// registered backend when none is named.
func Init(desc ContextDesc) (*Context, error) {
	drv, name, err := selectBackend(desc.Backend)
	if err != nil {
		return nil, err
	}
	ctx, err := InitWithDriver(drv, desc)
	if err != nil {
		return nil, err
	}
	ctx.backend = name
	return ctx, nil
}

// InitWithDriver runs bootstrap on drv. Every failure is reported as a
// NotSupportedError and leaves nothing alive on the driver.
func InitWithDriver(drv driver.Driver, desc ContextDesc) (ctx *Context, err error) {
	var cleanup []func()
	defer func() {
		if err == nil {
			return
		}
		ctx = nil
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		if !errors.Is(err, ErrNotSupported) {
			err = notSupported(err, "bootstrap")
		}
		Logger().Error("init failed", "err", err)
	}()
	defer checkErr(&err)

	if err := drv.Load(); err != nil {
		return nil, notSupported(err, "missing native entry points")
	}
	cleanup = append(cleanup, drv.Close)

	version, err := drv.InstanceVersion()
	if err != nil {
		return nil, notSupported(err, "instance version")
	}
	if version < minimumInstanceVersion {
		return nil, notSupported(nil, "instance version %d.%d lacks extended queries",
			driver.VersionMajor(version), driver.VersionMinor(version))
	}

	var state bootstrapState

	supported, err := drv.InstanceExtensions()
	if err != nil {
		return nil, notSupported(err, "enumerate instance extensions")
	}
	instanceExts := newExtensionSet(scopeInstance, &state, supported)
	if ok, missing := instanceExts.HasRequired(); !ok {
		return nil, notSupported(nil, "instance extensions %v", missing)
	}
	if ok, missing := instanceExts.HasWanted(); !ok {
		Logger().Debug("optional instance extensions missing", "missing", missing)
	}
	instanceExts.apply(scopeInstance, &state)
	if state.portability {
		Logger().Info("Enabling Vulkan Portability")
	}

	var layers []string
	if desc.Validation {
		available, err := drv.InstanceLayers()
		if err != nil {
			return nil, notSupported(err, "enumerate instance layers")
		}
		if slices.Contains(available, driver.LayerKhronosValidation) {
			layers = append(layers, driver.LayerKhronosValidation)
		} else {
			Logger().Warn("validation requested but the layer is missing", "layer", driver.LayerKhronosValidation)
		}
	}
	Logger().Debug("instance", "extensions", instanceExts.Enabled(), "layers", layers)

	instance, err := drv.CreateInstance(driver.InstanceDesc{
		ApplicationName: desc.Application,
		EngineName:      engineName,
		APIVersion:      driver.MakeVersion(1, 2, 0),
		Layers:          layers,
		Extensions:      instanceExts.Enabled(),
		Portability:     state.portability,
	})
	if err != nil {
		return nil, notSupported(err, "create instance")
	}
	cleanup = append(cleanup, func() { drv.DestroyInstance(instance) })

	physicalDevices, err := drv.PhysicalDevices(instance)
	if err != nil {
		return nil, notSupported(err, "enumerate physical devices")
	}

	var (
		physical   vk.PhysicalDevice
		caps       driver.AdapterCapabilities
		deviceExts *extensionSet
	)
	for _, pd := range physicalDevices {
		c := drv.AdapterCapabilities(pd)
		if !inspectAdapter(&c) {
			continue
		}
		exts := newExtensionSet(scopeDevice, &state, c.Extensions)
		if ok, missing := exts.HasRequired(); !ok {
			Logger().Warn("rejected for device extensions", "adapter", c.Name, "missing", missing)
			continue
		}
		physical, caps, deviceExts = pd, c, exts
		break
	}
	if deviceExts == nil {
		return nil, notSupported(nil, "no adapter passes capability inspection")
	}
	Logger().Info("selected adapter", "adapter", caps.Name, "physical_device", uintptr(physical))

	deviceExts.apply(scopeDevice, &state)
	state.device.Extensions = deviceExts.Enabled()
	// Multi-queue is not supported. The first family is used.
	state.device.QueueFamily = 0
	Logger().Debug("device", "adapter", caps.Name, "extensions", state.device.Extensions)

	device, err := drv.CreateDevice(physical, state.device)
	if err != nil {
		return nil, notSupported(err, "create device")
	}
	cleanup = append(cleanup, func() { drv.DestroyDevice(device) })

	timeline, err := drv.CreateTimelineSemaphore(device, 0)
	if err != nil {
		return nil, notSupported(err, "create timeline semaphore")
	}
	cleanup = append(cleanup, func() { drv.DestroySemaphore(device, timeline) })

	ctx = &Context{
		drv:                drv,
		backend:            drv.Name(),
		instance:           instance,
		physicalDevice:     physical,
		device:             device,
		caps:               caps,
		instanceExtensions: instanceExts.Enabled(),
		deviceExtensions:   state.device.Extensions,
		layers:             layers,
		portability:        state.portability,
		memory:             newMemoryManager(drv, device, &caps),
		queue: Queue{
			raw:      drv.GetQueue(device, state.device.QueueFamily, 0),
			family:   state.device.QueueFamily,
			timeline: timeline,
		},
		shaderDebug: desc.Validation,
		validation:  desc.Validation,
	}
	ctx.setObjectName(vk.ObjectTypeQueue, uintptr(ctx.queue.raw), "main")
	ctx.setObjectName(vk.ObjectTypeSemaphore, uintptr(timeline), "timeline")
	return ctx, nil
}
