package bladevk

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// Context owns the device and everything created from it. Memory and the
// queue are guarded by independent locks, so allocation never waits on
// submission.
type Context struct {
	drv     driver.Driver
	backend string

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	caps           driver.AdapterCapabilities

	instanceExtensions []string
	deviceExtensions   []string
	layers             []string
	portability        bool

	memory *MemoryManager
	queue  Queue

	// shaderDebug emits debug info into generated SPIR-V.
	shaderDebug bool
	validation  bool

	destroyOnce sync.Once
	destroyed   atomic.Bool
}

// Backend names the driver backend the context runs on.
func (c *Context) Backend() string {
	return c.backend
}

// AdapterInfo describes the selected adapter.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{
		Name: c.caps.Name,
		Type: adapterType(c.caps.DeviceType),
	}
}

// Capabilities returns what bootstrap read from the selected adapter.
func (c *Context) Capabilities() driver.AdapterCapabilities {
	return c.caps
}

// Extensions lists the enabled instance and device extensions.
func (c *Context) Extensions() (instance, device []string) {
	return c.instanceExtensions, c.deviceExtensions
}

// Memory returns the memory manager.
func (c *Context) Memory() *MemoryManager {
	return c.memory
}

// setObjectName attaches a debug label. Empty names are skipped.
func (c *Context) setObjectName(objectType vk.ObjectType, handle uintptr, name string) {
	if name == "" || handle == 0 {
		return
	}
	c.drv.SetObjectName(c.device, objectType, uint64(handle), name)
}

// Destroy waits for the device to go idle and releases every object the
// context created. Objects created by the caller must be destroyed first.
// Calling Destroy again has no effect.
func (c *Context) Destroy() {
	c.destroyOnce.Do(func() {
		c.destroyed.Store(true)
		if err := c.drv.DeviceWaitIdle(c.device); err != nil {
			Logger().Error("device wait idle", "err", err)
		}
		c.drv.DestroySemaphore(c.device, c.queue.timeline)
		c.memory.destroy()
		c.drv.DestroyDevice(c.device)
		c.drv.DestroyInstance(c.instance)
		c.drv.Close()
	})
}
