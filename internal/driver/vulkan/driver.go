// Package vulkan is the system loader backend. Entry points are resolved at
// runtime through the pure Go binding, so no cgo toolchain is needed.
package vulkan

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// Driver implements driver.Driver on top of the system Vulkan loader.
type Driver struct {
	cmds *vk.Commands

	mu sync.Mutex
	// transient render pass objects per command buffer
	passes map[vk.CommandBuffer][]passObjects
	// vkUpdateDescriptorSetWithTemplate per device
	updateTemplate map[vk.Device]unsafe.Pointer
}

var _ driver.Driver = (*Driver)(nil)

// New returns an unloaded driver. Load resolves the library.
func New() *Driver {
	return &Driver{
		passes:         make(map[vk.CommandBuffer][]passObjects),
		updateTemplate: make(map[vk.Device]unsafe.Pointer),
	}
}

func (d *Driver) Name() string { return "vulkan" }

func (d *Driver) Load() error {
	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "vulkan: load library")
	}
	cmds := vk.NewCommands()
	if err := cmds.LoadGlobal(); err != nil {
		return errors.Wrap(err, "vulkan: global entry points")
	}
	d.cmds = cmds
	return nil
}

// Close drops the resolved entry points. The library itself stays mapped
// for the life of the process since the binding loads it once.
func (d *Driver) Close() {
	d.cmds = nil
}

func (d *Driver) InstanceVersion() (uint32, error) {
	if vk.GetInstanceProcAddr(0, "vkEnumerateInstanceVersion") == nil {
		return driver.MakeVersion(1, 0, 0), nil
	}
	var version uint32
	if err := driver.Check("vkEnumerateInstanceVersion", d.cmds.EnumerateInstanceVersion(&version)); err != nil {
		return 0, err
	}
	return version, nil
}

func (d *Driver) InstanceExtensions() ([]string, error) {
	return instanceExtensions(d.cmds)
}

func (d *Driver) InstanceLayers() ([]string, error) {
	return validationLayers(d.cmds)
}
