// Package simulated is an in-process device behind the driver interface.
// Memory is host backed, buffer fills and copies execute when submissions
// are processed, and timeline semaphores block like the real thing.
//
// GPU progress is manual by default: submitted work stays pending until
// Step or Flush is called. AutoProcess completes work at submit time.
package simulated

import (
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// Config shapes the simulated adapter.
type Config struct {
	Name       string
	DeviceType vk.PhysicalDeviceType
	// InstanceVersion reported by the loader.
	InstanceVersion uint32
	// Adapters is the number of physical devices. They are identical
	// unless AdapterOverrides adjusts them.
	Adapters int
	// AdapterOverrides edits the capabilities of the adapter at an index.
	AdapterOverrides map[int]func(*driver.AdapterCapabilities)

	InstanceExtensions []string
	DeviceExtensions   []string
	Layers             []string

	MaxInlineUniformBlockSize           uint32
	MaxDescriptorSetInlineUniformBlocks uint32
	NoInlineUniformBlock                bool
	NoTimelineSemaphore                 bool

	Limits      driver.Limits
	MemoryTypes []vk.MemoryType
	MemoryHeaps []vk.MemoryHeap

	// FailLoad makes Load report a missing library.
	FailLoad bool
	// AutoProcess completes every submission immediately.
	AutoProcess bool
}

// DefaultConfig describes a capable discrete adapter with a device local
// heap and a host visible heap.
func DefaultConfig() Config {
	return Config{
		Name:            "Simulated GPU",
		DeviceType:      vk.PhysicalDeviceTypeDiscreteGpu,
		InstanceVersion: driver.MakeVersion(1, 3, 0),
		Adapters:        1,
		InstanceExtensions: []string{
			driver.ExtDebugUtils,
			driver.ExtGetPhysicalDeviceProperties2,
		},
		DeviceExtensions: []string{
			driver.ExtInlineUniformBlock,
			driver.ExtTimelineSemaphore,
			driver.ExtDescriptorUpdateTemplate,
		},
		Layers:                              []string{driver.LayerKhronosValidation},
		MaxInlineUniformBlockSize:           256,
		MaxDescriptorSetInlineUniformBlocks: 4,
		Limits: driver.Limits{
			MaxMemoryAllocationCount: 4096,
			NonCoherentAtomSize:      64,
			BufferImageGranularity:   1024,
			MaxBoundDescriptorSets:   8,
			MaxComputeWorkGroupSize:  [3]uint32{1024, 1024, 64},
		},
		MemoryTypes: []vk.MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), HeapIndex: 0},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit), HeapIndex: 1},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit | vk.MemoryPropertyHostCachedBit), HeapIndex: 1},
		},
		MemoryHeaps: []vk.MemoryHeap{
			{Size: 1 << 30, Flags: 1},
			{Size: 1 << 30},
		},
	}
}

// Kind classifies simulated objects for bookkeeping.
type Kind int

const (
	KindInstance Kind = iota
	KindDevice
	KindSemaphore
	KindMemory
	KindBuffer
	KindImage
	KindImageView
	KindSampler
	KindShaderModule
	KindSetLayout
	KindTemplate
	KindPipelineLayout
	KindPipeline
	KindCommandPool
	KindCommandBuffer
	KindDescriptorPool
	KindDescriptorSet
	kindCount
)

var kindNames = [kindCount]string{
	"instance", "device", "semaphore", "memory", "buffer", "image",
	"image view", "sampler", "shader module", "set layout", "template",
	"pipeline layout", "pipeline", "command pool", "command buffer",
	"descriptor pool", "descriptor set",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return "unknown"
}

// Driver is the simulated backend.
type Driver struct {
	cfg Config

	mu      sync.Mutex
	next    uintptr
	kinds   map[uintptr]Kind
	created [kindCount]int
	names   map[uint64]string

	memory   map[vk.DeviceMemory][]byte
	mapped   map[vk.DeviceMemory]bool
	buffers  map[vk.Buffer]*buffer
	images   map[vk.Image]*image
	cmdPools map[vk.CommandPool][]vk.CommandBuffer
	cmdBufs  map[vk.CommandBuffer]*commandBuffer
	descPool map[vk.DescriptorPool]*descriptorPool
	sets     map[vk.DescriptorSet]*descriptorSet
	tmpls    map[vk.DescriptorUpdateTemplate][]driver.TemplateEntry

	timelines map[vk.Semaphore]uint64
	pending   []driver.Submission
	signal    chan struct{}
	lost      bool
	loaded    bool
	physical  vk.PhysicalDevice

	violations []string
}

var _ driver.Driver = (*Driver)(nil)

// New creates a simulated driver.
func New(cfg Config) *Driver {
	if cfg.Adapters == 0 {
		cfg.Adapters = 1
	}
	return &Driver{
		cfg:       cfg,
		next:      0x1000,
		kinds:     make(map[uintptr]Kind),
		names:     make(map[uint64]string),
		memory:    make(map[vk.DeviceMemory][]byte),
		mapped:    make(map[vk.DeviceMemory]bool),
		buffers:   make(map[vk.Buffer]*buffer),
		images:    make(map[vk.Image]*image),
		cmdPools:  make(map[vk.CommandPool][]vk.CommandBuffer),
		cmdBufs:   make(map[vk.CommandBuffer]*commandBuffer),
		descPool:  make(map[vk.DescriptorPool]*descriptorPool),
		sets:      make(map[vk.DescriptorSet]*descriptorSet),
		tmpls:     make(map[vk.DescriptorUpdateTemplate][]driver.TemplateEntry),
		timelines: make(map[vk.Semaphore]uint64),
		signal:    make(chan struct{}),
	}
}

func (d *Driver) Name() string { return "simulated" }

// Created returns how many objects of kind were ever created.
func (d *Driver) Created(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// Physical returns the physical device of the last created device.
func (d *Driver) Physical() vk.PhysicalDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.physical
}

// Live returns how many objects of kind currently exist.
func (d *Driver) Live(kind Kind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// ObjectName returns the debug name attached to handle.
func (d *Driver) ObjectName(handle uint64) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.names[handle]
}

// Violations lists misuse the device observed, such as destroying an
// unknown handle or submitting a buffer that is still recording.
func (d *Driver) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.violations)
}

// Lose marks the device lost. Waits and submits fail afterwards.
func (d *Driver) Lose() {
	d.mu.Lock()
	d.lost = true
	d.broadcastLocked()
	d.mu.Unlock()
}

func (d *Driver) violate(format string, args ...any) {
	d.violations = append(d.violations, errors.Newf(format, args...).Error())
}

func (d *Driver) newHandle(kind Kind) uintptr {
	d.next += 0x10
	h := d.next
	d.kinds[h] = kind
	d.created[kind]++
	return h
}

func (d *Driver) release(kind Kind, h uintptr) bool {
	if h == 0 {
		return false
	}
	if k, ok := d.kinds[h]; !ok || k != kind {
		d.violate("destroying unknown %s %#x", kind, h)
		return false
	}
	delete(d.kinds, h)
	return true
}

func (d *Driver) check(kind Kind, h uintptr) bool {
	k, ok := d.kinds[h]
	return ok && k == kind
}

// Loader

func (d *Driver) Load() error {
	if d.cfg.FailLoad {
		return errors.New("simulated: loader library not found")
	}
	d.mu.Lock()
	d.loaded = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) Close() {
	d.mu.Lock()
	d.loaded = false
	d.mu.Unlock()
}

func (d *Driver) InstanceVersion() (uint32, error) {
	return d.cfg.InstanceVersion, nil
}

func (d *Driver) InstanceExtensions() ([]string, error) {
	return slices.Clone(d.cfg.InstanceExtensions), nil
}

func (d *Driver) InstanceLayers() ([]string, error) {
	return slices.Clone(d.cfg.Layers), nil
}

func (d *Driver) CreateInstance(desc driver.InstanceDesc) (vk.Instance, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return 0, driver.Check("vkCreateInstance", vk.ErrorInitializationFailed)
	}
	for _, ext := range desc.Extensions {
		if !slices.Contains(d.cfg.InstanceExtensions, ext) {
			return 0, driver.Check("vkCreateInstance", vk.ErrorExtensionNotPresent)
		}
	}
	for _, layer := range desc.Layers {
		if !slices.Contains(d.cfg.Layers, layer) {
			return 0, driver.Check("vkCreateInstance", vk.ErrorLayerNotPresent)
		}
	}
	return vk.Instance(d.newHandle(KindInstance)), nil
}

// Instance

func (d *Driver) DestroyInstance(inst vk.Instance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindInstance, uintptr(inst))
}

func (d *Driver) PhysicalDevices(inst vk.Instance) ([]vk.PhysicalDevice, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.check(KindInstance, uintptr(inst)) {
		return nil, driver.Check("vkEnumeratePhysicalDevices", vk.ErrorInitializationFailed)
	}
	pds := make([]vk.PhysicalDevice, d.cfg.Adapters)
	for i := range pds {
		pds[i] = vk.PhysicalDevice(0x100 + i)
	}
	return pds, nil
}

func (d *Driver) AdapterCapabilities(pd vk.PhysicalDevice) driver.AdapterCapabilities {
	caps := driver.AdapterCapabilities{
		Name:                                d.cfg.Name,
		DeviceType:                          d.cfg.DeviceType,
		VendorID:                            0x10de,
		DeviceID:                            uint32(pd),
		APIVersion:                          driver.MakeVersion(1, 3, 0),
		Extensions:                          slices.Clone(d.cfg.DeviceExtensions),
		MaxInlineUniformBlockSize:           d.cfg.MaxInlineUniformBlockSize,
		MaxDescriptorSetInlineUniformBlocks: d.cfg.MaxDescriptorSetInlineUniformBlocks,
		InlineUniformBlock:                  !d.cfg.NoInlineUniformBlock,
		TimelineSemaphore:                   !d.cfg.NoTimelineSemaphore,
		Limits:                              d.cfg.Limits,
		Memory: driver.MemoryProperties{
			Types: slices.Clone(d.cfg.MemoryTypes),
			Heaps: slices.Clone(d.cfg.MemoryHeaps),
		},
	}
	if override := d.cfg.AdapterOverrides[int(pd)-0x100]; override != nil {
		override(&caps)
	}
	return caps
}

func (d *Driver) CreateDevice(pd vk.PhysicalDevice, desc driver.DeviceDesc) (vk.Device, error) {
	caps := d.AdapterCapabilities(pd)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, ext := range desc.Extensions {
		if !slices.Contains(caps.Extensions, ext) {
			return 0, driver.Check("vkCreateDevice", vk.ErrorExtensionNotPresent)
		}
	}
	if desc.InlineUniformBlock && !caps.InlineUniformBlock {
		return 0, driver.Check("vkCreateDevice", vk.ErrorFeatureNotPresent)
	}
	if desc.TimelineSemaphore && !caps.TimelineSemaphore {
		return 0, driver.Check("vkCreateDevice", vk.ErrorFeatureNotPresent)
	}
	dev := vk.Device(d.newHandle(KindDevice))
	d.physical = pd
	return dev, nil
}
