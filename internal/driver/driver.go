// Package driver defines the native graphics API surface that bladevk is
// written against. Handle, enum and struct types come from the pure Go
// Vulkan binding so that a backend can pass them through without conversion.
//
// Two backends exist: internal/driver/vulkan talks to the system loader,
// internal/driver/simulated runs an in-process device used by tests.
package driver

import (
	"unsafe"

	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

// Driver is the full native surface. Methods are grouped by the object that
// scopes them.
type Driver interface {
	// Name identifies the backend in logs and registries.
	Name() string

	Loader
	InstanceFuncs
	DeviceFuncs
	Recorder
}

// Loader covers entry points that exist before an instance.
type Loader interface {
	// Load resolves the global entry points. A missing library or entry
	// point is reported as an error.
	Load() error
	// Close releases the library.
	Close()
	InstanceVersion() (uint32, error)
	InstanceExtensions() ([]string, error)
	InstanceLayers() ([]string, error)
	CreateInstance(desc InstanceDesc) (vk.Instance, error)
}

// InstanceFuncs are scoped to a live instance.
type InstanceFuncs interface {
	DestroyInstance(inst vk.Instance)
	PhysicalDevices(inst vk.Instance) ([]vk.PhysicalDevice, error)
	// AdapterCapabilities fills properties, limits, features and extensions
	// of one physical device through the extended query chain.
	AdapterCapabilities(pd vk.PhysicalDevice) AdapterCapabilities
	CreateDevice(pd vk.PhysicalDevice, desc DeviceDesc) (vk.Device, error)
}

// DeviceFuncs are scoped to a logical device.
type DeviceFuncs interface {
	DestroyDevice(dev vk.Device)
	DeviceWaitIdle(dev vk.Device) error
	SetObjectName(dev vk.Device, objectType vk.ObjectType, handle uint64, name string)
	GetQueue(dev vk.Device, family, index uint32) vk.Queue

	CreateTimelineSemaphore(dev vk.Device, initial uint64) (vk.Semaphore, error)
	DestroySemaphore(dev vk.Device, sem vk.Semaphore)
	SemaphoreCounterValue(dev vk.Device, sem vk.Semaphore) (uint64, error)
	// WaitSemaphore blocks until sem reaches value or timeout nanoseconds
	// pass. It reports false on timeout.
	WaitSemaphore(dev vk.Device, sem vk.Semaphore, value, timeout uint64) (bool, error)
	QueueSubmit(queue vk.Queue, sub Submission) error

	AllocateMemory(dev vk.Device, size uint64, typeIndex uint32) (vk.DeviceMemory, error)
	FreeMemory(dev vk.Device, mem vk.DeviceMemory)
	// MapMemory maps the whole allocation.
	MapMemory(dev vk.Device, mem vk.DeviceMemory) (unsafe.Pointer, error)
	UnmapMemory(dev vk.Device, mem vk.DeviceMemory)

	CreateBuffer(dev vk.Device, size uint64, usage vk.BufferUsageFlags) (vk.Buffer, vk.MemoryRequirements, error)
	BindBufferMemory(dev vk.Device, buf vk.Buffer, mem vk.DeviceMemory, offset uint64) error
	DestroyBuffer(dev vk.Device, buf vk.Buffer)
	CreateImage(dev vk.Device, desc ImageDesc) (vk.Image, vk.MemoryRequirements, error)
	BindImageMemory(dev vk.Device, img vk.Image, mem vk.DeviceMemory, offset uint64) error
	DestroyImage(dev vk.Device, img vk.Image)
	CreateImageView(dev vk.Device, desc ImageViewDesc) (vk.ImageView, error)
	DestroyImageView(dev vk.Device, view vk.ImageView)
	CreateSampler(dev vk.Device, desc SamplerDesc) (vk.Sampler, error)
	DestroySampler(dev vk.Device, sampler vk.Sampler)

	CreateShaderModule(dev vk.Device, code []uint32) (vk.ShaderModule, error)
	DestroyShaderModule(dev vk.Device, module vk.ShaderModule)
	CreateDescriptorSetLayout(dev vk.Device, bindings []LayoutBinding) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(dev vk.Device, layout vk.DescriptorSetLayout)
	CreateDescriptorUpdateTemplate(dev vk.Device, layout vk.DescriptorSetLayout, entries []TemplateEntry) (vk.DescriptorUpdateTemplate, error)
	DestroyDescriptorUpdateTemplate(dev vk.Device, tmpl vk.DescriptorUpdateTemplate)
	CreatePipelineLayout(dev vk.Device, sets []vk.DescriptorSetLayout) (vk.PipelineLayout, error)
	DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout)
	CreateComputePipeline(dev vk.Device, desc ComputePipelineDesc) (vk.Pipeline, error)
	CreateRenderPipeline(dev vk.Device, desc RenderPipelineDesc) (vk.Pipeline, error)
	DestroyPipeline(dev vk.Device, pipeline vk.Pipeline)

	CreateCommandPool(dev vk.Device, family uint32) (vk.CommandPool, error)
	DestroyCommandPool(dev vk.Device, pool vk.CommandPool)
	AllocateCommandBuffers(dev vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, cbs []vk.CommandBuffer)
	CreateDescriptorPool(dev vk.Device, desc DescriptorPoolDesc) (vk.DescriptorPool, error)
	ResetDescriptorPool(dev vk.Device, pool vk.DescriptorPool) error
	DestroyDescriptorPool(dev vk.Device, pool vk.DescriptorPool)
	AllocateDescriptorSet(dev vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error)
	// UpdateDescriptorSetWithTemplate applies data laid out at the template
	// entry offsets in one call.
	UpdateDescriptorSetWithTemplate(dev vk.Device, set vk.DescriptorSet, tmpl vk.DescriptorUpdateTemplate, data []byte)
}

// Recorder writes commands into a command buffer.
type Recorder interface {
	// BeginCommandBuffer implicitly resets the buffer.
	BeginCommandBuffer(cb vk.CommandBuffer) error
	EndCommandBuffer(cb vk.CommandBuffer) error

	// CmdPipelineBarrier inserts a full memory barrier plus the given
	// image layout transitions.
	CmdPipelineBarrier(cb vk.CommandBuffer, images []ImageBarrier)
	CmdFillBuffer(cb vk.CommandBuffer, dst vk.Buffer, offset, size uint64, value uint32)
	CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy)
	CmdCopyBufferToImage(cb vk.CommandBuffer, src vk.Buffer, dst vk.Image, regions []vk.BufferImageCopy)
	CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, dst vk.Buffer, regions []vk.BufferImageCopy)

	CmdBindPipeline(cb vk.CommandBuffer, point vk.PipelineBindPoint, pipeline vk.Pipeline)
	CmdBindDescriptorSet(cb vk.CommandBuffer, point vk.PipelineBindPoint, layout vk.PipelineLayout, index uint32, set vk.DescriptorSet)
	CmdDispatch(cb vk.CommandBuffer, x, y, z uint32)

	// CmdBeginRendering opens a render pass over the attachments. Any
	// transient native objects it needs live until cb is reset or freed.
	CmdBeginRendering(dev vk.Device, cb vk.CommandBuffer, desc RenderingDesc) error
	CmdEndRendering(cb vk.CommandBuffer)
	CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport)
	CmdSetScissor(cb vk.CommandBuffer, rect vk.Rect2D)
	CmdBindIndexBuffer(cb vk.CommandBuffer, buf vk.Buffer, offset uint64, indexType vk.IndexType)
	CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}
