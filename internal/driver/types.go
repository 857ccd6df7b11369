package driver

import (
	"fmt"

	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

// Values the binding does not generate.
const (
	DescriptorTypeInlineUniformBlock vk.DescriptorType = 1000138000

	StructureTypePhysicalDeviceInlineUniformBlockFeatures   vk.StructureType = 1000138000
	StructureTypePhysicalDeviceInlineUniformBlockProperties vk.StructureType = 1000138001
	StructureTypeWriteDescriptorSetInlineUniformBlock       vk.StructureType = 1000138002
	StructureTypeDescriptorPoolInlineUniformBlockCreateInfo vk.StructureType = 1000138003
	StructureTypeDescriptorUpdateTemplateCreateInfo         vk.StructureType = 1000085000
	StructureTypePhysicalDeviceTimelineSemaphoreProperties  vk.StructureType = 1000207001

	ObjectTypeDescriptorUpdateTemplate vk.ObjectType = 1000085000

	ErrorOutOfPoolMemory vk.Result = -1000069000
)

// Extension and layer names.
const (
	ExtDebugUtils                   = "VK_EXT_debug_utils"
	ExtGetPhysicalDeviceProperties2 = "VK_KHR_get_physical_device_properties2"
	ExtPortabilityEnumeration       = "VK_KHR_portability_enumeration"
	ExtInlineUniformBlock           = "VK_EXT_inline_uniform_block"
	ExtTimelineSemaphore            = "VK_KHR_timeline_semaphore"
	ExtDescriptorUpdateTemplate     = "VK_KHR_descriptor_update_template"
	ExtPortabilitySubset            = "VK_KHR_portability_subset"
	LayerKhronosValidation          = "VK_LAYER_KHRONOS_validation"
)

// MakeVersion packs a version the way the loader reports it.
func MakeVersion(major, minor, patch uint32) uint32 {
	return major<<22 | minor<<12 | patch
}

// VersionMajor and VersionMinor unpack a loader version.
func VersionMajor(v uint32) uint32 { return v >> 22 }
func VersionMinor(v uint32) uint32 { return (v >> 12) & 0x3FF }

// ResultError carries a failed native result code.
type ResultError struct {
	Op     string
	Result vk.Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, ResultString(e.Result))
}

// Check converts a native result into an error.
func Check(op string, r vk.Result) error {
	if r == vk.Success {
		return nil
	}
	return &ResultError{Op: op, Result: r}
}

// ResultString names the common result codes.
func ResultString(r vk.Result) string {
	switch r {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	}
	return fmt.Sprintf("VkResult(%d)", int32(r))
}

// InstanceDesc describes instance creation.
type InstanceDesc struct {
	ApplicationName string
	EngineName      string
	APIVersion      uint32
	Layers          []string
	Extensions      []string
	// Portability sets the enumerate-portability creation flag.
	Portability bool
}

// Limits is the subset of device limits the allocator and encoders use.
type Limits struct {
	MaxMemoryAllocationCount uint32
	NonCoherentAtomSize      uint64
	BufferImageGranularity   uint64
	MaxBoundDescriptorSets   uint32
	MaxComputeWorkGroupSize  [3]uint32
}

// MemoryProperties lists memory types and heaps of a physical device.
type MemoryProperties struct {
	Types []vk.MemoryType
	Heaps []vk.MemoryHeap
}

// AdapterCapabilities is everything bootstrap inspects about one adapter.
type AdapterCapabilities struct {
	Name       string
	DeviceType vk.PhysicalDeviceType
	VendorID   uint32
	DeviceID   uint32
	APIVersion uint32
	Extensions []string

	MaxInlineUniformBlockSize           uint32
	MaxDescriptorSetInlineUniformBlocks uint32
	InlineUniformBlock                  bool
	TimelineSemaphore                   bool

	Limits Limits
	Memory MemoryProperties
}

// HasExtension reports whether the adapter lists name.
func (c *AdapterCapabilities) HasExtension(name string) bool {
	for _, ext := range c.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// DeviceDesc describes logical device creation. The feature flags chain the
// matching feature structs into creation.
type DeviceDesc struct {
	Extensions         []string
	QueueFamily        uint32
	InlineUniformBlock bool
	TimelineSemaphore  bool
}

// Submission is one command buffer signalling a timeline value.
type Submission struct {
	CommandBuffer vk.CommandBuffer
	Semaphore     vk.Semaphore
	SignalValue   uint64
}

type ImageDesc struct {
	Type        vk.ImageType
	Flags       vk.ImageCreateFlags
	Format      vk.Format
	Extent      vk.Extent3D
	MipLevels   uint32
	ArrayLayers uint32
	Usage       vk.ImageUsageFlags
}

type ImageViewDesc struct {
	Image    vk.Image
	ViewType vk.ImageViewType
	Format   vk.Format
	Range    vk.ImageSubresourceRange
}

type SamplerDesc struct {
	MagFilter     vk.Filter
	MinFilter     vk.Filter
	MipmapMode    vk.SamplerMipmapMode
	AddressModes  [3]vk.SamplerAddressMode
	MinLod        float32
	MaxLod        float32
	CompareEnable bool
	CompareOp     vk.CompareOp
}

// LayoutBinding is one descriptor set layout slot.
type LayoutBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	// Count is the byte size for inline uniform blocks.
	Count  uint32
	Stages vk.ShaderStageFlags
}

// TemplateEntry is one update template entry.
type TemplateEntry struct {
	Binding uint32
	Type    vk.DescriptorType
	Count   uint32
	Offset  uintptr
	Stride  uintptr
}

type DescriptorPoolDesc struct {
	MaxSets                    uint32
	Sizes                      []vk.DescriptorPoolSize
	InlineUniformBlockBindings uint32
}

// ShaderStage names an entry point in a module.
type ShaderStage struct {
	Module vk.ShaderModule
	Entry  string
}

type ComputePipelineDesc struct {
	Layout vk.PipelineLayout
	Stage  ShaderStage
}

// ColorTarget is one color output of a render pipeline. Blend is nil when
// blending is off.
type ColorTarget struct {
	Format    vk.Format
	WriteMask vk.ColorComponentFlags
	Blend     *vk.PipelineColorBlendAttachmentState
}

type RenderPipelineDesc struct {
	Layout       vk.PipelineLayout
	Vertex       ShaderStage
	Fragment     ShaderStage
	Topology     vk.PrimitiveTopology
	CullMode     vk.CullModeFlags
	FrontFace    vk.FrontFace
	Colors       []ColorTarget
	DepthFormat  vk.Format
	DepthWrite   bool
	DepthCompare vk.CompareOp
}

// ImageBarrier transitions a subresource range between layouts.
type ImageBarrier struct {
	Image     vk.Image
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	Range     vk.ImageSubresourceRange
}

type ColorAttachment struct {
	View       vk.ImageView
	Format     vk.Format
	LoadOp     vk.AttachmentLoadOp
	StoreOp    vk.AttachmentStoreOp
	ClearColor [4]float32
}

type DepthAttachment struct {
	View         vk.ImageView
	Format       vk.Format
	DepthLoadOp  vk.AttachmentLoadOp
	DepthStoreOp vk.AttachmentStoreOp
	ClearDepth   float32
	ClearStencil uint32
}

// RenderingDesc is the attachment set of one render pass. Images are kept
// in the general layout outside of passes.
type RenderingDesc struct {
	Width  uint32
	Height uint32
	Colors []ColorAttachment
	Depth  *DepthAttachment
}
