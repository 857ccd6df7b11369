package bladevk

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// PlainDataSize is the largest block of plain shader data bound inline.
// Adapters whose inline uniform blocks are smaller are rejected.
const PlainDataSize = 256

// inspectAdapter applies the mandatory capability gates. A rejected adapter
// is logged with the values that disqualified it.
func inspectAdapter(caps *driver.AdapterCapabilities) bool {
	log := Logger().With("adapter", caps.Name)
	log.Info("Adapter " + caps.Name)

	if caps.MaxInlineUniformBlockSize < PlainDataSize ||
		caps.MaxDescriptorSetInlineUniformBlocks == 0 ||
		!caps.InlineUniformBlock {
		log.Warn("rejected for inline uniform blocks",
			"max_inline_uniform_block_size", caps.MaxInlineUniformBlockSize,
			"max_descriptor_set_inline_uniform_blocks", caps.MaxDescriptorSetInlineUniformBlocks,
			"inline_uniform_block", caps.InlineUniformBlock,
		)
		return false
	}

	if !caps.TimelineSemaphore {
		log.Warn("rejected for timeline semaphore", "timeline_semaphore", caps.TimelineSemaphore)
		return false
	}
	return true
}

func adapterType(t vk.PhysicalDeviceType) gpucontext.AdapterType {
	switch t {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return gpucontext.AdapterTypeDiscrete
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return gpucontext.AdapterTypeIntegrated
	case vk.PhysicalDeviceTypeCpu:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
