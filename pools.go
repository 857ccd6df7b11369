package bladevk

import (
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// roughSetCount sizes every descriptor pool. The numbers are a fixed
// guess, not derived from the layouts in use.
const roughSetCount = 100

var descriptorPoolSizes = []vk.DescriptorPoolSize{
	{Type: driver.DescriptorTypeInlineUniformBlock, DescriptorCount: roughSetCount * PlainDataSize},
	{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: roughSetCount},
	{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 2 * roughSetCount},
	{Type: vk.DescriptorTypeSampler, DescriptorCount: roughSetCount},
	{Type: vk.DescriptorTypeStorageImage, DescriptorCount: roughSetCount},
}

func descriptorPoolDesc() driver.DescriptorPoolDesc {
	return driver.DescriptorPoolDesc{
		MaxSets:                    roughSetCount,
		Sizes:                      descriptorPoolSizes,
		InlineUniformBlockBindings: roughSetCount,
	}
}

func (c *Context) newCommandPool() vk.CommandPool {
	pool, err := c.drv.CreateCommandPool(c.device, c.queue.family)
	mustSucceed(err, "create command pool")
	return pool
}

func (c *Context) newDescriptorPool() vk.DescriptorPool {
	pool, err := c.drv.CreateDescriptorPool(c.device, descriptorPoolDesc())
	mustSucceed(err, "create descriptor pool")
	return pool
}
