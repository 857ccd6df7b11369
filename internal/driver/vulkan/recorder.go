package vulkan

import (
	"runtime"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// Command pools and buffers

func (d *Driver) CreateCommandPool(dev vk.Device, family uint32) (vk.CommandPool, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}
	var pool vk.CommandPool
	if err := driver.Check("vkCreateCommandPool", d.cmds.CreateCommandPool(dev, &info, nil, &pool)); err != nil {
		return 0, err
	}
	return pool, nil
}

func (d *Driver) DestroyCommandPool(dev vk.Device, pool vk.CommandPool) {
	d.cmds.DestroyCommandPool(dev, pool, nil)
}

func (d *Driver) AllocateCommandBuffers(dev vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	if count == 0 {
		return nil, nil
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}
	cbs := make([]vk.CommandBuffer, count)
	if err := driver.Check("vkAllocateCommandBuffers", d.cmds.AllocateCommandBuffers(dev, &info, &cbs[0])); err != nil {
		return nil, err
	}
	return cbs, nil
}

func (d *Driver) FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, cbs []vk.CommandBuffer) {
	if len(cbs) == 0 {
		return
	}
	d.cmds.FreeCommandBuffers(dev, pool, uint32(len(cbs)), &cbs[0])
	for _, cb := range cbs {
		d.releasePasses(cb)
	}
}

// Recording

func (d *Driver) BeginCommandBuffer(cb vk.CommandBuffer) error {
	d.releasePasses(cb)
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	return driver.Check("vkBeginCommandBuffer", d.cmds.BeginCommandBuffer(cb, &info))
}

func (d *Driver) EndCommandBuffer(cb vk.CommandBuffer) error {
	return driver.Check("vkEndCommandBuffer", d.cmds.EndCommandBuffer(cb))
}

func (d *Driver) CmdPipelineBarrier(cb vk.CommandBuffer, images []driver.ImageBarrier) {
	memory := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(vk.AccessMemoryWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
	}
	barriers := make([]vk.ImageMemoryBarrier, len(images))
	for i, b := range images {
		barriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessMemoryWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
			OldLayout:           b.OldLayout,
			NewLayout:           b.NewLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.Image,
			SubresourceRange:    b.Range,
		}
	}
	var pImages *vk.ImageMemoryBarrier
	if len(barriers) > 0 {
		pImages = &barriers[0]
	}
	all := vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	d.cmds.CmdPipelineBarrier(cb, all, all, 0, 1, &memory, 0, nil, uint32(len(barriers)), pImages)
	runtime.KeepAlive(barriers)
}

func (d *Driver) CmdFillBuffer(cb vk.CommandBuffer, dst vk.Buffer, offset, size uint64, value uint32) {
	d.cmds.CmdFillBuffer(cb, dst, vk.DeviceSize(offset), vk.DeviceSize(size), value)
}

func (d *Driver) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	if len(regions) == 0 {
		return
	}
	d.cmds.CmdCopyBuffer(cb, src, dst, uint32(len(regions)), &regions[0])
}

func (d *Driver) CmdCopyBufferToImage(cb vk.CommandBuffer, src vk.Buffer, dst vk.Image, regions []vk.BufferImageCopy) {
	if len(regions) == 0 {
		return
	}
	d.cmds.CmdCopyBufferToImage(cb, src, dst, vk.ImageLayoutGeneral, uint32(len(regions)), &regions[0])
}

func (d *Driver) CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, dst vk.Buffer, regions []vk.BufferImageCopy) {
	if len(regions) == 0 {
		return
	}
	d.cmds.CmdCopyImageToBuffer(cb, src, vk.ImageLayoutGeneral, dst, uint32(len(regions)), &regions[0])
}

func (d *Driver) CmdBindPipeline(cb vk.CommandBuffer, point vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.cmds.CmdBindPipeline(cb, point, pipeline)
}

func (d *Driver) CmdBindDescriptorSet(cb vk.CommandBuffer, point vk.PipelineBindPoint, layout vk.PipelineLayout, index uint32, set vk.DescriptorSet) {
	d.cmds.CmdBindDescriptorSets(cb, point, layout, index, 1, &set, 0, nil)
}

func (d *Driver) CmdDispatch(cb vk.CommandBuffer, x, y, z uint32) {
	d.cmds.CmdDispatch(cb, x, y, z)
}

func (d *Driver) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport) {
	d.cmds.CmdSetViewport(cb, 0, 1, &viewport)
}

func (d *Driver) CmdSetScissor(cb vk.CommandBuffer, rect vk.Rect2D) {
	d.cmds.CmdSetScissor(cb, 0, 1, &rect)
}

func (d *Driver) CmdBindIndexBuffer(cb vk.CommandBuffer, buf vk.Buffer, offset uint64, indexType vk.IndexType) {
	d.cmds.CmdBindIndexBuffer(cb, buf, vk.DeviceSize(offset), indexType)
}

func (d *Driver) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.cmds.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *Driver) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.cmds.CmdDrawIndexed(cb, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}
