package simulated

import (
	"encoding/binary"
	"slices"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

type command struct {
	name string
	// exec runs with the driver lock held when the submission is processed.
	exec func()
}

type commandBuffer struct {
	pool      vk.CommandPool
	recording bool
	inPass    bool
	submitted int
	commands  []command
	bound     map[uint32]vk.DescriptorSet
	// written holds buffers written since the last barrier.
	written map[vk.Buffer]bool
}

// Commands returns the names of the commands last recorded into cb.
func (d *Driver) Commands(cb vk.CommandBuffer) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cmdBufs[cb]
	if !ok {
		return nil
	}
	names := make([]string, len(c.commands))
	for i, cmd := range c.commands {
		names[i] = cmd.name
	}
	return names
}

// BoundSet returns the descriptor set last bound at index in cb.
func (d *Driver) BoundSet(cb vk.CommandBuffer, index uint32) vk.DescriptorSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.cmdBufs[cb]; ok {
		return c.bound[index]
	}
	return 0
}

// Submissions returns how many times cb was submitted.
func (d *Driver) Submissions(cb vk.CommandBuffer) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.cmdBufs[cb]; ok {
		return c.submitted
	}
	return 0
}

func (d *Driver) record(cb vk.CommandBuffer, name string, exec func()) *commandBuffer {
	c, ok := d.cmdBufs[cb]
	if !ok {
		d.violate("%s on unknown command buffer %#x", name, cb)
		return nil
	}
	if !c.recording {
		d.violate("%s on command buffer %#x outside recording", name, cb)
	}
	c.commands = append(c.commands, command{name: name, exec: exec})
	return c
}

// bufferBytes resolves the host bytes behind buf. It must be called with the
// lock held.
func (d *Driver) bufferBytes(buf vk.Buffer) []byte {
	b, ok := d.buffers[buf]
	if !ok {
		d.violate("access to destroyed buffer %#x", buf)
		return nil
	}
	data, ok := d.memory[b.memory]
	if !ok {
		d.violate("buffer %#x has no bound memory", buf)
		return nil
	}
	end := min(b.offset+b.size, uint64(len(data)))
	return data[b.offset:end]
}

func (d *Driver) BeginCommandBuffer(cb vk.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cmdBufs[cb]
	if !ok {
		return driver.Check("vkBeginCommandBuffer", vk.ErrorInitializationFailed)
	}
	c.recording = true
	c.inPass = false
	c.commands = c.commands[:0]
	c.bound = make(map[uint32]vk.DescriptorSet)
	c.written = make(map[vk.Buffer]bool)
	return nil
}

func (d *Driver) EndCommandBuffer(cb vk.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cmdBufs[cb]
	if !ok {
		return driver.Check("vkEndCommandBuffer", vk.ErrorInitializationFailed)
	}
	if c.inPass {
		d.violate("command buffer %#x ended inside a render pass", cb)
	}
	c.recording = false
	return nil
}

func (d *Driver) CmdPipelineBarrier(cb vk.CommandBuffer, images []driver.ImageBarrier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.record(cb, "barrier", nil); c != nil {
		clear(c.written)
	}
}

// read flags a transfer read of buf that is not behind a barrier after the
// last write to it.
func (d *Driver) read(c *commandBuffer, buf vk.Buffer) {
	if c != nil && c.written[buf] {
		d.violate("read of buffer %#x written without a barrier", buf)
	}
}

func (d *Driver) wrote(c *commandBuffer, buf vk.Buffer) {
	if c == nil {
		return
	}
	if c.written == nil {
		c.written = make(map[vk.Buffer]bool)
	}
	c.written[buf] = true
}

func (d *Driver) CmdFillBuffer(cb vk.CommandBuffer, dst vk.Buffer, offset, size uint64, value uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.record(cb, "fill", func() {
		data := d.bufferBytes(dst)
		if data == nil {
			return
		}
		if size == uint64(vk.WholeSize) {
			size = uint64(len(data)) - offset
		}
		if offset+size > uint64(len(data)) {
			d.violate("fill of %#x past the end", dst)
			return
		}
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], value)
		for i := offset; i+4 <= offset+size; i += 4 {
			copy(data[i:], word[:])
		}
	})
	d.wrote(c, dst)
}

func (d *Driver) CmdCopyBuffer(cb vk.CommandBuffer, src, dst vk.Buffer, regions []vk.BufferCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	regions = slices.Clone(regions)
	c := d.record(cb, "copy buffer", func() {
		from, to := d.bufferBytes(src), d.bufferBytes(dst)
		if from == nil || to == nil {
			return
		}
		for _, r := range regions {
			s, t, n := uint64(r.SrcOffset), uint64(r.DstOffset), uint64(r.Size)
			if s+n > uint64(len(from)) || t+n > uint64(len(to)) {
				d.violate("copy from %#x to %#x out of range", src, dst)
				continue
			}
			copy(to[t:t+n], from[s:s+n])
		}
	})
	d.read(c, src)
	d.wrote(c, dst)
}

func (d *Driver) CmdCopyBufferToImage(cb vk.CommandBuffer, src vk.Buffer, dst vk.Image, regions []vk.BufferImageCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[dst]; !ok {
		d.violate("copy into unknown image %#x", dst)
	}
	d.checkCopyAspects(regions)
	d.read(d.record(cb, "copy buffer to image", nil), src)
}

func (d *Driver) CmdCopyImageToBuffer(cb vk.CommandBuffer, src vk.Image, dst vk.Buffer, regions []vk.BufferImageCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[src]; !ok {
		d.violate("copy from unknown image %#x", src)
	}
	d.checkCopyAspects(regions)
	d.wrote(d.record(cb, "copy image to buffer", nil), dst)
}

// checkCopyAspects flags regions that name more than one image aspect.
func (d *Driver) checkCopyAspects(regions []vk.BufferImageCopy) {
	for _, r := range regions {
		if m := r.ImageSubresource.AspectMask; m == 0 || m&(m-1) != 0 {
			d.violate("buffer image copy with aspect mask %#x", m)
		}
	}
}

func (d *Driver) CmdBindPipeline(cb vk.CommandBuffer, point vk.PipelineBindPoint, pipeline vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.check(KindPipeline, uintptr(pipeline)) {
		d.violate("binding unknown pipeline %#x", pipeline)
	}
	d.record(cb, "bind pipeline", nil)
}

func (d *Driver) CmdBindDescriptorSet(cb vk.CommandBuffer, point vk.PipelineBindPoint, layout vk.PipelineLayout, index uint32, set vk.DescriptorSet) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sets[set]; !ok {
		d.violate("binding unknown descriptor set %#x", set)
	}
	if c := d.record(cb, "bind descriptor set", nil); c != nil {
		c.bound[index] = set
	}
}

func (d *Driver) CmdDispatch(cb vk.CommandBuffer, x, y, z uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "dispatch", nil)
}

func (d *Driver) CmdBeginRendering(dev vk.Device, cb vk.CommandBuffer, desc driver.RenderingDesc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(desc.Colors) == 0 && desc.Depth == nil {
		return driver.Check("vkCreateRenderPass", vk.ErrorInitializationFailed)
	}
	c := d.record(cb, "begin rendering", nil)
	if c == nil {
		return driver.Check("vkCmdBeginRenderPass", vk.ErrorInitializationFailed)
	}
	if c.inPass {
		d.violate("nested render pass in %#x", cb)
	}
	c.inPass = true
	return nil
}

func (d *Driver) CmdEndRendering(cb vk.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.record(cb, "end rendering", nil); c != nil {
		if !c.inPass {
			d.violate("render pass ended twice in %#x", cb)
		}
		c.inPass = false
	}
}

func (d *Driver) CmdSetViewport(cb vk.CommandBuffer, viewport vk.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "set viewport", nil)
}

func (d *Driver) CmdSetScissor(cb vk.CommandBuffer, rect vk.Rect2D) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(cb, "set scissor", nil)
}

func (d *Driver) CmdBindIndexBuffer(cb vk.CommandBuffer, buf vk.Buffer, offset uint64, indexType vk.IndexType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buf]; !ok {
		d.violate("binding unknown index buffer %#x", buf)
	}
	d.record(cb, "bind index buffer", nil)
}

func (d *Driver) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.record(cb, "draw", nil); c != nil && !c.inPass {
		d.violate("draw outside a render pass in %#x", cb)
	}
}

func (d *Driver) CmdDrawIndexed(cb vk.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.record(cb, "draw indexed", nil); c != nil && !c.inPass {
		d.violate("draw outside a render pass in %#x", cb)
	}
}
