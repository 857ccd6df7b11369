package bladevk

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// commandBuffer pairs a command buffer with the descriptor pool its sets
// come from. Pools are never shared between buffers.
type commandBuffer struct {
	raw            vk.CommandBuffer
	descriptorPool vk.DescriptorPool
}

type passKind int

const (
	passNone passKind = iota
	passTransfer
	passCompute
	passRender
)

func (p passKind) String() string {
	return [...]string{"none", "transfer", "compute", "render"}[p]
}

// CommandEncoder records into one of N command buffers at a time. Start
// moves to the next buffer in turn, so with N buffers a frame can record
// while up to N-1 earlier ones execute.
type CommandEncoder struct {
	ctx     *Context
	name    string
	pool    vk.CommandPool
	buffers []commandBuffer
	index   int

	recording bool
	pass      passKind
	// updateData stages descriptor template updates.
	updateData []byte
}

// CreateCommandEncoder allocates desc.BufferCount command buffers, each
// with its own descriptor pool.
func (c *Context) CreateCommandEncoder(desc CommandEncoderDesc) (*CommandEncoder, error) {
	if desc.BufferCount == 0 {
		return nil, errors.Newf("command encoder %q: buffer count must be at least 1", desc.Name)
	}

	pool := c.newCommandPool()
	raws, err := c.drv.AllocateCommandBuffers(c.device, pool, desc.BufferCount)
	mustSucceed(err, "allocate command buffers")

	enc := &CommandEncoder{
		ctx:     c,
		name:    desc.Name,
		pool:    pool,
		buffers: make([]commandBuffer, len(raws)),
		index:   len(raws) - 1,
	}
	for i, raw := range raws {
		c.setObjectName(vk.ObjectTypeCommandBuffer, uintptr(raw), desc.Name)
		enc.buffers[i] = commandBuffer{
			raw:            raw,
			descriptorPool: c.newDescriptorPool(),
		}
	}
	Logger().Debug("command encoder created", "name", desc.Name, "buffer_count", desc.BufferCount)
	return enc, nil
}

// DestroyCommandEncoder releases the encoder. Work submitted from it must
// have completed.
func (c *Context) DestroyCommandEncoder(enc *CommandEncoder) {
	raws := make([]vk.CommandBuffer, len(enc.buffers))
	for i, cb := range enc.buffers {
		raws[i] = cb.raw
	}
	c.drv.FreeCommandBuffers(c.device, enc.pool, raws)
	for _, cb := range enc.buffers {
		c.drv.DestroyDescriptorPool(c.device, cb.descriptorPool)
	}
	c.drv.DestroyCommandPool(c.device, enc.pool)
	enc.buffers = nil
	enc.pool = 0
}

func (e *CommandEncoder) active() commandBuffer {
	return e.buffers[e.index]
}

// ActiveIndex is the buffer the encoder records into.
func (e *CommandEncoder) ActiveIndex() int {
	return e.index
}

// BufferCount is the number of command buffers the encoder cycles through.
func (e *CommandEncoder) BufferCount() int {
	return len(e.buffers)
}

// Start moves to the next command buffer, drops the descriptor sets it
// allocated last time, and begins recording.
func (e *CommandEncoder) Start() {
	if e.pass != passNone {
		panic(errors.AssertionFailedf("encoder %q: start with an open %s pass", e.name, e.pass))
	}
	e.index = (e.index + 1) % len(e.buffers)
	cb := e.active()
	mustSucceed(e.ctx.drv.ResetDescriptorPool(e.ctx.device, cb.descriptorPool), "reset descriptor pool")
	mustSucceed(e.ctx.drv.BeginCommandBuffer(cb.raw), "begin command buffer")
	e.recording = true
}

// finish ends recording and hands back the buffer for submission.
func (e *CommandEncoder) finish() vk.CommandBuffer {
	if !e.recording {
		panic(errors.AssertionFailedf("encoder %q: submit without start", e.name))
	}
	if e.pass != passNone {
		panic(errors.AssertionFailedf("encoder %q: submit with an open %s pass", e.name, e.pass))
	}
	cb := e.active()
	mustSucceed(e.ctx.drv.EndCommandBuffer(cb.raw), "end command buffer")
	e.recording = false
	return cb.raw
}

// open begins a pass. Passes never nest, and each starts behind a full
// memory barrier.
func (e *CommandEncoder) open(kind passKind) commandBuffer {
	if !e.recording {
		panic(errors.AssertionFailedf("encoder %q: %s pass before start", e.name, kind))
	}
	if e.pass != passNone {
		panic(errors.AssertionFailedf("encoder %q: %s pass while %s is open", e.name, kind, e.pass))
	}
	e.pass = kind
	cb := e.active()
	e.ctx.drv.CmdPipelineBarrier(cb.raw, nil)
	return cb
}

func (e *CommandEncoder) close(kind passKind) {
	if e.pass != kind {
		panic(errors.AssertionFailedf("encoder %q: end of %s pass while %s is open", e.name, kind, e.pass))
	}
	e.pass = passNone
}

// InitTexture moves every subresource of a new texture into the layout
// textures are kept in between passes. It must be recorded before the
// texture's first use.
func (e *CommandEncoder) InitTexture(t Texture) {
	if !e.recording || e.pass != passNone {
		panic(errors.AssertionFailedf("encoder %q: init texture outside of recording", e.name))
	}
	info := DescribeFormat(t.format)
	e.ctx.drv.CmdPipelineBarrier(e.active().raw, []driver.ImageBarrier{{
		Image:     t.raw,
		OldLayout: vk.ImageLayoutUndefined,
		NewLayout: vk.ImageLayoutGeneral,
		Range:     SubresourceRange(info.Aspects, TextureSubresources{}),
	}})
}
