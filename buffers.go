package bladevk

import (
	"unsafe"

	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

// BufferDesc describes a linear allocation. Memory decides whether the
// host can see it.
type BufferDesc struct {
	Name   string
	Size   uint64
	Memory MemoryLocation
}

// Buffer is a copyable handle. Its memory stays owned by the manager until
// DestroyBuffer.
type Buffer struct {
	raw    vk.Buffer
	memory MemoryHandle
	mapped unsafe.Pointer
	size   uint64
}

// BufferPiece addresses a byte offset inside a buffer.
type BufferPiece struct {
	Buffer Buffer
	Offset uint64
}

// Data points at the first byte of host-visible buffers and is nil for
// device memory.
func (b Buffer) Data() unsafe.Pointer {
	return b.mapped
}

// Bytes views host-visible memory as a slice. It is nil for device memory.
func (b Buffer) Bytes() []byte {
	if b.mapped == nil {
		return nil
	}
	return unsafe.Slice((*byte)(b.mapped), b.size)
}

func (b Buffer) Size() uint64 { return b.size }

func (b Buffer) At(offset uint64) BufferPiece {
	return BufferPiece{Buffer: b, Offset: offset}
}

func (c *Context) CreateBuffer(desc BufferDesc) Buffer {
	raw, req, err := c.drv.CreateBuffer(c.device, desc.Size, bufferUsageAll)
	mustSucceed(err, "create buffer")

	handle, err := c.memory.Allocate(MemoryRequest{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
		Location:  desc.Memory,
	})
	mustSucceed(err, "allocate buffer memory")

	block := c.memory.Block(handle)
	mustSucceed(c.drv.BindBufferMemory(c.device, raw, block.Memory, block.Offset), "bind buffer memory")
	c.setObjectName(vk.ObjectTypeBuffer, uintptr(raw), desc.Name)

	return Buffer{
		raw:    raw,
		memory: handle,
		mapped: block.Mapped,
		size:   desc.Size,
	}
}

func (c *Context) DestroyBuffer(b Buffer) {
	c.drv.DestroyBuffer(c.device, b.raw)
	c.memory.Free(b.memory)
}
