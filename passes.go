package bladevk

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// TransferCommandEncoder records copies and fills.
type TransferCommandEncoder struct {
	enc *CommandEncoder
	cb  commandBuffer
}

// Transfer opens a transfer pass. Close it with End.
func (e *CommandEncoder) Transfer() *TransferCommandEncoder {
	return &TransferCommandEncoder{enc: e, cb: e.open(passTransfer)}
}

func (t *TransferCommandEncoder) End() {
	t.enc.close(passTransfer)
}

// FillBuffer sets size bytes at dst to value.
func (t *TransferCommandEncoder) FillBuffer(dst BufferPiece, size uint64, value uint8) {
	word := uint32(value) * 0x01010101
	t.enc.ctx.drv.CmdFillBuffer(t.cb.raw, dst.Buffer.raw, dst.Offset, size, word)
}

func (t *TransferCommandEncoder) CopyBufferToBuffer(src, dst BufferPiece, size uint64) {
	t.enc.ctx.drv.CmdCopyBuffer(t.cb.raw, src.Buffer.raw, dst.Buffer.raw, []vk.BufferCopy{{
		SrcOffset: vk.DeviceSize(src.Offset),
		DstOffset: vk.DeviceSize(dst.Offset),
		Size:      vk.DeviceSize(size),
	}})
}

func (t *TransferCommandEncoder) CopyBufferToTexture(src BufferPiece, bytesPerRow uint32, dst TexturePiece, size Extent) {
	t.enc.ctx.drv.CmdCopyBufferToImage(t.cb.raw, src.Buffer.raw, dst.Texture.raw,
		[]vk.BufferImageCopy{bufferImageCopy(src, bytesPerRow, dst, size)})
}

func (t *TransferCommandEncoder) CopyTextureToBuffer(src TexturePiece, dst BufferPiece, bytesPerRow uint32, size Extent) {
	t.enc.ctx.drv.CmdCopyImageToBuffer(t.cb.raw, src.Texture.raw, dst.Buffer.raw,
		[]vk.BufferImageCopy{bufferImageCopy(dst, bytesPerRow, src, size)})
}

func bufferImageCopy(buf BufferPiece, bytesPerRow uint32, tex TexturePiece, size Extent) vk.BufferImageCopy {
	info := DescribeFormat(tex.Texture.format)
	rowTexels := bytesPerRow / uint32(info.Block.Bytes) * uint32(info.Block.Width)
	return vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(buf.Offset),
		BufferRowLength:   rowTexels,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     copyAspect(info.Aspects),
			MipLevel:       tex.MipLevel,
			BaseArrayLayer: tex.ArrayLayer,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(tex.Origin[0]), Y: int32(tex.Origin[1]), Z: int32(tex.Origin[2])},
		ImageExtent: vk.Extent3D{Width: size.Width, Height: size.Height, Depth: max(size.DepthOrArrayLayers, 1)},
	}
}

// copyAspect picks the single aspect a buffer copy moves. Depth wins over
// stencil for combined formats.
func copyAspect(aspects FormatAspects) vk.ImageAspectFlags {
	switch {
	case aspects&AspectColor != 0:
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	case aspects&AspectDepth != 0:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	default:
		return vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
}

// ComputeCommandEncoder records dispatches.
type ComputeCommandEncoder struct {
	enc *CommandEncoder
	cb  commandBuffer
}

// Compute opens a compute pass. Close it with End.
func (e *CommandEncoder) Compute() *ComputeCommandEncoder {
	return &ComputeCommandEncoder{enc: e, cb: e.open(passCompute)}
}

func (c *ComputeCommandEncoder) End() {
	c.enc.close(passCompute)
}

// With binds pipeline and returns an encoder for its resources.
func (c *ComputeCommandEncoder) With(p *ComputePipeline) PipelineEncoder {
	c.enc.ctx.drv.CmdBindPipeline(c.cb.raw, vk.PipelineBindPointCompute, p.raw)
	return PipelineEncoder{
		enc:    c.enc,
		cb:     c.cb,
		layout: &p.layout,
		point:  vk.PipelineBindPointCompute,
	}
}

// RenderTarget is one attachment of a render pass.
type RenderTarget struct {
	View       TextureView
	Load       gputypes.LoadOp
	Store      gputypes.StoreOp
	ClearColor gputypes.Color
	// ClearDepth and ClearStencil apply to depth-stencil targets.
	ClearDepth   float32
	ClearStencil uint32
}

type RenderTargetSet struct {
	Colors       []RenderTarget
	DepthStencil *RenderTarget
}

// RenderCommandEncoder records draws into one set of attachments.
type RenderCommandEncoder struct {
	enc *CommandEncoder
	cb  commandBuffer
}

// Render opens a render pass over targets with the viewport and scissor
// covering the first attachment. Close it with End.
func (e *CommandEncoder) Render(targets RenderTargetSet) *RenderCommandEncoder {
	first := targets.DepthStencil
	if len(targets.Colors) > 0 {
		first = &targets.Colors[0]
	}
	if first == nil {
		panic(errors.AssertionFailedf("encoder %q: render pass without targets", e.name))
	}
	cb := e.open(passRender)

	desc := driver.RenderingDesc{Width: first.View.width, Height: first.View.height}
	for _, t := range targets.Colors {
		desc.Colors = append(desc.Colors, driver.ColorAttachment{
			View:    t.View.raw,
			Format:  t.View.format,
			LoadOp:  loadOpToVk(t.Load),
			StoreOp: storeOpToVk(t.Store),
			ClearColor: [4]float32{
				float32(t.ClearColor.R), float32(t.ClearColor.G),
				float32(t.ClearColor.B), float32(t.ClearColor.A),
			},
		})
	}
	if ds := targets.DepthStencil; ds != nil {
		desc.Depth = &driver.DepthAttachment{
			View:         ds.View.raw,
			Format:       ds.View.format,
			DepthLoadOp:  loadOpToVk(ds.Load),
			DepthStoreOp: storeOpToVk(ds.Store),
			ClearDepth:   ds.ClearDepth,
			ClearStencil: ds.ClearStencil,
		}
	}
	mustSucceed(e.ctx.drv.CmdBeginRendering(e.ctx.device, cb.raw, desc), "begin rendering")

	r := &RenderCommandEncoder{enc: e, cb: cb}
	r.SetViewport(0, 0, float32(desc.Width), float32(desc.Height), 0, 1)
	r.SetScissor(0, 0, desc.Width, desc.Height)
	return r
}

func (r *RenderCommandEncoder) End() {
	r.enc.ctx.drv.CmdEndRendering(r.cb.raw)
	r.enc.close(passRender)
}

func (r *RenderCommandEncoder) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	r.enc.ctx.drv.CmdSetViewport(r.cb.raw, vk.Viewport{
		X: x, Y: y, Width: width, Height: height, MinDepth: minDepth, MaxDepth: maxDepth,
	})
}

func (r *RenderCommandEncoder) SetScissor(x, y int32, width, height uint32) {
	r.enc.ctx.drv.CmdSetScissor(r.cb.raw, vk.Rect2D{
		Offset: vk.Offset2D{X: x, Y: y},
		Extent: vk.Extent2D{Width: width, Height: height},
	})
}

func (r *RenderCommandEncoder) With(p *RenderPipeline) PipelineEncoder {
	r.enc.ctx.drv.CmdBindPipeline(r.cb.raw, vk.PipelineBindPointGraphics, p.raw)
	return PipelineEncoder{
		enc:    r.enc,
		cb:     r.cb,
		layout: &p.layout,
		point:  vk.PipelineBindPointGraphics,
	}
}

// PipelineEncoder records work for one bound pipeline.
type PipelineEncoder struct {
	enc    *CommandEncoder
	cb     commandBuffer
	layout *PipelineLayout
	point  vk.PipelineBindPoint
}

// Bind allocates a descriptor set for group from the active pool, writes
// all of data with one templated update and binds it.
func (p PipelineEncoder) Bind(group uint32, data ShaderData) {
	if int(group) >= len(p.layout.setLayouts) {
		panic(errors.AssertionFailedf("bind group %d out of %d", group, len(p.layout.setLayouts)))
	}
	dsl := &p.layout.setLayouts[group]
	ctx := p.enc.ctx

	set, err := ctx.drv.AllocateDescriptorSet(ctx.device, p.cb.descriptorPool, dsl.raw)
	mustSucceed(err, "allocate descriptor set")

	if dsl.templateSize > 0 {
		size := int(dsl.templateSize)
		buf := slices.Grow(p.enc.updateData[:0], size)[:size]
		clear(buf)
		p.enc.updateData = buf
		data.Fill(&DescriptorContext{layout: dsl, data: buf})
		ctx.drv.UpdateDescriptorSetWithTemplate(ctx.device, set, dsl.template, buf)
	}
	ctx.drv.CmdBindDescriptorSet(p.cb.raw, p.point, p.layout.raw, group, set)
}

func (p PipelineEncoder) Dispatch(groups [3]uint32) {
	p.enc.ctx.drv.CmdDispatch(p.cb.raw, groups[0], groups[1], groups[2])
}

func (p PipelineEncoder) BindIndexBuffer(piece BufferPiece, format gputypes.IndexFormat) {
	p.enc.ctx.drv.CmdBindIndexBuffer(p.cb.raw, piece.Buffer.raw, piece.Offset, indexFormatToVk(format))
}

func (p PipelineEncoder) Draw(firstVertex, vertexCount, firstInstance, instanceCount uint32) {
	p.enc.ctx.drv.CmdDraw(p.cb.raw, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p PipelineEncoder) DrawIndexed(firstIndex, indexCount uint32, baseVertex int32, firstInstance, instanceCount uint32) {
	p.enc.ctx.drv.CmdDrawIndexed(p.cb.raw, indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}
