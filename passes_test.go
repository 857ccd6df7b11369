package bladevk

import (
	"bytes"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver/simulated"
)

func TestTransferRoundTrip(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	upload := ctx.CreateBuffer(BufferDesc{Name: "upload", Size: 1024, Memory: MemoryUpload})
	defer ctx.DestroyBuffer(upload)
	scratch := ctx.CreateBuffer(BufferDesc{Name: "scratch", Size: 1024, Memory: MemoryDevice})
	defer ctx.DestroyBuffer(scratch)
	readback := ctx.CreateBuffer(BufferDesc{Name: "readback", Size: 1024, Memory: MemoryShared})
	defer ctx.DestroyBuffer(readback)

	if scratch.Bytes() != nil {
		t.Error("device buffer exposes host bytes")
	}
	for i := range upload.Bytes() {
		upload.Bytes()[i] = byte(i)
	}

	enc := newTestEncoder(t, ctx, "transfer", 1)
	defer ctx.DestroyCommandEncoder(enc)
	enc.Start()
	tr := enc.Transfer()
	tr.CopyBufferToBuffer(upload.At(0), scratch.At(0), 512)
	tr.FillBuffer(scratch.At(512), 512, 0x7f)
	tr.End()
	tr = enc.Transfer()
	tr.CopyBufferToBuffer(scratch.At(0), readback.At(0), 1024)
	tr.End()
	sp := ctx.Submit(enc)

	if readback.Bytes()[1] != 0 {
		t.Fatal("copy ran before the submission was processed")
	}
	drv.Flush()
	if !ctx.WaitFor(sp, 0) {
		t.Fatal("processed submission is not complete")
	}

	got := readback.Bytes()
	if !bytes.Equal(got[:512], upload.Bytes()[:512]) {
		t.Error("copied half does not match the upload")
	}
	if !bytes.Equal(got[512:], bytes.Repeat([]byte{0x7f}, 512)) {
		t.Error("filled half does not hold the fill value")
	}
}

func TestRenderPass(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	shader := ctx.CreateShaderFromSPIRV("draw", []uint32{spirvMagic, 0x00010300, 0, 1, 0},
		ShaderEntry{Name: "vs_main"}, ShaderEntry{Name: "fs_main"})
	defer ctx.DestroyShader(shader)

	color := ctx.CreateTexture(TextureDesc{
		Name:      "color",
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Size:      Extent{Width: 64, Height: 32, DepthOrArrayLayers: 1},
		Dimension: gputypes.TextureDimension2D,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	defer ctx.DestroyTexture(color)
	view := ctx.CreateTextureView(TextureViewDesc{Name: "color view", Texture: color, Dimension: gputypes.TextureViewDimension2D})
	defer ctx.DestroyTextureView(view)

	pipeline := ctx.CreateRenderPipeline(RenderPipelineDesc{
		Name:         "draw",
		DataLayouts:  []*ShaderDataLayout{{Bindings: []ShaderBinding{Plain("tint", 16)}}},
		Vertex:       shader.At("vs_main"),
		Fragment:     shader.At("fs_main"),
		Primitive:    gputypes.PrimitiveState{Topology: gputypes.PrimitiveTopologyTriangleList},
		ColorTargets: []gputypes.ColorTargetState{{Format: gputypes.TextureFormatRGBA8Unorm, WriteMask: gputypes.ColorWriteMaskAll}},
	})
	defer ctx.DestroyRenderPipeline(pipeline)

	indices := ctx.CreateBuffer(BufferDesc{Name: "indices", Size: 12, Memory: MemoryUpload})
	defer ctx.DestroyBuffer(indices)
	readback := ctx.CreateBuffer(BufferDesc{Name: "pixels", Size: 64 * 32 * 4, Memory: MemoryShared})
	defer ctx.DestroyBuffer(readback)

	enc := newTestEncoder(t, ctx, "render", 1)
	defer ctx.DestroyCommandEncoder(enc)
	enc.Start()
	enc.InitTexture(color)

	rp := enc.Render(RenderTargetSet{Colors: []RenderTarget{{
		View:       view,
		Load:       gputypes.LoadOpClear,
		Store:      gputypes.StoreOpStore,
		ClearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
	}}})
	pe := rp.With(pipeline)
	pe.Bind(0, ShaderValues{"tint": [4]float32{1, 0, 0, 1}})
	pe.Draw(0, 3, 0, 1)
	pe.BindIndexBuffer(indices.At(0), gputypes.IndexFormatUint16)
	pe.DrawIndexed(0, 6, 0, 0, 1)
	rp.End()

	tr := enc.Transfer()
	tr.CopyTextureToBuffer(color.At(0, 0), readback.At(0), 64*4, Extent{Width: 64, Height: 32, DepthOrArrayLayers: 1})
	tr.End()
	ctx.Submit(enc)
	drv.Flush()

	want := []string{
		"barrier",
		"barrier", "begin rendering", "set viewport", "set scissor",
		"bind pipeline", "bind descriptor set", "draw", "bind index buffer", "draw indexed",
		"end rendering",
		"barrier", "copy image to buffer",
	}
	if got := drv.Commands(enc.buffers[0].raw); !slices.Equal(got, want) {
		t.Errorf("commands\n got %v\nwant %v", got, want)
	}
	if view.width != 64 || view.height != 32 {
		t.Errorf("view size %dx%d", view.width, view.height)
	}
}

func TestRenderDepthOnly(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	depth := ctx.CreateTexture(TextureDesc{
		Name:      "depth",
		Format:    gputypes.TextureFormatDepth32Float,
		Size:      Extent{Width: 16, Height: 16, DepthOrArrayLayers: 1},
		Dimension: gputypes.TextureDimension2D,
		Usage:     gputypes.TextureUsageRenderAttachment,
	})
	defer ctx.DestroyTexture(depth)
	view := ctx.CreateTextureView(TextureViewDesc{Texture: depth, Dimension: gputypes.TextureViewDimension2D})
	defer ctx.DestroyTextureView(view)

	enc := newTestEncoder(t, ctx, "depth", 1)
	defer ctx.DestroyCommandEncoder(enc)
	enc.Start()
	enc.InitTexture(depth)
	rp := enc.Render(RenderTargetSet{DepthStencil: &RenderTarget{
		View:       view,
		Load:       gputypes.LoadOpClear,
		Store:      gputypes.StoreOpDiscard,
		ClearDepth: 1,
	}})
	rp.End()
	ctx.Submit(enc)
	drv.Flush()

	if n := drv.Live(simulated.KindImageView); n != 1 {
		t.Errorf("%d views live, want 1", n)
	}
}

func TestCubeCompatibleTexture(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	cube := ctx.CreateTexture(TextureDesc{
		Name:            "sky",
		Format:          gputypes.TextureFormatRGBA16Float,
		Size:            Extent{Width: 32, Height: 32},
		ArrayLayerCount: 6,
		Dimension:       gputypes.TextureDimension2D,
		Usage:           gputypes.TextureUsageTextureBinding,
	})
	defer ctx.DestroyTexture(cube)
	view := ctx.CreateTextureView(TextureViewDesc{
		Texture:      cube,
		Dimension:    gputypes.TextureViewDimensionCube,
		Subresources: TextureSubresources{ArrayLayerCount: 6},
	})
	defer ctx.DestroyTextureView(view)

	if name := drv.ObjectName(uint64(cube.raw)); name != "sky" {
		t.Errorf("texture named %q", name)
	}
	if cube.Size().Width != 32 || cube.Format() != gputypes.TextureFormatRGBA16Float {
		t.Errorf("texture %+v %v", cube.Size(), cube.Format())
	}
}

func TestCopyBufferToDepthStencilTexture(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	depth := ctx.CreateTexture(TextureDesc{
		Name:      "shadow",
		Format:    gputypes.TextureFormatDepth24PlusStencil8,
		Size:      Extent{Width: 8, Height: 8, DepthOrArrayLayers: 1},
		Dimension: gputypes.TextureDimension2D,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopyDst,
	})
	defer ctx.DestroyTexture(depth)
	staging := ctx.CreateBuffer(BufferDesc{Name: "staging", Size: 8 * 8 * 4, Memory: MemoryUpload})
	defer ctx.DestroyBuffer(staging)

	enc := newTestEncoder(t, ctx, "upload", 1)
	defer ctx.DestroyCommandEncoder(enc)
	enc.Start()
	enc.InitTexture(depth)
	tr := enc.Transfer()
	tr.CopyBufferToTexture(staging.At(0), 8*4, depth.At(0, 0), Extent{Width: 8, Height: 8, DepthOrArrayLayers: 1})
	tr.End()
	ctx.Submit(enc)
	drv.Flush()

	want := []string{"barrier", "barrier", "copy buffer to image"}
	if got := drv.Commands(enc.buffers[0].raw); !slices.Equal(got, want) {
		t.Errorf("commands\n got %v\nwant %v", got, want)
	}
}

func TestBufferImageCopyAspect(t *testing.T) {
	tests := []struct {
		format gputypes.TextureFormat
		want   vk.ImageAspectFlagBits
	}{
		{gputypes.TextureFormatRGBA8Unorm, vk.ImageAspectColorBit},
		{gputypes.TextureFormatDepth32Float, vk.ImageAspectDepthBit},
		{gputypes.TextureFormatDepth24PlusStencil8, vk.ImageAspectDepthBit},
		{gputypes.TextureFormatDepth32FloatStencil8, vk.ImageAspectDepthBit},
	}
	for _, tt := range tests {
		tex := Texture{format: tt.format}
		region := bufferImageCopy(BufferPiece{Offset: 16}, 64, tex.At(1, 2), Extent{Width: 4, Height: 4})
		if region.ImageSubresource.AspectMask != vk.ImageAspectFlags(tt.want) {
			t.Errorf("%v: aspect mask %#x, want %#x", tt.format, region.ImageSubresource.AspectMask, tt.want)
		}
		if region.ImageSubresource.MipLevel != 1 || region.ImageSubresource.BaseArrayLayer != 2 {
			t.Errorf("%v: subresource %+v", tt.format, region.ImageSubresource)
		}
		if region.BufferOffset != 16 || region.ImageExtent.Depth != 1 {
			t.Errorf("%v: offset %d depth %d", tt.format, region.BufferOffset, region.ImageExtent.Depth)
		}
	}
}
