package bladevk

import (
	"encoding/binary"
	"testing"
	"testing/quick"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
	"github.com/andewx/bladevk/internal/driver/simulated"
)

var testLayout = ShaderDataLayout{Bindings: []ShaderBinding{
	Plain("params", 16),
	BufferBinding("input"),
	Plain("scale", 5),
	TextureBinding("image"),
	SamplerBinding("linear"),
}}

func TestTemplateOffsets(t *testing.T) {
	offsets, size := templateOffsets(&testLayout)
	want := []uint32{0, 16, 40, 48, 72}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offset[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}
	if size != 96 {
		t.Errorf("size = %d, want 96", size)
	}

	empty, size := templateOffsets(&ShaderDataLayout{})
	if len(empty) != 0 || size != 0 {
		t.Errorf("empty layout: %v, %d", empty, size)
	}
}

func TestTemplateOffsetsArePrefixSums(t *testing.T) {
	property := func(kinds []uint8, sizes []uint16) bool {
		var layout ShaderDataLayout
		for i, k := range kinds {
			b := ShaderBinding{Kind: BindingKind(k % 4)}
			if b.Kind == BindingPlain && i < len(sizes) {
				b.Size = uint32(sizes[i] % PlainDataSize)
			}
			layout.Bindings = append(layout.Bindings, b)
		}
		offsets, size := templateOffsets(&layout)
		var sum uint32
		for i, b := range layout.Bindings {
			if offsets[i] != sum || offsets[i]%4 != 0 {
				return false
			}
			sum += b.stagedSize()
		}
		return size == sum
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestCompileLayout(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	dsl := ctx.compileLayout(&testLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	defer ctx.destroyLayout(&dsl)

	entries := drv.TemplateEntries(dsl.template)
	if len(entries) != len(testLayout.Bindings) {
		t.Fatalf("%d template entries, want %d", len(entries), len(testLayout.Bindings))
	}
	wantTypes := []vk.DescriptorType{
		driver.DescriptorTypeInlineUniformBlock,
		vk.DescriptorTypeStorageBuffer,
		driver.DescriptorTypeInlineUniformBlock,
		vk.DescriptorTypeSampledImage,
		vk.DescriptorTypeSampler,
	}
	wantCounts := []uint32{16, 1, 8, 1, 1}
	for i, e := range entries {
		if e.Binding != uint32(i) || e.Offset != uintptr(dsl.offsets[i]) {
			t.Errorf("entry %d: binding %d offset %d, want %d at %d", i, e.Binding, e.Offset, i, dsl.offsets[i])
		}
		if e.Type != wantTypes[i] || e.Count != wantCounts[i] {
			t.Errorf("entry %d: type %d count %d, want %d %d", i, e.Type, e.Count, wantTypes[i], wantCounts[i])
		}
	}
	if dsl.templateSize != 96 {
		t.Errorf("template size %d, want 96", dsl.templateSize)
	}
}

func TestCompileEmptyLayout(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	dsl := ctx.compileLayout(&ShaderDataLayout{}, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	if dsl.template != 0 {
		t.Error("empty layout has a template")
	}
	ctx.destroyLayout(&dsl)
	if n := drv.Created(simulated.KindTemplate); n != 0 {
		t.Errorf("%d templates created", n)
	}
}

func testComputeShader(ctx *Context) *Shader {
	return ctx.CreateShaderFromSPIRV("test", []uint32{spirvMagic, 0x00010300, 0, 1, 0},
		ShaderEntry{Name: "main", WorkgroupSize: [3]uint32{64, 1, 1}},
		ShaderEntry{Name: "vs_main"},
	)
}

func TestBindWritesTemplateData(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	shader := testComputeShader(ctx)
	defer ctx.DestroyShader(shader)
	pipeline := ctx.CreateComputePipeline(ComputePipelineDesc{
		Name:        "bind",
		DataLayouts: []*ShaderDataLayout{&testLayout},
		Compute:     shader.At("main"),
	})
	defer ctx.DestroyComputePipeline(pipeline)

	buf := ctx.CreateBuffer(BufferDesc{Name: "input", Size: 1024})
	defer ctx.DestroyBuffer(buf)
	sampler := ctx.CreateSampler(SamplerDesc{Name: "linear"})
	defer ctx.DestroySampler(sampler)

	enc := newTestEncoder(t, ctx, "bind", 1)
	defer ctx.DestroyCommandEncoder(enc)

	enc.Start()
	pass := enc.Compute()
	pc := pass.With(pipeline)
	pc.Bind(0, ShaderValues{
		"params": [4]float32{1, 2, 3, 4},
		"input":  buf.At(64),
		"scale":  []byte{9, 8, 7},
		"linear": sampler,
	})
	pc.Dispatch([3]uint32{4, 1, 1})
	pass.End()

	cb := enc.buffers[0]
	set := drv.BoundSet(cb.raw, 0)
	if set == 0 {
		t.Fatal("no descriptor set bound at group 0")
	}
	data := drv.DescriptorSetData(set)
	if len(data) != 96 {
		t.Fatalf("update data is %d bytes, want 96", len(data))
	}

	ne := binary.NativeEndian
	if f := ne.Uint32(data[4:]); f != 0x40000000 {
		t.Errorf("params[1] = %#x, want 2.0", f)
	}
	if raw := ne.Uint64(data[16:]); raw != uint64(buf.raw) {
		t.Errorf("buffer handle %#x, want %#x", raw, buf.raw)
	}
	if off := ne.Uint64(data[24:]); off != 64 {
		t.Errorf("buffer offset %d, want 64", off)
	}
	if got := data[40:48]; got[0] != 9 || got[2] != 7 || got[3] != 0 || got[7] != 0 {
		t.Errorf("scale bytes %v", got)
	}
	if view := ne.Uint64(data[56:]); view != 0 {
		t.Errorf("unset texture slot holds %#x", view)
	}
	if s := ne.Uint64(data[72:]); s != uint64(sampler.raw) {
		t.Errorf("sampler handle %#x, want %#x", s, sampler.raw)
	}
	if layout := ne.Uint32(data[88:]); layout != uint32(vk.ImageLayoutGeneral) {
		t.Errorf("sampler layout %d", layout)
	}

	if sets := drv.DescriptorSetsIn(cb.descriptorPool); len(sets) != 1 {
		t.Errorf("%d sets in pool, want 1", len(sets))
	}
	ctx.Submit(enc)
	drv.Flush()

	// The next Start on the same buffer frees its sets.
	enc.Start()
	if sets := drv.DescriptorSetsIn(cb.descriptorPool); len(sets) != 0 {
		t.Errorf("%d sets survive Start", len(sets))
	}
	ctx.Submit(enc)
	drv.Flush()
}

func TestBindMisuse(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	shader := testComputeShader(ctx)
	defer ctx.DestroyShader(shader)
	pipeline := ctx.CreateComputePipeline(ComputePipelineDesc{
		DataLayouts: []*ShaderDataLayout{&testLayout},
		Compute:     shader.At("main"),
	})
	defer ctx.DestroyComputePipeline(pipeline)

	enc := newTestEncoder(t, ctx, "misuse", 1)
	defer ctx.DestroyCommandEncoder(enc)
	enc.Start()
	pass := enc.Compute()
	pc := pass.With(pipeline)

	expectPanic(t, func() { pc.Bind(1, ShaderValues{}) })
	expectPanic(t, func() { pc.Bind(0, ShaderValues{"missing": uint32(1)}) })
	expectPanic(t, func() { pc.Bind(0, ShaderValues{"params": make([]byte, 17)}) })
	expectPanic(t, func() { pc.Bind(0, ShaderValues{"input": uint32(1)}) })
	pass.End()
}

func TestComputePipelineChecks(t *testing.T) {
	ctx, _ := newTestContext(t, func(c *simulated.Config) {
		c.Limits.MaxComputeWorkGroupSize = [3]uint32{32, 32, 1}
	})
	shader := testComputeShader(ctx)
	defer ctx.DestroyShader(shader)

	expectPanic(t, func() { shader.At("missing") })
	expectPanic(t, func() {
		ctx.CreateComputePipeline(ComputePipelineDesc{Compute: shader.At("vs_main")})
	})
	expectPanic(t, func() {
		ctx.CreateComputePipeline(ComputePipelineDesc{Compute: shader.At("main")})
	})
}
