package bladevk

import (
	"slices"
	"testing"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
	"github.com/andewx/bladevk/internal/driver/simulated"
)

func TestCommandEncoderPools(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	enc := newTestEncoder(t, ctx, "frame", 3)
	defer ctx.DestroyCommandEncoder(enc)

	if enc.BufferCount() != 3 {
		t.Fatalf("BufferCount() = %d, want 3", enc.BufferCount())
	}
	if n := drv.Live(simulated.KindCommandPool); n != 1 {
		t.Errorf("%d command pools, want 1", n)
	}
	if n := drv.Live(simulated.KindDescriptorPool); n != 3 {
		t.Errorf("%d descriptor pools, want 3", n)
	}

	pools := make(map[vk.DescriptorPool]bool)
	buffers := make(map[vk.CommandBuffer]bool)
	for _, cb := range enc.buffers {
		pools[cb.descriptorPool] = true
		buffers[cb.raw] = true

		desc := drv.DescriptorPoolDesc(cb.descriptorPool)
		if desc.MaxSets != roughSetCount || desc.InlineUniformBlockBindings != roughSetCount {
			t.Errorf("pool %#x sized %+v", cb.descriptorPool, desc)
		}
		if name := drv.ObjectName(uint64(cb.raw)); name != "frame" {
			t.Errorf("command buffer %#x named %q", cb.raw, name)
		}
	}
	if len(pools) != 3 {
		t.Errorf("%d distinct descriptor pools, want 3", len(pools))
	}
	if len(buffers) != 3 {
		t.Errorf("%d distinct command buffers, want 3", len(buffers))
	}
}

func TestDescriptorPoolSizes(t *testing.T) {
	want := map[vk.DescriptorType]uint32{
		driver.DescriptorTypeInlineUniformBlock: 100 * PlainDataSize,
		vk.DescriptorTypeStorageBuffer:          100,
		vk.DescriptorTypeSampledImage:           200,
		vk.DescriptorTypeSampler:                100,
		vk.DescriptorTypeStorageImage:           100,
	}
	desc := descriptorPoolDesc()
	if len(desc.Sizes) != len(want) {
		t.Fatalf("%d pool sizes, want %d", len(desc.Sizes), len(want))
	}
	for _, s := range desc.Sizes {
		if want[s.Type] != s.DescriptorCount {
			t.Errorf("type %d: count %d, want %d", s.Type, s.DescriptorCount, want[s.Type])
		}
	}
}

func TestCommandEncoderCycles(t *testing.T) {
	ctx, drv := newTestContext(t, func(c *simulated.Config) { c.AutoProcess = true })
	enc := newTestEncoder(t, ctx, "cycle", 3)
	defer ctx.DestroyCommandEncoder(enc)

	var order []int
	for range 7 {
		enc.Start()
		order = append(order, enc.ActiveIndex())
		ctx.Submit(enc)
	}
	if want := []int{0, 1, 2, 0, 1, 2, 0}; !slices.Equal(order, want) {
		t.Errorf("active indices %v, want %v", order, want)
	}
	if n := drv.Submissions(enc.buffers[0].raw); n != 3 {
		t.Errorf("buffer 0 submitted %d times, want 3", n)
	}
}

func TestCommandEncoderZeroBuffers(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	if _, err := ctx.CreateCommandEncoder(CommandEncoderDesc{Name: "empty"}); err == nil {
		t.Fatal("encoder with no buffers was created")
	}
	if n := drv.Created(simulated.KindCommandPool); n != 0 {
		t.Errorf("%d command pools created", n)
	}
}

func TestCommandEncoderDestroy(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	enc := newTestEncoder(t, ctx, "destroy", 4)
	ctx.DestroyCommandEncoder(enc)

	for _, kind := range []simulated.Kind{simulated.KindCommandPool, simulated.KindCommandBuffer, simulated.KindDescriptorPool} {
		if n := drv.Live(kind); n != 0 {
			t.Errorf("%d %s objects alive", n, kind)
		}
	}
	if v := drv.Violations(); len(v) > 0 {
		t.Errorf("teardown violations: %q", v)
	}
}

func TestCommandEncoderMisuse(t *testing.T) {
	ctx, _ := newTestContext(t, func(c *simulated.Config) { c.AutoProcess = true })
	enc := newTestEncoder(t, ctx, "misuse", 1)
	defer ctx.DestroyCommandEncoder(enc)

	expectPanic(t, func() { enc.Transfer() })
	expectPanic(t, func() { ctx.Submit(enc) })

	enc.Start()
	tr := enc.Transfer()
	expectPanic(t, func() { enc.Compute() })
	expectPanic(t, func() { ctx.Submit(enc) })
	expectPanic(t, func() { enc.Start() })
	expectPanic(t, func() { enc.Render(RenderTargetSet{}) })
	tr.End()
	expectPanic(t, func() { tr.End() })

	c := enc.Compute()
	c.End()
	ctx.Submit(enc)
}

func TestCommandEncoderBarriers(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	enc := newTestEncoder(t, ctx, "barriers", 1)
	defer ctx.DestroyCommandEncoder(enc)

	buf := ctx.CreateBuffer(BufferDesc{Name: "scratch", Size: 256, Memory: MemoryUpload})
	defer ctx.DestroyBuffer(buf)

	enc.Start()
	tr := enc.Transfer()
	tr.FillBuffer(buf.At(0), 256, 1)
	tr.End()
	tr = enc.Transfer()
	tr.FillBuffer(buf.At(0), 256, 2)
	tr.End()
	ctx.Submit(enc)
	drv.Flush()

	want := []string{"barrier", "fill", "barrier", "fill"}
	if got := drv.Commands(enc.buffers[0].raw); !slices.Equal(got, want) {
		t.Errorf("commands %v, want %v", got, want)
	}
	if buf.Bytes()[255] != 2 {
		t.Errorf("last fill not applied, got %d", buf.Bytes()[255])
	}
}
