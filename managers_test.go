package bladevk

import (
	"testing"
	"testing/quick"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver/simulated"
)

func TestValidityMaskProperty(t *testing.T) {
	property := func(raw []uint32) bool {
		flags := make([]vk.MemoryPropertyFlags, len(raw))
		for i, f := range raw {
			// Bias towards known flags so both outcomes are common.
			if i%2 == 0 {
				f &= uint32(knownMemoryProperties)
			}
			flags[i] = vk.MemoryPropertyFlags(f)
		}
		mask := ValidityMask(flags)
		for i := 0; i < 32; i++ {
			set := mask&(1<<i) != 0
			switch {
			case i >= len(flags) || i >= vk.MaxMemoryTypes:
				if set {
					return false
				}
			case set != (flags[i]&^knownMemoryProperties == 0):
				return false
			}
		}
		return true
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestValidityMaskKnownTypes(t *testing.T) {
	flags := []vk.MemoryPropertyFlags{
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | 0x100,
		0,
	}
	if got, want := ValidityMask(flags), uint32(0b1011); got != want {
		t.Errorf("ValidityMask = %#b, want %#b", got, want)
	}
}

func TestMemoryUseAfterFree(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	m := ctx.Memory()

	h, err := m.Allocate(MemoryRequest{Size: 1024, Alignment: 256, TypeBits: 0b111, Location: MemoryDevice})
	if err != nil {
		t.Fatal(err)
	}
	m.Free(h)

	if v := expectPanic(t, func() { m.Free(h) }); !panicIs(v, ErrStaleHandle) {
		t.Errorf("double free panicked with %v, want ErrStaleHandle", v)
	}
	if v := expectPanic(t, func() { m.Block(h) }); !panicIs(v, ErrStaleHandle) {
		t.Errorf("stale lookup panicked with %v, want ErrStaleHandle", v)
	}

	// The slot is reused under a new generation. The old handle stays dead.
	h2, err := m.Allocate(MemoryRequest{Size: 1024, Alignment: 256, TypeBits: 0b111, Location: MemoryDevice})
	if err != nil {
		t.Fatal(err)
	}
	if h2 == h {
		t.Fatal("reallocation returned the freed handle")
	}
	if v := expectPanic(t, func() { m.Block(h) }); !panicIs(v, ErrStaleHandle) {
		t.Errorf("stale lookup after reuse panicked with %v", v)
	}
	m.Free(h2)
}

func TestMemoryMaskedTypeNeverChosen(t *testing.T) {
	ctx, _ := newTestContext(t, func(cfg *simulated.Config) {
		cfg.MemoryTypes = append([]vk.MemoryType{{
			PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit) | 0x100,
			HeapIndex:     1,
		}}, cfg.MemoryTypes...)
	})
	m := ctx.Memory()
	if m.ValidMask()&1 != 0 {
		t.Fatalf("type with an unknown flag is valid, mask %#b", m.ValidMask())
	}

	if _, err := m.Allocate(MemoryRequest{Size: 256, TypeBits: 0b0001, Location: MemoryUpload}); err == nil {
		t.Error("allocation restricted to a masked type succeeded")
	}

	h, err := m.Allocate(MemoryRequest{Size: 256, TypeBits: 0b1111, Location: MemoryUpload})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Free(h)
	if m.Block(h).Mapped == nil {
		t.Error("upload block is not mapped")
	}
}

func TestMemoryLocations(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	m := ctx.Memory()

	dev, err := m.Allocate(MemoryRequest{Size: 4096, Alignment: 256, TypeBits: 0b111, Location: MemoryDevice})
	if err != nil {
		t.Fatal(err)
	}
	up, err := m.Allocate(MemoryRequest{Size: 100, Alignment: 4, TypeBits: 0b111, Location: MemoryUpload})
	if err != nil {
		t.Fatal(err)
	}

	if b := m.Block(dev); b.Mapped != nil {
		t.Error("device block is mapped")
	}
	ub := m.Block(up)
	if ub.Mapped == nil {
		t.Fatal("upload block is not mapped")
	}
	if ub.Size != 128 {
		t.Errorf("upload block size = %d, want 100 rounded to the atom", ub.Size)
	}
	if ub.Offset%64 != 0 {
		t.Errorf("upload block offset %d is not atom aligned", ub.Offset)
	}

	// Writes through the mapping land in the native allocation.
	data := drv.MemoryBytes(ub.Memory)
	*(*byte)(ub.Mapped) = 0xAB
	if data[ub.Offset] != 0xAB {
		t.Error("mapped write is not visible in device memory")
	}

	m.Free(dev)
	m.Free(up)
}

func TestMemoryStats(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	m := ctx.Memory()
	req := MemoryRequest{Size: 1000, Alignment: 256, TypeBits: 0b111, Location: MemoryDevice}

	a, err := m.Allocate(req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Allocate(req)
	if err != nil {
		t.Fatal(err)
	}
	big, err := m.Allocate(MemoryRequest{Size: dedicatedThreshold, TypeBits: 0b111, Location: MemoryDevice})
	if err != nil {
		t.Fatal(err)
	}

	want := MemoryStats{Blocks: 3, NativeAllocations: 2, Chunks: 1, Bytes: 2000 + dedicatedThreshold}
	if got := m.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if n := drv.Live(simulated.KindMemory); n != 2 {
		t.Errorf("%d native allocations live, want 2", n)
	}

	m.Free(a)
	m.Free(big)
	m.Free(b)
	if got := m.Stats(); got != (MemoryStats{}) {
		t.Errorf("Stats() after free = %+v, want zero", got)
	}
	if n := drv.Live(simulated.KindMemory); n != 0 {
		t.Errorf("%d native allocations live after free, want 0", n)
	}
}

func TestMemoryAllocationLimit(t *testing.T) {
	ctx, _ := newTestContext(t, func(cfg *simulated.Config) {
		cfg.Limits.MaxMemoryAllocationCount = 1
	})
	m := ctx.Memory()

	h, err := m.Allocate(MemoryRequest{Size: 256, TypeBits: 0b111, Location: MemoryDevice})
	if err != nil {
		t.Fatal(err)
	}
	defer m.Free(h)
	// Same type fits the existing chunk.
	h2, err := m.Allocate(MemoryRequest{Size: 256, TypeBits: 0b111, Location: MemoryDevice})
	if err != nil {
		t.Fatalf("sub-allocation failed: %v", err)
	}
	defer m.Free(h2)
	// Another type needs a second native allocation.
	if _, err := m.Allocate(MemoryRequest{Size: 256, TypeBits: 0b111, Location: MemoryUpload}); err == nil {
		t.Error("allocation past the native limit succeeded")
	}
}

func TestMemoryZeroSize(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	if _, err := ctx.Memory().Allocate(MemoryRequest{TypeBits: 0b111}); err == nil {
		t.Error("zero sized allocation succeeded")
	}
}

func TestMemoryDestroyReleasesLeaks(t *testing.T) {
	cfg := simulated.DefaultConfig()
	drv := simulated.New(cfg)
	ctx, err := InitWithDriver(drv, ContextDesc{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Memory().Allocate(MemoryRequest{Size: 256, TypeBits: 0b111, Location: MemoryUpload}); err != nil {
		t.Fatal(err)
	}
	ctx.Destroy()
	if n := drv.Live(simulated.KindMemory); n != 0 {
		t.Errorf("%d native allocations survive Destroy", n)
	}
	if v := drv.Violations(); len(v) > 0 {
		t.Errorf("violations: %q", v)
	}
}
