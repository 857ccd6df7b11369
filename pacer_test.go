package bladevk

import (
	"testing"
	"time"

	"github.com/andewx/bladevk/internal/driver/simulated"
)

func TestFramePacer(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	pacer := NewFramePacer(ctx, "frame")

	if !pacer.LastSyncPoint().IsZero() {
		t.Error("fresh pacer has a sync point")
	}

	_, res := pacer.BeginFrame()
	res.Buffers = append(res.Buffers, ctx.CreateBuffer(BufferDesc{Name: "retired", Size: 256, Memory: MemoryUpload}))
	first := pacer.EndFrame()

	pacer.BeginFrame()
	second := pacer.EndFrame()
	if !first.Less(second) || pacer.LastSyncPoint() != second {
		t.Fatalf("points %v then %v, last %v", first, second, pacer.LastSyncPoint())
	}

	// The third frame reuses the first slot and has to wait for it.
	began := make(chan struct{})
	go func() {
		pacer.BeginFrame()
		close(began)
	}()
	select {
	case <-began:
		t.Fatal("frame began while its slot was still executing")
	case <-time.After(10 * time.Millisecond):
	}
	if n := drv.Live(simulated.KindBuffer); n != 1 {
		t.Errorf("retired buffer released early, %d live", n)
	}

	drv.Step()
	select {
	case <-began:
	case <-time.After(5 * time.Second):
		t.Fatal("frame never began")
	}
	if n := drv.Live(simulated.KindBuffer); n != 0 {
		t.Errorf("%d buffers live after their frame completed", n)
	}
	third := pacer.EndFrame()

	drv.Flush()
	pacer.WaitForPreviousFrame()
	if !ctx.WaitFor(third, 0) {
		t.Error("previous frame not complete after WaitForPreviousFrame")
	}
	pacer.Destroy()

	for _, kind := range []simulated.Kind{simulated.KindCommandPool, simulated.KindDescriptorPool, simulated.KindBuffer} {
		if n := drv.Live(kind); n != 0 {
			t.Errorf("%d %s objects alive after Destroy", n, kind)
		}
	}
}
