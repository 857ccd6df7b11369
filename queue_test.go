package bladevk

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/andewx/bladevk/internal/driver/simulated"
)

func newTestEncoder(t *testing.T, ctx *Context, name string, count uint32) *CommandEncoder {
	t.Helper()
	enc, err := ctx.CreateCommandEncoder(CommandEncoderDesc{Name: name, BufferCount: count})
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func TestMapTimeout(t *testing.T) {
	tests := []struct {
		ms   uint32
		want uint64
	}{
		{0, 0},
		{1, 1_000_000},
		{1500, 1_500_000_000},
		{WaitForever, math.MaxUint64},
	}
	for _, tt := range tests {
		if got := mapTimeout(tt.ms); got != tt.want {
			t.Errorf("mapTimeout(%d) = %d, want %d", tt.ms, got, tt.want)
		}
	}
}

func TestSubmitSyncPointsIncrease(t *testing.T) {
	ctx, drv := newTestContext(t, func(c *simulated.Config) { c.AutoProcess = true })
	enc := newTestEncoder(t, ctx, "increase", 2)
	defer ctx.DestroyCommandEncoder(enc)

	var last SyncPoint
	for i := 0; i < 10; i++ {
		enc.Start()
		sp := ctx.Submit(enc)
		if !last.Less(sp) {
			t.Fatalf("submission %d: %v does not follow %v", i, sp, last)
		}
		last = sp
	}
	if got := ctx.LastSyncPoint(); got != last {
		t.Errorf("LastSyncPoint() = %v, want %v", got, last)
	}
	if got := ctx.Completed(); got != last {
		t.Errorf("Completed() = %v, want %v", got, last)
	}
	if n := drv.Pending(); n != 0 {
		t.Errorf("%d submissions pending", n)
	}
}

func TestSubmitConcurrent(t *testing.T) {
	ctx, _ := newTestContext(t, func(c *simulated.Config) { c.AutoProcess = true })

	const workers, perWorker = 8, 25
	points := make([][]SyncPoint, workers)
	var wg sync.WaitGroup
	for w := range workers {
		enc := newTestEncoder(t, ctx, "worker", 2)
		defer ctx.DestroyCommandEncoder(enc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				enc.Start()
				points[w] = append(points[w], ctx.Submit(enc))
			}
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for w, list := range points {
		for i, sp := range list {
			if seen[sp.Progress] {
				t.Fatalf("progress %d issued twice", sp.Progress)
			}
			seen[sp.Progress] = true
			if i > 0 && !list[i-1].Less(sp) {
				t.Errorf("worker %d: %v does not follow %v", w, sp, list[i-1])
			}
		}
	}
	if got := ctx.LastSyncPoint().Progress; got != workers*perWorker {
		t.Errorf("last progress = %d, want %d", got, workers*perWorker)
	}
}

func TestWaitForPending(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	enc := newTestEncoder(t, ctx, "pending", 1)
	defer ctx.DestroyCommandEncoder(enc)

	enc.Start()
	sp := ctx.Submit(enc)
	if ctx.WaitFor(sp, 0) {
		t.Fatal("WaitFor(0) reported pending work as done")
	}
	if ctx.WaitFor(sp, 1) {
		t.Fatal("WaitFor(1ms) reported pending work as done")
	}
	if !ctx.Completed().Less(sp) {
		t.Errorf("Completed() = %v before processing", ctx.Completed())
	}

	if !drv.Step() {
		t.Fatal("nothing to process")
	}
	if !ctx.WaitFor(sp, 1000) {
		t.Error("WaitFor timed out on processed work")
	}
	if !ctx.WaitFor(sp, 0) {
		t.Error("WaitFor(0) reported processed work as pending")
	}
	if !ctx.WaitFor(SyncPoint{}, 0) {
		t.Error("the zero point is not complete")
	}
}

func TestWaitForDoesNotBlockSubmit(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	enc := newTestEncoder(t, ctx, "first", 1)
	defer ctx.DestroyCommandEncoder(enc)
	other := newTestEncoder(t, ctx, "second", 1)
	defer ctx.DestroyCommandEncoder(other)

	enc.Start()
	sp := ctx.Submit(enc)

	done := make(chan bool)
	go func() { done <- ctx.WaitFor(sp, WaitForever) }()

	// A waiter must not hold the queue.
	other.Start()
	sp2 := ctx.Submit(other)
	if !sp.Less(sp2) {
		t.Errorf("%v does not follow %v", sp2, sp)
	}

	select {
	case <-done:
		t.Fatal("wait finished before the work was processed")
	case <-time.After(10 * time.Millisecond):
	}
	drv.Flush()
	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitForever returned false")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestWaitForDeviceLost(t *testing.T) {
	ctx, drv := newTestContext(t, nil)
	enc := newTestEncoder(t, ctx, "lost", 1)
	defer ctx.DestroyCommandEncoder(enc)

	enc.Start()
	sp := ctx.Submit(enc)
	drv.Lose()
	expectPanic(t, func() { ctx.WaitFor(sp, WaitForever) })
}

func TestWaitForAfterDestroyPanics(t *testing.T) {
	ctx, _ := newTestContext(t, nil)
	ctx.Destroy()
	expectPanic(t, func() { ctx.WaitFor(SyncPoint{Progress: 1}, 0) })
}
