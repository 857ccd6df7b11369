package bladevk

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// WaitForever passed as a timeout makes WaitFor block until completion.
const WaitForever = math.MaxUint32

// Queue is the single execution queue with its timeline semaphore.
// lastProgress only grows and is only touched under mu.
type Queue struct {
	mu           sync.Mutex
	raw          vk.Queue
	family       uint32
	timeline     vk.Semaphore
	lastProgress uint64
}

// SyncPoint marks the end of one submission. It is satisfied once the
// timeline reaches Progress.
type SyncPoint struct {
	Progress uint64
}

// IsZero reports whether the point was never issued by a submission.
func (sp SyncPoint) IsZero() bool { return sp.Progress == 0 }

// Less orders points by submission.
func (sp SyncPoint) Less(other SyncPoint) bool { return sp.Progress < other.Progress }

func mapTimeout(ms uint32) uint64 {
	if ms == WaitForever {
		return math.MaxUint64
	}
	return uint64(ms) * 1_000_000
}

// Submit finishes the encoder's active command buffer and queues it. The
// returned point is strictly greater than every point issued before it.
func (c *Context) Submit(enc *CommandEncoder) SyncPoint {
	cb := enc.finish()

	q := &c.queue
	q.mu.Lock()
	q.lastProgress++
	progress := q.lastProgress
	err := c.drv.QueueSubmit(q.raw, driver.Submission{
		CommandBuffer: cb,
		Semaphore:     q.timeline,
		SignalValue:   progress,
	})
	q.mu.Unlock()

	mustSucceed(err, "queue submit")
	return SyncPoint{Progress: progress}
}

// WaitFor blocks the caller until sp completes or timeoutMs passes, and
// reports whether it completed. A timeout of 0 polls. The queue stays
// available to other goroutines while this waits.
func (c *Context) WaitFor(sp SyncPoint, timeoutMs uint32) bool {
	if c.destroyed.Load() {
		panic(errors.AssertionFailedf("wait for sync point %d on a destroyed context", sp.Progress))
	}
	c.queue.mu.Lock()
	timeline := c.queue.timeline
	c.queue.mu.Unlock()

	ok, err := c.drv.WaitSemaphore(c.device, timeline, sp.Progress, mapTimeout(timeoutMs))
	mustSucceed(err, "wait for timeline")
	return ok
}

// LastSyncPoint is the point of the most recent submission.
func (c *Context) LastSyncPoint() SyncPoint {
	c.queue.mu.Lock()
	defer c.queue.mu.Unlock()
	return SyncPoint{Progress: c.queue.lastProgress}
}

// Completed reads how far the device has progressed.
func (c *Context) Completed() SyncPoint {
	c.queue.mu.Lock()
	timeline := c.queue.timeline
	c.queue.mu.Unlock()

	value, err := c.drv.SemaphoreCounterValue(c.device, timeline)
	mustSucceed(err, "read timeline")
	return SyncPoint{Progress: value}
}
