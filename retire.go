package vkdraw

import (
	"sync"
	"time"

	vk "github.com/vulkan-go/vulkan"
)

// retireSlot is a batch of deferred destroys tied to one submission fence.
type retireSlot struct {
	fence    vk.Fence
	destroys []func()
}

// RetireQueue defers resource destruction until the GPU is provably done
// with it. Destroys accumulate in an open slot; sealing the slot with a
// submission's fence ties the batch to that submission, and Collect runs
// the batches whose fences have signaled. Unsealed destroys are only run
// by Flush, which requires an idle device.
type RetireQueue struct {
	Device *Device

	mu     sync.Mutex
	open   []func()
	sealed []retireSlot
}

func (d *Device) CreateRetireQueue() *RetireQueue {
	return &RetireQueue{Device: d}
}

// Retire schedules an arbitrary destroy.
func (q *RetireQueue) Retire(fn func()) {
	q.mu.Lock()
	q.open = append(q.open, fn)
	q.mu.Unlock()
}

// RetireBuffer schedules a bound buffer for destruction.
func (q *RetireQueue) RetireBuffer(b *BoundBuffer) {
	q.Retire(b.Destroy)
}

// RetireImageResources schedules an image and its memory.
func (q *RetireQueue) RetireImageResources(d *Device, image vk.Image, memory *DeviceMemory) {
	q.Retire(func() {
		vk.DestroyImage(d.VKDevice, image, nil)
		if memory != nil {
			memory.Destroy()
		}
	})
}

// Seal ties every destroy recorded since the last seal to the given fence.
// The fence must belong to the submission that last used those resources.
func (q *RetireQueue) Seal(fence vk.Fence) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.open) == 0 {
		return
	}
	q.sealed = append(q.sealed, retireSlot{fence: fence, destroys: q.open})
	q.open = nil
}

// Collect runs the batches whose fences have signaled and returns how many
// destroys ran.
func (q *RetireQueue) Collect() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	ran := 0
	remaining := q.sealed[:0]
	for _, slot := range q.sealed {
		status := vk.GetFenceStatus(q.Device.VKDevice, slot.fence)
		if status == vk.Success {
			for _, fn := range slot.destroys {
				fn()
			}
			ran += len(slot.destroys)
			continue
		}
		remaining = append(remaining, slot)
	}
	q.sealed = remaining
	return ran
}

// Flush waits for every sealed fence and runs all batches, open ones
// included. Call at teardown or after a device idle.
func (q *RetireQueue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, slot := range q.sealed {
		if slot.fence != vk.NullFence {
			vk.WaitForFences(q.Device.VKDevice, 1, []vk.Fence{slot.fence}, vk.True, uint64(10*time.Second))
		}
		for _, fn := range slot.destroys {
			fn()
		}
	}
	q.sealed = nil

	for _, fn := range q.open {
		fn()
	}
	q.open = nil
}

// Pending reports how many destroys are waiting.
func (q *RetireQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.open)
	for _, slot := range q.sealed {
		n += len(slot.destroys)
	}
	return n
}
