package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestRetireQueueOpenSlot(t *testing.T) {
	var q RetireQueue

	ran := 0
	q.Retire(func() { ran++ })
	q.Retire(func() { ran++ })
	if q.Pending() != 2 {
		t.Fatalf("pending = %d", q.Pending())
	}
	if ran != 0 {
		t.Fatal("destroys must not run before flush")
	}

	q.Flush()
	if ran != 2 || q.Pending() != 0 {
		t.Errorf("ran=%d pending=%d", ran, q.Pending())
	}
}

func TestRetireQueueSealNullFence(t *testing.T) {
	var q RetireQueue

	ran := 0
	q.Retire(func() { ran++ })
	q.Seal(vk.NullFence)
	if q.Pending() != 1 {
		t.Fatalf("pending = %d", q.Pending())
	}

	// A null fence batch has nothing to wait on; flush just runs it.
	q.Flush()
	if ran != 1 {
		t.Errorf("ran = %d", ran)
	}
}

func TestRetireQueueSealEmptyIsNoop(t *testing.T) {
	var q RetireQueue
	q.Seal(vk.NullFence)
	if q.Pending() != 0 {
		t.Errorf("sealing an empty slot must record nothing, pending = %d", q.Pending())
	}
}

func TestRetireQueueOrdering(t *testing.T) {
	var q RetireQueue

	var order []int
	q.Retire(func() { order = append(order, 1) })
	q.Seal(vk.NullFence)
	q.Retire(func() { order = append(order, 2) })

	q.Flush()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("sealed batches run before open destroys, got %v", order)
	}
}
