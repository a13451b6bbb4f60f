package vkdraw

import (
	"errors"
	"sync"
	"testing"
)

func TestDrawQueueDrainClears(t *testing.T) {
	var q DrawQueue
	q.Enqueue(PendingDrawSnapshot{InstanceCount: 1})
	q.Enqueue(PendingDrawSnapshot{InstanceCount: 2})
	if q.Len() != 2 {
		t.Fatalf("len = %d", q.Len())
	}

	var seen []uint32
	q.Drain(func(s PendingDrawSnapshot) error {
		seen = append(seen, s.InstanceCount)
		return nil
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("recorded %v", seen)
	}
	if q.Len() != 0 {
		t.Error("drain must leave the queue empty")
	}
}

func TestDrawQueueDrainSurvivesFailures(t *testing.T) {
	var q DrawQueue
	for i := uint32(1); i <= 4; i++ {
		q.Enqueue(PendingDrawSnapshot{InstanceCount: i})
	}

	var seen []uint32
	q.Drain(func(s PendingDrawSnapshot) error {
		switch s.InstanceCount {
		case 2:
			return errors.New("bad material")
		case 3:
			panic("bad renderer")
		}
		seen = append(seen, s.InstanceCount)
		return nil
	})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 4 {
		t.Errorf("draws after a failure must still record, got %v", seen)
	}
	if q.Len() != 0 {
		t.Error("failures must not leave items queued")
	}
}

func TestFrameOpQueueDrain(t *testing.T) {
	var q FrameOpQueue

	var order []int
	q.Enqueue(func() error { order = append(order, 1); return nil })
	q.Enqueue(func() error { return errors.New("upload failed") })
	q.Enqueue(func() error { panic("bad op") })
	q.Enqueue(func() error { order = append(order, 2); return nil })

	q.Drain()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("ops after a failure must still run, got %v", order)
	}
	if q.Len() != 0 {
		t.Error("drain must leave the queue empty")
	}
}

func TestDrawQueueConcurrentEnqueue(t *testing.T) {
	var q DrawQueue
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(PendingDrawSnapshot{})
			}
		}()
	}
	wg.Wait()
	if q.Len() != 800 {
		t.Errorf("len = %d", q.Len())
	}
}
