package vkdraw

import "testing"

func TestQueueSubmitValidatesWaitStages(t *testing.T) {
	q := &Queue{}
	if err := q.Submit([]*Semaphore{{}}, nil, nil, nil); err == nil {
		t.Error("wait semaphores without stage masks must fail")
	}
}
