package vkdraw

import (
	"testing"
	"time"
)

func TestWarnfOnce(t *testing.T) {
	var w warnSet
	if !w.Warnf("texture %q missing", "albedo") {
		t.Error("first occurrence must emit")
	}
	if w.Warnf("texture %q missing", "albedo") {
		t.Error("repeat must be swallowed")
	}
	if !w.Warnf("texture %q missing", "normal") {
		t.Error("distinct message must emit")
	}
}

func TestThrottledfWindow(t *testing.T) {
	clock := time.Unix(0, 0)
	w := warnSet{now: func() time.Time { return clock }}

	if !w.Throttledf("shader not linked") {
		t.Error("first occurrence must emit")
	}
	clock = clock.Add(time.Second)
	if w.Throttledf("shader not linked") {
		t.Error("inside the window must be swallowed")
	}
	clock = clock.Add(defaultWarnWindow)
	if !w.Throttledf("shader not linked") {
		t.Error("past the window must emit again")
	}
}

func TestWarnSetZeroValue(t *testing.T) {
	// Components embed warnSet without construction; the zero value must
	// work on first use.
	var w warnSet
	if !w.Throttledf("zero value") {
		t.Error("zero-value set must emit")
	}
}
