package vkdraw

import (
	"testing"
)

func TestAlignUp(t *testing.T) {
	if alignUp(12, 4) != 12 {
		t.Fail()
	}
	if alignUp(10, 4) != 12 {
		t.Fail()
	}
	if alignUp(10, 0) != 10 {
		t.Fail()
	}
}

func TestLinearAllocator(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	if a.Allocate(2048, 1) != nil {
		t.Error("allocation larger than pool must fail")
	}

	first := a.Allocate(512, 1)
	if first == nil {
		t.Fatal("512 allocation failed")
	}

	if a.Allocate(768, 1) != nil {
		t.Error("oversubscription must fail")
	}

	second := a.Allocate(500, 1)
	if second == nil {
		t.Fatal("500 allocation failed")
	}

	if a.Allocate(50, 1) != nil {
		t.Error("only 12 bytes left, 50 must fail")
	}

	if a.Allocate(5, 1) == nil {
		t.Error("5 bytes should still fit")
	}

	a.Free(first)
	refill := a.Allocate(512, 1)
	if refill == nil {
		t.Fatal("freed head region not reusable")
	}
	if refill.Offset != 0 {
		t.Errorf("expected head offset 0, got %d", refill.Offset)
	}

	a.Free(second)
	aligned := a.Allocate(100, 256)
	if aligned == nil {
		t.Fatal("aligned allocation failed")
	}
	if aligned.Offset%256 != 0 {
		t.Errorf("offset %d not 256-aligned", aligned.Offset)
	}
}
