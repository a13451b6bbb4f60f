package vkdraw

import (
	"errors"
	"testing"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewAPIObjectRegistry[string, int]()

	creates := 0
	make7 := func() (int, error) { creates++; return 7, nil }

	v, err := r.GetOrCreate("a", make7)
	if err != nil || v != 7 {
		t.Fatalf("v=%d err=%v", v, err)
	}
	v, err = r.GetOrCreate("a", make7)
	if err != nil || v != 7 {
		t.Fatalf("v=%d err=%v", v, err)
	}
	if creates != 1 {
		t.Errorf("create ran %d times", creates)
	}
}

func TestRegistryCreateErrorLeavesNoEntry(t *testing.T) {
	r := NewAPIObjectRegistry[string, int]()

	if _, err := r.GetOrCreate("a", func() (int, error) {
		return 0, errors.New("device lost")
	}); err == nil {
		t.Fatal("create error must propagate")
	}
	if _, ok := r.Get("a"); ok {
		t.Error("failed create must leave the registry unchanged")
	}
	if r.Len() != 0 {
		t.Errorf("len = %d", r.Len())
	}
}

func TestRegistryDelete(t *testing.T) {
	r := NewAPIObjectRegistry[string, int]()
	r.GetOrCreate("a", func() (int, error) { return 1, nil })

	v, ok := r.Delete("a")
	if !ok || v != 1 {
		t.Errorf("delete returned %d, %v", v, ok)
	}
	if _, ok := r.Delete("a"); ok {
		t.Error("second delete must report absent")
	}
}
