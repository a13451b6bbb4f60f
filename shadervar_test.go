package vkdraw

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestGPUSize(t *testing.T) {
	cases := []struct {
		typ  ShaderVarType
		want uint32
	}{
		{ShaderVarFloat, 4},
		{ShaderVarBool, 4},
		{ShaderVarVec2, 8},
		{ShaderVarVec3, 16},
		{ShaderVarVec4, 16},
		{ShaderVarMat3, 48},
		{ShaderVarMat4, 64},
		{ShaderVarUnknown, 0},
	}
	for _, c := range cases {
		if got := c.typ.GPUSize(); got != c.want {
			t.Errorf("%s: got %d want %d", c.typ, got, c.want)
		}
	}
}

func TestWriteToPadsVec3(t *testing.T) {
	dst := make([]byte, 16)
	for i := range dst {
		dst[i] = 0xff
	}
	if err := Vec3Var([3]float32{1, 2, 3}).WriteTo(dst); err != nil {
		t.Fatal(err)
	}
	for i := 12; i < 16; i++ {
		if dst[i] != 0 {
			t.Fatalf("padding byte %d not zeroed: %#x", i, dst[i])
		}
	}
	if got := math.Float32frombits(binary.NativeEndian.Uint32(dst[8:])); got != 3 {
		t.Errorf("z component = %v", got)
	}
}

func TestWriteToMat3ColumnStride(t *testing.T) {
	var m [9]float32
	for i := range m {
		m[i] = float32(i + 1)
	}
	v := ShaderVar{Type: ShaderVarMat3, Floats: m[:]}

	dst := make([]byte, 48)
	if err := v.WriteTo(dst); err != nil {
		t.Fatal(err)
	}
	// Column 1 begins at byte 16, not 12.
	if got := math.Float32frombits(binary.NativeEndian.Uint32(dst[16:])); got != 4 {
		t.Errorf("column 1 start = %v, want 4", got)
	}
	if got := binary.NativeEndian.Uint32(dst[12:]); got != 0 {
		t.Errorf("column 0 padding = %#x, want zero", got)
	}
}

func TestWriteToErrors(t *testing.T) {
	if err := FloatVar(1).WriteTo(make([]byte, 2)); err == nil {
		t.Error("short destination must fail")
	}
	if err := (ShaderVar{Type: ShaderVarUnknown}).WriteTo(make([]byte, 64)); err == nil {
		t.Error("unknown type must fail")
	}
	short := ShaderVar{Type: ShaderVarVec4, Floats: []float32{1, 2}}
	if err := short.WriteTo(make([]byte, 16)); err == nil {
		t.Error("missing components must fail")
	}
}

func TestBoolVar(t *testing.T) {
	dst := make([]byte, 4)
	if err := BoolVar(true).WriteTo(dst); err != nil {
		t.Fatal(err)
	}
	if binary.NativeEndian.Uint32(dst) != 1 {
		t.Error("true must serialize as 1")
	}
}

func TestWriteArrayToStride(t *testing.T) {
	v := ShaderVar{Type: ShaderVarFloat, Floats: []float32{1, 2, 3, 4}}
	dst := make([]byte, 64)
	for i := range dst {
		dst[i] = 0xff
	}
	if err := v.WriteArrayTo(dst, 4, 16); err != nil {
		t.Fatal(err)
	}

	for i := uint32(0); i < 4; i++ {
		if got := math.Float32frombits(binary.NativeEndian.Uint32(dst[i*16:])); got != float32(i+1) {
			t.Errorf("element %d = %v", i, got)
		}
		if got := binary.NativeEndian.Uint32(dst[i*16+4:]); got != 0 {
			t.Errorf("element %d stride padding = %#x", i, got)
		}
	}
}

func TestWriteArrayToShortValueZeroFills(t *testing.T) {
	v := ShaderVar{Type: ShaderVarFloat, Floats: []float32{5}}
	dst := make([]byte, 32)
	for i := range dst {
		dst[i] = 0xff
	}
	if err := v.WriteArrayTo(dst, 2, 16); err != nil {
		t.Fatal(err)
	}
	if got := math.Float32frombits(binary.NativeEndian.Uint32(dst)); got != 5 {
		t.Errorf("element 0 = %v", got)
	}
	if got := binary.NativeEndian.Uint32(dst[16:]); got != 0 {
		t.Errorf("unsupplied element = %#x, must zero", got)
	}
}

func TestWriteArrayToErrors(t *testing.T) {
	v := ShaderVar{Type: ShaderVarFloat}
	if err := v.WriteArrayTo(make([]byte, 64), 4, 16); err == nil {
		t.Error("empty value must fail")
	}
	full := ShaderVar{Type: ShaderVarFloat, Floats: []float32{1, 2, 3, 4}}
	if err := full.WriteArrayTo(make([]byte, 32), 4, 16); err == nil {
		t.Error("short destination must fail")
	}
	if err := full.WriteArrayTo(make([]byte, 64), 0, 16); err == nil {
		t.Error("zero-length array must fail")
	}
}
