package vkdraw

import (
	"encoding/binary"
	"math"
	"testing"
)

func floatAt(t *testing.T, buf []byte, offset uint32) float32 {
	t.Helper()
	return math.Float32frombits(binary.NativeEndian.Uint32(buf[offset:]))
}

func TestWriteAutoUniformBlockPriority(t *testing.T) {
	block := &AutoUniformBlock{
		Name:     "Params",
		ByteSize: 32,
		Members: []AutoUniformMember{
			{Name: "engine_time", Offset: 0, Type: ShaderVarFloat},
			{Name: "tint", Offset: 4, Type: ShaderVarFloat},
			{Name: "exposure", Offset: 8, Type: ShaderVarFloat},
			{Name: "gamma", Offset: 12, Type: ShaderVarFloat, Default: []byte{0, 0, 0x10, 0x40}}, // 2.25
			{Name: "unset", Offset: 16, Type: ShaderVarFloat},
		},
	}
	rc := &RenderContext{TimeSeconds: 1.5}
	overrides := map[string]ShaderVar{
		"tint":        FloatVar(9),
		"engine_time": FloatVar(100), // engine wins over an override
	}
	params := map[string]ShaderVar{
		"tint":     FloatVar(3), // override wins over a material param
		"exposure": FloatVar(0.5),
	}

	dst := make([]byte, 32)
	for i := range dst {
		dst[i] = 0xff
	}
	if err := WriteAutoUniformBlock(block, dst, rc, overrides, params); err != nil {
		t.Fatal(err)
	}

	if got := floatAt(t, dst, 0); got != 1.5 {
		t.Errorf("engine_time = %v", got)
	}
	if got := floatAt(t, dst, 4); got != 9 {
		t.Errorf("tint = %v, override should win", got)
	}
	if got := floatAt(t, dst, 8); got != 0.5 {
		t.Errorf("exposure = %v", got)
	}
	if got := floatAt(t, dst, 12); got != 2.25 {
		t.Errorf("gamma = %v, default bytes should apply", got)
	}
	if got := binary.NativeEndian.Uint32(dst[16:]); got != 0 {
		t.Errorf("unset member = %#x, should zero", got)
	}
}

func TestWriteAutoUniformBlockErrors(t *testing.T) {
	block := &AutoUniformBlock{
		Name:     "Params",
		ByteSize: 16,
		Members:  []AutoUniformMember{{Name: "m", Offset: 8, Type: ShaderVarVec4}},
	}
	rc := &RenderContext{}

	if err := WriteAutoUniformBlock(block, make([]byte, 8), rc, nil, nil); err == nil {
		t.Error("short destination must fail")
	}
	// 8 + 16 > 16: a member past the reflected size corrupts neighbors.
	if err := WriteAutoUniformBlock(block, make([]byte, 16), rc, nil, nil); err == nil {
		t.Error("member overrunning the block must fail")
	}
}

func TestWriteAutoUniformBlockArrayMember(t *testing.T) {
	block := &AutoUniformBlock{
		Name:     "Params",
		ByteSize: 64,
		Members: []AutoUniformMember{{
			Name: "weights", Offset: 0, Type: ShaderVarFloat,
			IsArray: true, ArrayStride: 16, ArrayLength: 4,
		}},
	}
	params := map[string]ShaderVar{
		"weights": {Type: ShaderVarFloat, Floats: []float32{1, 2, 3, 4}},
	}

	dst := make([]byte, 64)
	for i := range dst {
		dst[i] = 0xff
	}
	if err := WriteAutoUniformBlock(block, dst, &RenderContext{}, nil, params); err != nil {
		t.Fatal(err)
	}

	for i := uint32(0); i < 4; i++ {
		if got := floatAt(t, dst, i*16); got != float32(i+1) {
			t.Errorf("element %d = %v", i, got)
		}
		// std140 padding between elements must be zeroed, not leftover.
		if got := binary.NativeEndian.Uint32(dst[i*16+4:]); got != 0 {
			t.Errorf("element %d padding = %#x", i, got)
		}
	}
}

func TestWriteAutoUniformBlockArrayOverrun(t *testing.T) {
	block := &AutoUniformBlock{
		Name:     "Params",
		ByteSize: 32,
		Members: []AutoUniformMember{{
			Name: "weights", Offset: 0, Type: ShaderVarFloat,
			IsArray: true, ArrayStride: 16, ArrayLength: 4,
		}},
	}
	if err := WriteAutoUniformBlock(block, make([]byte, 32), &RenderContext{}, nil, nil); err == nil {
		t.Error("array spanning past the block must fail")
	}
}

func TestProgramUniformOverridesFeedAutoBlocks(t *testing.T) {
	block := &AutoUniformBlock{
		Name:     "Params",
		ByteSize: 16,
		Members:  []AutoUniformMember{{Name: "exposure", Offset: 0, Type: ShaderVarFloat}},
	}
	params := map[string]ShaderVar{"exposure": FloatVar(0.5)}

	p := &RenderProgram{Name: "test"}
	p.SetUniformOverride("exposure", FloatVar(2))

	dst := make([]byte, 16)
	if err := WriteAutoUniformBlock(block, dst, &RenderContext{}, p.UniformOverrides(), params); err != nil {
		t.Fatal(err)
	}
	if got := floatAt(t, dst, 0); got != 2 {
		t.Errorf("exposure = %v, program override should win", got)
	}

	p.RemoveUniformOverride("exposure")
	if err := WriteAutoUniformBlock(block, dst, &RenderContext{}, p.UniformOverrides(), params); err != nil {
		t.Fatal(err)
	}
	if got := floatAt(t, dst, 0); got != 0.5 {
		t.Errorf("exposure = %v, material param should resolve after removal", got)
	}
}
