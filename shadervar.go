package vkdraw

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ShaderVarType is the engine-side type of a uniform value.
type ShaderVarType int

const (
	ShaderVarUnknown ShaderVarType = iota
	ShaderVarFloat
	ShaderVarVec2
	ShaderVarVec3
	ShaderVarVec4
	ShaderVarInt
	ShaderVarIVec2
	ShaderVarIVec3
	ShaderVarIVec4
	ShaderVarUint
	ShaderVarUVec2
	ShaderVarUVec3
	ShaderVarUVec4
	ShaderVarBool
	ShaderVarMat3
	ShaderVarMat4
)

func (t ShaderVarType) String() string {
	switch t {
	case ShaderVarFloat:
		return "float"
	case ShaderVarVec2:
		return "vec2"
	case ShaderVarVec3:
		return "vec3"
	case ShaderVarVec4:
		return "vec4"
	case ShaderVarInt:
		return "int"
	case ShaderVarIVec2:
		return "ivec2"
	case ShaderVarIVec3:
		return "ivec3"
	case ShaderVarIVec4:
		return "ivec4"
	case ShaderVarUint:
		return "uint"
	case ShaderVarUVec2:
		return "uvec2"
	case ShaderVarUVec3:
		return "uvec3"
	case ShaderVarUVec4:
		return "uvec4"
	case ShaderVarBool:
		return "bool"
	case ShaderVarMat3:
		return "mat3"
	case ShaderVarMat4:
		return "mat4"
	default:
		return "unknown"
	}
}

// GPUSize returns the std140-compatible byte footprint of a value of this
// type, or zero for unknown types. Three-component vectors pad to 16 bytes;
// mat3 is three padded columns.
func (t ShaderVarType) GPUSize() uint32 {
	switch t {
	case ShaderVarFloat, ShaderVarInt, ShaderVarUint, ShaderVarBool:
		return 4
	case ShaderVarVec2, ShaderVarIVec2, ShaderVarUVec2:
		return 8
	case ShaderVarVec3, ShaderVarIVec3, ShaderVarUVec3:
		return 16
	case ShaderVarVec4, ShaderVarIVec4, ShaderVarUVec4:
		return 16
	case ShaderVarMat3:
		return 48
	case ShaderVarMat4:
		return 64
	default:
		return 0
	}
}

func appendFloats(dst []byte, vals []float32) []byte {
	var buf [4]byte
	for _, v := range vals {
		binary.NativeEndian.PutUint32(buf[:], math.Float32bits(v))
		dst = append(dst, buf[:]...)
	}
	return dst
}

// ShaderVar is a typed uniform value. Floats holds float-family data and
// Ints holds int/uint/bool data; only the slice matching the type is used.
type ShaderVar struct {
	Type   ShaderVarType
	Floats []float32
	Ints   []int32
}

func FloatVar(v float32) ShaderVar { return ShaderVar{Type: ShaderVarFloat, Floats: []float32{v}} }
func Vec2Var(v [2]float32) ShaderVar {
	return ShaderVar{Type: ShaderVarVec2, Floats: v[:]}
}
func Vec3Var(v [3]float32) ShaderVar {
	return ShaderVar{Type: ShaderVarVec3, Floats: v[:]}
}
func Vec4Var(v [4]float32) ShaderVar {
	return ShaderVar{Type: ShaderVarVec4, Floats: v[:]}
}
func IntVar(v int32) ShaderVar { return ShaderVar{Type: ShaderVarInt, Ints: []int32{v}} }
func UintVar(v uint32) ShaderVar {
	return ShaderVar{Type: ShaderVarUint, Ints: []int32{int32(v)}}
}
func BoolVar(v bool) ShaderVar {
	i := int32(0)
	if v {
		i = 1
	}
	return ShaderVar{Type: ShaderVarBool, Ints: []int32{i}}
}
func Mat4Var(v [16]float32) ShaderVar {
	return ShaderVar{Type: ShaderVarMat4, Floats: v[:]}
}

// componentCount is the number of stored scalars, which for padded types is
// smaller than GPUSize/4.
func (t ShaderVarType) componentCount() int {
	switch t {
	case ShaderVarFloat, ShaderVarInt, ShaderVarUint, ShaderVarBool:
		return 1
	case ShaderVarVec2, ShaderVarIVec2, ShaderVarUVec2:
		return 2
	case ShaderVarVec3, ShaderVarIVec3, ShaderVarUVec3:
		return 3
	case ShaderVarVec4, ShaderVarIVec4, ShaderVarUVec4:
		return 4
	case ShaderVarMat3:
		return 9
	case ShaderVarMat4:
		return 16
	default:
		return 0
	}
}

// WriteTo serializes the value into dst, which must be at least GPUSize
// bytes. Padding bytes are zeroed. mat3 columns are written at 16-byte
// strides.
func (v ShaderVar) WriteTo(dst []byte) error {
	size := v.Type.GPUSize()
	if size == 0 {
		return fmt.Errorf("shader var: unknown type")
	}
	if uint32(len(dst)) < size {
		return fmt.Errorf("shader var: need %d bytes, have %d", size, len(dst))
	}

	for i := range dst[:size] {
		dst[i] = 0
	}

	n := v.Type.componentCount()
	switch v.Type {
	case ShaderVarInt, ShaderVarIVec2, ShaderVarIVec3, ShaderVarIVec4,
		ShaderVarUint, ShaderVarUVec2, ShaderVarUVec3, ShaderVarUVec4, ShaderVarBool:
		if len(v.Ints) < n {
			return fmt.Errorf("shader var: %s needs %d components, have %d", v.Type, n, len(v.Ints))
		}
		for i := 0; i < n; i++ {
			binary.NativeEndian.PutUint32(dst[i*4:], uint32(v.Ints[i]))
		}
	case ShaderVarMat3:
		if len(v.Floats) < n {
			return fmt.Errorf("shader var: %s needs %d components, have %d", v.Type, n, len(v.Floats))
		}
		for col := 0; col < 3; col++ {
			for row := 0; row < 3; row++ {
				binary.NativeEndian.PutUint32(dst[col*16+row*4:], math.Float32bits(v.Floats[col*3+row]))
			}
		}
	default:
		if len(v.Floats) < n {
			return fmt.Errorf("shader var: %s needs %d components, have %d", v.Type, n, len(v.Floats))
		}
		for i := 0; i < n; i++ {
			binary.NativeEndian.PutUint32(dst[i*4:], math.Float32bits(v.Floats[i]))
		}
	}
	return nil
}

// WriteArrayTo serializes array elements at stride-byte steps, consuming
// the value's components consecutively. Elements beyond the supplied data
// stay zeroed, so a short value fills a prefix of the array; at least one
// full element must be present.
func (v ShaderVar) WriteArrayTo(dst []byte, count, stride uint32) error {
	size := v.Type.GPUSize()
	if size == 0 {
		return fmt.Errorf("shader var: unknown type")
	}
	if count == 0 {
		return fmt.Errorf("shader var: zero-length array")
	}
	if stride < size {
		stride = size
	}
	span := stride*(count-1) + size
	if uint32(len(dst)) < span {
		return fmt.Errorf("shader var: array of %d needs %d bytes, have %d", count, span, len(dst))
	}

	for i := range dst[:span] {
		dst[i] = 0
	}

	n := v.Type.componentCount()
	for elem := uint32(0); elem < count; elem++ {
		e := ShaderVar{Type: v.Type}
		switch v.Type {
		case ShaderVarInt, ShaderVarIVec2, ShaderVarIVec3, ShaderVarIVec4,
			ShaderVarUint, ShaderVarUVec2, ShaderVarUVec3, ShaderVarUVec4, ShaderVarBool:
			if len(v.Ints) < int(elem+1)*n {
				if elem == 0 {
					return fmt.Errorf("shader var: %s needs %d components, have %d", v.Type, n, len(v.Ints))
				}
				return nil
			}
			e.Ints = v.Ints[int(elem)*n : int(elem+1)*n]
		default:
			if len(v.Floats) < int(elem+1)*n {
				if elem == 0 {
					return fmt.Errorf("shader var: %s needs %d components, have %d", v.Type, n, len(v.Floats))
				}
				return nil
			}
			e.Floats = v.Floats[int(elem)*n : int(elem+1)*n]
		}
		if err := e.WriteTo(dst[elem*stride : elem*stride+size]); err != nil {
			return err
		}
	}
	return nil
}
