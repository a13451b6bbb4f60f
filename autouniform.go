package vkdraw

import "fmt"

// WriteAutoUniformBlock serializes a reflected uniform block into dst,
// resolving each member in priority order: engine uniform, program-level
// override, material parameter, reflected default, zero. Members the block
// reflects but nothing supplies are left zeroed rather than failing the
// draw.
func WriteAutoUniformBlock(block *AutoUniformBlock, dst []byte,
	rc *RenderContext, overrides map[string]ShaderVar, params map[string]ShaderVar) error {

	if uint32(len(dst)) < block.ByteSize {
		return fmt.Errorf("auto uniform block %q: need %d bytes, have %d", block.Name, block.ByteSize, len(dst))
	}

	for _, m := range block.Members {
		size := m.Type.GPUSize()
		if size == 0 {
			return fmt.Errorf("auto uniform block %q: member %q has unknown type", block.Name, m.Name)
		}
		count, stride := uint32(1), size
		if m.IsArray {
			count = m.ArrayLength
			if count == 0 {
				return fmt.Errorf("auto uniform block %q: member %q is a zero-length array", block.Name, m.Name)
			}
			if m.ArrayStride > stride {
				stride = m.ArrayStride
			}
		}
		span := stride*(count-1) + size
		if m.Offset+span > block.ByteSize {
			return fmt.Errorf("auto uniform block %q: member %q overruns block (%d+%d > %d)",
				block.Name, m.Name, m.Offset, span, block.ByteSize)
		}
		slot := dst[m.Offset : m.Offset+span]

		if v, ok := ResolveEngineUniform(m.Name, rc); ok {
			if err := v.WriteArrayTo(slot, count, stride); err != nil {
				return fmt.Errorf("auto uniform block %q: member %q: %w", block.Name, m.Name, err)
			}
			continue
		}
		if v, ok := overrides[m.Name]; ok {
			if err := v.WriteArrayTo(slot, count, stride); err != nil {
				return fmt.Errorf("auto uniform block %q: member %q: %w", block.Name, m.Name, err)
			}
			continue
		}
		if v, ok := params[m.Name]; ok {
			if err := v.WriteArrayTo(slot, count, stride); err != nil {
				return fmt.Errorf("auto uniform block %q: member %q: %w", block.Name, m.Name, err)
			}
			continue
		}
		if len(m.Default) > 0 {
			n := copy(slot, m.Default)
			for i := n; i < len(slot); i++ {
				slot[i] = 0
			}
			continue
		}
		for i := range slot {
			slot[i] = 0
		}
	}
	return nil
}
