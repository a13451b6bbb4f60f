package vkdraw

import (
	"fmt"
	"hash/fnv"
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

// DescriptorBindingInfo describes one descriptor binding as reflected from a
// shader stage.
type DescriptorBindingInfo struct {
	Set        uint32
	Binding    uint32
	Type       vk.DescriptorType
	StageFlags vk.ShaderStageFlags
	Count      uint32
	Name       string
}

// bindingKey identifies a binding across stages.
type bindingKey struct {
	set     uint32
	binding uint32
}

// MergeDescriptorBindings combines per-stage binding lists into one list.
// Bindings sharing a (set, binding) slot must agree on type and count; their
// stage flags are unioned. A name present in any stage wins over an empty
// one. Disagreement on type or count is a program authoring error and is
// reported, not papered over.
func MergeDescriptorBindings(stages ...[]DescriptorBindingInfo) ([]DescriptorBindingInfo, error) {
	merged := make(map[bindingKey]DescriptorBindingInfo)
	order := make([]bindingKey, 0)

	for _, bindings := range stages {
		for _, b := range bindings {
			key := bindingKey{set: b.Set, binding: b.Binding}
			existing, ok := merged[key]
			if !ok {
				merged[key] = b
				order = append(order, key)
				continue
			}
			if existing.Type != b.Type || existing.Count != b.Count {
				return nil, fmt.Errorf("conflicting descriptor definitions at set %d binding %d: (%d x%d) vs (%d x%d)",
					b.Set, b.Binding, existing.Type, existing.Count, b.Type, b.Count)
			}
			existing.StageFlags |= b.StageFlags
			if existing.Name == "" {
				existing.Name = b.Name
			}
			merged[key] = existing
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].set != order[j].set {
			return order[i].set < order[j].set
		}
		return order[i].binding < order[j].binding
	})

	out := make([]DescriptorBindingInfo, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out, nil
}

// ComputeSchemaFingerprint hashes the structural content of a binding list
// plus the frame and set counts. Bindings are sorted on a copy first, so
// any permutation of the same schema yields the same fingerprint; changing
// any field of any binding yields a different one.
func ComputeSchemaFingerprint(bindings []DescriptorBindingInfo, frameCount, setCount int) uint64 {
	sorted := make([]DescriptorBindingInfo, len(bindings))
	copy(sorted, bindings)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Set != sorted[j].Set {
			return sorted[i].Set < sorted[j].Set
		}
		return sorted[i].Binding < sorted[j].Binding
	})

	h := fnv.New64a()
	writeU64 := func(v uint64) {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}

	writeU64(uint64(frameCount))
	writeU64(uint64(setCount))
	for _, b := range sorted {
		writeU64(uint64(b.Set))
		writeU64(uint64(b.Binding))
		writeU64(uint64(b.Type))
		writeU64(uint64(b.StageFlags))
		writeU64(uint64(b.Count))
		h.Write([]byte(b.Name))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// maxSetIndex returns the number of descriptor sets a binding list spans
// (highest set index plus one), or zero for an empty list.
func maxSetIndex(bindings []DescriptorBindingInfo) int {
	count := 0
	for _, b := range bindings {
		if int(b.Set)+1 > count {
			count = int(b.Set) + 1
		}
	}
	return count
}
