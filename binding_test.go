package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func sampleBindings() []DescriptorBindingInfo {
	return []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit), Count: 1, Name: "params"},
		{Set: 0, Binding: 1, Type: vk.DescriptorTypeCombinedImageSampler, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Count: 1, Name: "albedo"},
		{Set: 1, Binding: 0, Type: vk.DescriptorTypeStorageBuffer, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Count: 1, Name: "particles"},
	}
}

func TestSchemaFingerprintPermutationStable(t *testing.T) {
	b := sampleBindings()
	fp := ComputeSchemaFingerprint(b, 2, 2)

	permuted := []DescriptorBindingInfo{b[2], b[0], b[1]}
	if got := ComputeSchemaFingerprint(permuted, 2, 2); got != fp {
		t.Errorf("permuted fingerprint %x != %x", got, fp)
	}
}

func TestSchemaFingerprintSingleFieldChange(t *testing.T) {
	base := sampleBindings()
	fp := ComputeSchemaFingerprint(base, 2, 2)

	mutations := []func([]DescriptorBindingInfo){
		func(b []DescriptorBindingInfo) { b[0].Type = vk.DescriptorTypeStorageBuffer },
		func(b []DescriptorBindingInfo) { b[0].Count = 2 },
		func(b []DescriptorBindingInfo) { b[0].StageFlags |= vk.ShaderStageFlags(vk.ShaderStageFragmentBit) },
		func(b []DescriptorBindingInfo) { b[0].Name = "other" },
		func(b []DescriptorBindingInfo) { b[1].Binding = 2 },
	}
	for i, mutate := range mutations {
		b := sampleBindings()
		mutate(b)
		if got := ComputeSchemaFingerprint(b, 2, 2); got == fp {
			t.Errorf("mutation %d did not change fingerprint", i)
		}
	}

	if ComputeSchemaFingerprint(base, 3, 2) == fp {
		t.Error("frame count change did not change fingerprint")
	}
	if ComputeSchemaFingerprint(base, 2, 3) == fp {
		t.Error("set count change did not change fingerprint")
	}
}

func TestMergeDescriptorBindingsUnionsStages(t *testing.T) {
	vert := []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit), Count: 1, Name: "params"},
	}
	frag := []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Count: 1},
		{Set: 0, Binding: 1, Type: vk.DescriptorTypeCombinedImageSampler, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Count: 1, Name: "albedo"},
	}

	merged, err := MergeDescriptorBindings(vert, frag)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged bindings, got %d", len(merged))
	}

	want := vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	if merged[0].StageFlags != want {
		t.Errorf("stage flags not unioned: got %x", merged[0].StageFlags)
	}
	if merged[0].Name != "params" {
		t.Errorf("name from the named stage must win, got %q", merged[0].Name)
	}
}

func TestMergeDescriptorBindingsConflict(t *testing.T) {
	vert := []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1},
	}
	frag := []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeStorageBuffer, Count: 1},
	}
	if _, err := MergeDescriptorBindings(vert, frag); err == nil {
		t.Fatal("conflicting types at the same slot must fail")
	}

	frag[0].Type = vk.DescriptorTypeUniformBuffer
	frag[0].Count = 4
	if _, err := MergeDescriptorBindings(vert, frag); err == nil {
		t.Fatal("conflicting counts at the same slot must fail")
	}
}

func TestMergeDescriptorBindingsSorted(t *testing.T) {
	stages := []DescriptorBindingInfo{
		{Set: 1, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1},
		{Set: 0, Binding: 2, Type: vk.DescriptorTypeUniformBuffer, Count: 1},
		{Set: 0, Binding: 1, Type: vk.DescriptorTypeUniformBuffer, Count: 1},
	}
	merged, err := MergeDescriptorBindings(stages)
	if err != nil {
		t.Fatal(err)
	}
	order := [][2]uint32{{0, 1}, {0, 2}, {1, 0}}
	for i, want := range order {
		if merged[i].Set != want[0] || merged[i].Binding != want[1] {
			t.Errorf("position %d: got (%d,%d), want (%d,%d)", i, merged[i].Set, merged[i].Binding, want[0], want[1])
		}
	}
}
