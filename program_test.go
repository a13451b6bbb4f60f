package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestCompiledShaderHashCoversBindings(t *testing.T) {
	a := &CompiledShader{Stage: vk.ShaderStageVertexBit, codeHash: 42}
	b := &CompiledShader{Stage: vk.ShaderStageVertexBit, codeHash: 42}
	if a.Hash() != b.Hash() {
		t.Fatal("identical stages must hash equal")
	}

	b.DescriptorBindings = []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
	}
	if a.Hash() == b.Hash() {
		t.Error("same SPIR-V with different reflected bindings must hash differently")
	}

	a.DescriptorBindings = []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeStorageBuffer, Count: 1, Name: "tint"},
	}
	if a.Hash() == b.Hash() {
		t.Error("descriptor type must be part of the hash")
	}
}

func TestCompiledShaderHashCoversAutoBlock(t *testing.T) {
	a := &CompiledShader{Stage: vk.ShaderStageFragmentBit, codeHash: 7}
	b := &CompiledShader{Stage: vk.ShaderStageFragmentBit, codeHash: 7,
		AutoUniformBlock: &AutoUniformBlock{Name: "Params", ByteSize: 16}}
	if a.Hash() == b.Hash() {
		t.Error("auto uniform block must be part of the hash")
	}
}

func vertexProgram(bindings []DescriptorBindingInfo, codeHash uint64) *RenderProgram {
	s := &CompiledShader{Stage: vk.ShaderStageVertexBit, codeHash: codeHash, DescriptorBindings: bindings}
	return &RenderProgram{
		Name:           "test",
		shaders:        map[vk.ShaderStageFlagBits]*CompiledShader{vk.ShaderStageVertexBit: s},
		mergedBindings: bindings,
		setLayouts:     make([]*DescriptorSetLayout, 1),
		linked:         true,
	}
}

func TestProgramFingerprintDistinguishesBindings(t *testing.T) {
	pa := vertexProgram(nil, 7)
	pb := vertexProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
	}, 7)

	if pa.Fingerprint() == pb.Fingerprint() {
		t.Error("same code with different merged bindings must fingerprint differently")
	}
}

func TestProgramFingerprintStableAcrossPrograms(t *testing.T) {
	bindings := []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
	}
	pa := vertexProgram(bindings, 7)
	pb := vertexProgram(bindings, 7)

	if pa.Fingerprint() != pb.Fingerprint() {
		t.Error("identical stages and bindings must share a fingerprint")
	}
}

func TestProgramFingerprintUnlinkedDoesNotPoison(t *testing.T) {
	bindings := []DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
	}
	s := &CompiledShader{Stage: vk.ShaderStageVertexBit, codeHash: 99, DescriptorBindings: bindings}

	unlinked := &RenderProgram{
		Name:    "test",
		shaders: map[vk.ShaderStageFlagBits]*CompiledShader{vk.ShaderStageVertexBit: s},
	}
	before := unlinked.Fingerprint()

	linked := vertexProgram(bindings, 99)
	if linked.Fingerprint() == before {
		t.Error("fingerprinting before link must not pin the empty schema for the linked program")
	}
}
