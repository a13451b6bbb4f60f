package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func fakeMeshCache(buffers ...*MeshBuffer) *MeshBufferCache {
	c := &MeshBufferCache{
		buffers: make(map[string]*MeshBuffer),
		indices: make(map[PrimitiveClass]*IndexBuffer),
	}
	for _, mb := range buffers {
		mb.buffer = &BoundBuffer{Buffer: &Buffer{}}
		c.buffers[mb.Name] = mb
	}
	return c
}

func TestResolveBufferBindingByName(t *testing.T) {
	var l LegacyDescriptorState
	mesh := fakeMeshCache(&MeshBuffer{Name: "bones", BindingOverride: -1})
	program := linkedProgram(nil)

	res := l.resolveBufferBinding(DescriptorBindingInfo{
		Set: 0, Binding: 3, Type: vk.DescriptorTypeStorageBuffer, Name: "bones",
	}, mesh, program)
	if res.buffer != mesh.Buffer("bones").buffer.Buffer {
		t.Error("a mesh buffer matching the binding name must win")
	}
}

func TestResolveBufferBindingByIndexPrefersStorageTagged(t *testing.T) {
	var l LegacyDescriptorState
	mesh := fakeMeshCache(
		&MeshBuffer{Name: "aux", BindingOverride: 2},
		&MeshBuffer{Name: "weights", BindingOverride: 2, StorageTarget: true},
	)
	program := linkedProgram(nil)

	res := l.resolveBufferBinding(DescriptorBindingInfo{
		Set: 0, Binding: 2, Type: vk.DescriptorTypeStorageBuffer, Name: "no_such_stream",
	}, mesh, program)
	if res.buffer != mesh.Buffer("weights").buffer.Buffer {
		t.Error("storage bindings must prefer the storage-tagged buffer at the index")
	}
}

func TestResolveBufferBindingAutoBlock(t *testing.T) {
	var l LegacyDescriptorState
	block := &AutoUniformBlock{Name: "Params", Set: 0, Binding: 1, ByteSize: 16}
	program := linkedProgram(nil, block)

	res := l.resolveBufferBinding(DescriptorBindingInfo{
		Set: 0, Binding: 1, Type: vk.DescriptorTypeUniformBuffer,
	}, nil, program)
	if res.autoBlock != block {
		t.Error("a reflected block at the binding must resolve before falling back")
	}
}

func TestResolveBufferBindingEngineUniform(t *testing.T) {
	var l LegacyDescriptorState
	program := linkedProgram(nil)

	res := l.resolveBufferBinding(DescriptorBindingInfo{
		Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Name: "engine_view",
	}, nil, program)
	if res.engineName != "engine_view" {
		t.Errorf("engine-owned names resolve to engine uniforms, got %+v", res)
	}
}

func TestResolveBufferBindingFallback(t *testing.T) {
	var l LegacyDescriptorState
	program := linkedProgram(nil)

	res := l.resolveBufferBinding(DescriptorBindingInfo{
		Set: 0, Binding: 7, Type: vk.DescriptorTypeUniformBuffer, Name: "ghost",
	}, nil, program)
	if !res.fallback {
		t.Errorf("nothing matched, expected the zero-filled fallback, got %+v", res)
	}
}

func TestResolveBufferBindingChainOrder(t *testing.T) {
	// A name match beats an index match even when both exist.
	var l LegacyDescriptorState
	mesh := fakeMeshCache(
		&MeshBuffer{Name: "bones", BindingOverride: -1},
		&MeshBuffer{Name: "other", BindingOverride: 4},
	)
	block := &AutoUniformBlock{Name: "bones", Set: 0, Binding: 4, ByteSize: 16}
	program := linkedProgram(nil, block)

	res := l.resolveBufferBinding(DescriptorBindingInfo{
		Set: 0, Binding: 4, Type: vk.DescriptorTypeStorageBuffer, Name: "bones",
	}, mesh, program)
	if res.buffer != mesh.Buffer("bones").buffer.Buffer {
		t.Error("the name match must outrank index and block matches")
	}
}
