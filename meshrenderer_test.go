package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestEffectiveMaterialPrefersOverride(t *testing.T) {
	base := testMaterial(nil)
	override := testMaterial(nil)
	r := &MeshRenderer{Material: base}

	s := &PendingDrawSnapshot{}
	if r.effectiveMaterial(s) != base {
		t.Error("snapshot without override must use the renderer's material")
	}

	s.MaterialOverride = override
	if r.effectiveMaterial(s) != override {
		t.Error("snapshot override must win for this draw")
	}

	// The renderer's own material stays untouched for later draws.
	if r.Material != base {
		t.Error("override must not replace the renderer's material")
	}
}

func TestMarkPipelineDirtyClearsPipelineCache(t *testing.T) {
	pipelines := &GraphicsPipelineCache{pipelines: make(map[PipelineKey]vk.Pipeline)}
	pipelines.pipelines[PipelineKey{Topology: vk.PrimitiveTopologyTriangleList}] = vk.NullPipeline
	engine := &DrawEngine{
		Pipelines: pipelines,
		Retire:    &RetireQueue{},
	}
	r := &MeshRenderer{Engine: engine}

	r.markPipelineDirty()
	if pipelines.Len() != 0 {
		t.Errorf("cache holds %d pipelines after relink mark", pipelines.Len())
	}
	if engine.Retire.Pending() != 1 {
		t.Errorf("retire queue pending = %d, want 1", engine.Retire.Pending())
	}
}

func TestMarkMeshDirtyClearsPipelineCache(t *testing.T) {
	pipelines := &GraphicsPipelineCache{pipelines: make(map[PipelineKey]vk.Pipeline)}
	pipelines.pipelines[PipelineKey{Topology: vk.PrimitiveTopologyLineList}] = vk.NullPipeline
	engine := &DrawEngine{
		Pipelines: pipelines,
		Retire:    &RetireQueue{},
	}
	r := &MeshRenderer{Engine: engine}

	r.SetMesh(nil)
	if pipelines.Len() != 0 {
		t.Errorf("cache holds %d pipelines after mesh change", pipelines.Len())
	}
}
