package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestGraphicsPipelineCacheHitMiss(t *testing.T) {
	c := &GraphicsPipelineCache{pipelines: make(map[PipelineKey]vk.Pipeline)}

	key := PipelineKey{
		Topology:           vk.PrimitiveTopologyTriangleList,
		ProgramFingerprint: 0xabc,
		DepthTestEnable:    true,
	}
	if _, ok := c.Lookup(key); ok {
		t.Fatal("empty cache must miss")
	}
	if c.Misses() != 1 || c.Hits() != 0 {
		t.Errorf("hits=%d misses=%d", c.Hits(), c.Misses())
	}

	var p vk.Pipeline
	c.Insert(key, p)
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
	if _, ok := c.Lookup(key); !ok {
		t.Fatal("inserted key must hit")
	}
	if c.Hits() != 1 {
		t.Errorf("hits = %d", c.Hits())
	}
}

func TestPipelineKeySingleFieldMiss(t *testing.T) {
	c := &GraphicsPipelineCache{pipelines: make(map[PipelineKey]vk.Pipeline)}

	base := PipelineKey{
		Topology:                vk.PrimitiveTopologyTriangleList,
		ProgramFingerprint:      1,
		VertexLayoutFingerprint: 2,
		ColorWriteMask:          vk.ColorComponentFlagBits(0xf),
	}
	var p vk.Pipeline
	c.Insert(base, p)

	variants := []PipelineKey{base, base, base, base}
	variants[0].ColorWriteMask = vk.ColorComponentFlagBits(0x7)
	variants[1].Topology = vk.PrimitiveTopologyLineList
	variants[2].VertexLayoutFingerprint = 3
	variants[3].BlendEnable = true

	for i, key := range variants {
		if _, ok := c.Lookup(key); ok {
			t.Errorf("variant %d must miss", i)
		}
		c.Insert(key, p)
	}
	if c.Len() != 5 {
		t.Errorf("len = %d, each variant compiles separately", c.Len())
	}

	if _, ok := c.Lookup(base); !ok {
		t.Error("base key must survive variant inserts")
	}
}

func TestPipelineCacheClearRetired(t *testing.T) {
	c := &GraphicsPipelineCache{pipelines: make(map[PipelineKey]vk.Pipeline)}
	c.pipelines[PipelineKey{Topology: vk.PrimitiveTopologyTriangleList}] = vk.NullPipeline
	c.pipelines[PipelineKey{Topology: vk.PrimitiveTopologyLineList}] = vk.NullPipeline

	retire := &RetireQueue{}
	c.ClearRetired(retire)

	if c.Len() != 0 {
		t.Errorf("cache holds %d pipelines after clear", c.Len())
	}
	if retire.Pending() != 2 {
		t.Errorf("retire queue pending = %d, want 2", retire.Pending())
	}
}
