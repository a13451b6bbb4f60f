package vkdraw

import (
	"sync"
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// StencilFaceState is the per-face stencil configuration folded into a
// pipeline key.
type StencilFaceState struct {
	FailOp      vk.StencilOp
	PassOp      vk.StencilOp
	DepthFailOp vk.StencilOp
	CompareOp   vk.CompareOp
	CompareMask uint32
	Reference   uint32
}

// PipelineKey captures every input that changes compiled pipeline state.
// It is a plain comparable struct so it can key a map directly; two draws
// with equal keys share a pipeline, and any single field difference misses.
type PipelineKey struct {
	Topology vk.PrimitiveTopology

	UsesDynamicRendering bool
	RenderPass           vk.RenderPass
	ColorFormat          vk.Format
	DepthFormat          vk.Format

	ProgramFingerprint      uint64
	VertexLayoutFingerprint uint64

	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   vk.CompareOp

	StencilTestEnable bool
	StencilFront      StencilFaceState
	StencilBack       StencilFaceState
	StencilWriteMask  uint32

	CullMode  vk.CullModeFlagBits
	FrontFace vk.FrontFace

	BlendEnable         bool
	ColorBlendOp        vk.BlendOp
	AlphaBlendOp        vk.BlendOp
	SrcColorBlendFactor vk.BlendFactor
	DstColorBlendFactor vk.BlendFactor
	SrcAlphaBlendFactor vk.BlendFactor
	DstAlphaBlendFactor vk.BlendFactor
	ColorWriteMask      vk.ColorComponentFlagBits
}

// GraphicsPipelineCache maps pipeline keys to compiled pipelines. Pipelines
// must be destroyed deterministically, so the cache is a plain owned map
// with explicit Clear rather than an evicting cache; hit and miss counters
// are kept for diagnostics.
type GraphicsPipelineCache struct {
	Device *Device

	mu        sync.Mutex
	pipelines map[PipelineKey]vk.Pipeline

	hits   atomic.Uint64
	misses atomic.Uint64
}

func (d *Device) CreateGraphicsPipelineCache() *GraphicsPipelineCache {
	return &GraphicsPipelineCache{
		Device:    d,
		pipelines: make(map[PipelineKey]vk.Pipeline),
	}
}

// Lookup returns the cached pipeline for a key.
func (c *GraphicsPipelineCache) Lookup(key PipelineKey) (vk.Pipeline, bool) {
	c.mu.Lock()
	p, ok := c.pipelines[key]
	c.mu.Unlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return p, ok
}

// Insert stores a freshly compiled pipeline. If another goroutine raced to
// the same key the earlier pipeline wins and the new one is destroyed.
func (c *GraphicsPipelineCache) Insert(key PipelineKey, pipeline vk.Pipeline) vk.Pipeline {
	c.mu.Lock()
	if existing, ok := c.pipelines[key]; ok {
		c.mu.Unlock()
		vk.DestroyPipeline(c.Device.VKDevice, pipeline, nil)
		return existing
	}
	c.pipelines[key] = pipeline
	c.mu.Unlock()
	return pipeline
}

// Len returns the number of cached pipelines.
func (c *GraphicsPipelineCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines)
}

// Hits and Misses report lookup statistics.
func (c *GraphicsPipelineCache) Hits() uint64   { return c.hits.Load() }
func (c *GraphicsPipelineCache) Misses() uint64 { return c.misses.Load() }

// ClearRetired empties the cache, handing every pipeline to the retire
// queue so in-flight frames finish with it first. A nil retire queue
// destroys immediately, as Clear does.
func (c *GraphicsPipelineCache) ClearRetired(retire *RetireQueue) {
	if retire == nil {
		c.Clear()
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, p := range c.pipelines {
		pipeline := p
		retire.Retire(func() {
			vk.DestroyPipeline(c.Device.VKDevice, pipeline, nil)
		})
		delete(c.pipelines, key)
	}
}

// Clear destroys every cached pipeline. The device must be idle.
func (c *GraphicsPipelineCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, p := range c.pipelines {
		vk.DestroyPipeline(c.Device.VKDevice, p, nil)
		delete(c.pipelines, key)
	}
}

func (c *GraphicsPipelineCache) Destroy() {
	c.Clear()
}

// NativePipelineCache wraps the driver-level pipeline cache object, useful
// for persisting compiled state between runs.
type NativePipelineCache struct {
	Device          *Device
	VKPipelineCache vk.PipelineCache
}

func (d *Device) CreateNativePipelineCache(initialData []byte) (*NativePipelineCache, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType:           vk.StructureTypePipelineCacheCreateInfo,
		InitialDataSize: uint(len(initialData)),
	}
	if len(initialData) > 0 {
		createInfo.PInitialData = unsafe.Pointer(&initialData[0])
	}

	var cache vk.PipelineCache
	err := vk.Error(vk.CreatePipelineCache(d.VKDevice, &createInfo, nil, &cache))
	if err != nil {
		return nil, err
	}
	return &NativePipelineCache{Device: d, VKPipelineCache: cache}, nil
}

// Data snapshots the driver cache contents for persistence.
func (n *NativePipelineCache) Data() ([]byte, error) {
	var size uint
	err := vk.Error(vk.GetPipelineCacheData(n.Device.VKDevice, n.VKPipelineCache, &size, nil))
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	err = vk.Error(vk.GetPipelineCacheData(n.Device.VKDevice, n.VKPipelineCache, &size, unsafe.Pointer(&data[0])))
	if err != nil {
		return nil, err
	}
	return data[:size], nil
}

func (n *NativePipelineCache) Destroy() {
	vk.DestroyPipelineCache(n.Device.VKDevice, n.VKPipelineCache, nil)
}
