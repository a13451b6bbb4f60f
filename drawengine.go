package vkdraw

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// zeroFallbackSize is the size of the zero-filled buffer substituted for
// unresolved buffer bindings. Big enough for any reasonable uniform block.
const zeroFallbackSize = 256

// DrawEngineOptions configures engine construction.
type DrawEngineOptions struct {
	// FrameCount is the number of frames in flight; descriptor and
	// uniform storage is replicated per frame.
	FrameCount int

	// UtilQueue and UtilPool serve synchronous utility uploads such as
	// the placeholder texture.
	UtilQueue *Queue
	UtilPool  *CommandPool

	// FallbackVertexShader is SPIR-V for the vertex stage synthesized
	// when a material provides none.
	FallbackVertexShader []byte

	// PipelineCacheData seeds the driver pipeline cache, typically from
	// a previous run's snapshot.
	PipelineCacheData []byte
}

// DrawEngine owns the engine-global draw infrastructure: the pipeline and
// render pass caches, the retirement queue, the draw queue and the shared
// fallback resources every renderer leans on.
type DrawEngine struct {
	Device     *Device
	FrameCount int

	Pipelines    *GraphicsPipelineCache
	RenderPasses *RenderPassCache
	NativeCache  *NativePipelineCache
	Retire       *RetireQueue
	Queue        DrawQueue
	FrameOps     FrameOpQueue

	utilQueue *Queue
	utilPool  *CommandPool

	fallbackVertexSPIRV  []byte
	fallbackVertexShader *CompiledShader

	mu          sync.Mutex
	placeholder *Texture
	zeroBuffers map[vk.DescriptorType]*BoundBuffer

	warn warnSet
}

func (d *Device) CreateDrawEngine(opts DrawEngineOptions) (*DrawEngine, error) {
	if opts.FrameCount < 1 {
		opts.FrameCount = 1
	}

	nativeCache, err := d.CreateNativePipelineCache(opts.PipelineCacheData)
	if err != nil {
		return nil, fmt.Errorf("draw engine: native pipeline cache: %w", err)
	}

	return &DrawEngine{
		Device:              d,
		FrameCount:          opts.FrameCount,
		Pipelines:           d.CreateGraphicsPipelineCache(),
		RenderPasses:        d.CreateRenderPassCache(),
		NativeCache:         nativeCache,
		Retire:              d.CreateRetireQueue(),
		utilQueue:           opts.UtilQueue,
		utilPool:            opts.UtilPool,
		fallbackVertexSPIRV: opts.FallbackVertexShader,
		zeroBuffers:         make(map[vk.DescriptorType]*BoundBuffer),
	}, nil
}

// PlaceholderTexture returns the shared magenta 1x1 sampled texture,
// creating and uploading it on first use. The loud color makes a missing
// texture obvious in the frame instead of invisible.
func (e *DrawEngine) PlaceholderTexture() (*Texture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.placeholder != nil {
		return e.placeholder, nil
	}
	if e.utilQueue == nil || e.utilPool == nil {
		return nil, fmt.Errorf("draw engine: no utility queue for placeholder upload")
	}

	desc := TextureDesc{
		Name:   "engine.placeholder",
		Kind:   TextureKind2D,
		Format: PixelFormatRGBA8,
		Width:  1,
		Height: 1,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit),
	}
	tex := e.Device.NewTexture(desc, nil)
	if err := tex.Generate(); err != nil {
		return nil, fmt.Errorf("draw engine: placeholder: %w", err)
	}

	cmd, err := e.utilPool.AllocateBuffer()
	if err != nil {
		tex.Destroy(nil)
		return nil, err
	}
	defer e.utilPool.FreeBuffer(cmd)

	if err := cmd.BeginOneTime(); err != nil {
		tex.Destroy(nil)
		return nil, err
	}
	magenta := []byte{0xff, 0x00, 0xff, 0xff}
	if err := tex.Upload(cmd, nil, TextureDataFromPixels(magenta)); err != nil {
		tex.Destroy(nil)
		return nil, err
	}
	if err := tex.TransitionImageLayout(cmd, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		tex.Destroy(nil)
		return nil, err
	}
	if err := cmd.End(); err != nil {
		tex.Destroy(nil)
		return nil, err
	}
	if err := e.utilQueue.SubmitWaitIdle(cmd); err != nil {
		tex.Destroy(nil)
		return nil, fmt.Errorf("draw engine: placeholder upload: %w", err)
	}

	e.placeholder = tex
	return tex, nil
}

// PlaceholderImageInfo implements DescriptorFallbacks.
func (e *DrawEngine) PlaceholderImageInfo() (vk.DescriptorImageInfo, error) {
	tex, err := e.PlaceholderTexture()
	if err != nil {
		return vk.DescriptorImageInfo{}, err
	}
	return tex.CreateImageInfo()
}

// ZeroFallbackBuffer returns the shared zero-filled buffer for a descriptor
// type, created on first use.
func (e *DrawEngine) ZeroFallbackBuffer(dtype vk.DescriptorType) (*BoundBuffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.zeroBuffers[dtype]; ok {
		return b, nil
	}

	usage := vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	if dtype == vk.DescriptorTypeStorageBuffer {
		usage = vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	b, err := e.Device.CreateBoundBuffer(zeroFallbackSize, usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	if err := b.WriteBytes(make([]byte, zeroFallbackSize)); err != nil {
		b.Destroy()
		return nil, err
	}
	e.zeroBuffers[dtype] = b
	return b, nil
}

// FallbackVertexShaderStage compiles (once) and returns the engine's
// fallback vertex stage, or nil when none was configured.
func (e *DrawEngine) FallbackVertexShaderStage() (*CompiledShader, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fallbackVertexShader != nil {
		return e.fallbackVertexShader, nil
	}
	if len(e.fallbackVertexSPIRV) == 0 {
		return nil, nil
	}
	shader, err := e.Device.NewCompiledShader(e.fallbackVertexSPIRV, vk.ShaderStageVertexBit, "main")
	if err != nil {
		return nil, fmt.Errorf("draw engine: fallback vertex shader: %w", err)
	}
	e.fallbackVertexShader = shader
	return shader, nil
}

// EnqueueDraw queues a snapshot for recording at frame submission.
func (e *DrawEngine) EnqueueDraw(s PendingDrawSnapshot) {
	e.Queue.Enqueue(s)
}

// EnqueueFrameOp queues work to run on the render thread before the next
// frame's draws.
func (e *DrawEngine) EnqueueFrameOp(op func() error) {
	e.FrameOps.Enqueue(op)
}

// DrainDraws runs pending frame ops, then records every queued draw into cmd
// on the render thread.
func (e *DrawEngine) DrainDraws(cmd *CommandBuffer) {
	e.FrameOps.Drain()
	e.Queue.Drain(func(s PendingDrawSnapshot) error {
		if s.Renderer == nil {
			return fmt.Errorf("draw snapshot without renderer")
		}
		return s.Renderer.RecordDraw(cmd, s)
	})
}

// SubmitFrame submits a recorded frame with semaphore ordering, then seals
// the retirement queue behind the frame's fence so resources retired while
// recording free only after the GPU finishes, and collects any slots whose
// fences already signaled.
func (e *DrawEngine) SubmitFrame(queue *Queue, cmd *CommandBuffer,
	waits []*Semaphore, waitStages []vk.PipelineStageFlags, signals []*Semaphore, fence *Fence) error {

	if err := queue.Submit(waits, waitStages, signals, fence, cmd); err != nil {
		return err
	}

	vkFence := vk.NullFence
	if fence != nil {
		vkFence = fence.VKFence
	}
	e.Retire.Seal(vkFence)
	e.Retire.Collect()
	return nil
}

// Destroy tears the engine down. The device must be idle.
func (e *DrawEngine) Destroy() {
	e.Retire.Flush()
	e.Pipelines.Destroy()
	e.RenderPasses.Destroy()
	if e.NativeCache != nil {
		e.NativeCache.Destroy()
	}
	e.mu.Lock()
	if e.placeholder != nil {
		e.placeholder.Destroy(nil)
		e.placeholder = nil
	}
	for dtype, b := range e.zeroBuffers {
		b.Destroy()
		delete(e.zeroBuffers, dtype)
	}
	if e.fallbackVertexShader != nil {
		e.fallbackVertexShader.Destroy()
		e.fallbackVertexShader = nil
	}
	e.mu.Unlock()
}
