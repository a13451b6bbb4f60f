package vkdraw

import (
	"log"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// DrawState is the raster and output-merger state a draw snapshot carries;
// it becomes part of the pipeline key verbatim.
type DrawState struct {
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

// DefaultDrawState mirrors a conventional opaque draw: depth test and write
// on with less-than comparison, back-face culling, blending off and all
// color channels written.
func DefaultDrawState() DrawState {
	return DrawState{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthCompareOp:   vk.CompareOpLess,
		CullMode:         vk.CullModeBackBit,
		FrontFace:        vk.FrontFaceCounterClockwise,
		ColorWriteMask: vk.ColorComponentFlagBits(vk.ColorComponentRBit |
			vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
}

// PendingDrawSnapshot is one queued draw, captured by value at enqueue time
// so later mutations to the renderer do not bleed into already queued work.
type PendingDrawSnapshot struct {
	Renderer *MeshRenderer
	Context  RenderContext
	State    DrawState

	// MaterialOverride, when non-nil, replaces the renderer's material for
	// this draw only.
	MaterialOverride *Material

	// Viewport and Scissor feed the pipeline's dynamic state. A
	// zero-width viewport means the caller set both earlier in the pass.
	Viewport vk.Viewport
	Scissor  vk.Rect2D

	UsesDynamicRendering bool
	RenderPass           vk.RenderPass
	ColorFormat          vk.Format
	DepthFormat          vk.Format

	// MorphWeights and BoneMatrices feed the push constant range before
	// any geometry is bound; nil when the renderer has none.
	MorphWeights []float32
	BoneMatrices []float32

	InstanceCount uint32
	Frame         int
}

// DrawQueue collects draw snapshots across goroutines for single-threaded
// recording at frame submission.
type DrawQueue struct {
	mu    sync.Mutex
	items []PendingDrawSnapshot
}

// Enqueue appends a snapshot.
func (q *DrawQueue) Enqueue(s PendingDrawSnapshot) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
}

// Len returns the queued draw count.
func (q *DrawQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain records every queued draw through record and always leaves the
// queue empty, even when individual draws fail or panic. A failed draw is
// logged and skipped so one bad material cannot wedge the frame.
func (q *DrawQueue) Drain(record func(PendingDrawSnapshot) error) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for i := range items {
		drainOne(&items[i], record)
	}
}

func drainOne(s *PendingDrawSnapshot, record func(PendingDrawSnapshot) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("draw queue: panic recording draw: %v", r)
		}
	}()
	if err := record(*s); err != nil {
		log.Printf("draw queue: draw skipped: %v", err)
	}
}

// FrameOpQueue collects arbitrary deferred work (uploads, state edits) from
// any goroutine, ran on the render thread before the frame's draws. Like the
// draw queue, a drain always empties it and a failed op is logged, not fatal.
type FrameOpQueue struct {
	mu  sync.Mutex
	ops []func() error
}

// Enqueue appends one op.
func (q *FrameOpQueue) Enqueue(op func() error) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
}

// Len returns the queued op count.
func (q *FrameOpQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Drain runs every queued op and leaves the queue empty.
func (q *FrameOpQueue) Drain() {
	q.mu.Lock()
	ops := q.ops
	q.ops = nil
	q.mu.Unlock()

	for _, op := range ops {
		runFrameOp(op)
	}
}

func runFrameOp(op func() error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("frame op queue: panic: %v", r)
		}
	}()
	if err := op(); err != nil {
		log.Printf("frame op queue: op failed: %v", err)
	}
}
