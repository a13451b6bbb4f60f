package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// MeshRenderer draws one mesh with one material. Its state machine is a
// set of dirty flags rather than an explicit enum; the flag implications
// are strict: a mesh change dirties buffers, pipeline and descriptors,
// while a pipeline-only change dirties only descriptors. Each Ensure step
// is an idempotent no-op while its flag is clear.
type MeshRenderer struct {
	Engine *DrawEngine
	Name   string

	Mesh     *MeshBufferCache
	Material *Material

	// Shaders is the material-resolved stage list the generated program
	// is built from.
	Shaders []*CompiledShader

	// OnUniforms, when set, is told exactly once per recorded draw that
	// uniforms are about to be consumed, before the first bind attempt.
	OnUniforms func(*RenderContext)

	generatedProgram *RenderProgram
	vertexInput      *VertexInputState
	legacy           *LegacyDescriptorState

	meshDirty       bool
	buffersDirty    bool
	pipelineDirty   bool
	descriptorDirty bool

	warn warnSet
}

func (e *DrawEngine) CreateMeshRenderer(name string) *MeshRenderer {
	r := &MeshRenderer{Engine: e, Name: name}
	r.legacy = e.createLegacyDescriptorState()
	r.markMeshDirty()
	return r
}

func (r *MeshRenderer) markMeshDirty() {
	r.meshDirty = true
	r.buffersDirty = true
	r.pipelineDirty = true
	r.descriptorDirty = true
	r.clearPipelineCache()
}

func (r *MeshRenderer) markPipelineDirty() {
	r.pipelineDirty = true
	r.descriptorDirty = true
	r.clearPipelineCache()
}

// clearPipelineCache drops every cached pipeline when program or mesh
// linkage goes stale. Fingerprint reuse across a relink could otherwise
// serve a pipeline compiled against the old layouts.
func (r *MeshRenderer) clearPipelineCache() {
	if r.Engine == nil || r.Engine.Pipelines == nil {
		return
	}
	r.Engine.Pipelines.ClearRetired(r.Engine.Retire)
}

// SetMesh swaps the mesh; everything derived from geometry is stale.
func (r *MeshRenderer) SetMesh(mesh *MeshBufferCache) {
	r.Mesh = mesh
	r.markMeshDirty()
}

// SetMaterial swaps the material and its shader list.
func (r *MeshRenderer) SetMaterial(material *Material, shaders []*CompiledShader) {
	r.Material = material
	r.Shaders = shaders
	r.markPipelineDirty()
}

// SetShaders replaces the stage list without touching the material.
func (r *MeshRenderer) SetShaders(shaders []*CompiledShader) {
	r.Shaders = shaders
	r.markPipelineDirty()
}

// MarkDescriptorsDirty forces descriptor rewrites without a relink.
func (r *MeshRenderer) MarkDescriptorsDirty() {
	r.descriptorDirty = true
}

// EnsureProgram returns a linked program for the current shader list,
// regenerating it when the pipeline is dirty. The previous generated
// program is destroyed first so relinks never leak layouts. A missing
// vertex stage is patched with the engine's fallback vertex shader; with
// neither available the draw is skipped, throttled-warned, not failed.
func (r *MeshRenderer) EnsureProgram() (*RenderProgram, bool, error) {
	if !r.pipelineDirty && r.generatedProgram != nil && r.generatedProgram.Linked() {
		return r.generatedProgram, true, nil
	}

	if r.generatedProgram != nil {
		r.generatedProgram.Destroy()
		r.generatedProgram = nil
	}

	program := r.Engine.Device.CreateRenderProgram(r.Name)
	for _, s := range r.Shaders {
		if s != nil {
			program.AttachShader(s)
		}
	}

	if !program.HasVertexStage() {
		fallback, err := r.Engine.FallbackVertexShaderStage()
		if err != nil {
			return nil, false, err
		}
		if fallback == nil {
			r.warn.Throttledf("renderer %q: no vertex shader and no fallback configured, draw skipped", r.Name)
			program.Destroy()
			return nil, false, nil
		}
		program.AttachShader(fallback)
	}

	ok, err := program.Link()
	if err != nil {
		program.Destroy()
		return nil, false, err
	}
	if !ok {
		r.warn.Throttledf("renderer %q: program not ready to link, draw skipped", r.Name)
		program.Destroy()
		return nil, false, nil
	}

	r.generatedProgram = program
	r.pipelineDirty = false
	r.descriptorDirty = true
	return program, true, nil
}

// EnsureBuffers rebuilds the vertex input state from the mesh's streams.
func (r *MeshRenderer) EnsureBuffers() error {
	if !r.buffersDirty && r.vertexInput != nil {
		return nil
	}
	if r.Mesh == nil {
		r.vertexInput = &VertexInputState{}
		r.buffersDirty = false
		r.meshDirty = false
		return nil
	}

	input, err := BuildVertexInputState(r.Mesh.VertexStreams())
	if err != nil {
		return fmt.Errorf("renderer %q: %w", r.Name, err)
	}
	r.vertexInput = input
	r.buffersDirty = false
	r.meshDirty = false
	return nil
}

// buildPipelineKey composes the cache key purely from the per-draw
// snapshot plus the program and vertex layout fingerprints.
func (r *MeshRenderer) buildPipelineKey(s *PendingDrawSnapshot, program *RenderProgram, topology vk.PrimitiveTopology) PipelineKey {
	return PipelineKey{
		Topology:                topology,
		UsesDynamicRendering:    s.UsesDynamicRendering,
		RenderPass:              s.RenderPass,
		ColorFormat:             s.ColorFormat,
		DepthFormat:             s.DepthFormat,
		ProgramFingerprint:      program.Fingerprint(),
		VertexLayoutFingerprint: r.vertexInput.Fingerprint,
		DepthTestEnable:         s.State.DepthTestEnable,
		DepthWriteEnable:        s.State.DepthWriteEnable,
		DepthCompareOp:          s.State.DepthCompareOp,
		StencilTestEnable:       s.State.StencilTestEnable,
		StencilFront:            s.State.StencilFront,
		StencilBack:             s.State.StencilBack,
		StencilWriteMask:        s.State.StencilWriteMask,
		CullMode:                s.State.CullMode,
		FrontFace:               s.State.FrontFace,
		BlendEnable:             s.State.BlendEnable,
		ColorBlendOp:            s.State.ColorBlendOp,
		AlphaBlendOp:            s.State.AlphaBlendOp,
		SrcColorBlendFactor:     s.State.SrcColorBlendFactor,
		DstColorBlendFactor:     s.State.DstColorBlendFactor,
		SrcAlphaBlendFactor:     s.State.SrcAlphaBlendFactor,
		DstAlphaBlendFactor:     s.State.DstAlphaBlendFactor,
		ColorWriteMask:          s.State.ColorWriteMask,
	}
}

// EnsurePipeline returns a pipeline for the snapshot and topology, building
// and caching on miss. Dynamic-rendering draws with color writes enabled
// but no color format are a caller bug: skipped with a throttled warning.
func (r *MeshRenderer) EnsurePipeline(s *PendingDrawSnapshot, program *RenderProgram, topology vk.PrimitiveTopology) (vk.Pipeline, bool, error) {
	if s.UsesDynamicRendering && s.State.ColorWriteMask != 0 && s.ColorFormat == vk.FormatUndefined {
		r.warn.Throttledf("renderer %q: color writes enabled with undefined color format, draw skipped", r.Name)
		return vk.NullPipeline, false, nil
	}

	key := r.buildPipelineKey(s, program, topology)
	if p, ok := r.Engine.Pipelines.Lookup(key); ok {
		return p, true, nil
	}

	renderPass := s.RenderPass
	if s.UsesDynamicRendering {
		// The bindings predate dynamic rendering; a cached pass with
		// matching formats is render-pass compatible and serves pipeline
		// creation in its place.
		pass, err := r.Engine.RenderPasses.Get(s.ColorFormat, s.DepthFormat)
		if err != nil {
			return vk.NullPipeline, false, fmt.Errorf("renderer %q: %w", r.Name, err)
		}
		renderPass = pass
	}

	pipeline, err := r.Engine.Device.buildGraphicsPipeline(r.Engine.NativeCache, key,
		program.StageCreateInfos(), program.PipelineLayout(), r.vertexInput, renderPass)
	if err != nil {
		return vk.NullPipeline, false, fmt.Errorf("renderer %q: build pipeline: %w", r.Name, err)
	}
	return r.Engine.Pipelines.Insert(key, pipeline), true, nil
}

// vertexBuffersResolved reports whether every declared vertex binding has
// an allocated native buffer behind it.
func (r *MeshRenderer) vertexBuffersResolved() bool {
	for _, b := range r.vertexInput.Buffers {
		if b == vk.NullBuffer {
			return false
		}
	}
	return true
}

// RecordDraw records the snapshot's draw into cmd. Skeletal and blendshape
// push constants land before any geometry so the shaders read this frame's
// pose. Indexed draws are attempted in triangles, lines, points order,
// stopping at the first class with indices; a mesh with no index data at
// all falls back to a plain vertex draw.
func (r *MeshRenderer) RecordDraw(cmd *CommandBuffer, s PendingDrawSnapshot) error {
	program, ok, err := r.EnsureProgram()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := r.EnsureBuffers(); err != nil {
		return err
	}

	r.pushPose(cmd, program, &s)

	uniformsNotified := false
	notifyUniforms := func() {
		if uniformsNotified {
			return
		}
		uniformsNotified = true
		if r.OnUniforms != nil {
			r.OnUniforms(&s.Context)
		}
	}

	instanceCount := s.InstanceCount
	if instanceCount == 0 {
		instanceCount = 1
	}

	for _, class := range []PrimitiveClass{PrimitiveTriangles, PrimitiveLines, PrimitivePoints} {
		var ib *IndexBuffer
		if r.Mesh != nil {
			ib = r.Mesh.Indices(class)
		}
		if ib == nil || ib.ElementCount == 0 {
			continue
		}
		if ib.ElementSize == 1 && !r.Engine.Device.Features.IndexTypeUint8 {
			r.warn.Warnf("renderer %q: %s indices are 8-bit but device lacks uint8 index support", r.Name, class)
			continue
		}

		drawn, err := r.recordOneDraw(cmd, program, &s, class.Topology(), notifyUniforms, func() {
			cmd.CmdBindIndexBuffer(ib.VKBuffer(), 0, ib.VKIndexType())
			cmd.CmdDrawIndexed(ib.ElementCount, instanceCount, 0, 0, 0)
		})
		if err != nil {
			return err
		}
		if drawn {
			return nil
		}
	}

	// Non-indexed fallback.
	vertexCount := r.rawVertexCount()
	if vertexCount == 0 {
		return nil
	}
	_, err = r.recordOneDraw(cmd, program, &s, vk.PrimitiveTopologyTriangleList, notifyUniforms, func() {
		cmd.CmdDraw(vertexCount, instanceCount, 0, 0)
	})
	return err
}

// recordOneDraw runs one draw attempt: pipeline, vertex buffers,
// descriptors, then the caller's draw call. A missing vertex buffer aborts
// only this attempt.
func (r *MeshRenderer) recordOneDraw(cmd *CommandBuffer, program *RenderProgram,
	s *PendingDrawSnapshot, topology vk.PrimitiveTopology, notifyUniforms func(), emit func()) (bool, error) {

	pipeline, ok, err := r.EnsurePipeline(s, program, topology)
	if err != nil || !ok {
		return false, err
	}

	if !r.vertexBuffersResolved() {
		r.warn.Throttledf("renderer %q: vertex binding without a backing buffer, draw attempt skipped", r.Name)
		return false, nil
	}

	notifyUniforms()

	if err := r.bindDescriptors(cmd, program, s); err != nil {
		return false, err
	}

	cmd.CmdBindGraphicsPipeline(pipeline)
	if s.Viewport.Width != 0 {
		cmd.CmdSetViewport(s.Viewport)
		cmd.CmdSetScissor(s.Scissor)
	}
	r.vertexInput.BindVertexBuffers(cmd)
	emit()
	r.descriptorDirty = false
	return true, nil
}

// effectiveMaterial resolves the material for one draw: the snapshot's
// override when present, the renderer's own otherwise.
func (r *MeshRenderer) effectiveMaterial(s *PendingDrawSnapshot) *Material {
	if s.MaterialOverride != nil {
		return s.MaterialOverride
	}
	return r.Material
}

// bindDescriptors prefers the material's own descriptor state; the legacy
// per-binding chain only runs when the material declines the schema.
func (r *MeshRenderer) bindDescriptors(cmd *CommandBuffer, program *RenderProgram, s *PendingDrawSnapshot) error {
	if r.descriptorDirty {
		r.legacy.MarkDirty()
	}

	material := r.effectiveMaterial(s)
	if material != nil {
		if ok, reason := material.CanHandleProgramBindings(program); ok {
			state, err := material.TryEnsureState(program, r.Engine.FrameCount)
			if err != nil {
				return err
			}
			if r.descriptorDirty {
				state.MarkDirty()
			}
			return state.TryBindDescriptorSets(cmd, material, program, &s.Context, r.Engine, s.Frame)
		} else if reason != "" {
			r.warn.Warnf("renderer %q: material path declined: %s", r.Name, reason)
		}
	}

	return r.legacy.BindDescriptorSets(cmd, program, r.Mesh, material, &s.Context, s.Frame)
}

// pushPose uploads bone matrices and morph weights through the program's
// push constant range, bones first.
func (r *MeshRenderer) pushPose(cmd *CommandBuffer, program *RenderProgram, s *PendingDrawSnapshot) {
	if len(program.PushConstantRanges) == 0 {
		return
	}
	if len(s.BoneMatrices) == 0 && len(s.MorphWeights) == 0 {
		return
	}

	data := make([]byte, 0, (len(s.BoneMatrices)+len(s.MorphWeights))*4)
	data = appendFloats(data, s.BoneMatrices)
	data = appendFloats(data, s.MorphWeights)

	rng := program.PushConstantRanges[0]
	if uint32(len(data)) > rng.Size {
		data = data[:rng.Size]
	}
	cmd.CmdPushConstants(program.PipelineLayout(), rng.StageFlags, rng.Offset, data)
}

func (r *MeshRenderer) rawVertexCount() uint32 {
	if r.Mesh == nil {
		return 0
	}
	streams := r.Mesh.VertexStreams()
	if len(streams) == 0 {
		return 0
	}
	return streams[0].ElementCount
}

// Destroy releases the renderer's generated program and descriptor state.
// Mesh and material are shared and survive.
func (r *MeshRenderer) Destroy() {
	if r.generatedProgram != nil {
		r.generatedProgram.Destroy()
		r.generatedProgram = nil
	}
	r.legacy.Destroy()
}
