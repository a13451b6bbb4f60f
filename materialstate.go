package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// maxMaterialImageArray bounds the combined-image-sampler array size the
// material path is willing to serve. Larger arrays (bindless-style tables)
// fall back to the engine's per-binding resolution.
const maxMaterialImageArray = 32

// DescriptorFallbacks supplies last-resort descriptor contents when a
// material has nothing for a slot.
type DescriptorFallbacks interface {
	PlaceholderImageInfo() (vk.DescriptorImageInfo, error)
}

// UniformBindingResource is the per-binding uniform storage a descriptor
// state owns: one host-visible buffer per frame in flight, each serialized
// from the named material parameter at offset zero of its own buffer.
type UniformBindingResource struct {
	Param   string
	Buffers []*BoundBuffer
	scratch []byte
	dirty   []bool
}

func (u *UniformBindingResource) markDirty() {
	for i := range u.dirty {
		u.dirty[i] = true
	}
}

func (u *UniformBindingResource) destroy() {
	for _, b := range u.Buffers {
		if b != nil {
			b.Destroy()
		}
	}
	u.Buffers = nil
}

// ProgramDescriptorState is a material's derived descriptor state for one
// program schema: a pool, per-frame descriptor sets and per-binding uniform
// buffers. The schema fingerprint it was built for is recorded so a changed
// program (or frame/set count) is detected and the state rebuilt instead of
// binding stale layouts.
type ProgramDescriptorState struct {
	Device *Device

	pool     *DescriptorPool
	sets     [][]*DescriptorSet
	uniforms map[bindingKey]*UniformBindingResource

	bindings          []DescriptorBindingInfo
	schemaFingerprint uint64
	frameCount        int
	setCount          int

	setsDirty []bool
	warn      warnSet
}

// MarkDirty flags every frame's uniforms and descriptor writes for refresh.
func (s *ProgramDescriptorState) MarkDirty() {
	for _, u := range s.uniforms {
		u.markDirty()
	}
	for i := range s.setsDirty {
		s.setsDirty[i] = true
	}
}

// MarkValuesDirty flags only the uniform contents for re-upload. The
// descriptor writes still point at the same buffers and stay valid, so a
// parameter value edit costs an upload, not a rewrite.
func (s *ProgramDescriptorState) MarkValuesDirty() {
	for _, u := range s.uniforms {
		u.markDirty()
	}
}

// matchesSchema reports whether the state was built for this exact schema
// fingerprint and frame/set shape.
func (s *ProgramDescriptorState) matchesSchema(fp uint64, frameCount, setCount int) bool {
	return s.schemaFingerprint == fp && s.frameCount == frameCount && s.setCount == setCount
}

// CanHandleProgramBindings decides whether the material descriptor path can
// serve a program's schema. The returned reason is empty on success.
// The material owns parameter-named uniform buffers only: a uniform buffer
// whose name matches a material parameter with a known GPU size. Engine-named
// buffers and buffers resolving to a reflected auto uniform block stay with
// the engine path, as do image arrays beyond the cap, texel bindings with no
// registered view and descriptor types the material cannot write.
func (m *Material) CanHandleProgramBindings(program *RenderProgram) (bool, string) {
	if !program.Linked() {
		return false, "program not linked"
	}

	blocks := program.AutoUniformBlocks()
	blockFor := func(b DescriptorBindingInfo) *AutoUniformBlock {
		for _, blk := range blocks {
			if blk.Set == b.Set && blk.Binding == b.Binding {
				return blk
			}
			if blk.Name != "" && blk.Name == b.Name {
				return blk
			}
		}
		return nil
	}

	for _, b := range program.Bindings() {
		switch b.Type {
		case vk.DescriptorTypeCombinedImageSampler:
			if b.Count > maxMaterialImageArray {
				return false, fmt.Sprintf("image array at set %d binding %d has %d elements (cap %d)", b.Set, b.Binding, b.Count, maxMaterialImageArray)
			}
		case vk.DescriptorTypeUniformBuffer:
			if IsEngineUniform(b.Name) {
				return false, fmt.Sprintf("uniform buffer %q at set %d binding %d is engine-owned", b.Name, b.Set, b.Binding)
			}
			if blk := blockFor(b); blk != nil {
				return false, fmt.Sprintf("uniform buffer at set %d binding %d resolves to auto uniform block %q, which the engine fills", b.Set, b.Binding, blk.Name)
			}
			param, ok := m.params[b.Name]
			if !ok {
				return false, fmt.Sprintf("uniform buffer %q at set %d binding %d matches no material parameter", b.Name, b.Set, b.Binding)
			}
			if param.Type.GPUSize() == 0 {
				return false, fmt.Sprintf("material parameter %q has no known GPU size", b.Name)
			}
		case vk.DescriptorTypeUniformTexelBuffer, vk.DescriptorTypeStorageTexelBuffer:
			if m.TexelBuffer(b.Binding) == nil {
				return false, fmt.Sprintf("texel buffer at set %d binding %d has no registered view", b.Set, b.Binding)
			}
		default:
			return false, fmt.Sprintf("descriptor type %d at set %d binding %d not supported by material path", b.Type, b.Set, b.Binding)
		}
	}
	return true, ""
}

// TryEnsureState returns descriptor state matching the program's current
// schema, building or rebuilding it as needed. A fingerprint or count
// mismatch destroys the old state; descriptor sets referencing the old
// layouts must never be bound again.
func (m *Material) TryEnsureState(program *RenderProgram, frameCount int) (*ProgramDescriptorState, error) {
	if frameCount < 1 {
		frameCount = 1
	}
	fp := ComputeSchemaFingerprint(program.Bindings(), frameCount, program.SetCount())

	key := program.Fingerprint()
	if state, ok := m.cachedState(key, fp, frameCount, program.SetCount()); ok {
		return state, nil
	}

	state, err := m.buildState(program, frameCount, fp)
	if err != nil {
		return nil, err
	}
	m.states[key] = state
	return state, nil
}

// cachedState returns the cached state for a program key when it still
// matches the schema; a stale state is destroyed and evicted so its sets,
// built against the old layouts, can never be bound again.
func (m *Material) cachedState(key, fp uint64, frameCount, setCount int) (*ProgramDescriptorState, bool) {
	state, ok := m.states[key]
	if !ok {
		return nil, false
	}
	if state.matchesSchema(fp, frameCount, setCount) {
		return state, true
	}
	state.Destroy()
	delete(m.states, key)
	return nil, false
}

func (m *Material) buildState(program *RenderProgram, frameCount int, fp uint64) (*ProgramDescriptorState, error) {
	bindings := program.Bindings()
	setCount := program.SetCount()

	poolBuilder := m.Device.NewDescriptorPool()
	for _, b := range bindings {
		poolBuilder.AddPoolSize(b.Type, int(b.Count)*frameCount)
	}
	pool, err := m.Device.CreateDescriptorPool(poolBuilder, frameCount*setCount)
	if err != nil {
		return nil, fmt.Errorf("material %q: descriptor pool: %w", m.Name, err)
	}

	state := &ProgramDescriptorState{
		Device:            m.Device,
		pool:              pool,
		sets:              make([][]*DescriptorSet, frameCount),
		uniforms:          make(map[bindingKey]*UniformBindingResource),
		bindings:          bindings,
		schemaFingerprint: fp,
		frameCount:        frameCount,
		setCount:          setCount,
		setsDirty:         make([]bool, frameCount),
	}

	for frame := 0; frame < frameCount; frame++ {
		sets, err := pool.Allocate(program.SetLayouts()...)
		if err != nil {
			state.Destroy()
			return nil, fmt.Errorf("material %q: allocate frame %d sets: %w", m.Name, frame, err)
		}
		state.sets[frame] = sets
		state.setsDirty[frame] = true
	}

	for _, b := range bindings {
		if b.Type != vk.DescriptorTypeUniformBuffer {
			continue
		}
		param, ok := m.params[b.Name]
		if !ok {
			state.Destroy()
			return nil, fmt.Errorf("material %q: uniform buffer %q matches no material parameter", m.Name, b.Name)
		}
		size := param.Type.GPUSize()
		if size == 0 {
			state.Destroy()
			return nil, fmt.Errorf("material %q: parameter %q has no known GPU size", m.Name, b.Name)
		}

		res := &UniformBindingResource{
			Param:   b.Name,
			Buffers: make([]*BoundBuffer, frameCount),
			scratch: make([]byte, size),
			dirty:   make([]bool, frameCount),
		}
		for frame := 0; frame < frameCount; frame++ {
			buf, err := m.Device.CreateBoundBuffer(uint64(size),
				vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
				vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
			if err != nil {
				res.destroy()
				state.Destroy()
				return nil, fmt.Errorf("material %q: uniform buffer for parameter %q: %w", m.Name, b.Name, err)
			}
			res.Buffers[frame] = buf
			res.dirty[frame] = true
		}
		state.uniforms[bindingKey{set: b.Set, binding: b.Binding}] = res
	}

	return state, nil
}

// TryBindDescriptorSets refreshes and binds the material's descriptor sets
// for one frame. The frame index is clamped into range; dirty uniforms are
// re-serialized and uploaded, dirty sets rewritten. A binding the state
// cannot populate fails the bind for this frame and is logged once.
func (s *ProgramDescriptorState) TryBindDescriptorSets(cmd *CommandBuffer, m *Material, program *RenderProgram,
	rc *RenderContext, fallbacks DescriptorFallbacks, frame int) error {
	return s.tryBind(cmd, m, program, rc, fallbacks, frame, vk.PipelineBindPointGraphics)
}

// TryBindComputeDescriptorSets is the compute-dispatch variant; same refresh
// and write path, compute bind point.
func (s *ProgramDescriptorState) TryBindComputeDescriptorSets(cmd *CommandBuffer, m *Material, program *RenderProgram,
	rc *RenderContext, fallbacks DescriptorFallbacks, frame int) error {
	return s.tryBind(cmd, m, program, rc, fallbacks, frame, vk.PipelineBindPointCompute)
}

func (s *ProgramDescriptorState) tryBind(cmd *CommandBuffer, m *Material, program *RenderProgram,
	rc *RenderContext, fallbacks DescriptorFallbacks, frame int, bindPoint vk.PipelineBindPoint) error {

	frame = clampInt(frame, 0, s.frameCount-1)

	for key, u := range s.uniforms {
		if !u.dirty[frame] {
			continue
		}
		value, ok := m.params[u.Param]
		if !ok {
			s.warn.Warnf("material %q: parameter %q for set %d binding %d disappeared", m.Name, u.Param, key.set, key.binding)
			return fmt.Errorf("material %q: parameter %q missing", m.Name, u.Param)
		}
		if err := value.WriteTo(u.scratch); err != nil {
			s.warn.Warnf("material %q: set %d binding %d: %v", m.Name, key.set, key.binding, err)
			return err
		}
		if err := u.Buffers[frame].WriteBytes(u.scratch); err != nil {
			return fmt.Errorf("material %q: upload parameter %q: %w", m.Name, u.Param, err)
		}
		u.dirty[frame] = false
	}

	if s.setsDirty[frame] {
		if err := s.rewriteSets(m, fallbacks, frame); err != nil {
			return err
		}
		s.setsDirty[frame] = false
	}

	cmd.CmdBindDescriptorSets(bindPoint, program.PipelineLayout(), 0, s.sets[frame]...)
	return nil
}

func (s *ProgramDescriptorState) rewriteSets(m *Material, fallbacks DescriptorFallbacks, frame int) error {
	for _, b := range s.bindings {
		set := s.sets[frame][b.Set]
		switch b.Type {
		case vk.DescriptorTypeUniformBuffer:
			res := s.uniforms[bindingKey{set: b.Set, binding: b.Binding}]
			if res == nil {
				s.warn.Warnf("material %q: no uniform storage for set %d binding %d", m.Name, b.Set, b.Binding)
				return fmt.Errorf("material %q: no uniform storage for set %d binding %d", m.Name, b.Set, b.Binding)
			}
			set.AddBuffer(int(b.Binding), vk.DescriptorTypeUniformBuffer, res.Buffers[frame].Buffer, 0)
		case vk.DescriptorTypeCombinedImageSampler:
			for elem := uint32(0); elem < b.Count; elem++ {
				info, err := s.imageInfoFor(m, fallbacks, b.Binding, elem)
				if err != nil {
					s.warn.Warnf("material %q: set %d binding %d[%d]: %v", m.Name, b.Set, b.Binding, elem, err)
					return err
				}
				set.AddImageInfo(int(b.Binding), int(elem), vk.DescriptorTypeCombinedImageSampler, info)
			}
		case vk.DescriptorTypeUniformTexelBuffer, vk.DescriptorTypeStorageTexelBuffer:
			view := m.TexelBuffer(b.Binding)
			if view == nil {
				s.warn.Warnf("material %q: no texel buffer view for set %d binding %d", m.Name, b.Set, b.Binding)
				return fmt.Errorf("material %q: no texel buffer view for set %d binding %d", m.Name, b.Set, b.Binding)
			}
			set.AddTexelBufferView(int(b.Binding), b.Type, view.VKBufferView)
		default:
			s.warn.Warnf("material %q: descriptor type %d at set %d binding %d not writable by material path", m.Name, b.Type, b.Set, b.Binding)
			return fmt.Errorf("material %q: unsupported descriptor type %d", m.Name, b.Type)
		}
	}

	for _, set := range s.sets[frame] {
		set.Write()
	}
	return nil
}

func (s *ProgramDescriptorState) imageInfoFor(m *Material, fallbacks DescriptorFallbacks, binding, elem uint32) (vk.DescriptorImageInfo, error) {
	if tex := m.Texture(TextureSlot{Binding: binding, ArrayOffset: elem}); tex != nil {
		return tex.CreateImageInfo()
	}
	if fallbacks == nil {
		return vk.DescriptorImageInfo{}, fmt.Errorf("no texture and no fallback provider")
	}
	return fallbacks.PlaceholderImageInfo()
}

// Destroy frees the pool and uniform buffers. Descriptor sets die with the
// pool.
func (s *ProgramDescriptorState) Destroy() {
	for _, u := range s.uniforms {
		u.destroy()
	}
	s.uniforms = make(map[bindingKey]*UniformBindingResource)
	if s.pool != nil {
		s.pool.Destroy()
		s.pool = nil
	}
	s.sets = nil
}
