package vkdraw

import (
	"fmt"
	"sort"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/maps"
)

// LegacyDescriptorState is the mesh renderer's own descriptor path, used
// when the material declines a program's schema. Every binding is resolved
// through a fixed priority chain instead of being declared up front, which
// keeps badly matched programs drawing with placeholders instead of
// failing the frame.
type LegacyDescriptorState struct {
	Device *Device
	Engine *DrawEngine

	pool     *DescriptorPool
	sets     [][]*DescriptorSet
	uniforms map[bindingKey]*autoBlockResource
	scalars  map[bindingKey][]*BoundBuffer

	bindings          []DescriptorBindingInfo
	schemaFingerprint uint64
	frameCount        int
	setCount          int
	setsDirty         []bool

	warn warnSet
}

// autoBlockResource backs one auto-uniform-block binding in the legacy
// path: per-frame host-visible buffers plus serialization scratch.
type autoBlockResource struct {
	Block   *AutoUniformBlock
	Buffers []*BoundBuffer
	scratch []byte
	dirty   []bool
}

func (u *autoBlockResource) markDirty() {
	for i := range u.dirty {
		u.dirty[i] = true
	}
}

func (u *autoBlockResource) destroy() {
	for _, b := range u.Buffers {
		if b != nil {
			b.Destroy()
		}
	}
	u.Buffers = nil
}

func (e *DrawEngine) createLegacyDescriptorState() *LegacyDescriptorState {
	return &LegacyDescriptorState{
		Device:   e.Device,
		Engine:   e,
		uniforms: make(map[bindingKey]*autoBlockResource),
		scalars:  make(map[bindingKey][]*BoundBuffer),
	}
}

// ensure rebuilds pool and sets when the program schema changed.
func (l *LegacyDescriptorState) ensure(program *RenderProgram, frameCount int) error {
	if frameCount < 1 {
		frameCount = 1
	}
	fp := ComputeSchemaFingerprint(program.Bindings(), frameCount, program.SetCount())
	if l.pool != nil && l.schemaFingerprint == fp && l.frameCount == frameCount && l.setCount == program.SetCount() {
		return nil
	}
	l.destroyResources()

	bindings := program.Bindings()
	if len(bindings) == 0 {
		l.bindings = nil
		l.schemaFingerprint = fp
		l.frameCount = frameCount
		l.setCount = 0
		l.setsDirty = nil
		return nil
	}

	poolBuilder := l.Device.NewDescriptorPool()
	for _, b := range bindings {
		poolBuilder.AddPoolSize(b.Type, int(b.Count)*frameCount)
	}
	pool, err := l.Device.CreateDescriptorPool(poolBuilder, frameCount*program.SetCount())
	if err != nil {
		return fmt.Errorf("legacy descriptors: pool: %w", err)
	}

	l.pool = pool
	l.sets = make([][]*DescriptorSet, frameCount)
	for frame := 0; frame < frameCount; frame++ {
		sets, err := pool.Allocate(program.SetLayouts()...)
		if err != nil {
			l.destroyResources()
			return fmt.Errorf("legacy descriptors: allocate frame %d: %w", frame, err)
		}
		l.sets[frame] = sets
	}

	l.bindings = bindings
	l.schemaFingerprint = fp
	l.frameCount = frameCount
	l.setCount = program.SetCount()
	l.setsDirty = make([]bool, frameCount)
	for i := range l.setsDirty {
		l.setsDirty[i] = true
	}
	return nil
}

// MarkDirty forces descriptor rewrites and uniform re-uploads on every
// frame slot.
func (l *LegacyDescriptorState) MarkDirty() {
	for i := range l.setsDirty {
		l.setsDirty[i] = true
	}
	for _, u := range l.uniforms {
		u.markDirty()
	}
}

// bufferResolution is the outcome of the buffer fallback chain.
type bufferResolution struct {
	buffer *Buffer
	// autoBlock is set when the binding resolved as a reflected uniform
	// block the state serializes itself.
	autoBlock *AutoUniformBlock
	// engineName is set when the binding resolved as a single engine
	// uniform value.
	engineName string
	fallback   bool
}

// resolveBufferBinding walks the chain: buffer cache by name, buffer cache
// by binding-index override (storage-tagged buffers preferred for storage
// bindings), reflected auto uniform block, engine uniform by name, and
// finally the engine's zero-filled fallback buffer. The fallback is logged
// once per binding name; leaving a required binding unwritten would be a
// validation error, which is worse than sampling zeros.
func (l *LegacyDescriptorState) resolveBufferBinding(b DescriptorBindingInfo,
	mesh *MeshBufferCache, program *RenderProgram) bufferResolution {

	if mesh != nil && b.Name != "" {
		if mb := mesh.Buffer(b.Name); mb != nil && mb.buffer != nil {
			return bufferResolution{buffer: mb.buffer.Buffer}
		}
	}

	if mesh != nil {
		var byIndex *MeshBuffer
		for _, name := range sortedBufferNames(mesh) {
			mb := mesh.Buffer(name)
			if mb.BindingOverride < 0 || uint32(mb.BindingOverride) != b.Binding || mb.buffer == nil {
				continue
			}
			// Storage bindings prefer buffers explicitly tagged as
			// storage targets.
			if b.Type == vk.DescriptorTypeStorageBuffer && mb.StorageTarget {
				byIndex = mb
				break
			}
			if byIndex == nil {
				byIndex = mb
			}
		}
		if byIndex != nil {
			return bufferResolution{buffer: byIndex.buffer.Buffer}
		}
	}

	for _, blk := range program.AutoUniformBlocks() {
		if (blk.Set == b.Set && blk.Binding == b.Binding) || (blk.Name != "" && blk.Name == b.Name) {
			return bufferResolution{autoBlock: blk}
		}
	}

	if IsEngineUniform(b.Name) {
		return bufferResolution{engineName: b.Name}
	}

	return bufferResolution{fallback: true}
}

func sortedBufferNames(mesh *MeshBufferCache) []string {
	names := maps.Keys(mesh.buffers)
	sort.Strings(names)
	return names
}

// uniformBufferFor lazily creates the per-binding per-frame buffer backing
// an auto uniform block.
func (l *LegacyDescriptorState) uniformBufferFor(key bindingKey, block *AutoUniformBlock) (*autoBlockResource, error) {
	if res, ok := l.uniforms[key]; ok && res.Block == block && len(res.Buffers) == l.frameCount {
		return res, nil
	}
	if old, ok := l.uniforms[key]; ok {
		old.destroy()
		delete(l.uniforms, key)
	}

	res := &autoBlockResource{
		Block:   block,
		Buffers: make([]*BoundBuffer, l.frameCount),
		scratch: make([]byte, block.ByteSize),
		dirty:   make([]bool, l.frameCount),
	}
	for frame := 0; frame < l.frameCount; frame++ {
		buf, err := l.Device.CreateBoundBuffer(uint64(block.ByteSize),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			res.destroy()
			return nil, err
		}
		res.Buffers[frame] = buf
		res.dirty[frame] = true
	}
	l.uniforms[key] = res
	return res, nil
}

// scalarBufferFor lazily creates the per-binding per-frame buffer backing a
// single engine uniform value.
func (l *LegacyDescriptorState) scalarBufferFor(key bindingKey, size uint32) ([]*BoundBuffer, error) {
	if bufs, ok := l.scalars[key]; ok && len(bufs) == l.frameCount && bufs[0].Buffer.Size >= uint64(size) {
		return bufs, nil
	}
	if old, ok := l.scalars[key]; ok {
		for _, b := range old {
			b.Destroy()
		}
		delete(l.scalars, key)
	}

	bufs := make([]*BoundBuffer, l.frameCount)
	for frame := 0; frame < l.frameCount; frame++ {
		buf, err := l.Device.CreateBoundBuffer(uint64(size),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			for _, b := range bufs[:frame] {
				b.Destroy()
			}
			return nil, err
		}
		bufs[frame] = buf
	}
	l.scalars[key] = bufs
	return bufs, nil
}

// imageInfoForBinding resolves one image descriptor element: the material's
// texture at (binding, arrayOffset) or the engine placeholder. Either way
// the image's declared usage must satisfy the descriptor type; a mismatch
// is a hard failure for the binding, never coerced.
func (l *LegacyDescriptorState) imageInfoForBinding(b DescriptorBindingInfo,
	material *Material, elem uint32) (vk.DescriptorImageInfo, error) {

	var tex *Texture
	if material != nil {
		tex = material.Texture(TextureSlot{Binding: b.Binding, ArrayOffset: elem})
	}
	if tex == nil {
		placeholder, err := l.Engine.PlaceholderTexture()
		if err != nil {
			return vk.DescriptorImageInfo{}, err
		}
		tex = placeholder
	}

	switch b.Type {
	case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage:
		if tex.Usage&vk.ImageUsageFlags(vk.ImageUsageSampledBit) == 0 {
			return vk.DescriptorImageInfo{}, fmt.Errorf("texture %q lacks sampled usage for set %d binding %d", tex.Desc.Name, b.Set, b.Binding)
		}
	case vk.DescriptorTypeStorageImage:
		if tex.Usage&vk.ImageUsageFlags(vk.ImageUsageStorageBit) == 0 {
			return vk.DescriptorImageInfo{}, fmt.Errorf("texture %q lacks storage usage for set %d binding %d", tex.Desc.Name, b.Set, b.Binding)
		}
	}

	info, err := tex.CreateImageInfo()
	if err != nil {
		return vk.DescriptorImageInfo{}, err
	}
	if b.Type == vk.DescriptorTypeStorageImage {
		info.ImageLayout = vk.ImageLayoutGeneral
		info.Sampler = vk.NullSampler
	}
	return info, nil
}

// BindDescriptorSets resolves every binding through the fallback chain,
// uploads dirty uniform data and binds the frame's sets.
func (l *LegacyDescriptorState) BindDescriptorSets(cmd *CommandBuffer, program *RenderProgram,
	mesh *MeshBufferCache, material *Material, rc *RenderContext, frame int) error {

	if err := l.ensure(program, l.Engine.FrameCount); err != nil {
		return err
	}
	if len(l.bindings) == 0 {
		return nil
	}
	frame = clampInt(frame, 0, l.frameCount-1)

	rewrite := l.setsDirty[frame]

	for _, b := range l.bindings {
		key := bindingKey{set: b.Set, binding: b.Binding}
		set := l.sets[frame][b.Set]

		switch b.Type {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer:
			res := l.resolveBufferBinding(b, mesh, program)
			switch {
			case res.buffer != nil:
				if rewrite {
					set.AddBuffer(int(b.Binding), b.Type, res.buffer, 0)
				}
			case res.autoBlock != nil:
				u, err := l.uniformBufferFor(key, res.autoBlock)
				if err != nil {
					return fmt.Errorf("set %d binding %d: auto uniform storage: %w", b.Set, b.Binding, err)
				}
				if err := WriteAutoUniformBlock(u.Block, u.scratch, rc, program.UniformOverrides(), materialParams(material)); err != nil {
					return fmt.Errorf("set %d binding %d: %w", b.Set, b.Binding, err)
				}
				if err := u.Buffers[frame].WriteBytes(u.scratch); err != nil {
					return fmt.Errorf("set %d binding %d: upload: %w", b.Set, b.Binding, err)
				}
				if rewrite {
					set.AddBuffer(int(b.Binding), b.Type, u.Buffers[frame].Buffer, 0)
				}
			case res.engineName != "":
				value, _ := ResolveEngineUniform(res.engineName, rc)
				size := value.Type.GPUSize()
				bufs, err := l.scalarBufferFor(key, size)
				if err != nil {
					return fmt.Errorf("set %d binding %d: engine uniform storage: %w", b.Set, b.Binding, err)
				}
				scratch := make([]byte, size)
				if err := value.WriteTo(scratch); err != nil {
					return fmt.Errorf("set %d binding %d: %w", b.Set, b.Binding, err)
				}
				if err := bufs[frame].WriteBytes(scratch); err != nil {
					return fmt.Errorf("set %d binding %d: upload: %w", b.Set, b.Binding, err)
				}
				if rewrite {
					set.AddBuffer(int(b.Binding), b.Type, bufs[frame].Buffer, 0)
				}
			default:
				l.warn.Warnf("descriptor %q (set %d binding %d) unresolved, using zero-filled fallback buffer", b.Name, b.Set, b.Binding)
				fallback, err := l.Engine.ZeroFallbackBuffer(b.Type)
				if err != nil {
					return fmt.Errorf("set %d binding %d: fallback buffer: %w", b.Set, b.Binding, err)
				}
				if rewrite {
					set.AddBuffer(int(b.Binding), b.Type, fallback.Buffer, 0)
				}
			}

		case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage, vk.DescriptorTypeStorageImage:
			if !rewrite {
				continue
			}
			for elem := uint32(0); elem < b.Count; elem++ {
				info, err := l.imageInfoForBinding(b, material, elem)
				if err != nil {
					return err
				}
				set.AddImageInfo(int(b.Binding), int(elem), b.Type, info)
			}

		default:
			l.warn.Warnf("descriptor type %d at set %d binding %d not supported by fallback path", b.Type, b.Set, b.Binding)
			return fmt.Errorf("unsupported descriptor type %d at set %d binding %d", b.Type, b.Set, b.Binding)
		}
	}

	if rewrite {
		for _, set := range l.sets[frame] {
			set.Write()
		}
		l.setsDirty[frame] = false
	}

	cmd.CmdBindDescriptorSets(vk.PipelineBindPointGraphics, program.PipelineLayout(), 0, l.sets[frame]...)
	return nil
}

func materialParams(m *Material) map[string]ShaderVar {
	if m == nil {
		return nil
	}
	return m.params
}

func (l *LegacyDescriptorState) destroyResources() {
	for key, u := range l.uniforms {
		u.destroy()
		delete(l.uniforms, key)
	}
	for key, bufs := range l.scalars {
		for _, b := range bufs {
			b.Destroy()
		}
		delete(l.scalars, key)
	}
	if l.pool != nil {
		l.pool.Destroy()
		l.pool = nil
	}
	l.sets = nil
}

// Destroy releases every owned resource.
func (l *LegacyDescriptorState) Destroy() {
	l.destroyResources()
}
