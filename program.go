package vkdraw

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/gogpu/gg/cache"
	vk "github.com/vulkan-go/vulkan"
)

// programFingerprints memoizes the binding-schema portion of program
// fingerprints. Entries are pure values recomputed on eviction, so LRU
// pressure only costs time, never correctness.
var programFingerprints = cache.NewSharded[uint64, uint64](512, cache.Uint64Hasher)

// RenderProgram is a set of compiled shader stages linked into shared
// descriptor set layouts and a pipeline layout. Attaching or removing a
// stage unlinks the program; Link may be retried until every stage is
// present.
type RenderProgram struct {
	Device *Device
	Name   string

	shaders map[vk.ShaderStageFlagBits]*CompiledShader

	linked         bool
	mergedBindings []DescriptorBindingInfo
	setLayouts     []*DescriptorSetLayout
	pipelineLayout *PipelineLayout

	PushConstantRanges []vk.PushConstantRange

	// uniformOverrides beat material parameters when auto uniform blocks
	// are serialized for this program. Values only; they never change the
	// schema or the fingerprint.
	uniformOverrides map[string]ShaderVar

	fingerprint      uint64
	fingerprintValid bool
}

func (d *Device) CreateRenderProgram(name string) *RenderProgram {
	return &RenderProgram{
		Device:  d,
		Name:    name,
		shaders: make(map[vk.ShaderStageFlagBits]*CompiledShader),
	}
}

// AttachShader installs a stage, replacing any previous shader for that
// stage, and unlinks the program.
func (p *RenderProgram) AttachShader(shader *CompiledShader) {
	p.shaders[shader.Stage] = shader
	p.unlink()
}

// RemoveShader detaches a stage and unlinks the program. The shader itself
// is not destroyed; stages may be shared between programs.
func (p *RenderProgram) RemoveShader(stage vk.ShaderStageFlagBits) {
	if _, ok := p.shaders[stage]; !ok {
		return
	}
	delete(p.shaders, stage)
	p.unlink()
}

func (p *RenderProgram) unlink() {
	p.destroyLayouts()
	p.linked = false
	p.mergedBindings = nil
	p.fingerprintValid = false
}

func (p *RenderProgram) destroyLayouts() {
	for _, l := range p.setLayouts {
		if l != nil {
			l.Destroy()
		}
	}
	p.setLayouts = nil
	if p.pipelineLayout != nil {
		p.pipelineLayout.Destroy()
		p.pipelineLayout = nil
	}
}

// HasVertexStage reports whether a vertex shader is attached.
func (p *RenderProgram) HasVertexStage() bool {
	_, ok := p.shaders[vk.ShaderStageVertexBit]
	return ok
}

// Shader returns the attached stage, or nil.
func (p *RenderProgram) Shader(stage vk.ShaderStageFlagBits) *CompiledShader {
	return p.shaders[stage]
}

// Link merges the attached stages' descriptor bindings and builds the set
// and pipeline layouts. It returns (false, nil) when no stages are attached
// yet, so callers may retry on a later frame; an error is reserved for
// genuinely fatal conditions such as conflicting bindings or failed layout
// creation. Linking an already linked program is a cheap no-op.
func (p *RenderProgram) Link() (bool, error) {
	if p.linked {
		return true, nil
	}
	if len(p.shaders) == 0 {
		return false, nil
	}

	stageBindings := make([][]DescriptorBindingInfo, 0, len(p.shaders))
	for _, s := range p.sortedShaders() {
		stageBindings = append(stageBindings, s.DescriptorBindings)
	}

	merged, err := MergeDescriptorBindings(stageBindings...)
	if err != nil {
		return false, fmt.Errorf("program %q: %w", p.Name, err)
	}

	if err := p.buildDescriptorLayoutsShared(merged); err != nil {
		return false, fmt.Errorf("program %q: %w", p.Name, err)
	}

	p.mergedBindings = merged
	p.linked = true
	p.fingerprintValid = false
	return true, nil
}

// buildDescriptorLayoutsShared creates one descriptor set layout per set
// index in ascending order, with an empty layout filling any gap so the
// pipeline layout's set order stays dense, then creates the pipeline
// layout. A program with no bindings still gets a pipeline layout so push
// constants work.
func (p *RenderProgram) buildDescriptorLayoutsShared(bindings []DescriptorBindingInfo) error {
	p.destroyLayouts()

	setCount := maxSetIndex(bindings)
	layouts := make([]*DescriptorSetLayout, setCount)
	for set := 0; set < setCount; set++ {
		layoutBuilder := p.Device.NewDescriptorSetLayout()
		for _, b := range bindings {
			if int(b.Set) != set {
				continue
			}
			layoutBuilder.AddBinding(vk.DescriptorSetLayoutBinding{
				Binding:         b.Binding,
				DescriptorType:  b.Type,
				DescriptorCount: b.Count,
				StageFlags:      b.StageFlags,
			})
		}
		layout, err := p.Device.CreateDescriptorSetLayout(layoutBuilder)
		if err != nil {
			for _, l := range layouts[:set] {
				l.Destroy()
			}
			return fmt.Errorf("set %d layout: %w", set, err)
		}
		layouts[set] = layout
	}

	pipelineLayout, err := p.Device.CreatePipelineLayoutWithPushConstants(layouts, p.PushConstantRanges)
	if err != nil {
		for _, l := range layouts {
			l.Destroy()
		}
		return fmt.Errorf("pipeline layout: %w", err)
	}

	p.setLayouts = layouts
	p.pipelineLayout = pipelineLayout
	return nil
}

func (p *RenderProgram) sortedShaders() []*CompiledShader {
	stages := make([]vk.ShaderStageFlagBits, 0, len(p.shaders))
	for stage := range p.shaders {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })

	out := make([]*CompiledShader, 0, len(stages))
	for _, stage := range stages {
		out = append(out, p.shaders[stage])
	}
	return out
}

// SetUniformOverride pins a block member to a value, shadowing any material
// parameter of the same name on the next serialization.
func (p *RenderProgram) SetUniformOverride(name string, value ShaderVar) {
	if p.uniformOverrides == nil {
		p.uniformOverrides = make(map[string]ShaderVar)
	}
	p.uniformOverrides[name] = value
}

// RemoveUniformOverride drops an override; the material parameter or member
// default resolves again.
func (p *RenderProgram) RemoveUniformOverride(name string) {
	delete(p.uniformOverrides, name)
}

// UniformOverrides returns the program's override map, nil when none are
// set.
func (p *RenderProgram) UniformOverrides() map[string]ShaderVar {
	return p.uniformOverrides
}

// Linked reports whether the program's layouts are current.
func (p *RenderProgram) Linked() bool { return p.linked }

// Bindings returns the merged descriptor bindings of a linked program.
func (p *RenderProgram) Bindings() []DescriptorBindingInfo { return p.mergedBindings }

// SetCount returns how many descriptor sets the linked program spans.
func (p *RenderProgram) SetCount() int { return len(p.setLayouts) }

// SetLayouts returns the linked descriptor set layouts in set order.
func (p *RenderProgram) SetLayouts() []*DescriptorSetLayout { return p.setLayouts }

// PipelineLayout returns the linked pipeline layout.
func (p *RenderProgram) PipelineLayout() *PipelineLayout { return p.pipelineLayout }

// StageCreateInfos returns shader stage create infos in ascending stage
// order.
func (p *RenderProgram) StageCreateInfos() []vk.PipelineShaderStageCreateInfo {
	shaders := p.sortedShaders()
	infos := make([]vk.PipelineShaderStageCreateInfo, 0, len(shaders))
	for _, s := range shaders {
		infos = append(infos, s.StageCreateInfo())
	}
	return infos
}

// AutoUniformBlocks returns the auto uniform blocks of every attached
// stage, stage-sorted.
func (p *RenderProgram) AutoUniformBlocks() []*AutoUniformBlock {
	var blocks []*AutoUniformBlock
	for _, s := range p.sortedShaders() {
		if s.AutoUniformBlock != nil {
			blocks = append(blocks, s.AutoUniformBlock)
		}
	}
	return blocks
}

// Fingerprint returns a stable content fingerprint covering the stage code
// hashes and the merged binding schema. Two programs with identical stages
// and bindings share a fingerprint regardless of attachment order.
func (p *RenderProgram) Fingerprint() uint64 {
	if p.fingerprintValid {
		return p.fingerprint
	}

	h := fnv.New64a()
	var buf [8]byte
	writeU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, s := range p.sortedShaders() {
		writeU64(uint64(s.Stage))
		writeU64(s.Hash())
	}
	stageKey := h.Sum64()

	// Only a linked program may populate the shared memo: the stage hashes
	// cover the reflected bindings, so for linked programs the key fully
	// determines the merged schema. An unlinked program has no schema yet
	// and computes directly instead of poisoning the cache.
	var schema uint64
	if p.linked {
		schema = programFingerprints.GetOrCreate(stageKey, func() uint64 {
			return ComputeSchemaFingerprint(p.mergedBindings, 0, len(p.setLayouts))
		})
	} else {
		schema = ComputeSchemaFingerprint(nil, 0, 0)
	}

	writeU64(schema)
	p.fingerprint = h.Sum64()
	p.fingerprintValid = true
	return p.fingerprint
}

// Destroy releases the program's layouts. Attached shaders are not owned
// and survive.
func (p *RenderProgram) Destroy() {
	p.unlink()
	p.shaders = make(map[vk.ShaderStageFlagBits]*CompiledShader)
}
