package vkdraw

import (
	"fmt"
	"hash/fnv"
	"sort"

	vk "github.com/vulkan-go/vulkan"
)

// ProgramPipeline composes stages from separable programs: each attached
// program contributes the stages it was registered for, and the composed
// whole gets its own merged layouts and fingerprint. Mixing stages from
// different programs goes through the same binding merge as a monolithic
// program, so conflicting bindings across programs are caught the same way.
type ProgramPipeline struct {
	Device *Device
	Name   string

	stagePrograms map[vk.ShaderStageFlagBits]*RenderProgram

	linked         bool
	mergedBindings []DescriptorBindingInfo
	setLayouts     []*DescriptorSetLayout
	pipelineLayout *PipelineLayout
}

func (d *Device) CreateProgramPipeline(name string) *ProgramPipeline {
	return &ProgramPipeline{
		Device:        d,
		Name:          name,
		stagePrograms: make(map[vk.ShaderStageFlagBits]*RenderProgram),
	}
}

// UseProgramStages routes the given stages to a program, replacing any
// previous routing for those stages. A nil program clears the routing.
func (pp *ProgramPipeline) UseProgramStages(program *RenderProgram, stages ...vk.ShaderStageFlagBits) {
	for _, stage := range stages {
		if program == nil {
			delete(pp.stagePrograms, stage)
		} else {
			pp.stagePrograms[stage] = program
		}
	}
	pp.unlink()
}

func (pp *ProgramPipeline) unlink() {
	for _, l := range pp.setLayouts {
		if l != nil {
			l.Destroy()
		}
	}
	pp.setLayouts = nil
	if pp.pipelineLayout != nil {
		pp.pipelineLayout.Destroy()
		pp.pipelineLayout = nil
	}
	pp.linked = false
	pp.mergedBindings = nil
}

func (pp *ProgramPipeline) sortedStages() []vk.ShaderStageFlagBits {
	stages := make([]vk.ShaderStageFlagBits, 0, len(pp.stagePrograms))
	for stage := range pp.stagePrograms {
		stages = append(stages, stage)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })
	return stages
}

// resolveShaders collects the concrete shader for each routed stage. A
// routed stage whose program lacks that shader makes the pipeline not ready.
func (pp *ProgramPipeline) resolveShaders() ([]*CompiledShader, bool) {
	stages := pp.sortedStages()
	shaders := make([]*CompiledShader, 0, len(stages))
	for _, stage := range stages {
		shader := pp.stagePrograms[stage].Shader(stage)
		if shader == nil {
			return nil, false
		}
		shaders = append(shaders, shader)
	}
	return shaders, true
}

// Link merges bindings across the composed stages and builds layouts.
// Returns (false, nil) while stages are missing, mirroring RenderProgram.
func (pp *ProgramPipeline) Link() (bool, error) {
	if pp.linked {
		return true, nil
	}
	shaders, ready := pp.resolveShaders()
	if !ready || len(shaders) == 0 {
		return false, nil
	}

	stageBindings := make([][]DescriptorBindingInfo, 0, len(shaders))
	for _, s := range shaders {
		stageBindings = append(stageBindings, s.DescriptorBindings)
	}
	merged, err := MergeDescriptorBindings(stageBindings...)
	if err != nil {
		return false, fmt.Errorf("program pipeline %q: %w", pp.Name, err)
	}

	setCount := maxSetIndex(merged)
	layouts := make([]*DescriptorSetLayout, setCount)
	for set := 0; set < setCount; set++ {
		builder := pp.Device.NewDescriptorSetLayout()
		for _, b := range merged {
			if int(b.Set) != set {
				continue
			}
			builder.AddBinding(vk.DescriptorSetLayoutBinding{
				Binding:         b.Binding,
				DescriptorType:  b.Type,
				DescriptorCount: b.Count,
				StageFlags:      b.StageFlags,
			})
		}
		layout, err := pp.Device.CreateDescriptorSetLayout(builder)
		if err != nil {
			for _, l := range layouts[:set] {
				l.Destroy()
			}
			return false, fmt.Errorf("program pipeline %q: set %d layout: %w", pp.Name, set, err)
		}
		layouts[set] = layout
	}

	pipelineLayout, err := pp.Device.CreatePipelineLayoutWithPushConstants(layouts, nil)
	if err != nil {
		for _, l := range layouts {
			l.Destroy()
		}
		return false, fmt.Errorf("program pipeline %q: pipeline layout: %w", pp.Name, err)
	}

	pp.mergedBindings = merged
	pp.setLayouts = layouts
	pp.pipelineLayout = pipelineLayout
	pp.linked = true
	return true, nil
}

func (pp *ProgramPipeline) Linked() bool { return pp.linked }

func (pp *ProgramPipeline) Bindings() []DescriptorBindingInfo { return pp.mergedBindings }

func (pp *ProgramPipeline) SetLayouts() []*DescriptorSetLayout { return pp.setLayouts }

func (pp *ProgramPipeline) PipelineLayout() *PipelineLayout { return pp.pipelineLayout }

// StageCreateInfos returns create infos for the composed stages in stage
// order; nil when a routed stage is missing its shader.
func (pp *ProgramPipeline) StageCreateInfos() []vk.PipelineShaderStageCreateInfo {
	shaders, ready := pp.resolveShaders()
	if !ready {
		return nil
	}
	infos := make([]vk.PipelineShaderStageCreateInfo, 0, len(shaders))
	for _, s := range shaders {
		infos = append(infos, s.StageCreateInfo())
	}
	return infos
}

// Fingerprint covers the composed stage hashes and merged schema, so two
// pipelines composing identical stages collide even when built from
// different program objects.
func (pp *ProgramPipeline) Fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	shaders, ready := pp.resolveShaders()
	if !ready {
		return 0
	}
	for _, s := range shaders {
		writeU64(uint64(s.Stage))
		writeU64(s.Hash())
	}
	writeU64(ComputeSchemaFingerprint(pp.mergedBindings, 0, len(pp.setLayouts)))
	return h.Sum64()
}

// Destroy releases the composed layouts; the routed programs are not owned.
func (pp *ProgramPipeline) Destroy() {
	pp.unlink()
	pp.stagePrograms = make(map[vk.ShaderStageFlagBits]*RenderProgram)
}
