package vkdraw

import (
	"strings"
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

// linkedProgram assembles a program in the already-linked shape without
// touching the device, so schema checks can run against arbitrary bindings.
func linkedProgram(bindings []DescriptorBindingInfo, blocks ...*AutoUniformBlock) *RenderProgram {
	p := &RenderProgram{
		Name:    "test",
		shaders: make(map[vk.ShaderStageFlagBits]*CompiledShader),
	}
	for i, blk := range blocks {
		stage := vk.ShaderStageVertexBit
		if i > 0 {
			stage = vk.ShaderStageFragmentBit
		}
		p.shaders[stage] = &CompiledShader{Stage: stage, AutoUniformBlock: blk}
	}
	p.mergedBindings = bindings
	p.linked = true
	return p
}

func testMaterial(params map[string]ShaderVar) *Material {
	return &Material{
		Name:     "test",
		textures: make(map[TextureSlot]*Texture),
		texels:   make(map[uint32]*BufferView),
		params:   params,
		states:   make(map[uint64]*ProgramDescriptorState),
	}
}

func TestCanHandleUnlinkedProgram(t *testing.T) {
	m := testMaterial(nil)
	p := linkedProgram(nil)
	p.linked = false

	ok, reason := m.CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "not linked") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleAcceptsParameterNamedUniform(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
		{Set: 0, Binding: 1, Type: vk.DescriptorTypeCombinedImageSampler, Count: 4},
	})
	m := testMaterial(map[string]ShaderVar{"tint": Vec4Var([4]float32{1, 1, 1, 1})})

	ok, reason := m.CanHandleProgramBindings(p)
	if !ok {
		t.Errorf("rejected: %s", reason)
	}
}

func TestCanHandleRejectsAutoBlockUniform(t *testing.T) {
	block := &AutoUniformBlock{
		Name: "Params", Set: 0, Binding: 0, ByteSize: 16,
		Members: []AutoUniformMember{{Name: "tint", Offset: 0, Type: ShaderVarVec4}},
	}
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "Params"},
	}, block)
	// Even a matching parameter name does not hand the engine-filled block
	// to the material.
	m := testMaterial(map[string]ShaderVar{"Params": Vec4Var([4]float32{1, 1, 1, 1})})

	ok, reason := m.CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "auto uniform block") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleRejectsEngineOwnedUniformName(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "engine_model"},
	})
	m := testMaterial(map[string]ShaderVar{"engine_model": Mat4Var([16]float32{})})
	ok, reason := m.CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "engine-owned") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleRejectsUnmatchedUniformBuffer(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 2, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "Lighting"},
	})
	ok, reason := testMaterial(nil).CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "no material parameter") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleRejectsUnknownParameterSize(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "mystery"},
	})
	m := testMaterial(map[string]ShaderVar{"mystery": {Type: ShaderVarUnknown}})
	ok, reason := m.CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "GPU size") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleRejectsLargeImageArray(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeCombinedImageSampler, Count: maxMaterialImageArray + 1},
	})
	ok, reason := testMaterial(nil).CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "image array") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleRejectsStorageBindings(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeStorageBuffer, Count: 1, Name: "bones"},
	})
	ok, reason := testMaterial(nil).CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "not supported") {
		t.Errorf("ok=%v reason=%q", ok, reason)
	}
}

func TestCanHandleTexelBuffers(t *testing.T) {
	p := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformTexelBuffer, Count: 1, Name: "palette"},
	})
	m := testMaterial(nil)

	ok, reason := m.CanHandleProgramBindings(p)
	if ok || !strings.Contains(reason, "texel buffer") {
		t.Errorf("unregistered view: ok=%v reason=%q", ok, reason)
	}

	m.SetTexelBuffer(0, &BufferView{})
	if ok, reason := m.CanHandleProgramBindings(p); !ok {
		t.Errorf("registered view rejected: %s", reason)
	}

	m.RemoveTexelBuffer(0)
	if ok, _ := m.CanHandleProgramBindings(p); ok {
		t.Error("removed view must decline again")
	}
}

// staleState builds a device-free descriptor state carrying only bookkeeping,
// enough for eviction checks.
func staleState(fp uint64, frameCount, setCount int) *ProgramDescriptorState {
	return &ProgramDescriptorState{
		uniforms:          make(map[bindingKey]*UniformBindingResource),
		schemaFingerprint: fp,
		frameCount:        frameCount,
		setCount:          setCount,
		setsDirty:         make([]bool, frameCount),
	}
}

func TestCachedStateEvictsOnSchemaChange(t *testing.T) {
	m := testMaterial(nil)
	m.states[7] = staleState(100, 2, 1)

	if _, ok := m.cachedState(7, 200, 2, 1); ok {
		t.Error("changed fingerprint must not reuse state")
	}
	if _, still := m.states[7]; still {
		t.Error("stale state must be evicted")
	}
}

func TestCachedStateEvictsOnShapeChange(t *testing.T) {
	m := testMaterial(nil)
	m.states[7] = staleState(100, 2, 1)
	if _, ok := m.cachedState(7, 100, 3, 1); ok {
		t.Error("frame count change must rebuild")
	}

	m.states[8] = staleState(100, 2, 1)
	if _, ok := m.cachedState(8, 100, 2, 2); ok {
		t.Error("set count change must rebuild")
	}
}

func TestCachedStateReusesMatch(t *testing.T) {
	m := testMaterial(nil)
	want := staleState(100, 2, 1)
	m.states[7] = want

	got, ok := m.cachedState(7, 100, 2, 1)
	if !ok || got != want {
		t.Errorf("matching state not reused: ok=%v", ok)
	}
}

func TestSchemaFingerprintTracksProgramBindings(t *testing.T) {
	a := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
	})
	b := linkedProgram([]DescriptorBindingInfo{
		{Set: 0, Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Name: "tint"},
		{Set: 0, Binding: 1, Type: vk.DescriptorTypeCombinedImageSampler, Count: 1},
	})

	fa := ComputeSchemaFingerprint(a.Bindings(), 2, 1)
	fb := ComputeSchemaFingerprint(b.Bindings(), 2, 1)
	if fa == fb {
		t.Error("different binding schemas must fingerprint differently")
	}

	state := staleState(fa, 2, 1)
	if state.matchesSchema(fb, 2, 1) {
		t.Error("state built for one schema must not match another")
	}
}

func TestSetParameterValueChangeKeepsSets(t *testing.T) {
	m := testMaterial(map[string]ShaderVar{"tint": Vec4Var([4]float32{1, 0, 0, 1})})
	state := staleState(100, 2, 1)
	state.uniforms[bindingKey{set: 0, binding: 0}] = &UniformBindingResource{
		Param: "tint",
		dirty: make([]bool, 2),
	}
	m.states[7] = state

	m.SetParameter("tint", Vec4Var([4]float32{0, 1, 0, 1}))

	if _, still := m.states[7]; !still {
		t.Fatal("value edit must not discard state")
	}
	u := state.uniforms[bindingKey{}]
	if !u.dirty[0] || !u.dirty[1] {
		t.Error("value edit must dirty every frame's uniform")
	}
	if state.setsDirty[0] || state.setsDirty[1] {
		t.Error("value edit must not force a descriptor rewrite")
	}
}

func TestSetParameterNewNameDiscardsState(t *testing.T) {
	m := testMaterial(map[string]ShaderVar{"tint": Vec4Var([4]float32{1, 0, 0, 1})})
	m.states[7] = staleState(100, 2, 1)

	m.SetParameter("roughness", FloatVar(0.4))

	if len(m.states) != 0 {
		t.Error("new parameter name must discard derived state")
	}
}
