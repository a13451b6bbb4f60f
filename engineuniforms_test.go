package vkdraw

import "testing"

func TestIsEngineUniform(t *testing.T) {
	for _, name := range []string{"engine_model", "engine_view", "engine_time", "engine_stereo"} {
		if !IsEngineUniform(name) {
			t.Errorf("%s should be engine owned", name)
		}
	}
	if IsEngineUniform("albedo_tint") {
		t.Error("application names must not resolve")
	}
}

func TestResolveEngineUniform(t *testing.T) {
	rc := RenderContext{TimeSeconds: 2.5, Stereo: true}

	v, ok := ResolveEngineUniform("engine_time", &rc)
	if !ok || v.Type != ShaderVarFloat || v.Floats[0] != 2.5 {
		t.Errorf("engine_time = %+v, ok=%v", v, ok)
	}
	v, ok = ResolveEngineUniform("engine_stereo", &rc)
	if !ok || v.Ints[0] != 1 {
		t.Errorf("engine_stereo = %+v, ok=%v", v, ok)
	}
	if _, ok := ResolveEngineUniform("nope", &rc); ok {
		t.Error("unknown names must not resolve")
	}
}

func TestPrevModelFallsBackToModel(t *testing.T) {
	rc := RenderContext{}
	rc.Model[0] = 7
	rc.PrevModel[0] = 3

	v, _ := ResolveEngineUniform("engine_prev_model", &rc)
	if v.Floats[0] != 7 {
		t.Errorf("without a recorded previous model the current one is reused, got %v", v.Floats[0])
	}

	rc.HasPrevModel = true
	v, _ = ResolveEngineUniform("engine_prev_model", &rc)
	if v.Floats[0] != 3 {
		t.Errorf("recorded previous model ignored, got %v", v.Floats[0])
	}
}
