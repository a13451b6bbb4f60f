package vkdraw

// RenderContext carries the per-frame and per-draw values the engine can
// feed into uniforms without application involvement. The draw engine fills
// it once per draw before resolving descriptors.
type RenderContext struct {
	Model     [16]float32
	PrevModel [16]float32
	View      [16]float32
	Proj      [16]float32

	CameraPosition [3]float32
	CameraNear     float32
	CameraFar      float32

	ScreenWidth  float32
	ScreenHeight float32

	// UIRect is x, y, width, height in normalized screen space for UI
	// quads; zero for world draws.
	UIRect [4]float32

	BillboardMode int32
	Stereo        bool
	FrameIndex    uint32
	TimeSeconds   float32

	// HasPrevModel reports whether PrevModel was explicitly recorded for
	// this draw; when false the current model matrix doubles as the
	// previous one, which zeroes per-object motion vectors rather than
	// inventing garbage ones.
	HasPrevModel bool
}

// engineUniformFetch computes one engine uniform value from the context.
type engineUniformFetch func(*RenderContext) ShaderVar

// engineUniforms is the closed registry of engine-fed uniform names. The
// set is fixed at init; lookups never mutate it, so concurrent readers are
// safe.
var engineUniforms = map[string]engineUniformFetch{
	"engine_model": func(rc *RenderContext) ShaderVar {
		return Mat4Var(rc.Model)
	},
	"engine_prev_model": func(rc *RenderContext) ShaderVar {
		if rc.HasPrevModel {
			return Mat4Var(rc.PrevModel)
		}
		return Mat4Var(rc.Model)
	},
	"engine_view": func(rc *RenderContext) ShaderVar {
		return Mat4Var(rc.View)
	},
	"engine_proj": func(rc *RenderContext) ShaderVar {
		return Mat4Var(rc.Proj)
	},
	"engine_camera_position": func(rc *RenderContext) ShaderVar {
		return Vec3Var(rc.CameraPosition)
	},
	"engine_camera_near": func(rc *RenderContext) ShaderVar {
		return FloatVar(rc.CameraNear)
	},
	"engine_camera_far": func(rc *RenderContext) ShaderVar {
		return FloatVar(rc.CameraFar)
	},
	"engine_screen_size": func(rc *RenderContext) ShaderVar {
		return Vec2Var([2]float32{rc.ScreenWidth, rc.ScreenHeight})
	},
	"engine_ui_rect": func(rc *RenderContext) ShaderVar {
		return Vec4Var(rc.UIRect)
	},
	"engine_billboard_mode": func(rc *RenderContext) ShaderVar {
		return IntVar(rc.BillboardMode)
	},
	"engine_stereo": func(rc *RenderContext) ShaderVar {
		return BoolVar(rc.Stereo)
	},
	"engine_frame_index": func(rc *RenderContext) ShaderVar {
		return IntVar(int32(rc.FrameIndex))
	},
	"engine_time": func(rc *RenderContext) ShaderVar {
		return FloatVar(rc.TimeSeconds)
	},
}

// IsEngineUniform reports whether the engine owns a uniform name.
// Application materials must not claim these names.
func IsEngineUniform(name string) bool {
	_, ok := engineUniforms[name]
	return ok
}

// ResolveEngineUniform evaluates an engine uniform against the context.
func ResolveEngineUniform(name string, rc *RenderContext) (ShaderVar, bool) {
	fetch, ok := engineUniforms[name]
	if !ok {
		return ShaderVar{}, false
	}
	return fetch(rc), true
}
