package vkdraw

// TextureSlot addresses one texture within a material: the descriptor
// binding index plus an offset into the binding's array (zero for scalar
// bindings).
type TextureSlot struct {
	Binding     uint32
	ArrayOffset uint32
}

// Material is the application-facing bundle of textures and uniform
// parameters. Per-program descriptor state is derived lazily and cached by
// program fingerprint; parameter edits mark the cached state dirty while
// structural edits (new parameter names, texture topology changes) discard
// it so the next draw rebuilds from scratch.
type Material struct {
	Device *Device
	Name   string

	textures map[TextureSlot]*Texture
	texels   map[uint32]*BufferView
	params   map[string]ShaderVar

	states map[uint64]*ProgramDescriptorState
}

func (d *Device) CreateMaterial(name string) *Material {
	return &Material{
		Device:   d,
		Name:     name,
		textures: make(map[TextureSlot]*Texture),
		texels:   make(map[uint32]*BufferView),
		params:   make(map[string]ShaderVar),
		states:   make(map[uint64]*ProgramDescriptorState),
	}
}

// SetTexture binds a texture to a slot. All cached states must rewrite
// their image descriptors, so every state is marked dirty.
func (m *Material) SetTexture(slot TextureSlot, tex *Texture) {
	m.textures[slot] = tex
	m.markAllStatesDirty()
}

// RemoveTexture clears a slot; affected states fall back to the placeholder
// on the next bind.
func (m *Material) RemoveTexture(slot TextureSlot) {
	if _, ok := m.textures[slot]; !ok {
		return
	}
	delete(m.textures, slot)
	m.markAllStatesDirty()
}

// Texture returns the texture bound to a slot, or nil.
func (m *Material) Texture(slot TextureSlot) *Texture {
	return m.textures[slot]
}

// SetTexelBuffer registers a buffer view for a texel-buffer binding. The
// view is not owned; the caller destroys it after the material stops using
// it.
func (m *Material) SetTexelBuffer(binding uint32, view *BufferView) {
	m.texels[binding] = view
	m.markAllStatesDirty()
}

// RemoveTexelBuffer unregisters a binding's view. Programs whose schema
// needs it fall back to the engine path on the next draw.
func (m *Material) RemoveTexelBuffer(binding uint32) {
	if _, ok := m.texels[binding]; !ok {
		return
	}
	delete(m.texels, binding)
	m.markAllStatesDirty()
}

// TexelBuffer returns the registered view for a binding, or nil.
func (m *Material) TexelBuffer(binding uint32) *BufferView {
	return m.texels[binding]
}

// SetParameter updates a uniform parameter. Updating an existing name only
// changes buffer contents, so states get a value-only dirty mark; introducing
// a new name changes what the material can serve and is treated as a
// parameter list replacement.
func (m *Material) SetParameter(name string, value ShaderVar) {
	_, existed := m.params[name]
	m.params[name] = value
	if existed {
		m.markAllValuesDirty()
		return
	}
	m.destroyStates()
}

// ReplaceParameters swaps the whole parameter list and discards all derived
// state.
func (m *Material) ReplaceParameters(params map[string]ShaderVar) {
	m.params = make(map[string]ShaderVar, len(params))
	for k, v := range params {
		m.params[k] = v
	}
	m.destroyStates()
}

// Parameter returns a parameter by name.
func (m *Material) Parameter(name string) (ShaderVar, bool) {
	v, ok := m.params[name]
	return v, ok
}

func (m *Material) markAllStatesDirty() {
	for _, s := range m.states {
		s.MarkDirty()
	}
}

func (m *Material) markAllValuesDirty() {
	for _, s := range m.states {
		s.MarkValuesDirty()
	}
}

func (m *Material) destroyStates() {
	for fp, s := range m.states {
		s.Destroy()
		delete(m.states, fp)
	}
}

// Destroy releases all derived descriptor state. Textures are not owned by
// the material and survive.
func (m *Material) Destroy() {
	m.destroyStates()
	m.textures = make(map[TextureSlot]*Texture)
	m.texels = make(map[uint32]*BufferView)
}
