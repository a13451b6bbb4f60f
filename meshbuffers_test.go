package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestMeshBufferStride(t *testing.T) {
	mb := &MeshBuffer{ElementSize: 12}
	if mb.Stride() != 12 {
		t.Errorf("packed stride = %d", mb.Stride())
	}
	mb.InterleavedStride = 32
	if mb.Stride() != 32 {
		t.Errorf("interleaved stride = %d", mb.Stride())
	}
}

func TestIndexBufferVKIndexType(t *testing.T) {
	if (&IndexBuffer{ElementSize: 2}).VKIndexType() != vk.IndexTypeUint16 {
		t.Error("2-byte indices")
	}
	if (&IndexBuffer{ElementSize: 4}).VKIndexType() != vk.IndexTypeUint32 {
		t.Error("4-byte indices")
	}
	if (&IndexBuffer{ElementSize: 1}).VKIndexType() != indexTypeUint8Ext {
		t.Error("1-byte indices")
	}
}

func TestBuildVertexInputStateAssignsFreeSlots(t *testing.T) {
	streams := []*MeshBuffer{
		{
			Name: "position", ElementSize: 12, BindingOverride: -1,
			Attributes: []VertexAttribute{
				{Name: "position", Format: vk.FormatR32g32b32Sfloat, LocationOverride: -1},
			},
		},
		{
			Name: "uv", ElementSize: 8, BindingOverride: 3,
			Attributes: []VertexAttribute{
				{Name: "uv", Format: vk.FormatR32g32Sfloat, LocationOverride: 5},
			},
		},
		{
			Name: "normal", ElementSize: 12, BindingOverride: -1,
			Attributes: []VertexAttribute{
				{Name: "normal", Format: vk.FormatR32g32b32Sfloat, LocationOverride: -1},
			},
		},
	}

	state, err := BuildVertexInputState(streams)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Bindings) != 3 || len(state.Attributes) != 3 {
		t.Fatalf("bindings=%d attrs=%d", len(state.Bindings), len(state.Attributes))
	}

	// Overrides claim their slots, free streams fill the gaps, and
	// everything lands in ascending canonical order.
	if state.Bindings[0].Binding != 0 || state.Bindings[1].Binding != 1 || state.Bindings[2].Binding != 3 {
		t.Errorf("bindings = %d,%d,%d",
			state.Bindings[0].Binding, state.Bindings[1].Binding, state.Bindings[2].Binding)
	}
	if state.Attributes[0].Location != 0 || state.Attributes[1].Location != 1 || state.Attributes[2].Location != 5 {
		t.Errorf("locations = %d,%d,%d",
			state.Attributes[0].Location, state.Attributes[1].Location, state.Attributes[2].Location)
	}
	// The uv stream carries binding 3, so its 8-byte stride must travel
	// with it to the last slot.
	if state.Bindings[2].Stride != 8 {
		t.Errorf("binding 3 stride = %d, want 8", state.Bindings[2].Stride)
	}
}

func TestBuildVertexInputStateParallelWithBindings(t *testing.T) {
	// Stream order is normal first, but the override pins position to
	// binding 0; the buffers and offsets must follow the binding order,
	// not the declaration order.
	streams := []*MeshBuffer{
		{
			Name: "normal", ElementSize: 12, BindingOverride: -1,
			Attributes: []VertexAttribute{
				{Name: "normal", Format: vk.FormatR32g32b32Sfloat, LocationOverride: -1},
			},
		},
		{
			Name: "position", ElementSize: 16, BindingOverride: 0,
			Attributes: []VertexAttribute{
				{Name: "position", Format: vk.FormatR32g32b32a32Sfloat, LocationOverride: -1},
			},
		},
	}

	state, err := BuildVertexInputState(streams)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Bindings) != 2 || len(state.Buffers) != 2 || len(state.Offsets) != 2 {
		t.Fatalf("bindings=%d buffers=%d offsets=%d", len(state.Bindings), len(state.Buffers), len(state.Offsets))
	}
	if state.Bindings[0].Binding != 0 || state.Bindings[0].Stride != 16 {
		t.Errorf("slot 0 = binding %d stride %d, want binding 0 stride 16",
			state.Bindings[0].Binding, state.Bindings[0].Stride)
	}
	if state.Bindings[1].Binding != 1 || state.Bindings[1].Stride != 12 {
		t.Errorf("slot 1 = binding %d stride %d, want binding 1 stride 12",
			state.Bindings[1].Binding, state.Bindings[1].Stride)
	}
}

func TestBuildVertexInputStateFingerprintIgnoresStreamOrder(t *testing.T) {
	a := []*MeshBuffer{
		{Name: "position", ElementSize: 12, BindingOverride: 0,
			Attributes: []VertexAttribute{{Name: "position", Format: vk.FormatR32g32b32Sfloat, LocationOverride: 0}}},
		{Name: "uv", ElementSize: 8, BindingOverride: 1,
			Attributes: []VertexAttribute{{Name: "uv", Format: vk.FormatR32g32Sfloat, LocationOverride: 1}}},
	}
	b := []*MeshBuffer{a[1], a[0]}

	sa, err := BuildVertexInputState(a)
	if err != nil {
		t.Fatal(err)
	}
	sb, err := BuildVertexInputState(b)
	if err != nil {
		t.Fatal(err)
	}
	if sa.Fingerprint != sb.Fingerprint {
		t.Errorf("fingerprints differ for identical layouts: %#x vs %#x", sa.Fingerprint, sb.Fingerprint)
	}
}

func TestBuildVertexInputStateInstanceRate(t *testing.T) {
	streams := []*MeshBuffer{
		{Name: "position", ElementSize: 12, BindingOverride: -1},
		{Name: "model_row", ElementSize: 16, BindingOverride: -1, InstanceDivisor: 1},
	}
	state, err := BuildVertexInputState(streams)
	if err != nil {
		t.Fatal(err)
	}
	if state.Bindings[0].InputRate != vk.VertexInputRateVertex {
		t.Error("per-vertex stream got instance rate")
	}
	if state.Bindings[1].InputRate != vk.VertexInputRateInstance {
		t.Error("divisor stream must advance per instance")
	}
}

func TestBuildVertexInputStateConflicts(t *testing.T) {
	if _, err := BuildVertexInputState([]*MeshBuffer{
		{Name: "a", ElementSize: 4, BindingOverride: 2},
		{Name: "b", ElementSize: 4, BindingOverride: 2},
	}); err == nil {
		t.Error("duplicate binding override must fail")
	}

	if _, err := BuildVertexInputState([]*MeshBuffer{
		{Name: "a", ElementSize: 4, BindingOverride: -1, Attributes: []VertexAttribute{
			{Name: "x", LocationOverride: 1},
			{Name: "y", LocationOverride: 1},
		}},
	}); err == nil {
		t.Error("duplicate location override must fail")
	}
}

func TestVertexInputFingerprintTracksLayout(t *testing.T) {
	build := func(stride uint32) uint64 {
		state, err := BuildVertexInputState([]*MeshBuffer{
			{Name: "position", ElementSize: stride, BindingOverride: -1,
				Attributes: []VertexAttribute{
					{Name: "position", Format: vk.FormatR32g32b32Sfloat, LocationOverride: -1},
				}},
		})
		if err != nil {
			t.Fatal(err)
		}
		return state.Fingerprint
	}

	if build(12) != build(12) {
		t.Error("identical layouts must fingerprint equal")
	}
	if build(12) == build(16) {
		t.Error("stride change must fingerprint different")
	}
}
