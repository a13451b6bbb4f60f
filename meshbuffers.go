package vkdraw

import (
	"fmt"
	"hash/fnv"
	"sort"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/exp/maps"
)

// PrimitiveClass groups index data by the topology family it drives.
type PrimitiveClass int

const (
	PrimitiveTriangles PrimitiveClass = iota
	PrimitiveLines
	PrimitivePoints
)

func (p PrimitiveClass) String() string {
	switch p {
	case PrimitiveTriangles:
		return "triangles"
	case PrimitiveLines:
		return "lines"
	case PrimitivePoints:
		return "points"
	default:
		return "unknown"
	}
}

// Topology returns the list topology for the class.
func (p PrimitiveClass) Topology() vk.PrimitiveTopology {
	switch p {
	case PrimitiveLines:
		return vk.PrimitiveTopologyLineList
	case PrimitivePoints:
		return vk.PrimitiveTopologyPointList
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

// VertexAttribute is one attribute within a mesh buffer. A negative
// LocationOverride lets the builder assign the next free location.
type VertexAttribute struct {
	Name             string
	Format           vk.Format
	Offset           uint32
	LocationOverride int
}

// MeshBuffer is one named vertex (or storage) data stream. InterleavedStride
// is zero for tightly packed single-attribute buffers; BindingOverride below
// zero lets the builder assign bindings in declaration order. A non-zero
// InstanceDivisor makes the binding advance per instance.
type MeshBuffer struct {
	Name              string
	ElementSize       uint32
	ElementCount      uint32
	InterleavedStride uint32
	Attributes        []VertexAttribute
	BindingOverride   int
	InstanceDivisor   uint32
	StorageTarget     bool

	buffer *BoundBuffer
}

// Stride is the effective binding stride.
func (mb *MeshBuffer) Stride() uint32 {
	if mb.InterleavedStride > 0 {
		return mb.InterleavedStride
	}
	return mb.ElementSize
}

// VKBuffer returns the native buffer, or nil handle when not uploaded.
func (mb *MeshBuffer) VKBuffer() vk.Buffer {
	if mb.buffer == nil {
		return vk.NullBuffer
	}
	return mb.buffer.Buffer.VKBuffer
}

// IndexBuffer holds index data for one primitive class. ElementSize is 1, 2
// or 4 bytes.
type IndexBuffer struct {
	Class        PrimitiveClass
	ElementSize  uint32
	ElementCount uint32

	buffer *BoundBuffer
}

func (ib *IndexBuffer) VKBuffer() vk.Buffer {
	if ib.buffer == nil {
		return vk.NullBuffer
	}
	return ib.buffer.Buffer.VKBuffer
}

// VKIndexType maps the element size to the native index type. One-byte
// indices need the uint8 index extension; the caller gates on device
// features before using the returned type.
func (ib *IndexBuffer) VKIndexType() vk.IndexType {
	switch ib.ElementSize {
	case 1:
		return indexTypeUint8Ext
	case 2:
		return vk.IndexTypeUint16
	default:
		return vk.IndexTypeUint32
	}
}

// indexTypeUint8Ext is VK_INDEX_TYPE_UINT8_EXT, usable only when the device
// enabled VK_EXT_index_type_uint8.
const indexTypeUint8Ext vk.IndexType = 1000265000

// MeshBufferCache owns the uploaded GPU buffers for one mesh: named vertex
// and storage streams plus per-class index buffers.
type MeshBufferCache struct {
	Device *Device

	buffers map[string]*MeshBuffer
	indices map[PrimitiveClass]*IndexBuffer
}

func (d *Device) CreateMeshBufferCache() *MeshBufferCache {
	return &MeshBufferCache{
		Device:  d,
		buffers: make(map[string]*MeshBuffer),
		indices: make(map[PrimitiveClass]*IndexBuffer),
	}
}

// UploadBuffer creates or replaces a named stream, staging the data into a
// device-local buffer. A replaced stream's old buffer is retired.
func (c *MeshBufferCache) UploadBuffer(cmd *CommandBuffer, retire *RetireQueue, mb MeshBuffer, data []byte) error {
	if mb.Name == "" {
		return fmt.Errorf("mesh buffer with empty name")
	}
	if len(data) == 0 {
		return fmt.Errorf("mesh buffer %q: no data", mb.Name)
	}

	usage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit)
	if mb.StorageTarget {
		usage = vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit)
	}

	bound, err := c.uploadDeviceLocal(cmd, retire, usage, data)
	if err != nil {
		return fmt.Errorf("mesh buffer %q: %w", mb.Name, err)
	}

	if old, ok := c.buffers[mb.Name]; ok && old.buffer != nil {
		retireBoundBuffer(retire, old.buffer)
	}
	mb.buffer = bound
	c.buffers[mb.Name] = &mb
	return nil
}

// UploadIndices creates or replaces the index buffer for one primitive
// class. elementSize must be 1, 2 or 4.
func (c *MeshBufferCache) UploadIndices(cmd *CommandBuffer, retire *RetireQueue, class PrimitiveClass, elementSize uint32, data []byte) error {
	switch elementSize {
	case 1, 2, 4:
	default:
		return fmt.Errorf("index buffer for %s: element size %d not in {1,2,4}", class, elementSize)
	}
	if len(data) == 0 || uint32(len(data))%elementSize != 0 {
		return fmt.Errorf("index buffer for %s: %d bytes not a multiple of element size %d", class, len(data), elementSize)
	}

	bound, err := c.uploadDeviceLocal(cmd, retire,
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit), data)
	if err != nil {
		return fmt.Errorf("index buffer for %s: %w", class, err)
	}

	if old, ok := c.indices[class]; ok && old.buffer != nil {
		retireBoundBuffer(retire, old.buffer)
	}
	c.indices[class] = &IndexBuffer{
		Class:        class,
		ElementSize:  elementSize,
		ElementCount: uint32(len(data)) / elementSize,
		buffer:       bound,
	}
	return nil
}

func (c *MeshBufferCache) uploadDeviceLocal(cmd *CommandBuffer, retire *RetireQueue, usage vk.BufferUsageFlags, data []byte) (*BoundBuffer, error) {
	staging, err := c.Device.CreateStagingBuffer(data)
	if err != nil {
		return nil, err
	}
	dst, err := c.Device.CreateBoundBuffer(uint64(len(data)), usage,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		staging.Destroy()
		return nil, err
	}
	cmd.CmdCopyBuffer(staging.Buffer.VKBuffer, dst.Buffer.VKBuffer,
		[]vk.BufferCopy{{Size: vk.DeviceSize(len(data))}})
	retireBoundBuffer(retire, staging)
	return dst, nil
}

// Buffer returns a named stream, or nil.
func (c *MeshBufferCache) Buffer(name string) *MeshBuffer {
	return c.buffers[name]
}

// Indices returns the index buffer for a class, or nil.
func (c *MeshBufferCache) Indices(class PrimitiveClass) *IndexBuffer {
	return c.indices[class]
}

// VertexStreams returns the non-storage streams sorted by name, the order
// the input-state builder consumes them in.
func (c *MeshBufferCache) VertexStreams() []*MeshBuffer {
	names := maps.Keys(c.buffers)
	sort.Strings(names)
	out := make([]*MeshBuffer, 0, len(names))
	for _, name := range names {
		if mb := c.buffers[name]; !mb.StorageTarget {
			out = append(out, mb)
		}
	}
	return out
}

// Destroy retires every owned buffer.
func (c *MeshBufferCache) Destroy(retire *RetireQueue) {
	for name, mb := range c.buffers {
		if mb.buffer != nil {
			retireBoundBuffer(retire, mb.buffer)
		}
		delete(c.buffers, name)
	}
	for class, ib := range c.indices {
		if ib.buffer != nil {
			retireBoundBuffer(retire, ib.buffer)
		}
		delete(c.indices, class)
	}
}

// VertexInputState is the assembled pipeline vertex input plus a stable
// fingerprint of the layout, hashed into pipeline keys.
type VertexInputState struct {
	Bindings    []vk.VertexInputBindingDescription
	Attributes  []vk.VertexInputAttributeDescription
	Buffers     []vk.Buffer
	Offsets     []vk.DeviceSize
	Fingerprint uint64
}

// BuildVertexInputState lays out bindings and attribute locations for the
// given streams. Explicit binding and location overrides are honored
// first; remaining streams and attributes fill ascending free slots.
// Conflicting explicit assignments are an authoring error.
func BuildVertexInputState(streams []*MeshBuffer) (*VertexInputState, error) {
	state := &VertexInputState{}

	usedBindings := make(map[uint32]bool)
	for _, mb := range streams {
		if mb.BindingOverride >= 0 {
			b := uint32(mb.BindingOverride)
			if usedBindings[b] {
				return nil, fmt.Errorf("mesh buffer %q: binding %d already assigned", mb.Name, b)
			}
			usedBindings[b] = true
		}
	}
	usedLocations := make(map[uint32]bool)
	for _, mb := range streams {
		for _, a := range mb.Attributes {
			if a.LocationOverride >= 0 {
				l := uint32(a.LocationOverride)
				if usedLocations[l] {
					return nil, fmt.Errorf("attribute %q: location %d already assigned", a.Name, l)
				}
				usedLocations[l] = true
			}
		}
	}

	nextFree := func(used map[uint32]bool) uint32 {
		for i := uint32(0); ; i++ {
			if !used[i] {
				used[i] = true
				return i
			}
		}
	}

	for _, mb := range streams {
		binding := uint32(0)
		if mb.BindingOverride >= 0 {
			binding = uint32(mb.BindingOverride)
		} else {
			binding = nextFree(usedBindings)
		}

		rate := vk.VertexInputRateVertex
		if mb.InstanceDivisor != 0 {
			rate = vk.VertexInputRateInstance
		}

		state.Bindings = append(state.Bindings, vk.VertexInputBindingDescription{
			Binding:   binding,
			Stride:    mb.Stride(),
			InputRate: rate,
		})
		state.Buffers = append(state.Buffers, mb.VKBuffer())
		state.Offsets = append(state.Offsets, 0)

		for _, a := range mb.Attributes {
			location := uint32(0)
			if a.LocationOverride >= 0 {
				location = uint32(a.LocationOverride)
			} else {
				location = nextFree(usedLocations)
			}
			state.Attributes = append(state.Attributes, vk.VertexInputAttributeDescription{
				Location: location,
				Binding:  binding,
				Format:   a.Format,
				Offset:   a.Offset,
			})
		}
	}

	// Canonical order: bindings ascending, with buffers and offsets kept
	// parallel, so Bindings[i] always describes Buffers[i]. Binding
	// overrides can otherwise leave the stream order and the binding
	// indices disagreeing.
	order := make([]int, len(state.Bindings))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return state.Bindings[order[i]].Binding < state.Bindings[order[j]].Binding
	})
	bindings := make([]vk.VertexInputBindingDescription, len(order))
	buffers := make([]vk.Buffer, len(order))
	offsets := make([]vk.DeviceSize, len(order))
	for i, from := range order {
		bindings[i] = state.Bindings[from]
		buffers[i] = state.Buffers[from]
		offsets[i] = state.Offsets[from]
	}
	state.Bindings = bindings
	state.Buffers = buffers
	state.Offsets = offsets
	sort.Slice(state.Attributes, func(i, j int) bool {
		return state.Attributes[i].Location < state.Attributes[j].Location
	})

	h := fnv.New64a()
	var buf [8]byte
	writeU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, b := range state.Bindings {
		writeU64(uint64(b.Binding))
		writeU64(uint64(b.Stride))
		writeU64(uint64(b.InputRate))
	}
	for _, a := range state.Attributes {
		writeU64(uint64(a.Location))
		writeU64(uint64(a.Binding))
		writeU64(uint64(a.Format))
		writeU64(uint64(a.Offset))
	}

	state.Fingerprint = h.Sum64()
	return state, nil
}

// BindVertexBuffers binds every stream at its declared binding index,
// coalescing consecutive indices into one call. A blanket bind starting at
// slot zero would mismatch buffers and bindings whenever overrides leave
// the indices sparse or reordered.
func (v *VertexInputState) BindVertexBuffers(cmd *CommandBuffer) {
	for i := 0; i < len(v.Bindings); {
		j := i + 1
		for j < len(v.Bindings) && v.Bindings[j].Binding == v.Bindings[j-1].Binding+1 {
			j++
		}
		cmd.CmdBindVertexBuffers(v.Bindings[i].Binding, v.Buffers[i:j], v.Offsets[i:j])
		i = j
	}
}
