package vkdraw

import (
	vk "github.com/vulkan-go/vulkan"
)

// Buffer wraps a native Vulkan buffer. Buffers are bound to DeviceMemory
// before use; BoundBuffer couples the two for the common case.
type Buffer struct {
	Device   *Device
	VKBuffer vk.Buffer
	Size     uint64
	Usage    vk.BufferUsageFlags
}

func (d *Device) CreateBuffer(sizeInBytes uint64) (*Buffer, error) {
	return d.CreateBufferWithOptions(sizeInBytes, vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit), vk.SharingModeExclusive)
}

func (d *Device) CreateBufferWithOptions(sizeInBytes uint64, usage vk.BufferUsageFlags, sharing vk.SharingMode) (*Buffer, error) {
	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(sizeInBytes),
		Usage:       usage,
		SharingMode: sharing,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, err
	}

	var ret Buffer
	ret.VKBuffer = buffer
	ret.Device = d
	ret.Size = sizeInBytes
	ret.Usage = usage

	return &ret, nil
}

func (b *Buffer) VKMemoryRequirements() vk.MemoryRequirements {
	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.Device.VKDevice, b.VKBuffer, &memoryRequirements)
	return memoryRequirements
}

func (b *Buffer) DSInfo(offset int) vk.DescriptorBufferInfo {
	var descriptorBufferInfo = vk.DescriptorBufferInfo{}
	descriptorBufferInfo.Buffer = b.VKBuffer
	descriptorBufferInfo.Offset = vk.DeviceSize(offset)
	descriptorBufferInfo.Range = vk.DeviceSize(b.Size)
	return descriptorBufferInfo
}

func (b *Buffer) AllocationRequirements() *AllocationRequirements {
	memoryRequirements := b.VKMemoryRequirements()
	mr := &memoryRequirements
	mr.Deref()

	return &AllocationRequirements{
		Size:           int(mr.Size),
		Alignment:      int(mr.Alignment),
		MemoryTypeBits: mr.MemoryTypeBits,
	}
}

func (b *Buffer) Bind(memory *DeviceMemory, offset uint64) error {
	return vk.Error(vk.BindBufferMemory(b.Device.VKDevice, b.VKBuffer, memory.VKDeviceMemory, vk.DeviceSize(offset)))
}

func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.Device.VKDevice, b.VKBuffer, nil)
}

// BoundBuffer is a buffer bound to memory it exclusively owns.
type BoundBuffer struct {
	Buffer *Buffer
	Memory *DeviceMemory
}

func (b *BoundBuffer) Destroy() {
	if b.Buffer != nil {
		b.Buffer.Destroy()
		b.Buffer = nil
	}
	if b.Memory != nil {
		b.Memory.Destroy()
		b.Memory = nil
	}
}

func (d *Device) CreateAndBindBufferAndMemory(size uint64, offset uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlags, sharing vk.SharingMode) (*Buffer, *DeviceMemory, error) {
	buffer, err := d.CreateBufferWithOptions(size, usage, sharing)
	if err != nil {
		return nil, nil, err
	}
	memory, err := d.AllocateForBuffer(buffer, mprops)
	if err != nil {
		buffer.Destroy()
		return nil, nil, err
	}
	if err := buffer.Bind(memory, offset); err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, nil, err
	}
	return buffer, memory, nil
}

// CreateBoundBuffer creates a buffer with dedicated memory in one call.
func (d *Device) CreateBoundBuffer(size uint64, usage vk.BufferUsageFlags, mprops vk.MemoryPropertyFlags) (*BoundBuffer, error) {
	buffer, memory, err := d.CreateAndBindBufferAndMemory(size, 0, usage, mprops, vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}
	return &BoundBuffer{Buffer: buffer, Memory: memory}, nil
}

// CreateStagingBuffer creates a host-visible, host-coherent transfer source
// buffer pre-filled with data. Used for one-shot texture and buffer uploads;
// the caller retires it once the copy has been submitted.
func (d *Device) CreateStagingBuffer(data []byte) (*BoundBuffer, error) {
	buffer, memory, err := d.CreateAndBindBufferAndMemory(uint64(len(data)), 0,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		vk.SharingModeExclusive)
	if err != nil {
		return nil, err
	}

	if err := memory.MapCopyUnmap(data); err != nil {
		memory.Destroy()
		buffer.Destroy()
		return nil, err
	}

	return &BoundBuffer{Buffer: buffer, Memory: memory}, nil
}

// WriteBytes maps the backing memory and copies data into it at offset 0.
// The memory must be host visible.
func (b *BoundBuffer) WriteBytes(data []byte) error {
	return b.Memory.MapCopyUnmap(data)
}
