package vkdraw

import (
	vk "github.com/vulkan-go/vulkan"
)

// BufferView is a formatted view over a buffer, the backing object for
// uniform and storage texel buffer descriptors.
type BufferView struct {
	Device       *Device
	Buffer       *Buffer
	VKBufferView vk.BufferView
	Format       vk.Format
}

// CreateBufferView builds a view covering size bytes of the buffer starting
// at offset. A zero size spans from offset to the end of the buffer.
func (d *Device) CreateBufferView(buffer *Buffer, format vk.Format, offset, size uint64) (*BufferView, error) {
	rng := vk.DeviceSize(size)
	if size == 0 {
		rng = vk.DeviceSize(vk.WholeSize)
	}
	viewCreateInfo := vk.BufferViewCreateInfo{
		SType:  vk.StructureTypeBufferViewCreateInfo,
		Buffer: buffer.VKBuffer,
		Format: format,
		Offset: vk.DeviceSize(offset),
		Range:  rng,
	}

	var view vk.BufferView
	err := vk.Error(vk.CreateBufferView(d.VKDevice, &viewCreateInfo, nil, &view))
	if err != nil {
		return nil, err
	}

	var ret BufferView
	ret.Device = d
	ret.Buffer = buffer
	ret.VKBufferView = view
	ret.Format = format

	return &ret, nil
}

// Destroy releases the view. The underlying buffer is not owned and
// survives.
func (v *BufferView) Destroy() {
	vk.DestroyBufferView(v.Device.VKDevice, v.VKBufferView, nil)
}
