package vkdraw

import (
	vk "github.com/vulkan-go/vulkan"
)

// DescriptorSet is a binding of resources to a descriptor, per a specific DescriptorSetLayout
type DescriptorSet struct {
	Device                *Device
	DescriptorPool        *DescriptorPool
	VKDescriptorSet       vk.DescriptorSet
	VKWriteDescriptorSets []vk.WriteDescriptorSet
}

func (du *DescriptorSet) append(w vk.WriteDescriptorSet) {
	if du.VKWriteDescriptorSets == nil {
		du.VKWriteDescriptorSets = make([]vk.WriteDescriptorSet, 0)
	}
	du.VKWriteDescriptorSets = append(du.VKWriteDescriptorSets, w)
}

// AddBuffer adds a specific buffer to this descriptor set
func (du *DescriptorSet) AddBuffer(dstBinding int, dtype vk.DescriptorType, b *Buffer, offset int) {
	du.append(vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      uint32(dstBinding),
		DescriptorCount: 1,
		DescriptorType:  dtype,
		PBufferInfo:     []vk.DescriptorBufferInfo{b.DSInfo(offset)},
	})
}

// AddCombinedImageSampler adds an image layout, image view and sampler to support sampling a texture
func (du *DescriptorSet) AddCombinedImageSampler(dstBinding int, layout vk.ImageLayout, imageView vk.ImageView, sampler vk.Sampler) {
	du.AddImageInfo(dstBinding, 0, vk.DescriptorTypeCombinedImageSampler, vk.DescriptorImageInfo{
		ImageView:   imageView,
		ImageLayout: layout,
		Sampler:     sampler,
	})
}

// AddStorageImage adds a storage image view in general layout
func (du *DescriptorSet) AddStorageImage(dstBinding int, imageView vk.ImageView) {
	du.AddImageInfo(dstBinding, 0, vk.DescriptorTypeStorageImage, vk.DescriptorImageInfo{
		ImageView:   imageView,
		ImageLayout: vk.ImageLayoutGeneral,
	})
}

// AddImageInfo adds an arbitrary image descriptor write at a specific array element
func (du *DescriptorSet) AddImageInfo(dstBinding int, arrayElement int, dtype vk.DescriptorType, info vk.DescriptorImageInfo) {
	du.append(vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      uint32(dstBinding),
		DstArrayElement: uint32(arrayElement),
		DescriptorCount: 1,
		DescriptorType:  dtype,
		PImageInfo:      []vk.DescriptorImageInfo{info},
	})
}

// AddTexelBufferView adds a uniform or storage texel buffer view
func (du *DescriptorSet) AddTexelBufferView(dstBinding int, dtype vk.DescriptorType, view vk.BufferView) {
	du.append(vk.WriteDescriptorSet{
		SType:            vk.StructureTypeWriteDescriptorSet,
		DstBinding:       uint32(dstBinding),
		DescriptorCount:  1,
		DescriptorType:   dtype,
		PTexelBufferView: []vk.BufferView{view},
	})
}

// Write flushes the accumulated descriptor writes to the device and clears
// the pending list so the set can be re-written later.
func (du *DescriptorSet) Write() {
	if len(du.VKWriteDescriptorSets) == 0 {
		return
	}
	for i := range du.VKWriteDescriptorSets {
		du.VKWriteDescriptorSets[i].DstSet = du.VKDescriptorSet
	}
	vk.UpdateDescriptorSets(du.Device.VKDevice, uint32(len(du.VKWriteDescriptorSets)), du.VKWriteDescriptorSets, 0, nil)
	du.VKWriteDescriptorSets = du.VKWriteDescriptorSets[:0]
}
