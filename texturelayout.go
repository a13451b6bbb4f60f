package vkdraw

import (
	vk "github.com/vulkan-go/vulkan"
)

// TextureKind is the closed set of texture shapes this package understands.
// Per-kind behavior (shape description, attachment view keys, data upload)
// is dispatched over this tag at the few call sites that need it.
type TextureKind int

const (
	TextureKind2D TextureKind = iota
	TextureKind2DArray
	TextureKind3D
	TextureKindCube
	TextureKindRectangle
)

func (k TextureKind) String() string {
	switch k {
	case TextureKind2D:
		return "2D"
	case TextureKind2DArray:
		return "2DArray"
	case TextureKind3D:
		return "3D"
	case TextureKindCube:
		return "Cube"
	case TextureKindRectangle:
		return "Rectangle"
	}
	return "Unknown"
}

// TextureLayout is the normalized logical shape of a texture: every field is
// at least 1. It is derived once per texture from the engine side description
// and invalidated on resize.
type TextureLayout struct {
	Width       uint32
	Height      uint32
	Depth       uint32
	ArrayLayers uint32
	MipLevels   uint32
}

// Normalized clamps every dimension, layer and mip count to at least 1.
func (l TextureLayout) Normalized() TextureLayout {
	l.Width = maxUint32(l.Width, 1)
	l.Height = maxUint32(l.Height, 1)
	l.Depth = maxUint32(l.Depth, 1)
	l.ArrayLayers = maxUint32(l.ArrayLayers, 1)
	l.MipLevels = maxUint32(l.MipLevels, 1)
	return l
}

func (l TextureLayout) Extent3D() vk.Extent3D {
	return vk.Extent3D{Width: l.Width, Height: l.Height, Depth: l.Depth}
}

// TextureDesc is the engine-level description of a texture. It is the input
// to DescribeTexture and to image creation.
type TextureDesc struct {
	Name   string
	Kind   TextureKind
	Format PixelFormat

	Width  uint32
	Height uint32
	Depth  uint32 // 3D textures only
	Layers uint32 // 2D array textures only; cubes are always 6

	MipLevels           uint32
	AutoGenerateMipmaps bool

	Usage       vk.ImageUsageFlags
	MemoryProps vk.MemoryPropertyFlags

	Sampler SamplerDesc
}

// SamplerDesc configures the texture's default sampler.
type SamplerDesc struct {
	MagFilter     vk.Filter
	MinFilter     vk.Filter
	MipmapMode    vk.SamplerMipmapMode
	AddressModeU  vk.SamplerAddressMode
	AddressModeV  vk.SamplerAddressMode
	AddressModeW  vk.SamplerAddressMode
	MaxAnisotropy float32
}

// DescribeTexture derives the logical layout from the description, applying
// per-kind rules before normalization:
//
//	2D          one layer, requested mips
//	2D array    Layers layers
//	3D          depth from Depth, one layer
//	Cube        six layers
//	Rectangle   one layer, always a single mip
func (d *TextureDesc) DescribeTexture() TextureLayout {
	l := TextureLayout{
		Width:     d.Width,
		Height:    d.Height,
		Depth:     1,
		MipLevels: d.MipLevels,
	}

	switch d.Kind {
	case TextureKind2D:
		l.ArrayLayers = 1
	case TextureKind2DArray:
		l.ArrayLayers = d.Layers
	case TextureKind3D:
		l.Depth = d.Depth
		l.ArrayLayers = 1
	case TextureKindCube:
		l.ArrayLayers = 6
	case TextureKindRectangle:
		l.ArrayLayers = 1
		l.MipLevels = 1
	}

	if d.AutoGenerateMipmaps && d.Kind != TextureKindRectangle && l.MipLevels == 0 {
		l.MipLevels = fullMipChain(l.Width, l.Height)
	}

	return l.Normalized()
}

// fullMipChain counts the levels of a complete chain down to 1x1.
func fullMipChain(width, height uint32) uint32 {
	levels := uint32(1)
	for dim := maxUint32(width, height); dim > 1; dim /= 2 {
		levels++
	}
	return levels
}

// DefaultViewType is the view type of the texture's primary view, covering
// the full mip/layer range.
func (d *TextureDesc) DefaultViewType() vk.ImageViewType {
	switch d.Kind {
	case TextureKind2DArray:
		return vk.ImageViewType2dArray
	case TextureKind3D:
		return vk.ImageViewType3d
	case TextureKindCube:
		return vk.ImageViewTypeCube
	}
	return vk.ImageViewType2d
}

// VKImageType maps the kind onto the native image type.
func (d *TextureDesc) VKImageType() vk.ImageType {
	if d.Kind == TextureKind3D {
		return vk.ImageType3d
	}
	return vk.ImageType2d
}

// VKImageCreateFlags returns extra create flags the kind requires.
func (d *TextureDesc) VKImageCreateFlags() vk.ImageCreateFlags {
	if d.Kind == TextureKindCube {
		return vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}
	return 0
}

// AttachmentViewKey identifies a cached secondary view suitable for
// framebuffer attachment. Attachment views always cover a single mip level
// and, for layered kinds, a single layer.
type AttachmentViewKey struct {
	BaseMip    uint32
	LevelCount uint32
	BaseLayer  uint32
	LayerCount uint32
	ViewType   vk.ImageViewType
	Aspect     vk.ImageAspectFlags
}

// BuildAttachmentViewKey builds the cache key for an attachment view of one
// (mip, layer) pair. Cube and array kinds map each face/layer to a distinct
// single-layer 2D view; 3D and plain 2D kinds ignore the layer index. The
// caller is responsible for rejecting out-of-range layer indices before
// calling this.
func (d *TextureDesc) BuildAttachmentViewKey(mipLevel, layerIndex uint32, aspect vk.ImageAspectFlags) AttachmentViewKey {
	key := AttachmentViewKey{
		BaseMip:    mipLevel,
		LevelCount: 1,
		LayerCount: 1,
		ViewType:   vk.ImageViewType2d,
		Aspect:     aspect,
	}

	switch d.Kind {
	case TextureKindCube, TextureKind2DArray:
		key.BaseLayer = layerIndex
	default:
		key.BaseLayer = 0
	}

	return key
}
