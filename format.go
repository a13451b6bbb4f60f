package vkdraw

import (
	vk "github.com/vulkan-go/vulkan"
)

// PixelFormat is the abstract, engine-level pixel format of a texture. The
// format resolver maps it onto a concrete native format; textures never pick
// vk.Format values directly.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatR8
	PixelFormatRG8
	PixelFormatRGBA8
	PixelFormatBGRA8
	PixelFormatSRGBA8
	PixelFormatR16F
	PixelFormatRG16F
	PixelFormatRGBA16F
	PixelFormatR32F
	PixelFormatRG32F
	PixelFormatRGBA32F
	PixelFormatR32UI
	PixelFormatDepth16
	PixelFormatDepth32F
	PixelFormatDepth24Stencil8
	PixelFormatDepth32FStencil8
	PixelFormatStencil8
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatR8:
		return "R8"
	case PixelFormatRG8:
		return "RG8"
	case PixelFormatRGBA8:
		return "RGBA8"
	case PixelFormatBGRA8:
		return "BGRA8"
	case PixelFormatSRGBA8:
		return "SRGBA8"
	case PixelFormatR16F:
		return "R16F"
	case PixelFormatRG16F:
		return "RG16F"
	case PixelFormatRGBA16F:
		return "RGBA16F"
	case PixelFormatR32F:
		return "R32F"
	case PixelFormatRG32F:
		return "RG32F"
	case PixelFormatRGBA32F:
		return "RGBA32F"
	case PixelFormatR32UI:
		return "R32UI"
	case PixelFormatDepth16:
		return "Depth16"
	case PixelFormatDepth32F:
		return "Depth32F"
	case PixelFormatDepth24Stencil8:
		return "Depth24Stencil8"
	case PixelFormatDepth32FStencil8:
		return "Depth32FStencil8"
	case PixelFormatStencil8:
		return "Stencil8"
	}
	return "Unknown"
}

// ResolveFormat maps an abstract pixel format to a concrete native format.
func ResolveFormat(p PixelFormat) vk.Format {
	switch p {
	case PixelFormatR8:
		return vk.FormatR8Unorm
	case PixelFormatRG8:
		return vk.FormatR8g8Unorm
	case PixelFormatRGBA8:
		return vk.FormatR8g8b8a8Unorm
	case PixelFormatBGRA8:
		return vk.FormatB8g8r8a8Unorm
	case PixelFormatSRGBA8:
		return vk.FormatR8g8b8a8Srgb
	case PixelFormatR16F:
		return vk.FormatR16Sfloat
	case PixelFormatRG16F:
		return vk.FormatR16g16Sfloat
	case PixelFormatRGBA16F:
		return vk.FormatR16g16b16a16Sfloat
	case PixelFormatR32F:
		return vk.FormatR32Sfloat
	case PixelFormatRG32F:
		return vk.FormatR32g32Sfloat
	case PixelFormatRGBA32F:
		return vk.FormatR32g32b32a32Sfloat
	case PixelFormatR32UI:
		return vk.FormatR32Uint
	case PixelFormatDepth16:
		return vk.FormatD16Unorm
	case PixelFormatDepth32F:
		return vk.FormatD32Sfloat
	case PixelFormatDepth24Stencil8:
		return vk.FormatD24UnormS8Uint
	case PixelFormatDepth32FStencil8:
		return vk.FormatD32SfloatS8Uint
	case PixelFormatStencil8:
		return vk.FormatS8Uint
	}
	return vk.FormatUndefined
}

// FormatBytesPerPixel returns the per-texel byte size of the resolved format.
// Only formats the upload path stages are covered; compressed formats go
// through their own copy sizing.
func FormatBytesPerPixel(format vk.Format) uint32 {
	switch format {
	case vk.FormatR8Unorm, vk.FormatS8Uint:
		return 1
	case vk.FormatR8g8Unorm, vk.FormatR16Sfloat, vk.FormatD16Unorm:
		return 2
	case vk.FormatR8g8b8a8Unorm, vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Srgb,
		vk.FormatR16g16Sfloat, vk.FormatR32Sfloat, vk.FormatR32Uint,
		vk.FormatD32Sfloat, vk.FormatD24UnormS8Uint:
		return 4
	case vk.FormatR16g16b16a16Sfloat, vk.FormatR32g32Sfloat, vk.FormatD32SfloatS8Uint:
		return 8
	case vk.FormatR32g32b32a32Sfloat:
		return 16
	}
	return 0
}

// HasDepthComponent reports whether the native format carries depth.
func HasDepthComponent(format vk.Format) bool {
	switch format {
	case vk.FormatD16Unorm, vk.FormatD32Sfloat, vk.FormatD16UnormS8Uint,
		vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint, vk.FormatX8D24UnormPack32:
		return true
	}
	return false
}

// HasStencilComponent reports whether the native format carries stencil.
func HasStencilComponent(format vk.Format) bool {
	switch format {
	case vk.FormatS8Uint, vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint,
		vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// ResolveAspect normalizes a requested aspect mask against the resolved
// format. Color formats always force the color bit; depth-only formats are
// restricted to depth; combined depth-stencil formats keep both unless the
// request names exactly one valid aspect.
func ResolveAspect(format vk.Format, requested vk.ImageAspectFlags) vk.ImageAspectFlags {
	depth := HasDepthComponent(format)
	stencil := HasStencilComponent(format)

	if !depth && !stencil {
		return vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}

	valid := vk.ImageAspectFlags(0)
	if depth {
		valid |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if stencil {
		valid |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}

	masked := requested & valid
	if masked == 0 {
		return valid
	}
	return masked
}
