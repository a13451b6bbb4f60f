package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestResolveFormat(t *testing.T) {
	if ResolveFormat(PixelFormatRGBA8) != vk.FormatR8g8b8a8Unorm {
		t.Error("RGBA8")
	}
	if ResolveFormat(PixelFormatDepth32F) != vk.FormatD32Sfloat {
		t.Error("Depth32F")
	}
	if ResolveFormat(PixelFormatUnknown) != vk.FormatUndefined {
		t.Error("unknown must resolve undefined")
	}
}

func TestResolveAspectColor(t *testing.T) {
	// Color formats force the color bit no matter what was requested.
	got := ResolveAspect(vk.FormatR8g8b8a8Unorm, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if got != vk.ImageAspectFlags(vk.ImageAspectColorBit) {
		t.Errorf("aspect = %#x", got)
	}
}

func TestResolveAspectDepthStencil(t *testing.T) {
	combined := vk.FormatD24UnormS8Uint
	both := vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)

	if got := ResolveAspect(combined, 0); got != both {
		t.Errorf("unspecified request on combined format = %#x, want both", got)
	}
	if got := ResolveAspect(combined, vk.ImageAspectFlags(vk.ImageAspectStencilBit)); got != vk.ImageAspectFlags(vk.ImageAspectStencilBit) {
		t.Errorf("stencil-only request = %#x", got)
	}
	// A request naming only invalid aspects falls back to what the format has.
	if got := ResolveAspect(vk.FormatD32Sfloat, vk.ImageAspectFlags(vk.ImageAspectStencilBit)); got != vk.ImageAspectFlags(vk.ImageAspectDepthBit) {
		t.Errorf("stencil request on depth-only format = %#x", got)
	}
}

func TestFormatBytesPerPixel(t *testing.T) {
	cases := []struct {
		format vk.Format
		want   uint32
	}{
		{vk.FormatR8Unorm, 1},
		{vk.FormatR8g8b8a8Unorm, 4},
		{vk.FormatR16g16b16a16Sfloat, 8},
		{vk.FormatR32g32b32a32Sfloat, 16},
		{vk.FormatBc1RgbUnormBlock, 0},
	}
	for _, c := range cases {
		if got := FormatBytesPerPixel(c.format); got != c.want {
			t.Errorf("format %d: got %d want %d", c.format, got, c.want)
		}
	}
}
