package vkdraw

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestTextureLayoutNormalized(t *testing.T) {
	l := TextureLayout{Width: 64}.Normalized()
	if l.Height != 1 || l.Depth != 1 || l.ArrayLayers != 1 || l.MipLevels != 1 {
		t.Errorf("zero dimensions must normalize to 1: %+v", l)
	}
	if l.Width != 64 {
		t.Errorf("nonzero width must survive, got %d", l.Width)
	}
}

func TestDescribeTexture2D(t *testing.T) {
	desc := TextureDesc{
		Name:   "diffuse",
		Kind:   TextureKind2D,
		Format: PixelFormatRGBA8,
		Width:  256,
		Height: 256,
	}
	l := desc.DescribeTexture()
	if l.Width != 256 || l.Height != 256 || l.Depth != 1 {
		t.Errorf("extent: %+v", l)
	}
	if l.ArrayLayers != 1 {
		t.Errorf("layers: %d", l.ArrayLayers)
	}
	if l.MipLevels != 1 {
		t.Errorf("without auto mipmaps, mip levels must be 1, got %d", l.MipLevels)
	}
}

func TestDescribeTextureAutoMips(t *testing.T) {
	desc := TextureDesc{
		Kind:                TextureKind2D,
		Width:               256,
		Height:              256,
		AutoGenerateMipmaps: true,
	}
	l := desc.DescribeTexture()
	if l.MipLevels != 9 {
		t.Errorf("256x256 full chain is 9 levels, got %d", l.MipLevels)
	}
}

func TestDescribeTextureCube(t *testing.T) {
	desc := TextureDesc{Kind: TextureKindCube, Width: 128, Height: 128}
	l := desc.DescribeTexture()
	if l.ArrayLayers != 6 {
		t.Errorf("cube must have 6 layers, got %d", l.ArrayLayers)
	}
}

func TestDescribeTextureRectangleNoMips(t *testing.T) {
	desc := TextureDesc{Kind: TextureKindRectangle, Width: 640, Height: 480, AutoGenerateMipmaps: true}
	l := desc.DescribeTexture()
	if l.MipLevels != 1 {
		t.Errorf("rectangle textures never mip, got %d levels", l.MipLevels)
	}
}

func TestCubeAttachmentViewKey(t *testing.T) {
	desc := TextureDesc{Kind: TextureKindCube, Width: 128, Height: 128}
	key := desc.BuildAttachmentViewKey(2, 3, 0)

	if key.BaseMip != 2 || key.LevelCount != 1 {
		t.Errorf("mip range: base %d count %d", key.BaseMip, key.LevelCount)
	}
	if key.BaseLayer != 3 || key.LayerCount != 1 {
		t.Errorf("layer range: base %d count %d", key.BaseLayer, key.LayerCount)
	}
	if key.ViewType != vk.ImageViewType2d {
		t.Errorf("attachment views are 2D, got %d", key.ViewType)
	}
}

func TestNonLayeredAttachmentViewKeyIgnoresLayer(t *testing.T) {
	desc := TextureDesc{Kind: TextureKind2D, Width: 64, Height: 64}
	key := desc.BuildAttachmentViewKey(1, 5, 0)
	if key.BaseLayer != 0 {
		t.Errorf("2D textures have one layer, base layer must be 0, got %d", key.BaseLayer)
	}
}
