package vkdraw

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	vk "github.com/vulkan-go/vulkan"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// TextureData holds tightly packed pixel data per mip level per layer:
// Levels[mip][layer]. Missing levels beyond 0 are legal when the texture
// generates its own mip chain.
type TextureData struct {
	Levels [][][]byte
}

// TextureDataFromPixels wraps a single base level with one layer.
func TextureDataFromPixels(pixels []byte) *TextureData {
	return &TextureData{Levels: [][][]byte{{pixels}}}
}

// Upload stages the provided pixel data into the texture: one staging
// buffer and one copy region per (mip, layer), each staging buffer retired
// after its copy is recorded. On return every supplied level is in
// TransferDstOptimal; callers follow with GenerateMipmapsWithBlit or a
// final TransitionImageLayout.
func (t *Texture) Upload(cmd *CommandBuffer, retire *RetireQueue, data *TextureData) error {
	if err := t.RefreshPhysicalGroupImageIfStale(); err != nil {
		return err
	}
	if data == nil || len(data.Levels) == 0 {
		return fmt.Errorf("texture %q: upload with no data", t.Desc.Name)
	}
	if uint32(len(data.Levels)) > t.Layout.MipLevels {
		return fmt.Errorf("texture %q: %d data levels but layout has %d", t.Desc.Name, len(data.Levels), t.Layout.MipLevels)
	}

	if err := t.TransitionImageLayout(cmd, vk.ImageLayoutTransferDstOptimal); err != nil {
		return err
	}

	aspect := ResolveAspect(t.VKFormat, vk.ImageAspectFlags(vk.ImageAspectColorBit))

	for mip, layerSlices := range data.Levels {
		w := mipDim(t.Layout.Width, uint32(mip))
		h := mipDim(t.Layout.Height, uint32(mip))
		d := mipDim(t.Layout.Depth, uint32(mip))

		for layer, pixels := range layerSlices {
			if uint32(layer) >= t.Layout.ArrayLayers {
				return fmt.Errorf("texture %q: mip %d supplies layer %d but layout has %d layers", t.Desc.Name, mip, layer, t.Layout.ArrayLayers)
			}
			if len(pixels) == 0 {
				continue
			}

			staging, err := t.Device.CreateStagingBuffer(pixels)
			if err != nil {
				return fmt.Errorf("texture %q: staging mip %d layer %d: %w", t.Desc.Name, mip, layer, err)
			}

			region := vk.BufferImageCopy{
				ImageSubresource: vk.ImageSubresourceLayers{
					AspectMask:     aspect,
					MipLevel:       uint32(mip),
					BaseArrayLayer: uint32(layer),
					LayerCount:     1,
				},
				ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: d},
			}
			cmd.CmdCopyBufferToImage(staging.Buffer.VKBuffer, t.VKImage, vk.ImageLayoutTransferDstOptimal, []vk.BufferImageCopy{region})

			retireBoundBuffer(retire, staging)
		}
	}
	return nil
}

func mipDim(base, level uint32) uint32 {
	v := base >> level
	if v == 0 {
		return 1
	}
	return v
}

func retireBoundBuffer(retire *RetireQueue, b *BoundBuffer) {
	if retire == nil {
		b.Destroy()
		return
	}
	retire.RetireBuffer(b)
}

// DecodeImageFile loads an image from disk and returns tightly packed RGBA
// pixels plus dimensions. PNG, JPEG, BMP and TIFF are recognized.
func DecodeImageFile(path string) ([]byte, uint32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	return rgba.Pix, uint32(bounds.Dx()), uint32(bounds.Dy()), nil
}

// CreateTextureFromFile decodes an image file, creates a sampled 2D texture
// sized to it (with an auto-generated mip chain) and records the upload and
// mipmap blits.
func (d *Device) CreateTextureFromFile(cmd *CommandBuffer, retire *RetireQueue, name, path string) (*Texture, error) {
	pixels, w, h, err := DecodeImageFile(path)
	if err != nil {
		return nil, err
	}

	desc := TextureDesc{
		Name:                name,
		Kind:                TextureKind2D,
		Format:              PixelFormatRGBA8,
		Width:               w,
		Height:              h,
		AutoGenerateMipmaps: true,
		Usage: vk.ImageUsageFlags(vk.ImageUsageSampledBit |
			vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit),
	}

	tex := d.NewTexture(desc, nil)
	if err := tex.Generate(); err != nil {
		return nil, err
	}
	if err := tex.Upload(cmd, retire, TextureDataFromPixels(pixels)); err != nil {
		tex.Destroy(retire)
		return nil, err
	}
	if err := tex.GenerateMipmapsWithBlit(cmd); err != nil {
		tex.Destroy(retire)
		return nil, err
	}
	return tex, nil
}
