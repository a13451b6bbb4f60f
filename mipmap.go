package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// blitStep is one level of a mip chain reduction: blit src dimensions down
// to dst dimensions into a destination level.
type blitStep struct {
	srcLevel  uint32
	dstLevel  uint32
	srcWidth  int32
	srcHeight int32
	dstWidth  int32
	dstHeight int32
}

// planMipChain lists the blits needed to fill mip levels 1..mips-1 from
// level 0, halving and clamping at 1. A single-level chain needs no blits.
func planMipChain(width, height, mips uint32) []blitStep {
	if mips <= 1 {
		return nil
	}

	steps := make([]blitStep, 0, mips-1)
	w, h := int32(width), int32(height)
	for level := uint32(1); level < mips; level++ {
		nw, nh := w, h
		if nw > 1 {
			nw /= 2
		}
		if nh > 1 {
			nh /= 2
		}
		steps = append(steps, blitStep{
			srcLevel:  level - 1,
			dstLevel:  level,
			srcWidth:  w,
			srcHeight: h,
			dstWidth:  nw,
			dstHeight: nh,
		})
		w, h = nw, nh
	}
	return steps
}

// GenerateMipmapsWithBlit fills the texture's mip chain by repeated blits
// from the previous level and leaves every level in ShaderReadOnlyOptimal.
// The image must be in TransferDstOptimal with level 0 already populated.
// When the format does not support linear blits the chain is skipped (with
// a one-time warning) but the image is still transitioned so sampling the
// base level works.
func (t *Texture) GenerateMipmapsWithBlit(cmd *CommandBuffer) error {
	if err := t.RefreshPhysicalGroupImageIfStale(); err != nil {
		return err
	}
	if t.VKImage == vk.NullImage {
		return fmt.Errorf("texture %q: generate mipmaps with no backing image", t.Desc.Name)
	}

	if t.Layout.MipLevels <= 1 {
		return t.TransitionImageLayout(cmd, vk.ImageLayoutShaderReadOnlyOptimal)
	}

	if !t.Device.PhysicalDevice.SupportsLinearBlit(t.VKFormat) {
		t.warn.Warnf("texture %q: format %d lacks linear blit support, skipping mipmap generation", t.Desc.Name, t.VKFormat)
		return t.TransitionImageLayout(cmd, vk.ImageLayoutShaderReadOnlyOptimal)
	}

	aspect := ResolveAspect(t.VKFormat, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	layers := t.Layout.ArrayLayers
	steps := planMipChain(t.Layout.Width, t.Layout.Height, t.Layout.MipLevels)

	for _, step := range steps {
		// Source level: done being written, becomes blit source.
		t.levelBarrier(cmd, step.srcLevel, layers,
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask:     aspect,
				MipLevel:       step.srcLevel,
				BaseArrayLayer: 0,
				LayerCount:     layers,
			},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask:     aspect,
				MipLevel:       step.dstLevel,
				BaseArrayLayer: 0,
				LayerCount:     layers,
			},
		}
		blit.SrcOffsets[1] = vk.Offset3D{X: step.srcWidth, Y: step.srcHeight, Z: 1}
		blit.DstOffsets[1] = vk.Offset3D{X: step.dstWidth, Y: step.dstHeight, Z: 1}

		cmd.CmdBlitImage(t.VKImage, vk.ImageLayoutTransferSrcOptimal,
			t.VKImage, vk.ImageLayoutTransferDstOptimal,
			[]vk.ImageBlit{blit}, vk.FilterLinear)

		// Source level is final: hand it to the shaders.
		t.levelBarrier(cmd, step.srcLevel, layers,
			vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))
	}

	// Last level was only ever a blit destination.
	t.levelBarrier(cmd, t.Layout.MipLevels-1, layers,
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))

	t.setTrackedLayout(vk.ImageLayoutShaderReadOnlyOptimal)
	return nil
}

func (t *Texture) levelBarrier(cmd *CommandBuffer, level, layers uint32,
	oldLayout, newLayout vk.ImageLayout,
	srcAccess, dstAccess vk.AccessFlags,
	srcStage, dstStage vk.PipelineStageFlags) {

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.VKImage,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     ResolveAspect(t.VKFormat, 0),
			BaseMipLevel:   level,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}
	cmd.CmdPipelineImageBarrier(srcStage, dstStage, barrier)
}
