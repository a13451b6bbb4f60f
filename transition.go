package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// coerceTargetLayout adjusts a requested layout so it is legal for the
// image's usage flags. ShaderReadOnlyOptimal is only valid for sampled or
// input-attachment images: a storage-only image is coerced to General, and
// an image with neither sampled nor input-attachment usage is coerced to
// TransferSrcOptimal.
func coerceTargetLayout(requested vk.ImageLayout, usage vk.ImageUsageFlags) vk.ImageLayout {
	if requested != vk.ImageLayoutShaderReadOnlyOptimal {
		return requested
	}

	sampled := usage&vk.ImageUsageFlags(vk.ImageUsageSampledBit) != 0
	input := usage&vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit) != 0
	storage := usage&vk.ImageUsageFlags(vk.ImageUsageStorageBit) != 0

	if sampled || input {
		return requested
	}
	if storage {
		return vk.ImageLayoutGeneral
	}
	return vk.ImageLayoutTransferSrcOptimal
}

// transitionPlan is a pure description of the stages and access masks a
// layout transition needs.
type transitionPlan struct {
	srcStage  vk.PipelineStageFlags
	dstStage  vk.PipelineStageFlags
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
}

// planTransition picks precise stage and access pairs for the common upload
// path and a conservative all-commands barrier for everything else.
func planTransition(oldLayout, newLayout vk.ImageLayout) transitionPlan {
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		return transitionPlan{
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			srcAccess: 0,
			dstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
		}
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		return transitionPlan{
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			srcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			dstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
		}
	default:
		return transitionPlan{
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			srcAccess: vk.AccessFlags(vk.AccessMemoryWriteBit),
			dstAccess: vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
		}
	}
}

// TransitionImageLayout records a full-range layout barrier on the command
// buffer and updates the texture's tracked layout. The requested layout is
// coerced to one legal for the image's usage; transitioning a borrowed
// texture also updates the group's shared layout so sibling borrowers see
// the truth.
func (t *Texture) TransitionImageLayout(cmd *CommandBuffer, requested vk.ImageLayout) error {
	if err := t.RefreshPhysicalGroupImageIfStale(); err != nil {
		return err
	}
	if t.VKImage == vk.NullImage {
		return fmt.Errorf("texture %q: transition with no backing image", t.Desc.Name)
	}

	target := coerceTargetLayout(requested, t.Usage)
	if target == t.currentLayout {
		return nil
	}

	plan := planTransition(t.currentLayout, target)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           t.currentLayout,
		NewLayout:           target,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.VKImage,
		SrcAccessMask:       plan.srcAccess,
		DstAccessMask:       plan.dstAccess,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     ResolveAspect(t.VKFormat, 0),
			BaseMipLevel:   0,
			LevelCount:     t.Layout.MipLevels,
			BaseArrayLayer: 0,
			LayerCount:     t.Layout.ArrayLayers,
		},
	}

	cmd.CmdPipelineImageBarrier(plan.srcStage, plan.dstStage, barrier)
	t.setTrackedLayout(target)
	return nil
}

// setTrackedLayout records the new layout on the texture and, for borrowed
// images, on the group.
func (t *Texture) setTrackedLayout(layout vk.ImageLayout) {
	t.currentLayout = layout
	if !t.backing.ownsImageMemory && t.backing.group != nil {
		t.backing.group.SetLastKnownLayout(layout)
	}
}
