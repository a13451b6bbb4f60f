package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// formatPair keys a compatibility render pass. DepthFormat is Undefined for
// color-only passes.
type formatPair struct {
	Color vk.Format
	Depth vk.Format
}

// RenderPassCache builds and caches single-subpass render passes keyed by
// attachment formats. Draws described only by their target formats are
// compiled against a pass from this cache; any pass with matching formats,
// sample count and load/store behavior is render-pass compatible, so the
// cached pass serves pipeline creation regardless of which framebuffer the
// draw lands in.
type RenderPassCache struct {
	Device *Device

	passes *APIObjectRegistry[formatPair, vk.RenderPass]
}

func (d *Device) CreateRenderPassCache() *RenderPassCache {
	return &RenderPassCache{
		Device: d,
		passes: NewAPIObjectRegistry[formatPair, vk.RenderPass](),
	}
}

// Get returns the compatibility pass for a format pair, creating it on
// first use. The color format must be defined.
func (c *RenderPassCache) Get(colorFormat, depthFormat vk.Format) (vk.RenderPass, error) {
	if colorFormat == vk.FormatUndefined {
		return vk.NullRenderPass, fmt.Errorf("render pass cache: color format undefined")
	}

	key := formatPair{Color: colorFormat, Depth: depthFormat}
	return c.passes.GetOrCreate(key, func() (vk.RenderPass, error) {
		return c.build(key)
	})
}

func (c *RenderPassCache) build(key formatPair) (vk.RenderPass, error) {
	attachments := []vk.AttachmentDescription{{
		Format:         key.Color,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpLoad,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}}

	colorRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.AttachmentReference{colorRef},
	}

	var depthRef vk.AttachmentReference
	if key.Depth != vk.FormatUndefined {
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         key.Depth,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		depthRef = vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		subpass.PDepthStencilAttachment = &depthRef
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	var pass vk.RenderPass
	err := vk.Error(vk.CreateRenderPass(c.Device.VKDevice, &createInfo, nil, &pass))
	if err != nil {
		return vk.NullRenderPass, fmt.Errorf("render pass cache: create for (%d,%d): %w", key.Color, key.Depth, err)
	}
	return pass, nil
}

// Destroy frees all cached passes. The device must be idle.
func (c *RenderPassCache) Destroy() {
	c.passes.Range(func(key formatPair, pass vk.RenderPass) bool {
		vk.DestroyRenderPass(c.Device.VKDevice, pass, nil)
		return true
	})
	c.passes = NewAPIObjectRegistry[formatPair, vk.RenderPass]()
}
