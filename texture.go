package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ImageView wraps a native image view.
type ImageView struct {
	Device      *Device
	VKImageView vk.ImageView
}

func (i *ImageView) Destroy() {
	vk.DestroyImageView(i.Device.VKDevice, i.VKImageView, nil)
}

// imageBacking is the owned/borrowed sum for a texture's image storage.
// Exactly one of the two shapes is live: a dedicated (image, memory) pair
// the texture must free, or a group handle whose storage belongs to the
// allocator and is never freed here.
type imageBacking struct {
	ownsImageMemory bool
	memory          *DeviceMemory
	group           PhysicalImageGroup
	byteSize        uint64
}

// Texture is an image-backed texture: it owns or borrows a native image plus
// memory, derives its logical layout from the engine description, creates
// views and a sampler, tracks the image's current layout and performs
// staging uploads and mipmap generation.
type Texture struct {
	Device *Device
	Desc   TextureDesc

	Layout TextureLayout

	VKImage  vk.Image
	VKFormat vk.Format
	Usage    vk.ImageUsageFlags

	backing       imageBacking
	currentLayout vk.ImageLayout

	primaryView     *ImageView
	attachmentViews map[AttachmentViewKey]*ImageView
	sampler         vk.Sampler

	resolver  PhysicalImageResolver
	generated bool
	warn      warnSet
}

// NewTexture wraps a description; no native resources exist until Generate.
func (d *Device) NewTexture(desc TextureDesc, resolver PhysicalImageResolver) *Texture {
	return &Texture{
		Device:          d,
		Desc:            desc,
		resolver:        resolver,
		attachmentViews: make(map[AttachmentViewKey]*ImageView),
	}
}

// Generate derives the layout and acquires the backing image, primary view
// and sampler. It is a no-op when already generated.
func (t *Texture) Generate() error {
	if t.generated {
		return nil
	}

	t.Layout = t.Desc.DescribeTexture()

	if err := t.AcquireImageHandle(); err != nil {
		return err
	}
	if _, err := t.PrimaryView(); err != nil {
		return err
	}
	if err := t.ensureSampler(); err != nil {
		return err
	}

	t.generated = true
	return nil
}

// createRawImage creates an unbound native image for the description.
func (d *Device) createRawImage(desc *TextureDesc, layout TextureLayout, format vk.Format) (vk.Image, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         desc.VKImageCreateFlags(),
		ImageType:     desc.VKImageType(),
		Extent:        layout.Extent3D(),
		MipLevels:     layout.MipLevels,
		ArrayLayers:   layout.ArrayLayers,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         desc.Usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	err := vk.Error(vk.CreateImage(d.VKDevice, &imageInfo, nil, &image))
	if err != nil {
		return vk.NullImage, err
	}
	return image, nil
}

// AcquireImageHandle obtains backing storage. The physical image group
// resolver is consulted first; when it supplies a group the texture borrows
// the group's image, adopts its resolved shape and last known layout, and
// never frees the storage. Otherwise a dedicated image and memory are
// created and VRAM is accounted.
func (t *Texture) AcquireImageHandle() error {
	if t.resolver != nil {
		if group := t.resolver.ResolveImageGroup(&t.Desc); group != nil && group.IsAllocated() {
			t.backing = imageBacking{ownsImageMemory: false, group: group}
			t.adoptGroupState(group)
			return nil
		}
	}

	format := ResolveFormat(t.Desc.Format)
	if format == vk.FormatUndefined {
		return fmt.Errorf("texture %q: unresolvable pixel format %s", t.Desc.Name, t.Desc.Format)
	}

	image, err := t.Device.createRawImage(&t.Desc, t.Layout, format)
	if err != nil {
		return fmt.Errorf("texture %q: create image: %w", t.Desc.Name, err)
	}

	var mr vk.MemoryRequirements
	vk.GetImageMemoryRequirements(t.Device.VKDevice, image, &mr)
	mr.Deref()

	props := t.Desc.MemoryProps
	if props == 0 {
		props = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}

	memory, err := t.Device.Allocate(int(mr.Size), mr.MemoryTypeBits, props)
	if err != nil {
		vk.DestroyImage(t.Device.VKDevice, image, nil)
		return fmt.Errorf("texture %q: allocate %d bytes: %w", t.Desc.Name, mr.Size, err)
	}

	err = vk.Error(vk.BindImageMemory(t.Device.VKDevice, image, memory.VKDeviceMemory, 0))
	if err != nil {
		memory.Destroy()
		vk.DestroyImage(t.Device.VKDevice, image, nil)
		return fmt.Errorf("texture %q: bind image memory: %w", t.Desc.Name, err)
	}

	t.VKImage = image
	t.VKFormat = format
	t.Usage = t.Desc.Usage
	t.backing = imageBacking{ownsImageMemory: true, memory: memory, byteSize: uint64(mr.Size)}
	t.currentLayout = vk.ImageLayoutUndefined

	t.Device.VRAM.RecordAllocate(uint64(mr.Size))
	return nil
}

// adoptGroupState takes the group's image handle, resolved shape and shared
// layout. Borrowed images always have a single mip.
func (t *Texture) adoptGroupState(group PhysicalImageGroup) {
	t.VKImage = group.Image()
	t.VKFormat = group.Format()
	t.Usage = group.Usage()

	extent := group.ResolvedExtent()
	t.Layout.Width = extent.Width
	t.Layout.Height = extent.Height
	t.Layout.Depth = maxUint32(extent.Depth, 1)
	t.Layout.MipLevels = 1
	t.Layout.ArrayLayers = maxUint32(group.Layers(), 1)

	// Adopt the group's tracked layout, not Undefined, so later barriers
	// compute correct source layouts.
	t.currentLayout = group.LastKnownLayout()
}

// RefreshPhysicalGroupImageIfStale reconciles a borrowed texture with its
// group. The allocator may have rebuilt the image between frames; a cached
// stale handle is a correctness bug, so every accessor that exposes the
// image or a view calls this first. If the group is gone and cannot be
// re-resolved the cached handle is cleared: fail closed, never guess.
func (t *Texture) RefreshPhysicalGroupImageIfStale() error {
	if t.backing.ownsImageMemory || t.backing.group == nil {
		return nil
	}

	group := t.backing.group
	if !group.IsAllocated() {
		if t.resolver != nil {
			if replacement := t.resolver.ResolveImageGroup(&t.Desc); replacement != nil && replacement.IsAllocated() {
				t.backing.group = replacement
				t.destroyViews()
				t.adoptGroupState(replacement)
				return nil
			}
		}
		t.VKImage = vk.NullImage
		t.destroyViews()
		return fmt.Errorf("texture %q: physical image group released and not re-resolvable", t.Desc.Name)
	}

	if group.Image() == t.VKImage {
		return nil
	}

	// The group was rebuilt: recreate every view against the new image and
	// adopt its current shape and layout.
	t.destroyViews()
	t.adoptGroupState(group)
	return nil
}

func (t *Texture) destroyViews() {
	if t.primaryView != nil {
		t.primaryView.Destroy()
		t.primaryView = nil
	}
	for key, view := range t.attachmentViews {
		view.Destroy()
		delete(t.attachmentViews, key)
	}
}

// IsBorrowed reports whether the texture borrows a physical image group.
func (t *Texture) IsBorrowed() bool {
	return !t.backing.ownsImageMemory && t.backing.group != nil
}

// CurrentLayout returns the tracked image layout. It is the single source of
// truth consulted before emitting any transition.
func (t *Texture) CurrentLayout() vk.ImageLayout {
	return t.currentLayout
}

func (t *Texture) createView(viewType vk.ImageViewType, baseMip, levelCount, baseLayer, layerCount uint32, aspect vk.ImageAspectFlags) (*ImageView, error) {
	if t.VKImage == vk.NullImage {
		return nil, fmt.Errorf("texture %q: no backing image", t.Desc.Name)
	}

	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.VKImage,
		ViewType: viewType,
		Format:   t.VKFormat,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     ResolveAspect(t.VKFormat, aspect),
			BaseMipLevel:   baseMip,
			LevelCount:     levelCount,
			BaseArrayLayer: baseLayer,
			LayerCount:     layerCount,
		},
	}

	var view vk.ImageView
	err := vk.Error(vk.CreateImageView(t.Device.VKDevice, createInfo, nil, &view))
	if err != nil {
		return nil, fmt.Errorf("texture %q: create view: %w", t.Desc.Name, err)
	}

	return &ImageView{Device: t.Device, VKImageView: view}, nil
}

// PrimaryView returns the view covering the full mip and layer range,
// creating it on first use.
func (t *Texture) PrimaryView() (*ImageView, error) {
	if err := t.RefreshPhysicalGroupImageIfStale(); err != nil {
		return nil, err
	}
	if t.primaryView != nil {
		return t.primaryView, nil
	}

	view, err := t.createView(t.Desc.DefaultViewType(), 0, t.Layout.MipLevels, 0, t.Layout.ArrayLayers, 0)
	if err != nil {
		return nil, err
	}
	t.primaryView = view
	return view, nil
}

// GetAttachmentView returns a cached single-mip (and for layered kinds,
// single-layer) view for framebuffer attachment, creating it on demand.
func (t *Texture) GetAttachmentView(mipLevel, layerIndex uint32) (*ImageView, error) {
	if err := t.RefreshPhysicalGroupImageIfStale(); err != nil {
		return nil, err
	}
	if mipLevel >= t.Layout.MipLevels {
		return nil, fmt.Errorf("texture %q: mip %d out of range (%d levels)", t.Desc.Name, mipLevel, t.Layout.MipLevels)
	}
	if layerIndex >= t.Layout.ArrayLayers {
		return nil, fmt.Errorf("texture %q: layer %d out of range (%d layers)", t.Desc.Name, layerIndex, t.Layout.ArrayLayers)
	}

	key := t.Desc.BuildAttachmentViewKey(mipLevel, layerIndex, 0)
	key.Aspect = ResolveAspect(t.VKFormat, key.Aspect)

	if view, ok := t.attachmentViews[key]; ok {
		return view, nil
	}

	view, err := t.createView(key.ViewType, key.BaseMip, key.LevelCount, key.BaseLayer, key.LayerCount, key.Aspect)
	if err != nil {
		return nil, err
	}
	t.attachmentViews[key] = view
	return view, nil
}

func (t *Texture) ensureSampler() error {
	if t.sampler != vk.NullSampler {
		return nil
	}

	s := t.Desc.Sampler
	anisotropy := vk.Bool32(vk.False)
	if s.MaxAnisotropy > 1 {
		anisotropy = vk.Bool32(vk.True)
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        s.MagFilter,
		MinFilter:        s.MinFilter,
		MipmapMode:       s.MipmapMode,
		AddressModeU:     s.AddressModeU,
		AddressModeV:     s.AddressModeV,
		AddressModeW:     s.AddressModeW,
		AnisotropyEnable: anisotropy,
		MaxAnisotropy:    s.MaxAnisotropy,
		MaxLod:           float32(t.Layout.MipLevels),
		BorderColor:      vk.BorderColorIntOpaqueBlack,
	}

	var sampler vk.Sampler
	err := vk.Error(vk.CreateSampler(t.Device.VKDevice, &samplerInfo, nil, &sampler))
	if err != nil {
		return fmt.Errorf("texture %q: create sampler: %w", t.Desc.Name, err)
	}
	t.sampler = sampler
	return nil
}

// Sampler returns the texture's default sampler, creating it on first use.
func (t *Texture) Sampler() (vk.Sampler, error) {
	if err := t.ensureSampler(); err != nil {
		return vk.NullSampler, err
	}
	return t.sampler, nil
}

// CreateImageInfo builds a descriptor image info for ad hoc descriptor use.
func (t *Texture) CreateImageInfo() (vk.DescriptorImageInfo, error) {
	view, err := t.PrimaryView()
	if err != nil {
		return vk.DescriptorImageInfo{}, err
	}
	sampler, err := t.Sampler()
	if err != nil {
		return vk.DescriptorImageInfo{}, err
	}
	return vk.DescriptorImageInfo{
		ImageView:   view.VKImageView,
		Sampler:     sampler,
		ImageLayout: t.currentLayout,
	}, nil
}

// Destroy releases the texture's resources. Dedicated image and memory are
// retired through the queue so in-flight command buffers finish first;
// borrowed group storage is left alone.
func (t *Texture) Destroy(retire *RetireQueue) {
	for key, view := range t.attachmentViews {
		retireView(retire, t.Device, view)
		delete(t.attachmentViews, key)
	}
	if t.primaryView != nil {
		retireView(retire, t.Device, t.primaryView)
		t.primaryView = nil
	}
	if t.sampler != vk.NullSampler {
		sampler := t.sampler
		device := t.Device
		retireFunc(retire, func() {
			vk.DestroySampler(device.VKDevice, sampler, nil)
		})
		t.sampler = vk.NullSampler
	}

	if t.backing.ownsImageMemory && t.VKImage != vk.NullImage {
		image := t.VKImage
		memory := t.backing.memory
		device := t.Device
		if retire != nil {
			retire.RetireImageResources(device, image, memory)
		} else {
			vk.DestroyImage(device.VKDevice, image, nil)
			if memory != nil {
				memory.Destroy()
			}
		}
		t.Device.VRAM.RecordFree(t.backing.byteSize)
	}
	// Borrowed storage belongs to the allocator; only the handle is dropped.

	t.VKImage = vk.NullImage
	t.backing = imageBacking{}
	t.generated = false
	t.currentLayout = vk.ImageLayoutUndefined
}

func retireView(retire *RetireQueue, d *Device, view *ImageView) {
	v := view.VKImageView
	retireFunc(retire, func() {
		vk.DestroyImageView(d.VKDevice, v, nil)
	})
}

func retireFunc(retire *RetireQueue, fn func()) {
	if retire == nil {
		fn()
		return
	}
	retire.Retire(fn)
}
