package vkdraw

import (
	"fmt"
	"sync"

	vk "github.com/vulkan-go/vulkan"
)

// PhysicalImageGroup is the allocator-owned backing for a pooled image.
// Render-target-class textures borrow their image and memory from a group
// instead of making dedicated allocations; the group (never the borrower)
// owns the handles and may rebuild them between frames. LastKnownLayout is
// shared state: every borrower reads it before a transition and writes it
// back afterwards.
type PhysicalImageGroup interface {
	Image() vk.Image
	Memory() vk.DeviceMemory
	ResolvedExtent() vk.Extent3D
	Format() vk.Format
	Usage() vk.ImageUsageFlags
	Layers() uint32
	LastKnownLayout() vk.ImageLayout
	SetLastKnownLayout(layout vk.ImageLayout)
	IsAllocated() bool
}

// PhysicalImageResolver decides whether a texture's backing can be supplied
// by a physical image group. Returning nil means the texture must make a
// dedicated allocation.
type PhysicalImageResolver interface {
	ResolveImageGroup(desc *TextureDesc) PhysicalImageGroup
}

// ImageGroupPool is a PhysicalImageResolver backed by one large device-local
// memory block and a first-fit allocator. Groups are keyed by name; a
// rebuild recreates the underlying image (new handle, possibly new extent)
// while borrowers discover the change through their staleness check.
type ImageGroupPool struct {
	Device *Device

	mu        sync.Mutex
	memory    *DeviceMemory
	allocator Allocator
	groups    map[string]*imageGroup
}

type imageGroup struct {
	pool *ImageGroupPool
	name string

	mu         sync.Mutex
	image      vk.Image
	allocation *Allocation
	extent     vk.Extent3D
	format     vk.Format
	usage      vk.ImageUsageFlags
	layers     uint32
	layout     vk.ImageLayout
	allocated  bool
}

// CreateImageGroupPool allocates the pool's backing memory up front.
func (d *Device) CreateImageGroupPool(size uint64) (*ImageGroupPool, error) {
	// Probe an image to discover the memory type bits for optimal-tiling
	// device-local images, mirroring how buffer pools are sized.
	probe, err := d.createRawImage(&TextureDesc{
		Kind:   TextureKind2D,
		Width:  16,
		Height: 16,
		Usage:  vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit),
	}, TextureLayout{Width: 16, Height: 16, Depth: 1, ArrayLayers: 1, MipLevels: 1}, vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyImage(d.VKDevice, probe, nil)

	var mr vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.VKDevice, probe, &mr)
	mr.Deref()

	memory, err := d.Allocate(int(size), mr.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	return &ImageGroupPool{
		Device:    d,
		memory:    memory,
		allocator: &LinearAllocator{Size: size},
		groups:    make(map[string]*imageGroup),
	}, nil
}

// ResolveImageGroup returns the group registered under the description's
// name, or nil when the texture should allocate dedicated storage. Only
// attachment-usage textures are pooled.
func (p *ImageGroupPool) ResolveImageGroup(desc *TextureDesc) PhysicalImageGroup {
	attachmentUsage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageDepthStencilAttachmentBit)
	if desc.Usage&attachmentUsage == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	g, ok := p.groups[desc.Name]
	if !ok {
		return nil
	}
	return g
}

// CreateGroup allocates a pooled image under the given name. Layers below 1
// are clamped; pooled images always have a single mip level.
func (p *ImageGroupPool) CreateGroup(name string, extent vk.Extent3D, format vk.Format, usage vk.ImageUsageFlags, layers uint32) (PhysicalImageGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.groups[name]; ok {
		return nil, fmt.Errorf("image group %q already exists", name)
	}

	g := &imageGroup{
		pool:   p,
		name:   name,
		extent: extent,
		format: format,
		usage:  usage,
		layers: maxUint32(layers, 1),
		layout: vk.ImageLayoutUndefined,
	}
	if err := g.buildLocked(); err != nil {
		return nil, err
	}

	p.groups[name] = g
	return g, nil
}

// RebuildGroup destroys and recreates the named group's image, typically on
// resize. The handle changes; borrowers refresh through their staleness
// check on next access.
func (p *ImageGroupPool) RebuildGroup(name string, extent vk.Extent3D) error {
	p.mu.Lock()
	g, ok := p.groups[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("image group %q not found", name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.releaseLocked()
	g.extent = extent
	g.layout = vk.ImageLayoutUndefined
	return g.buildLocked()
}

// ReleaseGroup frees the named group. Borrowers observe IsAllocated()==false
// and fail closed.
func (p *ImageGroupPool) ReleaseGroup(name string) {
	p.mu.Lock()
	g, ok := p.groups[name]
	delete(p.groups, name)
	p.mu.Unlock()
	if !ok {
		return
	}

	g.mu.Lock()
	g.releaseLocked()
	g.mu.Unlock()
}

func (p *ImageGroupPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, g := range p.groups {
		g.mu.Lock()
		g.releaseLocked()
		g.mu.Unlock()
		delete(p.groups, name)
	}
	if p.memory != nil {
		p.memory.Destroy()
		p.memory = nil
	}
}

// buildLocked creates the image and suballocates memory for it. Caller holds g.mu.
func (g *imageGroup) buildLocked() error {
	d := g.pool.Device

	imageInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        g.extent,
		MipLevels:     1,
		ArrayLayers:   g.layers,
		Format:        g.format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         g.usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	err := vk.Error(vk.CreateImage(d.VKDevice, &imageInfo, nil, &image))
	if err != nil {
		return fmt.Errorf("image group %q: %w", g.name, err)
	}

	var mr vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.VKDevice, image, &mr)
	mr.Deref()

	g.pool.mu.Lock()
	allocation := g.pool.allocator.Allocate(uint64(mr.Size), uint64(mr.Alignment))
	g.pool.mu.Unlock()
	if allocation == nil {
		vk.DestroyImage(d.VKDevice, image, nil)
		return fmt.Errorf("image group %q: insufficient pool space for %d bytes", g.name, mr.Size)
	}

	err = vk.Error(vk.BindImageMemory(d.VKDevice, image, g.pool.memory.VKDeviceMemory, vk.DeviceSize(allocation.Offset)))
	if err != nil {
		g.pool.mu.Lock()
		g.pool.allocator.Free(allocation)
		g.pool.mu.Unlock()
		vk.DestroyImage(d.VKDevice, image, nil)
		return fmt.Errorf("image group %q: %w", g.name, err)
	}

	g.image = image
	g.allocation = allocation
	g.allocated = true
	return nil
}

// releaseLocked frees the image and its suballocation. Caller holds g.mu.
func (g *imageGroup) releaseLocked() {
	if !g.allocated {
		return
	}
	vk.DestroyImage(g.pool.Device.VKDevice, g.image, nil)
	g.pool.mu.Lock()
	g.pool.allocator.Free(g.allocation)
	g.pool.mu.Unlock()
	g.image = vk.NullImage
	g.allocation = nil
	g.allocated = false
}

func (g *imageGroup) Image() vk.Image {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.image
}

func (g *imageGroup) Memory() vk.DeviceMemory {
	return g.pool.memory.VKDeviceMemory
}

func (g *imageGroup) ResolvedExtent() vk.Extent3D {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.extent
}

func (g *imageGroup) Format() vk.Format {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.format
}

func (g *imageGroup) Usage() vk.ImageUsageFlags {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

func (g *imageGroup) Layers() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.layers
}

func (g *imageGroup) LastKnownLayout() vk.ImageLayout {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.layout
}

func (g *imageGroup) SetLastKnownLayout(layout vk.ImageLayout) {
	g.mu.Lock()
	g.layout = layout
	g.mu.Unlock()
}

func (g *imageGroup) IsAllocated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allocated
}
