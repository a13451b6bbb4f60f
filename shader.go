package vkdraw

import (
	"hash/fnv"
	"os"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

type ShaderModule struct {
	Device         *Device
	Description    string
	VKShaderModule vk.ShaderModule
}

func (d *Device) CreateShaderModule(code []byte) (*ShaderModule, error) {
	var module vk.ShaderModule
	err := vk.Error(vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module))
	if err != nil {
		return nil, err
	}

	return &ShaderModule{Device: d, VKShaderModule: module}, nil
}

func (d *Device) LoadShaderModuleFromFile(file string) (*ShaderModule, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	module, err := d.CreateShaderModule(data)
	if err != nil {
		return nil, err
	}
	module.Description = file
	return module, nil
}

func (s *ShaderModule) VKPipelineShaderStageCreateInfo(stage vk.ShaderStageFlagBits, entryPoint string) vk.PipelineShaderStageCreateInfo {
	var shaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{}
	shaderStageCreateInfo.SType = vk.StructureTypePipelineShaderStageCreateInfo
	shaderStageCreateInfo.Stage = stage
	shaderStageCreateInfo.Module = s.VKShaderModule
	shaderStageCreateInfo.PName = safeString(entryPoint)
	return shaderStageCreateInfo
}

func (s *ShaderModule) Destroy() {
	vk.DestroyShaderModule(s.Device.VKDevice, s.VKShaderModule, nil)
}

// AutoUniformMember is one member of a reflected uniform block: name, byte
// offset within the block and engine value type.
type AutoUniformMember struct {
	Name    string
	Offset  uint32
	Type    ShaderVarType
	Default []byte

	// Array metadata from reflection. An ArrayStride of zero means tightly
	// packed elements; std140 blocks typically reflect 16-byte strides.
	IsArray     bool
	ArrayStride uint32
	ArrayLength uint32
}

// AutoUniformBlock is a uniform block the engine fills member-by-member
// instead of requiring an application-supplied buffer.
type AutoUniformBlock struct {
	Name     string
	Set      uint32
	Binding  uint32
	ByteSize uint32
	Members  []AutoUniformMember
}

// CompiledShader is one shader stage plus its reflection data: the
// descriptor bindings it references and, when present, its auto uniform
// block.
type CompiledShader struct {
	Module     *ShaderModule
	Stage      vk.ShaderStageFlagBits
	EntryPoint string

	DescriptorBindings []DescriptorBindingInfo
	AutoUniformBlock   *AutoUniformBlock

	codeHash uint64
}

// NewCompiledShader builds a compiled shader around SPIR-V code, hashing
// the code for use in program fingerprints.
func (d *Device) NewCompiledShader(code []byte, stage vk.ShaderStageFlagBits, entryPoint string) (*CompiledShader, error) {
	module, err := d.CreateShaderModule(code)
	if err != nil {
		return nil, err
	}
	if entryPoint == "" {
		entryPoint = "main"
	}

	h := fnv.New64a()
	h.Write(code)

	return &CompiledShader{
		Module:     module,
		Stage:      stage,
		EntryPoint: entryPoint,
		codeHash:   h.Sum64(),
	}, nil
}

// Hash returns the stable content hash of the stage: its code plus the
// reflected descriptor bindings. Two stages with identical SPIR-V but
// different binding metadata must not share a hash, so this is recomputed
// per call rather than frozen at construction, when reflection data is not
// attached yet.
func (c *CompiledShader) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	writeU64(c.codeHash)
	writeU64(uint64(len(c.DescriptorBindings)))
	for _, b := range c.DescriptorBindings {
		writeU64(uint64(b.Set))
		writeU64(uint64(b.Binding))
		writeU64(uint64(b.Type))
		writeU64(uint64(b.StageFlags))
		writeU64(uint64(b.Count))
		h.Write([]byte(b.Name))
	}
	if blk := c.AutoUniformBlock; blk != nil {
		h.Write([]byte(blk.Name))
		writeU64(uint64(blk.Set))
		writeU64(uint64(blk.Binding))
		writeU64(uint64(blk.ByteSize))
		writeU64(uint64(len(blk.Members)))
	}
	return h.Sum64()
}

func (c *CompiledShader) StageCreateInfo() vk.PipelineShaderStageCreateInfo {
	return c.Module.VKPipelineShaderStageCreateInfo(c.Stage, c.EntryPoint)
}

func (c *CompiledShader) Destroy() {
	if c.Module != nil {
		c.Module.Destroy()
		c.Module = nil
	}
}

func sliceUint32(data []byte) []uint32 {
	const m = 0x7fffffff
	return (*[m / 4]uint32)(unsafe.Pointer((*sliceHeader)(unsafe.Pointer(&data)).Data))[:len(data)/4]
}

type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}
