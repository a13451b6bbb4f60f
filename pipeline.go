package vkdraw

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

type ComputePipeline struct {
	Device                          *Device
	VKPipeline                      vk.Pipeline
	VKPipelineShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
	VKPipelineLayout                vk.PipelineLayout
}

func (c *ComputePipeline) SetPipelineLayout(layout *PipelineLayout) {
	c.VKPipelineLayout = layout.VKPipelineLayout
}

func (c *ComputePipeline) SetShaderStage(entryPoint string, shaderModule *ShaderModule) {
	c.VKPipelineShaderStageCreateInfo = shaderModule.VKPipelineShaderStageCreateInfo(vk.ShaderStageComputeBit, entryPoint)
}

func (c *ComputePipeline) Destroy() {
	if c.VKPipeline != vk.NullPipeline {
		vk.DestroyPipeline(c.Device.VKDevice, c.VKPipeline, nil)
		c.VKPipeline = vk.NullPipeline
	}
}

// CreateComputePipelines compiles a batch of compute pipelines against an
// optional driver cache.
func (d *Device) CreateComputePipelines(pc *NativePipelineCache, cp ...*ComputePipeline) error {
	pipelines := make([]vk.Pipeline, len(cp))
	ci := make([]vk.ComputePipelineCreateInfo, len(cp))

	for i, p := range cp {
		ci[i] = vk.ComputePipelineCreateInfo{
			SType:  vk.StructureTypeComputePipelineCreateInfo,
			Stage:  p.VKPipelineShaderStageCreateInfo,
			Layout: p.VKPipelineLayout,
		}
	}

	nativeCache := vk.NullPipelineCache
	if pc != nil {
		nativeCache = pc.VKPipelineCache
	}

	err := vk.Error(vk.CreateComputePipelines(
		d.VKDevice, nativeCache,
		uint32(len(ci)), ci,
		nil, pipelines))
	if err != nil {
		return err
	}

	for i := range pipelines {
		cp[i].Device = d
		cp[i].VKPipeline = pipelines[i]
	}
	return nil
}

// buildGraphicsPipeline compiles one graphics pipeline from a key, the
// program's stages and layout, and the assembled vertex input. Dynamic
// viewport and scissor are always enabled so one pipeline serves all
// resolutions.
func (d *Device) buildGraphicsPipeline(pc *NativePipelineCache, key PipelineKey,
	stages []vk.PipelineShaderStageCreateInfo, layout *PipelineLayout,
	input *VertexInputState, renderPass vk.RenderPass) (vk.Pipeline, error) {

	if len(stages) == 0 {
		return vk.NullPipeline, fmt.Errorf("graphics pipeline with no shader stages")
	}
	if layout == nil {
		return vk.NullPipeline, fmt.Errorf("graphics pipeline with no layout")
	}

	vertexInputState := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if input != nil {
		vertexInputState.VertexBindingDescriptionCount = uint32(len(input.Bindings))
		vertexInputState.PVertexBindingDescriptions = input.Bindings
		vertexInputState.VertexAttributeDescriptionCount = uint32(len(input.Attributes))
		vertexInputState.PVertexAttributeDescriptions = input.Attributes
	}

	inputAssemblyState := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               key.Topology,
		PrimitiveRestartEnable: vk.False,
	}

	// Viewport and scissor are dynamic; counts still must be declared.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterState := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(key.CullMode),
		FrontFace:               key.FrontFace,
		DepthBiasEnable:         vk.False,
	}

	multisampleState := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:  vk.False,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         boolToVK(key.BlendEnable),
		ColorBlendOp:        key.ColorBlendOp,
		AlphaBlendOp:        key.AlphaBlendOp,
		SrcColorBlendFactor: key.SrcColorBlendFactor,
		DstColorBlendFactor: key.DstColorBlendFactor,
		SrcAlphaBlendFactor: key.SrcAlphaBlendFactor,
		DstAlphaBlendFactor: key.DstAlphaBlendFactor,
		ColorWriteMask:      vk.ColorComponentFlags(key.ColorWriteMask),
	}

	colorBlendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	stencilFront := vk.StencilOpState{
		FailOp:      key.StencilFront.FailOp,
		PassOp:      key.StencilFront.PassOp,
		DepthFailOp: key.StencilFront.DepthFailOp,
		CompareOp:   key.StencilFront.CompareOp,
		CompareMask: key.StencilFront.CompareMask,
		WriteMask:   key.StencilWriteMask,
		Reference:   key.StencilFront.Reference,
	}
	stencilBack := vk.StencilOpState{
		FailOp:      key.StencilBack.FailOp,
		PassOp:      key.StencilBack.PassOp,
		DepthFailOp: key.StencilBack.DepthFailOp,
		CompareOp:   key.StencilBack.CompareOp,
		CompareMask: key.StencilBack.CompareMask,
		WriteMask:   key.StencilWriteMask,
		Reference:   key.StencilBack.Reference,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolToVK(key.DepthTestEnable),
		DepthWriteEnable:      boolToVK(key.DepthWriteEnable),
		DepthCompareOp:        key.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     boolToVK(key.StencilTestEnable),
		Front:                 stencilFront,
		Back:                  stencilBack,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PDepthStencilState:  &depthStencil,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              layout.VKPipelineLayout,
		RenderPass:          renderPass,
		Subpass:             0,
	}

	nativeCache := vk.NullPipelineCache
	if pc != nil {
		nativeCache = pc.VKPipelineCache
	}

	pipelines := make([]vk.Pipeline, 1)
	err := vk.Error(vk.CreateGraphicsPipelines(d.VKDevice, nativeCache,
		1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, pipelines))
	if err != nil {
		return vk.NullPipeline, err
	}
	return pipelines[0], nil
}
