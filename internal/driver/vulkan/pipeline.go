package vulkan

import (
	"runtime"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

func (d *Driver) CreateComputePipeline(dev vk.Device, desc driver.ComputePipelineDesc) (vk.Pipeline, error) {
	entry := cString(desc.Stage.Entry)
	info := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: desc.Stage.Module,
			PName:  cStringPtr(entry),
		},
		Layout:            desc.Layout,
		BasePipelineIndex: -1,
	}
	var pipeline vk.Pipeline
	ret := d.cmds.CreateComputePipelines(dev, 0, 1, &info, nil, &pipeline)
	runtime.KeepAlive(entry)
	if err := driver.Check("vkCreateComputePipelines", ret); err != nil {
		return 0, err
	}
	return pipeline, nil
}

// pipelineBuilder holds the fixed function state of a render pipeline.
// Viewport and scissor are dynamic, vertices are pulled in the shader.
type pipelineBuilder struct {
	stages        []vk.PipelineShaderStageCreateInfo
	entries       [][]byte
	vertexInput   vk.PipelineVertexInputStateCreateInfo
	inputAssembly vk.PipelineInputAssemblyStateCreateInfo
	viewport      vk.PipelineViewportStateCreateInfo
	rasterizer    vk.PipelineRasterizationStateCreateInfo
	multisampling vk.PipelineMultisampleStateCreateInfo
	depthStencil  vk.PipelineDepthStencilStateCreateInfo
	blendTargets  []vk.PipelineColorBlendAttachmentState
	colorBlend    vk.PipelineColorBlendStateCreateInfo
	dynamicStates []vk.DynamicState
	dynamic       vk.PipelineDynamicStateCreateInfo
}

func newPipelineBuilder(desc driver.RenderPipelineDesc) *pipelineBuilder {
	pb := &pipelineBuilder{}

	pb.addStage(vk.ShaderStageVertexBit, desc.Vertex)
	if desc.Fragment.Module != 0 {
		pb.addStage(vk.ShaderStageFragmentBit, desc.Fragment)
	}

	pb.vertexInput = vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	pb.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: desc.Topology,
	}
	pb.viewport = vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	pb.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    desc.CullMode,
		FrontFace:   desc.FrontFace,
		LineWidth:   1.0,
	}
	pb.multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}
	pb.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
	}
	if desc.DepthFormat != vk.FormatUndefined {
		pb.depthStencil.DepthTestEnable = vk.True
		pb.depthStencil.DepthWriteEnable = boolToVk(desc.DepthWrite)
		pb.depthStencil.DepthCompareOp = desc.DepthCompare
	}

	for _, c := range desc.Colors {
		if c.Blend != nil {
			pb.blendTargets = append(pb.blendTargets, *c.Blend)
			continue
		}
		pb.blendTargets = append(pb.blendTargets, vk.PipelineColorBlendAttachmentState{
			BlendEnable:    vk.False,
			ColorWriteMask: c.WriteMask,
		})
	}
	pb.colorBlend = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(pb.blendTargets)),
	}
	if len(pb.blendTargets) > 0 {
		pb.colorBlend.PAttachments = &pb.blendTargets[0]
	}

	pb.dynamicStates = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	pb.dynamic = vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(pb.dynamicStates)),
		PDynamicStates:    &pb.dynamicStates[0],
	}
	return pb
}

func (pb *pipelineBuilder) addStage(stage vk.ShaderStageFlagBits, s driver.ShaderStage) {
	entry := cString(s.Entry)
	pb.entries = append(pb.entries, entry)
	pb.stages = append(pb.stages, vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: s.Module,
		PName:  cStringPtr(entry),
	})
}

func (pb *pipelineBuilder) info(layout vk.PipelineLayout, pass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(pb.stages)),
		PStages:             &pb.stages[0],
		PVertexInputState:   &pb.vertexInput,
		PInputAssemblyState: &pb.inputAssembly,
		PViewportState:      &pb.viewport,
		PRasterizationState: &pb.rasterizer,
		PMultisampleState:   &pb.multisampling,
		PDepthStencilState:  &pb.depthStencil,
		PColorBlendState:    &pb.colorBlend,
		PDynamicState:       &pb.dynamic,
		Layout:              layout,
		RenderPass:          pass,
		BasePipelineIndex:   -1,
	}
}

// CreateRenderPipeline compiles against a throwaway render pass of the same
// attachment formats. Passes opened later are compatible with it.
func (d *Driver) CreateRenderPipeline(dev vk.Device, desc driver.RenderPipelineDesc) (vk.Pipeline, error) {
	pass, err := d.createRenderPass(dev, pipelineLayoutPass(desc))
	if err != nil {
		return 0, err
	}
	defer d.cmds.DestroyRenderPass(dev, pass, nil)

	pb := newPipelineBuilder(desc)
	info := pb.info(desc.Layout, pass)
	var pipeline vk.Pipeline
	ret := d.cmds.CreateGraphicsPipelines(dev, 0, 1, &info, nil, &pipeline)
	runtime.KeepAlive(pb)
	if err := driver.Check("vkCreateGraphicsPipelines", ret); err != nil {
		return 0, err
	}
	return pipeline, nil
}

func (d *Driver) DestroyPipeline(dev vk.Device, pipeline vk.Pipeline) {
	d.cmds.DestroyPipeline(dev, pipeline, nil)
}
