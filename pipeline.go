package bladevk

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// PipelineLayout is the ordered set of compiled data layouts a pipeline
// binds. Group i of the shaders is set layout i.
type PipelineLayout struct {
	raw        vk.PipelineLayout
	setLayouts []descriptorSetLayout
}

func (c *Context) createPipelineLayout(layouts []*ShaderDataLayout, stages vk.ShaderStageFlags) PipelineLayout {
	pl := PipelineLayout{setLayouts: make([]descriptorSetLayout, len(layouts))}
	raws := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		pl.setLayouts[i] = c.compileLayout(l, stages)
		raws[i] = pl.setLayouts[i].raw
	}
	raw, err := c.drv.CreatePipelineLayout(c.device, raws)
	mustSucceed(err, "create pipeline layout")
	pl.raw = raw
	return pl
}

func (c *Context) destroyPipelineLayout(pl *PipelineLayout) {
	c.drv.DestroyPipelineLayout(c.device, pl.raw)
	for i := range pl.setLayouts {
		c.destroyLayout(&pl.setLayouts[i])
	}
	pl.setLayouts = nil
}

type ComputePipelineDesc struct {
	Name        string
	DataLayouts []*ShaderDataLayout
	Compute     ShaderFunction
}

type ComputePipeline struct {
	layout PipelineLayout
	raw    vk.Pipeline
	wgSize [3]uint32
}

// WorkgroupSize is the size declared by the compute entry point.
func (p *ComputePipeline) WorkgroupSize() [3]uint32 {
	return p.wgSize
}

func (c *Context) CreateComputePipeline(desc ComputePipelineDesc) *ComputePipeline {
	wgSize, ok := desc.Compute.Shader.WorkgroupSize(desc.Compute.Entry)
	if !ok {
		panic(errors.AssertionFailedf("pipeline %q: %q is not a compute entry point", desc.Name, desc.Compute.Entry))
	}
	limit := c.caps.Limits.MaxComputeWorkGroupSize
	for i := range wgSize {
		if limit[i] != 0 && wgSize[i] > limit[i] {
			panic(errors.AssertionFailedf("pipeline %q: workgroup size %v exceeds %v", desc.Name, wgSize, limit))
		}
	}

	layout := c.createPipelineLayout(desc.DataLayouts, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	raw, err := c.drv.CreateComputePipeline(c.device, driver.ComputePipelineDesc{
		Layout: layout.raw,
		Stage:  driver.ShaderStage{Module: desc.Compute.Shader.raw, Entry: desc.Compute.Entry},
	})
	mustSucceed(err, "create compute pipeline")
	c.setObjectName(vk.ObjectTypePipeline, uintptr(raw), desc.Name)

	return &ComputePipeline{layout: layout, raw: raw, wgSize: wgSize}
}

func (c *Context) DestroyComputePipeline(p *ComputePipeline) {
	c.drv.DestroyPipeline(c.device, p.raw)
	c.destroyPipelineLayout(&p.layout)
	p.raw = 0
}

type RenderPipelineDesc struct {
	Name         string
	DataLayouts  []*ShaderDataLayout
	Vertex       ShaderFunction
	Fragment     ShaderFunction
	Primitive    gputypes.PrimitiveState
	DepthStencil *gputypes.DepthStencilState
	ColorTargets []gputypes.ColorTargetState
}

type RenderPipeline struct {
	layout PipelineLayout
	raw    vk.Pipeline
}

func (c *Context) CreateRenderPipeline(desc RenderPipelineDesc) *RenderPipeline {
	stages := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	layout := c.createPipelineLayout(desc.DataLayouts, stages)

	nd := driver.RenderPipelineDesc{
		Layout:    layout.raw,
		Vertex:    driver.ShaderStage{Module: desc.Vertex.Shader.raw, Entry: desc.Vertex.Entry},
		Topology:  primitiveTopologyToVk(desc.Primitive.Topology),
		CullMode:  cullModeToVk(desc.Primitive.CullMode),
		FrontFace: frontFaceToVk(desc.Primitive.FrontFace),
	}
	if desc.Fragment.Shader != nil {
		nd.Fragment = driver.ShaderStage{Module: desc.Fragment.Shader.raw, Entry: desc.Fragment.Entry}
	}
	for _, ct := range desc.ColorTargets {
		mask := colorWriteMaskToVk(ct.WriteMask)
		nd.Colors = append(nd.Colors, driver.ColorTarget{
			Format:    DescribeFormat(ct.Format).Native,
			WriteMask: mask,
			Blend:     blendStateToVk(ct.Blend, mask),
		})
	}
	if ds := desc.DepthStencil; ds != nil {
		nd.DepthFormat = DescribeFormat(ds.Format).Native
		nd.DepthWrite = ds.DepthWriteEnabled
		nd.DepthCompare = CompareOp(ds.DepthCompare)
	}

	raw, err := c.drv.CreateRenderPipeline(c.device, nd)
	mustSucceed(err, "create render pipeline")
	c.setObjectName(vk.ObjectTypePipeline, uintptr(raw), desc.Name)

	return &RenderPipeline{layout: layout, raw: raw}
}

func (c *Context) DestroyRenderPipeline(p *RenderPipeline) {
	c.drv.DestroyPipeline(c.device, p.raw)
	c.destroyPipelineLayout(&p.layout)
	p.raw = 0
}
