package vulkan

import (
	"runtime"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// passObjects are the native objects behind one CmdBeginRendering. They are
// released when the command buffer is reset or freed.
type passObjects struct {
	device      vk.Device
	renderPass  vk.RenderPass
	framebuffer vk.Framebuffer
}

type attachment struct {
	format vk.Format
	load   vk.AttachmentLoadOp
	store  vk.AttachmentStoreOp
}

// passLayout is the attachment shape of a single subpass render pass.
type passLayout struct {
	colors []attachment
	depth  *attachment
}

// pipelineLayoutPass is the shape a render pipeline is compiled against. Only
// formats matter for compatibility.
func pipelineLayoutPass(desc driver.RenderPipelineDesc) passLayout {
	var layout passLayout
	for _, c := range desc.Colors {
		layout.colors = append(layout.colors, attachment{format: c.Format, load: vk.AttachmentLoadOpDontCare, store: vk.AttachmentStoreOpStore})
	}
	if desc.DepthFormat != vk.FormatUndefined {
		layout.depth = &attachment{format: desc.DepthFormat, load: vk.AttachmentLoadOpDontCare, store: vk.AttachmentStoreOpStore}
	}
	return layout
}

func renderingLayoutPass(desc driver.RenderingDesc) passLayout {
	var layout passLayout
	for _, c := range desc.Colors {
		layout.colors = append(layout.colors, attachment{format: c.Format, load: c.LoadOp, store: c.StoreOp})
	}
	if desc.Depth != nil {
		layout.depth = &attachment{format: desc.Depth.Format, load: desc.Depth.DepthLoadOp, store: desc.Depth.DepthStoreOp}
	}
	return layout
}

// createRenderPass builds a single subpass pass. Images stay in the general
// layout before, during and after the pass.
func (d *Driver) createRenderPass(dev vk.Device, layout passLayout) (vk.RenderPass, error) {
	var (
		descriptions []vk.AttachmentDescription
		colorRefs    []vk.AttachmentReference
		depthRef     *vk.AttachmentReference
	)
	for _, c := range layout.colors {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(descriptions)),
			Layout:     vk.ImageLayoutGeneral,
		})
		descriptions = append(descriptions, vk.AttachmentDescription{
			Format:         c.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         c.load,
			StoreOp:        c.store,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutGeneral,
			FinalLayout:    vk.ImageLayoutGeneral,
		})
	}
	if layout.depth != nil {
		depthRef = &vk.AttachmentReference{
			Attachment: uint32(len(descriptions)),
			Layout:     vk.ImageLayoutGeneral,
		}
		descriptions = append(descriptions, vk.AttachmentDescription{
			Format:         layout.depth.format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         layout.depth.load,
			StoreOp:        layout.depth.store,
			StencilLoadOp:  layout.depth.load,
			StencilStoreOp: layout.depth.store,
			InitialLayout:  vk.ImageLayoutGeneral,
			FinalLayout:    vk.ImageLayoutGeneral,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorRefs)),
		PDepthStencilAttachment: depthRef,
	}
	if len(colorRefs) > 0 {
		subpass.PColorAttachments = &colorRefs[0]
	}

	attachmentStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
		vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	attachmentAccess := vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
		vk.AccessDepthStencilAttachmentWriteBit)
	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:      vk.SubpassExternal,
			DstSubpass:      0,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			DstStageMask:    attachmentStages,
			SrcAccessMask:   vk.AccessFlags(vk.AccessMemoryWriteBit),
			DstAccessMask:   attachmentAccess,
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
		{
			SrcSubpass:      0,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    attachmentStages,
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
			SrcAccessMask:   attachmentAccess,
			DstAccessMask:   vk.AccessFlags(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descriptions)),
		SubpassCount:    1,
		PSubpasses:      &subpass,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   &dependencies[0],
	}
	if len(descriptions) > 0 {
		info.PAttachments = &descriptions[0]
	}

	var pass vk.RenderPass
	ret := d.cmds.CreateRenderPass(dev, &info, nil, &pass)
	runtime.KeepAlive(descriptions)
	runtime.KeepAlive(colorRefs)
	runtime.KeepAlive(depthRef)
	runtime.KeepAlive(dependencies)
	if err := driver.Check("vkCreateRenderPass", ret); err != nil {
		return 0, err
	}
	return pass, nil
}

func (d *Driver) CmdBeginRendering(dev vk.Device, cb vk.CommandBuffer, desc driver.RenderingDesc) error {
	pass, err := d.createRenderPass(dev, renderingLayoutPass(desc))
	if err != nil {
		return err
	}

	var (
		views  []vk.ImageView
		clears []vk.ClearValue
	)
	for _, c := range desc.Colors {
		views = append(views, c.View)
		clears = append(clears, vk.ClearValueColor(c.ClearColor[0], c.ClearColor[1], c.ClearColor[2], c.ClearColor[3]))
	}
	if desc.Depth != nil {
		views = append(views, desc.Depth.View)
		clears = append(clears, vk.ClearValueDepthStencil(desc.Depth.ClearDepth, desc.Depth.ClearStencil))
	}

	fbInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}
	if len(views) > 0 {
		fbInfo.PAttachments = &views[0]
	}
	var framebuffer vk.Framebuffer
	ret := d.cmds.CreateFramebuffer(dev, &fbInfo, nil, &framebuffer)
	runtime.KeepAlive(views)
	if err := driver.Check("vkCreateFramebuffer", ret); err != nil {
		d.cmds.DestroyRenderPass(dev, pass, nil)
		return err
	}

	d.mu.Lock()
	d.passes[cb] = append(d.passes[cb], passObjects{device: dev, renderPass: pass, framebuffer: framebuffer})
	d.mu.Unlock()

	begin := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: desc.Width, Height: desc.Height},
		},
		ClearValueCount: uint32(len(clears)),
	}
	if len(clears) > 0 {
		begin.PClearValues = &clears[0]
	}
	d.cmds.CmdBeginRenderPass(cb, &begin, vk.SubpassContentsInline)
	runtime.KeepAlive(clears)
	return nil
}

func (d *Driver) CmdEndRendering(cb vk.CommandBuffer) {
	d.cmds.CmdEndRenderPass(cb)
}

// releasePasses destroys the pass objects recorded into cb.
func (d *Driver) releasePasses(cb vk.CommandBuffer) {
	d.mu.Lock()
	objects := d.passes[cb]
	delete(d.passes, cb)
	d.mu.Unlock()
	for _, o := range objects {
		d.cmds.DestroyFramebuffer(o.device, o.framebuffer, nil)
		d.cmds.DestroyRenderPass(o.device, o.renderPass, nil)
	}
}
