package bladevk

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

// Every buffer gets the full usage set. Buffers are not specialized by
// role.
var bufferUsageAll = bufferUsageToVk(gputypes.BufferUsageCopySrc |
	gputypes.BufferUsageCopyDst |
	gputypes.BufferUsageStorage |
	gputypes.BufferUsageIndex |
	gputypes.BufferUsageVertex |
	gputypes.BufferUsageUniform |
	gputypes.BufferUsageIndirect)

func bufferUsageToVk(usage gputypes.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if usage&gputypes.BufferUsageCopySrc != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if usage&gputypes.BufferUsageCopyDst != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	if usage&gputypes.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if usage&gputypes.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if usage&gputypes.BufferUsageUniform != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if usage&gputypes.BufferUsageStorage != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if usage&gputypes.BufferUsageIndirect != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit)
	}
	return flags
}

// textureUsageToVk maps render attachment usage by aspect: color formats
// become color attachments, depth and stencil formats depth attachments.
func textureUsageToVk(usage gputypes.TextureUsage, aspects FormatAspects) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlags
	if usage&gputypes.TextureUsageCopySrc != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	if usage&gputypes.TextureUsageCopyDst != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	if usage&gputypes.TextureUsageTextureBinding != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if usage&gputypes.TextureUsageStorageBinding != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	if usage&gputypes.TextureUsageRenderAttachment != 0 {
		if aspects&AspectColor != 0 {
			flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
		} else {
			flags |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
		}
	}
	return flags
}

func textureDimensionToVk(dim gputypes.TextureDimension) vk.ImageType {
	switch dim {
	case gputypes.TextureDimension1D:
		return vk.ImageType1d
	case gputypes.TextureDimension3D:
		return vk.ImageType3d
	default:
		return vk.ImageType2d
	}
}

func textureViewDimensionToVk(dim gputypes.TextureViewDimension) vk.ImageViewType {
	switch dim {
	case gputypes.TextureViewDimension1D:
		return vk.ImageViewType1d
	case gputypes.TextureViewDimension2DArray:
		return vk.ImageViewType2dArray
	case gputypes.TextureViewDimensionCube:
		return vk.ImageViewTypeCube
	case gputypes.TextureViewDimensionCubeArray:
		return vk.ImageViewTypeCubeArray
	case gputypes.TextureViewDimension3D:
		return vk.ImageViewType3d
	default:
		return vk.ImageViewType2d
	}
}

func addressModeToVk(mode gputypes.AddressMode) vk.SamplerAddressMode {
	switch mode {
	case gputypes.AddressModeRepeat:
		return vk.SamplerAddressModeRepeat
	case gputypes.AddressModeMirrorRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	default:
		return vk.SamplerAddressModeClampToEdge
	}
}

func filterModeToVk(mode gputypes.FilterMode) vk.Filter {
	if mode == gputypes.FilterModeLinear {
		return vk.FilterLinear
	}
	return vk.FilterNearest
}

func mipmapFilterModeToVk(mode gputypes.MipmapFilterMode) vk.SamplerMipmapMode {
	if mode == gputypes.MipmapFilterModeLinear {
		return vk.SamplerMipmapModeLinear
	}
	return vk.SamplerMipmapModeNearest
}

func primitiveTopologyToVk(topology gputypes.PrimitiveTopology) vk.PrimitiveTopology {
	switch topology {
	case gputypes.PrimitiveTopologyPointList:
		return vk.PrimitiveTopologyPointList
	case gputypes.PrimitiveTopologyLineList:
		return vk.PrimitiveTopologyLineList
	case gputypes.PrimitiveTopologyLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case gputypes.PrimitiveTopologyTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func cullModeToVk(mode gputypes.CullMode) vk.CullModeFlags {
	switch mode {
	case gputypes.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case gputypes.CullModeBack:
		return vk.CullModeFlags(vk.CullModeBackBit)
	default:
		return vk.CullModeFlags(vk.CullModeNone)
	}
}

func frontFaceToVk(face gputypes.FrontFace) vk.FrontFace {
	if face == gputypes.FrontFaceCW {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func colorWriteMaskToVk(mask gputypes.ColorWriteMask) vk.ColorComponentFlags {
	var flags vk.ColorComponentFlags
	if mask&gputypes.ColorWriteMaskRed != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentRBit)
	}
	if mask&gputypes.ColorWriteMaskGreen != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentGBit)
	}
	if mask&gputypes.ColorWriteMaskBlue != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentBBit)
	}
	if mask&gputypes.ColorWriteMaskAlpha != 0 {
		flags |= vk.ColorComponentFlags(vk.ColorComponentABit)
	}
	return flags
}

func blendFactorToVk(factor gputypes.BlendFactor) vk.BlendFactor {
	switch factor {
	case gputypes.BlendFactorZero:
		return vk.BlendFactorZero
	case gputypes.BlendFactorSrc:
		return vk.BlendFactorSrcColor
	case gputypes.BlendFactorOneMinusSrc:
		return vk.BlendFactorOneMinusSrcColor
	case gputypes.BlendFactorSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case gputypes.BlendFactorDst:
		return vk.BlendFactorDstColor
	case gputypes.BlendFactorOneMinusDst:
		return vk.BlendFactorOneMinusDstColor
	case gputypes.BlendFactorDstAlpha:
		return vk.BlendFactorDstAlpha
	case gputypes.BlendFactorOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case gputypes.BlendFactorSrcAlphaSaturated:
		return vk.BlendFactorSrcAlphaSaturate
	case gputypes.BlendFactorConstant:
		return vk.BlendFactorConstantColor
	case gputypes.BlendFactorOneMinusConstant:
		return vk.BlendFactorOneMinusConstantColor
	default:
		return vk.BlendFactorOne
	}
}

func blendOperationToVk(op gputypes.BlendOperation) vk.BlendOp {
	switch op {
	case gputypes.BlendOperationSubtract:
		return vk.BlendOpSubtract
	case gputypes.BlendOperationReverseSubtract:
		return vk.BlendOpReverseSubtract
	case gputypes.BlendOperationMin:
		return vk.BlendOpMin
	case gputypes.BlendOperationMax:
		return vk.BlendOpMax
	default:
		return vk.BlendOpAdd
	}
}

func blendStateToVk(blend *gputypes.BlendState, mask vk.ColorComponentFlags) *vk.PipelineColorBlendAttachmentState {
	if blend == nil {
		return nil
	}
	return &vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: blendFactorToVk(blend.Color.SrcFactor),
		DstColorBlendFactor: blendFactorToVk(blend.Color.DstFactor),
		ColorBlendOp:        blendOperationToVk(blend.Color.Operation),
		SrcAlphaBlendFactor: blendFactorToVk(blend.Alpha.SrcFactor),
		DstAlphaBlendFactor: blendFactorToVk(blend.Alpha.DstFactor),
		AlphaBlendOp:        blendOperationToVk(blend.Alpha.Operation),
		ColorWriteMask:      mask,
	}
}

func loadOpToVk(op gputypes.LoadOp) vk.AttachmentLoadOp {
	switch op {
	case gputypes.LoadOpLoad:
		return vk.AttachmentLoadOpLoad
	case gputypes.LoadOpClear:
		return vk.AttachmentLoadOpClear
	default:
		return vk.AttachmentLoadOpDontCare
	}
}

func storeOpToVk(op gputypes.StoreOp) vk.AttachmentStoreOp {
	if op == gputypes.StoreOpStore {
		return vk.AttachmentStoreOpStore
	}
	return vk.AttachmentStoreOpDontCare
}

func indexFormatToVk(format gputypes.IndexFormat) vk.IndexType {
	if format == gputypes.IndexFormatUint16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}
