package bladevk

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

// FormatAspects is the set of image aspects a format carries.
type FormatAspects uint8

const (
	AspectColor FormatAspects = 1 << iota
	AspectDepth
	AspectStencil
)

// Native converts the aspect set to image aspect flags.
func (a FormatAspects) Native() vk.ImageAspectFlags {
	var flags vk.ImageAspectFlags
	if a&AspectColor != 0 {
		flags |= vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	if a&AspectDepth != 0 {
		flags |= vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	if a&AspectStencil != 0 {
		flags |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return flags
}

// BlockInfo is the byte size and texel footprint of one format block.
// Uncompressed formats have 1x1 blocks.
type BlockInfo struct {
	Bytes  uint8
	Width  uint8
	Height uint8
}

// FormatInfo describes a texture format.
type FormatInfo struct {
	Native  vk.Format
	Aspects FormatAspects
	Block   BlockInfo
}

func color(native vk.Format, bytes uint8) FormatInfo {
	return FormatInfo{Native: native, Aspects: AspectColor, Block: BlockInfo{Bytes: bytes, Width: 1, Height: 1}}
}

func compressed(native vk.Format, bytes uint8) FormatInfo {
	return FormatInfo{Native: native, Aspects: AspectColor, Block: BlockInfo{Bytes: bytes, Width: 4, Height: 4}}
}

func depthStencil(native vk.Format, aspects FormatAspects, bytes uint8) FormatInfo {
	return FormatInfo{Native: native, Aspects: aspects, Block: BlockInfo{Bytes: bytes, Width: 1, Height: 1}}
}

var formatTable = map[gputypes.TextureFormat]FormatInfo{
	gputypes.TextureFormatR8Unorm:        color(vk.FormatR8Unorm, 1),
	gputypes.TextureFormatRG8Unorm:       color(vk.FormatR8g8Unorm, 2),
	gputypes.TextureFormatRGBA8Unorm:     color(vk.FormatR8g8b8a8Unorm, 4),
	gputypes.TextureFormatRGBA8UnormSrgb: color(vk.FormatR8g8b8a8Srgb, 4),
	gputypes.TextureFormatBGRA8Unorm:     color(vk.FormatB8g8r8a8Unorm, 4),
	gputypes.TextureFormatBGRA8UnormSrgb: color(vk.FormatB8g8r8a8Srgb, 4),
	gputypes.TextureFormatRGBA8Snorm:     color(vk.FormatR8g8b8a8Snorm, 4),
	gputypes.TextureFormatR16Float:       color(vk.FormatR16Sfloat, 2),
	gputypes.TextureFormatRG16Float:      color(vk.FormatR16g16Sfloat, 4),
	gputypes.TextureFormatRGBA16Float:    color(vk.FormatR16g16b16a16Sfloat, 8),
	gputypes.TextureFormatR32Float:       color(vk.FormatR32Sfloat, 4),
	gputypes.TextureFormatRG32Float:      color(vk.FormatR32g32Sfloat, 8),
	gputypes.TextureFormatRGBA32Float:    color(vk.FormatR32g32b32a32Sfloat, 16),
	gputypes.TextureFormatR32Uint:        color(vk.FormatR32Uint, 4),
	gputypes.TextureFormatRG32Uint:       color(vk.FormatR32g32Uint, 8),
	gputypes.TextureFormatRGBA32Uint:     color(vk.FormatR32g32b32a32Uint, 16),
	gputypes.TextureFormatRGB10A2Unorm:   color(vk.FormatA2b10g10r10UnormPack32, 4),
	gputypes.TextureFormatRG11B10Ufloat:  color(vk.FormatB10g11r11UfloatPack32, 4),
	gputypes.TextureFormatRGB9E5Ufloat:   color(vk.FormatE5b9g9r9UfloatPack32, 4),

	gputypes.TextureFormatDepth16Unorm:         depthStencil(vk.FormatD16Unorm, AspectDepth, 2),
	gputypes.TextureFormatDepth24Plus:          depthStencil(vk.FormatX8D24UnormPack32, AspectDepth, 4),
	gputypes.TextureFormatDepth32Float:         depthStencil(vk.FormatD32Sfloat, AspectDepth, 4),
	gputypes.TextureFormatDepth24PlusStencil8:  depthStencil(vk.FormatD24UnormS8Uint, AspectDepth|AspectStencil, 4),
	gputypes.TextureFormatDepth32FloatStencil8: depthStencil(vk.FormatD32SfloatS8Uint, AspectDepth|AspectStencil, 8),
	gputypes.TextureFormatStencil8:             depthStencil(vk.FormatS8Uint, AspectStencil, 1),

	gputypes.TextureFormatBC1RGBAUnorm:     compressed(vk.FormatBc1RgbaUnormBlock, 8),
	gputypes.TextureFormatBC1RGBAUnormSrgb: compressed(vk.FormatBc1RgbaSrgbBlock, 8),
	gputypes.TextureFormatBC2RGBAUnorm:     compressed(vk.FormatBc2UnormBlock, 16),
	gputypes.TextureFormatBC2RGBAUnormSrgb: compressed(vk.FormatBc2SrgbBlock, 16),
	gputypes.TextureFormatBC3RGBAUnorm:     compressed(vk.FormatBc3UnormBlock, 16),
	gputypes.TextureFormatBC3RGBAUnormSrgb: compressed(vk.FormatBc3SrgbBlock, 16),
	gputypes.TextureFormatBC4RUnorm:        compressed(vk.FormatBc4UnormBlock, 8),
	gputypes.TextureFormatBC4RSnorm:        compressed(vk.FormatBc4SnormBlock, 8),
	gputypes.TextureFormatBC5RGUnorm:       compressed(vk.FormatBc5UnormBlock, 16),
	gputypes.TextureFormatBC5RGSnorm:       compressed(vk.FormatBc5SnormBlock, 16),
	gputypes.TextureFormatBC6HRGBUfloat:    compressed(vk.FormatBc6hUfloatBlock, 16),
	gputypes.TextureFormatBC6HRGBFloat:     compressed(vk.FormatBc6hSfloatBlock, 16),
	gputypes.TextureFormatBC7RGBAUnorm:     compressed(vk.FormatBc7UnormBlock, 16),
	gputypes.TextureFormatBC7RGBAUnormSrgb: compressed(vk.FormatBc7SrgbBlock, 16),
}

// DescribeFormat returns the native code, aspects and block layout of
// format. Formats outside the table are a programming error.
func DescribeFormat(format gputypes.TextureFormat) FormatInfo {
	info, ok := formatTable[format]
	if !ok {
		panic(errors.AssertionFailedf("unsupported texture format %v", format))
	}
	return info
}

// TextureSubresources selects mip levels and array layers. A zero count
// means every level or layer from the base to the end.
type TextureSubresources struct {
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// SubresourceRange builds the native range for aspects and sub.
func SubresourceRange(aspects FormatAspects, sub TextureSubresources) vk.ImageSubresourceRange {
	levels, layers := uint32(vk.RemainingMipLevels), uint32(vk.RemainingArrayLayers)
	if sub.MipLevelCount != 0 {
		levels = sub.MipLevelCount
	}
	if sub.ArrayLayerCount != 0 {
		layers = sub.ArrayLayerCount
	}
	return vk.ImageSubresourceRange{
		AspectMask:     aspects.Native(),
		BaseMipLevel:   sub.BaseMipLevel,
		LevelCount:     levels,
		BaseArrayLayer: sub.BaseArrayLayer,
		LayerCount:     layers,
	}
}

// CompareOp converts a compare function. Undefined maps to never.
func CompareOp(fn gputypes.CompareFunction) vk.CompareOp {
	switch fn {
	case gputypes.CompareFunctionLess:
		return vk.CompareOpLess
	case gputypes.CompareFunctionEqual:
		return vk.CompareOpEqual
	case gputypes.CompareFunctionLessEqual:
		return vk.CompareOpLessOrEqual
	case gputypes.CompareFunctionGreater:
		return vk.CompareOpGreater
	case gputypes.CompareFunctionNotEqual:
		return vk.CompareOpNotEqual
	case gputypes.CompareFunctionGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	case gputypes.CompareFunctionAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpNever
	}
}
