package bladevk

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"
)

func TestDescribeFormat(t *testing.T) {
	tests := []struct {
		format  gputypes.TextureFormat
		native  vk.Format
		aspects FormatAspects
		block   BlockInfo
	}{
		{gputypes.TextureFormatRGBA8Unorm, vk.FormatR8g8b8a8Unorm, AspectColor, BlockInfo{4, 1, 1}},
		{gputypes.TextureFormatBGRA8UnormSrgb, vk.FormatB8g8r8a8Srgb, AspectColor, BlockInfo{4, 1, 1}},
		{gputypes.TextureFormatRGBA16Float, vk.FormatR16g16b16a16Sfloat, AspectColor, BlockInfo{8, 1, 1}},
		{gputypes.TextureFormatRGBA32Float, vk.FormatR32g32b32a32Sfloat, AspectColor, BlockInfo{16, 1, 1}},
		{gputypes.TextureFormatDepth32Float, vk.FormatD32Sfloat, AspectDepth, BlockInfo{4, 1, 1}},
		{gputypes.TextureFormatDepth24PlusStencil8, vk.FormatD24UnormS8Uint, AspectDepth | AspectStencil, BlockInfo{4, 1, 1}},
		{gputypes.TextureFormatStencil8, vk.FormatS8Uint, AspectStencil, BlockInfo{1, 1, 1}},
		{gputypes.TextureFormatBC1RGBAUnorm, vk.FormatBc1RgbaUnormBlock, AspectColor, BlockInfo{8, 4, 4}},
		{gputypes.TextureFormatBC7RGBAUnormSrgb, vk.FormatBc7SrgbBlock, AspectColor, BlockInfo{16, 4, 4}},
	}
	for _, tt := range tests {
		info := DescribeFormat(tt.format)
		if info.Native != tt.native || info.Aspects != tt.aspects || info.Block != tt.block {
			t.Errorf("DescribeFormat(%v) = %+v, want %v %v %+v", tt.format, info, tt.native, tt.aspects, tt.block)
		}
	}
}

func TestDescribeFormatUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an unknown format")
		}
	}()
	DescribeFormat(gputypes.TextureFormatUndefined)
}

func TestSubresourceRange(t *testing.T) {
	r := SubresourceRange(AspectDepth|AspectStencil, TextureSubresources{BaseMipLevel: 2, BaseArrayLayer: 1})
	if r.LevelCount != vk.RemainingMipLevels || r.LayerCount != vk.RemainingArrayLayers {
		t.Errorf("absent counts = %d/%d, want remaining sentinels", r.LevelCount, r.LayerCount)
	}
	if r.BaseMipLevel != 2 || r.BaseArrayLayer != 1 {
		t.Errorf("bases = %d/%d", r.BaseMipLevel, r.BaseArrayLayer)
	}
	want := vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	if r.AspectMask != want {
		t.Errorf("aspect mask = %#x, want %#x", r.AspectMask, want)
	}

	r = SubresourceRange(AspectColor, TextureSubresources{MipLevelCount: 3, ArrayLayerCount: 6})
	if r.LevelCount != 3 || r.LayerCount != 6 {
		t.Errorf("explicit counts = %d/%d, want 3/6", r.LevelCount, r.LayerCount)
	}
}

func TestCompareOp(t *testing.T) {
	tests := map[gputypes.CompareFunction]vk.CompareOp{
		gputypes.CompareFunctionUndefined:    vk.CompareOpNever,
		gputypes.CompareFunctionNever:        vk.CompareOpNever,
		gputypes.CompareFunctionLess:         vk.CompareOpLess,
		gputypes.CompareFunctionEqual:        vk.CompareOpEqual,
		gputypes.CompareFunctionLessEqual:    vk.CompareOpLessOrEqual,
		gputypes.CompareFunctionGreater:      vk.CompareOpGreater,
		gputypes.CompareFunctionNotEqual:     vk.CompareOpNotEqual,
		gputypes.CompareFunctionGreaterEqual: vk.CompareOpGreaterOrEqual,
		gputypes.CompareFunctionAlways:       vk.CompareOpAlways,
	}
	for fn, want := range tests {
		if got := CompareOp(fn); got != want {
			t.Errorf("CompareOp(%v) = %v, want %v", fn, got, want)
		}
	}
}
