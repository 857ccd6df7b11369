package bladevk

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// Extent is a texture size. For 2D textures DepthOrArrayLayers is ignored
// in favor of ArrayLayerCount.
type Extent = gputypes.Extent3D

type TextureDesc struct {
	Name            string
	Format          gputypes.TextureFormat
	Size            Extent
	ArrayLayerCount uint32
	MipLevelCount   uint32
	Dimension       gputypes.TextureDimension
	Usage           gputypes.TextureUsage
}

// Texture is a copyable image handle that remembers its format for
// aspect and subresource computations.
type Texture struct {
	raw    vk.Image
	memory MemoryHandle
	format gputypes.TextureFormat
	size   Extent
}

func (t Texture) Format() gputypes.TextureFormat { return t.format }

func (t Texture) Size() Extent { return t.size }

// TexturePiece addresses a mip level, array layer and origin of a texture.
type TexturePiece struct {
	Texture    Texture
	MipLevel   uint32
	ArrayLayer uint32
	Origin     [3]uint32
}

func (t Texture) At(mip, layer uint32) TexturePiece {
	return TexturePiece{Texture: t, MipLevel: mip, ArrayLayer: layer}
}

func (c *Context) CreateTexture(desc TextureDesc) Texture {
	info := DescribeFormat(desc.Format)

	var flags vk.ImageCreateFlags
	layers := max(desc.ArrayLayerCount, 1)
	depth := uint32(1)
	if desc.Dimension == gputypes.TextureDimension3D {
		depth = max(desc.Size.DepthOrArrayLayers, 1)
		layers = 1
	} else if desc.Dimension == gputypes.TextureDimension2D && layers%6 == 0 && desc.Size.Width == desc.Size.Height {
		flags |= vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	raw, req, err := c.drv.CreateImage(c.device, driver.ImageDesc{
		Type:        textureDimensionToVk(desc.Dimension),
		Flags:       flags,
		Format:      info.Native,
		Extent:      vk.Extent3D{Width: desc.Size.Width, Height: desc.Size.Height, Depth: depth},
		MipLevels:   max(desc.MipLevelCount, 1),
		ArrayLayers: layers,
		Usage:       textureUsageToVk(desc.Usage, info.Aspects),
	})
	mustSucceed(err, "create image")

	handle, err := c.memory.Allocate(MemoryRequest{
		Size:      uint64(req.Size),
		Alignment: uint64(req.Alignment),
		TypeBits:  req.MemoryTypeBits,
		Location:  MemoryDevice,
	})
	mustSucceed(err, "allocate image memory")

	block := c.memory.Block(handle)
	mustSucceed(c.drv.BindImageMemory(c.device, raw, block.Memory, block.Offset), "bind image memory")
	c.setObjectName(vk.ObjectTypeImage, uintptr(raw), desc.Name)

	return Texture{raw: raw, memory: handle, format: desc.Format, size: desc.Size}
}

func (c *Context) DestroyTexture(t Texture) {
	c.drv.DestroyImage(c.device, t.raw)
	c.memory.Free(t.memory)
}

type TextureViewDesc struct {
	Name    string
	Texture Texture
	// Format defaults to the texture format.
	Format       gputypes.TextureFormat
	Dimension    gputypes.TextureViewDimension
	Subresources TextureSubresources
}

// TextureView carries the aspects it covers and the size of its base mip
// so render passes can be sized from their attachments.
type TextureView struct {
	raw     vk.ImageView
	aspects FormatAspects
	format  vk.Format
	width   uint32
	height  uint32
}

func (c *Context) CreateTextureView(desc TextureViewDesc) TextureView {
	format := desc.Format
	if format == gputypes.TextureFormatUndefined {
		format = desc.Texture.format
	}
	info := DescribeFormat(format)

	raw, err := c.drv.CreateImageView(c.device, driver.ImageViewDesc{
		Image:    desc.Texture.raw,
		ViewType: textureViewDimensionToVk(desc.Dimension),
		Format:   info.Native,
		Range:    SubresourceRange(info.Aspects, desc.Subresources),
	})
	mustSucceed(err, "create image view")
	c.setObjectName(vk.ObjectTypeImageView, uintptr(raw), desc.Name)

	mip := desc.Subresources.BaseMipLevel
	return TextureView{
		raw:     raw,
		aspects: info.Aspects,
		format:  info.Native,
		width:   max(desc.Texture.size.Width>>mip, 1),
		height:  max(desc.Texture.size.Height>>mip, 1),
	}
}

func (c *Context) DestroyTextureView(v TextureView) {
	c.drv.DestroyImageView(c.device, v.raw)
}
