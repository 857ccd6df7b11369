package bladevk

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// BindingKind is the resource type of one shader binding.
type BindingKind int

const (
	BindingPlain BindingKind = iota
	BindingBuffer
	BindingTexture
	BindingSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingPlain:
		return "plain"
	case BindingBuffer:
		return "buffer"
	case BindingTexture:
		return "texture"
	case BindingSampler:
		return "sampler"
	}
	return "unknown"
}

// Sizes of the native descriptor infos staged per binding.
const (
	bufferInfoSize = 24
	imageInfoSize  = 24
)

// ShaderBinding is one named slot of a ShaderDataLayout.
type ShaderBinding struct {
	Name string
	Kind BindingKind
	// Size is the byte size of plain data.
	Size uint32
}

func Plain(name string, size uint32) ShaderBinding {
	return ShaderBinding{Name: name, Kind: BindingPlain, Size: size}
}

func BufferBinding(name string) ShaderBinding {
	return ShaderBinding{Name: name, Kind: BindingBuffer}
}

func TextureBinding(name string) ShaderBinding {
	return ShaderBinding{Name: name, Kind: BindingTexture}
}

func SamplerBinding(name string) ShaderBinding {
	return ShaderBinding{Name: name, Kind: BindingSampler}
}

// stagedSize is the number of bytes the binding occupies in the update
// buffer.
func (b ShaderBinding) stagedSize() uint32 {
	switch b.Kind {
	case BindingPlain:
		return (b.Size + 3) &^ 3
	case BindingBuffer:
		return bufferInfoSize
	case BindingTexture, BindingSampler:
		return imageInfoSize
	}
	panic(errors.AssertionFailedf("unknown binding kind %d", b.Kind))
}

func (b ShaderBinding) descriptorType() vk.DescriptorType {
	switch b.Kind {
	case BindingPlain:
		return driver.DescriptorTypeInlineUniformBlock
	case BindingBuffer:
		return vk.DescriptorTypeStorageBuffer
	case BindingTexture:
		return vk.DescriptorTypeSampledImage
	case BindingSampler:
		return vk.DescriptorTypeSampler
	}
	panic(errors.AssertionFailedf("unknown binding kind %d", b.Kind))
}

// ShaderDataLayout is the ordered schema of one descriptor set. Binding i
// of the layout is shader binding i of its group.
type ShaderDataLayout struct {
	Bindings []ShaderBinding
}

// templateOffsets places every binding right after the previous one and
// returns the offsets with the total size.
func templateOffsets(layout *ShaderDataLayout) ([]uint32, uint32) {
	offsets := make([]uint32, len(layout.Bindings))
	var size uint32
	for i, b := range layout.Bindings {
		offsets[i] = size
		size += b.stagedSize()
	}
	return offsets, size
}

// descriptorSetLayout is a ShaderDataLayout compiled against the device.
type descriptorSetLayout struct {
	raw          vk.DescriptorSetLayout
	template     vk.DescriptorUpdateTemplate
	templateSize uint32
	offsets      []uint32
	bindings     []ShaderBinding
}

func (c *Context) compileLayout(layout *ShaderDataLayout, stages vk.ShaderStageFlags) descriptorSetLayout {
	offsets, size := templateOffsets(layout)

	bindings := make([]driver.LayoutBinding, len(layout.Bindings))
	entries := make([]driver.TemplateEntry, len(layout.Bindings))
	for i, b := range layout.Bindings {
		count := uint32(1)
		if b.Kind == BindingPlain {
			count = b.stagedSize()
		}
		bindings[i] = driver.LayoutBinding{
			Binding: uint32(i),
			Type:    b.descriptorType(),
			Count:   count,
			Stages:  stages,
		}
		entries[i] = driver.TemplateEntry{
			Binding: uint32(i),
			Type:    b.descriptorType(),
			Count:   count,
			Offset:  uintptr(offsets[i]),
			Stride:  uintptr(b.stagedSize()),
		}
	}

	raw, err := c.drv.CreateDescriptorSetLayout(c.device, bindings)
	mustSucceed(err, "create descriptor set layout")
	if len(entries) == 0 {
		return descriptorSetLayout{raw: raw}
	}
	tmpl, err := c.drv.CreateDescriptorUpdateTemplate(c.device, raw, entries)
	mustSucceed(err, "create descriptor update template")

	return descriptorSetLayout{
		raw:          raw,
		template:     tmpl,
		templateSize: size,
		offsets:      offsets,
		bindings:     layout.Bindings,
	}
}

func (c *Context) destroyLayout(dsl *descriptorSetLayout) {
	if dsl.template != 0 {
		c.drv.DestroyDescriptorUpdateTemplate(c.device, dsl.template)
	}
	c.drv.DestroyDescriptorSetLayout(c.device, dsl.raw)
}

// ShaderData writes its bindings into a descriptor set.
type ShaderData interface {
	Fill(dc *DescriptorContext)
}

// DescriptorContext stages binding values at their template offsets.
type DescriptorContext struct {
	layout *descriptorSetLayout
	data   []byte
}

func (dc *DescriptorContext) slot(name string, kind BindingKind) []byte {
	for i, b := range dc.layout.bindings {
		if b.Name != name {
			continue
		}
		if b.Kind != kind {
			panic(errors.AssertionFailedf("binding %q is %s, not %s", name, b.Kind, kind))
		}
		off := dc.layout.offsets[i]
		return dc.data[off : off+b.stagedSize()]
	}
	panic(errors.AssertionFailedf("no binding named %q", name))
}

// SetPlain copies raw bytes into an inline block.
func (dc *DescriptorContext) SetPlain(name string, data []byte) {
	dst := dc.slot(name, BindingPlain)
	if len(data) > len(dst) {
		panic(errors.AssertionFailedf("plain data for %q is %d bytes, binding holds %d", name, len(data), len(dst)))
	}
	clear(dst[copy(dst, data):])
}

// SetBuffer binds a buffer from piece.Offset to its end.
func (dc *DescriptorContext) SetBuffer(name string, piece BufferPiece) {
	dst := dc.slot(name, BindingBuffer)
	binary.NativeEndian.PutUint64(dst[0:], uint64(piece.Buffer.raw))
	binary.NativeEndian.PutUint64(dst[8:], piece.Offset)
	binary.NativeEndian.PutUint64(dst[16:], uint64(vk.WholeSize))
}

func (dc *DescriptorContext) SetTexture(name string, view TextureView) {
	dst := dc.slot(name, BindingTexture)
	putImageInfo(dst, 0, uint64(view.raw))
}

func (dc *DescriptorContext) SetSampler(name string, sampler Sampler) {
	dst := dc.slot(name, BindingSampler)
	putImageInfo(dst, uint64(sampler.raw), 0)
}

func putImageInfo(dst []byte, sampler, view uint64) {
	binary.NativeEndian.PutUint64(dst[0:], sampler)
	binary.NativeEndian.PutUint64(dst[8:], view)
	binary.NativeEndian.PutUint32(dst[16:], uint32(vk.ImageLayoutGeneral))
	binary.NativeEndian.PutUint32(dst[20:], 0)
}

// ShaderValues binds values by name. Buffers, buffer pieces, texture
// views and samplers bind as resources, byte slices and fixed-size values
// bind as plain data.
type ShaderValues map[string]any

func (v ShaderValues) Fill(dc *DescriptorContext) {
	for name, value := range v {
		switch value := value.(type) {
		case BufferPiece:
			dc.SetBuffer(name, value)
		case Buffer:
			dc.SetBuffer(name, value.At(0))
		case TextureView:
			dc.SetTexture(name, value)
		case Sampler:
			dc.SetSampler(name, value)
		case []byte:
			dc.SetPlain(name, value)
		default:
			data, err := binary.Append(nil, binary.NativeEndian, value)
			if err != nil {
				panic(errors.NewAssertionErrorWithWrappedErrf(err, "plain value for %q", name))
			}
			dc.SetPlain(name, data)
		}
	}
}
