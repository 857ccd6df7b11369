package vulkan

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-webgpu/goffi/ffi"
	"github.com/go-webgpu/goffi/types"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

// void vkUpdateDescriptorSetWithTemplate(VkDevice, VkDescriptorSet,
// VkDescriptorUpdateTemplate, const void*). The binding has no wrapper for
// this shape, so the call interface is prepared here.
var (
	updateTemplateOnce sync.Once
	updateTemplateCIF  types.CallInterface
	errUpdateTemplate  error
)

func prepareUpdateTemplate() error {
	updateTemplateOnce.Do(func() {
		errUpdateTemplate = ffi.PrepareCallInterface(&updateTemplateCIF, types.DefaultCall,
			types.VoidTypeDescriptor,
			[]*types.TypeDescriptor{
				types.UInt64TypeDescriptor,
				types.UInt64TypeDescriptor,
				types.UInt64TypeDescriptor,
				types.PointerTypeDescriptor,
			})
	})
	return errUpdateTemplate
}

func (d *Driver) CreateDescriptorSetLayout(dev vk.Device, bindings []driver.LayoutBinding) (vk.DescriptorSetLayout, error) {
	native := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		native[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: b.Count,
			StageFlags:      b.Stages,
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(native)),
	}
	if len(native) > 0 {
		info.PBindings = &native[0]
	}
	var layout vk.DescriptorSetLayout
	ret := d.cmds.CreateDescriptorSetLayout(dev, &info, nil, &layout)
	runtime.KeepAlive(native)
	if err := driver.Check("vkCreateDescriptorSetLayout", ret); err != nil {
		return 0, err
	}
	return layout, nil
}

func (d *Driver) DestroyDescriptorSetLayout(dev vk.Device, layout vk.DescriptorSetLayout) {
	d.cmds.DestroyDescriptorSetLayout(dev, layout, nil)
}

func (d *Driver) CreateDescriptorUpdateTemplate(dev vk.Device, layout vk.DescriptorSetLayout, entries []driver.TemplateEntry) (vk.DescriptorUpdateTemplate, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	native := make([]vk.DescriptorUpdateTemplateEntry, len(entries))
	for i, e := range entries {
		native[i] = vk.DescriptorUpdateTemplateEntry{
			DstBinding:      e.Binding,
			DescriptorCount: e.Count,
			DescriptorType:  e.Type,
			Offset:          e.Offset,
			Stride:          e.Stride,
		}
	}
	info := vk.DescriptorUpdateTemplateCreateInfo{
		SType:                      driver.StructureTypeDescriptorUpdateTemplateCreateInfo,
		DescriptorUpdateEntryCount: uint32(len(native)),
		PDescriptorUpdateEntries:   &native[0],
		TemplateType:               vk.DescriptorUpdateTemplateTypeDescriptorSet,
		DescriptorSetLayout:        layout,
	}
	var tmpl vk.DescriptorUpdateTemplate
	ret := d.cmds.CreateDescriptorUpdateTemplate(dev, &info, nil, &tmpl)
	runtime.KeepAlive(native)
	if err := driver.Check("vkCreateDescriptorUpdateTemplate", ret); err != nil {
		return 0, err
	}
	return tmpl, nil
}

func (d *Driver) DestroyDescriptorUpdateTemplate(dev vk.Device, tmpl vk.DescriptorUpdateTemplate) {
	if tmpl != 0 {
		d.cmds.DestroyDescriptorUpdateTemplate(dev, tmpl, nil)
	}
}

func (d *Driver) CreatePipelineLayout(dev vk.Device, sets []vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(sets)),
	}
	if len(sets) > 0 {
		info.PSetLayouts = &sets[0]
	}
	var layout vk.PipelineLayout
	ret := d.cmds.CreatePipelineLayout(dev, &info, nil, &layout)
	runtime.KeepAlive(sets)
	if err := driver.Check("vkCreatePipelineLayout", ret); err != nil {
		return 0, err
	}
	return layout, nil
}

func (d *Driver) DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout) {
	d.cmds.DestroyPipelineLayout(dev, layout, nil)
}

func (d *Driver) CreateDescriptorPool(dev vk.Device, desc driver.DescriptorPoolDesc) (vk.DescriptorPool, error) {
	inline := vk.DescriptorPoolInlineUniformBlockCreateInfo{
		SType:                         driver.StructureTypeDescriptorPoolInlineUniformBlockCreateInfo,
		MaxInlineUniformBlockBindings: desc.InlineUniformBlockBindings,
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(desc.Sizes)),
	}
	if len(desc.Sizes) > 0 {
		info.PPoolSizes = &desc.Sizes[0]
	}
	if desc.InlineUniformBlockBindings > 0 {
		info.PNext = (*uintptr)(unsafe.Pointer(&inline))
	}
	var pool vk.DescriptorPool
	ret := d.cmds.CreateDescriptorPool(dev, &info, nil, &pool)
	runtime.KeepAlive(&inline)
	runtime.KeepAlive(desc.Sizes)
	if err := driver.Check("vkCreateDescriptorPool", ret); err != nil {
		return 0, err
	}
	return pool, nil
}

func (d *Driver) ResetDescriptorPool(dev vk.Device, pool vk.DescriptorPool) error {
	return driver.Check("vkResetDescriptorPool", d.cmds.ResetDescriptorPool(dev, pool, 0))
}

func (d *Driver) DestroyDescriptorPool(dev vk.Device, pool vk.DescriptorPool) {
	d.cmds.DestroyDescriptorPool(dev, pool, nil)
}

func (d *Driver) AllocateDescriptorSet(dev vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        &layout,
	}
	var set vk.DescriptorSet
	if err := driver.Check("vkAllocateDescriptorSets", d.cmds.AllocateDescriptorSets(dev, &info, &set)); err != nil {
		return 0, err
	}
	return set, nil
}

func (d *Driver) UpdateDescriptorSetWithTemplate(dev vk.Device, set vk.DescriptorSet, tmpl vk.DescriptorUpdateTemplate, data []byte) {
	if tmpl == 0 || len(data) == 0 {
		return
	}
	d.mu.Lock()
	fn := d.updateTemplate[dev]
	d.mu.Unlock()
	if fn == nil {
		panic(errors.Newf("vulkan: device %#x has no template update entry point", dev))
	}
	if err := prepareUpdateTemplate(); err != nil {
		panic(errors.Wrap(err, "vulkan: prepare template update call"))
	}

	pData := unsafe.Pointer(&data[0])
	args := [4]unsafe.Pointer{
		unsafe.Pointer(&dev),
		unsafe.Pointer(&set),
		unsafe.Pointer(&tmpl),
		unsafe.Pointer(&pData),
	}
	if err := ffi.CallFunction(&updateTemplateCIF, fn, nil, args[:]); err != nil {
		panic(errors.Wrap(err, "vulkan: vkUpdateDescriptorSetWithTemplate"))
	}
	runtime.KeepAlive(data)
}
