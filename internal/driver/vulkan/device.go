package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

func (d *Driver) DestroyDevice(dev vk.Device) {
	d.mu.Lock()
	delete(d.updateTemplate, dev)
	d.mu.Unlock()
	d.cmds.DestroyDevice(dev, nil)
}

func (d *Driver) DeviceWaitIdle(dev vk.Device) error {
	return driver.Check("vkDeviceWaitIdle", d.cmds.DeviceWaitIdle(dev))
}

func (d *Driver) SetObjectName(dev vk.Device, objectType vk.ObjectType, handle uint64, name string) {
	if !d.cmds.HasDebugUtils() || name == "" {
		return
	}
	cname := cString(name)
	info := vk.DebugUtilsObjectNameInfoEXT{
		SType:        vk.StructureTypeDebugUtilsObjectNameInfoExt,
		ObjectType:   objectType,
		ObjectHandle: handle,
		PObjectName:  uintptr(unsafe.Pointer(&cname[0])),
	}
	d.cmds.SetDebugUtilsObjectNameEXT(dev, &info)
	runtime.KeepAlive(cname)
}

func (d *Driver) GetQueue(dev vk.Device, family, index uint32) vk.Queue {
	var queue vk.Queue
	d.cmds.GetDeviceQueue(dev, family, index, &queue)
	return queue
}

// Timelines

func (d *Driver) CreateTimelineSemaphore(dev vk.Device, initial uint64) (vk.Semaphore, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  initial,
	}
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: (*uintptr)(unsafe.Pointer(&typeInfo)),
	}
	var sem vk.Semaphore
	ret := d.cmds.CreateSemaphore(dev, &info, nil, &sem)
	runtime.KeepAlive(&typeInfo)
	if err := driver.Check("vkCreateSemaphore", ret); err != nil {
		return 0, err
	}
	return sem, nil
}

func (d *Driver) DestroySemaphore(dev vk.Device, sem vk.Semaphore) {
	d.cmds.DestroySemaphore(dev, sem, nil)
}

func (d *Driver) SemaphoreCounterValue(dev vk.Device, sem vk.Semaphore) (uint64, error) {
	var value uint64
	if err := driver.Check("vkGetSemaphoreCounterValue", d.cmds.GetSemaphoreCounterValue(dev, sem, &value)); err != nil {
		return 0, err
	}
	return value, nil
}

func (d *Driver) WaitSemaphore(dev vk.Device, sem vk.Semaphore, value, timeout uint64) (bool, error) {
	info := vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    &sem,
		PValues:        &value,
	}
	switch ret := d.cmds.WaitSemaphores(dev, &info, timeout); ret {
	case vk.Success:
		return true, nil
	case vk.Timeout:
		return false, nil
	default:
		return false, driver.Check("vkWaitSemaphores", ret)
	}
}

func (d *Driver) QueueSubmit(queue vk.Queue, sub driver.Submission) error {
	cb := sub.CommandBuffer
	sem := sub.Semaphore
	signal := sub.SignalValue
	timeline := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		SignalSemaphoreValueCount: 1,
		PSignalSemaphoreValues:    &signal,
	}
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    &cb,
	}
	if sem != 0 {
		info.PNext = (*uintptr)(unsafe.Pointer(&timeline))
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = &sem
	}
	ret := d.cmds.QueueSubmit(queue, 1, &info, 0)
	runtime.KeepAlive(&timeline)
	return driver.Check("vkQueueSubmit", ret)
}

// Memory

func (d *Driver) AllocateMemory(dev vk.Device, size uint64, typeIndex uint32) (vk.DeviceMemory, error) {
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: typeIndex,
	}
	var mem vk.DeviceMemory
	if err := driver.Check("vkAllocateMemory", d.cmds.AllocateMemory(dev, &info, nil, &mem)); err != nil {
		return 0, err
	}
	return mem, nil
}

func (d *Driver) FreeMemory(dev vk.Device, mem vk.DeviceMemory) {
	d.cmds.FreeMemory(dev, mem, nil)
}

func (d *Driver) MapMemory(dev vk.Device, mem vk.DeviceMemory) (unsafe.Pointer, error) {
	var data unsafe.Pointer
	ret := d.cmds.MapMemory(dev, mem, 0, vk.DeviceSize(vk.WholeSize), 0, uintptr(unsafe.Pointer(&data)))
	if err := driver.Check("vkMapMemory", ret); err != nil {
		return nil, err
	}
	return data, nil
}

func (d *Driver) UnmapMemory(dev vk.Device, mem vk.DeviceMemory) {
	d.cmds.UnmapMemory(dev, mem)
}

// Resources

func (d *Driver) CreateBuffer(dev vk.Device, size uint64, usage vk.BufferUsageFlags) (vk.Buffer, vk.MemoryRequirements, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var (
		buf vk.Buffer
		req vk.MemoryRequirements
	)
	if err := driver.Check("vkCreateBuffer", d.cmds.CreateBuffer(dev, &info, nil, &buf)); err != nil {
		return 0, req, err
	}
	d.cmds.GetBufferMemoryRequirements(dev, buf, &req)
	return buf, req, nil
}

func (d *Driver) BindBufferMemory(dev vk.Device, buf vk.Buffer, mem vk.DeviceMemory, offset uint64) error {
	return driver.Check("vkBindBufferMemory", d.cmds.BindBufferMemory(dev, buf, mem, vk.DeviceSize(offset)))
}

func (d *Driver) DestroyBuffer(dev vk.Device, buf vk.Buffer) {
	d.cmds.DestroyBuffer(dev, buf, nil)
}

func (d *Driver) CreateImage(dev vk.Device, desc driver.ImageDesc) (vk.Image, vk.MemoryRequirements, error) {
	info := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		Flags:         desc.Flags,
		ImageType:     desc.Type,
		Format:        desc.Format,
		Extent:        desc.Extent,
		MipLevels:     desc.MipLevels,
		ArrayLayers:   desc.ArrayLayers,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         desc.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var (
		img vk.Image
		req vk.MemoryRequirements
	)
	if err := driver.Check("vkCreateImage", d.cmds.CreateImage(dev, &info, nil, &img)); err != nil {
		return 0, req, err
	}
	d.cmds.GetImageMemoryRequirements(dev, img, &req)
	return img, req, nil
}

func (d *Driver) BindImageMemory(dev vk.Device, img vk.Image, mem vk.DeviceMemory, offset uint64) error {
	return driver.Check("vkBindImageMemory", d.cmds.BindImageMemory(dev, img, mem, vk.DeviceSize(offset)))
}

func (d *Driver) DestroyImage(dev vk.Device, img vk.Image) {
	d.cmds.DestroyImage(dev, img, nil)
}

func (d *Driver) CreateImageView(dev vk.Device, desc driver.ImageViewDesc) (vk.ImageView, error) {
	info := vk.ImageViewCreateInfo{
		SType:            vk.StructureTypeImageViewCreateInfo,
		Image:            desc.Image,
		ViewType:         desc.ViewType,
		Format:           desc.Format,
		SubresourceRange: desc.Range,
	}
	var view vk.ImageView
	if err := driver.Check("vkCreateImageView", d.cmds.CreateImageView(dev, &info, nil, &view)); err != nil {
		return 0, err
	}
	return view, nil
}

func (d *Driver) DestroyImageView(dev vk.Device, view vk.ImageView) {
	d.cmds.DestroyImageView(dev, view, nil)
}

func (d *Driver) CreateSampler(dev vk.Device, desc driver.SamplerDesc) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     desc.MagFilter,
		MinFilter:     desc.MinFilter,
		MipmapMode:    desc.MipmapMode,
		AddressModeU:  desc.AddressModes[0],
		AddressModeV:  desc.AddressModes[1],
		AddressModeW:  desc.AddressModes[2],
		MaxAnisotropy: 1,
		CompareEnable: boolToVk(desc.CompareEnable),
		CompareOp:     desc.CompareOp,
		MinLod:        desc.MinLod,
		MaxLod:        desc.MaxLod,
		BorderColor:   vk.BorderColorFloatTransparentBlack,
	}
	var sampler vk.Sampler
	if err := driver.Check("vkCreateSampler", d.cmds.CreateSampler(dev, &info, nil, &sampler)); err != nil {
		return 0, err
	}
	return sampler, nil
}

func (d *Driver) DestroySampler(dev vk.Device, sampler vk.Sampler) {
	d.cmds.DestroySampler(dev, sampler, nil)
}

func (d *Driver) CreateShaderModule(dev vk.Device, code []uint32) (vk.ShaderModule, error) {
	if len(code) == 0 {
		return 0, driver.Check("vkCreateShaderModule", vk.ErrorInitializationFailed)
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uintptr(len(code) * 4),
		PCode:    &code[0],
	}
	var module vk.ShaderModule
	ret := d.cmds.CreateShaderModule(dev, &info, nil, &module)
	runtime.KeepAlive(code)
	if err := driver.Check("vkCreateShaderModule", ret); err != nil {
		return 0, err
	}
	return module, nil
}

func (d *Driver) DestroyShaderModule(dev vk.Device, module vk.ShaderModule) {
	d.cmds.DestroyShaderModule(dev, module, nil)
}
