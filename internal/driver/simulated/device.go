package simulated

import (
	"time"
	"unsafe"

	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

type buffer struct {
	size   uint64
	memory vk.DeviceMemory
	offset uint64
}

type image struct {
	desc   driver.ImageDesc
	memory vk.DeviceMemory
}

type descriptorPool struct {
	desc driver.DescriptorPoolDesc
	sets []vk.DescriptorSet
}

type descriptorSet struct {
	pool   vk.DescriptorPool
	layout vk.DescriptorSetLayout
	data   []byte
}

func (d *Driver) DestroyDevice(dev vk.Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindDevice, uintptr(dev))
}

func (d *Driver) DeviceWaitIdle(dev vk.Device) error {
	if d.cfg.AutoProcess {
		d.Flush()
	}
	return nil
}

func (d *Driver) SetObjectName(dev vk.Device, objectType vk.ObjectType, handle uint64, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.names[handle] = name
}

func (d *Driver) GetQueue(dev vk.Device, family, index uint32) vk.Queue {
	return vk.Queue(0x200 + uintptr(family)<<4 + uintptr(index))
}

// Timelines

func (d *Driver) CreateTimelineSemaphore(dev vk.Device, initial uint64) (vk.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.NoTimelineSemaphore {
		return 0, driver.Check("vkCreateSemaphore", vk.ErrorFeatureNotPresent)
	}
	sem := vk.Semaphore(d.newHandle(KindSemaphore))
	d.timelines[sem] = initial
	return sem, nil
}

func (d *Driver) DestroySemaphore(dev vk.Device, sem vk.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindSemaphore, uintptr(sem)) {
		delete(d.timelines, sem)
	}
}

func (d *Driver) SemaphoreCounterValue(dev vk.Device, sem vk.Semaphore) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return 0, driver.Check("vkGetSemaphoreCounterValue", vk.ErrorDeviceLost)
	}
	return d.timelines[sem], nil
}

func (d *Driver) WaitSemaphore(dev vk.Device, sem vk.Semaphore, value, timeout uint64) (bool, error) {
	var deadline <-chan time.Time
	for {
		d.mu.Lock()
		if d.lost {
			d.mu.Unlock()
			return false, driver.Check("vkWaitSemaphores", vk.ErrorDeviceLost)
		}
		if d.timelines[sem] >= value {
			d.mu.Unlock()
			return true, nil
		}
		if timeout == 0 {
			d.mu.Unlock()
			return false, nil
		}
		changed := d.signal
		d.mu.Unlock()

		if deadline == nil && timeout < uint64(1<<63-1) {
			timer := time.NewTimer(time.Duration(timeout))
			defer timer.Stop()
			deadline = timer.C
		}
		select {
		case <-changed:
		case <-deadline:
			return false, nil
		}
	}
}

func (d *Driver) QueueSubmit(queue vk.Queue, sub driver.Submission) error {
	d.mu.Lock()
	if d.lost {
		d.mu.Unlock()
		return driver.Check("vkQueueSubmit", vk.ErrorDeviceLost)
	}
	cb, ok := d.cmdBufs[sub.CommandBuffer]
	switch {
	case !ok:
		d.violate("submitting unknown command buffer %#x", sub.CommandBuffer)
	case cb.recording:
		d.violate("submitting command buffer %#x while it is recording", sub.CommandBuffer)
	}
	if ok {
		cb.submitted++
	}
	d.pending = append(d.pending, sub)
	d.mu.Unlock()

	if d.cfg.AutoProcess {
		d.Flush()
	}
	return nil
}

// Pending returns the number of submissions not processed yet.
func (d *Driver) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Step processes the oldest pending submission. It reports false when the
// queue is empty.
func (d *Driver) Step() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return false
	}
	sub := d.pending[0]
	d.pending = d.pending[1:]
	if cb, ok := d.cmdBufs[sub.CommandBuffer]; ok {
		for _, cmd := range cb.commands {
			if cmd.exec != nil {
				cmd.exec()
			}
		}
	}
	if sub.Semaphore != 0 && d.timelines[sub.Semaphore] < sub.SignalValue {
		d.timelines[sub.Semaphore] = sub.SignalValue
	}
	d.broadcastLocked()
	return true
}

// Flush processes every pending submission.
func (d *Driver) Flush() {
	for d.Step() {
	}
}

func (d *Driver) broadcastLocked() {
	close(d.signal)
	d.signal = make(chan struct{})
}

// Memory

func (d *Driver) AllocateMemory(dev vk.Device, size uint64, typeIndex uint32) (vk.DeviceMemory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(typeIndex) >= len(d.cfg.MemoryTypes) {
		d.violate("allocating from memory type %d of %d", typeIndex, len(d.cfg.MemoryTypes))
		return 0, driver.Check("vkAllocateMemory", vk.ErrorOutOfDeviceMemory)
	}
	mem := vk.DeviceMemory(d.newHandle(KindMemory))
	d.memory[mem] = make([]byte, size)
	return mem, nil
}

func (d *Driver) FreeMemory(dev vk.Device, mem vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindMemory, uintptr(mem)) {
		delete(d.memory, mem)
		delete(d.mapped, mem)
	}
}

func (d *Driver) MapMemory(dev vk.Device, mem vk.DeviceMemory) (unsafe.Pointer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.memory[mem]
	if !ok || len(data) == 0 {
		return nil, driver.Check("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	if d.mapped[mem] {
		d.violate("memory %#x mapped twice", mem)
	}
	d.mapped[mem] = true
	return unsafe.Pointer(&data[0]), nil
}

func (d *Driver) UnmapMemory(dev vk.Device, mem vk.DeviceMemory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mapped, mem)
}

// MemoryBytes exposes the host copy of an allocation.
func (d *Driver) MemoryBytes(mem vk.DeviceMemory) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memory[mem]
}

func (d *Driver) allTypeBits() uint32 {
	return uint32(1)<<len(d.cfg.MemoryTypes) - 1
}

// Resources

func (d *Driver) CreateBuffer(dev vk.Device, size uint64, usage vk.BufferUsageFlags) (vk.Buffer, vk.MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := vk.Buffer(d.newHandle(KindBuffer))
	d.buffers[buf] = &buffer{size: size}
	req := vk.MemoryRequirements{
		Size:           vk.DeviceSize(alignUp(size, 256)),
		Alignment:      256,
		MemoryTypeBits: d.allTypeBits(),
	}
	return buf, req, nil
}

func (d *Driver) BindBufferMemory(dev vk.Device, buf vk.Buffer, mem vk.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	data, okMem := d.memory[mem]
	if !ok || !okMem {
		return driver.Check("vkBindBufferMemory", vk.ErrorInitializationFailed)
	}
	if offset+b.size > uint64(len(data)) {
		d.violate("buffer %#x bound past the end of memory %#x", buf, mem)
	}
	b.memory, b.offset = mem, offset
	return nil
}

func (d *Driver) DestroyBuffer(dev vk.Device, buf vk.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindBuffer, uintptr(buf)) {
		delete(d.buffers, buf)
	}
}

func (d *Driver) CreateImage(dev vk.Device, desc driver.ImageDesc) (vk.Image, vk.MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img := vk.Image(d.newHandle(KindImage))
	d.images[img] = &image{desc: desc}
	depth := max(desc.Extent.Depth, 1)
	texels := uint64(desc.Extent.Width) * uint64(desc.Extent.Height) * uint64(depth) * uint64(max(desc.ArrayLayers, 1))
	req := vk.MemoryRequirements{
		Size:           vk.DeviceSize(alignUp(texels*16*2, 4096)),
		Alignment:      4096,
		MemoryTypeBits: d.allTypeBits(),
	}
	return img, req, nil
}

func (d *Driver) BindImageMemory(dev vk.Device, img vk.Image, mem vk.DeviceMemory, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.images[img]
	if !ok {
		return driver.Check("vkBindImageMemory", vk.ErrorInitializationFailed)
	}
	i.memory = mem
	return nil
}

func (d *Driver) DestroyImage(dev vk.Device, img vk.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindImage, uintptr(img)) {
		delete(d.images, img)
	}
}

func (d *Driver) CreateImageView(dev vk.Device, desc driver.ImageViewDesc) (vk.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[desc.Image]; !ok {
		d.violate("view of unknown image %#x", desc.Image)
	}
	return vk.ImageView(d.newHandle(KindImageView)), nil
}

func (d *Driver) DestroyImageView(dev vk.Device, view vk.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindImageView, uintptr(view))
}

func (d *Driver) CreateSampler(dev vk.Device, desc driver.SamplerDesc) (vk.Sampler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return vk.Sampler(d.newHandle(KindSampler)), nil
}

func (d *Driver) DestroySampler(dev vk.Device, sampler vk.Sampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindSampler, uintptr(sampler))
}

// Pipelines

func (d *Driver) CreateShaderModule(dev vk.Device, code []uint32) (vk.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(code) == 0 || code[0] != 0x07230203 {
		return 0, driver.Check("vkCreateShaderModule", vk.ErrorInitializationFailed)
	}
	return vk.ShaderModule(d.newHandle(KindShaderModule)), nil
}

func (d *Driver) DestroyShaderModule(dev vk.Device, module vk.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindShaderModule, uintptr(module))
}

func (d *Driver) CreateDescriptorSetLayout(dev vk.Device, bindings []driver.LayoutBinding) (vk.DescriptorSetLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	inline := uint32(0)
	for _, b := range bindings {
		if b.Type == driver.DescriptorTypeInlineUniformBlock {
			if b.Count > d.cfg.MaxInlineUniformBlockSize {
				d.violate("inline uniform block of %d bytes exceeds %d", b.Count, d.cfg.MaxInlineUniformBlockSize)
			}
			inline++
		}
	}
	if inline > d.cfg.MaxDescriptorSetInlineUniformBlocks {
		d.violate("%d inline uniform blocks exceed %d", inline, d.cfg.MaxDescriptorSetInlineUniformBlocks)
	}
	return vk.DescriptorSetLayout(d.newHandle(KindSetLayout)), nil
}

func (d *Driver) DestroyDescriptorSetLayout(dev vk.Device, layout vk.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindSetLayout, uintptr(layout))
}

func (d *Driver) CreateDescriptorUpdateTemplate(dev vk.Device, layout vk.DescriptorSetLayout, entries []driver.TemplateEntry) (vk.DescriptorUpdateTemplate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.check(KindSetLayout, uintptr(layout)) {
		d.violate("template for unknown layout %#x", layout)
	}
	tmpl := vk.DescriptorUpdateTemplate(d.newHandle(KindTemplate))
	d.tmpls[tmpl] = append([]driver.TemplateEntry(nil), entries...)
	return tmpl, nil
}

func (d *Driver) DestroyDescriptorUpdateTemplate(dev vk.Device, tmpl vk.DescriptorUpdateTemplate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(KindTemplate, uintptr(tmpl)) {
		delete(d.tmpls, tmpl)
	}
}

// TemplateEntries returns the entries a template was created with.
func (d *Driver) TemplateEntries(tmpl vk.DescriptorUpdateTemplate) []driver.TemplateEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tmpls[tmpl]
}

func (d *Driver) CreatePipelineLayout(dev vk.Device, sets []vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if uint32(len(sets)) > d.cfg.Limits.MaxBoundDescriptorSets {
		return 0, driver.Check("vkCreatePipelineLayout", vk.ErrorInitializationFailed)
	}
	return vk.PipelineLayout(d.newHandle(KindPipelineLayout)), nil
}

func (d *Driver) DestroyPipelineLayout(dev vk.Device, layout vk.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindPipelineLayout, uintptr(layout))
}

func (d *Driver) CreateComputePipeline(dev vk.Device, desc driver.ComputePipelineDesc) (vk.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.check(KindShaderModule, uintptr(desc.Stage.Module)) {
		return 0, driver.Check("vkCreateComputePipelines", vk.ErrorInitializationFailed)
	}
	return vk.Pipeline(d.newHandle(KindPipeline)), nil
}

func (d *Driver) CreateRenderPipeline(dev vk.Device, desc driver.RenderPipelineDesc) (vk.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.check(KindShaderModule, uintptr(desc.Vertex.Module)) {
		return 0, driver.Check("vkCreateGraphicsPipelines", vk.ErrorInitializationFailed)
	}
	return vk.Pipeline(d.newHandle(KindPipeline)), nil
}

func (d *Driver) DestroyPipeline(dev vk.Device, pipeline vk.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(KindPipeline, uintptr(pipeline))
}

// Pools

func (d *Driver) CreateCommandPool(dev vk.Device, family uint32) (vk.CommandPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := vk.CommandPool(d.newHandle(KindCommandPool))
	d.cmdPools[pool] = nil
	return pool, nil
}

func (d *Driver) DestroyCommandPool(dev vk.Device, pool vk.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.release(KindCommandPool, uintptr(pool)) {
		return
	}
	if live := len(d.cmdPools[pool]); live > 0 {
		d.violate("command pool %#x destroyed with %d live buffers", pool, live)
	}
	delete(d.cmdPools, pool)
}

func (d *Driver) AllocateCommandBuffers(dev vk.Device, pool vk.CommandPool, count uint32) ([]vk.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.check(KindCommandPool, uintptr(pool)) {
		return nil, driver.Check("vkAllocateCommandBuffers", vk.ErrorInitializationFailed)
	}
	cbs := make([]vk.CommandBuffer, count)
	for i := range cbs {
		cbs[i] = vk.CommandBuffer(d.newHandle(KindCommandBuffer))
		d.cmdBufs[cbs[i]] = &commandBuffer{pool: pool}
	}
	d.cmdPools[pool] = append(d.cmdPools[pool], cbs...)
	return cbs, nil
}

func (d *Driver) FreeCommandBuffers(dev vk.Device, pool vk.CommandPool, cbs []vk.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range cbs {
		if !d.release(KindCommandBuffer, uintptr(cb)) {
			continue
		}
		delete(d.cmdBufs, cb)
		live := d.cmdPools[pool]
		for i, h := range live {
			if h == cb {
				d.cmdPools[pool] = append(live[:i], live[i+1:]...)
				break
			}
		}
	}
}

func (d *Driver) CreateDescriptorPool(dev vk.Device, desc driver.DescriptorPoolDesc) (vk.DescriptorPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pool := vk.DescriptorPool(d.newHandle(KindDescriptorPool))
	d.descPool[pool] = &descriptorPool{desc: desc}
	return pool, nil
}

// DescriptorPoolDesc returns the creation parameters of pool.
func (d *Driver) DescriptorPoolDesc(pool vk.DescriptorPool) driver.DescriptorPoolDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.descPool[pool]; ok {
		return p.desc
	}
	return driver.DescriptorPoolDesc{}
}

func (d *Driver) ResetDescriptorPool(dev vk.Device, pool vk.DescriptorPool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.descPool[pool]
	if !ok {
		return driver.Check("vkResetDescriptorPool", vk.ErrorInitializationFailed)
	}
	for _, set := range p.sets {
		delete(d.kinds, uintptr(set))
		delete(d.sets, set)
	}
	p.sets = p.sets[:0]
	return nil
}

func (d *Driver) DestroyDescriptorPool(dev vk.Device, pool vk.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.release(KindDescriptorPool, uintptr(pool)) {
		return
	}
	for _, set := range d.descPool[pool].sets {
		delete(d.kinds, uintptr(set))
		delete(d.sets, set)
	}
	delete(d.descPool, pool)
}

func (d *Driver) AllocateDescriptorSet(dev vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.descPool[pool]
	if !ok {
		return 0, driver.Check("vkAllocateDescriptorSets", vk.ErrorInitializationFailed)
	}
	if uint32(len(p.sets)) >= p.desc.MaxSets {
		return 0, driver.Check("vkAllocateDescriptorSets", driver.ErrorOutOfPoolMemory)
	}
	set := vk.DescriptorSet(d.newHandle(KindDescriptorSet))
	p.sets = append(p.sets, set)
	d.sets[set] = &descriptorSet{pool: pool, layout: layout}
	return set, nil
}

func (d *Driver) UpdateDescriptorSetWithTemplate(dev vk.Device, set vk.DescriptorSet, tmpl vk.DescriptorUpdateTemplate, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sets[set]
	if !ok {
		d.violate("updating unknown descriptor set %#x", set)
		return
	}
	if _, ok := d.tmpls[tmpl]; !ok {
		d.violate("updating with unknown template %#x", tmpl)
		return
	}
	s.data = append(s.data[:0], data...)
}

// DescriptorSetData returns the bytes last written into set.
func (d *Driver) DescriptorSetData(set vk.DescriptorSet) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sets[set]; ok {
		return s.data
	}
	return nil
}

// DescriptorSetsIn returns the sets currently allocated from pool.
func (d *Driver) DescriptorSetsIn(pool vk.DescriptorPool) []vk.DescriptorSet {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.descPool[pool]; ok {
		return append([]vk.DescriptorSet(nil), p.sets...)
	}
	return nil
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}
