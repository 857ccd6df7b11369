package bladevk

import (
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/wgpu/hal/vulkan/memory"
	"github.com/gogpu/wgpu/hal/vulkan/vk"

	"github.com/andewx/bladevk/internal/driver"
)

const (
	// memoryChunkSize is the native allocation that small blocks are carved from.
	memoryChunkSize = 64 << 20
	// dedicatedThreshold sends requests of this size and above to their own
	// native allocation.
	dedicatedThreshold = 16 << 20
	minMemoryBlock     = 256
)

// knownMemoryProperties is the closed set of property flags the manager
// understands.
const knownMemoryProperties = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit) |
	vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) |
	vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit) |
	vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit) |
	vk.MemoryPropertyFlags(vk.MemoryPropertyLazilyAllocatedBit)

// ValidityMask sets bit i when the property flags of memory type i are a
// subset of the known flags. Types with any other bit are never allocated.
func ValidityMask(flags []vk.MemoryPropertyFlags) uint32 {
	var mask uint32
	for i, f := range flags {
		if i >= vk.MaxMemoryTypes {
			break
		}
		if f&^knownMemoryProperties == 0 {
			mask |= 1 << i
		}
	}
	return mask
}

// MemoryLocation tells the manager who accesses a block.
type MemoryLocation int

const (
	// MemoryDevice is GPU only.
	MemoryDevice MemoryLocation = iota
	// MemoryShared is mapped and read back by the CPU.
	MemoryShared
	// MemoryUpload is mapped and written by the CPU.
	MemoryUpload
)

func (l MemoryLocation) usage() memory.UsageFlags {
	switch l {
	case MemoryShared:
		return memory.UsageHostAccess | memory.UsageDownload
	case MemoryUpload:
		return memory.UsageUpload
	default:
		return memory.UsageFastDeviceAccess
	}
}

// MemoryHandle names a block owned by the MemoryManager.
type MemoryHandle uint64

type MemoryRequest struct {
	Size      uint64
	Alignment uint64
	// TypeBits is the set of memory types the resource accepts.
	TypeBits uint32
	Location MemoryLocation
}

// MemoryBlock is the native placement of a block. Mapped is nil unless the
// memory is host visible.
type MemoryBlock struct {
	Memory vk.DeviceMemory
	Offset uint64
	Size   uint64
	Mapped unsafe.Pointer
}

type MemoryStats struct {
	Blocks            int
	NativeAllocations int
	Chunks            int
	Bytes             uint64
}

type memoryChunk struct {
	memory    vk.DeviceMemory
	typeIndex uint32
	buddy     *memory.BuddyAllocator
	mapped    unsafe.Pointer
	used      int
}

type allocation struct {
	chunk  *memoryChunk
	block  memory.BuddyBlock
	memory vk.DeviceMemory
	offset uint64
	size   uint64
	mapped unsafe.Pointer
}

// MemoryManager sub-allocates device memory. Blocks are referenced by
// handles from a generational slot table. Allocate and Free serialize on
// the manager's own lock.
type MemoryManager struct {
	mu  sync.Mutex
	drv driver.DeviceFuncs
	dev vk.Device

	types     []vk.MemoryType
	validMask uint32
	selector  *memory.MemoryTypeSelector

	maxAllocations uint32
	atomSize       uint64
	minBlock       uint64

	chunks map[uint32][]*memoryChunk
	slots  slab[allocation]
	native uint32
	bytes  uint64
}

func newMemoryManager(drv driver.DeviceFuncs, dev vk.Device, caps *driver.AdapterCapabilities) *MemoryManager {
	flags := make([]vk.MemoryPropertyFlags, len(caps.Memory.Types))
	props := memory.DeviceMemoryProperties{}
	for i, t := range caps.Memory.Types {
		flags[i] = t.PropertyFlags
		props.MemoryTypes = append(props.MemoryTypes, memory.MemoryType{
			PropertyFlags: t.PropertyFlags,
			HeapIndex:     t.HeapIndex,
		})
	}
	for _, h := range caps.Memory.Heaps {
		props.MemoryHeaps = append(props.MemoryHeaps, memory.MemoryHeap{
			Size:  uint64(h.Size),
			Flags: h.Flags,
		})
	}

	minBlock := uint64(minMemoryBlock)
	for minBlock < caps.Limits.BufferImageGranularity {
		minBlock <<= 1
	}
	atom := caps.Limits.NonCoherentAtomSize
	if atom == 0 {
		atom = 1
	}

	return &MemoryManager{
		drv:            drv,
		dev:            dev,
		types:          caps.Memory.Types,
		validMask:      ValidityMask(flags),
		selector:       memory.NewMemoryTypeSelector(props),
		maxAllocations: caps.Limits.MaxMemoryAllocationCount,
		atomSize:       atom,
		minBlock:       minBlock,
		chunks:         make(map[uint32][]*memoryChunk),
	}
}

// ValidMask returns the memory types the manager allocates from.
func (m *MemoryManager) ValidMask() uint32 {
	return m.validMask
}

func (m *MemoryManager) hasProperty(typeIndex uint32, bit vk.MemoryPropertyFlagBits) bool {
	return m.types[typeIndex].PropertyFlags&vk.MemoryPropertyFlags(bit) != 0
}

// Allocate finds memory for req. Only types in the validity mask are
// considered.
func (m *MemoryManager) Allocate(req MemoryRequest) (MemoryHandle, error) {
	if req.Size == 0 {
		return 0, errors.New("allocate: zero size")
	}
	bits := req.TypeBits & m.validMask
	if bits == 0 {
		return 0, errors.Newf("allocate: no valid memory type in %#x (valid %#x)", req.TypeBits, m.validMask)
	}
	typeIndex, ok := m.selector.SelectMemoryType(memory.AllocationRequest{
		Size:           req.Size,
		Alignment:      req.Alignment,
		Usage:          req.Location.usage(),
		MemoryTypeBits: bits,
	})
	if !ok {
		return 0, errors.Newf("allocate: no memory type for location %d in %#x", req.Location, bits)
	}

	size, align := req.Size, max(req.Alignment, 1)
	hostVisible := m.hasProperty(typeIndex, vk.MemoryPropertyHostVisibleBit)
	if hostVisible {
		size = alignTo(size, m.atomSize)
		align = max(align, m.atomSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var a allocation
	var err error
	if size >= dedicatedThreshold {
		a, err = m.allocateDedicated(size, typeIndex, hostVisible)
	} else {
		a, err = m.allocateFromChunk(max(size, align), typeIndex, hostVisible)
	}
	if err != nil {
		return 0, err
	}
	a.size = size
	m.bytes += size
	return MemoryHandle(m.slots.insert(a)), nil
}

func (m *MemoryManager) allocateNative(size uint64, typeIndex uint32, hostVisible bool) (vk.DeviceMemory, unsafe.Pointer, error) {
	if m.maxAllocations != 0 && m.native >= m.maxAllocations {
		return 0, nil, errors.Newf("allocate: native allocation limit %d reached", m.maxAllocations)
	}
	mem, err := m.drv.AllocateMemory(m.dev, size, typeIndex)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "allocate %d bytes of type %d", size, typeIndex)
	}
	var mapped unsafe.Pointer
	if hostVisible {
		if mapped, err = m.drv.MapMemory(m.dev, mem); err != nil {
			m.drv.FreeMemory(m.dev, mem)
			return 0, nil, errors.Wrap(err, "map memory")
		}
	}
	m.native++
	Logger().Debug("native memory allocation", "memory_type", typeIndex, "size", size)
	return mem, mapped, nil
}

func (m *MemoryManager) allocateDedicated(size uint64, typeIndex uint32, hostVisible bool) (allocation, error) {
	mem, mapped, err := m.allocateNative(size, typeIndex, hostVisible)
	if err != nil {
		return allocation{}, err
	}
	return allocation{memory: mem, mapped: mapped}, nil
}

func (m *MemoryManager) allocateFromChunk(size uint64, typeIndex uint32, hostVisible bool) (allocation, error) {
	for _, c := range m.chunks[typeIndex] {
		if block, err := c.buddy.Alloc(size); err == nil {
			return m.place(c, block), nil
		}
	}

	buddy, err := memory.NewBuddyAllocator(memoryChunkSize, m.minBlock)
	if err != nil {
		return allocation{}, errors.Wrap(err, "chunk allocator")
	}
	mem, mapped, err := m.allocateNative(memoryChunkSize, typeIndex, hostVisible)
	if err != nil {
		return allocation{}, err
	}
	c := &memoryChunk{memory: mem, typeIndex: typeIndex, buddy: buddy, mapped: mapped}
	m.chunks[typeIndex] = append(m.chunks[typeIndex], c)

	block, err := buddy.Alloc(size)
	if err != nil {
		return allocation{}, errors.Wrapf(err, "sub-allocate %d bytes", size)
	}
	return m.place(c, block), nil
}

func (m *MemoryManager) place(c *memoryChunk, block memory.BuddyBlock) allocation {
	c.used++
	a := allocation{chunk: c, block: block, memory: c.memory, offset: block.Offset}
	if c.mapped != nil {
		a.mapped = unsafe.Add(c.mapped, block.Offset)
	}
	return a
}

// Free releases the block behind h. Freeing an unknown or already freed
// handle panics with ErrStaleHandle.
func (m *MemoryManager) Free(h MemoryHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.slots.remove(uint64(h))
	if !ok {
		panic(errors.Wrapf(ErrStaleHandle, "free of memory handle %#x", uint64(h)))
	}
	m.bytes -= a.size
	if a.chunk == nil {
		m.releaseNative(a.memory, a.mapped != nil)
		return
	}
	c := a.chunk
	if err := c.buddy.Free(a.block); err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "free of memory handle %#x", uint64(h)))
	}
	c.used--
	if c.used == 0 {
		m.releaseChunk(c)
	}
}

func (m *MemoryManager) releaseNative(mem vk.DeviceMemory, mapped bool) {
	if mapped {
		m.drv.UnmapMemory(m.dev, mem)
	}
	m.drv.FreeMemory(m.dev, mem)
	m.native--
}

func (m *MemoryManager) releaseChunk(c *memoryChunk) {
	list := m.chunks[c.typeIndex]
	for i, other := range list {
		if other == c {
			m.chunks[c.typeIndex] = append(list[:i], list[i+1:]...)
			break
		}
	}
	m.releaseNative(c.memory, c.mapped != nil)
}

// Block resolves h. A stale handle panics with ErrStaleHandle.
func (m *MemoryManager) Block(h MemoryHandle) MemoryBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.slots.get(uint64(h))
	if !ok {
		panic(errors.Wrapf(ErrStaleHandle, "lookup of memory handle %#x", uint64(h)))
	}
	return MemoryBlock{Memory: a.memory, Offset: a.offset, Size: a.size, Mapped: a.mapped}
}

func (m *MemoryManager) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	chunks := 0
	for _, list := range m.chunks {
		chunks += len(list)
	}
	return MemoryStats{
		Blocks:            m.slots.len(),
		NativeAllocations: int(m.native),
		Chunks:            chunks,
		Bytes:             m.bytes,
	}
}

// destroy releases every native allocation, including blocks the caller
// leaked.
func (m *MemoryManager) destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	leaked := 0
	m.slots.each(func(h uint64, a *allocation) {
		leaked++
		if a.chunk == nil {
			m.releaseNative(a.memory, a.mapped != nil)
		}
	})
	if leaked > 0 {
		Logger().Warn("memory blocks leaked at shutdown", "blocks", leaked)
	}
	for _, list := range m.chunks {
		for _, c := range list {
			m.releaseNative(c.memory, c.mapped != nil)
		}
	}
	m.chunks = make(map[uint32][]*memoryChunk)
	m.slots = slab[allocation]{}
	m.bytes = 0
}

func alignTo(v, a uint64) uint64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}
