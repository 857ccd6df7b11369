package bladevk

// slab is a slot table with generation counters. A handle packs the slot
// index in the low 32 bits and the generation in the high 32 bits, so a
// reused slot never matches a handle issued before the free.
type slab[T any] struct {
	entries []slabEntry[T]
	free    []uint32
	live    int
}

type slabEntry[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

func makeHandle(index, generation uint32) uint64 {
	return uint64(generation)<<32 | uint64(index)
}

func splitHandle(h uint64) (index, generation uint32) {
	return uint32(h), uint32(h >> 32)
}

func (s *slab[T]) insert(v T) uint64 {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.entries))
		// Generations start at 1 so the zero handle is never valid.
		s.entries = append(s.entries, slabEntry[T]{generation: 1})
	}
	e := &s.entries[index]
	e.value = v
	e.occupied = true
	s.live++
	return makeHandle(index, e.generation)
}

func (s *slab[T]) get(h uint64) (*T, bool) {
	index, generation := splitHandle(h)
	if int(index) >= len(s.entries) {
		return nil, false
	}
	e := &s.entries[index]
	if !e.occupied || e.generation != generation {
		return nil, false
	}
	return &e.value, true
}

func (s *slab[T]) remove(h uint64) (T, bool) {
	var zero T
	index, generation := splitHandle(h)
	if int(index) >= len(s.entries) {
		return zero, false
	}
	e := &s.entries[index]
	if !e.occupied || e.generation != generation {
		return zero, false
	}
	v := e.value
	e.value = zero
	e.occupied = false
	e.generation++
	if e.generation == 0 {
		e.generation = 1
	}
	s.free = append(s.free, index)
	s.live--
	return v, true
}

func (s *slab[T]) len() int { return s.live }

// each visits live entries in slot order.
func (s *slab[T]) each(fn func(h uint64, v *T)) {
	for i := range s.entries {
		e := &s.entries[i]
		if e.occupied {
			fn(makeHandle(uint32(i), e.generation), &e.value)
		}
	}
}
