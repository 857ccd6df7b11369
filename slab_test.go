package bladevk

import "testing"

func TestSlabReuse(t *testing.T) {
	var s slab[string]
	a := s.insert("a")
	b := s.insert("b")
	if a == b {
		t.Fatal("distinct inserts share a handle")
	}
	if v, ok := s.remove(a); !ok || v != "a" {
		t.Fatalf("remove(a) = %q, %v", v, ok)
	}
	if _, ok := s.get(a); ok {
		t.Error("freed handle still resolves")
	}
	c := s.insert("c")
	ci, _ := splitHandle(c)
	ai, _ := splitHandle(a)
	if ci != ai {
		t.Errorf("slot %d not reused, got %d", ai, ci)
	}
	if c == a {
		t.Error("reused slot kept its generation")
	}
	if _, ok := s.remove(a); ok {
		t.Error("double free succeeded")
	}
	if v, ok := s.get(c); !ok || *v != "c" {
		t.Errorf("get(c) = %v, %v", v, ok)
	}
	if s.len() != 2 {
		t.Errorf("len() = %d, want 2", s.len())
	}

	seen := 0
	s.each(func(h uint64, v *string) { seen++ })
	if seen != 2 {
		t.Errorf("each visited %d entries, want 2", seen)
	}
	_ = b
}

func TestSlabZeroHandle(t *testing.T) {
	var s slab[int]
	s.insert(1)
	if _, ok := s.get(0); ok {
		t.Error("zero handle resolved")
	}
}
