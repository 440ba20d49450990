package heap

import "testing"

func TestAllocateIDsIncrease(t *testing.T) {
	h := New[int]()
	var last ID
	for i := 0; i < 10; i++ {
		id := h.Allocate("Point")
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
	}
	if h.Len() != 10 {
		t.Errorf("Len = %d, want 10", h.Len())
	}
}

func TestFieldsDefaultToZero(t *testing.T) {
	h := New[int]()
	id := h.Allocate("Point")
	if v, ok := h.GetField(id, "x"); ok || v != 0 {
		t.Fatalf("unset field = %d, %v", v, ok)
	}
	if !h.SetField(id, "x", 42) {
		t.Fatal("SetField on live record failed")
	}
	if v, ok := h.GetField(id, "x"); !ok || v != 42 {
		t.Fatalf("x = %d, %v", v, ok)
	}
	if h.SetField(999, "x", 1) {
		t.Error("SetField on unknown id succeeded")
	}
	if v, ok := h.GetField(999, "x"); ok || v != 0 {
		t.Errorf("GetField on unknown id = %d, %v", v, ok)
	}
	if h.TypeOf(id) != "Point" || h.TypeOf(999) != "" {
		t.Errorf("TypeOf mismatch")
	}
}

func TestAllocateWithCopiesDefaults(t *testing.T) {
	h := New[string]()
	defaults := map[string]string{"name": "anon"}
	a := h.AllocateWith("User", defaults)
	h.SetField(a, "name", "ada")
	b := h.AllocateWith("User", defaults)
	if v, _ := h.GetField(b, "name"); v != "anon" {
		t.Errorf("second instance saw mutation: %q", v)
	}
	if defaults["name"] != "anon" {
		t.Errorf("defaults mutated")
	}
}

func TestArraysAndOrder(t *testing.T) {
	h := New[int]()
	arr := h.AllocateArray("[I", 3, 7)
	rec, ok := h.Get(arr)
	if !ok || !rec.IsArray || len(rec.Elems) != 3 || rec.Elems[2] != 7 {
		t.Fatalf("array record = %+v", rec)
	}
	h.Allocate("A")
	var seen []ID
	h.Each(func(r *Record[int]) bool {
		seen = append(seen, r.ID)
		return true
	})
	if len(seen) != 2 || seen[0] != arr {
		t.Errorf("Each order = %v", seen)
	}
}
