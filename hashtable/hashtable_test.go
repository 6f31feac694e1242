package hashtable

import "testing"

func TestSetGetDel(t *testing.T) {
	ht := MkHash[uintptr, string](8, func(k uintptr) uint32 { return uint32(k) })

	if _, ok := ht.Get(0x1000); ok {
		t.Fatal("expected miss on empty table")
	}

	if replaced := ht.Set(0x1000, "a"); replaced {
		t.Fatal("first insert should not report a replacement")
	}
	v, ok := ht.Get(0x1000)
	if !ok || v != "a" {
		t.Fatalf("got (%q, %v), want (\"a\", true)", v, ok)
	}

	if replaced := ht.Set(0x1000, "b"); !replaced {
		t.Fatal("second insert at same key should report a replacement")
	}
	v, _ = ht.Get(0x1000)
	if v != "b" {
		t.Fatalf("got %q, want \"b\" after replace", v)
	}

	if !ht.Del(0x1000) {
		t.Fatal("Del of present key should report true")
	}
	if ht.Del(0x1000) {
		t.Fatal("Del of absent key should report false")
	}
}

func TestCollisionChaining(t *testing.T) {
	// A single-bucket table forces every key into one chain.
	ht := MkHash[int, int](1, func(k int) uint32 { return 0 })

	for i := 0; i < 10; i++ {
		ht.Set(i, i*i)
	}
	if ht.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", ht.Size())
	}
	for i := 0; i < 10; i++ {
		v, ok := ht.Get(i)
		if !ok || v != i*i {
			t.Fatalf("Get(%d) = (%d, %v), want (%d, true)", i, v, ok, i*i)
		}
	}
}

func TestApplyAndClear(t *testing.T) {
	ht := MkHash[int, int](4, func(k int) uint32 { return uint32(k) })
	for i := 0; i < 5; i++ {
		ht.Set(i, i)
	}

	seen := map[int]int{}
	ht.Apply(func(k, v int) { seen[k] = v })
	if len(seen) != 5 {
		t.Fatalf("Apply saw %d entries, want 5", len(seen))
	}

	ht.Clear()
	if ht.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", ht.Size())
	}
}

func TestFnvHash32Deterministic(t *testing.T) {
	a := FnvHash32([]byte("same input"))
	b := FnvHash32([]byte("same input"))
	if a != b {
		t.Fatal("FnvHash32 must be deterministic for equal input")
	}
	if FnvHash32([]byte("x")) == FnvHash32([]byte("y")) {
		t.Skip("hash collision on trivial inputs is unlikely but not a contract violation")
	}
}
