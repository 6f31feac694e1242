package vm

import "testing"

func TestCopySPTAnonIsolation(t *testing.T) {
	parent, _, _ := newTestSpace(t, 8, 64)
	child, _, _ := newTestSpace(t, 8, 64)

	const va = 0x10000000
	parent.AllocPage(KindAnon, va, true)
	if e := parent.HandleFault(FaultInfo{VA: va, Write: true}); e != 0 {
		t.Fatalf("parent HandleFault: %v", e)
	}
	pp, _ := parent.SPT.Find(va)
	pp.Frame.Kva[0] = 0x42

	if !CopySPT(child, parent) {
		t.Fatal("CopySPT failed")
	}

	cp, ok := child.SPT.Find(va)
	if !ok {
		t.Fatal("child should have a descriptor at the same VA")
	}
	if cp.Frame == nil {
		t.Fatal("child's anon page should be eagerly claimed")
	}
	if cp.Frame.Kva[0] != 0x42 {
		t.Fatalf("child frame byte = %#x, want 0x42 (copy must preserve content)", cp.Frame.Kva[0])
	}

	// Mutating the parent's frame after fork must not affect the child:
	// they must be backed by distinct physical frames.
	pp.Frame.Kva[0] = 0x99
	if cp.Frame.Kva[0] != 0x42 {
		t.Fatal("child frame changed after a parent-only write; frames are not isolated")
	}
}

func TestCopySPTUninitDeepCopiesAux(t *testing.T) {
	parent, _, _ := newTestSpace(t, 8, 64)
	child, _, _ := newTestSpace(t, 8, 64)

	const va = 0x10000000
	f := memFileWith("abcdef")
	_, e := parent.Mmap(va, f, 0, 6, false)
	if e != 0 {
		t.Fatalf("Mmap: %v", e)
	}

	if !CopySPT(child, parent) {
		t.Fatal("CopySPT failed")
	}

	pp, _ := parent.SPT.Find(va)
	cp, ok := child.SPT.Find(va)
	if !ok {
		t.Fatal("child should have a file-backed descriptor")
	}
	if cp == pp {
		t.Fatal("child descriptor must be a distinct object from the parent's")
	}
	if cp.Kind() != KindUninit {
		t.Fatalf("child Kind() before first touch = %v, want uninit", cp.Kind())
	}
	if cp.payload.(*uninitPayload).aux == pp.payload.(*uninitPayload).aux {
		t.Fatal("child aux must be a copy, not the parent's aux value")
	}

	// Faulting in the child must transmute only the child's descriptor, not
	// the parent's (still-uninit) one.
	if e := child.HandleFault(FaultInfo{VA: va, Write: false}); e != 0 {
		t.Fatalf("child HandleFault: %v", e)
	}
	if cp.Kind() != KindFile {
		t.Fatalf("child Kind() after first touch = %v, want file", cp.Kind())
	}
	if pp.Kind() != KindUninit {
		t.Fatal("parent descriptor must remain untouched by the child's fault")
	}
}
