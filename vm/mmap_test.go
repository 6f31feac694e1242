package vm

import (
	"testing"
)

func TestMmapFileWithTailZeroFill(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	f := memFileWith("short") // much shorter than one page

	const va = 0x20000000
	head, e := s.Mmap(va, f, 0, len("short"), false)
	if e != 0 {
		t.Fatalf("Mmap: %v", e)
	}
	if head == nil || head.Next != nil {
		t.Fatal("a 1-page mapping should produce exactly one linked page")
	}

	if e := s.HandleFault(FaultInfo{VA: va, Write: false}); e != 0 {
		t.Fatalf("HandleFault: %v", e)
	}
	p, _ := s.SPT.Find(va)
	want := "short"
	for i := 0; i < len(want); i++ {
		if p.Frame.Kva[i] != want[i] {
			t.Fatalf("byte %d = %q, want %q", i, p.Frame.Kva[i], want[i])
		}
	}
	for i := len(want); i < PGSIZE; i++ {
		if p.Frame.Kva[i] != 0 {
			t.Fatalf("tail byte %d = %d, want 0", i, p.Frame.Kva[i])
		}
	}
}

func TestMmapRejectsOverlap(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	const va = 0x20000000
	s.AllocPage(KindAnon, va, true)

	f := memFileWith("data")
	if _, e := s.Mmap(va, f, 0, PGSIZE, false); e == 0 {
		t.Fatal("Mmap over an existing descriptor should fail")
	}
}

func TestMunmapWritesBackDirtyPage(t *testing.T) {
	s, pt, _ := newTestSpace(t, 4, 64)
	f := memFileWith("0123456789")

	const va = 0x20000000
	head, e := s.Mmap(va, f, 0, 10, true)
	if e != 0 {
		t.Fatalf("Mmap: %v", e)
	}
	if e := s.HandleFault(FaultInfo{VA: va, Write: true}); e != 0 {
		t.Fatalf("HandleFault: %v", e)
	}
	p, _ := s.SPT.Find(va)
	copy(p.Frame.Kva, []byte("XYZ"))
	pt.setDirty(va, true)

	s.Munmap(head)

	got := make([]byte, 3)
	n, err := f.ReadAt(got, 0)
	if err != nil || n != 3 {
		t.Fatalf("ReadAt after munmap: n=%d err=%v", n, err)
	}
	if string(got) != "XYZ" {
		t.Fatalf("file contents = %q, want \"XYZ\" (dirty page should be written back)", got)
	}
	if pt.IsMapped(va) {
		t.Fatal("munmap should clear the PTE")
	}
}

func TestMunmapSkipsWriteBackWhenClean(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	f := memFileWith("0123456789")

	const va = 0x20000000
	head, e := s.Mmap(va, f, 0, 10, false)
	if e != 0 {
		t.Fatalf("Mmap: %v", e)
	}
	if e := s.HandleFault(FaultInfo{VA: va, Write: false}); e != 0 {
		t.Fatalf("HandleFault: %v", e)
	}
	// No write, so the dirty bit was never set: munmap must not touch the
	// file's original bytes even though the in-memory frame could diverge.
	s.Munmap(head)

	got := make([]byte, 10)
	f.ReadAt(got, 0)
	if string(got) != "0123456789" {
		t.Fatalf("file contents changed after a clean unmap: %q", got)
	}
}
