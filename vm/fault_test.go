package vm

import (
	"encoding/binary"
	"testing"

	"vmcore/defs"
)

func TestHandleFaultLazyZeroPage(t *testing.T) {
	s, pt, _ := newTestSpace(t, 4, 64)

	const va = 0x10000000
	if !s.AllocPage(KindAnon, va, true) {
		t.Fatal("AllocPage failed")
	}
	if pt.IsMapped(va) {
		t.Fatal("page should not be mapped before the first fault")
	}

	if e := s.HandleFault(FaultInfo{VA: va + 10, Write: true}); e != 0 {
		t.Fatalf("HandleFault = %v, want success", e)
	}
	if !pt.IsMapped(va) {
		t.Fatal("page should be mapped after claim")
	}
	p, ok := s.SPT.Find(va)
	if !ok {
		t.Fatal("SPT should still contain the descriptor")
	}
	if p.Kind() != KindAnon {
		t.Fatalf("Kind() = %v, want anon", p.Kind())
	}
	for i, b := range p.Frame.Kva {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0 (fresh anon page must be zeroed)", i, b)
		}
	}
}

func TestHandleFaultInvalidAddress(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	if e := s.HandleFault(FaultInfo{VA: 0}); e != defs.EFAULT {
		t.Fatalf("HandleFault(0) = %v, want EFAULT", e)
	}
}

func TestHandleFaultWriteToReadOnlyPage(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	const va = 0x10000000
	s.AllocPage(KindAnon, va, false)
	// First touch with a read fault to install it.
	if e := s.HandleFault(FaultInfo{VA: va, Write: false}); e != 0 {
		t.Fatalf("initial read fault: %v", e)
	}
	if e := s.HandleFault(FaultInfo{VA: va, Write: true}); e != defs.EFAULT {
		t.Fatalf("write fault on read-only page = %v, want EFAULT", e)
	}
}

func TestHandleFaultUnknownAddressNotStackEligible(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	if e := s.HandleFault(FaultInfo{VA: 0x1000, Write: true}); e != defs.EFAULT {
		t.Fatalf("HandleFault on untracked, non-stack VA = %v, want EFAULT", e)
	}
}

func TestHandleFaultStackGrowthSucceeds(t *testing.T) {
	s, pt, _ := newTestSpace(t, 4, 64)
	const va = uintptr(USER_STACK - PGSIZE)
	if e := s.HandleFault(FaultInfo{VA: va, Write: true, RSP: va}); e != 0 {
		t.Fatalf("HandleFault stack growth = %v, want success", e)
	}
	if !pt.IsMapped(va) {
		t.Fatal("stack growth should install and claim a page")
	}
	p, ok := s.SPT.Find(va)
	if !ok || p.Kind() != KindAnon || !p.Writable {
		t.Fatal("stack growth should install a writable anon page")
	}
}

func TestHandleFaultStackGrowthRejectsBeyondCap(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	va := uintptr(USER_STACK - StackCap - PGSIZE)
	if e := s.HandleFault(FaultInfo{VA: va, Write: true, RSP: va}); e != defs.EFAULT {
		t.Fatalf("HandleFault beyond StackCap = %v, want EFAULT", e)
	}
}

func TestHandleFaultStackGrowthRejectsFarBelowRSP(t *testing.T) {
	s, _, _ := newTestSpace(t, 4, 64)
	va := uintptr(USER_STACK - PGSIZE)
	farRSP := va + 10*PGSIZE
	if e := s.HandleFault(FaultInfo{VA: va, Write: true, RSP: farRSP}); e != defs.EFAULT {
		t.Fatalf("fault far below rsp = %v, want EFAULT", e)
	}
}

func TestHandleFaultSwapCycleAcrossFramesPlusEight(t *testing.T) {
	const numFrames = 4
	s, _, _ := newTestSpace(t, numFrames, 256)

	n := numFrames + 8
	vas := make([]uintptr, n)
	for i := 0; i < n; i++ {
		va := uintptr(0x40000000 + i*PGSIZE)
		vas[i] = va
		if !s.AllocPage(KindAnon, va, true) {
			t.Fatalf("AllocPage %d failed", i)
		}
		if e := s.HandleFault(FaultInfo{VA: va, Write: true}); e != 0 {
			t.Fatalf("HandleFault %d: %v (should force eviction, not fail)", i, e)
		}
		// Stamp a per-page distinguishing value while the page is still
		// resident, before a later page's fault can evict it.
		p, ok := s.SPT.Find(va)
		if !ok {
			t.Fatalf("SPT missing descriptor for page %d", i)
		}
		binary.LittleEndian.PutUint64(p.Frame.Kva[:8], uint64(va))
	}

	if s.Kernel.Frames.Resident() != numFrames {
		t.Fatalf("Resident() = %d, want %d (pool size caps resident pages)", s.Kernel.Frames.Resident(), numFrames)
	}

	// Re-fault every page in reverse order, forcing more eviction churn,
	// and confirm each page's stamped value survived its round trip to
	// swap and back.
	for i := n - 1; i >= 0; i-- {
		va := vas[i]
		if e := s.HandleFault(FaultInfo{VA: va, Write: false}); e != 0 {
			t.Fatalf("re-fault on page %d (va %#x): %v", i, va, e)
		}
		p, ok := s.SPT.Find(va)
		if !ok {
			t.Fatalf("SPT missing descriptor for page %d on re-fault", i)
		}
		if got := binary.LittleEndian.Uint64(p.Frame.Kva[:8]); got != uint64(va) {
			t.Fatalf("page %d (va %#x): content after re-fault = %#x, want %#x", i, va, got, uint64(va))
		}
	}
}
