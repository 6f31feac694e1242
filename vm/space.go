package vm

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"vmcore/accnt"
	"vmcore/defs"
	"vmcore/mmu"
)

// Space is one process address space: its supplemental page table, its MMU
// handle, and the shared Kernel subsystems it claims frames and swap slots
// from. Grounded on biscuit/src/vm/as.go's Vm_t — the mutex-guarded,
// per-process holder of the page-table-adjacent state — generalized to
// this spec's SPT/uninit/anon/file design instead of biscuit's own
// COW/refcounted one.
type Space struct {
	Kernel *Kernel
	PT     mmu.AddressSpace
	SPT    *SPT
	Tid    defs.Tid_t
	Accnt  accnt.Accnt_t

	mu      sync.Mutex
	faultIn bool // set while a fault is being serviced, mirrors Vm_t.pgfltaken

	claims singleflight.Group // collapses concurrent claims on one VA
}

// NewSpace creates an address space backed by pt and k.
func NewSpace(k *Kernel, pt mmu.AddressSpace, tid defs.Tid_t) *Space {
	return &Space{Kernel: k, PT: pt, SPT: NewSPT(), Tid: tid}
}

// lock acquires the address-space mutex and marks that fault handling is
// in progress, mirroring biscuit's Lock_pmap/Unlock_pmap pair.
func (s *Space) lock() {
	s.mu.Lock()
	s.faultIn = true
}

func (s *Space) unlock() {
	s.faultIn = false
	s.mu.Unlock()
}

func (s *Space) lockassert() {
	if !s.faultIn {
		panic("vm: address-space lock must be held")
	}
}

// AllocPageWithInitializer registers a fresh uninit descriptor in the SPT
// (spec.md §6/C3). va must already be page-aligned.
func (s *Space) AllocPageWithInitializer(kind Kind, va uintptr, writable bool, loader LazyLoader, aux Aux) bool {
	if va%PGSIZE != 0 {
		panic("vm: va must be page-aligned")
	}
	if kind != KindAnon && kind != KindFile {
		panic("vm: alloc target kind must be ANON or FILE")
	}
	p := mkUninit(s, va, writable, kind, loader, aux)
	return s.SPT.Insert(p)
}

// AllocPage is AllocPageWithInitializer with no lazy loader (spec.md §6).
func (s *Space) AllocPage(kind Kind, va uintptr, writable bool) bool {
	return s.AllocPageWithInitializer(kind, va, writable, nil, nil)
}

// ClaimPage materializes the descriptor at va with a physical frame
// (spec.md §6 vm_claim_page).
func (s *Space) ClaimPage(va uintptr) bool {
	p, ok := s.SPT.Find(va)
	if !ok {
		return false
	}
	return s.claimDedup(p) == 0
}

// claimDedup collapses concurrent claims racing on the same VA (spec.md
// §4.7's "two threads simultaneously faulted on same page") into one
// in-flight claim via golang.org/x/sync/singleflight; every caller observes
// the same outcome.
func (s *Space) claimDedup(p *Page) defs.Err_t {
	key := fmt.Sprintf("%x", p.VA)
	v, err, _ := s.claims.Do(key, func() (interface{}, error) {
		if p.Frame != nil {
			// Another caller already claimed it while we waited to enter
			// Do for a now-stale key reuse; nothing to do.
			return defs.Err_t(0), nil
		}
		e := s.claim(p)
		if e != 0 {
			return e, e
		}
		return e, nil
	})
	if err != nil {
		return v.(defs.Err_t)
	}
	return v.(defs.Err_t)
}

// claim obtains a frame, wires it bidirectionally to p, installs the PTE,
// and runs the page's swap_in (spec.md §4.7 "Claim"). On any failure after
// the PTE is installed, the PTE is cleared and the frame returned to the
// pool before the error propagates (spec.md §7).
func (s *Space) claim(p *Page) defs.Err_t {
	major := p.requiresIO()
	s.Accnt.Fault(major)

	lenBefore := s.Kernel.Frames.Len()

	f := s.Kernel.Frames.Obtain()
	f.SetOwner(p)
	p.Frame = f

	if s.Kernel.Frames.Len() == lenBefore {
		// The table didn't grow: Obtain recycled an existing frame rather
		// than drawing a fresh one from the pool, so an eviction happened.
		s.Accnt.Eviction()
	}

	if !s.PT.SetPTE(p.VA, f.Kva, p.Writable) {
		p.Frame = nil
		f.ClearOwner()
		s.Kernel.Frames.Release(f)
		return defs.ENOMEM
	}

	if e := p.swapIn(); e != 0 {
		s.PT.ClearPTE(p.VA)
		p.Frame = nil
		f.ClearOwner()
		s.Kernel.Frames.Release(f)
		return e
	}
	if major {
		s.Accnt.SwapIn()
	}
	return 0
}

// Kill tears down this address space: every SPT descriptor is destroyed
// (spec.md §3 "Lifecycle").
func (s *Space) Kill() {
	s.SPT.Kill()
}

// HandleWP is the write-protect-fault placeholder (spec.md §9 open
// question 5, Non-goals: no COW write-protect optimization). It exists so
// a future implementer has a named seam; it is never called by
// HandleFault today.
func (s *Space) HandleWP(p *Page) defs.Err_t {
	return defs.EFAULT
}
