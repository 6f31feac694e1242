package vm

import (
	"sync"
	"testing"

	"vmcore/defs"
	"vmcore/swap"
	"vmcore/vfile"
)

// fakePT is a minimal mmu.AddressSpace for tests: a map-backed software
// page table with settable accessed/dirty bits.
type fakePT struct {
	mu      sync.Mutex
	entries map[uintptr]*fakePTE
}

type fakePTE struct {
	kva      []byte
	writable bool
	accessed bool
	dirty    bool
}

func newFakePT() *fakePT {
	return &fakePT{entries: make(map[uintptr]*fakePTE)}
}

func (t *fakePT) SetPTE(va uintptr, kva []byte, writable bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[va] = &fakePTE{kva: kva, writable: writable}
	return true
}

func (t *fakePT) ClearPTE(va uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, va)
}

func (t *fakePT) IsMapped(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[va]
	return ok
}

func (t *fakePT) IsAccessed(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[va]
	return ok && e.accessed
}

func (t *fakePT) SetAccessed(va uintptr, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[va]; ok {
		e.accessed = v
	}
}

func (t *fakePT) IsDirty(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[va]
	return ok && e.dirty
}

func (t *fakePT) setDirty(va uintptr, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[va]; ok {
		e.dirty = v
	}
}

func (t *fakePT) Activate() {}

// fakePool is a fixed-capacity frame.Pool for tests.
type fakePool struct {
	mu        sync.Mutex
	pages     [][]byte
	allocated int
}

func newFakePool(n int) *fakePool {
	p := &fakePool{}
	for i := 0; i < n; i++ {
		p.pages = append(p.pages, make([]byte, PGSIZE))
	}
	return p
}

func (p *fakePool) AllocZeroed() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pages) == 0 {
		return nil
	}
	kva := p.pages[len(p.pages)-1]
	p.pages = p.pages[:len(p.pages)-1]
	for i := range kva {
		kva[i] = 0
	}
	p.allocated++
	return kva
}

func (p *fakePool) Free(kva []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pages = append(p.pages, kva)
}

func newTestSpace(t *testing.T, numFrames, swapSectors int) (*Space, *fakePT, *fakePool) {
	t.Helper()
	pool := newFakePool(numFrames)
	disk := swap.NewMemDisk(swapSectors)
	kern := NewKernel(pool, disk)
	pt := newFakePT()
	return NewSpace(kern, pt, defs.Tid_t(1)), pt, pool
}

func memFileWith(contents string) vfile.File {
	return vfile.NewMemFile([]byte(contents))
}
