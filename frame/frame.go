// Package frame implements the global frame table and second-chance clock
// eviction policy (spec.md §4.2, C2). Grounded on pintos/vm/vm.c's
// vm_get_frame/vm_get_victim/vm_evict_frame and biscuit/src/mem/mem.go's
// mutex-guarded physical-page registry.
package frame

import (
	"fmt"
	"sync"
)

var debug = false

// SetDebug enables fmt.Printf tracing of eviction decisions, matching the
// bdev_debug-guarded tracing convention in biscuit/src/fs/blk.go.
func SetDebug(v bool) { debug = v }

// Evictable is implemented by whatever page object currently owns a frame.
// The frame table never imports the page package directly (that would
// create an import cycle, since pages hold *Frame back-pointers); it only
// needs these four operations to run the clock algorithm and perform an
// eviction.
type Evictable interface {
	// FaultVA returns the page's virtual address, for diagnostics.
	FaultVA() uintptr
	// Accessed reports the MMU accessed bit for this page.
	Accessed() bool
	// ClearAccessed clears the MMU accessed bit ("the second chance").
	ClearAccessed()
	// SwapOut evicts this page: writes it to swap or back to its file if
	// dirty, clears its PTE, and breaks the page<->frame linkage. It must
	// not touch the Frame itself; Table does that after SwapOut returns.
	SwapOut() error
}

// Pool is the user-pool physical-page allocator collaborator (spec.md §6:
// palloc_get_page/palloc_free_page).
type Pool interface {
	// AllocZeroed returns one zeroed physical page, or nil if none remain.
	AllocZeroed() []byte
	// Free returns kva to the pool.
	Free(kva []byte)
}

// Frame is one physical page tracked by the frame table: a kernel-
// addressable view of the page plus a back-pointer to whichever page
// currently owns it (spec.md §3 "Frame").
type Frame struct {
	Kva  []byte
	page Evictable // nil when not currently owned by any page
}

// Page returns the Evictable that currently owns this frame, or nil.
func (f *Frame) Page() Evictable { return f.page }

// SetOwner records owner as the page currently backed by this frame.
// Callers must maintain spec.md §3 invariant 2 (link symmetry): set the
// owner's own frame pointer to f in the same breath.
func (f *Frame) SetOwner(owner Evictable) { f.page = owner }

// ClearOwner breaks the page<->frame link from the frame's side, without
// touching the frame table's list or recycling its physical page. Used by
// a page's own SwapOut/Destroy once it has finished using the frame.
func (f *Frame) ClearOwner() { f.page = nil }

// Table is the global frame table: an ordered list of frames, a clock-hand
// cursor, and the mutex serializing all mutation and eviction (spec.md §4.2,
// §5's frame_table_lock).
type Table struct {
	mu    sync.Mutex
	pool  Pool
	list  []*Frame
	clock int // index of the clock hand into list; -1 means "reset"
}

// NewTable creates a frame table drawing physical pages from pool.
func NewTable(pool Pool) *Table {
	return &Table{pool: pool, clock: -1}
}

// Len returns the number of frames currently tracked (resident + recycled-
// but-still-listed), for stats and tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.list)
}

// Resident returns the number of frames currently owned by a page.
func (t *Table) Resident() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.list {
		if f.page != nil {
			n++
		}
	}
	return n
}

// Obtain returns a zeroed frame ready to be claimed by a new owner (spec.md
// §4.2 "frame_obtain"). It first asks the pool for a fresh zeroed page; on
// failure it evicts a victim, zeroes its physical page, and reuses it, so a
// newly claimed page never observes a prior tenant's bytes. Obtain always
// succeeds or panics — there is no user-recoverable "out of frames" error
// once eviction itself fails (spec.md §7).
func (t *Table) Obtain() *Frame {
	if kva := t.pool.AllocZeroed(); kva != nil {
		t.mu.Lock()
		f := &Frame{Kva: kva}
		t.list = append(t.list, f)
		t.mu.Unlock()
		return f
	}
	return t.evictOne()
}

// evictOne selects a victim under the frame-table lock, evicts it
// (including the I/O that eviction may require — spec.md §4.2's documented
// bottleneck), and returns the recycled frame with page cleared.
func (t *Table) evictOne() *Frame {
	t.mu.Lock()
	defer t.mu.Unlock()

	victim := t.selectVictim()
	if victim == nil {
		panic("frame: no evictable frame")
	}
	owner := victim.page
	if owner != nil {
		if err := owner.SwapOut(); err != nil {
			panic(fmt.Sprintf("frame: eviction failed for va %#x: %v", owner.FaultVA(), err))
		}
	}
	victim.page = nil
	for i := range victim.Kva {
		victim.Kva[i] = 0
	}
	if debug {
		fmt.Printf("frame: evicted frame, recycled for reuse\n")
	}
	return victim
}

// selectVictim implements the second-chance clock algorithm (spec.md §4.2
// steps 1-4, carried from pintos/vm/vm.c's vm_get_victim). Must be called
// with t.mu held.
func (t *Table) selectVictim() *Frame {
	n := len(t.list)
	if n == 0 {
		return nil
	}
	if t.clock < 0 || t.clock >= n {
		t.clock = 0
	}

	advance := func() {
		t.clock++
		if t.clock >= len(t.list) {
			t.clock = 0
		}
	}

	// Round one: give every accessed frame a second chance.
	for i := 0; i < n; i++ {
		f := t.list[t.clock]
		advance()
		if f.page == nil {
			// Transient state window: a frame mid-eviction or mid-reuse.
			continue
		}
		if f.page.Accessed() {
			f.page.ClearAccessed()
			continue
		}
		return f
	}

	// Round two: every bit we saw is now clear; the first owned frame we
	// encounter is the victim.
	for i := 0; i < n; i++ {
		f := t.list[t.clock]
		advance()
		if f.page == nil {
			continue
		}
		return f
	}

	// Last resort (spec.md §4.2 step 4).
	return t.list[0]
}

// ForEach calls f once per tracked frame, holding the table lock for the
// duration. Used by profdump to build an occupancy snapshot; f must not
// call back into Table.
func (t *Table) ForEach(f func(*Frame)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, fr := range t.list {
		f(fr)
	}
}

// Release removes a frame from the table entirely and returns its physical
// page to the pool — used by a page's Destroy when it owns a frame directly
// (spec.md §4.4/§4.5 destroy).
func (t *Table) Release(f *Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, cand := range t.list {
		if cand == f {
			t.list = append(t.list[:i], t.list[i+1:]...)
			if t.clock > i {
				t.clock--
			}
			break
		}
	}
	t.pool.Free(f.Kva)
}
