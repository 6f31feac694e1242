// Package mmu describes the MMU primitives the virtual-memory core
// consumes (spec.md §6) without implementing them: installing and
// clearing page-table entries, reading the accessed and dirty bits, and
// setting or clearing the accessed bit. The real primitives (biscuit: pml4_set_page, pml4_clear_page,
// pml4_is_accessed, pml4_set_accessed, pml4_is_dirty) live outside this
// module; AddressSpace is the seam a host kernel implements.
package mmu

// Page-table-entry bits, mirroring biscuit's mem.PTE_* constants
// (biscuit/src/mem/mem.go). AddressSpace.SetPTE takes a writable flag
// rather than a Pte_t mask.
const (
	PTE_P Pte_t = 1 << 0 /// present
	PTE_W Pte_t = 1 << 1 /// writable
	PTE_U Pte_t = 1 << 2 /// user-accessible
	PTE_A Pte_t = 1 << 3 /// accessed
	PTE_D Pte_t = 1 << 4 /// dirty
)

// Pte_t is a page-table-entry permission mask.
type Pte_t uint

// AddressSpace is the per-process MMU handle the VM core manipulates. An
// implementation wraps whatever hardware (or simulated) page table backs
// one process's address space.
type AddressSpace interface {
	// SetPTE installs a mapping from va to the physical frame identified by
	// kva (a kernel-addressable view of that frame), with the given
	// writable bit. It reports whether the mapping was installed.
	SetPTE(va uintptr, kva []byte, writable bool) bool

	// ClearPTE removes any mapping for va. It is a no-op if va is unmapped.
	ClearPTE(va uintptr)

	// IsMapped reports whether va currently has a present mapping.
	IsMapped(va uintptr) bool

	// IsAccessed reports the hardware accessed bit for va.
	IsAccessed(va uintptr) bool

	// SetAccessed sets or clears the hardware accessed bit for va.
	SetAccessed(va uintptr, v bool)

	// IsDirty reports the hardware dirty bit for va.
	IsDirty(va uintptr) bool

	// Activate installs this address space as the current one (loads it
	// into the hardware MMU / TLB). A uniprocessor simulator may treat this
	// as a no-op; real kernels issue a TLB shootdown/reload here.
	Activate()
}
