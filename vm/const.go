// Package vm is the virtual-memory core: the supplemental page table, the
// three page kinds (uninit, anon, file-backed), the fault dispatcher, and
// the mmap/munmap engine (spec.md §4.3-§4.8, components C3-C9). The frame
// table (C2) and swap-slot allocator (C1) live in sibling packages
// (frame, swap) and are wired in here through the Kernel and Space types.
package vm

import "vmcore/util"

// Tunable constants (spec.md §6).
const (
	PGSHIFT = 12
	PGSIZE  = 1 << PGSHIFT // 4096

	// USER_STACK is the top of the user stack region; stack growth installs
	// pages below it.
	USER_STACK = 0x47480000

	// StackCap is the maximum distance below USER_STACK eligible for
	// automatic stack growth (spec.md §4.7).
	StackCap = 1 << 20 // 1 MiB

	// StackSlack is how far below rsp a fault may still land and be
	// considered stack growth, to accommodate a "push" instruction that
	// writes 8 bytes below rsp before rsp itself is adjusted.
	StackSlack = 8
)

// pgRoundDown aligns va down to the nearest page boundary.
func pgRoundDown(va uintptr) uintptr {
	return util.PgRoundDown(va, uintptr(PGSIZE))
}

// pgOfs returns the offset of va within its containing page.
func pgOfs(va uintptr) uintptr {
	return util.PgOfs(va, uintptr(PGSIZE))
}
