package vm

import (
	"fmt"

	"vmcore/frame"
	"vmcore/swap"
)

// Kernel holds the process-wide VM subsystems: the frame table and the
// swap device (spec.md §5 "Global mutable state" — initialized once during
// vm_init and never torn down before kernel shutdown). One Kernel is
// shared by every Space in the system, exactly as biscuit's mem.Physmem
// and a Pintos kernel's frame_table/swap_bitmap are process-wide globals.
type Kernel struct {
	Frames *frame.Table
	Swap   *swap.SlotAllocator
	Disk   swap.Disk
}

// NewKernel is vm_init (spec.md §6): it wires a physical-page pool and a
// swap device into a ready-to-use subsystem set. Safe to call once per
// kernel boot; constructing a second Kernel over the same pool/disk would
// violate the "never teardown before shutdown" lifecycle spec.md §5 assumes,
// so callers should treat Kernel as a singleton.
func NewKernel(pool frame.Pool, disk swap.Disk) *Kernel {
	numslots := disk.Size() / spp
	return &Kernel{
		Frames: frame.NewTable(pool),
		Swap:   swap.NewSlotAllocator(numslots),
		Disk:   disk,
	}
}

// String renders a one-line summary, for debug logging in the style of
// biscuit/src/fs/blk.go's bdev_debug traces.
func (k *Kernel) String() string {
	return fmt.Sprintf("frames resident=%d total=%d swap used=%d/%d",
		k.Frames.Resident(), k.Frames.Len(), k.Swap.Used(), k.Swap.NumSlots())
}
