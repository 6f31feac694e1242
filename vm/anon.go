package vm

import (
	"fmt"

	"github.com/pkg/errors"

	"vmcore/defs"
	"vmcore/swap"
)

const noSlot = swap.NoSlot

// spp is "sectors per page" (spec.md GLOSSARY: SPP = PGSIZE / SECTOR_SIZE).
const spp = PGSIZE / swap.SECTOR_SIZE

// anonPayload is zero-initialized private memory, backed by a swap slot
// when evicted (spec.md §3 "Anon payload", C4).
type anonPayload struct {
	slot int // noSlot when not currently in swap
}

// Clone implements Aux for fork-copy of an anon page reinstalled as an
// uninit descriptor is never needed (anon pages are fork-copied by direct
// frame memcpy, spec.md §4.6) — Clone exists only so *anonPayload can
// travel as an Aux value if a caller chooses to.
func (a *anonPayload) Clone() Aux {
	return &anonPayload{slot: a.slot}
}

type anonOps struct{}

func (anonOps) Kind() Kind { return KindAnon }

// SwapIn reads the page's content back from its swap slot, or — on first
// touch of a freshly transmuted page, which has no slot yet — leaves the
// already-zeroed frame alone (spec.md §4.4).
func (anonOps) SwapIn(p *Page) defs.Err_t {
	ap := p.payload.(*anonPayload)
	if ap.slot == noSlot {
		return 0
	}
	k := p.Owner.Kernel
	startSector := ap.slot * spp
	buf := make([]byte, swap.SECTOR_SIZE)
	for i := 0; i < spp; i++ {
		if err := k.Disk.ReadSector(startSector+i, buf); err != nil {
			panic(errors.Wrapf(err, "vm: anon swap_in va %#x slot %d", p.VA, ap.slot))
		}
		copy(p.Frame.Kva[i*swap.SECTOR_SIZE:], buf)
	}
	k.Swap.Release(ap.slot)
	ap.slot = noSlot
	return 0
}

// SwapOut writes the page's frame contents to a freshly acquired swap slot,
// clears its PTE, and breaks the page<->frame linkage (spec.md §4.4).
// Swap exhaustion is fatal (spec.md §7): the allocator has no capacity to
// evict into, so this panics rather than returning an error.
func (anonOps) SwapOut(p *Page) defs.Err_t {
	k := p.Owner.Kernel
	slot, err := k.Swap.Acquire()
	if err != nil {
		panic(fmt.Sprintf("vm: anon swap_out va %#x: %v", p.VA, err))
	}

	startSector := slot * spp
	buf := make([]byte, swap.SECTOR_SIZE)
	for i := 0; i < spp; i++ {
		copy(buf, p.Frame.Kva[i*swap.SECTOR_SIZE:(i+1)*swap.SECTOR_SIZE])
		if err := k.Disk.WriteSector(startSector+i, buf); err != nil {
			panic(errors.Wrapf(err, "vm: anon swap_out va %#x slot %d", p.VA, slot))
		}
	}

	ap := p.payload.(*anonPayload)
	ap.slot = slot

	p.Owner.PT.ClearPTE(p.VA)
	p.Frame.ClearOwner()
	p.Frame = nil
	return 0
}

// Destroy releases the page's swap slot (if any) and its resident frame
// (if any), per spec.md §4.4.
func (anonOps) Destroy(p *Page) {
	ap := p.payload.(*anonPayload)
	if ap.slot != noSlot {
		p.Owner.Kernel.Swap.Release(ap.slot)
		ap.slot = noSlot
	}
	if p.Frame != nil {
		p.Owner.PT.ClearPTE(p.VA)
		p.Owner.Kernel.Frames.Release(p.Frame)
		p.Frame.ClearOwner()
		p.Frame = nil
	}
}
