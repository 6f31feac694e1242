// Package accnt tracks per-address-space virtual-memory accounting: page
// faults, swap traffic, and evictions caused on behalf of one Space.
// Grounded on biscuit/src/accnt/accnt.go's mutex-guarded counter struct with
// an Ainc-style increment API.
package accnt

import "sync"

// Accnt_t holds the fault/swap counters for one address space. All fields
// are accessed only through its methods; the zero value is ready to use.
type Accnt_t struct {
	sync.Mutex

	PageFaults  uint64
	MinorFaults uint64 // fault resolved without disk I/O
	MajorFaults uint64 // fault resolved by reading swap or a file
	SwapIns     uint64
	SwapOuts    uint64
	Evictions   uint64
}

// Fault records one page fault, classified as minor or major by whether it
// required disk I/O to resolve.
func (a *Accnt_t) Fault(major bool) {
	a.Lock()
	defer a.Unlock()
	a.PageFaults++
	if major {
		a.MajorFaults++
	} else {
		a.MinorFaults++
	}
}

// SwapIn records one page read back from swap or a backing file.
func (a *Accnt_t) SwapIn() {
	a.Lock()
	defer a.Unlock()
	a.SwapIns++
}

// SwapOut records one page written out to swap or a backing file.
func (a *Accnt_t) SwapOut() {
	a.Lock()
	defer a.Unlock()
	a.SwapOuts++
}

// Eviction records one frame-table eviction triggered while resolving a
// fault on behalf of this address space.
func (a *Accnt_t) Eviction() {
	a.Lock()
	defer a.Unlock()
	a.Evictions++
}

// Snapshot is a point-in-time, lock-free copy of the counters, safe to hand
// to stat/metrics formatting code.
type Snapshot struct {
	PageFaults  uint64
	MinorFaults uint64
	MajorFaults uint64
	SwapIns     uint64
	SwapOuts    uint64
	Evictions   uint64
}

// Snap takes a consistent snapshot of the current counters.
func (a *Accnt_t) Snap() Snapshot {
	a.Lock()
	defer a.Unlock()
	return Snapshot{
		PageFaults:  a.PageFaults,
		MinorFaults: a.MinorFaults,
		MajorFaults: a.MajorFaults,
		SwapIns:     a.SwapIns,
		SwapOuts:    a.SwapOuts,
		Evictions:   a.Evictions,
	}
}
