// Package stat formats a human-readable snapshot of virtual-memory core
// state (frame-table occupancy, swap utilization, per-space fault/swap
// counters). Grounded on biscuit/src/stat/stat.go and biscuit/src/stats/
// stats.go's plain-struct snapshot-and-format pattern.
package stat

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"vmcore/accnt"
)

// Snapshot is the full, formattable view of one kernel's VM state at one
// instant (spec.md §6 "vm debug dump", generalized from biscuit's per-
// device /proc-style stat files).
type Snapshot struct {
	ResidentFrames int
	TotalFrames    int
	SwapUsed       int
	SwapTotal      int
	Accnt          accnt.Snapshot
}

// String renders s for a console or log line, using golang.org/x/text/message
// for locale-aware integer grouping — the same formatting library choice
// biscuit's pack sibling wires in for its own stat output (SPEC_FULL.md
// domain stack).
func (s Snapshot) String() string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	frPct := percent(s.ResidentFrames, s.TotalFrames)
	swPct := percent(s.SwapUsed, s.SwapTotal)

	p.Fprintf(&b, "frames: %d/%d resident (%d%%)\n", s.ResidentFrames, s.TotalFrames, frPct)
	p.Fprintf(&b, "swap:   %d/%d slots used (%d%%)\n", s.SwapUsed, s.SwapTotal, swPct)
	p.Fprintf(&b, "faults: %d total (%d minor, %d major)\n",
		s.Accnt.PageFaults, s.Accnt.MinorFaults, s.Accnt.MajorFaults)
	p.Fprintf(&b, "swap io: %d in, %d out\n", s.Accnt.SwapIns, s.Accnt.SwapOuts)
	p.Fprintf(&b, "evictions: %d\n", s.Accnt.Evictions)

	return b.String()
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return n * 100 / total
}
