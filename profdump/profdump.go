// Package profdump renders the frame table's current occupancy as a
// pprof-format heap profile, giving defs.D_PROF a concrete producer
// (spec.md §6 device table). Grounded on the teacher's own dependency on
// github.com/google/pprof (present in biscuit's go.mod with no home among
// the retrieved files) — the natural consumer for a physical-memory
// occupancy snapshot.
package profdump

import (
	"io"

	"github.com/google/pprof/profile"

	"vmcore/frame"
)

// kindLabeled is the narrow interface a frame's owning page may implement
// to report its kind as a string; frame.Evictable itself carries no such
// method, since frame cannot import vm without creating a cycle.
type kindLabeled interface {
	PageKindString() string
}

// Dump builds a pprof profile from t with one sample per frame label: the
// owning page's kind ("anon", "file", "uninit"), "owned" for an owner that
// does not report a kind, or "unowned" for an empty frame. Each sample has
// one pseudo call stack and two values, the number of frames with that
// label ("frames"/"count") and that number times pgsize ("bytes"/"bytes").
// It is meant to be written with profile.Write or served directly over
// defs.D_PROF.
func Dump(t *frame.Table, pgsize int64) *profile.Profile {
	counts := map[string]int64{}
	t.ForEach(func(f *frame.Frame) {
		label := "unowned"
		if owner := f.Page(); owner != nil {
			if kl, ok := owner.(kindLabeled); ok {
				label = kl.PageKindString()
			} else {
				label = "owned"
			}
		}
		counts[label]++
	})

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}, {Type: "bytes", Unit: "bytes"}},
		PeriodType: &profile.ValueType{Type: "space", Unit: "bytes"},
		Period:     pgsize,
	}

	funcID := uint64(1)
	locID := uint64(1)
	for kind, n := range counts {
		fn := &profile.Function{ID: funcID, Name: "vmcore/frame.kind." + kind}
		loc := &profile.Location{ID: locID, Line: []profile.Line{{Function: fn}}}
		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{n, n * pgsize},
		})
		funcID++
		locID++
	}

	return prof
}

// Write dumps t's profile to w in the standard pprof wire format.
func Write(w io.Writer, t *frame.Table, pgsize int64) error {
	return Dump(t, pgsize).Write(w)
}
