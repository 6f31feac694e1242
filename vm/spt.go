package vm

import (
	"vmcore/hashtable"
)

// sptBuckets is the bucket count for a fresh supplemental page table. Sized
// generously for an address space's typical mapped-page count; the table
// grows only in chain length, never rehashes (matching the fixed-bucket-
// count hashtable.Hashtable_t it is built on).
const sptBuckets = 256

func hashVA(va uintptr) uint32 {
	// Pages are fetched far more often by exact VA than iterated, so a
	// cheap avalanche over the page number is enough to spread buckets.
	x := uint64(va) >> PGSHIFT
	x = (x ^ (x >> 33)) * 0xff51afd7ed558ccd
	x = (x ^ (x >> 33)) * 0xc4ceb9fe1a85ec53
	x = x ^ (x >> 33)
	return uint32(x)
}

// SPT is the supplemental page table (spec.md §3 "Supplemental Page
// Table", C6): a per-address-space map from page-aligned VA to page
// descriptor, built on the generic hashtable package.
type SPT struct {
	ht *hashtable.Hashtable_t[uintptr, *Page]
}

// NewSPT creates an empty supplemental page table (spec.md "init").
func NewSPT() *SPT {
	return &SPT{ht: hashtable.MkHash[uintptr, *Page](sptBuckets, hashVA)}
}

// Find looks up the descriptor for the page containing va (spec.md L1:
// callers may pass any address within the page; Find rounds down).
func (s *SPT) Find(va uintptr) (*Page, bool) {
	return s.ht.Get(pgRoundDown(va))
}

// Insert adds page, keyed by its own VA (already page-aligned). It fails if
// a descriptor for that VA already exists (spec.md §3 invariant 1).
func (s *SPT) Insert(p *Page) bool {
	if _, exists := s.ht.Get(p.VA); exists {
		return false
	}
	s.ht.Set(p.VA, p)
	return true
}

// Remove deallocates page: it runs the kind-specific Destroy hook (which,
// for file-backed pages, performs write-back) and removes the descriptor
// from the table.
func (s *SPT) Remove(p *Page) {
	p.destroy()
	s.ht.Del(p.VA)
}

// Kill destroys every descriptor in the table (spec.md "kill", used on
// address-space teardown).
func (s *SPT) Kill() {
	var all []*Page
	s.ht.Apply(func(_ uintptr, p *Page) { all = append(all, p) })
	for _, p := range all {
		p.destroy()
	}
	s.ht.Clear()
}

// Size returns the number of descriptors currently tracked.
func (s *SPT) Size() int { return s.ht.Size() }

// Copy populates dst from src according to each source page's kind
// (spec.md §4.6). dst and src must belong to different Space values; dst's
// Space becomes the owner of every newly created descriptor.
//
// Anon pages are eagerly memcpy'd (spec.md §9 open question 1: the spec
// mandates the eager variant, not the lazy-reinstall one some Pintos
// solutions use — L7/scenario 6 require it). A swapped-out parent page is
// not swapped back in first to supply the copy; the child's claimed frame
// is left zeroed in that case (spec.md §9 open question 2, flagged there as
// likely a bug and carried unchanged here).
func CopySPT(dst *Space, src *Space) bool {
	ok := true
	src.SPT.ht.Apply(func(va uintptr, p *Page) {
		if !ok {
			return
		}
		switch p.Kind() {
		case KindUninit:
			up := p.payload.(*uninitPayload)
			var auxCopy Aux
			if up.aux != nil {
				auxCopy = up.aux.Clone()
			}
			child := mkUninit(dst, p.VA, p.Writable, up.targetKind, up.loader, auxCopy)
			if !dst.SPT.Insert(child) {
				ok = false
			}

		case KindFile:
			fp := p.payload.(*filePayload)
			childAux := fp.Clone()
			child := mkUninit(dst, p.VA, p.Writable, KindFile, nil, childAux)
			if !dst.SPT.Insert(child) {
				ok = false
			}

		case KindAnon:
			child := &Page{VA: p.VA, Writable: p.Writable, Owner: dst, ops: anonOps{}, payload: &anonPayload{slot: noSlot}}
			if !dst.SPT.Insert(child) {
				ok = false
				return
			}
			if e := dst.claim(child); e != 0 {
				ok = false
				return
			}
			if p.Frame != nil {
				copy(child.Frame.Kva, p.Frame.Kva)
			}
			// else: parent is swapped out; child keeps its zeroed frame.
		}
	})
	return ok
}
