package vm

import "vmcore/defs"

// uninitPayload carries a page's deferred identity: the kind it will
// become, the lazy loader that populates its content, and that loader's
// opaque argument (spec.md §3 "Uninit payload", C3).
type uninitPayload struct {
	targetKind Kind
	loader     LazyLoader
	aux        Aux
}

// uninitOps is the vtable for pages that have not yet been touched
// (spec.md C3). Its SwapIn is the one-shot transmutation site: the
// descriptor's Ops and payload are replaced in place and never revert
// (spec.md §3 invariant 6).
type uninitOps struct{}

func (uninitOps) Kind() Kind { return KindUninit }

func (uninitOps) SwapIn(p *Page) defs.Err_t {
	up := p.payload.(*uninitPayload)

	switch up.targetKind {
	case KindAnon:
		p.ops = anonOps{}
		p.payload = &anonPayload{slot: noSlot}
	case KindFile:
		fp, ok := up.aux.(*filePayload)
		if !ok {
			return defs.EINVAL
		}
		p.ops = fileOps{}
		p.payload = &filePayload{file: fp.file, offset: fp.offset, readBytes: fp.readBytes}
	default:
		return defs.EINVAL
	}

	if up.loader != nil {
		return up.loader(p, up.aux)
	}
	// No custom loader: let the newly-installed kind perform its own
	// default load (zero anon page already zeroed by the allocator; a
	// file-backed page reads itself in).
	return p.ops.SwapIn(p)
}

// SwapOut on an unreached uninit page never happens: it holds no frame
// (spec.md state machine, §3 "Lifecycle").
func (uninitOps) SwapOut(p *Page) defs.Err_t {
	panic("vm: swap_out called on uninit page")
}

// Destroy releases an unreached uninit descriptor. Per spec.md §4.3, the
// policy here is: the caller of AllocPageWithInitializer retains ownership
// of aux until the first successful load; teardown of an unreached uninit
// page therefore has nothing further to release beyond letting aux become
// garbage (Go's GC stands in for the explicit free the source performs) —
// except a file handle Mmap reopened for this page specifically, which
// has no other owner and must be closed explicitly.
func (uninitOps) Destroy(p *Page) {
	up, ok := p.payload.(*uninitPayload)
	if !ok {
		return
	}
	if fp, ok := up.aux.(*filePayload); ok {
		fp.file.Close()
	}
}
