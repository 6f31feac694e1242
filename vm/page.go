package vm

import (
	"vmcore/defs"
	"vmcore/frame"
)

// Kind identifies which of the three page flavors a descriptor currently
// is (spec.md §3 "current kind").
type Kind int

const (
	KindUninit Kind = iota /// transient: not yet decided
	KindAnon                /// zero-initialized private memory
	KindFile                /// window onto a file region
)

func (k Kind) String() string {
	switch k {
	case KindUninit:
		return "uninit"
	case KindAnon:
		return "anon"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Ops is the per-kind vtable (spec.md C9, "Page-operation dispatch"):
// swap_in, swap_out, destroy, and the kind tag. Exactly one Ops
// implementation backs a Page at any time; uninit's SwapIn is the
// transmutation site that replaces both Ops and payload.
type Ops interface {
	SwapIn(p *Page) defs.Err_t
	SwapOut(p *Page) defs.Err_t
	Destroy(p *Page)
	Kind() Kind
}

// Aux is the opaque, owner-carried argument passed to a lazy loader. Types
// used as Aux must support a deep Clone for fork-copy (spec.md §4.6,
// §9 "deep vs shallow copy of aux").
type Aux interface {
	Clone() Aux
}

// LazyLoader populates a freshly claimed, freshly transmuted page. It is
// supplied by the caller of AllocPageWithInitializer and is expected to
// take ownership of aux (spec.md §4.3).
type LazyLoader func(p *Page, aux Aux) defs.Err_t

// Page is one supplemental-page-table descriptor: one entry per mapped VA
// in an address space (spec.md §3 "Page descriptor").
type Page struct {
	VA       uintptr
	Writable bool
	Owner    *Space

	Frame *frame.Frame // nil when not resident
	Next  *Page        // forward link within an mmap run (spec.md C8)

	ops     Ops
	payload any
}

// Kind reports which page flavor this descriptor currently is.
func (p *Page) Kind() Kind { return p.ops.Kind() }

// PageKindString reports the same thing as a bare string, so packages that
// cannot import vm (profdump, to avoid a cycle through frame) can still
// label a frame by its owning page's kind via a narrow interface.
func (p *Page) PageKindString() string { return p.Kind().String() }

// requiresIO reports whether resolving this page's next claim will need a
// disk or file read, for accnt's major/minor fault classification. A file
// page always reads; an anon page only reads when it currently holds a
// swap slot (a freshly transmuted anon page's frame is already zeroed).
func (p *Page) requiresIO() bool {
	switch pl := p.payload.(type) {
	case *uninitPayload:
		return pl.targetKind == KindFile
	case *filePayload:
		return true
	case *anonPayload:
		return pl.slot != noSlot
	default:
		return false
	}
}

// FaultVA implements frame.Evictable.
func (p *Page) FaultVA() uintptr { return p.VA }

// Accessed implements frame.Evictable via the owning address space's MMU.
func (p *Page) Accessed() bool { return p.Owner.PT.IsAccessed(p.VA) }

// ClearAccessed implements frame.Evictable.
func (p *Page) ClearAccessed() { p.Owner.PT.SetAccessed(p.VA, false) }

// SwapOut implements frame.Evictable by delegating to the kind-specific
// vtable and adapting defs.Err_t to the plain error the frame package
// expects (defs.Err_t already satisfies the error interface).
func (p *Page) SwapOut() error {
	if e := p.ops.SwapOut(p); e != 0 {
		return e
	}
	p.Owner.Accnt.SwapOut()
	return nil
}

// swapIn delegates to the kind-specific vtable.
func (p *Page) swapIn() defs.Err_t {
	return p.ops.SwapIn(p)
}

// destroy delegates to the kind-specific vtable. It does not remove the
// page from any SPT; callers (SPT.Remove, SPT.Kill) do that.
func (p *Page) destroy() {
	p.ops.Destroy(p)
}

// mkUninit constructs a fresh transient descriptor (spec.md C3). kind is
// the target kind it will transmute into on first successful swap_in.
func mkUninit(owner *Space, va uintptr, writable bool, kind Kind, loader LazyLoader, aux Aux) *Page {
	p := &Page{
		VA:       va,
		Writable: writable,
		Owner:    owner,
	}
	p.ops = uninitOps{}
	p.payload = &uninitPayload{targetKind: kind, loader: loader, aux: aux}
	return p
}
