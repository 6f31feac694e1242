package vm

import (
	"github.com/pkg/errors"

	"vmcore/defs"
	"vmcore/vfile"
)

// filePayload is a window onto a file region: handle, offset, and the byte
// count to read (0..PGSIZE); the tail is zero-filled (spec.md §3 "File
// payload", C5).
type filePayload struct {
	file      vfile.File
	offset    int64
	readBytes int
}

// Clone deep-copies the payload struct while sharing the underlying file
// handle (spec.md §4.6, §9: "the file handle is shared (shallow copy); the
// filesystem manages its lifetime").
func (f *filePayload) Clone() Aux {
	return &filePayload{file: f.file, offset: f.offset, readBytes: f.readBytes}
}

type fileOps struct{}

func (fileOps) Kind() Kind { return KindFile }

// SwapIn reads ReadBytes bytes from (file, offset) into the frame and
// zero-fills the remainder of the page (spec.md §4.5). A short read means
// the backing file shrank after the mapping was installed; spec.md §7
// treats that as a logic error the core cannot recover from.
func (fileOps) SwapIn(p *Page) defs.Err_t {
	fp := p.payload.(*filePayload)

	vfile.Lock.Lock()
	n, err := fp.file.ReadAt(p.Frame.Kva[:fp.readBytes], fp.offset)
	vfile.Lock.Unlock()
	if err != nil && n != fp.readBytes {
		panic(errors.Wrapf(err, "vm: file swap_in va %#x short read: got %d want %d", p.VA, n, fp.readBytes))
	}
	if n != fp.readBytes {
		panic(errors.Errorf("vm: file swap_in va %#x short read: got %d want %d", p.VA, n, fp.readBytes))
	}
	for i := fp.readBytes; i < PGSIZE; i++ {
		p.Frame.Kva[i] = 0
	}
	return 0
}

// SwapOut writes the frame back to the file only if the MMU dirty bit is
// set; a clean page is simply dropped (spec.md §3 invariant 5, §4.5). The
// dirty bit itself is left untouched — the PTE is about to be removed
// regardless.
func (fileOps) SwapOut(p *Page) defs.Err_t {
	fp := p.payload.(*filePayload)
	if p.Owner.PT.IsDirty(p.VA) {
		if err := writeBack(fp, p); err != 0 {
			return err
		}
	}
	p.Owner.PT.ClearPTE(p.VA)
	p.Frame.ClearOwner()
	p.Frame = nil
	return 0
}

// Destroy performs write-back independently of whether SwapOut already ran
// (spec.md §4.5/§9 open question 4: munmap must be correct regardless of
// call order), releases the frame, and closes the handle this descriptor's
// Mmap call reopened (spec.md §4.8 step 1: each descriptor owns an
// independent handle, so closing it here affects no other mapping).
func (fileOps) Destroy(p *Page) {
	fp := p.payload.(*filePayload)
	defer fp.file.Close()

	if p.Frame == nil {
		return
	}
	if p.Owner.PT.IsDirty(p.VA) {
		if err := writeBack(fp, p); err != 0 {
			panic(err)
		}
	}
	p.Owner.PT.ClearPTE(p.VA)
	p.Owner.Kernel.Frames.Release(p.Frame)
	p.Frame.ClearOwner()
	p.Frame = nil
}

func writeBack(fp *filePayload, p *Page) defs.Err_t {
	vfile.Lock.Lock()
	n, err := fp.file.WriteAt(p.Frame.Kva[:fp.readBytes], fp.offset)
	vfile.Lock.Unlock()
	if err != nil {
		panic(errors.Wrapf(err, "vm: file swap_out/destroy va %#x write-back", p.VA))
	}
	if n != fp.readBytes {
		panic(errors.Errorf("vm: file swap_out/destroy va %#x short write: wrote %d want %d", p.VA, n, fp.readBytes))
	}
	return 0
}
