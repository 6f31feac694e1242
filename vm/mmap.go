package vm

import (
	"vmcore/defs"
	"vmcore/util"
	"vmcore/vfile"
)

// mappedNotifier is the optional capability a vfile.File may implement to
// learn the byte range a live mapping reads from it (vfile.HostFile uses
// this to drive its truncation watch); vfile.MemFile does not implement it.
type mappedNotifier interface {
	NoteMapped(offset int64, length int)
}

// Mmap installs length bytes of f (starting at offset) as a forward-linked
// run of uninit file-backed descriptors starting at va (spec.md §4.8 C8).
// va must be page-aligned and length positive; length need not be a
// multiple of PGSIZE. Each page reads min(remaining length, PGSIZE) bytes
// and the final page's tail past length is zero-filled. length is not
// clipped to the file's size: a page whose range runs past the end of the
// file short-reads on its first fault, which panics (fileOps.SwapIn).
// Mmap reopens f once per page so
// each descriptor owns an independent handle (spec.md §4.8 step 1); it
// rejects the whole range up front if any page within it already has a
// descriptor (spec.md §3 invariant 1).
func (s *Space) Mmap(va uintptr, f vfile.File, offset int64, length int, writable bool) (*Page, defs.Err_t) {
	if va%PGSIZE != 0 || length <= 0 {
		panic("vm: mmap va must be page-aligned and length positive")
	}

	s.lock()
	defer s.unlock()

	npages := (length + PGSIZE - 1) / PGSIZE
	for i := 0; i < npages; i++ {
		if _, ok := s.SPT.Find(va + uintptr(i)*PGSIZE); ok {
			return nil, defs.EINVAL
		}
	}

	var head, tail *Page
	remaining := length
	for i := 0; i < npages; i++ {
		reopened, err := f.Reopen()
		if err != nil {
			s.unmapRange(head)
			return nil, defs.ENOMEM
		}

		readBytes := util.Min(remaining, PGSIZE)
		remaining -= readBytes

		pageOffset := offset + int64(i)*PGSIZE
		if mr, ok := reopened.(mappedNotifier); ok {
			mr.NoteMapped(pageOffset, readBytes)
		}

		pageVA := va + uintptr(i)*PGSIZE
		fp := &filePayload{file: reopened, offset: pageOffset, readBytes: readBytes}
		p := mkUninit(s, pageVA, writable, KindFile, nil, fp)

		if !s.SPT.Insert(p) {
			reopened.Close()
			s.unmapRange(head)
			return nil, defs.EINVAL
		}

		if head == nil {
			head = p
		} else {
			tail.Next = p
		}
		tail = p
	}

	return head, 0
}

// unmapRange removes every descriptor in a partially built mmap run,
// starting at head; used to unwind a failed Mmap call. SPT.Remove runs each
// descriptor's Destroy hook, which closes the file handle Mmap reopened for
// it even though the page was never touched.
func (s *Space) unmapRange(head *Page) {
	for p := head; p != nil; {
		next := p.Next
		s.SPT.Remove(p)
		p = next
	}
}

// Munmap tears down the mmap run starting at head, writing back any dirty
// file-backed pages (spec.md §4.8 C8). The walk is iterative and
// tail-first — pintos's do_munmap recurses on next_page before handling the
// head; this flattens that recursion into a loop (SPEC_FULL.md §5) to avoid
// unbounded stack depth on a large mapping, while preserving the same
// per-page teardown order.
func (s *Space) Munmap(head *Page) {
	s.lock()
	defer s.unlock()

	var pages []*Page
	for p := head; p != nil; p = p.Next {
		pages = append(pages, p)
	}
	for i := len(pages) - 1; i >= 0; i-- {
		s.SPT.Remove(pages[i])
	}
}
