// Package vfile describes the filesystem collaborator contract the
// file-backed page kind reads and writes through (spec.md §6: file_reopen,
// file_read_at, file_write_at, the global file_lock), plus a host-file
// implementation. Grounded on biscuit/src/fs/super.go and blk.go's
// separation between a block/file layer and its mutex.
package vfile

import (
	"log"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// File is the filesystem collaborator contract a file-backed page uses.
// ReadAt/WriteAt report the number of bytes actually transferred, exactly
// like pintos's file_read_at/file_write_at.
type File interface {
	// Reopen returns an independent handle to the same underlying file,
	// for do_mmap's file_reopen call (spec.md §4.8 step 1): munmap closing
	// its handle must not affect other descriptors.
	Reopen() (File, error)
	ReadAt(buf []byte, offset int64) (int, error)
	WriteAt(buf []byte, offset int64) (int, error)
	Close() error
}

// Lock is the single global filesystem mutex every file read/write
// acquires for its duration (spec.md §4.5 "File access", §5 file_lock).
var Lock sync.Mutex

// hostFileState is shared by a HostFile and every handle produced by its
// Reopen, the same way MemFile shares its backing slice across reopens:
// each mmap'd page reopens an independent *HostFile, but they all read the
// same underlying inode, so the truncation watch needs their combined
// high-water mark, not just the originally opened handle's.
type hostFileState struct {
	mu      sync.Mutex
	minSize int64 // largest offset+length any mapping has covered; never lowered
}

// HostFile implements File over a regular *os.File, with an fsnotify watch
// on its path so an external truncation is logged before the short-read
// panic a subsequent swap_in would hit (spec.md §9 open question 3).
type HostFile struct {
	path    string
	f       *os.File
	watcher *fsnotify.Watcher
	state   *hostFileState
}

// OpenHostFile opens path for reading and writing and begins watching it.
func OpenHostFile(path string) (*HostFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: open %s", path)
	}
	hf := &HostFile{path: path, f: f, state: &hostFileState{}}
	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(path); err == nil {
			hf.watcher = w
			go hf.watchLoop()
		} else {
			w.Close()
		}
	}
	return hf, nil
}

func (h *HostFile) watchLoop() {
	for ev := range h.watcher.Events {
		if ev.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
			if fi, err := os.Stat(h.path); err == nil {
				if fi.Size() < h.expectedMinSize() {
					log.Printf("vfile: %s shrank to %d bytes; mapped pages may now short-read", h.path, fi.Size())
				}
			}
		}
	}
}

// NoteMapped records that a live mapping reads through offset+length bytes
// of this file (spec.md §4.8's do_mmap), so the truncation watch knows how
// large the file must stay to satisfy every page currently mapped from it.
func (h *HostFile) NoteMapped(offset int64, length int) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if need := offset + int64(length); need > h.state.minSize {
		h.state.minSize = need
	}
}

// expectedMinSize reports the largest offset+length passed to NoteMapped
// for this file; the mark is not lowered when a mapping is removed.
func (h *HostFile) expectedMinSize() int64 {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return h.state.minSize
}

func (h *HostFile) Reopen() (File, error) {
	f, err := os.OpenFile(h.path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "vfile: reopen %s", h.path)
	}
	return &HostFile{path: h.path, f: f, state: h.state}, nil
}

func (h *HostFile) ReadAt(buf []byte, offset int64) (int, error) {
	n, err := h.f.ReadAt(buf, offset)
	if err != nil && n == 0 {
		return 0, err
	}
	return n, nil
}

func (h *HostFile) WriteAt(buf []byte, offset int64) (int, error) {
	return h.f.WriteAt(buf, offset)
}

func (h *HostFile) Close() error {
	if h.watcher != nil {
		h.watcher.Close()
	}
	return h.f.Close()
}

// MemFile is an in-memory File used by tests; Reopen shares the backing
// byte slice the way biscuit's filesystem shares an inode across reopens.
type MemFile struct {
	data *[]byte
}

// NewMemFile creates a MemFile with the given initial contents.
func NewMemFile(initial []byte) *MemFile {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	return &MemFile{data: &buf}
}

func (m *MemFile) Reopen() (File, error) { return &MemFile{data: m.data}, nil }

func (m *MemFile) ReadAt(buf []byte, offset int64) (int, error) {
	d := *m.data
	if offset < 0 || offset > int64(len(d)) {
		return 0, errors.New("vfile: offset out of range")
	}
	n := copy(buf, d[offset:])
	return n, nil
}

func (m *MemFile) WriteAt(buf []byte, offset int64) (int, error) {
	d := *m.data
	need := offset + int64(len(buf))
	if need > int64(len(d)) {
		grown := make([]byte, need)
		copy(grown, d)
		d = grown
		*m.data = d
	}
	n := copy(d[offset:], buf)
	return n, nil
}

func (m *MemFile) Close() error { return nil }
