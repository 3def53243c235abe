//go:build unix

package backing

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mapped backs buffers with files on disk, one file per buffer. It is
// interchangeable with Heap wherever an Allocator is consumed; weight
// or activation memory can thereby live in reclaimable files instead
// of anonymous pages.
type Mapped struct {
	dir        string
	prefix     string
	kind       string // "static" or "weight"
	autoRemove bool
	maxSize    int // 0 = unbounded

	mu     sync.Mutex
	seq    int
	mapped int
	files  map[unsafe.Pointer]mappedFile
}

type mappedFile struct {
	path string
	size int
}

// NewMapped returns a file-backed allocator writing files named
// <prefix>.<kind>.<seq> under dir. With autoRemove the files are
// deleted as their buffers are released. maxSize caps the total
// mapped bytes; 0 means unbounded.
func NewMapped(dir, prefix, kind string, autoRemove bool, maxSize int) *Mapped {
	return &Mapped{
		dir:        dir,
		prefix:     prefix,
		kind:       kind,
		autoRemove: autoRemove,
		maxSize:    maxSize,
		files:      make(map[unsafe.Pointer]mappedFile),
	}
}

func (m *Mapped) Acquire(n int) (unsafe.Pointer, error) {
	if n <= 0 {
		return nil, ErrBadSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSize > 0 && m.mapped+n > m.maxSize {
		return nil, ErrMapFull
	}

	path := filepath.Join(m.dir, fmt.Sprintf("%s.%s.%d", m.prefix, m.kind, m.seq))
	m.seq++

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	defer f.Close() // mapping keeps pages alive

	if err := f.Truncate(int64(n)); err != nil {
		os.Remove(path)
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	p := unsafe.Pointer(unsafe.SliceData(data))
	m.files[p] = mappedFile{path: path, size: n}
	m.mapped += n
	return p, nil
}

func (m *Mapped) Release(p unsafe.Pointer, n int) error {
	if p == nil || n <= 0 {
		return ErrBadSize
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mf, ok := m.files[p]
	if !ok {
		return ErrUnknownBuffer
	}
	delete(m.files, p)
	m.mapped -= mf.size

	if err := unix.Munmap(unsafe.Slice((*byte)(p), mf.size)); err != nil {
		return err
	}
	if m.autoRemove {
		return os.Remove(mf.path)
	}
	return nil
}
