// Package mmio maps physical memory windows and performs single 32-bit
// accesses on them.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Window is a mapped region of a file, usually /dev/mem or a PCI resource.
type Window struct {
	mem  []byte
	base int64
}

// Map maps size bytes of f starting at offset. offset must be page aligned.
func Map(f *os.File, offset int64, size int) (*Window, error) {
	if offset%int64(os.Getpagesize()) != 0 {
		return nil, fmt.Errorf("mmio: offset 0x%x is not page aligned", offset)
	}
	mem, err := unix.Mmap(int(f.Fd()), offset, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: map 0x%x+0x%x from %s: %w", offset, size, f.Name(), err)
	}
	return &Window{mem: mem, base: offset}, nil
}

// Base returns the file offset the window starts at.
func (w *Window) Base() int64 { return w.base }

// Size returns the window length in bytes.
func (w *Window) Size() int { return len(w.mem) }

func (w *Window) word(off uint32) (*uint32, error) {
	if off&3 != 0 || int(off)+4 > len(w.mem) {
		return nil, fmt.Errorf("mmio: offset 0x%x outside window of 0x%x bytes", off, len(w.mem))
	}
	return (*uint32)(unsafe.Pointer(&w.mem[off])), nil
}

// Read32 loads the word at off in a single access.
func (w *Window) Read32(off uint32) (uint32, error) {
	p, err := w.word(off)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Write32 stores val at off in a single access.
func (w *Window) Write32(off, val uint32) error {
	p, err := w.word(off)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, val)
	return nil
}

// Unmap releases the mapping. The window must not be used afterwards.
func (w *Window) Unmap() error {
	if w.mem == nil {
		return nil
	}
	err := unix.Munmap(w.mem)
	w.mem = nil
	return err
}
