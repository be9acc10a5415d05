// Package mmio exposes the SoC register file as a csr.Bus through a
// memory-mapped window, for hosts where the CSR bus is visible in physical
// memory (/dev/mem or a UIO device) instead of behind a network bridge.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/soclab/membist/csr"
)

// DefaultDevMem is the usual Linux physical-memory device.
const DefaultDevMem = "/dev/mem"

// Window is a mapped view of the register file. Addresses passed to Read32
// and Write32 are absolute SoC addresses; the window translates them into
// offsets. Accesses are single aligned 32-bit loads and stores, as the CSR
// bus requires. Window implements csr.Bus.
type Window struct {
	base uint32
	mem  []byte
	file *os.File
}

var _ csr.Bus = (*Window)(nil)

// Open maps size bytes of the device at path starting at the physical
// address base. base must be page aligned.
func Open(path string, base uint32, size uint32) (*Window, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), int64(base), int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmio: map %#x+%#x of %s: %w",
			base, size, path, err)
	}

	return &Window{base: base, mem: mem, file: f}, nil
}

// OpenSlice builds a window over plain memory. It gives tests and
// emulations the same access and bounds behavior as a hardware mapping.
func OpenSlice(buf []byte, base uint32) *Window {
	return &Window{base: base, mem: buf}
}

// Read32 performs one aligned 32-bit load.
func (w *Window) Read32(addr uint32) (uint32, error) {
	off, err := w.offset(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&w.mem[off]))), nil
}

// Write32 performs one aligned 32-bit store.
func (w *Window) Write32(addr uint32, value uint32) error {
	off, err := w.offset(addr)
	if err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&w.mem[off])), value)
	return nil
}

func (w *Window) offset(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, fmt.Errorf("mmio: unaligned access at %#08x", addr)
	}
	if addr < w.base ||
		uint64(addr)+4 > uint64(w.base)+uint64(len(w.mem)) {
		return 0, fmt.Errorf("mmio: %#08x outside window %#08x+%#x",
			addr, w.base, len(w.mem))
	}
	return addr - w.base, nil
}

// Close unmaps the window. Slice-backed windows have nothing to release.
func (w *Window) Close() error {
	if w.file == nil {
		return nil
	}

	err := unix.Munmap(w.mem)
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.mem = nil
	w.file = nil
	return err
}
