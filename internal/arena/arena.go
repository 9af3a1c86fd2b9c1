// Package arena backs an allocator region with real, writable memory.
//
// The allocators in this module only do address arithmetic; an Arena is what lets
// tests and the bench harness hand them an address range that actually exists and
// then touch the bytes behind every address they return.
package arena

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/joshuapare/allockit/mem"
)

var (
	// ErrOutOfRange indicates an address span that is not fully inside the arena.
	ErrOutOfRange = errors.New("arena: span outside mapping")

	// ErrClosed indicates use of an arena after Close.
	ErrClosed = errors.New("arena: closed")
)

// Arena is a contiguous mapping of anonymous memory.
type Arena struct {
	data  []byte
	base  mem.Addr
	unmap func([]byte) error
}

// New maps size bytes of zeroed, writable memory.
func New(size uint64) (*Arena, error) {
	if size == 0 {
		return nil, fmt.Errorf("arena: zero-sized mapping")
	}
	if size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("arena: mapping too large (%d bytes)", size)
	}
	data, unmap, err := mapAnon(int(size))
	if err != nil {
		return nil, fmt.Errorf("arena: map %d bytes: %w", size, err)
	}
	return &Arena{
		data:  data,
		base:  mem.Addr(uintptr(unsafe.Pointer(&data[0]))),
		unmap: unmap,
	}, nil
}

// Region returns the address range covered by the mapping.
func (a *Arena) Region() mem.Region {
	return mem.Region{Start: a.base, Size: uint64(len(a.data))}
}

// Bytes returns the bytes backing [addr, addr+n).
func (a *Arena) Bytes(addr mem.Addr, n uint64) ([]byte, error) {
	if a.data == nil {
		return nil, ErrClosed
	}
	if !a.Region().Contains(addr, n) {
		return nil, fmt.Errorf("%w: [%#x, +%#x) not in %s", ErrOutOfRange, uint64(addr), n, a.Region())
	}
	off := uint64(addr - a.base)
	return a.data[off : off+n : off+n], nil
}

// Close releases the mapping. Calling Close twice is a no-op.
func (a *Arena) Close() error {
	if a.data == nil {
		return nil
	}
	err := a.unmap(a.data)
	a.data = nil
	return err
}
