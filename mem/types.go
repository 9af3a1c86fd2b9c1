package mem

import (
	"errors"
	"fmt"

	"github.com/joshuapare/allockit/internal/align"
)

// ErrBadLayout indicates a size/alignment pair that cannot describe a request.
var ErrBadLayout = errors.New("mem: alignment must be a non-zero power of two")

// Addr is an address in the managed address space.
type Addr uint64

// String formats the address in hex.
func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// Page sizes used by the early allocator and the kernel page tables.
const (
	PageSize4K uint64 = 4 << 10
	PageSize2M uint64 = 2 << 20
)

// Layout is the size and alignment of one allocation.
type Layout struct {
	Size  uint64
	Align uint64
}

// NewLayout validates and returns a layout.
func NewLayout(size, alignment uint64) (Layout, error) {
	if !align.IsPow2(alignment) {
		return Layout{}, fmt.Errorf("%w: align=%d", ErrBadLayout, alignment)
	}
	if _, ok := align.UpChecked(size, alignment); !ok {
		return Layout{}, fmt.Errorf("%w: size %d overflows when aligned to %d", ErrBadLayout, size, alignment)
	}
	return Layout{Size: size, Align: alignment}, nil
}

// MustLayout is NewLayout for constant arguments. It panics on an invalid layout.
func MustLayout(size, alignment uint64) Layout {
	l, err := NewLayout(size, alignment)
	if err != nil {
		panic(err)
	}
	return l
}

// String formats the layout the way the allocator logs print it.
func (l Layout) String() string {
	return fmt.Sprintf("Layout{size: %d, align: %d}", l.Size, l.Align)
}

// Region is the half-open range [Start, Start+Size).
type Region struct {
	Start Addr
	Size  uint64
}

// End returns the first address past the region.
func (r Region) End() Addr {
	return r.Start + Addr(r.Size)
}

// Contains reports whether [addr, addr+n) lies inside the region.
func (r Region) Contains(addr Addr, n uint64) bool {
	if addr < r.Start || addr > r.End() {
		return false
	}
	return n <= uint64(r.End()-addr)
}

// Overlaps reports whether the two regions share at least one address.
func (r Region) Overlaps(o Region) bool {
	if r.Size == 0 || o.Size == 0 {
		return false
	}
	return r.Start < o.End() && o.Start < r.End()
}

// String formats the region as a half-open interval.
func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", uint64(r.Start), uint64(r.End()))
}
