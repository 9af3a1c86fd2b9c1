package alloc

import "github.com/joshuapare/allockit/mem"

// BaseAllocator is implemented by every allocator.
type BaseAllocator interface {
	// Init establishes [start, start+size) as the managed region.
	// It must be called exactly once, before any allocation.
	Init(start mem.Addr, size uint64)
}

// GrowableAllocator is a BaseAllocator that accepts additional spans after Init.
type GrowableAllocator interface {
	BaseAllocator

	// AddMemory hands [start, start+size) to the allocator. The span must not
	// overlap memory the allocator already manages.
	AddMemory(start mem.Addr, size uint64) error
}

// ByteAllocator allocates arbitrary layouts.
//
// Every Dealloc must correspond to exactly one prior successful Alloc with an
// identical layout. Implementations trust this contract and do not validate it.
type ByteAllocator interface {
	BaseAllocator

	// Alloc returns a non-zero address aligned to l.Align and disjoint from every
	// live allocation, or ErrNoMemory.
	Alloc(l mem.Layout) (mem.Addr, error)

	// Dealloc releases an allocation made with the same layout.
	Dealloc(addr mem.Addr, l mem.Layout)

	TotalBytes() uint64
	UsedBytes() uint64
	AvailableBytes() uint64
}

// PageAllocator allocates page frames.
type PageAllocator interface {
	BaseAllocator

	// PageSize returns the size of one page in bytes. It is a power of two.
	PageSize() uint64

	// AllocPages returns the base address of count pages aligned to alignPow2, or ErrNoMemory.
	AllocPages(count int, alignPow2 uint64) (mem.Addr, error)

	// DeallocPages releases pages obtained from AllocPages.
	DeallocPages(base mem.Addr, count int)

	TotalPages() int
	UsedPages() int
	AvailablePages() int
}

// AddMemory grows a if it implements GrowableAllocator and returns ErrUnsupported otherwise.
func AddMemory(a BaseAllocator, start mem.Addr, size uint64) error {
	g, ok := a.(GrowableAllocator)
	if !ok {
		return ErrUnsupported
	}
	return g.AddMemory(start, size)
}
