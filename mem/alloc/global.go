package alloc

import (
	"sync"

	"github.com/joshuapare/allockit/mem"
)

// Phase is the lifecycle state of a Global handle.
type Phase uint8

const (
	// PhaseConstructed is the state before Init.
	PhaseConstructed Phase = iota
	// PhaseReady is the state after the single successful Init.
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseConstructed:
		return "constructed"
	case PhaseReady:
		return "ready"
	}
	return "unknown"
}

// Global is the kernel's handle to its active allocator.
//
// One mutex covers every call, so the wrapped allocator sees strictly serialized
// Init/Alloc/Dealloc/stat traffic. Global also enforces that Init happens exactly
// once and before any allocation.
type Global struct {
	mu    sync.Mutex
	phase Phase

	base  BaseAllocator
	bytes ByteAllocator // nil if the allocator cannot serve bytes
	pages PageAllocator // nil if the allocator cannot serve pages
}

// NewGlobal wraps a. The byte and page capabilities are discovered from a's type.
func NewGlobal(a BaseAllocator) *Global {
	g := &Global{base: a}
	g.bytes, _ = a.(ByteAllocator)
	g.pages, _ = a.(PageAllocator)
	return g
}

// Phase returns the current lifecycle state.
func (g *Global) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Init initializes the wrapped allocator over [start, start+size).
// A second call returns ErrAlreadyInitialized and leaves the allocator untouched.
func (g *Global) Init(start mem.Addr, size uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseConstructed {
		return ErrAlreadyInitialized
	}
	g.base.Init(start, size)
	g.phase = PhaseReady
	return nil
}

// AddMemory forwards to the wrapped allocator if it can grow.
func (g *Global) AddMemory(start mem.Addr, size uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase != PhaseReady {
		return ErrNotInitialized
	}
	return AddMemory(g.base, start, size)
}

// Alloc allocates l from the wrapped byte allocator.
func (g *Global) Alloc(l mem.Layout) (mem.Addr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bytes == nil {
		return 0, ErrUnsupported
	}
	if g.phase != PhaseReady {
		return 0, ErrNotInitialized
	}
	return g.bytes.Alloc(l)
}

// Dealloc releases addr. Calls before Init or on allocators without byte support are ignored.
func (g *Global) Dealloc(addr mem.Addr, l mem.Layout) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bytes == nil || g.phase != PhaseReady {
		return
	}
	g.bytes.Dealloc(addr, l)
}

// AllocPages allocates count pages from the wrapped page allocator.
func (g *Global) AllocPages(count int, alignPow2 uint64) (mem.Addr, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pages == nil {
		return 0, ErrUnsupported
	}
	if g.phase != PhaseReady {
		return 0, ErrNotInitialized
	}
	return g.pages.AllocPages(count, alignPow2)
}

// DeallocPages releases pages. Calls before Init or on allocators without page support are ignored.
func (g *Global) DeallocPages(base mem.Addr, count int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pages == nil || g.phase != PhaseReady {
		return
	}
	g.pages.DeallocPages(base, count)
}

// ByteStats is a consistent snapshot of the byte counters.
type ByteStats struct {
	Total     uint64
	Used      uint64
	Available uint64
}

// PageStats is a consistent snapshot of the page counters.
type PageStats struct {
	PageSize  uint64
	Total     int
	Used      int
	Available int
}

// ByteStats reads the three byte counters under one lock acquisition.
func (g *Global) ByteStats() (ByteStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bytes == nil {
		return ByteStats{}, ErrUnsupported
	}
	if g.phase != PhaseReady {
		return ByteStats{}, ErrNotInitialized
	}
	return ByteStats{
		Total:     g.bytes.TotalBytes(),
		Used:      g.bytes.UsedBytes(),
		Available: g.bytes.AvailableBytes(),
	}, nil
}

// PageStats reads the page counters under one lock acquisition.
func (g *Global) PageStats() (PageStats, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pages == nil {
		return PageStats{}, ErrUnsupported
	}
	if g.phase != PhaseReady {
		return PageStats{}, ErrNotInitialized
	}
	return PageStats{
		PageSize:  g.pages.PageSize(),
		Total:     g.pages.TotalPages(),
		Used:      g.pages.UsedPages(),
		Available: g.pages.AvailablePages(),
	}, nil
}
