// Package early provides the allocator the kernel uses before its permanent heap exists.
//
// EarlyAllocator manages one region as a double-ended range:
//
//	[ bytes-used | avail-area | pages-used ]
//	|            | -->    <-- |            |
//	start       bPos        pPos         end
//
// Byte allocations bump bPos forward and are reclaimed in bulk: only a counter of
// outstanding allocations is kept, and when it drops to zero the whole byte area is
// released at once. Page allocations carve blocks off the top by moving pPos
// backward; those pages are never returned to the region.
package early

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/allockit/internal/align"
	"github.com/joshuapare/allockit/internal/logger"
	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/alloc"
)

// Allocator is the early-boot byte and page allocator.
//
// It holds no dynamic structures and every operation is O(1). It is not safe for
// concurrent use. The zero value uses 4K pages.
type Allocator struct {
	log      *slog.Logger
	pageSize uint64

	start mem.Addr
	size  uint64

	// bPos is the next free byte; it only moves forward, except for the bulk reset.
	bPos mem.Addr
	// pPos is the bottom of the page area; it only moves backward.
	pPos mem.Addr

	// byteCount is the number of outstanding byte allocations.
	byteCount int

	// pageNext is the next page to hand out from the reserved block, and
	// pageRemaining how many pages of that block are still unclaimed.
	pageNext      mem.Addr
	pageRemaining int

	// pagesOut is the number of pages handed out and not yet released.
	pagesOut int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the diagnostic sink. Defaults to logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		a.log = l
	}
}

// New returns an allocator with the given page size. It panics if pageSize is not
// a power of two.
func New(pageSize uint64, opts ...Option) *Allocator {
	if !align.IsPow2(pageSize) {
		panic(fmt.Sprintf("early: page size %d is not a power of two", pageSize))
	}
	a := &Allocator{pageSize: pageSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init takes ownership of [start, start+size).
func (a *Allocator) Init(start mem.Addr, size uint64) {
	logger.Or(a.log).Info("initializing early allocator",
		"start", start, "size", fmt.Sprintf("%#x", size), "page_size", a.PageSize())
	a.start = start
	a.size = size
	a.bPos = start
	a.pPos = start + mem.Addr(size)
	a.byteCount = 0
	a.pageNext = 0
	a.pageRemaining = 0
	a.pagesOut = 0
}

// Alloc bumps bPos past an l-shaped block.
func (a *Allocator) Alloc(l mem.Layout) (mem.Addr, error) {
	logger.Or(a.log).Debug("early alloc", "layout", l)

	start, ok := align.UpChecked(uint64(a.bPos), l.Align)
	if !ok || start > uint64(a.pPos) || l.Size > uint64(a.pPos)-start {
		return 0, alloc.ErrNoMemory
	}
	a.bPos = mem.Addr(start + l.Size)
	a.byteCount++
	return mem.Addr(start), nil
}

// Dealloc drops one outstanding byte allocation. When none remain the whole byte
// area is reclaimed. The address and layout are not consulted: callers must free
// every byte allocation before the area is needed again.
func (a *Allocator) Dealloc(addr mem.Addr, l mem.Layout) {
	logger.Or(a.log).Debug("early dealloc", "addr", addr, "layout", l)

	if a.byteCount == 0 {
		return
	}
	a.byteCount--
	if a.byteCount == 0 {
		a.bPos = a.start
	}
}

// TotalBytes reports the gap between the byte and page areas.
func (a *Allocator) TotalBytes() uint64 { return uint64(a.pPos - a.bPos) }

// UsedBytes reports the same gap as TotalBytes; the allocator cannot tell used
// bytes from free-but-uncommitted ones.
func (a *Allocator) UsedBytes() uint64 { return uint64(a.pPos - a.bPos) }

// AvailableBytes reports the gap between the byte and page areas.
func (a *Allocator) AvailableBytes() uint64 { return uint64(a.pPos - a.bPos) }

// PageSize returns the page size given to New.
func (a *Allocator) PageSize() uint64 {
	if a.pageSize == 0 {
		return mem.PageSize4K
	}
	return a.pageSize
}

// AllocPages hands out one page.
//
// When the current block has no pages left, the call first reserves a new block
// of count pages by moving pPos backward (aligned down to alignPow2, at least one
// page). Every call, the reserving one included, then hands out the lowest
// unclaimed page of the block. A call whose alignment the next unclaimed page
// does not meet abandons the rest of the block and reserves a new one.
func (a *Allocator) AllocPages(count int, alignPow2 uint64) (mem.Addr, error) {
	logger.Or(a.log).Debug("early alloc pages", "count", count, "align", alignPow2)

	al := max(alignPow2, a.PageSize())
	if a.pageRemaining > 0 && !align.IsAligned(uint64(a.pageNext), al) {
		logger.Or(a.log).Debug("early page block misaligned, reserving again",
			"next", a.pageNext, "align", al, "abandoned", a.pageRemaining)
		a.pageRemaining = 0
	}

	if a.pageRemaining == 0 {
		if count < 1 {
			return 0, alloc.ErrNoMemory
		}
		base, ok := a.reserve(uint64(count), al)
		if !ok {
			return 0, alloc.ErrNoMemory
		}
		a.pPos = base
		a.pageNext = base
		a.pageRemaining = count
	}

	page := a.pageNext
	a.pageNext += mem.Addr(a.PageSize())
	a.pageRemaining--
	a.pagesOut++
	return page, nil
}

// reserve returns the base of a count-page block directly below pPos.
func (a *Allocator) reserve(count, al uint64) (mem.Addr, bool) {
	ps := a.PageSize()
	if count > uint64(a.pPos)/ps {
		return 0, false
	}
	base := align.Down(uint64(a.pPos)-count*ps, al)
	if base < uint64(a.bPos) {
		return 0, false
	}
	return mem.Addr(base), true
}

// DeallocPages records the release of count pages. Early pages are never returned
// to the region, so pPos does not move.
func (a *Allocator) DeallocPages(base mem.Addr, count int) {
	logger.Or(a.log).Debug("early dealloc pages", "base", base, "count", count)
	a.pagesOut = max(a.pagesOut-count, 0)
}

// TotalPages reports the gap between the byte and page areas in whole pages.
func (a *Allocator) TotalPages() int { return int(a.TotalBytes() / a.PageSize()) }

// UsedPages reports the same span as TotalPages.
func (a *Allocator) UsedPages() int { return int(a.UsedBytes() / a.PageSize()) }

// AvailablePages reports the gap between the byte and page areas in whole pages.
func (a *Allocator) AvailablePages() int { return int(a.AvailableBytes() / a.PageSize()) }

// PagesOutstanding returns the pages handed out and not yet released.
func (a *Allocator) PagesOutstanding() int { return a.pagesOut }

// State is a snapshot of the allocator's cursors and counters.
type State struct {
	Start         mem.Addr
	End           mem.Addr
	BPos          mem.Addr
	PPos          mem.Addr
	ByteCount     int
	PageRemaining int
	PagesOut      int
}

// Stats returns a snapshot of the cursors and counters.
func (a *Allocator) Stats() State {
	return State{
		Start:         a.start,
		End:           a.start + mem.Addr(a.size),
		BPos:          a.bPos,
		PPos:          a.pPos,
		ByteCount:     a.byteCount,
		PageRemaining: a.pageRemaining,
		PagesOut:      a.pagesOut,
	}
}

// Compile-time interface checks
var (
	_ alloc.ByteAllocator = (*Allocator)(nil)
	_ alloc.PageAllocator = (*Allocator)(nil)
)
