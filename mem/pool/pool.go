package pool

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joshuapare/allockit/internal/align"
	"github.com/joshuapare/allockit/internal/logger"
	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/alloc"
)

// ErrBadSpan indicates an AddMemory span that is empty after alignment or overlaps a managed span.
var ErrBadSpan = errors.New("pool: span empty or overlapping")

const (
	// granule is the block size unit. Every block start and size is a multiple of it.
	granule = 8

	// minBlock is the smallest block the allocator hands out or keeps on a free list.
	minBlock = granule
)

// Allocator is a general-purpose byte allocator over one or more fixed spans.
//   - Min-heaps per size class give best-fit allocation in O(log n)
//   - byOff map enables O(1) block lookup for heap.Remove during coalescing
//   - startIdx/endIdx give O(1) neighbour lookup for coalescing
//   - spans index enables O(log S) span bounds lookup
//
// The zero value is not usable; construct with New.
type Allocator struct {
	log *slog.Logger

	// Size class configuration and lookup table
	classes classTable

	// Segregated free lists by size class using min-heaps
	freeLists []freeList

	// Blocks beyond the last size class - simple linked list
	largeFree *largeBlock

	// Pool for reusing freeBlock structs
	freeBlockPool sync.Pool

	// startIdx: offset -> size (forward coalesce lookup)
	// endIdx: end offset -> offset (backward coalesce lookup)
	startIdx map[mem.Addr]uint64
	endIdx   map[mem.Addr]mem.Addr

	// O(1) block lookup by offset (for heap.Remove during coalescing)
	byOff map[mem.Addr]*freeBlock

	// Managed spans sorted by start
	spans []mem.Region

	total uint64
	used  uint64

	stats Stats
}

// Stats holds operation counters for testing and instrumentation.
type Stats struct {
	AllocCalls       int // Total Alloc() calls
	AllocFailures    int // Alloc() calls that returned ErrNoMemory
	FreeCalls        int // Total Dealloc() calls
	SplitCount       int // Leading or trailing remainders returned to the free lists
	CoalesceForward  int // Forward coalesce operations
	CoalesceBackward int // Backward coalesce operations
	HeapPushes       int // heap.Push() calls
	HeapPops         int // heap.Pop() calls
	HeapRemoves      int // heap.Remove() calls
}

// freeList is a size-class-specific free list using a min-heap.
type freeList struct {
	heap  freeBlockHeap // Min-heap keyed on size
	count int
}

// freeBlock represents a free block in a size class heap.
type freeBlock struct {
	off       mem.Addr // Block start
	size      uint64   // Block size in bytes
	sc        int      // Size class (which heap this belongs to)
	heapIndex int      // Position in heap (for heap.Remove)
}

// freeBlockHeap implements heap.Interface for a min-heap keyed on block size.
// Smallest blocks are at the top, giving best-fit allocation.
type freeBlockHeap []*freeBlock

func (h *freeBlockHeap) Len() int { return len(*h) }

func (h *freeBlockHeap) Less(i, j int) bool {
	if (*h)[i].size != (*h)[j].size {
		return (*h)[i].size < (*h)[j].size
	}
	return (*h)[i].off < (*h)[j].off
}

func (h *freeBlockHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeBlockHeap) Push(x any) {
	b := x.(*freeBlock) //nolint:errcheck // heap.Interface contract guarantees type
	b.heapIndex = len(*h)
	*h = append(*h, b)
}

func (h *freeBlockHeap) Pop() any {
	old := *h
	n := len(old)
	b := old[n-1]
	b.heapIndex = -1
	*h = old[0 : n-1]
	return b
}

// largeBlock holds blocks beyond the last size class.
type largeBlock struct {
	off  mem.Addr
	size uint64
	next *largeBlock
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithSizeClasses selects the size class configuration.
func WithSizeClasses(config SizeClassConfig) Option {
	return func(a *Allocator) {
		a.classes = newClassTable(config)
	}
}

// WithLogger sets the diagnostic sink. Defaults to logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		a.log = l
	}
}

// New creates an allocator with no managed memory. Call Init before use.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		classes: newClassTable(DefaultConfig),
		freeBlockPool: sync.Pool{
			New: func() any {
				return &freeBlock{}
			},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.reset()
	return a
}

func (a *Allocator) reset() {
	a.freeLists = make([]freeList, a.classes.count())
	a.largeFree = nil
	a.startIdx = make(map[mem.Addr]uint64)
	a.endIdx = make(map[mem.Addr]mem.Addr)
	a.byOff = make(map[mem.Addr]*freeBlock, 256)
	a.spans = a.spans[:0]
	a.total, a.used = 0, 0
	a.stats = Stats{}
}

// Init discards any previous state and manages [start, start+size).
// A span too small to hold one block leaves the allocator empty.
func (a *Allocator) Init(start mem.Addr, size uint64) {
	a.reset()
	logger.Or(a.log).Info("initializing pool allocator",
		"start", start, "size", fmt.Sprintf("%#x", size), "classes", a.classes.String())
	if err := a.AddMemory(start, size); err != nil {
		logger.Or(a.log).Warn("pool span unusable", "start", start, "size", size, "error", err)
	}
}

// AddMemory adds a span. Its ends are trimmed inward to the granule.
func (a *Allocator) AddMemory(start mem.Addr, size uint64) error {
	s, ok := align.UpChecked(uint64(start), granule)
	if !ok || uint64(start)+size < uint64(start) {
		return fmt.Errorf("%w: [%s, +%#x) wraps the address space", ErrBadSpan, start, size)
	}
	e := align.Down(uint64(start)+size, granule)
	if e <= s || e-s < minBlock {
		return fmt.Errorf("%w: [%s, +%#x) holds no block", ErrBadSpan, start, size)
	}
	r := mem.Region{Start: mem.Addr(s), Size: e - s}

	i, _ := slices.BinarySearchFunc(a.spans, r.Start, func(sp mem.Region, t mem.Addr) int {
		switch {
		case sp.Start < t:
			return -1
		case sp.Start > t:
			return 1
		}
		return 0
	})
	if i > 0 && a.spans[i-1].Overlaps(r) || i < len(a.spans) && a.spans[i].Overlaps(r) {
		return fmt.Errorf("%w: %s overlaps a managed span", ErrBadSpan, r)
	}
	a.spans = slices.Insert(a.spans, i, r)
	a.total += r.Size
	a.insertFreeBlock(r.Start, r.Size)
	return nil
}

// blockSize returns the block size backing a request of l.
func blockSize(l mem.Layout) uint64 {
	return max(align.Up(l.Size, granule), minBlock)
}

// fits reports whether a block at off of size holds need bytes aligned to al.
func fits(off mem.Addr, size, need, al uint64) bool {
	start, ok := align.UpChecked(uint64(off), al)
	if !ok {
		return false
	}
	return start-uint64(off)+need <= size
}

// Alloc allocates the best-fitting free block for l.
func (a *Allocator) Alloc(l mem.Layout) (mem.Addr, error) {
	a.stats.AllocCalls++

	need := blockSize(l)
	al := max(l.Align, granule)
	if need < l.Size {
		a.stats.AllocFailures++
		return 0, alloc.ErrNoMemory
	}

	var b *freeBlock
	for sc := a.classes.class(need); sc < len(a.freeLists); sc++ {
		if b = a.allocFromSizeClass(sc, need, al); b != nil {
			break
		}
	}
	if b == nil {
		b = a.allocFromLarge(need, al)
	}
	if b == nil {
		a.stats.AllocFailures++
		logger.Or(a.log).Debug("pool exhausted", "layout", l, "available", a.AvailableBytes())
		return 0, alloc.ErrNoMemory
	}

	off, size := b.off, b.size
	a.putFreeBlock(b)

	start := mem.Addr(align.Up(uint64(off), al))
	if lead := uint64(start - off); lead > 0 {
		a.stats.SplitCount++
		a.insertFreeBlock(off, lead)
	}
	if tail := uint64(off) + size - (uint64(start) + need); tail > 0 {
		a.stats.SplitCount++
		a.insertFreeBlock(start+mem.Addr(need), tail)
	}

	a.used += need
	return start, nil
}

// Dealloc returns the block backing addr to the free lists, coalescing with free
// neighbours inside the same span.
func (a *Allocator) Dealloc(addr mem.Addr, l mem.Layout) {
	a.stats.FreeCalls++

	off, sz := addr, blockSize(l)
	a.used -= sz

	sp, found := a.findSpan(off)
	if !found {
		// Not ours; keep it out of the free lists.
		return
	}

	// Try to coalesce forward (but only within the same span)
	next := off + mem.Addr(sz)
	if next < sp.End() {
		if nextSize, ok := a.startIdx[next]; ok {
			a.stats.CoalesceForward++
			a.removeFreeBlock(next, nextSize)
			sz += nextSize
		}
	}

	// Try to coalesce backward using O(1) index lookup
	if off > sp.Start {
		if prevOff, ok := a.endIdx[off]; ok {
			prevSize := a.startIdx[prevOff]
			a.stats.CoalesceBackward++
			a.removeFreeBlock(prevOff, prevSize)
			sz += prevSize
			off = prevOff
		}
	}

	a.insertFreeBlock(off, sz)
}

// TotalBytes returns the bytes in all managed spans.
func (a *Allocator) TotalBytes() uint64 { return a.total }

// UsedBytes returns the bytes in allocated blocks, granule rounding included.
func (a *Allocator) UsedBytes() uint64 { return a.used }

// AvailableBytes returns the bytes on the free lists.
func (a *Allocator) AvailableBytes() uint64 { return a.total - a.used }

// Stats returns a copy of the operation counters.
func (a *Allocator) Stats() Stats { return a.stats }

// Spans returns the managed spans in address order.
func (a *Allocator) Spans() []mem.Region { return slices.Clone(a.spans) }

// FreeBlocks returns the number of blocks on the free lists.
func (a *Allocator) FreeBlocks() int { return len(a.startIdx) }

// LargestFree returns the size of the largest free block. It walks the index.
func (a *Allocator) LargestFree() uint64 {
	var largest uint64
	for _, size := range a.startIdx {
		largest = max(largest, size)
	}
	return largest
}

// allocFromSizeClass removes the best-fitting block from one size class.
//
// Fast path: heap[0] is the smallest block in this class. If it fits, it's the best
// fit by definition. Slow path: alignment padding can make heap[0] unusable while
// larger blocks in the same class still fit, so scan for the smallest that does.
func (a *Allocator) allocFromSizeClass(sc int, need, al uint64) *freeBlock {
	list := &a.freeLists[sc]
	if list.heap.Len() == 0 {
		return nil
	}

	idx := -1
	if top := list.heap[0]; fits(top.off, top.size, need, al) {
		idx = 0
	} else {
		var bestSize uint64
		for i := 1; i < list.heap.Len(); i++ {
			b := list.heap[i]
			if fits(b.off, b.size, need, al) && (idx == -1 || b.size < bestSize) {
				idx, bestSize = i, b.size
			}
		}
	}
	if idx == -1 {
		return nil
	}

	var b *freeBlock
	if idx == 0 {
		a.stats.HeapPops++
		b = heap.Pop(&list.heap).(*freeBlock) //nolint:errcheck // heap contains only *freeBlock
	} else {
		a.stats.HeapRemoves++
		b = heap.Remove(&list.heap, idx).(*freeBlock) //nolint:errcheck // heap contains only *freeBlock
	}
	list.count--

	delete(a.byOff, b.off)
	delete(a.startIdx, b.off)
	delete(a.endIdx, b.off+mem.Addr(b.size))
	return b
}

// allocFromLarge removes the first large block that fits.
func (a *Allocator) allocFromLarge(need, al uint64) *freeBlock {
	var prev *largeBlock
	for curr := a.largeFree; curr != nil; prev, curr = curr, curr.next {
		if !fits(curr.off, curr.size, need, al) {
			continue
		}
		if prev == nil {
			a.largeFree = curr.next
		} else {
			prev.next = curr.next
		}
		delete(a.startIdx, curr.off)
		delete(a.endIdx, curr.off+mem.Addr(curr.size))

		b := a.getFreeBlock()
		b.off = curr.off
		b.size = curr.size
		return b
	}
	return nil
}

// insertFreeBlock inserts a free block into its size class heap or the large list.
func (a *Allocator) insertFreeBlock(off mem.Addr, size uint64) {
	sc := a.classes.class(size)

	if sc < len(a.freeLists) {
		b := a.getFreeBlock()
		b.off = off
		b.size = size
		b.sc = sc

		a.stats.HeapPushes++
		heap.Push(&a.freeLists[sc].heap, b)
		a.freeLists[sc].count++
		a.byOff[off] = b
	} else {
		a.largeFree = &largeBlock{
			off:  off,
			size: size,
			next: a.largeFree,
		}
	}

	a.startIdx[off] = size
	a.endIdx[off+mem.Addr(size)] = off
}

// removeFreeBlock removes a known free block from its heap or the large list.
func (a *Allocator) removeFreeBlock(off mem.Addr, size uint64) {
	delete(a.startIdx, off)
	delete(a.endIdx, off+mem.Addr(size))

	sc := a.classes.class(size)
	if sc < len(a.freeLists) {
		b := a.byOff[off]
		if b == nil {
			return
		}
		a.stats.HeapRemoves++
		heap.Remove(&a.freeLists[sc].heap, b.heapIndex)
		a.freeLists[sc].count--
		delete(a.byOff, off)
		a.putFreeBlock(b)
		return
	}

	var prev *largeBlock
	for curr := a.largeFree; curr != nil; prev, curr = curr, curr.next {
		if curr.off != off {
			continue
		}
		if prev == nil {
			a.largeFree = curr.next
		} else {
			prev.next = curr.next
		}
		return
	}
}

func (a *Allocator) getFreeBlock() *freeBlock {
	b, ok := a.freeBlockPool.Get().(*freeBlock)
	if !ok {
		return &freeBlock{}
	}
	return b
}

func (a *Allocator) putFreeBlock(b *freeBlock) {
	b.heapIndex = -1
	b.sc = 0
	a.freeBlockPool.Put(b)
}

// findSpan returns the managed span containing off using binary search.
func (a *Allocator) findSpan(off mem.Addr) (mem.Region, bool) {
	i, found := slices.BinarySearchFunc(a.spans, off, func(sp mem.Region, t mem.Addr) int {
		switch {
		case sp.Start < t:
			return -1
		case sp.Start > t:
			return 1
		}
		return 0
	})
	if found {
		return a.spans[i], true
	}
	if i == 0 {
		return mem.Region{}, false
	}
	sp := a.spans[i-1]
	if off < sp.End() {
		return sp, true
	}
	return mem.Region{}, false
}

// Validate walks the free lists and checks that every free block lies inside one
// span, no two free blocks overlap or touch inside a span, and free plus used bytes
// add up to the managed total.
func (a *Allocator) Validate() error {
	type blk struct {
		off  mem.Addr
		size uint64
	}
	blocks := make([]blk, 0, len(a.startIdx))
	var free uint64
	for off, size := range a.startIdx {
		blocks = append(blocks, blk{off, size})
		free += size
		if end, ok := a.endIdx[off+mem.Addr(size)]; !ok || end != off {
			return fmt.Errorf("pool: block %s+%#x missing from end index", off, size)
		}
	}
	if len(a.endIdx) != len(blocks) {
		return fmt.Errorf("pool: end index has %d entries, start index %d", len(a.endIdx), len(blocks))
	}

	heaped := 0
	for sc := range a.freeLists {
		heaped += a.freeLists[sc].heap.Len()
	}
	for lb := a.largeFree; lb != nil; lb = lb.next {
		heaped++
	}
	if heaped != len(blocks) {
		return fmt.Errorf("pool: %d blocks on free lists, %d indexed", heaped, len(blocks))
	}

	slices.SortFunc(blocks, func(x, y blk) int {
		switch {
		case x.off < y.off:
			return -1
		case x.off > y.off:
			return 1
		}
		return 0
	})
	for i, b := range blocks {
		sp, ok := a.findSpan(b.off)
		if !ok || !sp.Contains(b.off, b.size) {
			return fmt.Errorf("pool: block %s+%#x outside every span", b.off, b.size)
		}
		if i == 0 {
			continue
		}
		prev := blocks[i-1]
		prevEnd := prev.off + mem.Addr(prev.size)
		if prevEnd > b.off {
			return fmt.Errorf("pool: blocks %s and %s overlap", prev.off, b.off)
		}
		if prevEnd == b.off && sp.Contains(prev.off, prev.size) {
			return fmt.Errorf("pool: adjacent free blocks %s and %s were not coalesced", prev.off, b.off)
		}
	}

	if free+a.used != a.total {
		return fmt.Errorf("pool: free %d + used %d != total %d", free, a.used, a.total)
	}
	return nil
}

// Compile-time interface checks
var (
	_ alloc.ByteAllocator     = (*Allocator)(nil)
	_ alloc.GrowableAllocator = (*Allocator)(nil)
)
