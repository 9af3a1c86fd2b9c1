// Package lab implements a byte allocator tuned for workloads that mix many
// short-lived allocations with a few long-lived ones.
//
// The region is split in two. The first PoolSize bytes go to a general-purpose
// delegate, which serves every request aligned to exactly 8 bytes. The rest is a
// two-ended bump area:
//
//	[ pool | long-lived --> |   free   | <-- short-lived ]
//	start  start'       longLive   shortLive           end
//
// Requests with any other alignment are classified by call order. Calls are
// grouped in rounds of AllocPerRound; odd positions in a round bump shortLive
// down, even positions bump longLive up. Bump memory is only reclaimed when the
// freed block is the sole short-lived allocation, in which case the whole
// short-lived side is released.
package lab

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/allockit/internal/align"
	"github.com/joshuapare/allockit/internal/logger"
	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/alloc"
	"github.com/joshuapare/allockit/mem/pool"
)

// poolAlign is the alignment routed to the delegate pool.
const poolAlign = 8

// Lifetime is the bump side a call is routed to.
type Lifetime uint8

const (
	// ShortLived allocations are carved downward from end.
	ShortLived Lifetime = iota
	// LongLived allocations are carved upward from the end of the pool.
	LongLived
)

func (l Lifetime) String() string {
	switch l {
	case ShortLived:
		return "short"
	case LongLived:
		return "long"
	default:
		return fmt.Sprintf("Lifetime(%d)", uint8(l))
	}
}

// Allocator is the lab byte allocator. It is not safe for concurrent use.
// The zero value uses DefaultConfig and a default pool.
type Allocator struct {
	log  *slog.Logger
	cfg  Config
	pool alloc.ByteAllocator

	start     mem.Addr // first byte after the pool
	end       mem.Addr
	longLive  mem.Addr
	shortLive mem.Addr

	// calls counts non-pool Alloc calls, failed ones included.
	calls uint64
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(a *Allocator) {
		a.cfg = cfg
	}
}

// WithPool sets the delegate for 8-byte-aligned requests. Defaults to pool.New().
func WithPool(p alloc.ByteAllocator) Option {
	return func(a *Allocator) {
		a.pool = p
	}
}

// WithLogger sets the diagnostic sink. Defaults to logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) {
		a.log = l
	}
}

// New returns an uninitialized allocator.
func New(opts ...Option) *Allocator {
	a := &Allocator{cfg: DefaultConfig}
	for _, opt := range opts {
		opt(a)
	}
	if a.pool == nil {
		a.pool = pool.New(pool.WithLogger(a.log))
	}
	return a
}

// Init gives the first PoolSize bytes of the region to the pool and sets up
// the bump area above it.
func (a *Allocator) Init(start mem.Addr, size uint64) {
	log := logger.Or(a.log)
	if a.cfg == (Config{}) {
		a.cfg = DefaultConfig
	}
	if a.pool == nil {
		a.pool = pool.New(pool.WithLogger(a.log))
	}

	a.pool.Init(start, a.cfg.PoolSize)
	a.start = start + mem.Addr(a.cfg.PoolSize)
	a.end = a.cfg.MemoryEnd
	if a.end == 0 {
		a.end = start + mem.Addr(size)
	}
	if a.end < a.start {
		log.Warn("lab bump area is empty", "start", a.start, "end", a.end)
		a.end = a.start
	}
	a.longLive = a.start
	a.shortLive = a.end
	a.calls = 0

	log.Info("initializing lab allocator",
		"pool", mem.Region{Start: start, Size: a.cfg.PoolSize},
		"bump", mem.Region{Start: a.start, Size: uint64(a.end - a.start)},
		"round", a.cfg.round())
}

// Alloc serves 8-byte-aligned requests from the pool and everything else from
// the bump area.
func (a *Allocator) Alloc(l mem.Layout) (mem.Addr, error) {
	log := logger.Or(a.log)

	if l.Align == poolAlign {
		addr, err := a.pool.Alloc(l)
		if err != nil {
			log.Error("lab pool exhausted", "layout", l, "error", err)
			return 0, alloc.ErrNoMemory
		}
		log.Debug("lab alloc", "layout", l, "path", "pool", "addr", addr)
		return addr, nil
	}

	a.calls++
	kind := a.Classify(a.calls)

	var (
		addr mem.Addr
		ok   bool
	)
	if kind == ShortLived {
		addr, ok = a.bumpShort(l)
	} else {
		addr, ok = a.bumpLong(l)
	}
	if !ok {
		log.Debug("lab alloc failed", "layout", l, "path", kind, "call", a.calls)
		return 0, alloc.ErrNoMemory
	}
	log.Debug("lab alloc", "layout", l, "path", kind, "call", a.calls, "addr", addr)
	return addr, nil
}

func (a *Allocator) bumpShort(l mem.Layout) (mem.Addr, bool) {
	if l.Size > uint64(a.shortLive) {
		return 0, false
	}
	next := align.Down(uint64(a.shortLive)-l.Size, l.Align)
	if next < uint64(a.longLive) {
		return 0, false
	}
	a.shortLive = mem.Addr(next)
	return a.shortLive, true
}

func (a *Allocator) bumpLong(l mem.Layout) (mem.Addr, bool) {
	base, ok := align.UpChecked(uint64(a.longLive), l.Align)
	if !ok || base > uint64(a.shortLive) || l.Size > uint64(a.shortLive)-base {
		return 0, false
	}
	a.longLive = mem.Addr(base + l.Size)
	return mem.Addr(base), true
}

// Dealloc returns pool blocks to the pool. A bump block is reclaimed only when
// it is the sole short-lived allocation; every other bump free is a no-op.
func (a *Allocator) Dealloc(addr mem.Addr, l mem.Layout) {
	if l.Align == poolAlign {
		a.pool.Dealloc(addr, l)
		logger.Or(a.log).Debug("lab dealloc", "addr", addr, "layout", l, "path", "pool")
		return
	}
	if addr == a.shortLive && uint64(a.end-a.shortLive) == l.Size {
		a.shortLive = a.end
		logger.Or(a.log).Debug("lab dealloc", "addr", addr, "layout", l, "reclaimed", true)
		return
	}
	logger.Or(a.log).Debug("lab dealloc", "addr", addr, "layout", l, "reclaimed", false)
}

// TotalBytes reports the size of the bump area. Pool memory is not included.
func (a *Allocator) TotalBytes() uint64 { return uint64(a.end - a.start) }

// UsedBytes reports the bytes consumed on both bump sides.
func (a *Allocator) UsedBytes() uint64 {
	return uint64(a.longLive-a.start) + uint64(a.end-a.shortLive)
}

// AvailableBytes reports the gap between the two bump cursors.
func (a *Allocator) AvailableBytes() uint64 { return uint64(a.shortLive - a.longLive) }

// Pool returns the delegate serving 8-byte-aligned requests.
func (a *Allocator) Pool() alloc.ByteAllocator { return a.pool }

// Cursors is a snapshot of the bump area boundaries.
type Cursors struct {
	Start     mem.Addr
	LongLive  mem.Addr
	ShortLive mem.Addr
	End       mem.Addr
}

// Cursors returns the current bump area boundaries.
func (a *Allocator) Cursors() Cursors {
	return Cursors{Start: a.start, LongLive: a.longLive, ShortLive: a.shortLive, End: a.end}
}

// Calls returns the number of non-pool Alloc calls since Init.
func (a *Allocator) Calls() uint64 { return a.calls }

// Classify reports which side the n-th non-pool call (counting from 1) uses.
func (a *Allocator) Classify(n uint64) Lifetime {
	return Classify(n, a.cfg.round())
}

// Classify reports which side the n-th call (counting from 1) of a round-length
// policy uses.
func Classify(n uint64, round int) Lifetime {
	if n == 0 || round <= 0 {
		return ShortLived
	}
	if ((n-1)%uint64(round))%2 == 0 {
		return ShortLived
	}
	return LongLived
}

// Compile-time interface check
var _ alloc.ByteAllocator = (*Allocator)(nil)
