package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshuapare/allockit/internal/arena"
	"github.com/joshuapare/allockit/internal/logger"
	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/alloc"
)

// RunOptions controls a replay.
type RunOptions struct {
	// Arena, if set, backs the allocator's region. Every successful allocation is
	// filled with Fill through it, so an address outside the mapping is an error.
	Arena *arena.Arena
	Fill  byte

	// Logger receives one line per failed allocation at debug level.
	Logger *slog.Logger
}

// Report summarizes one replay.
type Report struct {
	Workload  string
	Allocator string

	Ops      int
	Allocs   int
	Frees    int
	Failures int

	// BytesRequested is the sum of sizes of successful allocations.
	BytesRequested uint64
	// PeakLive is the high-water mark of live requested bytes.
	PeakLive uint64
	// PeakUsed is the high-water mark of the allocator's own UsedBytes.
	PeakUsed uint64
	// Leaked is the number of allocations still live after the last op.
	Leaked int

	Violations []alloc.Violation
	Elapsed    time.Duration
}

// Run replays ops against a, which must already be initialized. Frees of
// allocations that failed are skipped. ctx is checked between ops.
func Run(ctx context.Context, a alloc.ByteAllocator, ops []Op, opts RunOptions) (rep Report, err error) {
	log := logger.Or(opts.Logger)
	c := alloc.NewChecked(a)
	addrs := make(map[int]mem.Addr)

	start := time.Now()
	defer func() { rep.Elapsed = time.Since(start) }()

	for i, op := range ops {
		if ctxErr := ctx.Err(); ctxErr != nil {
			rep.Violations = c.Violations()
			return rep, fmt.Errorf("bench: stopped after %d ops: %w", i, ctxErr)
		}
		rep.Ops++

		switch op.Kind {
		case OpAlloc:
			addr, allocErr := c.Alloc(op.Layout)
			if allocErr != nil {
				rep.Failures++
				log.Debug("bench alloc failed", "op", i, "layout", op.Layout, "error", allocErr)
				continue
			}
			rep.Allocs++
			rep.BytesRequested += op.Layout.Size
			addrs[op.ID] = addr
			if opts.Arena != nil {
				if fillErr := fill(opts.Arena, addr, op.Layout.Size, opts.Fill); fillErr != nil {
					rep.Violations = c.Violations()
					return rep, fmt.Errorf("bench: op %d: %w", i, fillErr)
				}
			}
		case OpFree:
			addr, ok := addrs[op.ID]
			if !ok {
				continue
			}
			delete(addrs, op.ID)
			c.Dealloc(addr, op.Layout)
			rep.Frees++
		}

		rep.PeakLive = max(rep.PeakLive, c.CurrentAlloc())
		rep.PeakUsed = max(rep.PeakUsed, a.UsedBytes())
	}

	rep.Leaked = c.Live()
	rep.Violations = c.Violations()
	return rep, nil
}

func fill(ar *arena.Arena, addr mem.Addr, n uint64, pattern byte) error {
	b, err := ar.Bytes(addr, n)
	if err != nil {
		return err
	}
	for i := range b {
		b[i] = pattern
	}
	return nil
}
