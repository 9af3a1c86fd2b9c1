package bench

import (
	"fmt"
	"log/slog"

	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/alloc"
	"github.com/joshuapare/allockit/mem/early"
	"github.com/joshuapare/allockit/mem/lab"
	"github.com/joshuapare/allockit/mem/pool"
)

// Allocators lists the names accepted by NewAllocator.
var Allocators = []string{"early", "lab", "pool"}

// NewAllocator builds an uninitialized allocator by name, sized for a region of
// regionSize bytes. The lab allocator gives a quarter of the region (at most
// lab.DefaultPoolSize) to its pool and bounds its bump area by the region.
func NewAllocator(name string, regionSize uint64, log *slog.Logger) (alloc.ByteAllocator, error) {
	switch name {
	case "early":
		return early.New(mem.PageSize4K, early.WithLogger(log)), nil
	case "lab":
		poolSize := min(lab.DefaultPoolSize, regionSize/4)
		return lab.New(
			lab.WithConfig(lab.RegionConfig(poolSize)),
			lab.WithPool(pool.New(pool.WithLogger(log))),
			lab.WithLogger(log),
		), nil
	case "pool":
		return pool.New(pool.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("bench: unknown allocator %q (want one of %v)", name, Allocators)
	}
}
