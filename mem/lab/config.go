package lab

import "github.com/joshuapare/allockit/mem"

const (
	// AllocPerRound is the length of one classification round. Within a round,
	// odd-numbered calls are short-lived and even-numbered calls long-lived.
	AllocPerRound = 15

	// DefaultPoolSize is the size of the sub-region handed to the delegate pool.
	DefaultPoolSize uint64 = 1 << 18

	// DefaultMemoryEnd is the fixed upper bound of the bump area on the target board.
	DefaultMemoryEnd mem.Addr = 0xffff_ffc0_8800_0000
)

// Config controls how Init carves up the region.
type Config struct {
	// PoolSize is the number of bytes at the start of the region given to the pool.
	PoolSize uint64

	// MemoryEnd is the exclusive upper bound of the bump area. Zero means the end
	// of the region passed to Init.
	MemoryEnd mem.Addr

	// AllocPerRound overrides the round length. Zero means AllocPerRound.
	AllocPerRound int
}

// DefaultConfig matches the fixed layout of the target board.
var DefaultConfig = Config{
	PoolSize:      DefaultPoolSize,
	MemoryEnd:     DefaultMemoryEnd,
	AllocPerRound: AllocPerRound,
}

// RegionConfig bounds the bump area by the region passed to Init instead of the
// board's fixed end. Use it when the region is backed by an arena.
func RegionConfig(poolSize uint64) Config {
	return Config{PoolSize: poolSize, AllocPerRound: AllocPerRound}
}

func (c Config) round() int {
	if c.AllocPerRound <= 0 {
		return AllocPerRound
	}
	return c.AllocPerRound
}
