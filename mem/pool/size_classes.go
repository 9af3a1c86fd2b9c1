package pool

import (
	"math"
	"slices"
)

// SizeClassConfig shapes the free-list index. Classes grow linearly from Granule
// to LinearMax, then geometrically by Growth up to GeometricMax; anything larger
// lives on a single unsorted list.
//
// More classes mean tighter best-fit at the cost of more heaps to scan.
type SizeClassConfig struct {
	Name string

	Granule    uint64 // smallest block
	LinearMax  uint64
	LinearStep uint64

	GeometricMax uint64
	Growth       float64
}

// Presets.
var (
	// ConfigFineGrained has 8-byte steps up to 256 and growth 1.5 up to 16K.
	ConfigFineGrained = SizeClassConfig{
		Name: "FineGrained", Granule: 8, LinearMax: 256, LinearStep: 8,
		GeometricMax: 16 << 10, Growth: 1.5,
	}

	// ConfigBalanced has 16-byte steps up to 512 and growth 1.5 up to 16K.
	ConfigBalanced = SizeClassConfig{
		Name: "Balanced", Granule: 8, LinearMax: 512, LinearStep: 16,
		GeometricMax: 16 << 10, Growth: 1.5,
	}

	// ConfigCoarse has 32-byte steps up to 512 and doubles up to 16K.
	ConfigCoarse = SizeClassConfig{
		Name: "Coarse", Granule: 8, LinearMax: 512, LinearStep: 32,
		GeometricMax: 16 << 10, Growth: 2,
	}

	// ConfigMetadata suits the small 8-aligned records the lab allocator routes
	// to its pool: 8-byte steps up to 128, then slow growth.
	ConfigMetadata = SizeClassConfig{
		Name: "Metadata", Granule: 8, LinearMax: 128, LinearStep: 8,
		GeometricMax: 16 << 10, Growth: 1.3,
	}

	DefaultConfig = ConfigBalanced
)

// classTable maps a block size to the index of its free list.
type classTable struct {
	name string
	// limits[i] is the largest size held by class i, strictly increasing.
	limits []uint64
}

func newClassTable(cfg SizeClassConfig) classTable {
	t := classTable{name: cfg.Name}

	lo := cfg.Granule
	for ; lo < cfg.LinearMax; lo += cfg.LinearStep {
		t.limits = append(t.limits, lo+cfg.LinearStep-1)
	}
	lo = max(lo, cfg.LinearMax)
	for lo < cfg.GeometricMax {
		hi := max(uint64(math.Ceil(float64(lo)*cfg.Growth)), lo+1)
		t.limits = append(t.limits, hi-1)
		lo = hi
	}
	return t
}

// class returns the first class able to hold size, or len for the large list.
func (t classTable) class(size uint64) int {
	i, _ := slices.BinarySearch(t.limits, size)
	return i
}

func (t classTable) count() int { return len(t.limits) }

func (t classTable) String() string { return t.name }
