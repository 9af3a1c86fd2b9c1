// Package align provides power-of-two alignment arithmetic shared by the allocators.
//
// Every helper assumes its alignment argument is a non-zero power of two. The
// callers validate layouts once at the boundary (see mem.NewLayout), so the helpers
// themselves stay branch-free.
package align

// IsPow2 reports whether n is a non-zero power of two.
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// Up returns n aligned up to the next multiple of a.
//
// Example:
//
//	Up(1, 8)  = 8
//	Up(8, 8)  = 8
//	Up(9, 16) = 16
func Up(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

// Down returns n aligned down to the previous multiple of a.
//
// Example:
//
//	Down(15, 8)    = 8
//	Down(4096, 4096) = 4096
//	Down(4097, 4096) = 4096
func Down(n, a uint64) uint64 {
	return n &^ (a - 1)
}

// IsAligned reports whether n is a multiple of a.
func IsAligned(n, a uint64) bool {
	return n&(a-1) == 0
}

// UpChecked is Up that reports false instead of wrapping past the top of the
// address space.
func UpChecked(n, a uint64) (uint64, bool) {
	r := Up(n, a)
	return r, r >= n
}
