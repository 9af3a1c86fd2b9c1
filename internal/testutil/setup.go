package testutil

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/joshuapare/allockit/internal/arena"
	"github.com/joshuapare/allockit/mem"
)

// RegionStart is the canonical synthetic region base used by allocator tests
// that only need address arithmetic, not backing memory.
const RegionStart mem.Addr = 0xffff_ffc0_8000_0000

// SetupArena maps size bytes of anonymous memory and unmaps it when the test ends.
// Calls t.Skip if the platform cannot provide a mapping.
//
// Example:
//
//	a := testutil.SetupArena(t, 1<<20)
//	lab.Init(a.Region().Start, a.Region().Size)
func SetupArena(t testing.TB, size uint64) *arena.Arena {
	t.Helper()

	a, err := arena.New(size)
	if err != nil {
		t.Skipf("arena unavailable: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := a.Close(); closeErr != nil {
			t.Errorf("closing arena: %v", closeErr)
		}
	})
	return a
}

// CaptureLogger returns a debug-level text logger writing into the returned buffer.
func CaptureLogger(t testing.TB) (*slog.Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, &buf
}

// Shuffled returns a deterministic permutation of 0..n-1.
func Shuffled(seed int64, n int) []int {
	return rand.New(rand.NewSource(seed)).Perm(n)
}
