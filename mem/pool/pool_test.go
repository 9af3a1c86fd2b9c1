package pool

import (
	"bytes"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/alloc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStart mem.Addr = 0x8020_0000
	testSize  uint64   = 1 << 18
)

func newTestPool(t *testing.T, opts ...Option) *Allocator {
	t.Helper()
	a := New(opts...)
	a.Init(testStart, testSize)
	require.NoError(t, a.Validate())
	return a
}

func TestPool_Init(t *testing.T) {
	a := newTestPool(t)
	assert.Equal(t, testSize, a.TotalBytes())
	assert.Zero(t, a.UsedBytes())
	assert.Equal(t, testSize, a.AvailableBytes())
	assert.Equal(t, 1, a.FreeBlocks())
	assert.Equal(t, testSize, a.LargestFree())
	assert.Equal(t, []mem.Region{{Start: testStart, Size: testSize}}, a.Spans())
}

func TestPool_InitTrimsToGranule(t *testing.T) {
	a := New()
	a.Init(testStart+3, 4096)
	require.Len(t, a.Spans(), 1)
	sp := a.Spans()[0]
	assert.Equal(t, testStart+8, sp.Start)
	assert.Equal(t, uint64(4096-8), sp.Size)
}

func TestPool_InitTooSmall(t *testing.T) {
	var buf bytes.Buffer
	a := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	a.Init(testStart+1, 8)
	assert.Zero(t, a.TotalBytes())
	assert.Contains(t, buf.String(), "pool span unusable")

	_, err := a.Alloc(mem.MustLayout(8, 8))
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
}

func TestPool_AllocRoundsToGranule(t *testing.T) {
	a := newTestPool(t)

	tests := []struct {
		size uint64
		used uint64
	}{
		{0, 8},
		{1, 8},
		{8, 8},
		{9, 16},
		{100, 104},
	}
	var want uint64
	for _, tt := range tests {
		addr, err := a.Alloc(mem.MustLayout(tt.size, 8))
		require.NoError(t, err, "size %d", tt.size)
		assert.NotZero(t, addr)
		want += tt.used
		assert.Equal(t, want, a.UsedBytes(), "after size %d", tt.size)
	}
	require.NoError(t, a.Validate())
}

func TestPool_Alignment(t *testing.T) {
	a := newTestPool(t)

	// Knock the first free block off every interesting alignment.
	_, err := a.Alloc(mem.MustLayout(8, 8))
	require.NoError(t, err)

	for _, al := range []uint64{8, 16, 64, 256, 4096} {
		addr, err := a.Alloc(mem.MustLayout(24, al))
		require.NoError(t, err, "align %d", al)
		assert.Zero(t, uint64(addr)%al, "addr %s not aligned to %d", addr, al)
	}
	require.NoError(t, a.Validate())
	assert.Positive(t, a.Stats().SplitCount)
}

func TestPool_FreeCoalescesToSingleBlock(t *testing.T) {
	a := newTestPool(t)
	l := mem.MustLayout(48, 8)

	var addrs []mem.Addr
	for range 64 {
		addr, err := a.Alloc(l)
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	require.NoError(t, a.Validate())

	// Free every other block first, then the rest, to force both coalesce directions.
	for i := 0; i < len(addrs); i += 2 {
		a.Dealloc(addrs[i], l)
	}
	require.NoError(t, a.Validate())
	for i := 1; i < len(addrs); i += 2 {
		a.Dealloc(addrs[i], l)
	}
	require.NoError(t, a.Validate())

	assert.Zero(t, a.UsedBytes())
	assert.Equal(t, 1, a.FreeBlocks(), "all frees must coalesce back into one block")
	assert.Equal(t, testSize, a.LargestFree())

	st := a.Stats()
	assert.Positive(t, st.CoalesceForward)
	assert.Positive(t, st.CoalesceBackward)
	assert.Equal(t, 64, st.AllocCalls)
	assert.Equal(t, 64, st.FreeCalls)
}

func TestPool_BestFitReusesHole(t *testing.T) {
	a := newTestPool(t)
	small := mem.MustLayout(32, 8)
	big := mem.MustLayout(256, 8)

	a1, err := a.Alloc(small)
	require.NoError(t, err)
	hole, err := a.Alloc(big)
	require.NoError(t, err)
	_, err = a.Alloc(small)
	require.NoError(t, err)

	a.Dealloc(hole, big)

	// A 200-byte request fits the 256-byte hole; best fit must pick it over the tail.
	got, err := a.Alloc(mem.MustLayout(200, 8))
	require.NoError(t, err)
	assert.Equal(t, hole, got)
	assert.Greater(t, got, a1)
	require.NoError(t, a.Validate())
}

func TestPool_Exhaustion(t *testing.T) {
	a := New()
	a.Init(testStart, 4096)

	l := mem.MustLayout(1024, 8)
	for range 4 {
		_, err := a.Alloc(l)
		require.NoError(t, err)
	}
	_, err := a.Alloc(mem.MustLayout(8, 8))
	require.ErrorIs(t, err, alloc.ErrNoMemory)
	assert.Equal(t, 1, a.Stats().AllocFailures)
	assert.Zero(t, a.AvailableBytes())
	require.NoError(t, a.Validate())
}

func TestPool_AlignmentCanExhaust(t *testing.T) {
	a := New()
	a.Init(testStart+8, 4096-8)

	_, err := a.Alloc(mem.MustLayout(8, 8192))
	assert.ErrorIs(t, err, alloc.ErrNoMemory, "no 8K-aligned address exists in the span")
}

func TestPool_AddMemory(t *testing.T) {
	a := newTestPool(t)

	second := testStart + mem.Addr(testSize) + 0x10000
	require.NoError(t, a.AddMemory(second, 4096))
	assert.Equal(t, testSize+4096, a.TotalBytes())
	require.NoError(t, a.Validate())

	tests := []struct {
		name  string
		start mem.Addr
		size  uint64
	}{
		{"empty", 0x1000, 0},
		{"sub-granule", 0x1001, 7},
		{"overlaps first", testStart + 0x100, 4096},
		{"overlaps second", second - 8, 16},
		{"wraps", ^mem.Addr(0) - 16, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, a.AddMemory(tt.start, tt.size), ErrBadSpan)
		})
	}

	// The new span serves requests once the first is full.
	require.NoError(t, alloc.AddMemory(a, second+0x1000, 4096))
	assert.Len(t, a.Spans(), 3)
}

func TestPool_NoCoalesceAcrossSpans(t *testing.T) {
	a := New()
	a.Init(testStart, 64)
	require.NoError(t, a.AddMemory(testStart+64, 64))

	l := mem.MustLayout(64, 8)
	x, err := a.Alloc(l)
	require.NoError(t, err)
	y, err := a.Alloc(l)
	require.NoError(t, err)

	a.Dealloc(x, l)
	a.Dealloc(y, l)
	assert.Equal(t, 2, a.FreeBlocks(), "blocks in touching spans stay separate")
	require.NoError(t, a.Validate())

	_, err = a.Alloc(mem.MustLayout(128, 8))
	assert.ErrorIs(t, err, alloc.ErrNoMemory)
}

func TestPool_LargeBlocks(t *testing.T) {
	a := newTestPool(t, WithSizeClasses(ConfigCoarse))
	big := mem.MustLayout(64<<10, 4096)

	x, err := a.Alloc(big)
	require.NoError(t, err)
	y, err := a.Alloc(big)
	require.NoError(t, err)
	assert.NotEqual(t, x, y)
	require.NoError(t, a.Validate())

	a.Dealloc(x, big)
	a.Dealloc(y, big)
	require.NoError(t, a.Validate())
	assert.Equal(t, 1, a.FreeBlocks())
}

// TestPool_RandomizedInvariants drives a seeded random mix through Checked and
// validates the free lists after every step.
func TestPool_RandomizedInvariants(t *testing.T) {
	for _, cfg := range []SizeClassConfig{ConfigFineGrained, ConfigBalanced, ConfigCoarse, ConfigMetadata} {
		t.Run(cfg.Name, func(t *testing.T) {
			a := newTestPool(t, WithSizeClasses(cfg))
			c := alloc.NewChecked(a)
			rng := rand.New(rand.NewSource(42))

			type live struct {
				addr mem.Addr
				l    mem.Layout
			}
			var lives []live
			for step := range 4000 {
				if len(lives) > 0 && rng.Intn(3) == 0 {
					i := rng.Intn(len(lives))
					c.Dealloc(lives[i].addr, lives[i].l)
					lives[i] = lives[len(lives)-1]
					lives = lives[:len(lives)-1]
				} else {
					l := mem.MustLayout(uint64(rng.Intn(2048)), uint64(8)<<rng.Intn(5))
					addr, err := c.Alloc(l)
					if err == nil {
						lives = append(lives, live{addr, l})
					}
				}
				if step%97 == 0 {
					require.NoError(t, a.Validate(), "step %d", step)
				}
			}
			for _, lv := range lives {
				c.Dealloc(lv.addr, lv.l)
			}
			require.NoError(t, a.Validate())
			c.AssertClean(t)
			c.AssertSize(t, 0)
			assert.Zero(t, a.UsedBytes())
			assert.Equal(t, 1, a.FreeBlocks())
		})
	}
}

func TestPool_InitResets(t *testing.T) {
	a := newTestPool(t)
	_, err := a.Alloc(mem.MustLayout(64, 8))
	require.NoError(t, err)

	a.Init(testStart, 4096)
	assert.Equal(t, uint64(4096), a.TotalBytes())
	assert.Zero(t, a.UsedBytes())
	assert.Equal(t, Stats{HeapPushes: 1}, a.Stats())
}
