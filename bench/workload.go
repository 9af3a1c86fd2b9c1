// Package bench replays synthetic allocation workloads against any byte allocator.
package bench

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/joshuapare/allockit/mem"
)

// Kind selects a workload shape.
type Kind uint8

const (
	// Mixed interleaves bursts of short-lived allocations, freed newest first,
	// with occasional long-lived ones that survive until the end.
	Mixed Kind = iota
	// LIFO frees the most recent live allocation.
	LIFO
	// FIFO frees the oldest live allocation.
	FIFO
	// Random frees a random live allocation.
	Random
	// Metadata issues only 8-byte-aligned requests of small sizes.
	Metadata
)

// Kinds lists every workload in display order.
var Kinds = []Kind{Mixed, LIFO, FIFO, Random, Metadata}

var kindNames = map[Kind]string{
	Mixed:    "mixed",
	LIFO:     "lifo",
	FIFO:     "fifo",
	Random:   "random",
	Metadata: "metadata",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("bench: unknown workload %q", s)
}

// OpKind distinguishes allocations from frees.
type OpKind uint8

const (
	OpAlloc OpKind = iota
	OpFree
)

func (k OpKind) String() string {
	if k == OpAlloc {
		return "alloc"
	}
	return "free"
}

// Op is one step of a workload. A free refers to the allocation with the same ID.
type Op struct {
	Kind   OpKind
	ID     int
	Layout mem.Layout
}

// Options controls workload generation.
type Options struct {
	// Seed makes generation deterministic.
	Seed int64
	// Count is the number of allocations to issue.
	Count int
	// MaxSize bounds the size of a single request.
	MaxSize uint64
	// Drain appends frees for every allocation still live at the end.
	Drain bool
}

// DefaultOptions is a moderate workload that drains.
var DefaultOptions = Options{
	Seed:    1,
	Count:   10_000,
	MaxSize: 512,
	Drain:   true,
}

var (
	generalAligns  = []uint64{8, 8, 16, 32, 64}
	shortAligns    = []uint64{8, 16, 16, 32}
	metadataAligns = []uint64{8}
)

type generator struct {
	rng  *rand.Rand
	opts Options
	ops  []Op
	live []Op // allocations not yet freed, oldest first
	next int
}

// Generate builds the op sequence for kind. The same kind and options always
// produce the same sequence.
func Generate(kind Kind, opts Options) []Op {
	if opts.MaxSize == 0 {
		opts.MaxSize = DefaultOptions.MaxSize
	}
	opts.Count = max(opts.Count, 0)
	g := &generator{
		rng:  rand.New(rand.NewSource(opts.Seed)),
		opts: opts,
		ops:  make([]Op, 0, 2*opts.Count),
	}

	pick := g.newest
	switch kind {
	case Mixed:
		g.mixed()
	case LIFO:
		g.churn(generalAligns, pick)
	case FIFO:
		pick = g.oldest
		g.churn(generalAligns, pick)
	case Metadata:
		pick = g.random
		g.opts.MaxSize = min(g.opts.MaxSize, 128)
		g.churn(metadataAligns, pick)
	default:
		pick = g.random
		g.churn(generalAligns, pick)
	}

	if opts.Drain {
		for len(g.live) > 0 {
			g.free(pick())
		}
	}
	return g.ops
}

func (g *generator) newest() int { return len(g.live) - 1 }
func (g *generator) oldest() int { return 0 }
func (g *generator) random() int { return g.rng.Intn(len(g.live)) }

func (g *generator) layout(aligns []uint64, maxSize uint64) mem.Layout {
	size := 1 + uint64(g.rng.Int63n(int64(maxSize)))
	return mem.MustLayout(size, aligns[g.rng.Intn(len(aligns))])
}

func (g *generator) alloc(l mem.Layout) int {
	op := Op{Kind: OpAlloc, ID: g.next, Layout: l}
	g.next++
	g.ops = append(g.ops, op)
	g.live = append(g.live, op)
	return len(g.live) - 1
}

func (g *generator) free(i int) {
	op := g.live[i]
	g.ops = append(g.ops, Op{Kind: OpFree, ID: op.ID, Layout: op.Layout})
	g.live = append(g.live[:i], g.live[i+1:]...)
}

// churn allocates and frees at random, keeping the live set small, and picks
// the victim of each free with pick.
func (g *generator) churn(aligns []uint64, pick func() int) {
	for g.next < g.opts.Count {
		if len(g.live) > 0 && g.rng.Intn(5) < 2 {
			g.free(pick())
			continue
		}
		g.alloc(g.layout(aligns, g.opts.MaxSize))
	}
}

func (g *generator) mixed() {
	var long []Op
	for g.next < g.opts.Count {
		if g.rng.Intn(8) == 0 {
			i := g.alloc(g.layout([]uint64{16, 32}, 4*g.opts.MaxSize))
			long = append(long, g.live[i])
			g.live = g.live[:i]
			continue
		}
		burst := 1 + g.rng.Intn(4)
		for range min(burst, g.opts.Count-g.next) {
			g.alloc(g.layout(shortAligns, g.opts.MaxSize))
		}
		for len(g.live) > 0 {
			g.free(len(g.live) - 1)
		}
	}
	g.live = long
}
