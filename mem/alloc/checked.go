package alloc

import (
	"fmt"
	"slices"

	"github.com/joshuapare/allockit/internal/align"
	"github.com/joshuapare/allockit/mem"
)

// ViolationKind classifies a contract breach seen by Checked.
type ViolationKind uint8

const (
	// ViolationNullAddress is a successful Alloc that returned address zero.
	ViolationNullAddress ViolationKind = iota + 1
	// ViolationMisaligned is a successful Alloc whose address ignores the requested alignment.
	ViolationMisaligned
	// ViolationOverlap is a successful Alloc that intersects a live allocation.
	ViolationOverlap
	// ViolationUnknownFree is a Dealloc of an address that is not live (double free or stray pointer).
	ViolationUnknownFree
	// ViolationLayoutMismatch is a Dealloc whose layout differs from the one allocated.
	ViolationLayoutMismatch
)

var violationNames = map[ViolationKind]string{
	ViolationNullAddress:    "null-address",
	ViolationMisaligned:     "misaligned",
	ViolationOverlap:        "overlap",
	ViolationUnknownFree:    "unknown-free",
	ViolationLayoutMismatch: "layout-mismatch",
}

func (k ViolationKind) String() string {
	if s, ok := violationNames[k]; ok {
		return s
	}
	return fmt.Sprintf("violation(%d)", uint8(k))
}

// Violation describes one contract breach.
type Violation struct {
	Kind   ViolationKind
	Addr   mem.Addr
	Layout mem.Layout
	// Other is the live allocation involved in an overlap or mismatch.
	Other mem.Layout
	// OtherAddr is the start of the live allocation involved in an overlap.
	OtherAddr mem.Addr
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationOverlap:
		return fmt.Sprintf("%s: %s %s intersects %s %s", v.Kind, v.Addr, v.Layout, v.OtherAddr, v.Other)
	case ViolationLayoutMismatch:
		return fmt.Sprintf("%s: %s freed as %s, allocated as %s", v.Kind, v.Addr, v.Layout, v.Other)
	}
	return fmt.Sprintf("%s: %s %s", v.Kind, v.Addr, v.Layout)
}

type span struct {
	addr mem.Addr
	l    mem.Layout
}

// Checked wraps a ByteAllocator and audits every call against the allocator contract.
type Checked struct {
	a ByteAllocator

	spans []span // live non-empty allocations sorted by address
	zero  int    // live zero-sized allocations
	sz    uint64 // requested bytes currently live

	violations []Violation
}

// NewChecked wraps a.
func NewChecked(a ByteAllocator) *Checked {
	return &Checked{a: a}
}

// Init forwards to the wrapped allocator.
func (c *Checked) Init(start mem.Addr, size uint64) {
	c.a.Init(start, size)
}

// Alloc forwards to the wrapped allocator and audits a successful result.
func (c *Checked) Alloc(l mem.Layout) (mem.Addr, error) {
	addr, err := c.a.Alloc(l)
	if err != nil {
		return addr, err
	}

	if addr == 0 {
		c.report(Violation{Kind: ViolationNullAddress, Addr: addr, Layout: l})
	}
	if !align.IsAligned(uint64(addr), l.Align) {
		c.report(Violation{Kind: ViolationMisaligned, Addr: addr, Layout: l})
	}

	if l.Size == 0 {
		c.zero++
		return addr, nil
	}

	i, _ := slices.BinarySearchFunc(c.spans, addr, func(s span, a mem.Addr) int {
		switch {
		case s.addr < a:
			return -1
		case s.addr > a:
			return 1
		}
		return 0
	})
	if i > 0 {
		if prev := c.spans[i-1]; prev.addr+mem.Addr(prev.l.Size) > addr {
			c.report(Violation{Kind: ViolationOverlap, Addr: addr, Layout: l, OtherAddr: prev.addr, Other: prev.l})
			return addr, nil
		}
	}
	if i < len(c.spans) {
		if next := c.spans[i]; next.addr < addr+mem.Addr(l.Size) {
			c.report(Violation{Kind: ViolationOverlap, Addr: addr, Layout: l, OtherAddr: next.addr, Other: next.l})
			return addr, nil
		}
	}

	c.spans = slices.Insert(c.spans, i, span{addr: addr, l: l})
	c.sz += l.Size
	return addr, nil
}

// Dealloc audits the release and then forwards it unchanged.
func (c *Checked) Dealloc(addr mem.Addr, l mem.Layout) {
	defer c.a.Dealloc(addr, l)

	if l.Size == 0 {
		if c.zero == 0 {
			c.report(Violation{Kind: ViolationUnknownFree, Addr: addr, Layout: l})
			return
		}
		c.zero--
		return
	}

	i, found := slices.BinarySearchFunc(c.spans, addr, func(s span, a mem.Addr) int {
		switch {
		case s.addr < a:
			return -1
		case s.addr > a:
			return 1
		}
		return 0
	})
	if !found {
		c.report(Violation{Kind: ViolationUnknownFree, Addr: addr, Layout: l})
		return
	}
	live := c.spans[i]
	if live.l != l {
		c.report(Violation{Kind: ViolationLayoutMismatch, Addr: addr, Layout: l, Other: live.l})
	}
	c.spans = slices.Delete(c.spans, i, i+1)
	c.sz -= live.l.Size
}

func (c *Checked) TotalBytes() uint64     { return c.a.TotalBytes() }
func (c *Checked) UsedBytes() uint64      { return c.a.UsedBytes() }
func (c *Checked) AvailableBytes() uint64 { return c.a.AvailableBytes() }

// Live returns the number of live allocations, zero-sized ones included.
func (c *Checked) Live() int { return len(c.spans) + c.zero }

// CurrentAlloc returns the requested bytes currently live.
func (c *Checked) CurrentAlloc() uint64 { return c.sz }

// Violations returns the breaches recorded so far.
func (c *Checked) Violations() []Violation {
	return slices.Clone(c.violations)
}

func (c *Checked) report(v Violation) {
	c.violations = append(c.violations, v)
}

// TestingT is the subset of testing.TB used by the assertion helpers.
type TestingT interface {
	Errorf(format string, args ...any)
	Helper()
}

// AssertSize fails t if the live requested bytes differ from sz, listing every live allocation.
func (c *Checked) AssertSize(t TestingT, sz uint64) {
	t.Helper()
	if c.sz == sz {
		return
	}
	for _, s := range c.spans {
		t.Errorf("LIVE %d bytes at %s (%s)", s.l.Size, s.addr, s.l)
	}
	t.Errorf("invalid memory size exp=%d, got=%d", sz, c.sz)
}

// AssertClean fails t for every recorded violation.
func (c *Checked) AssertClean(t TestingT) {
	t.Helper()
	for _, v := range c.violations {
		t.Errorf("allocator contract violation: %s", v)
	}
}

var _ ByteAllocator = (*Checked)(nil)
