package alloc

import (
	"fmt"
	"testing"

	"github.com/joshuapare/allockit/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures assertion failures instead of failing the test.
type recorder struct {
	msgs []string
}

func (r *recorder) Errorf(format string, args ...any) { r.msgs = append(r.msgs, fmt.Sprintf(format, args...)) }
func (r *recorder) Helper()                           {}

func kinds(vs []Violation) []ViolationKind {
	out := make([]ViolationKind, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Kind)
	}
	return out
}

func TestChecked_CleanRun(t *testing.T) {
	s := &scripted{next: []mem.Addr{0x1000, 0x1040, 0x1020}}
	c := NewChecked(s)
	c.Init(0x1000, 0x1000)
	assert.Equal(t, 1, s.inits)

	l := mem.MustLayout(32, 16)
	a1, err := c.Alloc(l)
	require.NoError(t, err)
	a2, err := c.Alloc(l)
	require.NoError(t, err)
	a3, err := c.Alloc(l)
	require.NoError(t, err)

	assert.Equal(t, 3, c.Live())
	c.AssertSize(t, 96)

	c.Dealloc(a2, l)
	c.Dealloc(a1, l)
	c.Dealloc(a3, l)

	assert.Zero(t, c.Live())
	c.AssertSize(t, 0)
	c.AssertClean(t)
	assert.Equal(t, []mem.Addr{0x1040, 0x1000, 0x1020}, s.freed, "every free is forwarded")
}

func TestChecked_Violations(t *testing.T) {
	tests := []struct {
		name string
		next []mem.Addr
		run  func(c *Checked)
		want []ViolationKind
	}{
		{
			name: "null",
			next: []mem.Addr{0},
			run:  func(c *Checked) { _, _ = c.Alloc(mem.MustLayout(8, 8)) },
			want: []ViolationKind{ViolationNullAddress},
		},
		{
			name: "misaligned",
			next: []mem.Addr{0x1008},
			run:  func(c *Checked) { _, _ = c.Alloc(mem.MustLayout(8, 16)) },
			want: []ViolationKind{ViolationMisaligned},
		},
		{
			name: "overlap with previous",
			next: []mem.Addr{0x1000, 0x1010},
			run: func(c *Checked) {
				_, _ = c.Alloc(mem.MustLayout(32, 16))
				_, _ = c.Alloc(mem.MustLayout(16, 16))
			},
			want: []ViolationKind{ViolationOverlap},
		},
		{
			name: "overlap with next",
			next: []mem.Addr{0x1020, 0x1010},
			run: func(c *Checked) {
				_, _ = c.Alloc(mem.MustLayout(16, 16))
				_, _ = c.Alloc(mem.MustLayout(32, 16))
			},
			want: []ViolationKind{ViolationOverlap},
		},
		{
			name: "double free",
			next: []mem.Addr{0x1000},
			run: func(c *Checked) {
				l := mem.MustLayout(16, 16)
				a, _ := c.Alloc(l)
				c.Dealloc(a, l)
				c.Dealloc(a, l)
			},
			want: []ViolationKind{ViolationUnknownFree},
		},
		{
			name: "layout mismatch",
			next: []mem.Addr{0x1000},
			run: func(c *Checked) {
				a, _ := c.Alloc(mem.MustLayout(16, 16))
				c.Dealloc(a, mem.MustLayout(32, 16))
			},
			want: []ViolationKind{ViolationLayoutMismatch},
		},
		{
			name: "zero-size free without alloc",
			run:  func(c *Checked) { c.Dealloc(0x1000, mem.MustLayout(0, 8)) },
			want: []ViolationKind{ViolationUnknownFree},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecked(&scripted{next: tt.next})
			tt.run(c)
			assert.Equal(t, tt.want, kinds(c.Violations()))

			r := &recorder{}
			c.AssertClean(r)
			assert.Len(t, r.msgs, len(tt.want))
		})
	}
}

func TestChecked_ZeroSized(t *testing.T) {
	c := NewChecked(&scripted{next: []mem.Addr{0x1000, 0x1000}})
	l := mem.MustLayout(0, 8)
	_, err := c.Alloc(l)
	require.NoError(t, err)
	_, err = c.Alloc(l)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Live())
	assert.Empty(t, c.Violations(), "zero-sized allocations may share an address")

	c.Dealloc(0x1000, l)
	c.Dealloc(0x1000, l)
	assert.Zero(t, c.Live())
	c.AssertClean(t)
}

func TestChecked_FailuresPassThrough(t *testing.T) {
	c := NewChecked(&scripted{})
	_, err := c.Alloc(mem.MustLayout(8, 8))
	require.ErrorIs(t, err, ErrNoMemory)
	assert.Zero(t, c.Live())
}

func TestChecked_AssertSizeReportsLeaks(t *testing.T) {
	c := NewChecked(&scripted{next: []mem.Addr{0x1000}})
	_, err := c.Alloc(mem.MustLayout(24, 8))
	require.NoError(t, err)

	r := &recorder{}
	c.AssertSize(r, 0)
	require.Len(t, r.msgs, 2)
	assert.Contains(t, r.msgs[0], "LIVE 24 bytes at 0x1000")
	assert.Contains(t, r.msgs[1], "exp=0, got=24")
}

func TestViolationString(t *testing.T) {
	v := Violation{Kind: ViolationLayoutMismatch, Addr: 0x1000, Layout: mem.MustLayout(32, 16), Other: mem.MustLayout(16, 16)}
	assert.Equal(t, "layout-mismatch: 0x1000 freed as Layout{size: 32, align: 16}, allocated as Layout{size: 16, align: 16}", v.String())
	assert.Equal(t, "violation(99)", ViolationKind(99).String())
}
