package alloc

import (
	"github.com/joshuapare/allockit/internal/align"
	"github.com/joshuapare/allockit/mem"
)

// scripted is a ByteAllocator that returns pre-programmed addresses, so tests can
// feed Checked results a real allocator would never produce.
type scripted struct {
	start, end mem.Addr
	next       []mem.Addr
	freed      []mem.Addr
	inits      int
}

func (s *scripted) Init(start mem.Addr, size uint64) {
	s.inits++
	s.start, s.end = start, start+mem.Addr(size)
}

func (s *scripted) Alloc(l mem.Layout) (mem.Addr, error) {
	if len(s.next) == 0 {
		return 0, ErrNoMemory
	}
	a := s.next[0]
	s.next = s.next[1:]
	return a, nil
}

func (s *scripted) Dealloc(addr mem.Addr, _ mem.Layout) { s.freed = append(s.freed, addr) }
func (s *scripted) TotalBytes() uint64                 { return uint64(s.end - s.start) }
func (s *scripted) UsedBytes() uint64                  { return 0 }
func (s *scripted) AvailableBytes() uint64             { return uint64(s.end - s.start) }

// pager is a minimal PageAllocator handing out pages upward.
type pager struct {
	start, pos, end mem.Addr
	out             int
}

func (p *pager) Init(start mem.Addr, size uint64) {
	p.start, p.pos, p.end = start, start, start+mem.Addr(size)
}

func (p *pager) PageSize() uint64 { return mem.PageSize4K }

func (p *pager) AllocPages(count int, alignPow2 uint64) (mem.Addr, error) {
	base := mem.Addr(align.Up(uint64(p.pos), max(alignPow2, mem.PageSize4K)))
	next := base + mem.Addr(uint64(count)*mem.PageSize4K)
	if next > p.end {
		return 0, ErrNoMemory
	}
	p.pos = next
	p.out += count
	return base, nil
}

func (p *pager) DeallocPages(_ mem.Addr, count int) { p.out -= count }
func (p *pager) TotalPages() int                    { return int(uint64(p.end-p.start) / mem.PageSize4K) }
func (p *pager) UsedPages() int                     { return p.out }
func (p *pager) AvailablePages() int                { return int(uint64(p.end-p.pos) / mem.PageSize4K) }

// grower accepts extra spans.
type grower struct {
	pager
	added []mem.Region
}

func (g *grower) AddMemory(start mem.Addr, size uint64) error {
	g.added = append(g.added, mem.Region{Start: start, Size: size})
	return nil
}
