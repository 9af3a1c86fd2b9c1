package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/lab"
	"github.com/spf13/cobra"
)

// scenarioStart is the base of the physical region on the target board.
const scenarioStart = 0xffff_ffc0_8000_0000

var (
	scenarioRegion uint64
	scenarioSize   uint64
)

func init() {
	rootCmd.AddCommand(newScenarioCmd())
}

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Walk through the lab allocator's reference sequence",
		Long: `The scenario command initializes a lab allocator with the board defaults and
performs a fixed sequence: one pool allocation, one short-lived and one long-lived
bump allocation, then frees the short-lived block. Each step prints the cursors
and is checked against the expected addresses.

Example:
  allocctl scenario
  allocctl scenario --start 0x80000000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario()
		},
	}
	cmd.Flags().Uint64Var(&scenarioRegion, "start", scenarioStart, "Region start address")
	cmd.Flags().Uint64Var(&scenarioSize, "size", 0x20000, "Region size")
	return cmd
}

type scenarioStep struct {
	Step      string `json:"step"`
	Addr      string `json:"addr,omitempty"`
	Want      string `json:"want,omitempty"`
	LongLive  string `json:"long_live"`
	ShortLive string `json:"short_live"`
	Available uint64 `json:"available"`
	PoolUsed  uint64 `json:"pool_used"`
	OK        bool   `json:"ok"`
}

func runScenario() error {
	start := mem.Addr(scenarioRegion)
	a := lab.New()
	a.Init(start, scenarioSize)

	c := a.Cursors()
	if c.End <= c.Start {
		return fmt.Errorf("region start %s leaves no bump area below %s", start, lab.DefaultMemoryEnd)
	}
	end := c.End

	var steps []scenarioStep
	record := func(step string, addr, want mem.Addr, ok bool) {
		s := scenarioStep{
			Step:      step,
			LongLive:  a.Cursors().LongLive.String(),
			ShortLive: a.Cursors().ShortLive.String(),
			Available: a.AvailableBytes(),
			PoolUsed:  a.Pool().UsedBytes(),
			OK:        ok,
		}
		if addr != 0 {
			s.Addr = addr.String()
		}
		if want != 0 {
			s.Want = want.String()
		}
		steps = append(steps, s)
	}
	alloc := func(size, alignment uint64) (mem.Addr, error) {
		return a.Alloc(mem.MustLayout(size, alignment))
	}

	record("init", 0, 0, true)

	poolBefore := a.Pool().UsedBytes()
	small, err := alloc(16, 8)
	if err != nil {
		return fmt.Errorf("pool allocation: %w", err)
	}
	record("alloc 16/8 (pool)", small, 0, a.Pool().UsedBytes()-poolBefore >= 16)

	short, err := alloc(64, 16)
	if err != nil {
		return fmt.Errorf("short-lived allocation: %w", err)
	}
	record("alloc 64/16 (short)", short, end-64, short == end-64)

	long, err := alloc(32, 16)
	if err != nil {
		return fmt.Errorf("long-lived allocation: %w", err)
	}
	record("alloc 32/16 (long)", long, c.Start, long == c.Start)

	a.Dealloc(short, mem.MustLayout(64, 16))
	record("free 64/16", 0, 0,
		a.Cursors().ShortLive == end && a.AvailableBytes() == uint64(end-c.Start)-32)

	if jsonOut {
		if err := printJSON(steps); err != nil {
			return err
		}
	} else {
		printInfo("Region %s, pool %s, bump area %s\n\n",
			mem.Region{Start: start, Size: scenarioSize},
			humanize.IBytes(uint64(c.Start-start)),
			humanize.IBytes(a.TotalBytes()))

		rows := make([][]string, 0, len(steps))
		for _, s := range steps {
			mark := render(okStyle, "✓")
			if !s.OK {
				mark = render(failStyle, "✗")
			}
			rows = append(rows, []string{
				mark, s.Step, s.Addr, s.LongLive, s.ShortLive, humanize.Comma(int64(s.Available)),
			})
		}
		printInfo("%s", renderTable(
			[]string{"", "STEP", "ADDR", "LONG", "SHORT", "AVAILABLE"},
			rows,
		))
		printVerbose("%s\n", render(mutedStyle, fmt.Sprintf("%d non-pool calls", a.Calls())))
	}

	for _, s := range steps {
		if !s.OK {
			return errors.New("scenario diverged at " + s.Step)
		}
	}
	return nil
}
