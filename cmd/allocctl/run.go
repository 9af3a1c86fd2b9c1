package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/joshuapare/allockit/bench"
	"github.com/joshuapare/allockit/internal/arena"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

var (
	runAllocators []string
	runWorkload   string
	runSize       string
	runCount      int
	runSeed       int64
	runMaxSize    string
	runNoDrain    bool
	runLang       string
)

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a generated workload against one or more allocators",
		Long: `The run command maps an anonymous arena, initializes each allocator over it,
and replays a generated workload through a checking wrapper that flags overlapping,
misaligned or mismatched allocations. Every allocation is filled through the arena,
so an address outside the mapping is reported as an error.

Example:
  allocctl run
  allocctl run --allocator all --workload random --size 16MiB
  allocctl run --allocator lab --workload mixed --count 100000 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context())
		},
	}

	cmd.Flags().StringSliceVarP(&runAllocators, "allocator", "a", []string{"lab"},
		fmt.Sprintf("Allocators to run (%v or all)", bench.Allocators))
	cmd.Flags().StringVarP(&runWorkload, "workload", "w", "mixed",
		fmt.Sprintf("Workload shape (%v)", bench.Kinds))
	cmd.Flags().StringVar(&runSize, "size", "4MiB", "Arena size")
	cmd.Flags().IntVarP(&runCount, "count", "n", bench.DefaultOptions.Count, "Number of allocations")
	cmd.Flags().Int64Var(&runSeed, "seed", bench.DefaultOptions.Seed, "Workload seed")
	cmd.Flags().StringVar(&runMaxSize, "max-size", "512B", "Largest single request")
	cmd.Flags().BoolVar(&runNoDrain, "no-drain", false, "Leave live allocations unfreed at the end")
	cmd.Flags().StringVar(&runLang, "lang", "en", "Language tag for number formatting")
	return cmd
}

func runRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	kind, err := bench.ParseKind(runWorkload)
	if err != nil {
		return err
	}
	size, err := humanize.ParseBytes(runSize)
	if err != nil {
		return fmt.Errorf("invalid --size: %w", err)
	}
	maxSize, err := humanize.ParseBytes(runMaxSize)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	tag, err := language.Parse(runLang)
	if err != nil {
		return fmt.Errorf("invalid --lang: %w", err)
	}

	names := runAllocators
	if slices.Contains(names, "all") {
		names = bench.Allocators
	}

	ops := bench.Generate(kind, bench.Options{
		Seed:    runSeed,
		Count:   runCount,
		MaxSize: maxSize,
		Drain:   !runNoDrain,
	})
	printVerbose("Generated %d ops (%s, seed %d)\n", len(ops), kind, runSeed)

	reports := make([]bench.Report, 0, len(names))
	for _, name := range names {
		rep, err := runOne(ctx, name, size, ops)
		if err != nil {
			return err
		}
		rep.Workload = kind.String()
		reports = append(reports, rep)
	}

	if jsonOut {
		return printJSON(reports)
	}

	rows := make([][]string, 0, len(reports))
	for _, rep := range reports {
		status := render(okStyle, "clean")
		if !rep.Clean() {
			status = render(failStyle, strconv.Itoa(len(rep.Violations))+" violations")
		}
		rows = append(rows, []string{
			rep.Allocator,
			humanize.Comma(int64(rep.Ops)),
			humanize.Comma(int64(rep.Failures)),
			humanize.IBytes(rep.PeakLive),
			humanize.IBytes(rep.PeakUsed),
			strconv.Itoa(rep.Leaked),
			rep.Elapsed.String(),
			status,
		})
	}
	printInfo("%s", renderTable(
		[]string{"ALLOCATOR", "OPS", "FAILED", "PEAK LIVE", "PEAK USED", "LEAKED", "ELAPSED", "STATUS"},
		rows,
	))

	if verbose && !quiet {
		for _, rep := range reports {
			fmt.Fprintln(os.Stdout)
			if err := rep.Format(os.Stdout, tag); err != nil {
				return err
			}
		}
	}

	for _, rep := range reports {
		if !rep.Clean() {
			return fmt.Errorf("%s: %d contract violations", rep.Allocator, len(rep.Violations))
		}
	}
	return nil
}

func runOne(ctx context.Context, name string, size uint64, ops []bench.Op) (bench.Report, error) {
	ar, err := arena.New(size)
	if err != nil {
		return bench.Report{}, err
	}
	defer ar.Close()

	a, err := bench.NewAllocator(name, size, nil)
	if err != nil {
		return bench.Report{}, err
	}
	r := ar.Region()
	printVerbose("Running %s over %s (%s)\n", name, r, humanize.IBytes(r.Size))
	a.Init(r.Start, r.Size)

	rep, err := bench.Run(ctx, a, ops, bench.RunOptions{Arena: ar, Fill: 0xa5})
	if err != nil {
		return rep, fmt.Errorf("%s: %w", name, err)
	}
	rep.Allocator = name
	return rep, nil
}
