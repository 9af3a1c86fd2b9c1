package main

import (
	"fmt"
	"strconv"

	"github.com/joshuapare/allockit/mem/lab"
	"github.com/spf13/cobra"
)

var (
	policyCalls int
	policyRound int
)

func init() {
	rootCmd.AddCommand(newPolicyCmd())
}

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the lab allocator's lifetime classification",
		Long: `The policy command lists which bump side each of the first N non-pool
requests is routed to. Requests aligned to exactly 8 bytes go to the pool and do
not count.

Example:
  allocctl policy --calls 30
  allocctl policy --round 7 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicy()
		},
	}
	cmd.Flags().IntVarP(&policyCalls, "calls", "n", 2*lab.AllocPerRound, "Number of calls to classify")
	cmd.Flags().IntVar(&policyRound, "round", lab.AllocPerRound, "Round length")
	return cmd
}

type policyEntry struct {
	Call     int    `json:"call"`
	Round    int    `json:"round"`
	Position int    `json:"position"`
	Lifetime string `json:"lifetime"`
}

func runPolicy() error {
	if policyCalls < 0 || policyRound < 1 {
		return fmt.Errorf("--calls must be >= 0 and --round >= 1")
	}

	entries := make([]policyEntry, 0, policyCalls)
	short := 0
	for n := 1; n <= policyCalls; n++ {
		kind := lab.Classify(uint64(n), policyRound)
		if kind == lab.ShortLived {
			short++
		}
		entries = append(entries, policyEntry{
			Call:     n,
			Round:    (n-1)/policyRound + 1,
			Position: (n-1)%policyRound + 1,
			Lifetime: kind.String(),
		})
	}

	if jsonOut {
		return printJSON(entries)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Call), strconv.Itoa(e.Round), strconv.Itoa(e.Position), e.Lifetime,
		})
	}
	printInfo("%s", renderTable([]string{"CALL", "ROUND", "POS", "LIFETIME"}, rows))
	printInfo("\n%d short-lived, %d long-lived\n", short, policyCalls-short)
	return nil
}
