package main

import (
	"context"
	"encoding/json"
	"testing"
)

func setRunFlags(allocators []string, workload string) {
	resetFlags()
	runAllocators = allocators
	runWorkload = workload
	runSize = "2MiB"
	runCount = 2000
	runSeed = 1
	runMaxSize = "256B"
	runNoDrain = false
	runLang = "en"
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name           string
		allocators     []string
		workload       string
		verbose        bool
		wantErr        bool
		wantContain    []string
		wantNotContain []string
	}{
		{
			name:        "lab mixed",
			allocators:  []string{"lab"},
			workload:    "mixed",
			wantContain: []string{"ALLOCATOR", "lab", "clean"},
		},
		{
			name:           "all allocators",
			allocators:     []string{"all"},
			workload:       "random",
			wantContain:    []string{"early", "lab", "pool"},
			wantNotContain: []string{"violations"},
		},
		{
			name:        "verbose report",
			allocators:  []string{"pool"},
			workload:    "lifo",
			verbose:     true,
			wantContain: []string{"Generated", "workload:    lifo", "allocator:   pool", "ops:"},
		},
		{
			name:       "unknown workload",
			allocators: []string{"lab"},
			workload:   "stack",
			wantErr:    true,
		},
		{
			name:       "unknown allocator",
			allocators: []string{"buddy"},
			workload:   "mixed",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRunFlags(tt.allocators, tt.workload)
			verbose = tt.verbose

			output, err := captureOutput(t, func() error {
				return runRun(context.Background())
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("runRun() error = %v, wantErr %v", err, tt.wantErr)
			}
			assertContains(t, output, tt.wantContain)
			assertNotContains(t, output, tt.wantNotContain)
		})
	}
}

func TestRunCommandJSON(t *testing.T) {
	setRunFlags([]string{"early", "pool"}, "fifo")
	jsonOut = true

	output, err := captureOutput(t, func() error {
		return runRun(context.Background())
	})
	if err != nil {
		t.Fatalf("runRun() error = %v", err)
	}
	assertJSON(t, output)

	var reports []struct {
		Allocator string
		Workload  string
		Allocs    int
		Frees     int
		Leaked    int
	}
	if err := json.Unmarshal([]byte(output), &reports); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	for _, r := range reports {
		if r.Workload != "fifo" || r.Allocs != r.Frees || r.Leaked != 0 {
			t.Errorf("unexpected report %+v", r)
		}
	}
}

func TestRunCommandBadFlags(t *testing.T) {
	for _, mutate := range []func(){
		func() { runSize = "lots" },
		func() { runMaxSize = "-1" },
		func() { runLang = "!!" },
	} {
		setRunFlags([]string{"lab"}, "mixed")
		mutate()
		if _, err := captureOutput(t, func() error { return runRun(context.Background()) }); err == nil {
			t.Error("expected flag validation error")
		}
	}
}

func TestRunCommandCanceled(t *testing.T) {
	setRunFlags([]string{"lab"}, "mixed")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := captureOutput(t, func() error { return runRun(ctx) })
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
