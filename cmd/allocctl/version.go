package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/dustin/go-humanize"
	"github.com/joshuapare/allockit/mem"
	"github.com/joshuapare/allockit/mem/lab"
	"github.com/spf13/cobra"
)

// Set via -ldflags at release time.
var (
	version = "dev"
	commit  = ""
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and the compiled-in allocator defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVersion()
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

type buildInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Built         string `json:"built"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
	PageSize      uint64 `json:"page_size"`
	LabPoolSize   uint64 `json:"lab_pool_size"`
	LabMemoryEnd  string `json:"lab_memory_end"`
	AllocPerRound int    `json:"alloc_per_round"`
}

func currentBuild() buildInfo {
	info := buildInfo{
		Version:       version,
		Commit:        commit,
		Built:         date,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		PageSize:      mem.PageSize4K,
		LabPoolSize:   lab.DefaultPoolSize,
		LabMemoryEnd:  lab.DefaultMemoryEnd.String(),
		AllocPerRound: lab.AllocPerRound,
	}
	// Fall back to the VCS stamp when no -ldflags commit was given.
	if info.Commit == "" {
		info.Commit = "none"
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.Commit = s.Value
				}
			}
		}
	}
	return info
}

func runVersion() error {
	info := currentBuild()
	if jsonOut {
		return printJSON(info)
	}

	fmt.Printf("allocctl %s (%s, %s)\n", info.Version, info.GoVersion, info.Platform)
	fmt.Printf("  commit: %s\n", info.Commit)
	fmt.Printf("  built:  %s\n", info.Built)
	printVerbose("  page size:       %s\n", humanize.IBytes(info.PageSize))
	printVerbose("  lab pool:        %s\n", humanize.IBytes(info.LabPoolSize))
	printVerbose("  lab memory end:  %s\n", info.LabMemoryEnd)
	printVerbose("  alloc per round: %d\n", info.AllocPerRound)
	return nil
}
