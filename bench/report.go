package bench

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Clean reports whether the replay found no contract violations.
func (r Report) Clean() bool { return len(r.Violations) == 0 }

// Throughput returns ops per second, or zero if no time elapsed.
func (r Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

// Format writes a human-readable summary with numbers localized for tag.
func (r Report) Format(w io.Writer, tag language.Tag) error {
	p := message.NewPrinter(tag)

	lines := []struct {
		key string
		val string
	}{
		{"workload", r.Workload},
		{"allocator", r.Allocator},
		{"ops", p.Sprintf("%d", r.Ops)},
		{"allocs", p.Sprintf("%d", r.Allocs)},
		{"frees", p.Sprintf("%d", r.Frees)},
		{"failures", p.Sprintf("%d", r.Failures)},
		{"requested", p.Sprintf("%d bytes", r.BytesRequested)},
		{"peak live", p.Sprintf("%d bytes", r.PeakLive)},
		{"peak used", p.Sprintf("%d bytes", r.PeakUsed)},
		{"leaked", p.Sprintf("%d", r.Leaked)},
		{"violations", p.Sprintf("%d", len(r.Violations))},
		{"elapsed", r.Elapsed.Round(time.Microsecond).String()},
		{"throughput", p.Sprintf("%.0f ops/s", r.Throughput())},
	}
	for _, l := range lines {
		if l.val == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-12s %s\n", l.key+":", l.val); err != nil {
			return err
		}
	}
	for _, v := range r.Violations {
		if _, err := fmt.Fprintf(w, "  %s\n", v); err != nil {
			return err
		}
	}
	return nil
}
