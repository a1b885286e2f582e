package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary counts the outcomes of a Run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Cancelled int
	Bytes     int64
	Duration  time.Duration
}

// OK reports whether every scheduled task either succeeded or was skipped.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Cancelled == 0
}

// Print writes the summary to w.
func (s Summary) Print(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\nSummary\n")
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "  Skipped:   %d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "  Failed:    %d\n", s.Failed)
	if s.Cancelled > 0 {
		_, _ = fmt.Fprintf(w, "  Cancelled: %d\n", s.Cancelled)
	}
	_, _ = fmt.Fprintf(w, "  Written:   %s\n", humanBytes(s.Bytes))
	_, _ = fmt.Fprintf(w, "  Duration:  %s\n", s.Duration.Round(time.Millisecond))
}

func humanBytes(n int64) string {
	return humanize.IBytes(uint64(max(0, n))) //nolint:gosec // clamped to non-negative
}
