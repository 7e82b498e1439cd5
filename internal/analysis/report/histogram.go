package report

import (
	"strings"

	"github.com/onee-only/capstat/internal/analysis/histogram"
)

const (
	barWidth    = 120
	markerWidth = 40
)

// writeHistogram dumps the bins between the first and last non-empty one.
// Marker lines show where the 1st and 99th percentiles fall.
func writeHistogram(w *writer, h *histogram.Histogram) {
	if below := h.Below(); below > 0 {
		w.printf("  Values below range: %d\n", below)
	}

	first, last, ok := h.Span()
	if ok {
		total := h.InRange()
		p1, _ := h.PercentileBin(0.01)
		p99, _ := h.PercentileBin(0.99)
		counts := h.Counts()

		for i := first; i <= last; i++ {
			if i == p1 {
				w.printf("  %s  1%%\n", strings.Repeat("-", markerWidth))
			}

			lo, hi := h.BinBounds(i)
			w.printf("  %12.5f to %12.5f | %s", lo, hi, bar(counts[i], total))
			if counts[i] > 0 {
				w.printf(" %d", counts[i])
			}
			w.printf("\n")

			if i == p99 {
				w.printf("  %s 99%%\n", strings.Repeat("-", markerWidth))
			}
		}
	}

	if above := h.Above(); above > 0 {
		w.printf("  Values above range: %d\n", above)
	}
}

// bar scales count against total to at most barWidth columns. A non-empty
// bin always gets at least one column.
func bar(count, total uint64) string {
	if count == 0 || total == 0 {
		return ""
	}

	n := int(float64(count) / float64(total) * barWidth)
	if n == 0 {
		n = 1
	}
	return strings.Repeat("#", n)
}
