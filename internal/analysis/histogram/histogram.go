// Package histogram implements a fixed-resolution binned counter over a
// bounded range. Samples outside the range are counted, never dropped.
package histogram

import (
	"math"

	"github.com/pkg/errors"
)

type Histogram struct {
	lower, upper float64
	binsPerUnit  float64

	counts       []uint64
	below, above uint64
}

// New creates a histogram over [lower, upper) with binsPerUnit bins per unit of value.
func New(lower, upper float64, binsPerUnit uint) (*Histogram, error) {
	if !(lower < upper) {
		return nil, errors.Errorf("histogram: invalid range [%g, %g)", lower, upper)
	}
	if binsPerUnit == 0 {
		return nil, errors.New("histogram: bins per unit must be positive")
	}

	n := int(math.Ceil((upper - lower) * float64(binsPerUnit)))

	return &Histogram{
		lower:       lower,
		upper:       upper,
		binsPerUnit: float64(binsPerUnit),
		counts:      make([]uint64, n),
	}, nil
}

// Empty returns a histogram with the same bins and no samples.
func (h *Histogram) Empty() *Histogram {
	return &Histogram{
		lower:       h.lower,
		upper:       h.upper,
		binsPerUnit: h.binsPerUnit,
		counts:      make([]uint64, len(h.counts)),
	}
}

// Add counts v. It reports false when v fell outside the range.
func (h *Histogram) Add(v float64) bool {
	switch {
	case math.IsNaN(v), v < h.lower:
		h.below++
		return false
	case v >= h.upper:
		h.above++
		return false
	}

	idx := int(math.Floor((v - h.lower) * h.binsPerUnit))
	if idx >= len(h.counts) {
		idx = len(h.counts) - 1
	}
	h.counts[idx]++
	return true
}

// RecordBelow counts a sample as out of range low without a value.
func (h *Histogram) RecordBelow() { h.below++ }

func (h *Histogram) Counts() []uint64 {
	out := make([]uint64, len(h.counts))
	copy(out, h.counts)
	return out
}

func (h *Histogram) NumBins() int { return len(h.counts) }

// Range returns the [lower, upper) bounds.
func (h *Histogram) Range() (lower, upper float64) { return h.lower, h.upper }

func (h *Histogram) Below() uint64 { return h.below }

func (h *Histogram) Above() uint64 { return h.above }

// InRange returns the number of samples that landed in a bin.
func (h *Histogram) InRange() (n uint64) {
	for _, c := range h.counts {
		n += c
	}
	return n
}

// Fed returns every sample counted, in range or not.
func (h *Histogram) Fed() uint64 {
	return h.InRange() + h.below + h.above
}

// BinBounds returns the [lo, hi) value range of bin i.
func (h *Histogram) BinBounds(i int) (lo, hi float64) {
	lo = h.lower + float64(i)/h.binsPerUnit
	hi = h.lower + float64(i+1)/h.binsPerUnit
	return lo, hi
}

// PercentileBin returns the bin at which the cumulative in-range count
// first reaches fraction p of all in-range samples.
func (h *Histogram) PercentileBin(p float64) (int, bool) {
	total := h.InRange()
	if total == 0 {
		return 0, false
	}

	target := math.Ceil(p * float64(total))
	if target < 1 {
		target = 1
	}

	var cum uint64
	for i, c := range h.counts {
		cum += c
		if float64(cum) >= target {
			return i, true
		}
	}
	return len(h.counts) - 1, true
}

// Span returns the first and last non-empty bins.
func (h *Histogram) Span() (first, last int, ok bool) {
	first, last = -1, -1
	for i, c := range h.counts {
		if c == 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	return first, last, first >= 0
}
