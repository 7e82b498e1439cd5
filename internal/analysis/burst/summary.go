package burst

import (
	"math"
	"sort"

	"github.com/onee-only/capstat/internal/analysis/histogram"
)

// Extreme is a minimum or maximum delta and the entry that closed it.
type Extreme struct {
	DeltaMs        float64
	PacketNumber   uint64
	SequenceNumber uint64
}

// Delta is the gap between an entry and the one before it.
type Delta struct {
	Prev    Entry
	Entry   Entry
	DeltaMs float64
}

// IdenticalPayload reports whether both frames carried the same message bytes.
func (d Delta) IdenticalPayload() bool { return d.Prev.Fingerprint == d.Entry.Fingerprint }

// Row is an entry with the delta to its predecessor. The first row of a
// group has no delta.
type Row struct {
	Entry
	DeltaMs  float64
	HasDelta bool
}

type Summary struct {
	Key

	Count int
	// Measured counts the deltas that fed the statistics, duplicates excluded.
	Measured int
	Min      Extreme
	Max      Extreme
	MeanMs   float64
	RateHz   float64

	// Histogram is read only. Groups without deltas share one empty
	// histogram.
	Histogram *histogram.Histogram

	Rows       []Row
	OutOfRange []Delta
	Duplicates []Delta
}

// Finalize computes the per-key statistics. Summaries are ordered by host,
// reliable before non-reliable, message id, and outgoing before incoming.
func (e *Engine) Finalize() []Summary {
	keys := make([]Key, 0, len(e.entries))
	for k := range e.entries {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.HostID != b.HostID:
			return a.HostID < b.HostID
		case a.Reliable != b.Reliable:
			return a.Reliable
		case a.MessageID != b.MessageID:
			return a.MessageID < b.MessageID
		}
		return a.Outgoing && !b.Outgoing
	})

	summaries := make([]Summary, 0, len(keys))
	for _, k := range keys {
		summaries = append(summaries, e.summarise(k, e.entries[k]))
	}
	return summaries
}

func (e *Engine) summarise(k Key, entries []Entry) Summary {
	s := Summary{
		Key:       k,
		Count:     len(entries),
		Histogram: e.template,
		Rows:      make([]Row, 0, len(entries)),
	}
	if len(entries) > 1 {
		s.Histogram = e.template.Empty()
	}

	var sum float64
	for i, entry := range entries {
		if i == 0 {
			s.Rows = append(s.Rows, Row{Entry: entry})
			continue
		}

		d := Delta{
			Prev:    entries[i-1],
			Entry:   entry,
			DeltaMs: (entry.Timestamp - entries[i-1].Timestamp) * 1000,
		}
		s.Rows = append(s.Rows, Row{Entry: entry, DeltaMs: d.DeltaMs, HasDelta: true})

		if math.Abs(d.DeltaMs) < e.threshold {
			s.Histogram.RecordBelow()
			s.Duplicates = append(s.Duplicates, d)
			continue
		}

		if !s.Histogram.Add(d.DeltaMs) {
			s.OutOfRange = append(s.OutOfRange, d)
		}

		ext := Extreme{
			DeltaMs:        d.DeltaMs,
			PacketNumber:   entry.PacketNumber,
			SequenceNumber: entry.SequenceNumber,
		}
		if s.Measured == 0 || d.DeltaMs < s.Min.DeltaMs {
			s.Min = ext
		}
		if s.Measured == 0 || d.DeltaMs > s.Max.DeltaMs {
			s.Max = ext
		}
		s.Measured++
		sum += d.DeltaMs
	}

	if s.Measured > 0 {
		s.MeanMs = sum / float64(s.Measured)
	}
	if s.MeanMs > 0 {
		s.RateHz = 1000 / s.MeanMs
	}
	return s
}
