package latency

import (
	"sort"

	"github.com/onee-only/capstat/internal/analysis/histogram"
	"github.com/onee-only/capstat/internal/container"
)

// GroupKey identifies a message type.
type GroupKey struct {
	Transport container.Transport
	MessageID uint64
}

// Extreme is a minimum or maximum latency and the pair it came from.
type Extreme struct {
	LatencyMs      float64
	PacketNumber   uint64
	SequenceNumber uint64
}

type Summary struct {
	GroupKey

	Count  int
	Min    Extreme
	Max    Extreme
	MeanMs float64

	Histogram *histogram.Histogram

	// Pairs are the resolved pairs ordered by the packet number of the
	// request.
	Pairs      []Pair
	OutOfRange []Pair
	Unresolved []Pair
	Pending    int
}

// Finalize groups the pairs by message type and computes the statistics.
// Groups without a resolved pair are left out. Summaries are ordered TCP
// first, then by message id.
func (e *Engine) Finalize() []Summary {
	groups := make(map[GroupKey]*Summary)

	keys := make([]Key, 0, len(e.records))
	for k := range e.records {
		keys = append(keys, k)
	}
	// stable listing order inside a group
	sort.Slice(keys, func(i, j int) bool {
		return e.records[keys[i]].First.PacketNumber < e.records[keys[j]].First.PacketNumber
	})

	for _, k := range keys {
		rec := e.records[k]
		gk := GroupKey{Transport: k.Transport, MessageID: rec.MessageID}

		s, ok := groups[gk]
		if !ok {
			s = &Summary{GroupKey: gk, Histogram: e.template.Empty()}
			groups[gk] = s
		}

		pair := Pair{Key: k, Record: *rec}
		switch rec.State {
		case StatePending:
			s.Pending++
		case StateUnresolved:
			s.Unresolved = append(s.Unresolved, pair)
		case StateResolved:
			s.add(pair)
		}
	}

	summaries := make([]Summary, 0, len(groups))
	for _, s := range groups {
		if s.Count == 0 {
			continue
		}
		s.MeanMs /= float64(s.Count)
		summaries = append(summaries, *s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].GroupKey, summaries[j].GroupKey
		if a.Transport != b.Transport {
			return a.Transport < b.Transport
		}
		return a.MessageID < b.MessageID
	})

	return summaries
}

// add accumulates a resolved pair. MeanMs holds the running sum until
// Finalize divides it.
func (s *Summary) add(p Pair) {
	ext := Extreme{
		LatencyMs:      p.LatencyMs,
		PacketNumber:   p.First.PacketNumber,
		SequenceNumber: p.SequenceNumber,
	}

	if s.Count == 0 || p.LatencyMs < s.Min.LatencyMs {
		s.Min = ext
	}
	if s.Count == 0 || p.LatencyMs > s.Max.LatencyMs {
		s.Max = ext
	}

	s.Count++
	s.MeanMs += p.LatencyMs
	s.Pairs = append(s.Pairs, p)

	if !s.Histogram.Add(p.LatencyMs) {
		s.OutOfRange = append(s.OutOfRange, p)
	}
}
