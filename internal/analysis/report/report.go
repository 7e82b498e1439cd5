// Package report renders analysis summaries as plain text.
package report

import (
	"fmt"
	"io"

	"github.com/onee-only/capstat/internal/analysis/burst"
	"github.com/onee-only/capstat/internal/analysis/latency"
)

type Options struct {
	// Histograms adds a histogram dump to every group.
	Histograms bool
}

// Report holds the summaries of one run. A nil slice means the analysis was
// not run; an empty one means it found nothing.
type Report struct {
	Input   string
	Packets uint64

	Latency []latency.Summary
	Burst   []burst.Summary
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) printf(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

func (w *writer) heading(title string) {
	w.printf("\n%s\n", title)
	for range title {
		w.printf("=")
	}
	w.printf("\n")
}

// Write renders r to out.
func Write(out io.Writer, r *Report, opts Options) error {
	w := &writer{w: out}

	w.printf("Capture %s: %d packets\n", r.Input, r.Packets)

	if r.Latency != nil {
		writeLatency(w, r.Latency, opts)
	}
	if r.Burst != nil {
		writeBurst(w, r.Burst, opts)
	}

	return w.err
}

func writeLatency(w *writer, summaries []latency.Summary, opts Options) {
	w.heading("Latency Analysis")
	if len(summaries) == 0 {
		w.printf("No request/response pairs found.\n")
		return
	}

	for _, s := range summaries {
		w.printf("\nMessage Id 0x%04x (%s)\n", s.MessageID, s.Transport)
		w.printf("  Pairs:    %d (pending %d, unresolved %d)\n", s.Count, s.Pending, len(s.Unresolved))
		w.printf("  Minimum:  %.6f ms (packet %d, sequence %d)\n", s.Min.LatencyMs, s.Min.PacketNumber, s.Min.SequenceNumber)
		w.printf("  Maximum:  %.6f ms (packet %d, sequence %d)\n", s.Max.LatencyMs, s.Max.PacketNumber, s.Max.SequenceNumber)
		w.printf("  Average:  %.6f ms\n", s.MeanMs)

		if opts.Histograms {
			w.printf("\n")
			writeHistogram(w, s.Histogram)
		}

		if len(s.OutOfRange) > 0 {
			w.printf("\n  Out of range:\n")
			for _, p := range s.OutOfRange {
				w.printf("    sequence %d: %.6f ms (packets %d and %d)\n",
					p.SequenceNumber, p.LatencyMs, p.First.PacketNumber, p.Second.PacketNumber)
			}
		}

		if len(s.Unresolved) > 0 {
			w.printf("\n  Unresolved:\n")
			for _, p := range s.Unresolved {
				w.printf("    sequence %d: packet %d precedes packet %d\n",
					p.SequenceNumber, p.Second.PacketNumber, p.First.PacketNumber)
			}
		}
	}
}

func writeBurst(w *writer, summaries []burst.Summary, opts Options) {
	w.heading("Burst Analysis")
	if len(summaries) == 0 {
		w.printf("No messages found.\n")
		return
	}

	for _, s := range summaries {
		w.printf("\nHost Id %d, %s, %s, Message Id 0x%04x\n",
			s.HostID, reliability(s.Reliable), direction(s.Outgoing), s.MessageID)
		w.printf("  Messages: %d\n", s.Count)

		if s.Measured > 0 {
			w.printf("  Minimum:  %.6f ms (packet %d, sequence %d)\n", s.Min.DeltaMs, s.Min.PacketNumber, s.Min.SequenceNumber)
			w.printf("  Maximum:  %.6f ms (packet %d, sequence %d)\n", s.Max.DeltaMs, s.Max.PacketNumber, s.Max.SequenceNumber)
			w.printf("  Average:  %.6f ms\n", s.MeanMs)
		}
		if s.RateHz > 0 {
			w.printf("  Rate:     %.3f Hz\n", s.RateHz)
		}

		if opts.Histograms && s.Measured > 0 {
			w.printf("\n")
			writeHistogram(w, s.Histogram)
		}

		if len(s.OutOfRange) > 0 {
			w.printf("\n  Out of range:\n")
			for _, d := range s.OutOfRange {
				w.printf("    packet %d (sequence %d): %.6f ms after packet %d\n",
					d.Entry.PacketNumber, d.Entry.SequenceNumber, d.DeltaMs, d.Prev.PacketNumber)
			}
		}

		if len(s.Duplicates) > 0 {
			w.printf("\n  Duplicates:\n")
			for _, d := range s.Duplicates {
				note := ""
				if d.IdenticalPayload() {
					note = ", identical payload"
				}
				w.printf("    packet %d (sequence %d): %.6f ms after packet %d%s\n",
					d.Entry.PacketNumber, d.Entry.SequenceNumber, d.DeltaMs, d.Prev.PacketNumber, note)
			}
		}
	}
}

func reliability(reliable bool) string {
	if reliable {
		return "Reliable"
	}
	return "NonReliable"
}

func direction(outgoing bool) string {
	if outgoing {
		return "Outgoing"
	}
	return "Incoming"
}
