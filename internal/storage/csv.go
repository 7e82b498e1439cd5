package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	latencyHeader = []string{
		"First Packet Number", "Second Packet Number", "Sequence Number",
		"First Packet Timestamp", "Second Packet Timestamp", "Latency (ms)",
	}
	burstHeader = []string{
		"Packet Number", "Sequence Number", "Packet Timestamp (s)", "Packet Timestamp Delta (ms)",
	}
)

// CSVStorage writes one CSV file per latency group and per burst key next
// to the input, or into dir when set.
type CSVStorage struct {
	dir string

	// files written so far
	files []string
}

var _ Exporter = (*CSVStorage)(nil)

func NewCSVStorage(dir string) *CSVStorage {
	return &CSVStorage{dir: dir}
}

func (s *CSVStorage) Export(ctx context.Context, run *Run) error {
	base := run.Input
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return errors.Wrap(err, "csv storage: creating export dir")
		}
		base = filepath.Join(s.dir, filepath.Base(run.Input))
	}

	for _, summary := range run.Latency {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := fmt.Sprintf("%s.MessageId%d.%s.LatencyAnalysis.csv",
			base, summary.MessageID, strings.ToUpper(summary.Transport.String()))

		rows := make([][]string, 0, len(summary.Pairs))
		for _, p := range summary.Pairs {
			rows = append(rows, []string{
				strconv.FormatUint(p.First.PacketNumber, 10),
				strconv.FormatUint(p.Second.PacketNumber, 10),
				strconv.FormatUint(p.SequenceNumber, 10),
				formatFloat(p.First.Timestamp),
				formatFloat(p.Second.Timestamp),
				formatFloat(p.LatencyMs),
			})
		}

		if err := s.write(name, latencyHeader, rows); err != nil {
			return err
		}
	}

	for _, summary := range run.Burst {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := fmt.Sprintf("%s.HostId%d.%s.%s.MessageId%d.BurstAnalysis.csv",
			base, summary.HostID, reliability(summary.Reliable), direction(summary.Outgoing), summary.MessageID)

		rows := make([][]string, 0, len(summary.Rows))
		for _, r := range summary.Rows {
			delta := ""
			if r.HasDelta {
				delta = formatFloat(r.DeltaMs)
			}
			rows = append(rows, []string{
				strconv.FormatUint(r.PacketNumber, 10),
				strconv.FormatUint(r.SequenceNumber, 10),
				formatFloat(r.Timestamp),
				delta,
			})
		}

		if err := s.write(name, burstHeader, rows); err != nil {
			return err
		}
	}

	return nil
}

func (s *CSVStorage) write(name string, header []string, rows [][]string) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "csv storage: creating file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "csv storage: writing header")
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "csv storage: writing rows")
	}

	if err := f.Close(); err != nil {
		return errors.Wrap(err, "csv storage: closing file")
	}

	s.files = append(s.files, name)
	return nil
}

// Files returns the paths written so far.
func (s *CSVStorage) Files() []string {
	return append([]string(nil), s.files...)
}

func (s *CSVStorage) Close() error { return nil }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
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
