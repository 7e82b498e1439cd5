package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onee-only/capstat/internal/analysis/burst"
	"github.com/onee-only/capstat/internal/analysis/histogram"
	"github.com/onee-only/capstat/internal/analysis/latency"
	"github.com/onee-only/capstat/internal/container"
	"github.com/onee-only/capstat/internal/logger"
)

func observation(host uint8, seq, msgID, packet uint64, ts float64, fp uint64) container.Observation {
	return container.Observation{
		HostID:         host,
		Transport:      container.TransportTCP,
		Outgoing:       true,
		SequenceNumber: seq,
		MessageID:      msgID,
		PacketNumber:   packet,
		Timestamp:      ts,
		Fingerprint:    fp,
	}
}

func sampleReport(t *testing.T) *Report {
	t.Helper()

	lat, err := latency.New(latency.DefaultOptions(), logger.Discard())
	require.NoError(t, err)
	bur, err := burst.New(burst.DefaultOptions(), logger.Discard())
	require.NoError(t, err)

	feed := []container.Observation{
		observation(5, 42, 7, 1, 10.0, 1),
		observation(5, 42, 7, 2, 10.0005, 2),
		observation(5, 43, 7, 3, 11.0, 3),
		observation(5, 43, 7, 4, 11.2, 4),
		observation(5, 44, 7, 5, 11.2, 4),
	}
	for _, o := range feed {
		lat.Register(o)
		bur.Register(o)
	}

	return &Report{
		Input:   "capture.pcap",
		Packets: 5,
		Latency: lat.Finalize(),
		Burst:   bur.Finalize(),
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(t), Options{Histograms: true}))

	out := buf.String()
	assert.Contains(t, out, "Capture capture.pcap: 5 packets")
	assert.Contains(t, out, "Latency Analysis\n================")
	assert.Contains(t, out, "Message Id 0x0007 (tcp)")
	assert.Contains(t, out, "Minimum:  0.500000 ms (packet 1, sequence 42)")
	assert.Contains(t, out, "Out of range:\n    sequence 43: 200.000000 ms (packets 3 and 4)")

	assert.Contains(t, out, "Burst Analysis")
	assert.Contains(t, out, "Host Id 5, Reliable, Outgoing, Message Id 0x0007")
	assert.Contains(t, out, "Messages: 5")
	assert.Contains(t, out, "packet 5 (sequence 44): 0.000000 ms after packet 4, identical payload")
	assert.Contains(t, out, "  1%")
	assert.Contains(t, out, " 99%")

	assert.Less(t, strings.Index(out, "Latency Analysis"), strings.Index(out, "Burst Analysis"))
}

func TestWrite_SkipsDisabledSections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Report{Input: "x", Burst: []burst.Summary{}}, Options{}))

	out := buf.String()
	assert.NotContains(t, out, "Latency Analysis")
	assert.Contains(t, out, "Burst Analysis")
	assert.Contains(t, out, "No messages found.")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_PropagatesWriteError(t *testing.T) {
	err := Write(failingWriter{}, &Report{Input: "x"}, Options{})
	assert.EqualError(t, err, "disk full")
}

func TestWriteHistogram_Markers(t *testing.T) {
	h, err := histogram.New(0, 10, 1)
	require.NoError(t, err)

	h.Add(-1)
	for i := 0; i < 98; i++ {
		h.Add(4.5)
	}
	h.Add(2.5)
	h.Add(7.5)
	h.Add(42)

	var buf bytes.Buffer
	w := &writer{w: &buf}
	writeHistogram(w, h)
	require.NoError(t, w.err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 10)

	assert.Equal(t, "  Values below range: 1", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "  1%"))
	assert.Contains(t, lines[2], "2.00000 to      3.00000 | # 1")
	assert.True(t, strings.HasSuffix(lines[3], "4.00000 | "))
	assert.Contains(t, lines[4], "| "+strings.Repeat("#", 117)+" 98")
	assert.True(t, strings.HasSuffix(lines[5], "99%"))
	assert.Contains(t, lines[8], "7.00000 to      8.00000 | # 1")
	assert.Equal(t, "  Values above range: 1", lines[9])
}

func TestBar(t *testing.T) {
	assert.Equal(t, "", bar(0, 10))
	assert.Equal(t, "#", bar(1, 1000))
	assert.Equal(t, strings.Repeat("#", 120), bar(5, 5))
	assert.Equal(t, strings.Repeat("#", 60), bar(1, 2))
}
