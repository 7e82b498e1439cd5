// Package latency pairs requests with their responses and summarises the
// round-trip latency per message type.
package latency

import (
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/analysis/histogram"
	"github.com/onee-only/capstat/internal/config"
	"github.com/onee-only/capstat/internal/container"
	apperrors "github.com/onee-only/capstat/internal/errors"
	"github.com/onee-only/capstat/internal/metrics"
)

const engineName = "latency"

// Anomaly kinds reported to metrics.
const (
	AnomalyZeroField         = "zero_field"
	AnomalyReversed          = "reversed"
	AnomalyDuplicateResponse = "duplicate_response"
)

type Options struct {
	LowerMs   float64
	UpperMs   float64
	BinsPerMs uint
}

func DefaultOptions() Options {
	return Options{
		LowerMs:   config.LatencyRangeLowMs,
		UpperMs:   config.LatencyRangeHighMs,
		BinsPerMs: config.LatencyBinsPerMs,
	}
}

type Engine struct {
	log      logrus.FieldLogger
	template *histogram.Histogram

	records map[Key]*Record
}

func New(opts Options, log logrus.FieldLogger) (*Engine, error) {
	h, err := histogram.New(opts.LowerMs, opts.UpperMs, opts.BinsPerMs)
	if err != nil {
		return nil, err
	}

	return &Engine{
		log:      log,
		template: h,
		records:  make(map[Key]*Record),
	}, nil
}

// Register feeds one observation. The first sighting of a key opens a pair,
// the second resolves it, and anything after that is discarded.
func (e *Engine) Register(obs container.Observation) {
	if obs.HostID == 0 || obs.SequenceNumber == 0 || obs.MessageID == 0 {
		e.anomaly(logrus.DebugLevel, AnomalyZeroField, obs,
			"latency: observation with a zero host, sequence number or message id")
		return
	}

	key := Key{
		HostID:         obs.HostID,
		Transport:      obs.Transport,
		SequenceNumber: obs.SequenceNumber,
	}
	sighting := Sighting{PacketNumber: obs.PacketNumber, Timestamp: obs.Timestamp}

	rec, ok := e.records[key]
	if !ok {
		e.records[key] = &Record{
			MessageID: obs.MessageID,
			First:     sighting,
			State:     StatePending,
		}
		return
	}

	if rec.State != StatePending {
		e.anomaly(logrus.InfoLevel, AnomalyDuplicateResponse, obs,
			"latency: duplicate response, pair already %s", rec.State)
		return
	}

	rec.Second = &sighting
	if sighting.Timestamp < rec.First.Timestamp {
		rec.State = StateUnresolved
		e.anomaly(logrus.InfoLevel, AnomalyReversed, obs,
			"latency: response precedes request at packet %d", rec.First.PacketNumber)
		return
	}

	rec.State = StateResolved
	rec.LatencyMs = (sighting.Timestamp - rec.First.Timestamp) * 1000
}

func (e *Engine) anomaly(level logrus.Level, kind string, obs container.Observation, format string, args ...interface{}) {
	metrics.Anomaly(engineName, kind)

	err := apperrors.NewCorrelationAnomaly(format, args...).
		WithDetails(map[string]interface{}{"kind": kind})

	e.log.WithFields(logrus.Fields{
		"packet":          obs.PacketNumber,
		"host_id":         obs.HostID,
		"transport":       obs.Transport.String(),
		"sequence_number": obs.SequenceNumber,
		"message_id":      obs.MessageID,
		"kind":            kind,
	}).Log(level, err.Error())
}

// Len returns the number of keys seen so far.
func (e *Engine) Len() int { return len(e.records) }
