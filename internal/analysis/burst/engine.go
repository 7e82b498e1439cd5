// Package burst records when each message type was seen and summarises the
// time between consecutive sends.
package burst

import (
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/analysis/histogram"
	"github.com/onee-only/capstat/internal/config"
	"github.com/onee-only/capstat/internal/container"
	apperrors "github.com/onee-only/capstat/internal/errors"
	"github.com/onee-only/capstat/internal/metrics"
)

const engineName = "burst"

const AnomalyZeroField = "zero_field"

type Key struct {
	HostID    uint8
	Reliable  bool
	Outgoing  bool
	MessageID uint64
}

type Entry struct {
	PacketNumber   uint64
	SequenceNumber uint64
	Timestamp      float64
	Fingerprint    uint64
}

type Options struct {
	LowerMs   float64
	UpperMs   float64
	BinsPerMs uint

	// DuplicateThresholdMs is the delta below which two sends count as one
	// duplicated frame.
	DuplicateThresholdMs float64
}

func DefaultOptions() Options {
	return Options{
		LowerMs:              config.BurstRangeLowMs,
		UpperMs:              config.BurstRangeHighMs,
		BinsPerMs:            config.BurstBinsPerMs,
		DuplicateThresholdMs: config.BurstDuplicateThresholdMs,
	}
}

type hostMessage struct {
	host  uint8
	msgID uint64
}

type Engine struct {
	log       logrus.FieldLogger
	template  *histogram.Histogram
	threshold float64

	entries map[Key][]Entry

	hosts    map[uint8]struct{}
	messages map[hostMessage]struct{}
}

func New(opts Options, log logrus.FieldLogger) (*Engine, error) {
	h, err := histogram.New(opts.LowerMs, opts.UpperMs, opts.BinsPerMs)
	if err != nil {
		return nil, err
	}

	return &Engine{
		log:       log,
		template:  h,
		threshold: opts.DuplicateThresholdMs,
		entries:   make(map[Key][]Entry),
		hosts:     make(map[uint8]struct{}),
		messages:  make(map[hostMessage]struct{}),
	}, nil
}

// Register appends obs to its message type in arrival order. Repeated
// observations are kept; duplicates are only identified in Finalize.
func (e *Engine) Register(obs container.Observation) {
	if obs.HostID == 0 || obs.MessageID == 0 {
		metrics.Anomaly(engineName, AnomalyZeroField)
		err := apperrors.NewCorrelationAnomaly("burst: observation with a zero host or message id")
		e.log.WithFields(logrus.Fields{
			"packet":     obs.PacketNumber,
			"host_id":    obs.HostID,
			"message_id": obs.MessageID,
			"kind":       AnomalyZeroField,
		}).Debug(err.Error())
		return
	}

	e.noteFirstSeen(obs)

	key := Key{
		HostID:    obs.HostID,
		Reliable:  obs.Reliable(),
		Outgoing:  obs.Outgoing,
		MessageID: obs.MessageID,
	}
	e.entries[key] = append(e.entries[key], Entry{
		PacketNumber:   obs.PacketNumber,
		SequenceNumber: obs.SequenceNumber,
		Timestamp:      obs.Timestamp,
		Fingerprint:    obs.Fingerprint,
	})
}

func (e *Engine) noteFirstSeen(obs container.Observation) {
	if _, ok := e.hosts[obs.HostID]; !ok {
		e.hosts[obs.HostID] = struct{}{}
		e.log.WithFields(logrus.Fields{
			"packet":  obs.PacketNumber,
			"host_id": obs.HostID,
		}).Info("burst: new host")
	}

	hm := hostMessage{host: obs.HostID, msgID: obs.MessageID}
	if _, ok := e.messages[hm]; !ok {
		e.messages[hm] = struct{}{}
		e.log.WithFields(logrus.Fields{
			"packet":     obs.PacketNumber,
			"host_id":    obs.HostID,
			"message_id": obs.MessageID,
		}).Info("burst: new message id")
	}
}

// Len returns the number of entries recorded.
func (e *Engine) Len() (n int) {
	for _, es := range e.entries {
		n += len(es)
	}
	return n
}
