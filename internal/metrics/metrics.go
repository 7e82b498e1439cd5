package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture container metrics
	recordsReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_capture_records_total",
		Help: "Total container records read",
	}, []string{"format"})

	bytesReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_capture_bytes_total",
		Help: "Total container bytes consumed",
	}, []string{"format"})

	// Frame decoding metrics
	framesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_frames_decoded_total",
		Help: "Total Ethernet frames decoded per EtherType",
	}, []string{"ether_type"})

	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_decode_errors_total",
		Help: "Total recoverable frame decode errors",
	}, []string{"kind"})

	// Analysis metrics
	observationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_observations_total",
		Help: "Total application messages observed",
	}, []string{"transport"})

	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_correlation_anomalies_total",
		Help: "Total observations discarded or flagged by the analysis engines",
	}, []string{"engine", "kind"})

	// Run metrics
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capstat_runs_total",
		Help: "Total analysis runs by outcome",
	}, []string{"outcome"})

	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "capstat_runs_active",
		Help: "Number of analysis runs in progress",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "capstat_run_duration_seconds",
		Help:    "Analysis run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15), // 10ms to ~160s
	})
)

func RecordRead(format string, bytes int64) {
	recordsReadTotal.WithLabelValues(format).Inc()
	bytesReadTotal.WithLabelValues(format).Add(float64(bytes))
}

func FrameDecoded(etherType string) {
	framesDecodedTotal.WithLabelValues(etherType).Inc()
}

func DecodeError(kind string) {
	decodeErrorsTotal.WithLabelValues(kind).Inc()
}

func Observation(transport string) {
	observationsTotal.WithLabelValues(transport).Inc()
}

func Anomaly(engine, kind string) {
	anomaliesTotal.WithLabelValues(engine, kind).Inc()
}

// RunStarted marks a run as active and returns the func that completes it.
func RunStarted() func(outcome string) {
	start := time.Now()
	runsActive.Inc()

	return func(outcome string) {
		runsActive.Dec()
		runsTotal.WithLabelValues(outcome).Inc()
		runDuration.Observe(time.Since(start).Seconds())
	}
}
