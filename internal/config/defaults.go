package config

const (
	DefaultServerAddr = "/var/run/capstat.sock"
	DefaultDataPath   = "/tmp"
)

const (
	// DefaultMessagePort carries the application message header on TCP and UDP.
	DefaultMessagePort = 5000

	DefaultMaxWorkers = 4
)

// Histogram layouts. Ranges are in milliseconds.
const (
	LatencyRangeLowMs  = 0.0
	LatencyRangeHighMs = 50.0
	LatencyBinsPerMs   = 10

	BurstRangeLowMs  = 0.0
	BurstRangeHighMs = 15000.0
	BurstBinsPerMs   = 10

	// BurstDuplicateThresholdMs marks deltas too small to be distinct sends.
	BurstDuplicateThresholdMs = 0.03
)

const (
	StreamBufSize = 64 * 1024
)
