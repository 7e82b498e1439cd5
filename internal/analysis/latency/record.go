package latency

import "github.com/onee-only/capstat/internal/container"

// Key identifies a request/response pair. The request and its response carry
// the same host, transport and sequence number.
type Key struct {
	HostID         uint8
	Transport      container.Transport
	SequenceNumber uint64
}

type State uint8

const (
	StatePending State = iota
	StateResolved
	StateUnresolved
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	}
	return "unknown"
}

type Sighting struct {
	PacketNumber uint64
	Timestamp    float64
}

type Record struct {
	MessageID uint64
	First     Sighting
	Second    *Sighting
	LatencyMs float64
	State     State
}

// Pair is a record together with its key.
type Pair struct {
	Key
	Record
}
