package container

type Transport uint8

const (
	TransportTCP Transport = 1 + iota
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	}
	return "unknown"
}

// Reliable reports whether the transport guarantees delivery.
func (t Transport) Reliable() bool { return t == TransportTCP }

// Observation is one application message seen in a decoded frame.
type Observation struct {
	HostID    uint8
	Transport Transport
	Outgoing  bool

	SequenceNumber uint64
	MessageID      uint64

	PacketNumber uint64
	Timestamp    float64

	// Fingerprint hashes the message bytes. Equal fingerprints on adjacent
	// observations indicate a duplicated frame.
	Fingerprint uint64
}

func (o Observation) Reliable() bool { return o.Transport.Reliable() }
