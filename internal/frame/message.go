package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/onee-only/capstat/internal/container"
	"github.com/onee-only/capstat/internal/metrics"
)

// MessageHeaderLen is the size of the application message header.
const MessageHeaderLen = 16

const messageFlagOutgoing = 0x01

var LayerTypeMessage = gopacket.RegisterLayerType(2001, gopacket.LayerTypeMetadata{
	Name:    "Message",
	Decoder: gopacket.DecodeFunc(decodeMessageLayer),
})

// Message is the application header carried in TCP and UDP payloads on the
// configured ports. All fields are big-endian:
//
//	0      1      2          4            8                  16
//	| host | flag | length   | message id | sequence number  |
//
// Length counts the body bytes after the header.
type Message struct {
	layers.BaseLayer

	HostID         uint8
	Flags          uint8
	Length         uint16
	MessageID      uint32
	SequenceNumber uint64
}

func (m *Message) LayerType() gopacket.LayerType { return LayerTypeMessage }

func (m *Message) CanDecode() gopacket.LayerClass { return LayerTypeMessage }

func (m *Message) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

func (m *Message) Outgoing() bool { return m.Flags&messageFlagOutgoing != 0 }

func (m *Message) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < MessageHeaderLen {
		df.SetTruncated()
		return fmt.Errorf("message header needs %d bytes, have %d", MessageHeaderLen, len(data))
	}

	m.HostID = data[0]
	m.Flags = data[1]
	m.Length = binary.BigEndian.Uint16(data[2:4])
	m.MessageID = binary.BigEndian.Uint32(data[4:8])
	m.SequenceNumber = binary.BigEndian.Uint64(data[8:16])

	end := MessageHeaderLen + int(m.Length)
	if end > len(data) {
		df.SetTruncated()
		return fmt.Errorf("message body of %d bytes exceeds the %d available", m.Length, len(data)-MessageHeaderLen)
	}

	m.BaseLayer = layers.BaseLayer{Contents: data[:MessageHeaderLen], Payload: data[MessageHeaderLen:end]}
	return nil
}

func (m *Message) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	body := len(b.Bytes())

	bytes, err := b.PrependBytes(MessageHeaderLen)
	if err != nil {
		return err
	}

	if opts.FixLengths {
		m.Length = uint16(body)
	}

	bytes[0] = m.HostID
	bytes[1] = m.Flags
	binary.BigEndian.PutUint16(bytes[2:4], m.Length)
	binary.BigEndian.PutUint32(bytes[4:8], m.MessageID)
	binary.BigEndian.PutUint64(bytes[8:16], m.SequenceNumber)
	return nil
}

func decodeMessageLayer(data []byte, p gopacket.PacketBuilder) error {
	m := &Message{}
	if err := m.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(m)
	p.SetApplicationLayer(m)
	return p.NextDecoder(m.NextLayerType())
}

func (m *Message) Payload() []byte { return m.BaseLayer.Payload }

// decodeMessage extracts at most one observation from a transport payload.
func (d *Decoder) decodeMessage(fc *frameContext, transport container.Transport, payload []byte) error {
	m := &d.msg
	if err := m.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return decodeError(KindMessage, "message: %v", err)
	}

	obs := container.Observation{
		HostID:         m.HostID,
		Transport:      transport,
		Outgoing:       m.Outgoing(),
		SequenceNumber: m.SequenceNumber,
		MessageID:      uint64(m.MessageID),
		PacketNumber:   fc.number,
		Timestamp:      fc.timestamp,
		Fingerprint:    xxhash.Sum64(payload[:MessageHeaderLen+int(m.Length)]),
	}

	metrics.Observation(transport.String())
	d.observer.Observe(obs)
	return nil
}
