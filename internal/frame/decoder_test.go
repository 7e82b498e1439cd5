package frame

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onee-only/capstat/internal/container"
	apperrors "github.com/onee-only/capstat/internal/errors"
)

const testPort = 5000

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}
)

type recorder struct {
	observations []container.Observation
}

func (r *recorder) Observe(obs container.Observation) {
	r.observations = append(r.observations, obs)
}

func newTestDecoder(t *testing.T) (*Decoder, *recorder, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	rec := &recorder{}
	return New(Options{MessagePorts: []int{testPort}}, rec, logger), rec, hook
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, ls...))
	return append([]byte(nil), buf.Bytes()...)
}

func packetOf(number uint64, ts float64, frame []byte) container.Packet {
	return container.Packet{
		Number:        number,
		Timestamp:     ts,
		PayloadLength: int64(len(frame)) - 12,
		Data:          frame,
	}
}

func ethernet(t layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: t}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IP{10, 0, 0, 1},
		DstIP:    net.IP{10, 0, 0, 2},
	}
}

func message(host uint8, outgoing bool, msgID uint32, seq uint64) *Message {
	m := &Message{HostID: host, MessageID: msgID, SequenceNumber: seq}
	if outgoing {
		m.Flags = messageFlagOutgoing
	}
	return m
}

func tcpMessageFrame(t *testing.T, m *Message, body []byte) []byte {
	return serialize(t,
		ethernet(layers.EthernetTypeIPv4),
		ipv4(layers.IPProtocolTCP),
		&layers.TCP{SrcPort: 40000, DstPort: testPort, DataOffset: 5, PSH: true, ACK: true},
		m,
		gopacket.Payload(body),
	)
}

func udpMessageFrame(t *testing.T, m *Message, body []byte) []byte {
	return serialize(t,
		ethernet(layers.EthernetTypeIPv4),
		ipv4(layers.IPProtocolUDP),
		&layers.UDP{SrcPort: testPort, DstPort: 40000},
		m,
		gopacket.Payload(body),
	)
}

func TestDecode_TCPMessage(t *testing.T) {
	d, rec, _ := newTestDecoder(t)

	body := []byte("request body")
	frame := tcpMessageFrame(t, message(5, true, 7, 42), body)

	require.NoError(t, d.Decode(packetOf(3, 12.5, frame)))
	require.Len(t, rec.observations, 1)

	obs := rec.observations[0]
	assert.Equal(t, uint8(5), obs.HostID)
	assert.Equal(t, container.TransportTCP, obs.Transport)
	assert.True(t, obs.Reliable())
	assert.True(t, obs.Outgoing)
	assert.Equal(t, uint64(42), obs.SequenceNumber)
	assert.Equal(t, uint64(7), obs.MessageID)
	assert.Equal(t, uint64(3), obs.PacketNumber)
	assert.Equal(t, 12.5, obs.Timestamp)

	msgStart := ethernetHeaderLen + 20 + 20
	assert.Equal(t, xxhash.Sum64(frame[msgStart:msgStart+MessageHeaderLen+len(body)]), obs.Fingerprint)
}

func TestDecode_UDPMessage(t *testing.T) {
	d, rec, _ := newTestDecoder(t)

	frame := udpMessageFrame(t, message(9, false, 300, 1), []byte{1, 2, 3})

	require.NoError(t, d.Decode(packetOf(1, 1, frame)))
	require.Len(t, rec.observations, 1)

	obs := rec.observations[0]
	assert.Equal(t, container.TransportUDP, obs.Transport)
	assert.False(t, obs.Reliable())
	assert.False(t, obs.Outgoing)
	assert.Equal(t, uint64(300), obs.MessageID)
}

func TestDecode_IdenticalPayloadsShareFingerprint(t *testing.T) {
	d, rec, _ := newTestDecoder(t)

	frame := udpMessageFrame(t, message(1, true, 2, 3), []byte("same"))
	require.NoError(t, d.Decode(packetOf(1, 1, frame)))
	require.NoError(t, d.Decode(packetOf(2, 1, frame)))

	other := udpMessageFrame(t, message(1, true, 2, 4), []byte("same"))
	require.NoError(t, d.Decode(packetOf(3, 1, other)))

	require.Len(t, rec.observations, 3)
	assert.Equal(t, rec.observations[0].Fingerprint, rec.observations[1].Fingerprint)
	assert.NotEqual(t, rec.observations[0].Fingerprint, rec.observations[2].Fingerprint)
}

func TestDecode_OtherPortIgnored(t *testing.T) {
	d, rec, _ := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeIPv4),
		ipv4(layers.IPProtocolUDP),
		&layers.UDP{SrcPort: 53, DstPort: 40000},
		gopacket.Payload(make([]byte, 32)),
	)

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))
	assert.Empty(t, rec.observations)
}

func TestDecode_VLAN(t *testing.T) {
	d, rec, hook := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeDot1Q),
		&layers.Dot1Q{VLANIdentifier: 10, Type: layers.EthernetTypeIPv4},
		ipv4(layers.IPProtocolUDP),
		&layers.UDP{SrcPort: testPort, DstPort: testPort},
		message(2, true, 5, 6),
	)

	require.NoError(t, d.Decode(packetOf(1, 1, frame)))
	require.Len(t, rec.observations, 1)
	assert.Equal(t, uint64(6), rec.observations[0].SequenceNumber)

	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "frame: nested VLAN tags", e.Message)
	}
}

func TestDecode_NestedVLANLogged(t *testing.T) {
	d, rec, hook := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeDot1Q),
		&layers.Dot1Q{VLANIdentifier: 10, Type: layers.EthernetTypeDot1Q},
		&layers.Dot1Q{VLANIdentifier: 20, Type: layers.EthernetTypeIPv4},
		ipv4(layers.IPProtocolUDP),
		&layers.UDP{SrcPort: testPort, DstPort: testPort},
		message(2, true, 5, 6),
	)

	require.NoError(t, d.Decode(packetOf(4, 1, frame)))
	assert.Len(t, rec.observations, 1)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "frame: nested VLAN tags" {
			found = true
			assert.Equal(t, logrus.InfoLevel, e.Level)
			assert.Equal(t, uint64(4), e.Data["packet"])
		}
	}
	assert.True(t, found)
}

func TestResolveVLAN(t *testing.T) {
	tests := []struct {
		name      string
		b         []byte
		etherType layers.EthernetType
		consumed  int
		depth     uint8
	}{
		{
			name:      "untagged",
			b:         []byte{0x08, 0x00, 0x45},
			etherType: layers.EthernetTypeIPv4,
			consumed:  2,
		},
		{
			name:      "one tag",
			b:         []byte{0x81, 0x00, 0x00, 0x0a, 0x08, 0x06},
			etherType: layers.EthernetTypeARP,
			consumed:  6,
			depth:     1,
		},
		{
			name:      "two tags",
			b:         []byte{0x81, 0x00, 0x00, 0x0a, 0x81, 0x00, 0x00, 0x14, 0x86, 0xdd},
			etherType: layers.EthernetTypeIPv6,
			consumed:  10,
			depth:     2,
		},
		{
			name:      "tag cut short",
			b:         []byte{0x81, 0x00, 0x00},
			etherType: layers.EthernetTypeDot1Q,
			consumed:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			etherType, consumed, depth := resolveVLAN(tt.b)
			assert.Equal(t, tt.etherType, etherType)
			assert.Equal(t, tt.consumed, consumed)
			assert.Equal(t, tt.depth, depth)
		})
	}
}

func TestDecode_IEEE8023LengthSkipped(t *testing.T) {
	d, rec, _ := newTestDecoder(t)

	frame := make([]byte, 60)
	copy(frame, dstMAC)
	copy(frame[6:], srcMAC)
	binary.BigEndian.PutUint16(frame[12:], 46)

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))
	assert.Empty(t, rec.observations)
}

func TestDecode_PaddingIsNotAnError(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeARP),
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   srcMAC,
			SourceProtAddress: []byte{10, 0, 0, 1},
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    []byte{10, 0, 0, 2},
		},
	)
	require.Len(t, frame, 60)

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))

	// RARP shares the layout
	binary.BigEndian.PutUint16(frame[12:], uint16(EthernetTypeRARP))
	assert.NoError(t, d.Decode(packetOf(2, 1, frame)))
}

func TestDecode_MalformedARP(t *testing.T) {
	tests := []struct {
		name      string
		etherType layers.EthernetType
		body      func() []byte
	}{
		{
			name:      "short header",
			etherType: layers.EthernetTypeARP,
			body:      func() []byte { return make([]byte, 6) },
		},
		{
			name:      "addresses overrun the frame",
			etherType: layers.EthernetTypeARP,
			body: func() []byte {
				b := make([]byte, 46)
				b[4], b[5] = 16, 8
				return b
			},
		},
		{
			name:      "address sizes wrap a byte",
			etherType: layers.EthernetTypeARP,
			body: func() []byte {
				b := make([]byte, 46)
				b[4], b[5] = 124, 0
				return b
			},
		},
		{
			name:      "rarp address sizes wrap a byte",
			etherType: EthernetTypeRARP,
			body: func() []byte {
				b := make([]byte, 46)
				b[4], b[5] = 100, 28
				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec, _ := newTestDecoder(t)

			frame := make([]byte, 14)
			copy(frame, dstMAC)
			copy(frame[6:], srcMAC)
			binary.BigEndian.PutUint16(frame[12:], uint16(tt.etherType))
			frame = append(frame, tt.body()...)

			var err error
			require.NotPanics(t, func() { err = d.Decode(packetOf(1, 1, frame)) })
			require.Error(t, err)
			assert.True(t, apperrors.IsDecode(err))
			assert.Equal(t, KindARP, Kind(err))
			assert.Empty(t, rec.observations)
		})
	}
}

func TestDecode_Overrun(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := make([]byte, 60)
	binary.BigEndian.PutUint16(frame[12:], uint16(EthernetTypeDECDNA))
	binary.LittleEndian.PutUint16(frame[14:], 200)

	err := d.Decode(packetOf(1, 1, frame))
	require.Error(t, err)
	assert.True(t, apperrors.IsDecode(err))
	assert.Equal(t, KindOverrun, Kind(err))
	assert.False(t, apperrors.IsFatal(err))
}

func TestDecode_DECDNAWithinFrame(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := make([]byte, 60)
	binary.BigEndian.PutUint16(frame[12:], uint16(EthernetTypeDECDNA))
	binary.LittleEndian.PutUint16(frame[14:], 20)

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))
}

func TestDecode_DeclaredLengthBoundsBody(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := make([]byte, 60)
	binary.BigEndian.PutUint16(frame[12:], 40)

	pkt := packetOf(1, 1, frame)
	pkt.PayloadLength = 30

	err := d.Decode(pkt)
	require.Error(t, err)
	assert.Equal(t, KindOverrun, Kind(err))
}

func TestDecode_UnknownEtherTypeLoggedOnce(t *testing.T) {
	d, _, hook := newTestDecoder(t)

	frame := make([]byte, 60)
	binary.BigEndian.PutUint16(frame[12:], 0x88b5)

	require.NoError(t, d.Decode(packetOf(1, 1, frame)))
	require.NoError(t, d.Decode(packetOf(2, 1, frame)))

	var info, debug int
	for _, e := range hook.AllEntries() {
		if e.Message != "frame: unsupported EtherType, skipping" {
			continue
		}
		assert.Equal(t, "0x88b5", e.Data["ether_type"])
		switch e.Level {
		case logrus.InfoLevel:
			info++
		case logrus.DebugLevel:
			debug++
		}
	}
	assert.Equal(t, 1, info)
	assert.Equal(t, 1, debug)
}

func TestDecode_IPv6Skipped(t *testing.T) {
	d, rec, _ := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeIPv6),
		&layers.IPv6{
			Version:    6,
			NextHeader: layers.IPProtocolUDP,
			HopLimit:   64,
			SrcIP:      net.ParseIP("fe80::1"),
			DstIP:      net.ParseIP("fe80::2"),
		},
		&layers.UDP{SrcPort: testPort, DstPort: testPort},
		message(1, true, 1, 1),
	)

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))
	assert.Empty(t, rec.observations)
}

func TestDecode_IPv4Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) []byte
		kind  string
	}{
		{
			name: "total length exceeds frame",
			build: func(t *testing.T) []byte {
				frame := udpMessageFrame(t, message(1, true, 1, 1), nil)
				binary.BigEndian.PutUint16(frame[ethernetHeaderLen+2:], 1500)
				return frame
			},
			kind: KindIPv4,
		},
		{
			name: "wrong version",
			build: func(t *testing.T) []byte {
				frame := udpMessageFrame(t, message(1, true, 1, 1), nil)
				frame[ethernetHeaderLen] = 0x65
				return frame
			},
			kind: KindIPv4,
		},
		{
			name: "udp length mismatch",
			build: func(t *testing.T) []byte {
				frame := udpMessageFrame(t, message(1, true, 1, 1), nil)
				binary.BigEndian.PutUint16(frame[ethernetHeaderLen+20+4:], 10)
				return frame
			},
			kind: KindUDP,
		},
		{
			name: "unsupported protocol",
			build: func(t *testing.T) []byte {
				return serialize(t,
					ethernet(layers.EthernetTypeIPv4),
					ipv4(layers.IPProtocolGRE),
					gopacket.Payload(make([]byte, 24)),
				)
			},
			kind: KindIPProtocol,
		},
		{
			name: "truncated message",
			build: func(t *testing.T) []byte {
				return serialize(t,
					ethernet(layers.EthernetTypeIPv4),
					ipv4(layers.IPProtocolUDP),
					&layers.UDP{SrcPort: testPort, DstPort: 40000},
					gopacket.Payload(make([]byte, 10)),
				)
			},
			kind: KindMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, rec, _ := newTestDecoder(t)

			err := d.Decode(packetOf(1, 1, tt.build(t)))
			require.Error(t, err)
			assert.True(t, apperrors.IsDecode(err))
			assert.Equal(t, tt.kind, Kind(err))
			assert.Empty(t, rec.observations)
		})
	}
}

func TestDecode_MessageErrorCarriesFlow(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeIPv4),
		ipv4(layers.IPProtocolTCP),
		&layers.TCP{SrcPort: 40000, DstPort: testPort, DataOffset: 5, ACK: true},
		gopacket.Payload(make([]byte, 8)),
	)

	err := d.Decode(packetOf(1, 1, frame))
	require.Error(t, err)
	assert.Equal(t, KindMessage, Kind(err))
	assert.Equal(t, "10.0.0.1:40000 -> 10.0.0.2:5000", Flow(err))

	err = d.Decode(packetOf(2, 1, serialize(t,
		ethernet(layers.EthernetTypeIPv4),
		ipv4(layers.IPProtocolGRE),
		gopacket.Payload(make([]byte, 24)),
	)))
	require.Error(t, err)
	assert.Empty(t, Flow(err))
}

func TestDecode_ICMPAndEIGRPConsumed(t *testing.T) {
	for _, proto := range []layers.IPProtocol{layers.IPProtocolICMPv4, layers.IPProtocolIGMP, ipProtocolEIGRP} {
		d, _, _ := newTestDecoder(t)

		frame := serialize(t,
			ethernet(layers.EthernetTypeIPv4),
			ipv4(proto),
			gopacket.Payload(make([]byte, 16)),
		)
		assert.NoError(t, d.Decode(packetOf(1, 1, frame)), "protocol %d", proto)
	}
}

func TestDecode_LLDP(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := serialize(t,
		ethernet(layers.EthernetTypeLinkLayerDiscovery),
		&layers.LinkLayerDiscovery{
			ChassisID: layers.LLDPChassisID{Subtype: layers.LLDPChassisIDSubTypeMACAddr, ID: srcMAC},
			PortID:    layers.LLDPPortID{Subtype: layers.LLDPPortIDSubtypeIfaceName, ID: []byte("eth0")},
			TTL:       120,
		},
	)

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))

	// drop the End TLV and everything after it
	cut := make([]byte, 60)
	copy(cut, frame[:ethernetHeaderLen+4])
	cut[ethernetHeaderLen+1] = 200

	err := d.Decode(packetOf(2, 1, cut))
	require.Error(t, err)
	assert.Equal(t, KindLLDP, Kind(err))
}

func TestDecode_Loopback(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	frame := make([]byte, 60)
	copy(frame, dstMAC)
	copy(frame[6:], srcMAC)
	binary.BigEndian.PutUint16(frame[12:], uint16(layers.EthernetTypeEthernetCTP))
	binary.LittleEndian.PutUint16(frame[16:], uint16(layers.EthernetCTPFunctionReply))

	assert.NoError(t, d.Decode(packetOf(1, 1, frame)))

	err := d.Decode(packetOf(2, 1, frame[:40]))
	require.Error(t, err)
	assert.Equal(t, KindOverrun, Kind(err))
}

func TestDecode_ShortFrame(t *testing.T) {
	d, _, _ := newTestDecoder(t)

	err := d.Decode(packetOf(1, 1, make([]byte, 10)))
	require.Error(t, err)
	assert.Equal(t, KindShortFrame, Kind(err))
}

func TestMessageLayer(t *testing.T) {
	payload := serialize(t, message(3, true, 0xdeadbeef, 99), gopacket.Payload([]byte("abc")))

	p := gopacket.NewPacket(payload, LayerTypeMessage, gopacket.Default)
	require.Nil(t, p.ErrorLayer())

	m, ok := p.Layer(LayerTypeMessage).(*Message)
	require.True(t, ok)
	assert.Equal(t, uint8(3), m.HostID)
	assert.True(t, m.Outgoing())
	assert.Equal(t, uint16(3), m.Length)
	assert.Equal(t, uint32(0xdeadbeef), m.MessageID)
	assert.Equal(t, uint64(99), m.SequenceNumber)
	assert.Equal(t, []byte("abc"), m.Payload())
}
