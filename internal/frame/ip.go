package frame

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/container"
)

const ipProtocolEIGRP layers.IPProtocol = 0x58

const (
	tcpMinHeaderLen = 20
	tcpMaxHeaderLen = 60
)

// decodeIPv4 validates the IPv4 header and dispatches on the protocol. A
// header that fails validation consumes only itself.
func (d *Decoder) decodeIPv4(fc *frameContext, body []byte) (int, error) {
	ip := &d.ip4
	if err := ip.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
		return 0, decodeError(KindIPv4, "ipv4: %v", err)
	}

	headerLen := int(ip.IHL) * 4
	if ip.Version != 4 {
		return headerLen, decodeError(KindIPv4, "ipv4: unexpected version %d", ip.Version)
	}
	if int(ip.Length) > len(body) {
		return headerLen, decodeError(KindIPv4, "ipv4: total length %d exceeds the %d bytes available", ip.Length, len(body))
	}

	var err error
	switch ip.Protocol {
	case layers.IPProtocolICMPv4, layers.IPProtocolIGMP:
	case layers.IPProtocolTCP:
		err = d.decodeTCP(fc, ip.Payload)
	case layers.IPProtocolUDP:
		err = d.decodeUDP(fc, ip.Payload)
	case ipProtocolEIGRP:
		d.log.WithField("packet", fc.number).Info("frame: EIGRP is not supported, skipping")
	default:
		err = decodeError(KindIPProtocol, "ipv4: unsupported protocol %d", uint8(ip.Protocol))
	}

	return int(ip.Length), err
}

func (d *Decoder) decodeTCP(fc *frameContext, segment []byte) error {
	tcp := &d.tcp
	if err := tcp.DecodeFromBytes(segment, gopacket.NilDecodeFeedback); err != nil {
		return decodeError(KindTCP, "tcp: %v", err)
	}

	if headerLen := int(tcp.DataOffset) * 4; headerLen < tcpMinHeaderLen || headerLen > tcpMaxHeaderLen {
		return decodeError(KindTCP, "tcp: invalid header length %d", headerLen)
	}

	if !d.messagePort(uint16(tcp.SrcPort), uint16(tcp.DstPort)) || len(tcp.Payload) == 0 {
		return nil
	}
	if err := d.decodeMessage(fc, container.TransportTCP, tcp.Payload); err != nil {
		return withFlow(err, d.ip4.NetworkFlow(), tcp.TransportFlow())
	}
	return nil
}

func (d *Decoder) decodeUDP(fc *frameContext, datagram []byte) error {
	udp := &d.udp
	if err := udp.DecodeFromBytes(datagram, gopacket.NilDecodeFeedback); err != nil {
		return decodeError(KindUDP, "udp: %v", err)
	}

	if int(udp.Length) != len(datagram) {
		return decodeError(KindUDP, "udp: length %d does not match the IP payload length %d", udp.Length, len(datagram))
	}

	if !d.messagePort(uint16(udp.SrcPort), uint16(udp.DstPort)) || len(udp.Payload) == 0 {
		return nil
	}
	if err := d.decodeMessage(fc, container.TransportUDP, udp.Payload); err != nil {
		return withFlow(err, d.ip4.NetworkFlow(), udp.TransportFlow())
	}
	return nil
}

func (d *Decoder) messagePort(src, dst uint16) bool {
	_, s := d.ports[src]
	_, t := d.ports[dst]
	return s || t
}

// decodeIPv6 only notes the frame. IPv6 payloads are not interpreted.
func (d *Decoder) decodeIPv6(fc *frameContext, _ []byte) (int, error) {
	d.log.WithFields(logrus.Fields{
		"packet":     fc.number,
		"ether_type": "IPv6",
	}).Debug("frame: IPv6 is not supported, skipping")
	return 0, nil
}
