// Package frame decodes Ethernet frames down to application message headers.
//
// A frame is decoded by reading the Ethernet header, resolving any VLAN tags,
// and handing the rest to a sub-decoder chosen by EtherType. Each sub-decoder
// reports how many bytes it consumed; the difference from the length the
// container declared is either padding or an overrun.
package frame

import (
	"encoding/binary"
	goerrors "errors"

	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/container"
	"github.com/onee-only/capstat/internal/metrics"
)

// Observer receives the messages found in decoded frames.
type Observer interface {
	Observe(obs container.Observation)
}

type ObserverFunc func(obs container.Observation)

func (f ObserverFunc) Observe(obs container.Observation) { f(obs) }

type Options struct {
	// MessagePorts are the TCP and UDP ports carrying application messages.
	MessagePorts []int
}

type Decoder struct {
	log      logrus.FieldLogger
	observer Observer
	ports    map[uint16]struct{}

	ip4 layers.IPv4
	tcp layers.TCP
	udp layers.UDP
	arp layers.ARP
	msg Message

	seenEtherTypes map[layers.EthernetType]struct{}
}

func New(opts Options, observer Observer, log logrus.FieldLogger) *Decoder {
	ports := make(map[uint16]struct{}, len(opts.MessagePorts))
	for _, p := range opts.MessagePorts {
		ports[uint16(p)] = struct{}{}
	}

	return &Decoder{
		log:            log,
		observer:       observer,
		ports:          ports,
		seenEtherTypes: make(map[layers.EthernetType]struct{}),
	}
}

// frameContext is what sub-decoders need to know about the frame they decode.
type frameContext struct {
	number    uint64
	timestamp float64
	etherType layers.EthernetType
}

// Decode decodes one Ethernet frame. pkt.Data holds the record window and
// pkt.PayloadLength the declared length after the MAC addresses. Every error
// returned is a recoverable DecodeError.
func (d *Decoder) Decode(pkt container.Packet) error {
	data := pkt.Data
	if len(data) < ethernetHeaderLen {
		return decodeError(KindShortFrame, "frame: %d bytes is shorter than an ethernet header", len(data))
	}

	etherType, typeLen, depth := resolveVLAN(data[12:])
	if depth > 1 {
		d.log.WithFields(logrus.Fields{
			"packet": pkt.Number,
			"depth":  depth,
		}).Info("frame: nested VLAN tags")
	}

	// bytes declared after the final EtherType
	remaining := pkt.PayloadLength - int64(typeLen)
	body := data[12+typeLen:]
	switch {
	case remaining < 0:
		body = nil
	case int64(len(body)) > remaining:
		body = body[:remaining]
	}

	fc := &frameContext{
		number:    pkt.Number,
		timestamp: pkt.Timestamp,
		etherType: etherType,
	}

	consumed, err := d.dispatch(fc, body)
	metrics.FrameDecoded(etherTypeName(etherType))

	if overrun := int64(consumed) - remaining; overrun > 0 {
		err = goerrors.Join(err, decodeError(KindOverrun,
			"frame: %s decoder consumed %d bytes, %d more than declared",
			etherTypeName(etherType), consumed, overrun))
	}

	return err
}

func (d *Decoder) dispatch(fc *frameContext, body []byte) (int, error) {
	if fc.etherType < ieee8023MaxLength {
		// 802.3 length field: skip the LLC payload
		return int(fc.etherType), nil
	}

	switch fc.etherType {
	case layers.EthernetTypeARP, EthernetTypeRARP:
		return d.decodeARP(fc, body)
	case layers.EthernetTypeIPv4:
		return d.decodeIPv4(fc, body)
	case layers.EthernetTypeIPv6:
		return d.decodeIPv6(fc, body)
	case layers.EthernetTypeLinkLayerDiscovery:
		return d.decodeLLDP(fc, body)
	case layers.EthernetTypeEthernetCTP:
		return d.decodeLoopback(fc, body)
	case EthernetTypeDECDNA:
		return d.decodeDECDNA(fc, body)
	}

	fields := logrus.Fields{"packet": fc.number, "ether_type": etherTypeName(fc.etherType)}
	if _, ok := d.seenEtherTypes[fc.etherType]; !ok {
		d.seenEtherTypes[fc.etherType] = struct{}{}
		d.log.WithFields(fields).Info("frame: unsupported EtherType, skipping")
	} else {
		d.log.WithFields(fields).Debug("frame: unsupported EtherType, skipping")
	}
	return len(body), nil
}

// resolveVLAN reads the EtherType at the start of b, following 802.1Q tags.
// It returns the final EtherType, the bytes taken by tags and EtherType, and
// the number of tags.
func resolveVLAN(b []byte) (etherType layers.EthernetType, consumed int, depth uint8) {
	etherType = layers.EthernetType(binary.BigEndian.Uint16(b))
	consumed = 2

	for etherType == layers.EthernetTypeDot1Q && len(b) >= consumed+4 {
		// skip the tag control information
		consumed += 2
		etherType = layers.EthernetType(binary.BigEndian.Uint16(b[consumed:]))
		consumed += 2
		depth++
	}

	return etherType, consumed, depth
}
