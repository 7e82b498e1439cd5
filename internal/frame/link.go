package frame

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
)

// fixed ARP header: hardware type, protocol type, both address sizes and
// the operation
const arpHeaderLen = 8

const (
	// skip count, function and receipt number
	loopbackHeaderLen = 6
	loopbackDataLen   = 40
)

func (d *Decoder) decodeARP(fc *frameContext, body []byte) (int, error) {
	if len(body) < arpHeaderLen {
		return 0, decodeError(KindARP, "%s: header needs %d bytes, have %d", etherTypeName(fc.etherType), arpHeaderLen, len(body))
	}

	// gopacket sums the address sizes in uint8 and can wrap, so check here
	if n := arpHeaderLen + 2*int(body[4]) + 2*int(body[5]); n > len(body) {
		return 0, decodeError(KindARP, "%s: %d bytes of addresses exceed the %d available", etherTypeName(fc.etherType), n-arpHeaderLen, len(body)-arpHeaderLen)
	}

	if err := d.arp.DecodeFromBytes(body, gopacket.NilDecodeFeedback); err != nil {
		return 0, decodeError(KindARP, "%s: %v", etherTypeName(fc.etherType), err)
	}

	d.log.WithFields(logrus.Fields{
		"packet":    fc.number,
		"operation": d.arp.Operation,
	}).Debug("frame: address resolution")

	return len(d.arp.Contents), nil
}

// decodeLLDP walks the TLVs up to the End TLV and validates them with gopacket.
func (d *Decoder) decodeLLDP(fc *frameContext, body []byte) (int, error) {
	n, ok := lldpLength(body)
	if !ok {
		return n, decodeError(KindLLDP, "lldp: TLVs run past the frame (%d of %d bytes)", n, len(body))
	}

	p := gopacket.NewPacket(body[:n], layers.LayerTypeLinkLayerDiscovery, gopacket.NoCopy)
	if errLayer := p.ErrorLayer(); errLayer != nil {
		return n, decodeError(KindLLDP, "lldp: %v", errLayer.Error())
	}

	if lldp, ok := p.Layer(layers.LayerTypeLinkLayerDiscovery).(*layers.LinkLayerDiscovery); ok {
		d.log.WithFields(logrus.Fields{
			"packet": fc.number,
			"ttl":    lldp.TTL,
		}).Debug("frame: link layer discovery")
	}

	return n, nil
}

// lldpLength returns the offset just past the End TLV. ok is false when a
// TLV header or value is cut short.
func lldpLength(b []byte) (n int, ok bool) {
	for {
		if len(b)-n < 2 {
			return n + 2, false
		}

		tlvType := layers.LLDPTLVType(b[n] >> 1)
		length := int(b[n]&0x01)<<8 | int(b[n+1])
		n += 2 + length

		if n > len(b) {
			return n, false
		}
		if tlvType == layers.LLDPTLVEnd {
			return n, true
		}
	}
}

// decodeLoopback decodes a configuration testing protocol frame. The header
// and data block have a fixed size.
func (d *Decoder) decodeLoopback(fc *frameContext, body []byte) (int, error) {
	const n = loopbackHeaderLen + loopbackDataLen

	if len(body) < loopbackHeaderLen {
		return n, decodeError(KindLoopback, "loopback: %d bytes is shorter than the header", len(body))
	}

	p := gopacket.NewPacket(body[:min(n, len(body))], layers.LayerTypeEthernetCTP, gopacket.NoCopy)
	if errLayer := p.ErrorLayer(); errLayer != nil {
		return n, decodeError(KindLoopback, "loopback: %v", errLayer.Error())
	}

	d.log.WithFields(logrus.Fields{
		"packet":     fc.number,
		"skip_count": binary.LittleEndian.Uint16(body[0:2]),
	}).Debug("frame: loopback")

	return n, nil
}

// decodeDECDNA skips a DEC DNA Remote Console frame: a little-endian length
// followed by that many bytes.
func (d *Decoder) decodeDECDNA(fc *frameContext, body []byte) (int, error) {
	if len(body) < 2 {
		return 2, decodeError(KindDECDNA, "dec dna: missing length field")
	}

	length := int(binary.LittleEndian.Uint16(body[0:2]))
	d.log.WithFields(logrus.Fields{
		"packet": fc.number,
		"length": length,
	}).Debug("frame: DEC DNA remote console")

	return 2 + length, nil
}
