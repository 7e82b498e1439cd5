package frame

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

// EtherTypes gopacket has no constants for.
const (
	EthernetTypeRARP   layers.EthernetType = 0x8035
	EthernetTypeDECDNA layers.EthernetType = 0x6002 // DEC DNA Remote Console
)

// Values below this are IEEE 802.3 length fields, not EtherTypes.
const ieee8023MaxLength = 0x0600

const ethernetHeaderLen = 14

func etherTypeName(t layers.EthernetType) string {
	switch t {
	case layers.EthernetTypeARP:
		return "ARP"
	case EthernetTypeRARP:
		return "RARP"
	case layers.EthernetTypeIPv4:
		return "IPv4"
	case layers.EthernetTypeIPv6:
		return "IPv6"
	case layers.EthernetTypeLinkLayerDiscovery:
		return "LLDP"
	case layers.EthernetTypeEthernetCTP:
		return "Loopback"
	case EthernetTypeDECDNA:
		return "DECDNA"
	case layers.EthernetTypeDot1Q:
		return "VLAN"
	}
	if t < ieee8023MaxLength {
		return "IEEE802.3"
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}
