package util

import (
	"fmt"

	"github.com/google/gopacket"
)

func EndpointToString(net, transport gopacket.Endpoint) string {
	return fmt.Sprintf(
		"%s:%s",
		net.String(), transport.String(),
	)
}

// FlowToString renders a network and transport flow pair as
// "src:port -> dst:port".
func FlowToString(net, transport gopacket.Flow) string {
	return fmt.Sprintf(
		"%s -> %s",
		EndpointToString(net.Src(), transport.Src()),
		EndpointToString(net.Dst(), transport.Dst()),
	)
}
