package frame

import (
	"errors"

	"github.com/google/gopacket"

	apperrors "github.com/onee-only/capstat/internal/errors"
	"github.com/onee-only/capstat/pkg/util"
)

const (
	KindShortFrame = "short_frame"
	KindOverrun    = "overrun"
	KindARP        = "arp"
	KindLLDP       = "lldp"
	KindLoopback   = "loopback"
	KindDECDNA     = "dec_dna"
	KindIPv4       = "ipv4"
	KindIPProtocol = "ip_protocol"
	KindTCP        = "tcp"
	KindUDP        = "udp"
	KindMessage    = "message"
)

func decodeError(kind, format string, args ...interface{}) error {
	return apperrors.NewDecodeError(format, args...).
		WithDetails(map[string]interface{}{"kind": kind})
}

// Kind returns the decode error kind carried by err, or "unknown".
func Kind(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if kind, ok := appErr.Details["kind"].(string); ok {
			return kind
		}
	}
	return "unknown"
}

// withFlow records the addresses a failed message came from.
func withFlow(err error, network, transport gopacket.Flow) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		appErr.WithDetails(map[string]interface{}{"flow": util.FlowToString(network, transport)})
	}
	return err
}

// Flow returns the "src -> dst" flow recorded on err, if any.
func Flow(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if flow, ok := appErr.Details["flow"].(string); ok {
			return flow
		}
	}
	return ""
}
