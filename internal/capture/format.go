package capture

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	apperrors "github.com/onee-only/capstat/internal/errors"
)

type Format uint8

const (
	FormatUnknown Format = iota
	FormatPCAPNG
	FormatPCAP
	FormatSniffer
)

func (f Format) String() string {
	switch f {
	case FormatPCAPNG:
		return "pcapng"
	case FormatPCAP:
		return "pcap"
	case FormatSniffer:
		return "sniffer"
	}
	return "unknown"
}

// ParseFormat maps a configured name to a Format. "auto" yields FormatUnknown,
// which asks for detection.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "auto":
		return FormatUnknown, nil
	case "pcapng":
		return FormatPCAPNG, nil
	case "pcap":
		return FormatPCAP, nil
	case "sniffer":
		return FormatSniffer, nil
	}
	return FormatUnknown, errors.Errorf("capture: unknown format %q", s)
}

const (
	pcapngSectionHeaderBlock uint32 = 0x0A0D0D0A

	pcapMagicMicros        uint32 = 0xA1B2C3D4
	pcapMagicMicrosSwapped uint32 = 0xD4C3B2A1
	pcapMagicNanos         uint32 = 0xA1B23C4D
	pcapMagicNanosSwapped  uint32 = 0x4D3CB2A1
)

const snifferMagic = "TRSNIFF data    \x1a"

// DetectPrefixLen is the number of leading bytes Detect needs.
const DetectPrefixLen = len(snifferMagic)

// Detect identifies the container format from the leading bytes of a file.
func Detect(prefix []byte) (Format, error) {
	if bytes.HasPrefix(prefix, []byte(snifferMagic)) {
		return FormatSniffer, nil
	}

	if len(prefix) < 4 {
		return FormatUnknown, apperrors.NewFormatError("capture: file too short to detect format (%d bytes)", len(prefix))
	}

	switch binary.LittleEndian.Uint32(prefix) {
	case pcapngSectionHeaderBlock:
		return FormatPCAPNG, nil
	case pcapMagicMicros, pcapMagicMicrosSwapped, pcapMagicNanos, pcapMagicNanosSwapped:
		return FormatPCAP, nil
	}

	return FormatUnknown, apperrors.NewFormatError("capture: unrecognised magic % x", prefix[:4])
}
