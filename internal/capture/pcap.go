package capture

import (
	"encoding/binary"

	"github.com/pkg/errors"

	apperrors "github.com/onee-only/capstat/internal/errors"
)

const (
	pcapGlobalHeaderLen = 24
	pcapRecordHeaderLen = 16
)

// pcapReader reads the classic libpcap format. The magic selects byte order
// and whether the fractional timestamp is in micro- or nanoseconds.
type pcapReader struct {
	order binary.ByteOrder
	nanos bool
}

func (r *pcapReader) ReadGlobalHeader(src *Source) (GlobalHeader, error) {
	b, err := src.Read(pcapGlobalHeaderLen)
	if err != nil {
		return GlobalHeader{}, errors.Wrap(err, "pcap reader: reading global header")
	}

	switch magic := binary.LittleEndian.Uint32(b[0:4]); magic {
	case pcapMagicMicros:
		r.order, r.nanos = binary.LittleEndian, false
	case pcapMagicMicrosSwapped:
		r.order, r.nanos = binary.BigEndian, false
	case pcapMagicNanos:
		r.order, r.nanos = binary.LittleEndian, true
	case pcapMagicNanosSwapped:
		r.order, r.nanos = binary.BigEndian, true
	default:
		return GlobalHeader{}, apperrors.NewFormatError("pcap: invalid magic 0x%08x", magic)
	}

	major, minor := r.order.Uint16(b[4:6]), r.order.Uint16(b[6:8])
	if major != 2 || minor != 4 {
		return GlobalHeader{}, apperrors.NewFormatError("pcap: unsupported version %d.%d", major, minor)
	}

	// thiszone, sigfigs and snaplen at 8..20 are not used
	link := LinkType(r.order.Uint32(b[20:24]))
	switch link {
	case LinkTypeNullLoopback, LinkTypeEthernet, LinkTypeCiscoHDLC:
	default:
		return GlobalHeader{}, apperrors.NewFormatError("pcap: unsupported link type %d", uint32(link))
	}

	return GlobalHeader{LinkType: link}, nil
}

func (r *pcapReader) NextRecord(src *Source, hdr GlobalHeader) (RecordHeader, error) {
	b, err := src.Read(pcapRecordHeaderLen)
	if err != nil {
		return RecordHeader{}, errors.Wrap(err, "pcap reader: reading record header")
	}

	sec := float64(r.order.Uint32(b[0:4]))
	frac := float64(r.order.Uint32(b[4:8]))
	saved := int64(r.order.Uint32(b[8:12]))
	// original length at 12..16 is not used

	ts := sec + frac/1e6
	if r.nanos {
		ts = sec + frac/1e9
	}

	payload := saved
	if hdr.LinkType == LinkTypeEthernet {
		payload -= addressLen
	}

	return RecordHeader{
		PayloadLength:  payload,
		CapturedLength: saved,
		Timestamp:      ts,
	}, nil
}
