package capture

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	apperrors "github.com/onee-only/capstat/internal/errors"
)

// Sniffer files open with "TRSNIFF data    " followed by 0x1A. The first 16
// bytes are compared as two little-endian 64-bit words.
const (
	snifferMagicHigh uint64 = 0x204646494E535254 // "TRSNIFF "
	snifferMagicLow  uint64 = 0x2020202061746164 // "data    "
	snifferMagicEnd  byte   = 0x1A
)

const (
	snifferGlobalHeaderLen = 41
	snifferRecordHeaderLen = 6
	snifferDataHeaderLen   = 14

	snifferVersionRecord uint16 = 1
	snifferEOFRecord     uint16 = 3
	snifferType2Record   uint16 = 4

	snifferMajorVersion  int16 = 4
	snifferMinorVersion  int16 = 0
	snifferFileType      int8  = 4
	snifferFormatVersion int8  = 1
)

// snifferAccuracy maps the header's timestamp units to seconds per tick.
var snifferAccuracy = [...]float64{
	0.000015,
	0.000000838096,
	0.000015,
	0.0000005,
	0.000002,
	0.00000008,
	0.0000001,
}

// SnifferAccuracy returns the seconds per tick for the given units code.
func SnifferAccuracy(units uint8) (float64, bool) {
	if int(units) >= len(snifferAccuracy) {
		return 0, false
	}
	return snifferAccuracy[units], true
}

type snifferReader struct{}

func (r *snifferReader) ReadGlobalHeader(src *Source) (GlobalHeader, error) {
	b, err := src.Read(snifferGlobalHeaderLen)
	if err != nil {
		return GlobalHeader{}, errors.Wrap(err, "sniffer reader: reading global header")
	}

	le := binary.LittleEndian

	if high := le.Uint64(b[0:8]); high != snifferMagicHigh {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: invalid magic number high 0x%016x", high)
	}
	if low := le.Uint64(b[8:16]); low != snifferMagicLow {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: invalid magic number low 0x%016x", low)
	}
	if b[16] != snifferMagicEnd {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: invalid magic terminator 0x%02x", b[16])
	}

	if recordType := le.Uint16(b[17:19]); recordType != snifferVersionRecord {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: invalid version record type %d", recordType)
	}
	// record length at 19..23 is not used

	major, minor := int16(le.Uint16(b[23:25])), int16(le.Uint16(b[25:27]))
	if major != snifferMajorVersion || minor != snifferMinorVersion {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: unsupported version %d.%d", major, minor)
	}
	// time and date at 27..31 are not used

	if fileType := int8(b[31]); fileType != snifferFileType {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: unsupported file type %d", fileType)
	}

	link := LinkType(b[32])
	if link != LinkTypeNullLoopback && link != LinkTypeEthernet {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: unsupported encapsulation %d", b[32])
	}

	if formatVersion := int8(b[33]); formatVersion != snifferFormatVersion {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: unsupported format version %d", formatVersion)
	}

	accuracy, ok := SnifferAccuracy(b[34])
	if !ok {
		return GlobalHeader{}, apperrors.NewFormatError("sniffer: invalid timestamp units %d", b[34])
	}
	// compression version, compression level and reserved at 35..41 are not used

	return GlobalHeader{
		LinkType:          link,
		TimestampAccuracy: accuracy,
	}, nil
}

func (r *snifferReader) NextRecord(src *Source, hdr GlobalHeader) (RecordHeader, error) {
	b, err := src.Read(snifferRecordHeaderLen)
	if err != nil {
		return RecordHeader{}, errors.Wrap(err, "sniffer reader: reading record header")
	}

	le := binary.LittleEndian

	switch recordType := le.Uint16(b[0:2]); recordType {
	case snifferEOFRecord:
		return RecordHeader{}, io.EOF
	case snifferType2Record:
	default:
		return RecordHeader{}, apperrors.NewFormatError("sniffer: unsupported record type %d", recordType)
	}

	b, err = src.Read(snifferDataHeaderLen)
	if err != nil {
		return RecordHeader{}, errors.Wrap(err, "sniffer reader: reading data record header")
	}

	low, mid, high := uint64(le.Uint16(b[0:2])), uint64(le.Uint16(b[2:4])), uint64(b[4])
	// days at 5 is not used
	size := int64(int16(le.Uint16(b[6:8])))
	if size < 0 {
		return RecordHeader{}, apperrors.NewFormatError("sniffer: negative frame size %d", size)
	}

	return RecordHeader{
		PayloadLength:  size - addressLen,
		CapturedLength: size,
		Timestamp:      hdr.TimestampAccuracy * float64(high<<32|mid<<16|low),
	}, nil
}
