package capture

import (
	"encoding/binary"

	"github.com/pkg/errors"

	apperrors "github.com/onee-only/capstat/internal/errors"
)

const (
	pcapngByteOrderMagic uint32 = 0x1A2B3C4D

	pcapngInterfaceDescriptionBlock uint32 = 0x00000001
	pcapngPacketBlock               uint32 = 0x00000002
	pcapngSimplePacketBlock         uint32 = 0x00000003
	pcapngInterfaceStatisticsBlock  uint32 = 0x00000005
	pcapngEnhancedPacketBlock       uint32 = 0x00000006
)

// Fixed header lengths, counted from the block type field.
const (
	pcapngSectionHeaderLen        = 24
	pcapngInterfaceDescriptionLen = 16
	pcapngPacketLen               = 28
	pcapngSimplePacketLen         = 12
	pcapngInterfaceStatisticsLen  = 20
	pcapngEnhancedPacketLen       = 28

	// destination and source MAC
	addressLen = 12
)

type pcapngReader struct {
	order binary.ByteOrder
	tick  float64
}

// ReadGlobalHeader reads the Section Header Block.
func (r *pcapngReader) ReadGlobalHeader(src *Source) (GlobalHeader, error) {
	if err := r.readSectionHeader(src); err != nil {
		return GlobalHeader{}, err
	}
	return GlobalHeader{LinkType: LinkTypeEthernet}, nil
}

func (r *pcapngReader) readSectionHeader(src *Source) error {
	b, err := src.Read(pcapngSectionHeaderLen)
	if err != nil {
		return errors.Wrap(err, "pcapng reader: reading section header block")
	}

	if blockType := binary.LittleEndian.Uint32(b[0:4]); blockType != pcapngSectionHeaderBlock {
		return apperrors.NewFormatError("pcapng: invalid section header block type 0x%08x", blockType)
	}

	switch {
	case binary.LittleEndian.Uint32(b[8:12]) == pcapngByteOrderMagic:
		r.order = binary.LittleEndian
	case binary.BigEndian.Uint32(b[8:12]) == pcapngByteOrderMagic:
		r.order = binary.BigEndian
	default:
		return apperrors.NewFormatError("pcapng: invalid byte order magic % x", b[8:12])
	}

	total := r.order.Uint32(b[4:8])
	major, minor := r.order.Uint16(b[12:14]), r.order.Uint16(b[14:16])
	if major != 1 || minor != 0 {
		return apperrors.NewFormatError("pcapng: unsupported version %d.%d", major, minor)
	}

	rest, err := blockRemainder(total, pcapngSectionHeaderLen)
	if err != nil {
		return err
	}
	if err := src.Skip(rest); err != nil {
		return errors.Wrap(err, "pcapng reader: skipping section header options")
	}

	return nil
}

func (r *pcapngReader) NextRecord(src *Source, _ GlobalHeader) (RecordHeader, error) {
	// every block starts with type and total length
	head := src.Peek(4)
	if len(head) < 4 {
		_, err := src.Read(4)
		return RecordHeader{}, err
	}

	blockType := r.order.Uint32(head)
	switch blockType {
	case pcapngSectionHeaderBlock:
		return RecordHeader{}, r.readSectionHeader(src)

	case pcapngEnhancedPacketBlock:
		b, err := src.Read(pcapngEnhancedPacketLen)
		if err != nil {
			return RecordHeader{}, errors.Wrap(err, "pcapng reader: reading enhanced packet block")
		}
		return r.packetRecord(b[4:8], b[12:16], b[16:20], pcapngEnhancedPacketLen)

	case pcapngPacketBlock:
		b, err := src.Read(pcapngPacketLen)
		if err != nil {
			return RecordHeader{}, errors.Wrap(err, "pcapng reader: reading packet block")
		}
		return r.packetRecord(b[4:8], b[12:16], b[16:20], pcapngPacketLen)

	case pcapngSimplePacketBlock:
		b, err := src.Read(pcapngSimplePacketLen)
		if err != nil {
			return RecordHeader{}, errors.Wrap(err, "pcapng reader: reading simple packet block")
		}
		window, err := blockRemainder(r.order.Uint32(b[4:8]), pcapngSimplePacketLen)
		if err != nil {
			return RecordHeader{}, err
		}
		return RecordHeader{
			PayloadLength:  window - addressLen,
			CapturedLength: window,
		}, nil

	case pcapngInterfaceDescriptionBlock:
		return RecordHeader{}, r.skipBlock(src, pcapngInterfaceDescriptionLen, "interface description")

	case pcapngInterfaceStatisticsBlock:
		b, err := src.Read(pcapngInterfaceStatisticsLen)
		if err != nil {
			return RecordHeader{}, errors.Wrap(err, "pcapng reader: reading interface statistics block")
		}
		ts := r.timestamp(b[12:16], b[16:20])
		rest, err := blockRemainder(r.order.Uint32(b[4:8]), pcapngInterfaceStatisticsLen)
		if err != nil {
			return RecordHeader{}, err
		}
		if err := src.Skip(rest); err != nil {
			return RecordHeader{}, errors.Wrap(err, "pcapng reader: skipping interface statistics block")
		}
		return RecordHeader{Timestamp: ts}, nil
	}

	return RecordHeader{}, apperrors.NewFormatError("pcapng: unsupported block type 0x%08x", blockType)
}

// packetRecord builds the record for a PB or EPB whose fixed header was read.
// The window runs to the end of the block; its trailing length and options
// become padding for the frame decoder.
func (r *pcapngReader) packetRecord(total, tsHigh, tsLow []byte, fixed int64) (RecordHeader, error) {
	window, err := blockRemainder(r.order.Uint32(total), fixed)
	if err != nil {
		return RecordHeader{}, err
	}

	return RecordHeader{
		PayloadLength:  window - addressLen,
		CapturedLength: window,
		Timestamp:      r.timestamp(tsHigh, tsLow),
	}, nil
}

func (r *pcapngReader) skipBlock(src *Source, fixed int64, name string) error {
	b, err := src.Read(int(fixed))
	if err != nil {
		return errors.Wrapf(err, "pcapng reader: reading %s block", name)
	}
	rest, err := blockRemainder(r.order.Uint32(b[4:8]), fixed)
	if err != nil {
		return err
	}
	return errors.Wrapf(src.Skip(rest), "pcapng reader: skipping %s block", name)
}

func (r *pcapngReader) timestamp(high, low []byte) float64 {
	ticks := float64(uint64(r.order.Uint32(high))<<32 | uint64(r.order.Uint32(low)))
	if r.tick > 0 {
		return ticks * r.tick
	}
	return ticks
}

// blockRemainder returns the bytes of a block left after its fixed header,
// with the total length rounded up to a 32-bit boundary.
func blockRemainder(total uint32, fixed int64) (int64, error) {
	rounded := RoundBlockLength(int64(total))
	if rounded < fixed {
		return 0, apperrors.NewFormatError("pcapng: block length %d shorter than header length %d", total, fixed)
	}
	return rounded - fixed, nil
}

// RoundBlockLength rounds a block length up to a multiple of 4.
func RoundBlockLength(n int64) int64 {
	return n + (4-n%4)%4
}
