package capture

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type frameRecord struct {
	header RecordHeader
	data   []byte
}

// readAll drains r and returns every record that carried frame bytes.
func readAll(t *testing.T, r Reader, src *Source, hdr GlobalHeader) ([]frameRecord, error) {
	t.Helper()

	var out []frameRecord
	for {
		rec, err := r.NextRecord(src, hdr)
		if err != nil {
			return out, err
		}
		if !rec.HasFrame() {
			continue
		}

		data, err := src.Read(int(rec.CapturedLength))
		if err != nil {
			return out, err
		}
		out = append(out, frameRecord{header: rec, data: append([]byte(nil), data...)})
	}
}

func sourceOf(b []byte) *Source {
	return NewSource(bytes.NewReader(b), int64(len(b)))
}

type blockWriter struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

func (w *blockWriter) u8(v uint8) *blockWriter {
	w.buf.WriteByte(v)
	return w
}

func (w *blockWriter) u16(v uint16) *blockWriter {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *blockWriter) u32(v uint32) *blockWriter {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *blockWriter) u64(v uint64) *blockWriter {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *blockWriter) raw(b []byte) *blockWriter {
	w.buf.Write(b)
	return w
}

func (w *blockWriter) bytes() []byte { return w.buf.Bytes() }

func sectionHeader(w *blockWriter) {
	w.u32(pcapngSectionHeaderBlock).u32(28).u32(pcapngByteOrderMagic).
		u16(1).u16(0).u64(0xFFFFFFFFFFFFFFFF).u32(28)
}

func enhancedPacket(w *blockWriter, tsHigh, tsLow uint32, data []byte) {
	pad := (4 - len(data)%4) % 4
	total := uint32(28 + len(data) + pad + 4)
	w.u32(pcapngEnhancedPacketBlock).u32(total).u32(0).u32(tsHigh).u32(tsLow).
		u32(uint32(len(data))).u32(uint32(len(data))).
		raw(data).raw(make([]byte, pad)).u32(total)
}

type snifferHeader struct {
	magic  []byte
	major  int16
	encap  uint8
	units  uint8
	format int8
}

func defaultSnifferHeader() snifferHeader {
	return snifferHeader{
		magic:  []byte(snifferMagic),
		major:  4,
		encap:  1,
		units:  3,
		format: 1,
	}
}

func (h snifferHeader) write(w *blockWriter) {
	w.raw(h.magic)
	w.u16(snifferVersionRecord).u32(18)
	w.u16(uint16(h.major)).u16(0).u16(0).u16(0)
	w.u8(uint8(snifferFileType)).u8(h.encap).u8(uint8(h.format)).u8(h.units)
	w.u8(0).u8(0).u32(0)
}

func snifferFrame(w *blockWriter, ts uint64, data []byte) {
	w.u16(snifferType2Record).u32(uint32(snifferDataHeaderLen + len(data)))
	w.u16(uint16(ts)).u16(uint16(ts >> 16)).u8(uint8(ts >> 32)).u8(0)
	w.u16(uint16(len(data))).u8(0).u8(0).u16(uint16(len(data))).u16(0)
	w.raw(data)
}

func requireBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	require.Len(t, b, n)
	return b
}
