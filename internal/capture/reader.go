// Package capture reads the container formats that packet sniffers write:
// PCAPNG, PCAP and the legacy Sniffer format. Readers only walk headers; the
// bytes of each record are left on the Source for the caller.
package capture

import (
	"github.com/pkg/errors"
)

type LinkType uint32

const (
	LinkTypeNullLoopback LinkType = 0
	LinkTypeEthernet     LinkType = 1
	LinkTypeCiscoHDLC    LinkType = 104
	LinkTypeInvalid      LinkType = 0xFFFF
)

func (l LinkType) String() string {
	switch l {
	case LinkTypeNullLoopback:
		return "NullLoopback"
	case LinkTypeEthernet:
		return "Ethernet"
	case LinkTypeCiscoHDLC:
		return "CiscoHDLC"
	}
	return "Invalid"
}

// GlobalHeader is produced once per file.
type GlobalHeader struct {
	LinkType          LinkType
	TimestampAccuracy float64
}

// RecordHeader describes one record. CapturedLength bytes follow it on the
// Source; PayloadLength excludes the 12 MAC address bytes for Ethernet.
type RecordHeader struct {
	PayloadLength  int64
	CapturedLength int64
	Timestamp      float64
}

// HasFrame reports whether the record carries frame bytes.
func (r RecordHeader) HasFrame() bool { return r.CapturedLength > 0 }

// Reader decodes the headers of one container format.
//
// NextRecord returns io.EOF at the end of data and io.ErrUnexpectedEOF when
// the source ends inside a header. Header validation failures are FormatErrors.
type Reader interface {
	ReadGlobalHeader(src *Source) (GlobalHeader, error)
	NextRecord(src *Source, hdr GlobalHeader) (RecordHeader, error)
}

type Options struct {
	// PCAPNGTickSeconds scales PCAPNG timestamps. Zero keeps raw ticks.
	PCAPNGTickSeconds float64
}

func New(f Format, opts Options) (Reader, error) {
	switch f {
	case FormatPCAPNG:
		return &pcapngReader{tick: opts.PCAPNGTickSeconds}, nil
	case FormatPCAP:
		return &pcapReader{}, nil
	case FormatSniffer:
		return &snifferReader{}, nil
	}
	return nil, errors.Errorf("capture: no reader for format %s", f)
}
