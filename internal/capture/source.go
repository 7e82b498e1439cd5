package capture

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/onee-only/capstat/internal/config"
)

// Source is the read cursor over one capture file.
type Source struct {
	r      *bufio.Reader
	closer io.Closer

	pos, size int64
	buf       []byte
}

// Open opens path for reading. With streamed set the file is read through a
// buffered handle; otherwise it is loaded into memory up front.
func Open(path string, streamed bool) (*Source, error) {
	if !streamed {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "source: reading file")
		}
		return NewSource(bytes.NewReader(data), int64(len(data))), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "source: opening file")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "source: stat file")
	}

	src := NewSource(f, info.Size())
	src.closer = f
	return src, nil
}

// NewSource wraps r. A negative size means the length is unknown.
func NewSource(r io.Reader, size int64) *Source {
	return &Source{
		r:    bufio.NewReaderSize(r, config.StreamBufSize),
		size: size,
	}
}

// Peek returns up to n bytes without advancing.
func (s *Source) Peek(n int) []byte {
	b, _ := s.r.Peek(n)
	return b
}

// Read returns the next n bytes. The slice is only valid until the next call.
// A short read returns io.EOF when nothing was left and io.ErrUnexpectedEOF otherwise.
func (s *Source) Read(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.Errorf("source: negative read length %d", n)
	}
	if s.size >= 0 && int64(n) > s.size-s.pos {
		return nil, s.drain()
	}

	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	b := s.buf[:n]

	read, err := io.ReadFull(s.r, b)
	s.pos += int64(read)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Skip discards the next n bytes.
func (s *Source) Skip(n int64) error {
	if n < 0 {
		return errors.Errorf("source: negative skip length %d", n)
	}
	if s.size >= 0 && n > s.size-s.pos {
		return s.drain()
	}

	for n > 0 {
		chunk := n
		if chunk > int64(config.StreamBufSize) {
			chunk = int64(config.StreamBufSize)
		}
		d, err := s.r.Discard(int(chunk))
		s.pos += int64(d)
		n -= int64(d)
		if err != nil {
			if errors.Is(err, io.EOF) && d > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

// drain consumes what is left and reports the truncation.
func (s *Source) drain() error {
	d, _ := io.Copy(io.Discard, s.r)
	s.pos += d
	if d == 0 {
		return io.EOF
	}
	return io.ErrUnexpectedEOF
}

func (s *Source) Pos() int64 { return s.pos }

func (s *Source) Size() int64 { return s.size }

// Progress returns the consumed share of the source in percent.
func (s *Source) Progress() int {
	if s.size <= 0 {
		return 0
	}
	return int(s.pos * 100 / s.size)
}

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// IsEndOfData reports whether err means the source ran out, cleanly or mid-record.
func IsEndOfData(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
