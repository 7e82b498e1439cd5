package msg

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single request or response body.
const MaxFrameSize = 16 << 20

type encoder interface {
	Encode(w io.Writer) error
}

// WriteFrame encodes v and writes it behind its length.
func WriteFrame(w io.Writer, v encoder) error {
	var body bytes.Buffer
	if err := v.Encode(&body); err != nil {
		return errors.Wrap(err, "msg: encoding")
	}

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(body.Len()))

	if _, err := w.Write(lenBuf); err != nil {
		return errors.Wrap(err, "msg: writing length")
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "msg: writing body")
	}
	return nil
}

// ReadFrame reads one length-prefixed body.
func ReadFrame(r io.Reader) (*bytes.Buffer, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, errors.Errorf("msg: frame of %d bytes exceeds the limit", length)
	}

	body := bytes.NewBuffer(make([]byte, 0, length))
	if _, err := io.CopyN(body, r, int64(length)); err != nil {
		return nil, errors.Wrap(err, "msg: reading body")
	}
	return body, nil
}
