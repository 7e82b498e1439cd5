package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/msg"
)

type handler struct {
	srv *Server

	lenBuf, recvBuf []byte
	buf             *bytes.Buffer
}

// It will eventually close connection
func (h *handler) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer h.buf.Reset()

	log := h.srv.log.WithField("conn", fmt.Sprintf("%p", conn))

	for {
		err := h.recv(ctx, conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("server: receiving request")
			}
			return
		}

		res := h.respond(ctx, log)

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := msg.WriteFrame(conn, res); err != nil {
			log.WithError(err).Warn("server: sending response")
			return
		}
	}
}

func (h *handler) respond(ctx context.Context, log logrus.FieldLogger) *msg.Response {
	req, err := msg.DecodeRequest(h.buf)
	if err != nil {
		return msg.NewErrResponse(errors.Wrap(err, "decoding request"))
	}

	log.Debugf("server: %s request", req.Type)

	res, err := h.srv.acts.execute(ctx, req)
	if err != nil {
		return msg.NewErrResponse(err)
	}
	return res
}

// recv reads one length-prefixed request into h.buf.
func (h *handler) recv(ctx context.Context, conn net.Conn) error {
	h.buf.Reset()

	if err := h.readFull(ctx, conn, h.lenBuf); err != nil {
		return err
	}

	length := int(binary.LittleEndian.Uint32(h.lenBuf))
	if length > msg.MaxFrameSize {
		return errors.Errorf("server: request of %d bytes exceeds the limit", length)
	}

	h.buf.Grow(length)
	for length > 0 {
		n := min(length, len(h.recvBuf))
		if err := h.readFull(ctx, conn, h.recvBuf[:n]); err != nil {
			return err
		}

		length -= n
		h.buf.Write(h.recvBuf[:n])
	}

	return nil
}

// readFull fills p, waking up every second to check ctx.
func (h *handler) readFull(ctx context.Context, conn net.Conn, p []byte) error {
	read := 0
	for read < len(p) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn.SetReadDeadline(time.Now().Add(time.Second))
		}

		n, err := conn.Read(p[read:])
		read += n
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return err
		}
	}
	return nil
}
