package worker

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/capture"
	"github.com/onee-only/capstat/internal/container"
	apperrors "github.com/onee-only/capstat/internal/errors"
	"github.com/onee-only/capstat/internal/metrics"
)

// source yields the numbered frames of one capture file.
type source struct {
	opts *SourceOptions
	log  logrus.FieldLogger

	src    *capture.Source
	reader capture.Reader
	format capture.Format
	header capture.GlobalHeader

	packets uint64
}

func openSource(opts *SourceOptions, log logrus.FieldLogger) (s *source, err error) {
	opts, err = opts.Validate()
	if err != nil {
		return nil, err
	}

	src, err := capture.Open(opts.Path, opts.MinimizeMemory)
	if err != nil {
		return nil, apperrors.WrapResource(err, "opening capture file")
	}
	defer func() {
		if err != nil {
			src.Close()
		}
	}()

	format, _ := capture.ParseFormat(opts.Format)
	if format == capture.FormatUnknown {
		format, err = capture.Detect(src.Peek(capture.DetectPrefixLen))
		if err != nil {
			return nil, err
		}
	}

	reader, err := capture.New(format, capture.Options{PCAPNGTickSeconds: opts.PCAPNGTickSeconds})
	if err != nil {
		return nil, err
	}

	header, err := reader.ReadGlobalHeader(src)
	if err != nil {
		return nil, errors.Wrap(err, "source: reading global header")
	}

	log.WithFields(logrus.Fields{
		"format":    format.String(),
		"link_type": header.LinkType.String(),
		"size":      src.Size(),
	}).Info("source: capture opened")

	return &source{
		opts:   opts,
		log:    log,
		src:    src,
		reader: reader,
		format: format,
		header: header,
	}, nil
}

// next fills pkt with the next frame. Records without a frame are consumed
// and not numbered. It returns io.EOF at the end of the data, including a
// record cut short.
func (s *source) next(pkt *container.Packet) error {
	for {
		start := s.src.Pos()

		hdr, err := s.reader.NextRecord(s.src, s.header)
		if err != nil {
			if capture.IsEndOfData(err) {
				return io.EOF
			}
			return err
		}

		if !hdr.HasFrame() {
			metrics.RecordRead(s.format.String(), s.src.Pos()-start)
			continue
		}

		data, err := s.src.Read(int(hdr.CapturedLength))
		if err != nil {
			if capture.IsEndOfData(err) {
				s.log.WithField("packet", s.packets+1).Info("source: last record truncated")
				return io.EOF
			}
			return errors.Wrap(err, "source: reading record")
		}
		metrics.RecordRead(s.format.String(), s.src.Pos()-start)

		s.packets++
		*pkt = container.Packet{
			Number:        s.packets,
			Timestamp:     hdr.Timestamp,
			PayloadLength: hdr.PayloadLength,
			Data:          data,
		}
		return nil
	}
}

func (s *source) progress() int { return s.src.Progress() }

func (s *source) close() error { return s.src.Close() }
