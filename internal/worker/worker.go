package worker

import (
	"bytes"
	"context"
	goerrors "errors"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/analysis/burst"
	"github.com/onee-only/capstat/internal/analysis/latency"
	"github.com/onee-only/capstat/internal/analysis/report"
	"github.com/onee-only/capstat/internal/capture"
	"github.com/onee-only/capstat/internal/container"
	apperrors "github.com/onee-only/capstat/internal/errors"
	"github.com/onee-only/capstat/internal/frame"
	"github.com/onee-only/capstat/internal/metrics"
	"github.com/onee-only/capstat/internal/progress"
	"github.com/onee-only/capstat/internal/storage"
	"github.com/onee-only/capstat/internal/storage/table/factory"
	"github.com/onee-only/capstat/pkg/analyze"
	"github.com/onee-only/capstat/pkg/stat"
)

var ErrCanceled = errors.New("worker: canceled")

// Env carries what a worker writes to. Zero fields get a silent default;
// without a Report writer the report is kept for ExportStats.
type Env struct {
	Log      logrus.FieldLogger
	Progress progress.Sink
	Report   io.Writer
}

// Result is what a finished run produced.
type Result struct {
	Packets  uint64
	Duration time.Duration

	Latency []latency.Summary
	Burst   []burst.Summary
}

type Worker struct {
	id        uuid.UUID
	opts      *WorkerOptions
	createdAt time.Time

	log      logrus.FieldLogger
	progress progress.Sink
	report   io.Writer
	buffered *bytes.Buffer

	state      stat.WorkerState
	percent    int
	packets    uint64
	finishedAt time.Time
	err        error
	result     *Result

	cancel context.CancelCauseFunc
	lock   sync.Mutex
}

func NewWorker(ctx context.Context, opts *WorkerOptions, env Env) (w *Worker, c context.Context, err error) {
	opts, err = opts.Validate()
	if err != nil {
		return nil, nil, err
	}

	id := uuid.New()

	c, cancel := context.WithCancelCause(ctx)

	w = &Worker{
		id:        id,
		opts:      opts,
		createdAt: time.Now(),
		log:       env.Log,
		progress:  env.Progress,
		report:    env.Report,
		state:     stat.WorkerStateInit,
		cancel:    cancel,
	}

	if w.log == nil {
		w.log = logrus.StandardLogger()
	}
	w.log = w.log.WithFields(logrus.Fields{"worker": id.String(), "src": opts.Path})

	if w.progress == nil {
		w.progress = progress.Nop{}
	}
	if w.report == nil {
		w.buffered = &bytes.Buffer{}
		w.report = w.buffered
	}

	return w, c, nil
}

func (w *Worker) ID() uuid.UUID { return w.id }

// Exec runs the analysis to the end of the capture. A format error stops
// reading but the report still covers what was read before it. A canceled
// run produces no report.
func (w *Worker) Exec(ctx context.Context) (err error) {
	if !w.transition(stat.WorkerStateUp, stat.WorkerStateInit) {
		return context.Cause(ctx)
	}

	done := metrics.RunStarted()
	defer func() {
		outcome := w.finish(err)
		done(outcome.String())
	}()

	src, err := openSource(&w.opts.SourceOptions, w.log)
	if err != nil {
		return err
	}
	defer src.close()

	var lat *latency.Engine
	if w.opts.analysis(analyze.AnalyzeTypeLatency) {
		if lat, err = latency.New(latency.DefaultOptions(), w.log); err != nil {
			return err
		}
	}

	var bur *burst.Engine
	if w.opts.analysis(analyze.AnalyzeTypeBurst) {
		if bur, err = burst.New(burst.DefaultOptions(), w.log); err != nil {
			return err
		}
	}

	decoder := frame.New(frame.Options{MessagePorts: w.opts.MessagePorts},
		frame.ObserverFunc(func(obs container.Observation) {
			if lat != nil {
				lat.Register(obs)
			}
			if bur != nil {
				bur.Register(obs)
			}
		}), w.log)

	ethernet := src.header.LinkType == capture.LinkTypeEthernet
	if !ethernet {
		w.log.WithField("link_type", src.header.LinkType.String()).
			Info("worker: frames are not ethernet, skipping decoding")
	}

	startedAt := time.Now()

	var (
		pkt    container.Packet
		runErr error
	)
	for {
		select {
		case <-ctx.Done():
			w.progress.Done()
			return context.Cause(ctx)
		default:
		}

		if err := src.next(&pkt); err != nil {
			if !goerrors.Is(err, io.EOF) {
				runErr = err
				w.log.WithError(err).Error("worker: reading capture")
			}
			break
		}

		if ethernet {
			if err := decoder.Decode(pkt); err != nil {
				w.logDecodeError(pkt, err)
			}
		}

		w.setProgress(src.progress(), pkt.Number)
	}

	w.progress.Done()

	elapsed := time.Since(startedAt)
	w.log.Infof("Finished processing of %d captured packets in %.3f seconds", src.packets, elapsed.Seconds())

	result := &Result{Packets: src.packets, Duration: elapsed}
	if lat != nil {
		result.Latency = lat.Finalize()
	}
	if bur != nil {
		result.Burst = bur.Finalize()
	}

	w.lock.Lock()
	w.result = result
	w.lock.Unlock()

	rep := &report.Report{
		Input:   w.opts.Path,
		Packets: result.Packets,
		Latency: result.Latency,
		Burst:   result.Burst,
	}
	if err := report.Write(w.report, rep, report.Options{Histograms: w.opts.Histograms}); err != nil {
		return goerrors.Join(runErr, apperrors.WrapResource(err, "writing report"))
	}

	if w.opts.Export.Enabled {
		run := &storage.Run{
			ID:        w.id,
			Input:     w.opts.Path,
			StartedAt: startedAt,
			Packets:   result.Packets,
			Latency:   result.Latency,
			Burst:     result.Burst,
		}
		if err := w.export(ctx, run); err != nil {
			return goerrors.Join(runErr, apperrors.WrapResource(err, "exporting raw rows"))
		}
	}

	return runErr
}

func (w *Worker) export(ctx context.Context, run *storage.Run) error {
	dir := w.opts.Export.Dir

	var exporter storage.Exporter
	switch w.opts.Export.Format {
	case "sqlite":
		if dir == "" {
			dir = filepath.Dir(w.opts.Path)
		}

		s, err := storage.NewSQLiteStorage(dir, run)
		if err != nil {
			return err
		}
		for _, t := range w.opts.Analyses {
			if err := s.Register(t, factory.New(t)); err != nil {
				s.Close()
				return errors.Wrap(err, "worker: registering table storage")
			}
		}
		exporter = s
	default:
		exporter = storage.NewCSVStorage(dir)
	}
	defer exporter.Close()

	if err := exporter.Export(ctx, run); err != nil {
		return err
	}

	w.log.WithField("format", w.opts.Export.Format).Info("worker: raw rows exported")
	return nil
}

func (w *Worker) logDecodeError(pkt container.Packet, err error) {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}

	for _, e := range errs {
		kind := frame.Kind(e)
		metrics.DecodeError(kind)

		fields := logrus.Fields{
			"packet": pkt.Number,
			"kind":   kind,
		}
		if flow := frame.Flow(e); flow != "" {
			fields["flow"] = flow
		}
		w.log.WithFields(fields).Info(e.Error())
	}
}

// Result returns the outcome of a finished run, or nil.
func (w *Worker) Result() *Result {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.result
}

func (w *Worker) Cancel() {
	if w.transition(stat.WorkerStateCancel, stat.WorkerStateInit, stat.WorkerStateUp) {
		w.cancel(ErrCanceled)
	}
}

func (w *Worker) ExportStats() stat.Worker {
	w.lock.Lock()
	defer w.lock.Unlock()

	s := stat.Worker{
		ID:         w.id,
		Src:        w.opts.Path,
		Format:     w.opts.Format,
		Analyses:   append([]analyze.AnalyzeType(nil), w.opts.Analyses...),
		State:      w.state,
		Progress:   w.percent,
		Packets:    w.packets,
		CreatedAt:  w.createdAt,
		FinishedAt: w.finishedAt,
	}
	if w.err != nil {
		s.Error = w.err.Error()
	}
	if w.buffered != nil && w.state.Done() {
		s.Report = w.buffered.String()
	}
	return s
}

func (w *Worker) setProgress(percent int, packets uint64) {
	w.progress.Update(percent)

	w.lock.Lock()
	w.percent = percent
	w.packets = packets
	w.lock.Unlock()
}

// finish records the outcome of Exec and returns the final state.
func (w *Worker) finish(err error) stat.WorkerState {
	to := stat.WorkerStateFin
	if err != nil {
		to = stat.WorkerStateFail
	}
	w.transition(to, stat.WorkerStateUp)

	w.lock.Lock()
	defer w.lock.Unlock()

	w.err = err
	w.finishedAt = time.Now()
	if w.state == stat.WorkerStateFin {
		w.percent = 100
	}
	return w.state
}

func (w *Worker) transition(to stat.WorkerState, from ...stat.WorkerState) (changed bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	for _, s := range from {
		if w.state == s {
			w.state = to
			return true
		}
	}
	return false
}
