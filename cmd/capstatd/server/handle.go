package server

import (
	"context"

	"github.com/pkg/errors"

	"github.com/onee-only/capstat/internal/msg"
	"github.com/onee-only/capstat/internal/worker"
)

var errBadPayload = errors.New("malformed request payload")

// HandleAnalyze queues a worker and answers with its id right away. The
// worker is canceled when the daemon shuts down.
func (srv *Server) HandleAnalyze(ctx context.Context, r *msg.Request) (*msg.Response, error) {
	p, ok := r.Payload.(msg.AnalyzePayload)
	if !ok {
		return nil, errBadPayload
	}

	if p.Opts.Export.Enabled && p.Opts.Export.Dir == "" {
		p.Opts.Export.Dir = srv.dataPath
	}

	w, wctx, err := worker.NewWorker(ctx, &p.Opts, worker.Env{Log: srv.log})
	if err != nil {
		return nil, err
	}

	srv.workManager.Run(wctx, w)

	return &msg.Response{
		Payload: msg.WorkerIDPayload{ID: w.ID()},
	}, nil
}

func (srv *Server) HandleStatus(_ context.Context, r *msg.Request) (*msg.Response, error) {
	p, ok := r.Payload.(msg.WorkerIDPayload)
	if !ok {
		return nil, errBadPayload
	}

	s, err := srv.workManager.FetchStat(p.ID)
	if err != nil {
		return nil, err
	}

	return &msg.Response{Payload: msg.WorkerStatPayload{Stat: s}}, nil
}

func (srv *Server) HandleList(_ context.Context, _ *msg.Request) (*msg.Response, error) {
	return &msg.Response{
		Payload: msg.WorkerListPayload{Stats: srv.workManager.All()},
	}, nil
}

func (srv *Server) HandleCancel(_ context.Context, r *msg.Request) (*msg.Response, error) {
	p, ok := r.Payload.(msg.WorkerIDPayload)
	if !ok {
		return nil, errBadPayload
	}

	s, err := srv.workManager.Cancel(p.ID)
	if err != nil {
		return nil, err
	}

	return &msg.Response{Payload: msg.WorkerStatPayload{Stat: s}}, nil
}
