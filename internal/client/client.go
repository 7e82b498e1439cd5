// Package client talks to a running capstatd over its unix socket.
package client

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/onee-only/capstat/internal/msg"
	"github.com/onee-only/capstat/internal/worker"
	"github.com/onee-only/capstat/pkg/stat"
)

type Client struct {
	conn net.Conn
}

func Dial(ctx context.Context, socket string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, errors.Wrap(err, "client: connecting to daemon")
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn net.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends req and waits for the response. A response carrying an error
// message is returned as an error.
func (c *Client) Do(ctx context.Context, req *msg.Request) (*msg.Response, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, errors.Wrap(err, "client: setting deadline")
	}

	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := msg.WriteFrame(c.conn, req); err != nil {
		return nil, c.ctxErr(ctx, err)
	}

	body, err := msg.ReadFrame(c.conn)
	if err != nil {
		return nil, c.ctxErr(ctx, errors.Wrap(err, "client: reading response"))
	}

	res, err := msg.DecodeResponse(body)
	if err != nil {
		return nil, errors.Wrap(err, "client: decoding response")
	}

	if err := res.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (c *Client) Analyze(ctx context.Context, opts worker.WorkerOptions) (uuid.UUID, error) {
	res, err := c.Do(ctx, &msg.Request{
		Type:    msg.RequestTypeAnalyze,
		Payload: msg.AnalyzePayload{Opts: opts},
	})
	if err != nil {
		return uuid.Nil, err
	}

	p, ok := res.Payload.(msg.WorkerIDPayload)
	if !ok {
		return uuid.Nil, unexpected(res)
	}
	return p.ID, nil
}

func (c *Client) Status(ctx context.Context, id uuid.UUID) (stat.Worker, error) {
	return c.workerStat(ctx, msg.RequestTypeStatus, id)
}

func (c *Client) Cancel(ctx context.Context, id uuid.UUID) (stat.Worker, error) {
	return c.workerStat(ctx, msg.RequestTypeCancel, id)
}

func (c *Client) List(ctx context.Context) ([]stat.Worker, error) {
	res, err := c.Do(ctx, &msg.Request{Type: msg.RequestTypeList})
	if err != nil {
		return nil, err
	}

	p, ok := res.Payload.(msg.WorkerListPayload)
	if !ok {
		return nil, unexpected(res)
	}
	return p.Stats, nil
}

// Wait polls the worker every interval until it is done.
func (c *Client) Wait(ctx context.Context, id uuid.UUID, interval time.Duration) (stat.Worker, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s, err := c.Status(ctx, id)
		if err != nil {
			return stat.Worker{}, err
		}
		if s.State.Done() {
			return s, nil
		}

		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) workerStat(ctx context.Context, t msg.RequestType, id uuid.UUID) (stat.Worker, error) {
	res, err := c.Do(ctx, &msg.Request{
		Type:    t,
		Payload: msg.WorkerIDPayload{ID: id},
	})
	if err != nil {
		return stat.Worker{}, err
	}

	p, ok := res.Payload.(msg.WorkerStatPayload)
	if !ok {
		return stat.Worker{}, unexpected(res)
	}
	return p.Stat, nil
}

func unexpected(res *msg.Response) error {
	return errors.Errorf("client: unexpected response payload %T", res.Payload)
}
