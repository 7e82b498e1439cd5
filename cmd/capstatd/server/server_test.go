package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onee-only/capstat/internal/client"
	"github.com/onee-only/capstat/internal/logger"
	"github.com/onee-only/capstat/internal/msg"
	"github.com/onee-only/capstat/internal/worker"
	"github.com/onee-only/capstat/pkg/analyze"
	"github.com/onee-only/capstat/pkg/stat"
)

func emptyCapture(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "empty.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, pcapgo.NewWriter(f).WriteFileHeader(65535, layers.LinkTypeEthernet))
	return path
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return New(Options{MaxWorkers: 1, Log: logger.Discard()})
}

// connect serves one connection of srv over a pipe.
func connect(t *testing.T, srv *Server) *client.Client {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	server, conn := net.Pipe()

	done := make(chan struct{})
	h := srv.connPool.Get().(*handler)
	go func() {
		defer close(done)
		h.handle(ctx, server)
	}()

	c := client.New(conn)
	t.Cleanup(func() {
		cancel()
		c.Close()
		<-done
		srv.workManager.Wait()
	})
	return c
}

func TestHandler_AnalyzeAndWait(t *testing.T) {
	srv := newTestServer(t)
	c := connect(t, srv)
	ctx := context.Background()

	id, err := c.Analyze(ctx, worker.WorkerOptions{
		SourceOptions: worker.SourceOptions{Path: emptyCapture(t), Format: "pcap"},
		Analyses:      []analyze.AnalyzeType{analyze.AnalyzeTypeBurst},
	})
	require.NoError(t, err)

	s, err := c.Wait(ctx, id, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, stat.WorkerStateFin, s.State)
	assert.Contains(t, s.Report, "Burst Analysis")
	assert.NotContains(t, s.Report, "Latency Analysis")

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestHandler_Errors(t *testing.T) {
	srv := newTestServer(t)
	c := connect(t, srv)
	ctx := context.Background()

	_, err := c.Analyze(ctx, worker.WorkerOptions{})
	assert.ErrorContains(t, err, "capture file not specified")

	_, err = c.Status(ctx, uuid.New())
	assert.EqualError(t, err, "worker not found")

	_, err = c.Cancel(ctx, uuid.New())
	assert.EqualError(t, err, "worker not found")

	_, err = c.Do(ctx, &msg.Request{Type: 99})
	assert.EqualError(t, err, "request type not supported")

	_, err = c.Do(ctx, &msg.Request{Type: msg.RequestTypeStatus})
	assert.EqualError(t, err, errBadPayload.Error())

	// the connection survives failed requests
	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandler_ClosesOnCancel(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	server, conn := net.Pipe()
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.connPool.Get().(*handler).handle(ctx, server)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestHandler_RejectsOversizedFrame(t *testing.T) {
	srv := newTestServer(t)

	server, conn := net.Pipe()
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.connPool.Get().(*handler).handle(context.Background(), server)
	}()

	_, err := conn.Write([]byte{0xff, 0xff, 0xff, 0xff})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestRouter(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.router())
	defer ts.Close()

	get := func(path string) (*http.Response, map[string]any) {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer res.Body.Close()

		var body map[string]any
		json.NewDecoder(res.Body).Decode(&body)
		return res, body
	}

	res, body := get("/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])

	_, body = get("/version")
	assert.Equal(t, "dev", body["version"])

	res, _ = get("/workers/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = get("/workers/" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "worker not found", body["error"])

	res, err := http.Get(ts.URL + "/workers")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var list []stat.Worker
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Empty(t, list)

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
