package server

import (
	"bytes"
	"context"
	goerrors "errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/onee-only/capstat/internal/worker/manager"
)

type Options struct {
	SocketAddr string
	// HTTPAddr serves metrics and worker stats. Empty disables it.
	HTTPAddr string

	MaxWorkers int
	// DataPath is where exports go when a request names no directory.
	DataPath string

	Log logrus.FieldLogger
}

type Server struct {
	socketAddr string
	httpAddr   string
	dataPath   string

	workManager *manager.Manager
	acts        *actTable
	log         logrus.FieldLogger

	connPool sync.Pool
}

// New creates new capstat daemon.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	srv := Server{
		socketAddr:  opts.SocketAddr,
		httpAddr:    opts.HTTPAddr,
		dataPath:    opts.DataPath,
		workManager: manager.New(opts.MaxWorkers, opts.Log.WithField("component", "manager")),
		log:         opts.Log,
	}

	srv.acts = newActTable(&srv)

	srv.connPool = sync.Pool{New: func() any {
		return &handler{
			srv:     &srv,
			lenBuf:  make([]byte, 4),    // len(uint32)
			recvBuf: make([]byte, 4096), // 4KB
			buf:     new(bytes.Buffer),
		}
	}}

	return &srv
}

// Run serves until ctx is done, then waits for running workers to stop.
// Their contexts derive from ctx, so they are canceled as well.
func (srv *Server) Run(ctx context.Context) (err error) {
	var wg sync.WaitGroup

	errchan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.serveUnix(ctx, errchan)
	}()

	if srv.httpAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.serveHTTP(ctx, errchan)
		}()
	}

	wg.Wait()
	srv.workManager.Wait()
	close(errchan)

	// drain any buffered errors.
	for e := range errchan {
		err = goerrors.Join(err, e)
	}

	return err
}

func (srv *Server) serveUnix(ctx context.Context, errchan chan<- error) {
	if err := os.Remove(srv.socketAddr); err != nil && !os.IsNotExist(err) {
		errchan <- errors.Wrap(err, "server: removing stale socket")
		return
	}

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: srv.socketAddr})
	if err != nil {
		errchan <- errors.Wrap(err, "server: listening socket")
		return
	}
	defer listener.Close()

	srv.log.WithField("socket", srv.socketAddr).Info("server: listening")

	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		select {
		case <-ctx.Done():
			srv.log.Info("server: shutting down")
			return
		default:
			listener.SetDeadline(time.Now().Add(time.Second))
		}

		conn, err := listener.Accept()
		if err != nil {
			if netErr, ok := err.(*net.OpError); ok && netErr.Timeout() {
				continue
			}
			errchan <- errors.Wrap(err, "server: accepting connection")
			return
		}

		h := srv.connPool.Get().(*handler)
		conns.Add(1)
		go func() {
			defer conns.Done()
			defer srv.connPool.Put(h)
			h.handle(ctx, conn)
		}()
	}
}

func (srv *Server) serveHTTP(ctx context.Context, errchan chan<- error) {
	hs := &http.Server{
		Addr:              srv.httpAddr,
		Handler:           srv.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hs.Shutdown(shutdownCtx)
	}()

	srv.log.WithField("addr", srv.httpAddr).Info("server: serving http")

	if err := hs.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		errchan <- errors.Wrap(err, "server: serving http")
	}
}
