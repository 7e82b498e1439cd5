package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/onee-only/capstat/cmd/capstatd/server"
	"github.com/onee-only/capstat/internal/config"
	"github.com/onee-only/capstat/internal/logger"
	"github.com/onee-only/capstat/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capstatd: %s\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capstatd: %s\n", err)
		os.Exit(1)
	}

	maxprocs.Set(maxprocs.Logger(log.Debugf))

	ctx, stop := signal.NotifyContext(context.Background(), signalsToHandle...)
	defer stop()

	opts := server.Options{
		SocketAddr: cfg.Daemon.Socket,
		HTTPAddr:   cfg.Daemon.HTTPAddr,
		MaxWorkers: cfg.Daemon.MaxWorkers,
		DataPath:   cfg.Daemon.DataPath,
		Log:        logger.WithComponent(log, "server"),
	}

	srv := server.New(opts)

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "capstatd: %s\n", err)
		os.Exit(1)
	}
}
