package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/onee-only/capstat/internal/client"
	"github.com/onee-only/capstat/internal/config"
	"github.com/onee-only/capstat/internal/logger"
	"github.com/onee-only/capstat/internal/progress"
	"github.com/onee-only/capstat/internal/worker"
	"github.com/onee-only/capstat/pkg/version"
)

const pollInterval = 500 * time.Millisecond

type flags struct {
	config   string
	socket   string
	submit   bool
	progress bool
	version  bool
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *flags) {
	fs := flag.NewFlagSet("capstat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: capstat [flags] capture-file...\n\n")
		fs.PrintDefaults()
	}

	f := &flags{}
	fs.StringVar(&f.config, "config", "", "path to config file")
	fs.StringVar(&f.socket, "socket", "", "daemon socket (default from config)")
	fs.BoolVar(&f.submit, "submit", false, "run the analysis on capstatd instead of locally")
	fs.BoolVar(&f.progress, "progress", true, "draw a progress bar when stderr is a terminal")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	// config overrides, applied only when given
	fs.String("format", "", "capture format: auto, pcap, pcapng or sniffer")
	fs.Bool("latency", true, "run latency analysis")
	fs.Bool("burst", true, "run burst analysis")
	fs.Bool("minimize-memory", false, "stream the capture instead of loading it")
	fs.Bool("histogram", true, "print histograms")
	fs.Bool("export", false, "export raw rows")
	fs.String("export-format", "", "raw row export format: csv or sqlite")
	fs.String("export-dir", "", "directory for exported rows")
	fs.String("ports", "", "comma separated message ports")
	fs.String("log-level", "", "log level")

	return fs, f
}

// run parses args, analyses every capture file they name and returns the
// exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, f := newFlagSet(stderr)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if f.version {
		fmt.Fprintln(stdout, version.GetInfo())
		return 0
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(stderr, "capstat: %s\n", err)
		return 1
	}
	if err := applyFlags(cfg, fs); err != nil {
		fmt.Fprintf(stderr, "capstat: %s\n", err)
		return 2
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "capstat: %s\n", err)
		return 1
	}

	maxprocs.Set(maxprocs.Logger(log.Debugf))

	if f.submit {
		socket := cfg.Daemon.Socket
		if f.socket != "" {
			socket = f.socket
		}
		return submit(ctx, cfg, socket, fs.Args(), stdout, stderr)
	}

	code := 0
	for _, path := range fs.Args() {
		if err := analyseLocal(ctx, cfg, path, f.progress, log, stdout); err != nil {
			fmt.Fprintf(stderr, "capstat: %s: %s\n", path, err)
			code = 1
		}
		if ctx.Err() != nil {
			return 1
		}
	}
	return code
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) (err error) {
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}

		value := fl.Value.String()
		switch fl.Name {
		case "format":
			cfg.Capture.Format = value
		case "latency":
			cfg.Analysis.Latency, err = strconv.ParseBool(value)
		case "burst":
			cfg.Analysis.Burst, err = strconv.ParseBool(value)
		case "minimize-memory":
			cfg.Analysis.MinimizeMemory, err = strconv.ParseBool(value)
		case "histogram":
			cfg.Analysis.OutputHistogram, err = strconv.ParseBool(value)
		case "export":
			cfg.Analysis.ExportRawRows, err = strconv.ParseBool(value)
		case "export-format":
			cfg.Export.Format = value
		case "export-dir":
			cfg.Export.Dir = value
		case "ports":
			cfg.Messages.Ports, err = parsePorts(value)
		case "log-level":
			cfg.Logging.Level = value
		}
	})
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func parsePorts(s string) ([]int, error) {
	var ports []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		port, err := strconv.Atoi(field)
		if err != nil || port <= 0 || port > 65535 {
			return nil, errors.Errorf("invalid port %q", field)
		}
		ports = append(ports, port)
	}

	if len(ports) == 0 {
		return nil, errors.New("no message ports given")
	}
	return ports, nil
}

func analyseLocal(ctx context.Context, cfg *config.Config, path string, showProgress bool, log logrus.FieldLogger, stdout io.Writer) error {
	env := worker.Env{
		Log:    log,
		Report: stdout,
	}
	if showProgress {
		env.Progress = progress.ForFile(os.Stderr)
	}

	w, wctx, err := worker.NewWorker(ctx, worker.OptionsFromConfig(cfg, path), env)
	if err != nil {
		return err
	}

	return w.Exec(wctx)
}

// submit hands every file to the daemon, then waits for each run and
// prints its report.
func submit(ctx context.Context, cfg *config.Config, socket string, paths []string, stdout, stderr io.Writer) int {
	c, err := client.Dial(ctx, socket)
	if err != nil {
		fmt.Fprintf(stderr, "capstat: %s\n", err)
		return 1
	}
	defer c.Close()

	code := 0
	for _, path := range paths {
		if err := submitOne(ctx, c, cfg, path, stdout); err != nil {
			fmt.Fprintf(stderr, "capstat: %s: %s\n", path, err)
			code = 1
		}
	}
	return code
}

func submitOne(ctx context.Context, c *client.Client, cfg *config.Config, path string, stdout io.Writer) error {
	// the daemon has its own working directory
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "resolving capture path")
	}

	id, err := c.Analyze(ctx, *worker.OptionsFromConfig(cfg, abs))
	if err != nil {
		return err
	}

	s, err := c.Wait(ctx, id, pollInterval)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(stdout, s.Report); err != nil {
		return err
	}
	if s.Error != "" {
		return errors.New(s.Error)
	}
	return nil
}
