package worker

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/onee-only/capstat/internal/capture"
	"github.com/onee-only/capstat/internal/config"
	"github.com/onee-only/capstat/pkg/analyze"
)

type SourceOptions struct {
	Path string

	// Format is auto, pcap, pcapng or sniffer.
	Format string

	MinimizeMemory    bool
	PCAPNGTickSeconds float64
}

func (o *SourceOptions) Validate() (*SourceOptions, error) {
	if o == nil {
		o = &SourceOptions{}
	}

	if o.Path == "" {
		return nil, errors.New("source: capture file not specified")
	}

	if _, err := capture.ParseFormat(o.Format); err != nil {
		return nil, err
	}

	if o.PCAPNGTickSeconds < 0 {
		return nil, errors.New("source: pcapng tick must not be negative")
	}

	return o, nil
}

type ExportOptions struct {
	Enabled bool
	Format  string
	Dir     string
}

type WorkerOptions struct {
	SourceOptions

	Analyses     []analyze.AnalyzeType
	MessagePorts []int
	Histograms   bool

	Export ExportOptions
}

func (o *WorkerOptions) Validate() (*WorkerOptions, error) {
	if o == nil {
		o = &WorkerOptions{}
	}

	if _, err := o.SourceOptions.Validate(); err != nil {
		return nil, err
	}

	if len(o.Analyses) == 0 {
		return nil, errors.New("worker: no analysis selected")
	}

	invalidTypes := make([]analyze.AnalyzeType, 0)
	for _, t := range o.Analyses {
		if !t.Valid() {
			invalidTypes = append(invalidTypes, t)
		}
	}

	if len(invalidTypes) > 0 {
		return nil, fmt.Errorf("invalid analyze type(s): %s", invalidTypes)
	}

	slices.Sort(o.Analyses)
	o.Analyses = slices.Compact(o.Analyses)

	if len(o.MessagePorts) == 0 {
		o.MessagePorts = []int{config.DefaultMessagePort}
	}
	for _, p := range o.MessagePorts {
		if p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid message port: %d", p)
		}
	}

	if o.Export.Enabled {
		switch o.Export.Format {
		case "":
			o.Export.Format = "csv"
		case "csv", "sqlite":
		default:
			return nil, fmt.Errorf("invalid export format: %s", o.Export.Format)
		}
	}

	return o, nil
}

func (o *WorkerOptions) analysis(t analyze.AnalyzeType) bool {
	return slices.Contains(o.Analyses, t)
}

// OptionsFromConfig builds the options for analysing path under cfg.
func OptionsFromConfig(cfg *config.Config, path string) *WorkerOptions {
	opts := &WorkerOptions{
		SourceOptions: SourceOptions{
			Path:              path,
			Format:            cfg.Capture.Format,
			MinimizeMemory:    cfg.Analysis.MinimizeMemory,
			PCAPNGTickSeconds: cfg.Capture.PCAPNGTickSeconds,
		},
		MessagePorts: cfg.Messages.Ports,
		Histograms:   cfg.Analysis.OutputHistogram,
		Export: ExportOptions{
			Enabled: cfg.Analysis.ExportRawRows,
			Format:  cfg.Export.Format,
			Dir:     cfg.Export.Dir,
		},
	}

	if cfg.Analysis.Latency {
		opts.Analyses = append(opts.Analyses, analyze.AnalyzeTypeLatency)
	}
	if cfg.Analysis.Burst {
		opts.Analyses = append(opts.Analyses, analyze.AnalyzeTypeBurst)
	}

	return opts
}
