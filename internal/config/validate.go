package config

import (
	"fmt"
	"slices"
)

var (
	captureFormats = []string{"auto", "pcap", "pcapng", "sniffer"}
	exportFormats  = []string{"csv", "sqlite"}
	logLevels      = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic"}
)

func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Messages.Validate(); err != nil {
		return fmt.Errorf("messages config: %w", err)
	}

	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Daemon.Validate(); err != nil {
		return fmt.Errorf("daemon config: %w", err)
	}

	return nil
}

func (a *AnalysisConfig) Validate() error {
	if !a.Latency && !a.Burst {
		return fmt.Errorf("at least one of latency or burst analysis must be enabled")
	}
	return nil
}

func (c *CaptureConfig) Validate() error {
	if !slices.Contains(captureFormats, c.Format) {
		return fmt.Errorf("invalid capture format: %q", c.Format)
	}
	if c.PCAPNGTickSeconds < 0 {
		return fmt.Errorf("pcapng_tick_seconds must not be negative")
	}
	return nil
}

func (m *MessagesConfig) Validate() error {
	if len(m.Ports) == 0 {
		return fmt.Errorf("at least one message port is required")
	}
	for _, p := range m.Ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("invalid message port: %d", p)
		}
	}
	return nil
}

func (e *ExportConfig) Validate() error {
	if !slices.Contains(exportFormats, e.Format) {
		return fmt.Errorf("invalid export format: %q", e.Format)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	if !slices.Contains(logLevels, l.Level) {
		return fmt.Errorf("invalid log level: %q", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format: %q", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("log output is required")
	}
	return nil
}

func (d *DaemonConfig) Validate() error {
	if d.Socket == "" {
		return fmt.Errorf("socket path is required")
	}
	if d.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive")
	}
	if d.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	return nil
}
