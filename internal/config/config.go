package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Capture  CaptureConfig  `mapstructure:"capture"`
	Messages MessagesConfig `mapstructure:"messages"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
}

type AnalysisConfig struct {
	Latency         bool `mapstructure:"latency"`
	Burst           bool `mapstructure:"burst"`
	MinimizeMemory  bool `mapstructure:"minimize_memory"` // stream the file instead of loading it
	ExportRawRows   bool `mapstructure:"export_raw_rows"`
	OutputHistogram bool `mapstructure:"output_histogram"`
}

type CaptureConfig struct {
	Format string `mapstructure:"format"` // auto, pcap, pcapng or sniffer
	// PCAPNGTickSeconds scales PCAPNG timestamps. Zero keeps raw ticks.
	PCAPNGTickSeconds float64 `mapstructure:"pcapng_tick_seconds"`
}

type MessagesConfig struct {
	Ports []int `mapstructure:"ports"`
}

type ExportConfig struct {
	Format string `mapstructure:"format"` // csv or sqlite
	Dir    string `mapstructure:"dir"`    // empty means next to the input file
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type DaemonConfig struct {
	Socket     string `mapstructure:"socket"`
	HTTPAddr   string `mapstructure:"http_addr"` // empty disables the HTTP listener
	MaxWorkers int    `mapstructure:"max_workers"`
	DataPath   string `mapstructure:"data_path"`
}

// Load reads the YAML file at configPath, applies CAPSTAT_* environment
// overrides and validates the result. An empty path loads defaults only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CAPSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("analysis.latency", true)
	v.SetDefault("analysis.burst", true)
	v.SetDefault("analysis.minimize_memory", false)
	v.SetDefault("analysis.export_raw_rows", false)
	v.SetDefault("analysis.output_histogram", true)

	v.SetDefault("capture.format", "auto")
	v.SetDefault("capture.pcapng_tick_seconds", 0.0)

	v.SetDefault("messages.ports", []int{DefaultMessagePort})

	v.SetDefault("export.format", "csv")
	v.SetDefault("export.dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("daemon.socket", DefaultServerAddr)
	v.SetDefault("daemon.http_addr", "")
	v.SetDefault("daemon.max_workers", DefaultMaxWorkers)
	v.SetDefault("daemon.data_path", DefaultDataPath)
}
