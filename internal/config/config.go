// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/sniff/internal/core"
)

// Config is the top-level configuration.
// Maps to the `sniff:` root key in YAML.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Decoder DecoderConfig `mapstructure:"decoder"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

// ─── Capture ───

// CaptureConfig selects the interface and the socket backend.
type CaptureConfig struct {
	Interface    string        `mapstructure:"interface"`
	Backend      string        `mapstructure:"backend"`       // raw | tpacket
	Workers      int           `mapstructure:"workers"`       // concurrent receive loops
	Limit        int           `mapstructure:"limit"`         // frames to capture, 0 = unlimited
	SendProtocol uint16        `mapstructure:"send_protocol"` // sockaddr_ll protocol for send, host order
	TPacket      TPacketConfig `mapstructure:"tpacket"`
}

// TPacketConfig sizes the TPACKET_V3 ring of the tpacket backend.
type TPacketConfig struct {
	BufferSizeMB int           `mapstructure:"buffer_size_mb"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// ─── Buffer pool ───

// PoolConfig sizes the receive buffer pool.
type PoolConfig struct {
	InitialCount int `mapstructure:"initial_count"`
	BufferSize   int `mapstructure:"buffer_size"`
}

// ─── Decoder ───

// DecoderConfig selects the link type frames are decoded from.
type DecoderConfig struct {
	LinkType uint16 `mapstructure:"link_type"` // DLT number, 1 = Ethernet
}

// ─── Output ───

// OutputConfig configures where decoded frames go.
type OutputConfig struct {
	Format   string      `mapstructure:"format"`    // text | json | yaml
	PcapFile string      `mapstructure:"pcap_file"` // empty = no pcap copy
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig publishes decoded frames as JSON records.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Compression  string        `mapstructure:"compression"` // none | gzip | snappy | lz4 | zstd
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`   // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"`  // text / json
	Pattern string           `mapstructure:"pattern"` // text format only
	Time    string           `mapstructure:"time"`    // Go time layout for %time
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations. Stdout is always on.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

const rootKey = "sniff"

// configRoot is the top-level wrapper matching the YAML structure `sniff: ...`.
type configRoot struct {
	Sniff Config `mapstructure:"sniff"`
}

// Load loads configuration from file. An empty path loads the defaults.
// The YAML file uses `sniff:` as root key; env vars use the SNIFF_ prefix
// (e.g., SNIFF_CAPTURE_INTERFACE).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `sniff.` key prefix maps to `SNIFF_` through the key replacer.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Sniff

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
func Default() (*Config, error) {
	return Load("")
}

func setDefaults(v *viper.Viper) {
	def := func(key string, value any) { v.SetDefault(rootKey+"."+key, value) }

	// Capture defaults
	def("capture.interface", "eth0")
	def("capture.backend", "raw")
	def("capture.workers", 1)
	def("capture.limit", 0)
	def("capture.send_protocol", 0x0003) // ETH_P_ALL
	def("capture.tpacket.buffer_size_mb", 8)
	def("capture.tpacket.poll_timeout", "100ms")

	// Pool defaults
	def("pool.initial_count", 16)
	def("pool.buffer_size", 1514)

	// Decoder defaults
	def("decoder.link_type", 1)

	// Output defaults
	def("output.format", "text")
	def("output.pcap_file", "")
	def("output.kafka.enabled", false)
	def("output.kafka.brokers", []string{"localhost:9092"})
	def("output.kafka.topic", "sniff-frames")
	def("output.kafka.batch_size", 100)
	def("output.kafka.batch_timeout", "100ms")
	def("output.kafka.compression", "snappy")
	def("output.kafka.max_attempts", 3)

	// Metrics defaults
	def("metrics.enabled", false)
	def("metrics.listen", ":9091")
	def("metrics.path", "/metrics")

	// Log defaults
	def("log.level", "info")
	def("log.format", "text")
	def("log.pattern", "%time [%level] %msg %field%n")
	def("log.time", "2006-01-02 15:04:05.000")
	def("log.outputs.file.enabled", false)
	def("log.outputs.file.path", "/var/log/sniff/sniff.log")
	def("log.outputs.file.rotation.max_size_mb", 100)
	def("log.outputs.file.rotation.max_age_days", 30)
	def("log.outputs.file.rotation.max_backups", 5)
	def("log.outputs.file.rotation.compress", true)
}

// CanonicalBackend maps a capture backend name or alias to "raw" or
// "tpacket". Matching is case-insensitive and an empty name selects "raw".
func CanonicalBackend(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "raw", "", "af_packet", "afpacket":
		return "raw", nil
	case "tpacket", "tpacket_v3", "mmap":
		return "tpacket", nil
	default:
		return "", fmt.Errorf("unknown capture backend %q", name)
	}
}

// ValidateAndApplyDefaults validates configuration and fills zero values
// that have a runtime default. Every validation error wraps core.ErrConfigInvalid.
func (cfg *Config) ValidateAndApplyDefaults() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
	}

	// ── Log ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return invalid("log level %q (must be trace/debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return invalid("log format %q (must be json/text)", cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return invalid("log.outputs.file.path is required when file output is enabled")
	}

	// ── Capture ──
	backend, err := CanonicalBackend(cfg.Capture.Backend)
	if err != nil {
		return invalid("%v (must be raw/tpacket)", err)
	}
	cfg.Capture.Backend = backend
	if cfg.Capture.Workers <= 0 {
		cfg.Capture.Workers = 1
	}
	if cfg.Capture.Limit < 0 {
		return invalid("capture.limit must not be negative, got %d", cfg.Capture.Limit)
	}
	if cfg.Capture.Backend == "tpacket" && cfg.Capture.TPacket.BufferSizeMB <= 0 {
		return invalid("capture.tpacket.buffer_size_mb must be positive, got %d", cfg.Capture.TPacket.BufferSizeMB)
	}

	// ── Pool ──
	if cfg.Pool.InitialCount < 0 {
		return invalid("pool.initial_count must not be negative, got %d", cfg.Pool.InitialCount)
	}
	if cfg.Pool.BufferSize <= 0 {
		return invalid("pool.buffer_size must be positive, got %d", cfg.Pool.BufferSize)
	}

	// ── Output ──
	switch cfg.Output.Format {
	case "text", "json", "yaml":
	default:
		return invalid("output format %q (must be text/json/yaml)", cfg.Output.Format)
	}
	if k := &cfg.Output.Kafka; k.Enabled {
		if len(k.Brokers) == 0 {
			return invalid("output.kafka.brokers is required when kafka output is enabled")
		}
		if k.Topic == "" {
			return invalid("output.kafka.topic is required when kafka output is enabled")
		}
		switch k.Compression {
		case "", "none", "gzip", "snappy", "lz4", "zstd":
		default:
			return invalid("output.kafka.compression %q (must be none/gzip/snappy/lz4/zstd)", k.Compression)
		}
		if k.BatchSize <= 0 {
			k.BatchSize = 100
		}
		if k.MaxAttempts <= 0 {
			k.MaxAttempts = 3
		}
	}

	// ── Metrics ──
	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return invalid("metrics.listen %q: %v", cfg.Metrics.Listen, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return invalid("metrics.path %q must start with /", cfg.Metrics.Path)
		}
	}

	return nil
}
