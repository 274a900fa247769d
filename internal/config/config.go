package config

import (
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/bantay-ai/bantay/internal/events"
	"github.com/bantay-ai/bantay/internal/triage"
)

// Config holds bantay configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Logging   LoggingConfig   `yaml:"logging"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Auth      AuthConfig      `yaml:"auth"`
	Triage    triage.Policy   `yaml:"triage"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr                string `yaml:"addr"` // HTTP listen address, e.g. ":8080"
	MaxRequestBodyBytes int64  `yaml:"max_request_body_bytes"`
	MaxBatchReports     int    `yaml:"max_batch_reports"`
}

type ModelConfig struct {
	Path         string `yaml:"path"`         // ONNX artifact
	MetricsPath  string `yaml:"metrics_path"` // optional sidecar JSON
	MaxSessions  int    `yaml:"max_sessions"`
	IntraThreads int    `yaml:"intra_threads"`
	InterThreads int    `yaml:"inter_threads"`
	Warmup       bool   `yaml:"warmup"`
}

type RuntimeConfig struct {
	LibraryPath string `yaml:"library_path"` // onnxruntime shared library
}

type LoggingConfig struct {
	TextPreview string `yaml:"text_preview"` // none | redacted | full
}

// FallbackConfig labels reports when the model cannot run. Disabled unless
// set explicitly.
type FallbackConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Category   string  `yaml:"category"`
	Confidence float64 `yaml:"confidence"`
}

type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

type EventsConfig struct {
	QueueSize int               `yaml:"queue_size"`
	Workers   int               `yaml:"workers"`
	Sinks     []events.SinkSpec `yaml:"sinks"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

// envOverrides are read with the BANTAY_ prefix, e.g. BANTAY_MODEL_PATH.
type envOverrides struct {
	ModelPath      string `envconfig:"MODEL_PATH"`
	MetricsPath    string `envconfig:"METRICS_PATH"`
	ServerAddr     string `envconfig:"SERVER_ADDR"`
	RuntimeLibrary string `envconfig:"RUNTIME_LIBRARY"`
	TextPreview    string `envconfig:"LOG_TEXT_PREVIEW"`
}

// Load reads configuration from a YAML file, then applies BANTAY_*
// environment overrides. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return defaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("BANTAY", &env); err != nil {
		return err
	}
	if env.ModelPath != "" {
		cfg.Model.Path = env.ModelPath
	}
	if env.MetricsPath != "" {
		cfg.Model.MetricsPath = env.MetricsPath
	}
	if env.ServerAddr != "" {
		cfg.Server.Addr = env.ServerAddr
	}
	if env.RuntimeLibrary != "" {
		cfg.Runtime.LibraryPath = env.RuntimeLibrary
	}
	if env.TextPreview != "" {
		cfg.Logging.TextPreview = env.TextPreview
	}
	return nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxRequestBodyBytes == 0 {
		cfg.Server.MaxRequestBodyBytes = 1 << 20
	}
	if cfg.Server.MaxBatchReports == 0 {
		cfg.Server.MaxBatchReports = 100
	}

	if cfg.Model.Path == "" {
		cfg.Model.Path = "models/incident_classifier.onnx"
	}
	if cfg.Model.MaxSessions == 0 {
		cfg.Model.MaxSessions = 1
	}
	if cfg.Model.IntraThreads == 0 {
		cfg.Model.IntraThreads = 1
	}
	if cfg.Model.InterThreads == 0 {
		cfg.Model.InterThreads = 1
	}

	if cfg.Logging.TextPreview == "" {
		cfg.Logging.TextPreview = events.PreviewRedacted
	}

	if cfg.Fallback.Category == "" {
		cfg.Fallback.Category = "Others"
	}

	def := triage.DefaultPolicy()
	if len(cfg.Triage.HighRisk) == 0 {
		cfg.Triage.HighRisk = def.HighRisk
	}
	if len(cfg.Triage.MediumRisk) == 0 {
		cfg.Triage.MediumRisk = def.MediumRisk
	}
	if cfg.Triage.HighConfidence == 0 {
		cfg.Triage.HighConfidence = def.HighConfidence
	}
	if cfg.Triage.MediumConfidence == 0 {
		cfg.Triage.MediumConfidence = def.MediumConfidence
	}
	if cfg.Triage.PriorityLimit == 0 {
		cfg.Triage.PriorityLimit = def.PriorityLimit
	}

	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = 1000
	}
	if cfg.Events.Workers == 0 {
		cfg.Events.Workers = 1
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}
