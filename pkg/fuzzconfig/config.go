// Package fuzzconfig loads and validates the JSON configuration document
// a fuzzing session runs from.
package fuzzconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jihwankim/protofuzz/pkg/extractor"
)

// Config is the recognized top-level configuration document.
type Config struct {
	InputDir  string `json:"input_dir" yaml:"input_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Protocol  string `json:"protocol" yaml:"protocol"`
	DumbMode  bool   `json:"dumb_mode" yaml:"dumb_mode"`
	Extra     string `json:"extra,omitempty" yaml:"extra,omitempty"`

	Harness HarnessConfig `json:"harness" yaml:"harness"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	Coverage CoverageConfig `json:"coverage" yaml:"coverage"`

	Seed        int64 `json:"seed" yaml:"seed"`
	DictLevel   int   `json:"dict_level" yaml:"dict_level"`
	RegionLevel bool  `json:"region_level" yaml:"region_level"`
}

// HarnessConfig selects and parameterizes the execution harness.
type HarnessConfig struct {
	// Kind is one of "null", "subprocess", "docker".
	Kind string `json:"kind" yaml:"kind"`

	TargetPath string   `json:"target_path,omitempty" yaml:"target_path,omitempty"`
	TargetArgs []string `json:"target_args,omitempty" yaml:"target_args,omitempty"`
	BitmapSize int      `json:"bitmap_size" yaml:"bitmap_size"`
	BitmapFile string   `json:"bitmap_file,omitempty" yaml:"bitmap_file,omitempty"`

	DockerImage string `json:"docker_image,omitempty" yaml:"docker_image,omitempty"`
	BitmapDir   string `json:"bitmap_dir,omitempty" yaml:"bitmap_dir,omitempty"`

	ExecTimeout time.Duration `json:"exec_tmout" yaml:"exec_tmout"`
	HangTimeout time.Duration `json:"hang_tmout" yaml:"hang_tmout"`
}

// LoggingConfig configures the structured logger (internal/telemetry).
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig configures the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// TracingConfig configures the optional OpenTelemetry OTLP exporter.
type TracingConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// CoverageConfig parameterizes the offline coverage-measurement tool.
// It configures an out-of-band tool, not the core fuzz loop.
type CoverageConfig struct {
	Step       string `json:"step,omitempty" yaml:"step,omitempty"`
	TargetCmd  string `json:"target_cmd,omitempty" yaml:"target_cmd,omitempty"`
	WorkDir    string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	Parallel   int    `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// DefaultConfig returns a Config with every optional field set to a
// reasonable default; required fields (InputDir, OutputDir) are left
// empty for the caller to fill in.
func DefaultConfig() *Config {
	return &Config{
		Protocol:  "TLS",
		DumbMode:  false,
		Seed:      12138,
		DictLevel: 1,
		Harness: HarnessConfig{
			Kind:        "null",
			BitmapSize:  65536,
			ExecTimeout: 1000 * time.Millisecond,
			HangTimeout: 1000 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Tracing: TracingConfig{
			Enabled: false,
		},
	}
}

// Load reads path as JSON, falling back to YAML if the extension is
// .yaml/.yml, starting from DefaultConfig and overlaying the file's
// values on top. Environment variables are expanded in the raw file
// content before parsing, and PROTOFUZZ_OUTPUT_DIR overrides OutputDir
// when set, taking priority over the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	} else {
		if err := json.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	}

	if outDir := os.Getenv("PROTOFUZZ_OUTPUT_DIR"); outDir != "" {
		cfg.OutputDir = outDir
	}

	return cfg, nil
}

// Save writes c to path as JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate enforces the required-field and range constraints treated
// as fatal at startup.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input_dir is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if !extractor.Known(c.Protocol) {
		return fmt.Errorf("protocol %q is not a recognized extractor", c.Protocol)
	}
	switch c.Harness.Kind {
	case "null":
	case "subprocess":
		if c.Harness.TargetPath == "" {
			return fmt.Errorf("harness.target_path is required for harness.kind=subprocess")
		}
	case "docker":
		if c.Harness.DockerImage == "" {
			return fmt.Errorf("harness.docker_image is required for harness.kind=docker")
		}
	default:
		return fmt.Errorf("harness.kind %q is not one of null, subprocess, docker", c.Harness.Kind)
	}
	if c.Harness.ExecTimeout <= 0 {
		return fmt.Errorf("harness.exec_tmout must be positive")
	}
	if c.Extra != "" {
		if _, err := os.Stat(c.Extra); err != nil {
			return fmt.Errorf("extra dictionary %s: %w", c.Extra, err)
		}
	}
	return nil
}
