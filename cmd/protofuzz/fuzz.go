package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/protofuzz/internal/harness/docker"
	"github.com/jihwankim/protofuzz/internal/telemetry"
	"github.com/jihwankim/protofuzz/pkg/dictionary"
	"github.com/jihwankim/protofuzz/pkg/extractor"
	"github.com/jihwankim/protofuzz/pkg/fuzzconfig"
	"github.com/jihwankim/protofuzz/pkg/fuzzer"
	"github.com/jihwankim/protofuzz/pkg/harness"
)

var fuzzCmd = &cobra.Command{
	Use:   "fuzz <config.json>",
	Args:  cobra.ExactArgs(1),
	Short: "Run a coverage-guided fuzzing session against a target",
	Long: `Fuzz loads every seed under config.input_dir, extracts it into an
ordered message sequence with the configured protocol extractor, and
fuzzes the resulting queue until interrupted.

Examples:
  protofuzz fuzz config.json
  protofuzz fuzz --metrics-addr :9090 config.json`,
	RunE: runFuzz,
}

func init() {
	fuzzCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (overrides config.metrics.addr)")
	fuzzCmd.Flags().String("trace-endpoint", "", "OTLP/HTTP collector endpoint (overrides config.tracing.endpoint)")
}

func runFuzz(cmd *cobra.Command, args []string) error {
	cfg, err := fuzzconfig.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := telemetry.LogLevel(cfg.Logging.Level)
	if verbose {
		logLevel = telemetry.LogLevelDebug
	}
	logger := telemetry.NewLogger(telemetry.LoggerConfig{
		Level:  logLevel,
		Format: telemetry.LogFormat(cfg.Logging.Format),
		Output: os.Stdout,
	})

	h, err := buildHarness(cfg)
	if err != nil {
		return fmt.Errorf("build harness: %w", err)
	}
	if err := h.SetUp(); err != nil {
		return fmt.Errorf("harness setup: %w", err)
	}

	var extras []dictionary.Entry
	if cfg.Extra != "" {
		extras, err = dictionary.Load(cfg.Extra, cfg.DictLevel, dictionary.DefaultMaxLen)
		if err != nil {
			return fmt.Errorf("load dictionary: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *telemetry.Metrics
	if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics(telemetry.MetricsConfig{Addr: cfg.Metrics.Addr})
		go func() {
			if err := metrics.Serve(ctx); err != nil {
				logger.Error("metrics server stopped", "error", err.Error())
			}
		}()
	}

	var tracer *telemetry.Tracer
	if traceEndpoint, _ := cmd.Flags().GetString("trace-endpoint"); traceEndpoint != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = traceEndpoint
	}
	if cfg.Tracing.Enabled {
		tracer, err = telemetry.NewTracer(ctx, telemetry.TracingConfig{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: "protofuzz",
		})
		if err != nil {
			return fmt.Errorf("start tracer: %w", err)
		}
		defer func() { _ = tracer.Shutdown(context.Background()) }()
	}

	fuzzerCfg := fuzzer.Config{
		Harness:     h,
		OutputDir:   cfg.OutputDir,
		ExecTimeout: cfg.Harness.ExecTimeout,
		HangTimeout: cfg.Harness.HangTimeout,
		Seed:        cfg.Seed,
		RegionLevel: cfg.RegionLevel,
		Extras:      extras,
		Log:         logger,
	}
	if tracer != nil {
		fuzzerCfg.Tracer = tracer
	}

	f, err := fuzzer.New(fuzzerCfg)
	if err != nil {
		return fmt.Errorf("create fuzzer: %w", err)
	}

	if err := loadSeeds(f, cfg); err != nil {
		return fmt.Errorf("load seeds: %w", err)
	}
	if len(f.Queue) == 0 {
		return fmt.Errorf("no seeds found under %s", cfg.InputDir)
	}

	logger.Info("starting fuzz session", "queue_len", len(f.Queue), "protocol", cfg.Protocol, "output_dir", cfg.OutputDir)

	var lastExecs uint64
	return f.Run(ctx, func(execsPerSec float64) {
		f.Stats.QueueLen = len(f.Queue)
		logger.Info("progress",
			"execs", f.Stats.TotalExecs,
			"execs_per_sec", execsPerSec,
			"queue_len", f.Stats.QueueLen,
			"crashes", f.Stats.UniqueCrashes,
			"hangs", f.Stats.UniqueHangs,
		)
		if metrics != nil {
			metrics.RecordExec(f.Stats.TotalExecs - lastExecs)
			lastExecs = f.Stats.TotalExecs
			metrics.SetQueueLength(f.Stats.QueueLen)
			metrics.SetUniqueCrashes(f.Stats.UniqueCrashes)
			metrics.SetUniqueHangs(f.Stats.UniqueHangs)
			metrics.SetExecsPerSec(execsPerSec)
		}
		if err := writeStatsSnapshot(cfg.OutputDir, f.Stats, execsPerSec); err != nil {
			logger.Warn("failed to write stats snapshot", "error", err.Error())
		}
	})
}

func buildHarness(cfg *fuzzconfig.Config) (harness.Harness, error) {
	switch cfg.Harness.Kind {
	case "", "null":
		return harness.NewNullHarness(cfg.Harness.ExecTimeout), nil
	case "subprocess":
		return harness.NewSubprocessHarness(cfg.Harness.TargetPath, cfg.Harness.TargetArgs, cfg.Harness.BitmapSize, cfg.Harness.BitmapFile), nil
	case "docker":
		return docker.New(cfg.Harness.DockerImage, cfg.Harness.TargetArgs, cfg.Harness.BitmapSize, cfg.Harness.BitmapDir)
	default:
		return nil, fmt.Errorf("unknown harness kind %q", cfg.Harness.Kind)
	}
}

func loadSeeds(f *fuzzer.Fuzzer, cfg *fuzzconfig.Config) error {
	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("read input dir: %w", err)
	}
	extractFn := extractor.For(cfg.Protocol)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(cfg.InputDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read seed %s: %w", path, err)
		}
		messages := extractFn(data)
		tc := fuzzer.NewTestCase(path, messages, 0)
		if err := f.AddSeed(tc); err != nil {
			return fmt.Errorf("add seed %s: %w", path, err)
		}
	}
	return nil
}
