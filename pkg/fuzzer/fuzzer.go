package fuzzer

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jihwankim/protofuzz/pkg/dictionary"
	"github.com/jihwankim/protofuzz/pkg/harness"
)

const (
	// KeepUniqueHang caps the number of distinct hangs persisted before
	// the classifier stops saving new ones.
	KeepUniqueHang = 500
	// KeepUniqueCrash caps the number of distinct crashes persisted.
	KeepUniqueCrash = 5000
	// DefaultHangTimeout is the re-validation timeout for a suspected
	// hang, used when Config.HangTimeout is zero.
	DefaultHangTimeout = 1000 * time.Millisecond
	// HavocCyclesInit is the baseline stage count a perf_score of 100
	// maps to.
	HavocCyclesInit = 1024
)

// Logger is the minimal structured-event sink the fuzz loop needs. A
// *telemetry.Logger satisfies this without pkg/fuzzer importing the
// ambient logging stack directly.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nullLogger struct{}

func (nullLogger) Info(string, ...interface{})  {}
func (nullLogger) Warn(string, ...interface{})  {}
func (nullLogger) Error(string, ...interface{}) {}

// Tracer is the minimal span-opening collaborator the fuzz loop needs. A
// *telemetry.Tracer satisfies this without pkg/fuzzer importing the
// ambient tracing stack directly.
type Tracer interface {
	StartFuzzOne(ctx context.Context, queueIdx, messageCount int) (context.Context, trace.Span)
}

type noopTracer struct{}

func (noopTracer) StartFuzzOne(ctx context.Context, _, _ int) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// Fuzzer owns every piece of shared state for one fuzzing session: stats,
// queue, Top-Rated, the PRNG-driven mutator and scheduler, and the
// harness handle. It is passed explicitly to the subsystems that operate
// on it rather than relying on package-level globals.
type Fuzzer struct {
	Harness   harness.Harness
	OutputDir string

	ExecTimeout time.Duration
	HangTimeout time.Duration

	Queue    []*TestCase
	TopRated *TopRated
	Stats    *Stats

	Mutator   *Mutator
	Scheduler *Scheduler
	rng       *rand.Rand

	UniqueFavors int
	Log          Logger
	Tracer       Tracer
}

// Config bundles the construction-time knobs for a Fuzzer.
type Config struct {
	Harness     harness.Harness
	OutputDir   string
	ExecTimeout time.Duration
	HangTimeout time.Duration
	Seed        int64
	RegionLevel bool
	Extras      []dictionary.Entry
	Log         Logger
	Tracer      Tracer
}

// New constructs a Fuzzer and creates its output subdirectories
// (queue/, favor_test_cases/, crash_test_cases/, tmout_test_cases/).
func New(cfg Config) (*Fuzzer, error) {
	if cfg.HangTimeout == 0 {
		cfg.HangTimeout = DefaultHangTimeout
	}
	if cfg.Log == nil {
		cfg.Log = nullLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noopTracer{}
	}

	for _, dir := range []string{"queue", "favor_test_cases", "crash_test_cases", "tmout_test_cases"} {
		if err := os.MkdirAll(filepath.Join(cfg.OutputDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	mutator := NewMutator(cfg.Seed, cfg.Extras)
	mutator.RegionLevel = cfg.RegionLevel

	return &Fuzzer{
		Harness:     cfg.Harness,
		OutputDir:   cfg.OutputDir,
		ExecTimeout: cfg.ExecTimeout,
		HangTimeout: cfg.HangTimeout,
		TopRated:    NewTopRated(),
		Stats:       &Stats{},
		Mutator:     mutator,
		Scheduler:   NewScheduler(rng),
		rng:         rng,
		Log:         cfg.Log,
		Tracer:      cfg.Tracer,
	}, nil
}

// AddSeed calibrates a freshly extracted seed case and enqueues it,
// mirroring the fuzz loop's seed-intake phase: calibrate, then fail fast
// if the target produces no instrumentation output.
func (f *Fuzzer) AddSeed(tc *TestCase) error {
	fault, err := Calibrate(f.Harness, tc, f.ExecTimeout, f.Stats.QueueCycle, f.Stats)
	if err != nil {
		return fmt.Errorf("calibrate seed %s: %w", tc.FilePath, err)
	}
	if fault == harness.FaultNoInstrumentation {
		return fmt.Errorf("seed %s: %w", tc.FilePath, ErrNoInstrumentation)
	}
	if tc.VarBehavior {
		f.Log.Warn("seed has variable coverage behavior", "file", tc.FilePath)
	}

	f.Queue = append(f.Queue, tc)
	f.Stats.QueueLen = len(f.Queue)
	f.TopRated.Cull(f.Queue, len(f.Queue)-1, f.Stats)
	return nil
}

// persistRaw writes the concatenated messages to dir/id:NNNNNN.raw and
// returns the path.
func (f *Fuzzer) persistRaw(dir string, id int, messages []Message) (string, error) {
	name := fmt.Sprintf("id:%06d.raw", id)
	path := filepath.Join(f.OutputDir, dir, name)
	if err := os.WriteFile(path, Concat(messages), 0o644); err != nil {
		return "", fmt.Errorf("persist %s: %w", path, err)
	}
	return path, nil
}
