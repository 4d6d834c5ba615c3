package fuzzer

import (
	"context"
	"time"

	"github.com/jihwankim/protofuzz/pkg/harness"
)

// mutationCounts is the set of havoc round sizes a fuzz_one stage samples
// uniformly from: powers of two from 2^0 to 2^7.
var mutationCounts = []int{1, 2, 4, 8, 16, 32, 64, 128}

// Run drives the fuzz loop until ctx is cancelled. Every
// iteration picks the next queue entry and fuzzes it; at most once every
// 2 seconds, report is called with the execs-per-second rate since the
// previous call. Pass nil to disable periodic reporting.
func (f *Fuzzer) Run(ctx context.Context, report func(execsPerSec float64)) error {
	lastReport := time.Now()
	var lastExecs uint64

	for ctx.Err() == nil {
		idx := f.Scheduler.ChooseNext(len(f.Queue), f.Stats)
		current := f.Queue[idx]

		if err := f.FuzzOne(ctx, idx, current); err != nil {
			return err
		}

		if report != nil && time.Since(lastReport) >= 2*time.Second {
			elapsed := time.Since(lastReport).Seconds()
			rate := float64(f.Stats.TotalExecs-lastExecs) / elapsed
			report(rate)
			lastReport = time.Now()
			lastExecs = f.Stats.TotalExecs
		}
	}
	return nil
}

// FuzzOne implements one scheduler turn: the skip-probability
// check, a deep copy of current's messages, a resampled mutation
// sub-range, and S havoc stages each applying N in {1,2,4,...,128}
// mutations before running the target and classifying the result. The
// whole turn (mutate, run_target, classify) is wrapped in one span.
func (f *Fuzzer) FuzzOne(ctx context.Context, queueIdx int, current *TestCase) error {
	if f.Scheduler.ShouldSkip(current, f.Stats) {
		return nil
	}
	if current.Favored && !current.WasFuzzed {
		f.Stats.PendingFavored--
	}
	current.WasFuzzed = true

	_, span := f.Tracer.StartFuzzOne(ctx, queueIdx, len(current.Messages))
	defer span.End()

	mutated := current.Clone()

	start, end := f.sampleRange(len(mutated))

	perfScore := PerfScore(current, f.Stats)
	stageMax := HavocCyclesInit * perfScore / 100
	if stageMax < 1 {
		stageMax = 1
	}

	for stage := 0; stage < stageMax; stage++ {
		n := mutationCounts[f.rng.Intn(len(mutationCounts))]
		for i := 0; i < n; i++ {
			msgIdx := start
			if end > start {
				msgIdx = start + f.rng.Intn(end-start+1)
			}
			mutated = f.Mutator.Mutate(mutated, msgIdx)
		}

		fault, err := harness.RunMessages(f.Harness, toRawMessages(mutated), f.ExecTimeout)
		f.Stats.TotalExecs++
		if err != nil {
			return err
		}

		if _, err := f.Classify(mutated, fault, current); err != nil {
			return err
		}
		if fault == harness.FaultError {
			return ErrUnexecutableTarget
		}
	}

	return nil
}

// sampleRange picks [start, end] within [0, n-1] once per fuzz_one call,
// the sub-range mutate() indices are resampled from for every mutation.
func (f *Fuzzer) sampleRange(n int) (start, end int) {
	if n <= 1 {
		return 0, 0
	}
	a := f.rng.Intn(n)
	b := f.rng.Intn(n)
	if a > b {
		a, b = b, a
	}
	return a, b
}
