package fuzzer

import "math/rand"

// SkipToNewProb is the percent chance that
// an already-fuzzed case is skipped for this round while a favored case
// is still waiting to be fuzzed.
const SkipToNewProb = 99

// HavocMaxMult caps the performance-score multiplier.
const HavocMaxMult = 16

// Scheduler advances a round-robin cursor through a queue and computes
// each chosen case's havoc performance score.
type Scheduler struct {
	cursor int
	rng    *rand.Rand
}

// NewScheduler creates a Scheduler reading randomness from rng (normally
// seeded with the same seed as the Mutator's own PRNG, so a whole session
// replays deterministically from one seed).
func NewScheduler(rng *rand.Rand) *Scheduler {
	return &Scheduler{rng: rng}
}

// ChooseNext advances the cursor through queue, wrapping to 0 and
// incrementing stats.QueueCycle on wraparound, and returns the index of
// the case to consider this round.
func (s *Scheduler) ChooseNext(queueLen int, stats *Stats) int {
	if s.cursor >= queueLen {
		s.cursor = 0
		stats.QueueCycle++
	}
	idx := s.cursor
	s.cursor++
	return idx
}

// ShouldSkip implements the skip-probability check: when
// there is at least one favored case still waiting to be fuzzed and tc
// has already been fuzzed once, skip it with probability
// SkipToNewProb/100 so the scheduler converges on fresh favored cases.
func (s *Scheduler) ShouldSkip(tc *TestCase, stats *Stats) bool {
	if stats.PendingFavored > 0 && tc.WasFuzzed {
		return s.rng.Intn(100) < SkipToNewProb
	}
	return false
}

// PerfScore computes the per-case havoc budget, bounded to
// [1, HavocMaxMult*100].
func PerfScore(tc *TestCase, stats *Stats) int {
	avgExecUS := stats.AvgExecUS()
	avgBitmapSize := stats.AvgBitmapSize()

	score := 100.0

	switch {
	case avgExecUS > 0 && tc.ExecUS*0.1 > avgExecUS:
		score = 10
	case avgExecUS > 0 && tc.ExecUS*0.25 > avgExecUS:
		score = 25
	case avgExecUS > 0 && tc.ExecUS*0.5 > avgExecUS:
		score = 50
	case avgExecUS > 0 && tc.ExecUS*0.75 > avgExecUS:
		score = 75
	case avgExecUS > 0 && tc.ExecUS*4 < avgExecUS:
		score = 300
	case avgExecUS > 0 && tc.ExecUS*3 < avgExecUS:
		score = 200
	case avgExecUS > 0 && tc.ExecUS*2 < avgExecUS:
		score = 150
	}

	bitmapSize := float64(tc.BitmapSize)
	switch {
	case avgBitmapSize > 0 && bitmapSize*0.3 > avgBitmapSize:
		score *= 3
	case avgBitmapSize > 0 && bitmapSize*0.5 > avgBitmapSize:
		score *= 2
	case avgBitmapSize > 0 && bitmapSize*0.75 > avgBitmapSize:
		score *= 1.5
	case avgBitmapSize > 0 && bitmapSize*3 < avgBitmapSize:
		score *= 0.25
	case avgBitmapSize > 0 && bitmapSize*2 < avgBitmapSize:
		score *= 0.5
	case avgBitmapSize > 0 && bitmapSize*1.5 < avgBitmapSize:
		score *= 0.75
	}

	handicap := tc.Handicap
	switch {
	case handicap >= 4:
		score *= 4
		tc.Handicap -= 4
	case handicap > 0:
		score *= 2
		tc.Handicap--
	}

	switch {
	case avgExecUS > 50000:
		score /= 10
	case avgExecUS > 20000:
		score /= 5
	case avgExecUS > 10000:
		score /= 2
	}

	max := float64(HavocMaxMult * 100)
	if score > max {
		score = max
	}
	if score < 1 {
		score = 1
	}
	return int(score)
}
