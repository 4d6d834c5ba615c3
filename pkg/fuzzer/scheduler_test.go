package fuzzer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChooseNextWrapsAndIncrementsCycle(t *testing.T) {
	stats := &Stats{}
	s := NewScheduler(rand.New(rand.NewSource(1)))

	assert.Equal(t, 0, s.ChooseNext(3, stats))
	assert.Equal(t, 1, s.ChooseNext(3, stats))
	assert.Equal(t, 2, s.ChooseNext(3, stats))
	assert.Equal(t, 0, stats.QueueCycle)
	assert.Equal(t, 0, s.ChooseNext(3, stats))
	assert.Equal(t, 1, stats.QueueCycle)
}

func TestShouldSkipStatisticalRate(t *testing.T) {
	stats := &Stats{PendingFavored: 1}
	s := NewScheduler(rand.New(rand.NewSource(42)))
	tc := &TestCase{WasFuzzed: true}

	skips := 0
	const trials = 10000
	for i := 0; i < trials; i++ {
		if s.ShouldSkip(tc, stats) {
			skips++
		}
	}

	rate := float64(skips) / trials
	assert.InDelta(t, 0.99, rate, 0.01)
}

func TestShouldSkipNeverWhenNotYetFuzzed(t *testing.T) {
	stats := &Stats{PendingFavored: 1}
	s := NewScheduler(rand.New(rand.NewSource(1)))
	tc := &TestCase{WasFuzzed: false}

	assert.False(t, s.ShouldSkip(tc, stats))
}

func TestShouldSkipNeverWhenNoPendingFavored(t *testing.T) {
	stats := &Stats{PendingFavored: 0}
	s := NewScheduler(rand.New(rand.NewSource(1)))
	tc := &TestCase{WasFuzzed: true}

	assert.False(t, s.ShouldSkip(tc, stats))
}

func TestPerfScoreBounds(t *testing.T) {
	stats := &Stats{}
	stats.recordCalibration(1000, 10)

	execUSValues := []float64{10, 100, 500, 1000, 2000, 10000, 100000}
	bitmapValues := []int{1, 5, 10, 20, 100}
	handicaps := []int{0, 1, 4, 8}

	for _, e := range execUSValues {
		for _, b := range bitmapValues {
			for _, h := range handicaps {
				tc := &TestCase{ExecUS: e, BitmapSize: b, Handicap: h}
				score := PerfScore(tc, stats)
				assert.GreaterOrEqual(t, score, 1)
				assert.LessOrEqual(t, score, HavocMaxMult*100)
			}
		}
	}
}

func TestPerfScoreIncreasesAsExecShrinks(t *testing.T) {
	stats := &Stats{}
	stats.recordCalibration(10000, 10)

	fast := &TestCase{ExecUS: 2000, BitmapSize: 10}
	slow := &TestCase{ExecUS: 9000, BitmapSize: 10}

	assert.Greater(t, PerfScore(fast, stats), PerfScore(slow, stats))
}
