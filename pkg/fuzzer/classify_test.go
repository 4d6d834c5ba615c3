package fuzzer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/protofuzz/pkg/harness"
)

func newTestFuzzer(t *testing.T, h harness.Harness) *Fuzzer {
	t.Helper()
	f, err := New(Config{
		Harness:     h,
		OutputDir:   t.TempDir(),
		ExecTimeout: 50 * time.Millisecond,
		Seed:        DefaultSeed,
	})
	require.NoError(t, err)
	return f
}

func TestClassifyNoneWithNewCoverageEnqueues(t *testing.T) {
	h := harness.NewNullHarness(50 * time.Millisecond)
	calls := 0
	h.ScoreFunc = func(sent [][]byte) []byte {
		calls++
		out := make([]byte, calls)
		for i := range out {
			out[i] = 1
		}
		return out
	}

	f := newTestFuzzer(t, h)
	parent := NewTestCase("seed.raw", []Message{[]byte("seed")}, 0)

	_, err := harness.RunMessages(h, [][]byte{[]byte("mutated")}, f.ExecTimeout)
	require.NoError(t, err)

	kept, err := f.Classify([]Message{[]byte("mutated")}, harness.FaultNone, parent)
	require.NoError(t, err)

	assert.True(t, kept)
	assert.Len(t, f.Queue, 1)
	assert.Equal(t, 1, f.Queue[0].Depth)

	_, statErr := os.Stat(filepath.Join(f.OutputDir, "queue", "id:000000.raw"))
	assert.NoError(t, statErr)
}

func TestClassifyNoneWithoutNewCoverageDiscards(t *testing.T) {
	h := harness.NewNullHarness(50 * time.Millisecond)
	h.ScoreFunc = func(sent [][]byte) []byte { return []byte{1, 1} }

	f := newTestFuzzer(t, h)
	parent := NewTestCase("seed.raw", []Message{[]byte("seed")}, 0)

	// First run registers the bitmap as seen.
	_, _ = harness.RunMessages(h, [][]byte{[]byte("x")}, f.ExecTimeout)
	h.HasNewBit()

	_, _ = harness.RunMessages(h, [][]byte{[]byte("x")}, f.ExecTimeout)
	kept, err := f.Classify([]Message{[]byte("x")}, harness.FaultNone, parent)

	require.NoError(t, err)
	assert.False(t, kept)
	assert.Empty(t, f.Queue)
}

func TestClassifyCrashPersistsOnNewBit(t *testing.T) {
	h := harness.NewNullHarness(50 * time.Millisecond)
	h.ScoreFunc = func(sent [][]byte) []byte { return []byte{1, 0} }

	f := newTestFuzzer(t, h)
	_, _ = harness.RunMessages(h, [][]byte{[]byte("crashy")}, f.ExecTimeout)

	kept, err := f.Classify([]Message{[]byte("crashy")}, harness.FaultCrash, nil)

	require.NoError(t, err)
	assert.False(t, kept)
	assert.Equal(t, 1, f.Stats.UniqueCrashes)
	assert.Equal(t, 1, f.Stats.TotalCrashes)

	_, statErr := os.Stat(filepath.Join(f.OutputDir, "crash_test_cases", "id:000000.raw"))
	assert.NoError(t, statErr)
}

func TestClassifyErrorIsUnexecutable(t *testing.T) {
	h := harness.NewNullHarness(50 * time.Millisecond)
	f := newTestFuzzer(t, h)

	_, err := f.Classify([]Message{[]byte("x")}, harness.FaultError, nil)
	assert.ErrorIs(t, err, ErrUnexecutableTarget)
}

func TestClassifyTimeoutPersistsNewHang(t *testing.T) {
	h := harness.NewNullHarness(50 * time.Millisecond)
	h.ScoreFunc = func(sent [][]byte) []byte { return []byte{1, 0} }
	h.FaultFunc = func(sent [][]byte) harness.FaultCode { return harness.FaultTimeout }

	f := newTestFuzzer(t, h)
	f.ExecTimeout = f.HangTimeout // skip the re-validation branch

	_, _ = harness.RunMessages(h, [][]byte{[]byte("slow")}, f.ExecTimeout)
	err := f.classifyTimeout([]Message{[]byte("slow")})

	require.NoError(t, err)
	assert.Equal(t, 1, f.Stats.UniqueHangs)
	assert.Equal(t, 1, f.Stats.TotalTimeouts)
}
