package fuzzer

import (
	"fmt"
	"time"

	"github.com/jihwankim/protofuzz/pkg/harness"
)

// StageMax is the number of repeated runs a calibration performs.
const StageMax = 7

// ErrNoInstrumentation is returned by Calibrate when the first run of a
// case produces an empty coverage bitmap — the harness or target is
// misconfigured. This is a fatal condition at intake time.
var ErrNoInstrumentation = fmt.Errorf("calibration: target produced no instrumentation output")

// Calibrate runs tc's messages StageMax times through h, timing the runs
// and hashing the bitmap each time. It fills in tc's Cksum, TraceMiniHash,
// BitmapSize, ExecUS, VarBehavior and Handicap fields and
// folds the measurement into stats's running averages. handicap is the
// fuzzer's current queue cycle at the moment of calibration.
func Calibrate(h harness.Harness, tc *TestCase, timeout time.Duration, handicap int, stats *Stats) (harness.FaultCode, error) {
	start := time.Now()
	var lastFault harness.FaultCode

	for run := 0; run < StageMax; run++ {
		fault, err := harness.RunMessages(h, toRawMessages(tc.Messages), timeout)
		if err != nil {
			return harness.FaultError, err
		}
		lastFault = fault
		if fault != harness.FaultNone {
			break
		}

		if run == 0 && h.TraceBytesCount() == 0 {
			return harness.FaultNoInstrumentation, ErrNoInstrumentation
		}

		hash := h.TraceHash32()
		if run == 0 {
			tc.Cksum = hash
		} else if hash != tc.Cksum {
			tc.VarBehavior = true
		}
	}

	if lastFault != harness.FaultNone {
		return lastFault, nil
	}

	elapsed := time.Since(start)
	tc.ExecUS = float64(elapsed.Microseconds()) / float64(StageMax)
	tc.BitmapSize = h.TraceBytesCount()
	h.SimplifyTraceBits()
	tc.TraceMiniHash = h.TraceMinHash32()
	tc.Handicap = handicap

	stats.recordCalibration(tc.ExecUS, tc.BitmapSize)

	return harness.FaultNone, nil
}

func toRawMessages(messages []Message) [][]byte {
	out := make([][]byte, len(messages))
	for i, m := range messages {
		out[i] = m
	}
	return out
}
