package fuzzer

import (
	"fmt"

	"github.com/jihwankim/protofuzz/pkg/harness"
)

// ErrUnexecutableTarget is returned from Classify when the harness
// reports FaultError: the target could not be run at all, a fatal
// condition for the session.
var ErrUnexecutableTarget = fmt.Errorf("classify: target is unexecutable")

// Classify implements the interesting-case decision for one
// completed run of messages against fault. parent is the Test Case the
// mutated messages were derived from, used for Depth bookkeeping.
//
// Returns kept=true when a new case was enqueued (F=NONE with new
// coverage); for CRASH/TMOUT it returns false since those artifacts are
// saved to their own directories, not the queue.
func (f *Fuzzer) Classify(messages []Message, fault harness.FaultCode, parent *TestCase) (kept bool, err error) {
	switch fault {
	case harness.FaultNone:
		return f.classifyNone(messages, parent)
	case harness.FaultTimeout:
		return false, f.classifyTimeout(messages)
	case harness.FaultCrash:
		return false, f.classifyCrash(messages)
	case harness.FaultError:
		return false, ErrUnexecutableTarget
	default:
		return false, fmt.Errorf("classify: unknown fault code %v", fault)
	}
}

func (f *Fuzzer) classifyNone(messages []Message, parent *TestCase) (bool, error) {
	newBit := f.Harness.HasNewBit()
	if newBit == harness.NoNewBit {
		return false, nil
	}

	id := len(f.Queue)
	path, err := f.persistRaw("queue", id, messages)
	if err != nil {
		return false, err
	}

	tc := NewTestCase(path, messages, parent.Depth+1)
	tc.HasNewCov = newBit == harness.NewEdge

	if _, err := Calibrate(f.Harness, tc, f.ExecTimeout, f.Stats.QueueCycle, f.Stats); err != nil {
		return false, fmt.Errorf("calibrate new case: %w", err)
	}

	f.Queue = append(f.Queue, tc)
	f.Stats.QueueLen = len(f.Queue)

	if f.TopRated.Cull(f.Queue, len(f.Queue)-1, f.Stats) {
		if _, err := f.persistRaw("favor_test_cases", f.UniqueFavors, messages); err != nil {
			return false, err
		}
		f.UniqueFavors++
	}

	return true, nil
}

func (f *Fuzzer) classifyTimeout(messages []Message) error {
	f.Stats.TotalTimeouts++
	if f.Stats.UniqueHangs >= KeepUniqueHang {
		return nil
	}

	f.Harness.SimplifyTraceBits()
	if !f.Harness.TimeoutHasNewBit() {
		return nil
	}

	if f.ExecTimeout < f.HangTimeout {
		fault, err := harness.RunMessages(f.Harness, toRawMessages(messages), f.HangTimeout)
		if err != nil {
			return err
		}
		if fault == harness.FaultCrash {
			return f.classifyCrash(messages)
		}
		if fault != harness.FaultTimeout {
			return nil
		}
	}

	if _, err := f.persistRaw("tmout_test_cases", f.Stats.UniqueHangs, messages); err != nil {
		return err
	}
	f.Stats.UniqueHangs++
	return nil
}

func (f *Fuzzer) classifyCrash(messages []Message) error {
	f.Stats.TotalCrashes++
	if f.Stats.UniqueCrashes >= KeepUniqueCrash {
		return nil
	}

	f.Harness.SimplifyTraceBits()
	if !f.Harness.TimeoutHasNewBit() {
		return nil
	}

	if _, err := f.persistRaw("crash_test_cases", f.Stats.UniqueCrashes, messages); err != nil {
		return err
	}
	f.Stats.UniqueCrashes++
	return nil
}
