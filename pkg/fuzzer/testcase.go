// Package fuzzer implements the coverage-guided fuzzing core: the test
// case representation, the havoc mutator, calibration, the favored-path
// cull engine, the scheduler, the interesting-case classifier, and the
// fuzz loop that drives them.
package fuzzer

// Message is a single framed protocol unit within a Test Case.
type Message []byte

// TestCase is an ordered, non-empty sequence of Messages plus the
// scheduling and calibration metadata the fuzz loop attaches to it.
type TestCase struct {
	FilePath string
	Messages []Message

	// Cksum is the 32-bit fingerprint of the full coverage bitmap from
	// calibration. Zero means uncalibrated.
	Cksum uint32

	// TraceMiniHash is the 32-bit fingerprint of the minimized bitmap,
	// the key used by the Top-Rated favored-path map.
	TraceMiniHash uint32

	// BitmapSize is the count of non-zero bytes in the coverage bitmap.
	BitmapSize int

	// ExecUS is the mean per-execution wall time, in microseconds,
	// across calibration runs.
	ExecUS float64

	VarBehavior bool
	WasFuzzed   bool
	Favored     bool
	HasNewCov   bool
	Depth       int
	Handicap    int
}

// NewTestCase wraps messages into a fresh, uncalibrated Test Case at the
// given depth. messages must be non-empty; callers enforce this upstream
// since an empty-message test case can never be produced by the
// extractor or by any mutator operator.
func NewTestCase(filePath string, messages []Message, depth int) *TestCase {
	return &TestCase{
		FilePath: filePath,
		Messages: messages,
		Depth:    depth,
	}
}

// MessageCount returns the number of Messages in the case.
func (t *TestCase) MessageCount() int {
	return len(t.Messages)
}

// TotalLen returns the sum of all Message lengths, i.e. the length of the
// concatenated on-disk artifact.
func (t *TestCase) TotalLen() int {
	n := 0
	for _, m := range t.Messages {
		n += len(m)
	}
	return n
}

// FavorFactor is exec time scaled by message count, the metric the cull
// engine (§4.5) uses to pick the fastest minimal representative of a
// trace fingerprint.
func (t *TestCase) FavorFactor() float64 {
	return t.ExecUS * float64(t.MessageCount())
}

// Clone returns a deep copy of the case's messages, independent of the
// original backing arrays. fuzz_one mutates this copy so a failed
// mutation round can never corrupt the canonical queue entry.
func (t *TestCase) Clone() []Message {
	out := make([]Message, len(t.Messages))
	for i, m := range t.Messages {
		out[i] = append(Message(nil), m...)
	}
	return out
}

// Concat reproduces the raw on-disk artifact: the messages joined back
// into one byte slice, exactly as the extractor's input arrived.
func Concat(messages []Message) []byte {
	total := 0
	for _, m := range messages {
		total += len(m)
	}
	out := make([]byte, 0, total)
	for _, m := range messages {
		out = append(out, m...)
	}
	return out
}
