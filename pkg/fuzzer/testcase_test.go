package fuzzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTestCaseBasics(t *testing.T) {
	messages := []Message{[]byte("abc"), []byte("de")}
	tc := NewTestCase("seed.raw", messages, 0)

	assert.Equal(t, 2, tc.MessageCount())
	assert.Equal(t, 5, tc.TotalLen())
	assert.Equal(t, 0, tc.Depth)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	messages := []Message{[]byte("abc")}
	tc := NewTestCase("seed.raw", messages, 0)

	clone := tc.Clone()
	clone[0][0] = 'X'

	assert.Equal(t, byte('a'), tc.Messages[0][0])
	assert.Equal(t, byte('X'), clone[0][0])
}

func TestConcatReproducesInput(t *testing.T) {
	original := []byte("hello world")
	messages := []Message{original[:5], original[5:]}

	assert.Equal(t, original, Concat(messages))
}

func TestFavorFactor(t *testing.T) {
	tc := &TestCase{ExecUS: 100, Messages: []Message{{1}, {2}, {3}}}
	assert.Equal(t, 300.0, tc.FavorFactor())
}
