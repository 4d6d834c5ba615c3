package fuzzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/protofuzz/pkg/dictionary"
)

func freshMessages() []Message {
	return []Message{
		append(Message(nil), []byte("hello world, this is a test message")...),
		append(Message(nil), []byte("a second message in the sequence")...),
	}
}

func TestMutatorDeterministicWithSameSeed(t *testing.T) {
	m1 := NewMutator(DefaultSeed, nil)
	m1.RegionLevel = true
	messages1 := freshMessages()

	m2 := NewMutator(DefaultSeed, nil)
	m2.RegionLevel = true
	messages2 := freshMessages()

	for i := 0; i < 50; i++ {
		messages1 = m1.Mutate(messages1, 0)
		messages2 = m2.Mutate(messages2, 0)
	}

	require.Equal(t, len(messages1), len(messages2))
	for i := range messages1 {
		assert.Equal(t, []byte(messages1[i]), []byte(messages2[i]))
	}
}

func TestMutatorNeverEmptiesAMessage(t *testing.T) {
	m := NewMutator(DefaultSeed, nil)
	m.RegionLevel = true
	messages := freshMessages()

	for i := 0; i < 2000; i++ {
		messages = m.Mutate(messages, 0)
		for _, msg := range messages {
			assert.NotEmpty(t, msg)
		}
		assert.NotEmpty(t, messages)
	}
}

func TestByteOperatorsPreserveMessageCount(t *testing.T) {
	m := NewMutator(DefaultSeed, nil)
	messages := freshMessages()
	before := len(messages)

	for i := 0; i < 500; i++ {
		messages = m.Mutate(messages, 0)
		assert.Len(t, messages, before)
	}
}

func TestRegionOperatorsRequireTwoMessages(t *testing.T) {
	m := NewMutator(DefaultSeed, nil)
	m.RegionLevel = true
	single := []Message{append(Message(nil), []byte("only one message here")...)}

	for i := 0; i < 200; i++ {
		single = m.Mutate(single, 0)
		assert.Len(t, single, 1)
		assert.NotEmpty(t, single[0])
	}
}

func TestChooseBlockLenBounds(t *testing.T) {
	m := NewMutator(DefaultSeed, nil)

	for i := 0; i < 1000; i++ {
		l := m.chooseBlockLen(5)
		assert.GreaterOrEqual(t, l, 1)
		assert.LessOrEqual(t, l, 5)
	}

	for i := 0; i < 1000; i++ {
		l := m.chooseBlockLen(100)
		assert.GreaterOrEqual(t, l, 1)
		assert.LessOrEqual(t, l, 100)
	}
}

func TestOverwriteWithExtraRequiresFit(t *testing.T) {
	extras := []dictionary.Entry{{Data: []byte("TOO-LONG-TO-FIT-ANYWHERE-IN-SHORT-MESSAGES"), Len: 42}}
	m := NewMutator(DefaultSeed, extras)
	messages := []Message{append(Message(nil), []byte("short")...)}

	out := m.overwriteWithExtra(messages, 0)
	assert.Equal(t, []byte("short"), []byte(out[0]))
}

func TestInsertWithExtraIncrementsHitCount(t *testing.T) {
	extras := []dictionary.Entry{{Data: []byte("AB"), Len: 2}}
	m := NewMutator(DefaultSeed, extras)
	messages := []Message{append(Message(nil), []byte("hello")...)}

	m.insertWithExtra(messages, 0)
	assert.Equal(t, 1, extras[0].HitCount)
}

func TestDuplicateRegionGrowsSequence(t *testing.T) {
	m := NewMutator(DefaultSeed, nil)
	messages := freshMessages()

	out := m.duplicateRegion(messages, 0)
	assert.Len(t, out, 3)
	assert.Equal(t, []byte(out[0]), []byte(out[1]))
}
