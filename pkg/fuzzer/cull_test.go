package fuzzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCullPromotesFasterCase(t *testing.T) {
	stats := &Stats{}
	tr := NewTopRated()

	a := &TestCase{ExecUS: 1000, Messages: make([]Message, 5), TraceMiniHash: 0xABCD}
	b := &TestCase{ExecUS: 400, Messages: make([]Message, 5), TraceMiniHash: 0xABCD}
	queue := []*TestCase{a, b}

	changedA := tr.Cull(queue, 0, stats)
	changedB := tr.Cull(queue, 1, stats)

	assert.True(t, changedA)
	assert.True(t, changedB)

	idx, ok := tr.Lookup(0xABCD)
	assert.True(t, ok)
	assert.Same(t, b, queue[idx])
	assert.False(t, a.Favored)
	assert.True(t, b.Favored)
}

func TestCullRejectsSlowerCase(t *testing.T) {
	stats := &Stats{}
	tr := NewTopRated()

	fast := &TestCase{ExecUS: 100, Messages: make([]Message, 5), TraceMiniHash: 0xABCD}
	slow := &TestCase{ExecUS: 900, Messages: make([]Message, 5), TraceMiniHash: 0xABCD}
	queue := []*TestCase{fast, slow}

	tr.Cull(queue, 0, stats)
	changed := tr.Cull(queue, 1, stats)

	assert.False(t, changed)
	idx, _ := tr.Lookup(0xABCD)
	assert.Same(t, fast, queue[idx])
}

func TestCullTracksPendingFavored(t *testing.T) {
	stats := &Stats{}
	tr := NewTopRated()

	a := &TestCase{ExecUS: 1000, Messages: make([]Message, 5), TraceMiniHash: 0xABCD}
	queue := []*TestCase{a}

	tr.Cull(queue, 0, stats)
	assert.Equal(t, 1, stats.PendingFavored)

	b := &TestCase{ExecUS: 400, Messages: make([]Message, 5), TraceMiniHash: 0xABCD}
	queue = append(queue, b)
	tr.Cull(queue, 1, stats)

	assert.Equal(t, 1, stats.PendingFavored)
}
