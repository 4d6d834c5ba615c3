package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTLSCleanBoundary(t *testing.T) {
	buf := []byte{0x01, 0x03, 0x03, 0x00, 0x02, 0xAA, 0xBB, 0x17, 0x03, 0x03, 0x00, 0x01, 0xCC}
	messages := TLS(buf)

	assert.Len(t, messages, 2)
	assert.Equal(t, 7, len(messages[0]))
	assert.Equal(t, 6, len(messages[1]))
}

func TestTLSTailTruncation(t *testing.T) {
	buf := []byte{0x16, 0x03, 0x03, 0x00, 0x05, 0x01, 0x02, 0x03}
	messages := TLS(buf)

	assert.Len(t, messages, 1)
	assert.Equal(t, buf, []byte(messages[0]))
}

func TestTLSLosslessRoundTrip(t *testing.T) {
	buf := []byte{0x16, 0x03, 0x03, 0x00, 0x03, 0xAA, 0xBB, 0xCC, 0x17, 0x03, 0x03, 0x00, 0x02, 0x01, 0x02, 0x09}
	messages := TLS(buf)

	concat := make([]byte, 0, len(buf))
	for _, m := range messages {
		concat = append(concat, m...)
	}
	assert.Equal(t, buf, concat)
}

func TestTLSShortBufferIsOneMessage(t *testing.T) {
	buf := []byte{0x01, 0x02}
	messages := TLS(buf)

	assert.Len(t, messages, 1)
	assert.Equal(t, buf, []byte(messages[0]))
}

func TestRawIsSingleMessage(t *testing.T) {
	buf := []byte("arbitrary-payload")
	messages := Raw(buf)

	assert.Len(t, messages, 1)
	assert.Equal(t, buf, []byte(messages[0]))
}

func TestForFallsBackToRaw(t *testing.T) {
	fn := For("unknown-protocol")
	messages := fn([]byte("x"))
	assert.Len(t, messages, 1)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("TLS"))
	assert.True(t, Known("RAW"))
	assert.False(t, Known("bogus"))
}
