package debugdump

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSessionPcapHasValidGlobalHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.pcap")

	messages := [][]byte{[]byte("client hello")}
	responses := [][]byte{[]byte("server hello"), []byte("server finished")}

	require.NoError(t, NewPcapWriter().WriteSessionPcap(path, messages, responses))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 24)

	magic := binary.LittleEndian.Uint32(data[0:4])
	assert.Equal(t, uint32(0xa1b2c3d4), magic)

	linktype := binary.LittleEndian.Uint32(data[20:24])
	assert.Equal(t, uint32(1), linktype)
}

func TestWriteSessionPcapWritesOnePacketPerInteraction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.pcap")

	messages := [][]byte{[]byte("a"), []byte("bb")}
	responses := [][]byte{[]byte("pre"), []byte("r1"), []byte("r2")}

	require.NoError(t, NewPcapWriter().WriteSessionPcap(path, messages, responses))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	offset := 24
	packets := 0
	for offset < len(data) {
		require.GreaterOrEqual(t, len(data)-offset, 16)
		inclLen := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
		offset += 16 + int(inclLen)
		packets++
	}
	assert.Equal(t, len(responses)+len(messages), packets)
	assert.Equal(t, len(data), offset)
}

func TestWriteSessionPcapRejectsMismatchedLengths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.pcap")

	err := NewPcapWriter().WriteSessionPcap(path, [][]byte{[]byte("a")}, [][]byte{[]byte("only one")})
	assert.Error(t, err)
}
