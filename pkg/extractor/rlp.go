package extractor

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/jihwankim/protofuzz/pkg/fuzzer"
)

// RLP splits buf into a sequence of top-level RLP-encoded items, used for
// protocols (like devp2p's wire format) that frame messages as
// concatenated RLP values rather than fixed-width headers. Each call to
// Stream.Raw returns the exact encoded bytes of one item, so
// concatenating the results reproduces buf, keeping extraction lossless.
// If any item fails to decode, or no item decodes at all, the whole buffer
// falls back to Raw as a single message; unlike TLS, items decoded before
// the failing one are not kept as separate messages.
func RLP(buf []byte) []fuzzer.Message {
	stream := rlp.NewStream(bytes.NewReader(buf), 0)

	var messages []fuzzer.Message
	for {
		raw, err := stream.Raw()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Raw(buf)
		}
		messages = append(messages, append(fuzzer.Message(nil), raw...))
	}

	if len(messages) == 0 {
		return Raw(buf)
	}
	return messages
}

func init() {
	Register("RLP", RLP)
}
