// Package extractor splits raw seed bytes into the ordered list of
// protocol Messages a Test Case is built from.
package extractor

import (
	"encoding/binary"

	"github.com/jihwankim/protofuzz/pkg/fuzzer"
)

// tlsHeaderLen is the length of a TLS record header: 1-byte content
// type, 2-byte version, 2-byte big-endian length.
const tlsHeaderLen = 5

// TLS splits buf into TLS records. At each position it requires a full
// 5-byte header; the big-endian 16-bit length at offset+3 gives the
// record's payload size, so the record spans [p, p+5+length). A record
// that would extend past the end of buf is emitted as a final, truncated
// message and extraction stops there. If no full record can be parsed at
// position 0 (buf shorter than one header), the whole buffer is a single
// message. The extractor is lossless: Concat(TLS(buf)) == buf always.
func TLS(buf []byte) []fuzzer.Message {
	if len(buf) < tlsHeaderLen {
		return []fuzzer.Message{append(fuzzer.Message(nil), buf...)}
	}

	var messages []fuzzer.Message
	p := 0
	for p < len(buf) {
		if len(buf)-p < tlsHeaderLen {
			messages = append(messages, append(fuzzer.Message(nil), buf[p:]...))
			break
		}
		recordLen := int(binary.BigEndian.Uint16(buf[p+3 : p+5]))
		end := p + tlsHeaderLen + recordLen
		if end > len(buf) {
			messages = append(messages, append(fuzzer.Message(nil), buf[p:]...))
			break
		}
		messages = append(messages, append(fuzzer.Message(nil), buf[p:end]...))
		p = end
	}
	return messages
}

// Raw produces a single-element message list containing the whole
// buffer, the fallback extractor for any protocol with no message
// framing of its own.
func Raw(buf []byte) []fuzzer.Message {
	return []fuzzer.Message{append(fuzzer.Message(nil), buf...)}
}

// Func is the shape every registered extractor implements.
type Func func(buf []byte) []fuzzer.Message

var registry = map[string]Func{
	"TLS": TLS,
	"RAW": Raw,
}

// Register adds or replaces the extractor for protocol, so callers can
// plug in additional framings (rlp.go registers RLP this way from its
// init function).
func Register(protocol string, fn Func) {
	registry[protocol] = fn
}

// For returns the extractor registered for protocol, defaulting to Raw
// when the protocol is unrecognized.
func For(protocol string) Func {
	if fn, ok := registry[protocol]; ok {
		return fn
	}
	return Raw
}

// Known reports whether protocol has a registered extractor, for config
// validation at startup.
func Known(protocol string) bool {
	_, ok := registry[protocol]
	return ok
}
