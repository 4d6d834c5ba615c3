package fuzzer

import (
	"math/rand"

	"github.com/jihwankim/protofuzz/pkg/dictionary"
)

// DefaultSeed is the default PRNG seed, chosen to make mutation sequences
// reproducible across runs and across implementations that share it.
const DefaultSeed = 12138

const (
	arithMax    = 35
	maxMsgLen   = 1 << 20 // 1 MiB cap on a single message's length
	blockLenMax = 64
)

var interesting8 = []int8{-128, -1, 0, 1, 16, 32, 64, 100, 127}

var interesting16 = []int16{-32768, -129, 128, 255, 256, 512, 1000, 1024, 4096, 32767}

var interesting32 = []int32{-2147483648, -100663046, -32769, 32768, 65535, 65536, 100663045, 2147483647}

// Mutator applies the 21 havoc-style operators to a message sequence. It
// owns a seeded PRNG so mutation sequences are reproducible: the same
// seed and the same sequence of mutate() calls always produce the same
// bytes.
type Mutator struct {
	rng     *rand.Rand
	extras  []dictionary.Entry
	aExtras []dictionary.Entry

	// RegionLevel enables operators 17-20 (region-level mutation across
	// the message sequence). Off unless the caller sets it.
	RegionLevel bool
}

// NewMutator creates a Mutator seeded with seed, using extras as the
// dictionary for overwrite/insert-with-extra. The alternate pool aExtras,
// which those operators fall back to when extras is empty, starts empty
// and nothing in this package fills it.
func NewMutator(seed int64, extras []dictionary.Entry) *Mutator {
	return &Mutator{
		rng:     rand.New(rand.NewSource(seed)),
		extras:  extras,
		aExtras: nil,
	}
}

type mutateFunc func(m *Mutator, messages []Message, idx int) []Message

// operators is indexed by operator id 0-20.
// Each operator receives and returns the message slice (region operators
// change its length; byte operators return it unchanged).
var operators = [21]mutateFunc{
	0:  (*Mutator).flipSingleBit,
	1:  (*Mutator).interesting8Op,
	2:  (*Mutator).interesting16Op,
	3:  (*Mutator).interesting32Op,
	4:  (*Mutator).subtractFromByte,
	5:  (*Mutator).addToByte,
	6:  (*Mutator).subtractFromWord,
	7:  (*Mutator).addToWord,
	8:  (*Mutator).subtractFromDword,
	9:  (*Mutator).addToDword,
	10: (*Mutator).randomXorByte,
	11: (*Mutator).deleteBytes,
	12: (*Mutator).deleteBytes,
	13: (*Mutator).cloneOrInsertBlock,
	14: (*Mutator).overwriteBytes,
	15: (*Mutator).overwriteWithExtra,
	16: (*Mutator).insertWithExtra,
	17: (*Mutator).overwriteWithRegion,
	18: (*Mutator).insertRegionBefore,
	19: (*Mutator).insertRegionAfter,
	20: (*Mutator).duplicateRegion,
}

// Mutate applies one randomly chosen operator to messages at msgIdx,
// returning the (possibly length-changed) message slice. Operators 0-16
// are always eligible; 17-20 only when RegionLevel is set, matching the
// uniform-selection range of the byte-level operator catalogue.
func (m *Mutator) Mutate(messages []Message, msgIdx int) []Message {
	maxChoice := 16
	if m.RegionLevel {
		maxChoice = 20
	}
	choice := m.rng.Intn(maxChoice + 1)

	if choice >= 17 && len(messages) < 2 {
		choice = 0
	}

	return operators[choice](m, messages, msgIdx)
}

func (m *Mutator) chooseBlockLen(maxLen int) int {
	if maxLen < 8 {
		return 1 + m.rng.Intn(maxLen)
	}
	if m.rng.Intn(4) != 0 {
		ceil := 8
		if maxLen < ceil {
			ceil = maxLen
		}
		return 1 + m.rng.Intn(ceil)
	}
	lo := 8
	hi := maxLen
	if hi > blockLenMax {
		hi = blockLenMax
	}
	if hi < lo {
		hi = lo
	}
	return lo + m.rng.Intn(hi-lo+1)
}

func (m *Mutator) randomByte() byte {
	return byte(m.rng.Intn(256))
}

// --- byte-level operators (0-16) ---

func (m *Mutator) flipSingleBit(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) == 0 {
		return messages
	}
	bitPos := m.rng.Intn(len(msg) * 8)
	msg[bitPos/8] ^= 1 << uint(bitPos%8)
	return messages
}

func (m *Mutator) interesting8Op(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 1 {
		return messages
	}
	pos := m.rng.Intn(len(msg))
	msg[pos] = byte(interesting8[m.rng.Intn(len(interesting8))])
	return messages
}

func (m *Mutator) interesting16Op(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 2 {
		return messages
	}
	pos := m.rng.Intn(len(msg) - 1)
	v := uint16(interesting16[m.rng.Intn(len(interesting16))])
	if m.rng.Intn(2) == 0 {
		msg[pos] = byte(v)
		msg[pos+1] = byte(v >> 8)
	} else {
		msg[pos] = byte(v >> 8)
		msg[pos+1] = byte(v)
	}
	return messages
}

func (m *Mutator) interesting32Op(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 4 {
		return messages
	}
	pos := m.rng.Intn(len(msg) - 3)
	v := uint32(interesting32[m.rng.Intn(len(interesting32))])
	if m.rng.Intn(2) == 0 {
		msg[pos] = byte(v)
		msg[pos+1] = byte(v >> 8)
		msg[pos+2] = byte(v >> 16)
		msg[pos+3] = byte(v >> 24)
	} else {
		msg[pos] = byte(v >> 24)
		msg[pos+1] = byte(v >> 16)
		msg[pos+2] = byte(v >> 8)
		msg[pos+3] = byte(v)
	}
	return messages
}

func (m *Mutator) subtractFromByte(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 1 {
		return messages
	}
	pos := m.rng.Intn(len(msg))
	delta := byte(1 + m.rng.Intn(arithMax))
	msg[pos] -= delta
	return messages
}

func (m *Mutator) addToByte(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 1 {
		return messages
	}
	pos := m.rng.Intn(len(msg))
	delta := byte(1 + m.rng.Intn(arithMax))
	msg[pos] += delta
	return messages
}

func (m *Mutator) subtractFromWord(messages []Message, idx int) []Message {
	return m.arithWord(messages, idx, -1)
}

func (m *Mutator) addToWord(messages []Message, idx int) []Message {
	return m.arithWord(messages, idx, 1)
}

func (m *Mutator) arithWord(messages []Message, idx int, sign int16) []Message {
	msg := messages[idx]
	if len(msg) < 2 {
		return messages
	}
	pos := m.rng.Intn(len(msg) - 1)
	delta := sign * int16(1+m.rng.Intn(arithMax))
	bigEndian := m.rng.Intn(2) == 0
	var v uint16
	if bigEndian {
		v = uint16(msg[pos])<<8 | uint16(msg[pos+1])
	} else {
		v = uint16(msg[pos+1])<<8 | uint16(msg[pos])
	}
	v = uint16(int16(v) + delta)
	if bigEndian {
		msg[pos] = byte(v >> 8)
		msg[pos+1] = byte(v)
	} else {
		msg[pos+1] = byte(v >> 8)
		msg[pos] = byte(v)
	}
	return messages
}

func (m *Mutator) subtractFromDword(messages []Message, idx int) []Message {
	return m.arithDword(messages, idx, -1)
}

func (m *Mutator) addToDword(messages []Message, idx int) []Message {
	return m.arithDword(messages, idx, 1)
}

func (m *Mutator) arithDword(messages []Message, idx int, sign int32) []Message {
	msg := messages[idx]
	if len(msg) < 4 {
		return messages
	}
	pos := m.rng.Intn(len(msg) - 3)
	delta := sign * int32(1+m.rng.Intn(arithMax))
	bigEndian := m.rng.Intn(2) == 0
	var v uint32
	if bigEndian {
		v = uint32(msg[pos])<<24 | uint32(msg[pos+1])<<16 | uint32(msg[pos+2])<<8 | uint32(msg[pos+3])
	} else {
		v = uint32(msg[pos+3])<<24 | uint32(msg[pos+2])<<16 | uint32(msg[pos+1])<<8 | uint32(msg[pos])
	}
	v = uint32(int32(v) + delta)
	if bigEndian {
		msg[pos] = byte(v >> 24)
		msg[pos+1] = byte(v >> 16)
		msg[pos+2] = byte(v >> 8)
		msg[pos+3] = byte(v)
	} else {
		msg[pos+3] = byte(v >> 24)
		msg[pos+2] = byte(v >> 16)
		msg[pos+1] = byte(v >> 8)
		msg[pos] = byte(v)
	}
	return messages
}

func (m *Mutator) randomXorByte(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 1 {
		return messages
	}
	pos := m.rng.Intn(len(msg))
	x := byte(1 + m.rng.Intn(255))
	msg[pos] ^= x
	return messages
}

func (m *Mutator) deleteBytes(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 2 {
		return messages
	}
	delLen := m.chooseBlockLen(len(msg) - 1)
	if delLen >= len(msg) {
		delLen = len(msg) - 1
	}
	pos := m.rng.Intn(len(msg) - delLen + 1)
	out := make(Message, 0, len(msg)-delLen)
	out = append(out, msg[:pos]...)
	out = append(out, msg[pos+delLen:]...)
	messages[idx] = out
	return messages
}

func (m *Mutator) cloneOrInsertBlock(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) == 0 {
		return messages
	}

	var block []byte
	if m.rng.Intn(4) != 0 {
		blockLen := m.chooseBlockLen(len(msg))
		srcPos := m.rng.Intn(len(msg) - blockLen + 1)
		block = append([]byte(nil), msg[srcPos:srcPos+blockLen]...)
	} else {
		blockLen := m.chooseBlockLen(blockLenMax)
		block = make([]byte, blockLen)
		if m.rng.Intn(2) == 0 {
			for i := range block {
				block[i] = m.randomByte()
			}
		} else {
			b := m.randomByte()
			for i := range block {
				block[i] = b
			}
		}
	}

	if len(msg)+len(block) > maxMsgLen {
		return messages
	}

	insertPos := m.rng.Intn(len(msg) + 1)
	out := make(Message, 0, len(msg)+len(block))
	out = append(out, msg[:insertPos]...)
	out = append(out, block...)
	out = append(out, msg[insertPos:]...)
	messages[idx] = out
	return messages
}

func (m *Mutator) overwriteBytes(messages []Message, idx int) []Message {
	msg := messages[idx]
	if len(msg) < 2 {
		return messages
	}
	blockLen := m.chooseBlockLen(len(msg))
	dstPos := m.rng.Intn(len(msg) - blockLen + 1)

	if m.rng.Intn(4) != 0 {
		srcPos := m.rng.Intn(len(msg) - blockLen + 1)
		copy(msg[dstPos:dstPos+blockLen], msg[srcPos:srcPos+blockLen])
	} else {
		var fill byte
		if m.rng.Intn(2) == 0 {
			fill = m.randomByte()
		} else {
			fill = msg[m.rng.Intn(len(msg))]
		}
		for i := dstPos; i < dstPos+blockLen; i++ {
			msg[i] = fill
		}
	}
	return messages
}

func (m *Mutator) overwriteWithExtra(messages []Message, idx int) []Message {
	entry := m.pickExtra()
	if entry == nil {
		return messages
	}
	msg := messages[idx]
	if entry.Len > len(msg) {
		return messages
	}
	pos := m.rng.Intn(len(msg) - entry.Len + 1)
	copy(msg[pos:pos+entry.Len], entry.Data)
	return messages
}

func (m *Mutator) insertWithExtra(messages []Message, idx int) []Message {
	entry := m.pickExtra()
	if entry == nil {
		return messages
	}
	msg := messages[idx]
	if len(msg)+entry.Len >= maxMsgLen {
		return messages
	}
	pos := m.rng.Intn(len(msg) + 1)
	out := make(Message, 0, len(msg)+entry.Len)
	out = append(out, msg[:pos]...)
	out = append(out, entry.Data...)
	out = append(out, msg[pos:]...)
	entry.HitCount++
	messages[idx] = out
	return messages
}

func (m *Mutator) pickExtra() *dictionary.Entry {
	pool := m.extras
	if len(pool) == 0 {
		pool = m.aExtras
	}
	if len(pool) == 0 {
		return nil
	}
	return &pool[m.rng.Intn(len(pool))]
}

// --- region-level operators (17-20) ---

func (m *Mutator) otherIndex(messages []Message, idx int) int {
	if len(messages) < 2 {
		return idx
	}
	for {
		j := m.rng.Intn(len(messages))
		if j != idx {
			return j
		}
	}
}

func (m *Mutator) overwriteWithRegion(messages []Message, idx int) []Message {
	if len(messages) < 2 {
		return m.flipSingleBit(messages, idx)
	}
	other := m.otherIndex(messages, idx)
	messages[idx] = append(Message(nil), messages[other]...)
	return messages
}

func (m *Mutator) insertRegionBefore(messages []Message, idx int) []Message {
	if len(messages) < 2 {
		return m.flipSingleBit(messages, idx)
	}
	other := m.otherIndex(messages, idx)
	clone := append(Message(nil), messages[other]...)
	return insertMessageAt(messages, idx, clone)
}

func (m *Mutator) insertRegionAfter(messages []Message, idx int) []Message {
	if len(messages) < 2 {
		return m.flipSingleBit(messages, idx)
	}
	other := m.otherIndex(messages, idx)
	clone := append(Message(nil), messages[other]...)
	return insertMessageAt(messages, idx+1, clone)
}

func (m *Mutator) duplicateRegion(messages []Message, idx int) []Message {
	if len(messages) < 2 {
		return m.flipSingleBit(messages, idx)
	}
	clone := append(Message(nil), messages[idx]...)
	return insertMessageAt(messages, idx+1, clone)
}

func insertMessageAt(messages []Message, pos int, msg Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	out = append(out, messages[:pos]...)
	out = append(out, msg)
	out = append(out, messages[pos:]...)
	return out
}
