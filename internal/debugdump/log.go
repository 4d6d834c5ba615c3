// Package debugdump writes the human-readable and packet-capture debug
// artifacts produced for a single triaged test case: session.log pairs
// every sent message with the response that followed it, and
// session.pcap replays the same exchange as a synthetic TCP stream that
// opens directly in Wireshark.
package debugdump

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// WriteSessionLog writes a session.log-style transcript to path. responses
// must have one more entry than messages: responses[0] is the pre-run
// response observed before any message was sent, and responses[i+1] is
// the response to messages[i].
func WriteSessionLog(path string, messages [][]byte, responses [][]byte) error {
	if len(responses) != len(messages)+1 {
		return fmt.Errorf("debugdump: responses must have len(messages)+1 entries, got %d for %d messages", len(responses), len(messages))
	}

	var b strings.Builder
	b.WriteString("=== Message-Response Debug Log ===\n\n")

	b.WriteString("[PRE-RUN INITIAL STATE]\n")
	fmt.Fprintf(&b, "Response: %q\n\n", responses[0])

	for i, msg := range messages {
		fmt.Fprintf(&b, "[INTERACTION %d]\n", i+1)
		fmt.Fprintf(&b, "Sent: %q\n", msg)
		fmt.Fprintf(&b, "Received: %q\n\n", responses[i+1])
	}

	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Log generated at: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	return os.WriteFile(path, []byte(b.String()), 0o644)
}
