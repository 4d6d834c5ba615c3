package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jihwankim/protofuzz/internal/debugdump"
	"github.com/jihwankim/protofuzz/pkg/extractor"
	"github.com/jihwankim/protofuzz/pkg/fuzzconfig"
)

var triageCmd = &cobra.Command{
	Use:   "triage <config.json> <queue-file>",
	Args:  cobra.ExactArgs(2),
	Short: "Replay a single persisted test case and dump the exchange for inspection",
	Long: `Triage re-runs one test case (a raw file from queue/, crash_test_cases/,
or tmout_test_cases/) through the configured harness exactly once, printing
the fault classification and writing session.log and session.pcap for the
message/response exchange that was observed.

Examples:
  protofuzz triage config.json out/crash_test_cases/id:000001.raw
  protofuzz triage --no-pcap config.json out/queue/id:000042.raw`,
	RunE: runTriage,
}

func init() {
	triageCmd.Flags().Bool("no-pcap", false, "skip writing session.pcap")
	triageCmd.Flags().String("dump-dir", ".", "directory to write session.log/session.pcap into")
}

func runTriage(cmd *cobra.Command, args []string) error {
	cfg, err := fuzzconfig.Load(args[0])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	queuePath := args[1]
	data, err := os.ReadFile(queuePath)
	if err != nil {
		return fmt.Errorf("read queue file: %w", err)
	}
	messages := extractor.For(cfg.Protocol)(data)

	h, err := buildHarness(cfg)
	if err != nil {
		return fmt.Errorf("build harness: %w", err)
	}
	if err := h.SetUp(); err != nil {
		return fmt.Errorf("harness setup: %w", err)
	}
	defer func() { _ = h.Clear() }()

	if err := h.PreRunTarget(cfg.Harness.ExecTimeout); err != nil {
		return fmt.Errorf("pre-run: %w", err)
	}

	responses := [][]byte{append([]byte(nil), h.ResponseBuffer()...)}
	rawMessages := make([][]byte, len(messages))
	for i, m := range messages {
		rawMessages[i] = []byte(m)
		if err := h.RunTarget(rawMessages[i]); err != nil {
			return fmt.Errorf("send message %d: %w", i, err)
		}
		responses = append(responses, append([]byte(nil), h.ResponseBuffer()...))
	}

	fault, err := h.PostRunTarget(cfg.Harness.HangTimeout)
	if err != nil {
		return fmt.Errorf("post-run: %w", err)
	}

	fmt.Printf("file:       %s\n", queuePath)
	fmt.Printf("messages:   %d\n", len(messages))
	fmt.Printf("fault:      %s\n", fault)
	fmt.Printf("trace hash: %08x\n", h.TraceHash32())

	logPath := filepath.Join(mustString(cmd, "dump-dir"), "session.log")
	if err := debugdump.WriteSessionLog(logPath, rawMessages, responses); err != nil {
		return fmt.Errorf("write session log: %w", err)
	}
	fmt.Printf("wrote %s\n", logPath)

	if noPcap, _ := cmd.Flags().GetBool("no-pcap"); !noPcap {
		pcapPath := filepath.Join(mustString(cmd, "dump-dir"), "session.pcap")
		if err := debugdump.NewPcapWriter().WriteSessionPcap(pcapPath, rawMessages, responses); err != nil {
			return fmt.Errorf("write session pcap: %w", err)
		}
		fmt.Printf("wrote %s\n", pcapPath)
	}

	return nil
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
