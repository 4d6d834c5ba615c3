package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <output_dir>",
	Args:  cobra.ExactArgs(1),
	Short: "Print the scoreboard for a fuzzing session's output directory",
	Long: `Stats reads stats.json (periodically written by a running or finished
fuzz session) alongside the queue/, crash_test_cases/, and tmout_test_cases/
directory contents, and prints a scoreboard.

Examples:
  protofuzz stats out/`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	outputDir := args[0]

	snap, err := readStatsSnapshot(outputDir)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "no stats.json found in %s yet (%v)\n\n", outputDir, err)
		snap = &statsSnapshot{}
	}

	queueFiles := countFiles(filepath.Join(outputDir, "queue"))
	favorFiles := countFiles(filepath.Join(outputDir, "favor_test_cases"))
	crashFiles := countFiles(filepath.Join(outputDir, "crash_test_cases"))
	hangFiles := countFiles(filepath.Join(outputDir, "tmout_test_cases"))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== protofuzz session: %s ===\n", outputDir)
	fmt.Fprintf(out, "%-22s %v\n", "total execs:", snap.TotalExecs)
	fmt.Fprintf(out, "%-22s %.1f\n", "execs/sec:", snap.ExecsPerSec)
	fmt.Fprintf(out, "%-22s %d\n", "queue cycle:", snap.QueueCycle)
	fmt.Fprintf(out, "%-22s %.1f us\n", "avg exec time:", snap.AvgExecUS)
	fmt.Fprintf(out, "%-22s %.1f\n", "avg bitmap size:", snap.AvgBitmapSize)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "%-22s %d (%d favored)\n", "queue entries:", queueFiles, favorFiles)
	fmt.Fprintf(out, "%-22s %d unique / %d total\n", "crashes:", crashFiles, snap.TotalCrashes)
	fmt.Fprintf(out, "%-22s %d unique / %d total\n", "hangs:", hangFiles, snap.TotalTimeouts)

	return nil
}

func countFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}
