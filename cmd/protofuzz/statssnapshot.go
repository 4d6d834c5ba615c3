package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jihwankim/protofuzz/pkg/fuzzer"
)

// statsSnapshot is the JSON document periodically written to
// <output_dir>/stats.json so a running session's progress can be
// inspected from another process.
type statsSnapshot struct {
	TotalExecs    uint64  `json:"total_execs"`
	ExecsPerSec   float64 `json:"execs_per_sec"`
	QueueLen      int     `json:"queue_len"`
	QueueCycle    int     `json:"queue_cycle"`
	UniqueCrashes int     `json:"unique_crashes"`
	UniqueHangs   int     `json:"unique_hangs"`
	TotalCrashes  int     `json:"total_crashes"`
	TotalTimeouts int     `json:"total_timeouts"`
	AvgExecUS     float64 `json:"avg_exec_us"`
	AvgBitmapSize float64 `json:"avg_bitmap_size"`
}

const statsFileName = "stats.json"

func writeStatsSnapshot(outputDir string, stats *fuzzer.Stats, execsPerSec float64) error {
	snap := statsSnapshot{
		TotalExecs:    stats.TotalExecs,
		ExecsPerSec:   execsPerSec,
		QueueLen:      stats.QueueLen,
		QueueCycle:    stats.QueueCycle,
		UniqueCrashes: stats.UniqueCrashes,
		UniqueHangs:   stats.UniqueHangs,
		TotalCrashes:  stats.TotalCrashes,
		TotalTimeouts: stats.TotalTimeouts,
		AvgExecUS:     stats.AvgExecUS(),
		AvgBitmapSize: stats.AvgBitmapSize(),
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(outputDir, statsFileName), data, 0o644)
}

func readStatsSnapshot(outputDir string) (*statsSnapshot, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, statsFileName))
	if err != nil {
		return nil, fmt.Errorf("read stats snapshot: %w", err)
	}
	var snap statsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse stats snapshot: %w", err)
	}
	return &snap, nil
}
