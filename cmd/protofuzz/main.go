package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "protofuzz",
	Short: "Coverage-guided, message-aware fuzzer for stateful network protocols",
	Long: `protofuzz mutates ordered sequences of protocol messages rather than
flat byte blobs, tracking edge coverage through an instrumented target to
discover crashes and hangs in stateful protocol implementations like TLS.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(fuzzCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
