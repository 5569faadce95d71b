package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "proxima",
	Short: "Proxima - pooling, pipelining, and batching proxy for LLM APIs",
	Long: `Proxima is a reverse proxy for LLM completion APIs that multiplexes
client traffic onto a managed set of upstream connections.

It provides:
  - Bounded connection pools with warm-up and health tracking
  - Pipelined dispatch with priority ordering and backpressure
  - Request coalescing into configurable batch windows
  - Usage history persistence with scheduled retention pruning
  - Prometheus metrics and structured JSON logging`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
