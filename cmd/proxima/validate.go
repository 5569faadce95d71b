package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"proxima-hq/proxima/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults and environment overrides,
and report any validation errors without starting the server.

Examples:
  # Validate the default config
  proxima validate

  # Validate a specific file
  proxima validate --config /etc/proxima/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating configuration: %s\n", cfgFile)

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(os.Stderr, "✗ Configuration invalid (%d errors):\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Fprintf(os.Stderr, "  - %s: %s\n", fe.Field, fe.Message)
			}
			os.Exit(1)
		}
		return err
	}

	fmt.Println("✓ Configuration valid")
	fmt.Println()
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)

	names := make([]string, 0, len(cfg.Upstreams))
	for name := range cfg.Upstreams {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Printf("  Upstreams: %d\n", len(names))
	for _, name := range names {
		up := cfg.Upstreams[name]
		fmt.Printf("    - %s (%s, pool %d-%d)\n",
			name, up.BaseURL, up.Pool.MinConnections, up.Pool.MaxConnections)
	}

	if cfg.Batching.Enabled {
		fmt.Printf("  Batching: enabled (window %s, max size %d)\n",
			cfg.Batching.Window, cfg.Batching.MaxBatchSize)
	} else {
		fmt.Println("  Batching: disabled")
	}
	fmt.Printf("  Storage: %s\n", cfg.Storage.Backend)

	return nil
}
