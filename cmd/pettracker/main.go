// Pet Tracker Core - smart-home pet tracking service
//
// This is the main entry point for the pet tracker core. It keeps a digital
// replica of every smart home (rooms, doors, pet position) in SQLite, reacts
// to door telemetry over MQTT and serves the management API over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Running the binary without a
// subcommand serves.
func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pettracker",
		Short:         "Pet tracker smart-home core",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env PETTRACKER_CONFIG)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the telemetry handler and HTTP API until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newMigrateCommand(&configPath),
		newTokenCommand(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "pettracker %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

func newMigrateCommand(configPath *string) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), *configPath, down, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration instead")
	return cmd
}

func newTokenCommand(configPath *string) *cobra.Command {
	var (
		customer string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an API bearer token",
		Long: "Issue an API bearer token signed with api.auth.jwt_secret.\n" +
			"Without --customer the token grants the whole API; with it, only that customer's event stream.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return issueToken(*configPath, args[0], customer, ttl, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "bind the token to one smart home user")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default api.auth.token_ttl)")
	return cmd
}

// getConfigPath returns the configuration file path.
// Uses PETTRACKER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PETTRACKER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
