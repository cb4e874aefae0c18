package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "gocup",
		Short: "CLI tool for the gocup game server",
		Long: `gocup is a CLI tool for the gocup matchmaking and game server.

It covers the JSON API (accounts, queue status, game snapshots and chat
history) and the realtime websocket protocol (matchmaking, spectating,
moves and chat).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Token, cfg.RequestTimeout)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: GOCUP_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Session token (env: GOCUP_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: GOCUP_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Timeout for single requests")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newPlayerCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newGameCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	err := NewRootCmd().Execute()
	if err == nil {
		return
	}
	var serverErr *ServerError
	if cfg.Verbose && errors.As(err, &serverErr) && serverErr.RequestID != "" {
		fmt.Fprintf(os.Stderr, "request id: %s\n", serverErr.RequestID)
	}
	os.Exit(1)
}
