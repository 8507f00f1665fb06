// Package cli holds the dynforms commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type VersionInfo struct {
	Version string
	Commit  string
}

// NewRootCommand builds the root command. Every subcommand reads its
// configuration from DYNFORMS_* variables, optionally seeded from an env file.
func NewRootCommand(info VersionInfo) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "dynforms",
		Short:         "Dynamic form and identity-evidence service",
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile, cmd.Flags().Changed("env-file"))
		},
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of KEY=VALUE pairs loaded before reading the environment")
	cmd.Version = fmt.Sprintf("%s.%s", info.Version, info.Commit)

	return cmd
}

// loadEnvFile never overrides variables already set. A missing default file
// is ignored; a missing explicit one is an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// background gives a command a context cancelled on SIGINT or SIGTERM.
func background(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}
