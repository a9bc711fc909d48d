// Package commands defines the extractor CLI.
package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-extractor/internal/logger"
)

// NewRootCommand builds the extractor command tree.
func NewRootCommand() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "extractor",
		Short: "Extract and validate transactions from financial statements",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "extractor.yaml", "path to config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newExtractCommand(&configPath, &verbose),
		newInspectCommand(&configPath, &verbose),
		newMappingsCommand(&configPath, &verbose),
	)
	return cmd
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return logger.NewAtLevel(level)
}
