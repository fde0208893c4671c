package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

const (
	metadataSchemaVersion = "1.0"
	extensionID           = "microsoft.azd.chain"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azchain",
		Short: "azchain - run chains of Azure long-running operations",
		Long: `azchain runs ordered chains of long-running Azure operations, starting
each step only after the previous one has completed.

It also converts backup schedules between "every N days" timespans and cron
expressions, and validates tags and passwords the way the Azure CLI does.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newScheduleCommand())
	cmd.AddCommand(newChainCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newMetadataCommand(cmd))

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the azchain version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte("azchain " + version + "\n"))
			return err
		},
	}
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
