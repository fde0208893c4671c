package main

import (
	"encoding/json"
	"fmt"

	"github.com/microsoft/azchain/internal/metadata"
	"github.com/spf13/cobra"
)

func newMetadataCommand(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:    "metadata",
		Short:  "Output extension metadata as JSON",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meta := metadata.Generate(metadataSchemaVersion, extensionID, rootCmd)

			data, err := json.MarshalIndent(meta, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal metadata: %w", err)
			}

			data = append(data, '\n')
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return fmt.Errorf("failed to write metadata: %w", err)
			}
			return nil
		},
	}
}
