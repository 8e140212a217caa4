package main

import (
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the vector index from the entry journal",
		Long:  `Drop the derived vector index and reconstruct it from journaled entries.`,
		Args:  cobra.NoArgs,
		RunE:  runRebuild,
	}
}

func runRebuild(cmd *cobra.Command, args []string) error {
	assistant, err := internal.NewAssistant(cmd.Context(), resolveDataDir(cmd))
	if err != nil {
		return err
	}
	defer assistant.Close(cmd.Context())

	if err := assistant.Store().RebuildIndex(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "index rebuilt")
	return nil
}
