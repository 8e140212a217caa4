package main

import (
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <note-path>...",
		Short: "Chunk, embed, and index vault notes",
		Long:  `Index one or more vault notes so their content becomes retrievable.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	assistant, err := internal.NewAssistant(cmd.Context(), resolveDataDir(cmd))
	if err != nil {
		return err
	}
	defer assistant.Close(cmd.Context())

	for _, path := range args {
		if err := assistant.ImportNote(cmd.Context(), path); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", path)
	}
	return nil
}
