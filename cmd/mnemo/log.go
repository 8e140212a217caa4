package main

import (
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent memory journal commits",
		Args:  cobra.NoArgs,
		RunE:  runLog,
	}

	cmd.Flags().IntP("number", "n", 20, "Maximum commits to show")
	return cmd
}

func runLog(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("number")

	assistant, err := internal.NewAssistant(cmd.Context(), resolveDataDir(cmd))
	if err != nil {
		return err
	}
	defer assistant.Close(cmd.Context())

	lines, err := assistant.Store().Journal().History(cmd.Context(), limit)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
