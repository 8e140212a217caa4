package main

import (
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewRetrieveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Retrieve ranked memory context",
		Long:  `Rank stored memories by semantic similarity, importance, and recency.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runRetrieve,
	}

	cmd.Flags().IntP("number", "n", 5, "Maximum results")
	return cmd
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	k, _ := cmd.Flags().GetInt("number")

	assistant, err := internal.NewAssistant(cmd.Context(), resolveDataDir(cmd))
	if err != nil {
		return err
	}
	defer assistant.Close(cmd.Context())

	session := assistant.NewSession(cmd.Context())
	block := assistant.RetrieveContext(cmd.Context(), session, args[0], k)
	if block == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No relevant memories.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), block)
	return nil
}
