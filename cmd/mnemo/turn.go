package main

import (
	"encoding/json"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewTurnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turn <text>",
		Short: "Store a conversation turn",
		Long:  `Embed, score, and remember one utterance, syncing it to the vault.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runTurn,
	}

	cmd.Flags().String("role", "user", "Speaker role (user|assistant|system)")
	return cmd
}

func runTurn(cmd *cobra.Command, args []string) error {
	roleStr, _ := cmd.Flags().GetString("role")
	asJSON, _ := cmd.Flags().GetBool("json")

	role := internal.Role(roleStr)
	switch role {
	case internal.RoleUser, internal.RoleAssistant, internal.RoleSystem:
	default:
		return fmt.Errorf("invalid role %q", roleStr)
	}

	assistant, err := internal.NewAssistant(cmd.Context(), resolveDataDir(cmd))
	if err != nil {
		return err
	}
	defer assistant.Close(cmd.Context())

	session := assistant.NewSession(cmd.Context())
	entry, err := assistant.StoreTurn(cmd.Context(), session, role, args[0])
	if err != nil {
		return fmt.Errorf("store turn: %w", err)
	}

	if asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(entry)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s importance=%.2f tags=%v\n", entry.ID, entry.Importance, entry.Tags)
	return nil
}
