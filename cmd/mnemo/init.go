package main

import (
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the memory store",
		Long:  `Create the data directory, the entry journal, and a default config.`,
		RunE:  runInit,
	}

	cmd.Flags().String("vault", "", "Path to the note vault root")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	dataDir := resolveDataDir(cmd)
	vaultPath, _ := cmd.Flags().GetString("vault")

	cfg, err := internal.LoadConfig(dataDir)
	if err != nil {
		return err
	}
	if vaultPath != "" {
		cfg.Vault.Path = vaultPath
	}
	if err := internal.SaveConfig(dataDir, cfg); err != nil {
		return err
	}

	if err := internal.InitJournal(internal.JournalPath(dataDir)); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized memory store in %s\n", dataDir)
	return nil
}

func resolveDataDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		return dir
	}
	return internal.DataDir()
}
