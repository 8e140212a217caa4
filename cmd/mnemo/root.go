package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mnemo",
		Short:         "Long-term memory engine with note-vault sync",
		Long:          `A personal-assistant memory store with semantic retrieval and two-way synchronization against a human-editable note vault.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	addSubcommands(rootCmd)
	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("data-dir", "", "Data directory (default ~/.mnemo)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command) {
	root.AddCommand(
		NewInitCmd(),
		NewTurnCmd(),
		NewRetrieveCmd(),
		NewInsightsCmd(),
		NewImportCmd(),
		NewWatchCmd(),
		NewRebuildCmd(),
		NewLogCmd(),
	)
}
