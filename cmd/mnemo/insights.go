package main

import (
	"encoding/json"
	"fmt"

	"github.com/mnemo-ai/mnemo/internal"
	"github.com/spf13/cobra"
)

func NewInsightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Surface proactive observations from recent memories",
		Args:  cobra.NoArgs,
		RunE:  runInsights,
	}
}

func runInsights(cmd *cobra.Command, args []string) error {
	assistant, err := internal.NewAssistant(cmd.Context(), resolveDataDir(cmd))
	if err != nil {
		return err
	}
	defer assistant.Close(cmd.Context())

	insights := assistant.Insights(cmd.Context())

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(insights)
	}

	if len(insights) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing noteworthy this week.")
		return nil
	}
	for _, insight := range insights {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", insight.Kind, insight.Text)
	}
	return nil
}
