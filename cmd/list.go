package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available connectors",
	Args:  cobra.NoArgs,
	RunE:  listConnectors,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listConnectors(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	infos := svc.Registry.List()

	if outputFormat == "json" {
		type connectorSummary struct {
			Ref         string `json:"ref"`
			System      string `json:"system"`
			Operation   string `json:"operation"`
			Version     int    `json:"version"`
			Description string `json:"description"`
		}
		summaries := make([]connectorSummary, 0, len(infos))
		for _, info := range infos {
			summaries = append(summaries, connectorSummary{
				Ref:         info.Ref(),
				System:      info.System,
				Operation:   info.Operation,
				Version:     info.Version,
				Description: info.Description,
			})
		}
		return printJSON(summaries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONNECTOR\tVERSION\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\tv%d\t%s\n", info.Name(), info.Version, info.Description)
	}
	return w.Flush()
}
