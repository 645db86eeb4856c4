package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"connkit/internal/service"
)

var (
	runValues     string
	runConnection string
	dryRun        bool
)

var runCmd = &cobra.Command{
	Use:   "run <connector>",
	Short: "Execute a connector with JSON values",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnector,
}

func init() {
	runCmd.Flags().StringVar(&runValues, "values", "{}", "configuration values as a JSON object")
	runCmd.Flags().StringVar(&runConnection, "connection", "", "name of the connection to run against")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and show what would execute without running")
	rootCmd.AddCommand(runCmd)
}

func runConnector(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	values, err := parseValues(runValues)
	if err != nil {
		return err
	}
	svc, err := newService(ctx)
	if err != nil {
		return err
	}

	if !dryRun {
		result, err := svc.Execute(ctx, args[0], runConnection, values)
		if err != nil {
			return err
		}
		return report(result)
	}

	c, err := svc.Connector(args[0])
	if err != nil {
		return err
	}
	if _, err := svc.Credential(runConnection, c.Info().System); err != nil {
		return err
	}
	sc, err := c.BuildSchema(ctx, values, "")
	if err != nil {
		return err
	}
	if err := sc.Validate(sc.Values); err != nil {
		return err
	}
	masked := service.Masked(sc)
	if outputFormat == "json" {
		return printJSON(map[string]any{
			"connector":  c.Info().Ref(),
			"connection": runConnection,
			"values":     masked.Values,
			"dryRun":     true,
		})
	}
	fmt.Printf("Would execute %s", c.Info().Ref())
	if runConnection != "" {
		fmt.Printf(" with connection %q", runConnection)
	}
	fmt.Println()
	return printSchema(masked)
}
