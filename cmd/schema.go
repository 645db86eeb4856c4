package cmd

import (
	"github.com/spf13/cobra"
)

var (
	schemaValues  string
	schemaChanged string
)

var schemaCmd = &cobra.Command{
	Use:   "schema <connector>",
	Short: "Build a connector's configuration schema for the given values",
	Long: "Prints the schema the connector offers for --values. With --changed, fields that depend on " +
		"the changed field start again from their defaults.",
	Args: cobra.ExactArgs(1),
	RunE: buildSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaValues, "values", "", "current values as a JSON object")
	schemaCmd.Flags().StringVar(&schemaChanged, "changed", "", "key of the field that just changed")
	rootCmd.AddCommand(schemaCmd)
}

func buildSchema(cmd *cobra.Command, args []string) error {
	values, err := parseValues(schemaValues)
	if err != nil {
		return err
	}
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}

	sc, buildErr := svc.Schema(cmd.Context(), args[0], values, schemaChanged)
	if sc == nil {
		return buildErr
	}
	if outputFormat == "json" {
		err = printJSON(sc)
	} else {
		err = printSchema(sc)
	}
	if err != nil {
		return err
	}
	// A partial schema was printed; the build error still fails the command.
	return buildErr
}
