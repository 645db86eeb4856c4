package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"connkit/internal/errors"
)

var validateValues string

var validateCmd = &cobra.Command{
	Use:   "validate <connector>",
	Short: "Validate configuration values against a connector's schema",
	Args:  cobra.ExactArgs(1),
	RunE:  validateConnector,
}

func init() {
	validateCmd.Flags().StringVar(&validateValues, "values", "{}", "configuration values as a JSON object")
	rootCmd.AddCommand(validateCmd)
}

func validateConnector(cmd *cobra.Command, args []string) error {
	values, err := parseValues(validateValues)
	if err != nil {
		return err
	}
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	c, err := svc.Connector(args[0])
	if err != nil {
		return err
	}

	sc, err := c.BuildSchema(cmd.Context(), values, "")
	if err != nil {
		return err
	}
	err = sc.Validate(sc.Values)
	if err == nil {
		fmt.Printf("Values for %q are valid.\n", c.Info().Ref())
		return nil
	}

	ve, ok := err.(*errors.ValidationError)
	if !ok {
		return err
	}
	if outputFormat == "json" {
		if perr := printJSON(map[string]any{"valid": false, "fields": ve.Messages()}); perr != nil {
			return perr
		}
		return fmt.Errorf("%d invalid field(s)", len(ve.Fields()))
	}
	fields := ve.Fields()
	sort.Strings(fields)
	for _, f := range fields {
		for _, msg := range ve.For(f) {
			fmt.Printf("  %s: %s\n", f, msg)
		}
	}
	return fmt.Errorf("%d invalid field(s)", len(fields))
}
