package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var describeCmd = &cobra.Command{
	Use:   "describe <connector>",
	Short: "Show a connector, its system and its default schema",
	Args:  cobra.ExactArgs(1),
	RunE:  describeConnector,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func describeConnector(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	c, err := svc.Connector(args[0])
	if err != nil {
		return err
	}
	info := c.Info()
	sc, err := svc.Schema(ctx, info.Ref(), nil, "")
	if err != nil {
		return err
	}

	sys, hasSystem := svc.Registry.System(info.System)
	var conn []string
	if hasSystem {
		if cs, err := sys.ConnectionSchema(ctx, nil); err == nil {
			conn = cs.Keys()
		}
	}

	if outputFormat == "json" {
		return printJSON(map[string]any{
			"connector":  info,
			"ref":        info.Ref(),
			"connection": conn,
			"schema":     sc,
		})
	}

	fmt.Printf("Name:        %s\n", info.Name())
	fmt.Printf("Version:     v%d\n", info.Version)
	fmt.Printf("Description: %s\n", info.Description)
	if hasSystem {
		fmt.Printf("System:      %s (%s)\n", sys.Name, sys.Description)
		if sys.OAuth != nil {
			fmt.Printf("OAuth:       %s\n", sys.OAuth.TokenURL)
		}
	}

	if len(conn) > 0 {
		fmt.Println("\nConnection Fields:")
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		cs, _ := sys.ConnectionSchema(ctx, nil)
		fmt.Fprintln(w, "  FIELD\tKIND\tREQUIRED\tVALUE\tLABEL")
		printFields(w, cs.Fields, nil, 1)
		w.Flush()
	}

	fmt.Println("\nFields:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FIELD\tKIND\tREQUIRED\tVALUE\tLABEL")
	printFields(w, sc.Fields, sc.Values, 1)
	return w.Flush()
}
