package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"connkit/internal/logger"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List the configured connections with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  listConnections,
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection <connection>",
	Short: "Check that a connection's credential is accepted",
	Args:  cobra.ExactArgs(1),
	RunE:  testConnection,
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
	rootCmd.AddCommand(testConnectionCmd)
}

func listConnections(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.Get()
	r, err := defaultRegistry(ctx, cfg, newExecutor(cfg, log), log)
	if err != nil {
		return err
	}
	store, files, err := connectionStore(ctx, cfg, r)
	if err != nil {
		return err
	}

	type connectionSummary struct {
		Name   string         `json:"name"`
		System string         `json:"system"`
		Known  bool           `json:"known"`
		File   string         `json:"file"`
		Values map[string]any `json:"values"`
	}
	summaries := make([]connectionSummary, 0, len(files))
	for _, name := range store.Names() {
		cred, _ := store.Get(name)
		_, known := r.System(cred.System)
		summaries = append(summaries, connectionSummary{
			Name:   name,
			System: cred.System,
			Known:  known,
			File:   files[name].Path(),
			Values: cred.Masked(),
		})
	}

	if outputFormat == "json" {
		return printJSON(summaries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSYSTEM\tVALUES\tFILE")
	for _, s := range summaries {
		system := s.System
		if !s.Known {
			system += " (unknown)"
		}
		keys := make([]string, 0, len(s.Values))
		for k := range s.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, s.Values[k])
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, system, strings.Join(pairs, " "), s.File)
	}
	return w.Flush()
}

func testConnection(cmd *cobra.Command, args []string) error {
	svc, err := newService(cmd.Context())
	if err != nil {
		return err
	}
	result, err := svc.TestConnection(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return report(result)
}
