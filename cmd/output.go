package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"connkit/internal/schema"
	"connkit/internal/types"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseValues(raw string) (schema.Values, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values schema.Values
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("parsing values JSON: %w", err)
	}
	return values, nil
}

func printFields(w io.Writer, fields []schema.FieldSpec, values schema.Values, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, f := range fields {
		if f.Kind == schema.KindGroup {
			fmt.Fprintf(w, "%s%s\t%s\t\t\t%s\n", indent, f.Key, f.Kind, f.Label)
			printFields(w, f.Fields, values, depth+1)
			continue
		}
		value := "-"
		if v, ok := values[f.Key]; ok {
			value = fmt.Sprint(v)
		}
		if len(f.Errors) > 0 {
			value += " (" + strings.Join(f.Errors, "; ") + ")"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%v\t%s\t%s\n", indent, f.Key, f.Kind, f.Required, value, f.Label)
	}
}

func printSchema(sc *schema.Schema) error {
	fmt.Printf("Schema: %s@v%d\n\n", sc.Name, sc.Version)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tKIND\tREQUIRED\tVALUE\tLABEL")
	printFields(w, sc.Fields, sc.Values, 0)
	return w.Flush()
}

func printBucket(w io.Writer, title string, bucket map[string]any) {
	if len(bucket) == 0 {
		return
	}
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%v\n", k, bucket[k])
	}
}

func printResult(r *types.ExecutionResult) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Execution:\t%s\n", r.ID)
	fmt.Fprintf(w, "Connector:\t%s\n", r.Connector)
	if r.Connection != "" {
		fmt.Fprintf(w, "Connection:\t%s\n", r.Connection)
	}
	fmt.Fprintf(w, "Outcome:\t%s\n", r.Outcome)
	fmt.Fprintf(w, "Elapsed:\t%dms\n", r.Diagnostics.ExecutionTimeMillis)
	if r.Outcome == types.OutcomeError {
		fmt.Fprintf(w, "Kind:\t%s\n", r.ErrorKind)
		fmt.Fprintf(w, "Title:\t%s\n", r.ErrorTitle)
		fmt.Fprintf(w, "Message:\t%s\n", r.ErrorMessage)
		printBucket(w, "Details", r.ErrorDetails)
	}
	printBucket(w, "Payload", r.Payload)
	printBucket(w, "Request", r.Diagnostics.Request)
	printBucket(w, "Response", r.Diagnostics.Response)
	return w.Flush()
}

// report prints r and turns a failed outcome into the command's error so
// the exit status reflects it.
func report(r *types.ExecutionResult) error {
	var err error
	if outputFormat == "json" {
		err = printJSON(r)
	} else {
		err = printResult(r)
	}
	if err != nil {
		return err
	}
	if !r.Succeeded() {
		return fmt.Errorf("%s failed: %s", r.Connector, r.ErrorTitle)
	}
	return nil
}
