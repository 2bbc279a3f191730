package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// table is a printable result: a header row plus data rows.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.header, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// render prints v as JSON or, in text mode, as the table built by toTable.
func render(cmd *cli.Command, v any, toTable func() *table) error {
	w := outWriter(cmd)
	switch format := cmd.String("output"); format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputText, "":
		return toTable().write(w)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// message prints a confirmation line in text mode only.
func message(cmd *cli.Command, format string, args ...any) {
	if cmd.String("output") == outputJSON {
		return
	}
	fmt.Fprintf(outWriter(cmd), format+"\n", args...)
}
