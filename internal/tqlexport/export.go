// Package tqlexport renders a query result in csv, json, or markdown form
// and writes it to a file or stream. The tabular console printer lives
// alongside it since both work from the same cell model.
package tqlexport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mrorigo/tuiql/internal/tqldb"
)

// Format selects the export encoding.
type Format int

const (
	CSV Format = iota
	JSON
	Markdown
)

// PrettyJSON controls JSON indentation. The default export is compact
// (one object per line is not produced either way — Write always emits a
// single JSON array); PrettyJSON indents it for human reading, mirroring
// the original tool's `--pretty-json` viewer mode.
type Options struct {
	PrettyJSON bool
}

// Write renders res in the given format to w.
func Write(w io.Writer, res tqldb.Result, format Format, opts Options) error {
	if res.Kind != tqldb.ResultRows {
		_, err := fmt.Fprintf(w, "%s rows affected\n", humanize.Comma(res.Changes))
		return err
	}

	switch format {
	case CSV:
		return writeCSV(w, res)
	case JSON:
		return writeJSON(w, res, opts)
	case Markdown:
		return writeMarkdown(w, res)
	default:
		return fmt.Errorf("unknown export format %d", format)
	}
}

func writeCSV(w io.Writer, res tqldb.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return err
	}
	for _, row := range res.Rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cell.String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, res tqldb.Result, opts Options) error {
	objects := make([]map[string]interface{}, 0, len(res.Rows))
	for _, row := range res.Rows {
		obj := make(map[string]interface{}, len(res.Columns))
		for i, col := range res.Columns {
			obj[col] = cellToJSON(row[i])
		}
		objects = append(objects, obj)
	}

	enc := json.NewEncoder(w)
	if opts.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(objects)
}

func cellToJSON(c tqldb.Cell) interface{} {
	switch c.Kind {
	case tqldb.KindNull:
		return nil
	case tqldb.KindInteger:
		return c.Int
	case tqldb.KindReal:
		return c.Real
	case tqldb.KindText:
		return c.Text
	case tqldb.KindBlob:
		return c.String()
	default:
		return nil
	}
}

func writeMarkdown(w io.Writer, res tqldb.Result) error {
	if len(res.Rows) == 0 {
		_, err := fmt.Fprintln(w, "(0 rows)")
		return err
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(res.Columns, " | "))
	seps := make([]string, len(res.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))
	for _, row := range res.Rows {
		values := make([]string, len(row))
		for i, cell := range row {
			values[i] = cell.String()
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

// RenderTable prints res to w as an aligned console table, the way the
// session prints SELECT results interactively.
func RenderTable(w io.Writer, res tqldb.Result) {
	if res.Kind != tqldb.ResultRows {
		fmt.Fprintf(w, "%s rows affected (%s)\n", humanize.Comma(res.Changes), res.Elapsed)
		return
	}
	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, row := range res.Rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell.String()
		}
		t.AppendRow(r)
	}

	t.Render()
	fmt.Fprintf(w, "(%s rows, %s)\n", humanize.Comma(int64(len(res.Rows))), res.Elapsed)
}
