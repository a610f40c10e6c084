// Package report renders scores, matrices and vendor matches as console
// tables, CSV, JSON or XLSX workbooks.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", eris.Errorf("report: unknown format %q (want table, csv, json or xlsx)", s)
}

// Options tune rendering.
type Options struct {
	// Color enables ANSI colors for band labels in table output.
	Color bool
}

// sheet is one titled grid of cells.
type sheet struct {
	Title  string
	Header []string
	Rows   [][]string
	// labelCol is the index of a band/level column to colorize, or -1.
	labelCol int
}

// render writes sheets in the requested format. JSON output encodes v
// directly instead of the flattened sheets.
func render(w io.Writer, f Format, opts Options, v any, sheets ...sheet) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "report: encode json")
	case FormatCSV:
		return writeCSV(w, sheets)
	case FormatXLSX:
		return writeXLSX(w, sheets)
	case FormatTable, "":
		return writeTables(w, sheets, opts)
	}
	return eris.Errorf("report: unknown format %q", f)
}

func writeTables(w io.Writer, sheets []sheet, opts Options) error {
	for i, s := range sheets {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if s.Title != "" {
			fmt.Fprintln(w, s.Title)
		}
		table := tablewriter.NewWriter(w)
		table.Header(s.Header)
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignLeft
		})

		data := make([][]string, 0, len(s.Rows))
		for _, row := range s.Rows {
			if opts.Color && s.labelCol >= 0 && s.labelCol < len(row) {
				row = append([]string(nil), row...)
				row[s.labelCol] = ColorLabel(row[s.labelCol])
			}
			data = append(data, row)
		}
		if err := table.Bulk(data); err != nil {
			return eris.Wrap(err, "report: table rows")
		}
		if err := table.Render(); err != nil {
			return eris.Wrap(err, "report: render table")
		}
	}
	return nil
}

// writeCSV writes every sheet into one stream. Sheets after the first are
// preceded by a blank record and a "# title" record.
func writeCSV(w io.Writer, sheets []sheet) error {
	cw := csv.NewWriter(w)
	for i, s := range sheets {
		if i > 0 {
			if err := cw.Write([]string{}); err != nil {
				return eris.Wrap(err, "report: csv separator")
			}
			if err := cw.Write([]string{"# " + s.Title}); err != nil {
				return eris.Wrap(err, "report: csv title")
			}
		}
		if err := cw.Write(s.Header); err != nil {
			return eris.Wrap(err, "report: csv header")
		}
		if err := cw.WriteAll(s.Rows); err != nil {
			return eris.Wrap(err, "report: csv rows")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: csv flush")
}

// writeXLSX writes one worksheet per sheet.
func writeXLSX(w io.Writer, sheets []sheet) error {
	file := xlsx.NewFile()
	for i, s := range sheets {
		name := sheetName(s.Title, i)
		ws, err := file.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %s", name)
		}
		hdr := ws.AddRow()
		for _, h := range s.Header {
			hdr.AddCell().SetString(h)
		}
		for _, row := range s.Rows {
			r := ws.AddRow()
			for _, v := range row {
				r.AddCell().SetString(v)
			}
		}
	}
	return eris.Wrap(file.Write(w), "report: write xlsx")
}

// sheetName derives a valid worksheet name: at most 31 characters with
// none of the characters Excel forbids.
func sheetName(title string, idx int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, title)
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}

// Label colors, most severe first.
var (
	CriticalColor = color.New(color.FgRed, color.Bold)
	HighColor     = color.New(color.FgMagenta, color.Bold)
	MediumColor   = color.New(color.FgYellow)
	LowColor      = color.New(color.FgGreen)
)

// ColorLabel colors a risk band or risk level label. Unknown labels are
// returned unchanged.
func ColorLabel(label string) string {
	switch strings.ToUpper(label) {
	case "CRITICAL", "IMMEDIATE":
		return CriticalColor.Sprint(label)
	case "HIGH", "NEAR_TERM":
		return HighColor.Sprint(label)
	case "MEDIUM", "STRATEGIC":
		return MediumColor.Sprint(label)
	case "LOW":
		return LowColor.Sprint(label)
	}
	return label
}

func f1(v float64) string { return fmt.Sprintf("%.1f", v) }
