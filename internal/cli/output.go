package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatJSON  = "json"
	formatYAML  = "yaml"
	formatCSV   = "csv"
	formatTable = "table"
)

const maxCellRunes = 50

// printResult renders a command result in the selected output format.
func printResult(v any) error {
	s, err := formatOutput(v, rf.Format)
	if err != nil {
		return err
	}
	fmt.Println(s)
	return nil
}

// formatOutput renders a value in the selected format. CSV and table rendering
// only apply to homogeneous row data; other values fall back to JSON.
func formatOutput(v any, format string) (string, error) {
	switch format {
	case "", formatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		return string(b), nil
	case formatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode yaml: %w", err)
		}
		return strings.TrimRight(string(b), "\n"), nil
	case formatCSV:
		if c := tryCSV(v); c != "" {
			return c, nil
		}
		return formatOutput(v, formatJSON)
	case formatTable:
		if t := tryTable(v); t != "" {
			return t, nil
		}
		return formatOutput(v, formatJSON)
	default:
		return "", fmt.Errorf("unknown format %q (want json|yaml|csv|table)", format)
	}
}

// tabular extracts headers and string cells from a slice of records. Returns
// nil headers when the value has no tabular shape.
func tabular(v any) ([]string, [][]string) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil || len(raws) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, nil
	}

	// Column order comes from the first row's encoded form, which keeps
	// struct field order rather than sorted map keys.
	headers := fieldOrder(raws[0])
	if headers == nil {
		return nil, nil
	}

	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(headers))
		for j, h := range headers {
			cells[i][j] = cellString(row[h])
		}
	}
	return headers, cells
}

// tryTable renders a slice of records as an ASCII table. Returns "" when the
// value has no tabular shape. Cells are truncated so wide values do not blow
// out the column widths.
func tryTable(v any) string {
	headers, rows := tabular(v)
	if headers == nil {
		return ""
	}
	for _, row := range rows {
		for i, cell := range row {
			row[i] = truncateRunes(cell, maxCellRunes)
		}
	}
	return renderTable(headers, rows)
}

// tryCSV renders a slice of records as CSV with a header row. Unlike the
// table, cells are written in full.
func tryCSV(v any) string {
	headers, rows := tabular(v)
	if headers == nil {
		return ""
	}
	var buf strings.Builder
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return ""
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return ""
		}
	}
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}

func fieldOrder(raw json.RawMessage) []string {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var headers []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		headers = append(headers, tok.(string))
		var skip any
		if err := dec.Decode(&skip); err != nil {
			return nil
		}
	}
	return headers
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// truncateRunes shortens s to at most n runes without splitting a multibyte
// character.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// renderTable draws a bordered ASCII table.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sep strings.Builder
	sep.WriteString("+")
	for _, w := range widths {
		sep.WriteString(strings.Repeat("-", w+2))
		sep.WriteString("+")
	}

	line := func(cells []string) string {
		var b strings.Builder
		b.WriteString("|")
		for i, cell := range cells {
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			b.WriteString(" |")
		}
		return b.String()
	}

	out := []string{sep.String(), line(headers), sep.String()}
	for _, row := range rows {
		out = append(out, line(row))
	}
	out = append(out, sep.String())
	return strings.Join(out, "\n")
}
