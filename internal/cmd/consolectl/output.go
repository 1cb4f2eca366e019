package consolectl

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by -o.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formatter writes a command result.
type Formatter interface {
	Format(data any) error
}

// NewFormatter returns the formatter for format. text is the default.
func NewFormatter(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return jsonFormatter{w: w}, nil
	case FormatYAML:
		return yamlFormatter{w: w}, nil
	case FormatText, "":
		return textFormatter{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: text, json, yaml)", format)
	}
}

type jsonFormatter struct{ w io.Writer }

func (f jsonFormatter) Format(data any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

type yamlFormatter struct{ w io.Writer }

func (f yamlFormatter) Format(data any) error {
	// Round trip through JSON so the json tags name the keys.
	generic, err := toGeneric(data)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(f.w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

type textFormatter struct{ w io.Writer }

func (f textFormatter) Format(data any) error {
	switch v := data.(type) {
	case string:
		_, err := fmt.Fprintln(f.w, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.w, v.String())
		return err
	}

	generic, err := toGeneric(data)
	if err != nil {
		return err
	}
	if rows, ok := tableRows(generic); ok {
		_, err := fmt.Fprintln(f.w, renderTable(rows))
		return err
	}
	return jsonFormatter{w: f.w}.Format(generic)
}

func toGeneric(data any) (any, error) {
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	default:
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode output: %w", err)
		}
		raw = encoded
	}
	var generic any
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return generic, nil
}

// tableRows finds a list of objects at the top level or under "items".
func tableRows(data any) ([]map[string]any, bool) {
	if obj, ok := data.(map[string]any); ok {
		data = obj["items"]
	}
	list, ok := data.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	rows := make([]map[string]any, 0, len(list))
	for _, item := range list {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}

func renderTable(rows []map[string]any) string {
	columns := make([]string, 0, len(rows[0]))
	for key := range rows[0] {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	// Keep the id first when there is one.
	for i, col := range columns {
		if col == "id" {
			columns = append([]string{"id"}, append(columns[:i:i], columns[i+1:]...)...)
			break
		}
	}

	tw := table.NewWriter()
	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		out := make(table.Row, len(columns))
		for i, col := range columns {
			out[i] = cell(row[col])
		}
		tw.AppendRow(out)
	}
	return tw.Render()
}

func cell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		encoded, _ := json.Marshal(v)
		return string(encoded)
	}
}
