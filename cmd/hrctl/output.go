package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/simp-lee/hrdesk/internal/domain"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("invalid output format %q: must be one of %s, %s, %s", format, formatTable, formatJSON, formatYAML)
	}
}

// render writes data as JSON or YAML, or calls table with an aligned writer.
func render(w io.Writer, format string, data any, table func(w io.Writer)) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func writeRow(w io.Writer, cells ...string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

// cellText renders one value for a table cell.
func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return domain.EmptyMarker
	case string:
		if t == "" {
			return domain.EmptyMarker
		}
		return t
	case bool:
		if t {
			return "yes"
		}
		return "no"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case map[string]any:
		if name, ok := t["filename"].(string); ok && name != "" {
			return name
		}
		return domain.EmptyMarker
	default:
		return fmt.Sprint(t)
	}
}

// plainRecord undoes the list's empty markers for machine-readable output.
func plainRecord(r domain.Record) domain.Record {
	out := r.Clone()
	for k, v := range out {
		if s, ok := v.(string); ok && s == domain.EmptyMarker {
			out[k] = nil
		}
	}
	return out
}
