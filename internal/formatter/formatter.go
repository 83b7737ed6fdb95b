// Package formatter renders review pages, run reports and diffs for the
// terminal and for machine consumers.
package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format is an output format selected with --output.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatJSONL    Format = "jsonl"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates an output format name. An empty name means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML, FormatJSONL, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json, yaml, jsonl or markdown)", s)
}

// Encode writes v as indented JSON or as YAML. Other formats fall back to
// JSON.
func Encode(w io.Writer, f Format, v any) error {
	if f == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
