package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func isTableOutput() bool {
	return outputFormat == "table"
}

// printStructured writes v as JSON or YAML depending on --output
func printStructured(w io.Writer, v interface{}) error {
	switch outputFormat {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
