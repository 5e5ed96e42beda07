// Package export renders the decomposition trace of a run as JSON, YAML or
// a Mermaid diagram.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/deepask/internal/orchestrator"
)

// TraceExport is the top-level structure written by JSON and YAML.
type TraceExport struct {
	ExportedAt string             `json:"exportedAt" yaml:"exportedAt"`
	Trace      orchestrator.Trace `json:"trace" yaml:"trace"`
}

// Format names an export encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMermaid Format = "mermaid"
)

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".mmd", ".mermaid":
		return FormatMermaid, nil
	default:
		return "", fmt.Errorf("export: no format for extension %q", filepath.Ext(path))
	}
}

func newExport(tr orchestrator.Trace) TraceExport {
	return TraceExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Trace:      tr,
	}
}

// JSON encodes tr as indented JSON.
func JSON(tr orchestrator.Trace) ([]byte, error) {
	data, err := json.MarshalIndent(newExport(tr), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal json: %w", err)
	}
	return append(data, '\n'), nil
}

// YAML encodes tr as YAML.
func YAML(tr orchestrator.Trace) ([]byte, error) {
	data, err := yaml.Marshal(newExport(tr))
	if err != nil {
		return nil, fmt.Errorf("export: marshal yaml: %w", err)
	}
	return data, nil
}

// Encode renders tr in format f.
func Encode(f Format, tr orchestrator.Trace) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(tr)
	case FormatYAML:
		return YAML(tr)
	case FormatMermaid:
		return []byte(Mermaid(tr)), nil
	default:
		return nil, fmt.Errorf("export: unknown format %q", f)
	}
}

// WriteFile writes tr to path in the format implied by its extension.
func WriteFile(path string, tr orchestrator.Trace) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(f, tr)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("export: create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
