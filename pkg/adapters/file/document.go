package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/triagem/pkg/converter"
	"github.com/aretw0/triagem/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a flow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported flow file extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
}

// Decode parses and normalizes a flow document. Legacy field names are
// accepted in both formats.
func Decode(data []byte, format Format) (*domain.Flow, error) {
	switch format {
	case FormatJSON:
		return converter.Parse(data)
	case FormatYAML:
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("malformed flow document: %w", err)
		}
		if raw == nil {
			return nil, fmt.Errorf("malformed flow document: empty YAML")
		}
		return converter.Normalize(raw)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// Encode renders a flow in the canonical document shape.
func Encode(flow *domain.Flow, format Format) ([]byte, error) {
	data, err := converter.Marshal(flow)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatJSON:
		return append(data, '\n'), nil
	case FormatYAML:
		// Round-trip through a generic map so YAML uses the JSON field names.
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("failed to prepare YAML document: %w", err)
		}
		return yaml.Marshal(generic)
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}

// Load reads a flow document from disk.
func Load(path string) (*domain.Flow, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	flow, err := Decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return flow, nil
}

// Save writes a flow document, choosing the format from the extension.
func Save(path string, flow *domain.Flow) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Encode(flow, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to ensure flow directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write flow file: %w", err)
	}
	return nil
}
