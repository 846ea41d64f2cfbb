package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/triagem/pkg/domain"
)

// HandlerConfig binds a hand-off action to a local command.
type HandlerConfig struct {
	Action      domain.OptionAction `yaml:"action" json:"action"`
	Command     string              `yaml:"command" json:"command"`
	Args        []string            `yaml:"args" json:"args"`
	Environment map[string]string   `yaml:"env" json:"env"`
	Description string              `yaml:"description" json:"description"`
}

// ConfigFile is the layout of handoffs.yaml.
type ConfigFile struct {
	Handlers []HandlerConfig `yaml:"handlers" json:"handlers"`
}

// LoadHandlers reads a YAML or JSON handler file. A missing file means no
// handlers. Entries for actions that are not hand-offs are rejected.
func LoadHandlers(path string) (map[domain.OptionAction]HandlerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[domain.OptionAction]HandlerConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read handlers config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	handlers := make(map[domain.OptionAction]HandlerConfig, len(cfg.Handlers))
	for _, h := range cfg.Handlers {
		if !h.Action.IsHandoff() {
			return nil, fmt.Errorf("handler %q: action %q is not a hand-off", h.Command, h.Action)
		}
		if h.Command == "" {
			return nil, fmt.Errorf("handler for %s: command is required", h.Action)
		}
		handlers[h.Action] = h
	}
	return handlers, nil
}
