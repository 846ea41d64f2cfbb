package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/pkg/adapters/file"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/observability"
)

// createEngine builds the facade with the CLI conventions: the given logger
// everywhere and, when debugging, every lifecycle event logged.
func createEngine(logger *slog.Logger, debug bool, hooks ...domain.LifecycleHooks) *triagem.Engine {
	if debug {
		hooks = append(hooks, observability.LogHooks(logger))
	}
	return triagem.New(
		triagem.WithLogger(logger),
		triagem.WithLifecycleHooks(observability.Combine(hooks...)),
	)
}

// flowID names a flow after its file: flows/atendimento.yaml is "atendimento".
func flowID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadFlow reads a flow file and merges a JSON object into its initial
// context. Dotted keys address nested values.
func loadFlow(path, contextJSON string) (*domain.Flow, error) {
	flow, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	if contextJSON == "" {
		return flow, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(contextJSON), &extra); err != nil {
		return nil, fmt.Errorf("error parsing --context JSON: %w", err)
	}
	for k, v := range extra {
		flow.InitialContext = domain.SetPath(flow.InitialContext, k, v)
	}
	return flow, nil
}
