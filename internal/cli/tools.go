package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/internal/logging"
	"github.com/aretw0/triagem/internal/presentation/graph"
	"github.com/aretw0/triagem/pkg/adapters/file"
	"github.com/aretw0/triagem/pkg/adapters/redis"
)

type validateOutput struct {
	Valid  bool            `json:"valid"`
	Issues []triagem.Issue `json:"issues"`
	Cycles []string        `json:"cycles"`
}

// Validate checks a flow file and prints its issues and loops. It reports
// whether the flow can run safely.
func Validate(w io.Writer, path string, jsonOut bool) (bool, error) {
	flow, err := file.Load(path)
	if err != nil {
		return false, err
	}
	report := createEngine(logging.NewNop(), false).Validate(flow)

	if jsonOut {
		out := validateOutput{
			Valid:  report.Valid(),
			Issues: report.Issues,
			Cycles: make([]string, 0, len(report.Cycles)),
		}
		if out.Issues == nil {
			out.Issues = []triagem.Issue{}
		}
		for _, c := range report.Cycles {
			out.Cycles = append(out.Cycles, c.String())
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return out.Valid, enc.Encode(out)
	}

	for _, issue := range report.Issues {
		fmt.Fprintf(w, "[%s] %s\n", issue.Severity, issue)
	}
	for _, c := range report.Cycles {
		fmt.Fprintf(w, "[loop] %s\n", c)
	}
	if report.Valid() {
		fmt.Fprintln(w, "Flow is valid! ✅")
	} else {
		fmt.Fprintf(w, "Flow is invalid: %d error(s), %d loop(s).\n", len(report.Errors()), len(report.Cycles))
	}
	return report.Valid(), nil
}

// Fix breaks the loops of a flow file. The result is written to outPath,
// or to w as canonical JSON when outPath is empty. The actions taken go
// to report.
func Fix(w, report io.Writer, path, outPath string) (*triagem.FixResult, error) {
	flow, err := file.Load(path)
	if err != nil {
		return nil, err
	}
	result := createEngine(logging.NewNop(), false).AutoFix(flow)

	for _, action := range result.Actions {
		fmt.Fprintf(report, "fixed: %s\n", action)
	}
	for _, c := range result.UnresolvedCycles {
		fmt.Fprintf(report, "unresolved: %s\n", c)
	}

	if outPath != "" {
		return result, file.Save(outPath, result.FixedFlow)
	}
	data, err := file.Encode(result.FixedFlow, file.FormatJSON)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(data)
	return result, err
}

// Convert prints a flow file in another shape: the visual graph, the
// canonical document, or the canonical document as JSON or YAML.
func Convert(w io.Writer, path, to string) error {
	flow, err := file.Load(path)
	if err != nil {
		return err
	}

	var v any
	switch strings.ToLower(to) {
	case "visual":
		v = triagem.ToVisual(flow)
	case "document", "json":
		data, err := file.Encode(flow, file.FormatJSON)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "yaml":
		data, err := file.Encode(flow, file.FormatYAML)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown target format %q (want visual, document, json or yaml)", to)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// GraphOptions selects the flow to draw and, optionally, a session whose
// position is highlighted.
type GraphOptions struct {
	FlowPath  string
	SessionID string
	RedisAddr string
}

// Graph prints a Mermaid flowchart of a flow file.
func Graph(ctx context.Context, w io.Writer, opts GraphOptions) error {
	flow, err := file.Load(opts.FlowPath)
	if err != nil {
		return err
	}

	var overlay *graph.Overlay
	if opts.SessionID != "" {
		if opts.RedisAddr == "" {
			return fmt.Errorf("--session needs --redis to find the saved session")
		}
		store := redis.New(opts.RedisAddr, "", 0)
		defer store.Close()
		state, err := store.Load(ctx, opts.SessionID)
		if err != nil {
			return fmt.Errorf("failed to load session %q: %w", opts.SessionID, err)
		}
		overlay = graph.OverlayFromState(state)
	}

	_, err = fmt.Fprintln(w, graph.GenerateMermaid(flow, overlay))
	return err
}
