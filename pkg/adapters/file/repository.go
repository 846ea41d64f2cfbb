package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

// FlowRepository implements ports.FlowRepository over a directory, one
// document per file named <id>.json (or .yaml/.yml when loading).
type FlowRepository struct {
	BasePath string
}

// NewFlowRepository creates a repository rooted at basePath.
// If basePath is empty, it defaults to ".triagem/flows".
func NewFlowRepository(basePath string) *FlowRepository {
	if basePath == "" {
		basePath = filepath.Join(".triagem", "flows")
	}
	return &FlowRepository{BasePath: basePath}
}

var extensions = []string{".json", ".yaml", ".yml"}

func (r *FlowRepository) find(id string) (string, bool) {
	for _, ext := range extensions {
		p := filepath.Join(r.BasePath, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid flow id %q", id)
	}
	return nil
}

// Get loads the document stored under id.
func (r *FlowRepository) Get(_ context.Context, id string) (*domain.Flow, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	path, ok := r.find(id)
	if !ok {
		return nil, fmt.Errorf("flow %q: %w", id, domain.ErrFlowNotFound)
	}
	return Load(path)
}

// Save writes the document as <id>.json, replacing any YAML variant.
func (r *FlowRepository) Save(_ context.Context, id string, flow *domain.Flow) error {
	if err := validID(id); err != nil {
		return err
	}
	if flow == nil {
		return domain.ErrNilFlow
	}
	if err := Save(filepath.Join(r.BasePath, id+".json"), flow); err != nil {
		return err
	}
	for _, ext := range extensions[1:] {
		_ = os.Remove(filepath.Join(r.BasePath, id+ext))
	}
	return nil
}

// Delete removes every file stored under id.
func (r *FlowRepository) Delete(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	for _, ext := range extensions {
		err := os.Remove(filepath.Join(r.BasePath, id+ext))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete flow file: %w", err)
		}
	}
	return nil
}

// List returns the IDs of every flow document in the directory.
func (r *FlowRepository) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	seen := make(map[string]bool)
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if _, err := FormatFromPath(name); err != nil {
			continue
		}
		id := strings.TrimSuffix(name, ext)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
