package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/triagem/pkg/domain"
)

// Builder manages the flow construction.
type Builder struct {
	entry   string
	version string
	context map[string]any
	order   []string
	steps   map[string]*StepBuilder
}

// New creates a builder whose flow starts at entry.
func New(entry string) *Builder {
	return &Builder{
		entry: entry,
		steps: make(map[string]*StepBuilder),
	}
}

// Add creates a new step in the flow.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(id string) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	sb := &StepBuilder{
		step:    domain.Step{ID: id, Kind: domain.KindMessage},
		builder: b,
	}
	b.steps[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Context seeds a value in the flow's initial context.
func (b *Builder) Context(path string, value any) *Builder {
	b.context = domain.SetPath(b.context, path, value)
	return b
}

// Version sets the document version.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Build compiles the steps into a flow document. It only checks that the
// flow has steps and an entry; use the validator for structural checks.
func (b *Builder) Build() (*domain.Flow, error) {
	if b.entry == "" {
		return nil, errors.New("flow has no entry step")
	}
	if len(b.steps) == 0 {
		return nil, fmt.Errorf("flow %q has no steps", b.entry)
	}

	flow := &domain.Flow{
		EntryStepID: b.entry,
		Version:     b.version,
		Steps:       make(map[string]*domain.Step, len(b.steps)),
	}
	if len(b.context) > 0 {
		flow.InitialContext = domain.CloneMap(b.context)
	}
	for _, id := range b.order {
		flow.Steps[id] = b.steps[id].Build()
	}
	return flow, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *domain.Flow {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}
