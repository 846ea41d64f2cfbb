package domain

import "sort"

// Flow is the portable document describing a conversation graph.
type Flow struct {
	EntryStepID    string           `json:"entryStepId"`
	Steps          map[string]*Step `json:"steps"`
	InitialContext map[string]any   `json:"initialContext,omitempty"`
	Version        string           `json:"version,omitempty"`

	Extra map[string]any `json:"-"`
}

// Step looks up a step by id.
func (f *Flow) Step(id string) (*Step, bool) {
	if f == nil || id == "" {
		return nil, false
	}
	s, ok := f.Steps[id]
	return s, ok && s != nil
}

// StepIDs returns the step ids in lexical order.
func (f *Flow) StepIDs() []string {
	ids := make([]string, 0, len(f.Steps))
	for id := range f.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy; mutating the copy never touches f.
func (f *Flow) Clone() *Flow {
	if f == nil {
		return nil
	}
	out := &Flow{
		EntryStepID: f.EntryStepID,
		Version:     f.Version,
		Steps:       make(map[string]*Step, len(f.Steps)),
		Extra:       cloneExtra(f.Extra),
	}
	if f.InitialContext != nil {
		out.InitialContext = CloneMap(f.InitialContext)
	}
	for id, s := range f.Steps {
		out.Steps[id] = s.Clone()
	}
	return out
}

// OptionCount is the total number of options across all steps.
func (f *Flow) OptionCount() int {
	n := 0
	for _, s := range f.Steps {
		if s != nil {
			n += len(s.Options)
		}
	}
	return n
}

func (f Flow) MarshalJSON() ([]byte, error) {
	type plain Flow
	if f.Steps == nil {
		f.Steps = map[string]*Step{}
	}
	return marshalWithExtra(plain(f), f.Extra)
}

func (f *Flow) UnmarshalJSON(data []byte) error {
	type plain Flow
	var p plain
	extra, err := unmarshalWithExtra(data, &p)
	if err != nil {
		return err
	}
	*f = Flow(p)
	f.Extra = extra
	for id, s := range f.Steps {
		if s != nil && s.ID == "" {
			s.ID = id
		}
	}
	return nil
}
