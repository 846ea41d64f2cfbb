package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/pkg/domain"
)

type validateResponse struct {
	Valid    bool            `json:"valid"`
	Issues   []triagem.Issue `json:"issues"`
	Cycles   []string        `json:"cycles"`
	Messages []string        `json:"messages"`
}

func newValidateResponse(report *triagem.Report) validateResponse {
	resp := validateResponse{
		Valid:    report.Valid(),
		Issues:   report.Issues,
		Cycles:   cycleStrings(report.Cycles),
		Messages: report.Messages(),
	}
	if resp.Issues == nil {
		resp.Issues = []triagem.Issue{}
	}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}
	return resp
}

func cycleStrings(cycles []triagem.CyclePath) []string {
	out := make([]string, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, c.String())
	}
	return out
}

// decodeFlow reads a flow document, canonical or legacy, from the body.
func (s *Server) decodeFlow(w http.ResponseWriter, r *http.Request) (*domain.Flow, bool) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return nil, false
	}
	flow, err := s.Engine.Parse(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid flow document: %v", err))
		return nil, false
	}
	return flow, true
}

// ValidateFlow handles POST /flows/validate.
func (s *Server) ValidateFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.decodeFlow(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, newValidateResponse(s.Engine.Validate(flow)))
}

type autoFixResponse struct {
	FixedFlow        *domain.Flow `json:"fixedFlow"`
	FixedCycles      []string     `json:"fixedCycles"`
	UnresolvedCycles []string     `json:"unresolvedCycles"`
	RemainingCycles  []string     `json:"remainingCycles"`
	Actions          []string     `json:"actions"`
}

// AutoFixFlow handles POST /flows/autofix. The response carries the cycles
// still present in the fixed flow so editors can block the save.
func (s *Server) AutoFixFlow(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.decodeFlow(w, r)
	if !ok {
		return
	}
	res := s.Engine.AutoFix(flow)
	actions := res.Actions
	if actions == nil {
		actions = []string{}
	}
	s.writeJSON(w, http.StatusOK, autoFixResponse{
		FixedFlow:        res.FixedFlow,
		FixedCycles:      cycleStrings(res.FixedCycles),
		UnresolvedCycles: cycleStrings(res.UnresolvedCycles),
		RemainingCycles:  cycleStrings(s.Engine.DetectCycles(res.FixedFlow)),
		Actions:          actions,
	})
}

// ToVisual handles POST /flows/visual.
func (s *Server) ToVisual(w http.ResponseWriter, r *http.Request) {
	flow, ok := s.decodeFlow(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, triagem.ToVisual(flow))
}

// ToDocument handles POST /flows/document. Graphs the editor should not
// save are rejected with their issues.
func (s *Server) ToDocument(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	var g domain.VisualGraph
	if err := json.Unmarshal(body, &g); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid visual graph: %v", err))
		return
	}
	if issues := s.Engine.ValidateVisual(&g); len(issues) > 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "visual graph has blocking issues", Issues: issues})
		return
	}
	s.writeJSON(w, http.StatusOK, triagem.ToDocument(&g))
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	if !s.requireFlows(w) {
		return
	}
	ids, err := s.Flows.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetFlow handles GET /flows/{flowID}.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	if !s.requireFlows(w) {
		return
	}
	flow, err := s.Flows.Get(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, flow)
}

// PutFlow handles PUT /flows/{flowID}. Documents with structural errors or
// cycles are refused with the blocking list and nothing is stored.
func (s *Server) PutFlow(w http.ResponseWriter, r *http.Request) {
	if !s.requireFlows(w) {
		return
	}
	flow, ok := s.decodeFlow(w, r)
	if !ok {
		return
	}
	report := s.Engine.Validate(flow)
	if !report.Valid() {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:  "flow has blocking issues",
			Issues: report.Errors(),
			Cycles: cycleStrings(report.Cycles),
		})
		return
	}

	id := chi.URLParam(r, "flowID")
	if err := s.Flows.Save(r.Context(), id, flow); err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info("flow saved", "flow_id", id, "steps", len(flow.Steps))
	s.writeJSON(w, http.StatusOK, newValidateResponse(report))
}

// DeleteFlow handles DELETE /flows/{flowID}.
func (s *Server) DeleteFlow(w http.ResponseWriter, r *http.Request) {
	if !s.requireFlows(w) {
		return
	}
	if err := s.Flows.Delete(r.Context(), chi.URLParam(r, "flowID")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireFlows(w http.ResponseWriter) bool {
	if s.Flows == nil {
		s.writeError(w, http.StatusNotImplemented, "no flow repository configured")
		return false
	}
	return true
}
