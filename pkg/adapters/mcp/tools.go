package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/internal/presentation/graph"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/runner"
)

var errNoSessions = errors.New("no session manager configured")

// FlowArgs carries a flow document as JSON text.
type FlowArgs struct {
	Flow string `json:"flow"`
}

// ValidateResult is the outcome of validate_flow.
type ValidateResult struct {
	Valid  bool            `json:"valid" jsonschema_description:"True when nothing blocks saving the flow"`
	Issues []triagem.Issue `json:"issues" jsonschema_description:"Errors and warnings found"`
	Cycles []string        `json:"cycles" jsonschema_description:"Silent loops, one path per entry"`
}

// AutoFixResult is the outcome of autofix_flow.
type AutoFixResult struct {
	Flow             *domain.Flow `json:"flow" jsonschema_description:"The repaired flow document"`
	Actions          []string     `json:"actions" jsonschema_description:"What was changed"`
	FixedCycles      []string     `json:"fixedCycles"`
	UnresolvedCycles []string     `json:"unresolvedCycles"`
}

// GraphArgs selects the flow to draw and, optionally, a session to overlay.
type GraphArgs struct {
	Flow      string `json:"flow,omitempty"`
	FlowID    string `json:"flow_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// FlowList is the outcome of list_flows.
type FlowList struct {
	Flows []string `json:"flows"`
}

// StartArgs opens a session.
type StartArgs struct {
	FlowID    string `json:"flow_id"`
	SessionID string `json:"session_id,omitempty"`
}

// ResumeArgs answers a suspended session.
type ResumeArgs struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

// SessionArgs names a session.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// TurnResult is the session state after a tool call plus the transcript
// entries that call produced.
type TurnResult struct {
	State    *domain.SimulationState `json:"state" jsonschema_description:"The full session state"`
	Messages []domain.HistoryEntry   `json:"messages" jsonschema_description:"Transcript entries added by this call"`
	Terminal bool                    `json:"terminal" jsonschema_description:"True when the conversation is over"`
}

func newTurnResult(prev, next *domain.SimulationState) TurnResult {
	turn := runner.NewTurn(prev, next)
	return TurnResult{State: turn.State, Messages: turn.Messages, Terminal: turn.Terminal}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("validate_flow",
		mcp.WithDescription("Check a flow document for broken references, missing fields and silent loops."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("The flow document as JSON, canonical or legacy")),
		mcp.WithOutputSchema[ValidateResult](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("autofix_flow",
		mcp.WithDescription("Break silent loops by removing the menu options that close them."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("The flow document as JSON, canonical or legacy")),
		mcp.WithOutputSchema[AutoFixResult](),
	), mcp.NewStructuredToolHandler(s.handleAutoFix))

	s.mcpServer.AddTool(mcp.NewTool("flow_graph",
		mcp.WithDescription("Draw a flow as a Mermaid flowchart, highlighting the path of a session when given."),
		mcp.WithString("flow", mcp.Description("The flow document as JSON")),
		mcp.WithString("flow_id", mcp.Description("ID of a stored flow, used when flow is omitted")),
		mcp.WithString("session_id", mcp.Description("Session whose visited steps are highlighted")),
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the IDs of stored flows."),
		mcp.WithOutputSchema[FlowList](),
	), mcp.NewStructuredToolHandler(s.handleListFlows))

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Start a simulated conversation on a stored flow."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("ID of the stored flow")),
		mcp.WithString("session_id", mcp.Description("Session ID; generated when omitted")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("resume_session",
		mcp.WithDescription("Answer the prompt a session is waiting on: a menu choice, free text or a condition."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithString("input", mcp.Required(), mcp.Description("The user's answer")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleResume))

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Restart a session from the flow's entry step."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleReset))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Read the current state of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[TurnResult](),
	), mcp.NewStructuredToolHandler(s.handleGetSession))
}

func (s *Server) parseFlow(doc string) (*domain.Flow, error) {
	if doc == "" {
		return nil, errors.New("flow is required")
	}
	return s.engine.Parse([]byte(doc))
}

func cycleStrings(cycles []triagem.CyclePath) []string {
	out := make([]string, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, c.String())
	}
	return out
}

func (s *Server) handleValidate(_ context.Context, _ mcp.CallToolRequest, args FlowArgs) (ValidateResult, error) {
	flow, err := s.parseFlow(args.Flow)
	if err != nil {
		return ValidateResult{}, err
	}
	report := s.engine.Validate(flow)
	issues := report.Issues
	if issues == nil {
		issues = []triagem.Issue{}
	}
	return ValidateResult{Valid: report.Valid(), Issues: issues, Cycles: cycleStrings(report.Cycles)}, nil
}

func (s *Server) handleAutoFix(_ context.Context, _ mcp.CallToolRequest, args FlowArgs) (AutoFixResult, error) {
	flow, err := s.parseFlow(args.Flow)
	if err != nil {
		return AutoFixResult{}, err
	}
	res := s.engine.AutoFix(flow)
	actions := res.Actions
	if actions == nil {
		actions = []string{}
	}
	return AutoFixResult{
		Flow:             res.FixedFlow,
		Actions:          actions,
		FixedCycles:      cycleStrings(res.FixedCycles),
		UnresolvedCycles: cycleStrings(res.UnresolvedCycles),
	}, nil
}

func (s *Server) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args GraphArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	var overlay *graph.Overlay
	if args.SessionID != "" {
		if s.sessions == nil {
			return mcp.NewToolResultError(errNoSessions.Error()), nil
		}
		state, err := s.sessions.Load(ctx, args.SessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		overlay = graph.OverlayFromState(state)
		if args.FlowID == "" {
			args.FlowID = state.FlowID
		}
	}

	var flow *domain.Flow
	var err error
	switch {
	case args.Flow != "":
		flow, err = s.parseFlow(args.Flow)
	case args.FlowID != "" && s.flows != nil:
		flow, err = s.flows.Get(ctx, args.FlowID)
	default:
		err = errors.New("either flow or a stored flow_id is required")
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(flow, overlay)), nil
}

func (s *Server) handleListFlows(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (FlowList, error) {
	if s.flows == nil {
		return FlowList{}, errors.New("no flow repository configured")
	}
	ids, err := s.flows.List(ctx)
	if err != nil {
		return FlowList{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return FlowList{Flows: ids}, nil
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (TurnResult, error) {
	if s.sessions == nil {
		return TurnResult{}, errNoSessions
	}
	state, err := s.sessions.Start(ctx, args.FlowID, args.SessionID)
	if err != nil {
		return TurnResult{}, err
	}
	return newTurnResult(nil, state), nil
}

func (s *Server) handleResume(ctx context.Context, _ mcp.CallToolRequest, args ResumeArgs) (TurnResult, error) {
	if s.sessions == nil {
		return TurnResult{}, errNoSessions
	}
	input, err := runner.Sanitize(args.Input, s.maxInput)
	if err != nil {
		s.logger.Warn("input rejected", "error", err, "size", len(args.Input))
		return TurnResult{}, fmt.Errorf("input rejected: %w", err)
	}
	prev, err := s.sessions.Load(ctx, args.SessionID)
	if err != nil {
		return TurnResult{}, err
	}
	next, err := s.sessions.Resume(ctx, args.SessionID, input)
	if err != nil {
		return TurnResult{}, err
	}
	return newTurnResult(prev, next), nil
}

func (s *Server) handleReset(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (TurnResult, error) {
	if s.sessions == nil {
		return TurnResult{}, errNoSessions
	}
	state, err := s.sessions.Reset(ctx, args.SessionID)
	if err != nil {
		return TurnResult{}, err
	}
	return newTurnResult(nil, state), nil
}

func (s *Server) handleGetSession(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (TurnResult, error) {
	if s.sessions == nil {
		return TurnResult{}, errNoSessions
	}
	state, err := s.sessions.Load(ctx, args.SessionID)
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{State: state, Messages: []domain.HistoryEntry{}, Terminal: state.Status.Terminal()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("triagem://flows", "Stored flows",
		mcp.WithResourceDescription("IDs of the stored flow documents"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := s.handleListFlows(ctx, mcp.CallToolRequest{}, struct{}{})
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(list.Flows)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
