package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/pkg/adapters/memory"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/session"
)

const atendimento = `{
  "etapaInicial": "inicio",
  "etapas": {
    "inicio": {
      "tipo": "mensagem_menu",
      "mensagem": "Olá! Sobre o que deseja falar?",
      "opcoes": [
        {"texto": "Suporte", "proximaEtapa": "suporte"},
        {"texto": "Vendas", "proximaEtapa": "vendas"}
      ]
    },
    "suporte": {"tipo": "finalizar", "mensagem": "Um técnico vai te atender."},
    "vendas": {"tipo": "finalizar", "mensagem": "Confira nossas ofertas."}
  }
}`

const loop = `{
  "entryStepId": "inicio",
  "steps": {
    "inicio": {"id": "inicio", "kind": "message", "message": "Oi", "nextStepId": "menu", "autoAdvance": true},
    "menu": {"id": "menu", "kind": "menu", "message": "Escolha", "options": [
      {"value": "1", "label": "Pedidos", "nextStepId": "fim"},
      {"value": "2", "label": "Voltar", "nextStepId": "inicio"}
    ]},
    "fim": {"id": "fim", "kind": "terminate", "message": "Tchau"}
  }
}`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng := triagem.New()
	flow, err := eng.Parse([]byte(atendimento))
	require.NoError(t, err)
	flows := memory.NewFlowRepository(map[string]*domain.Flow{"atendimento": flow})
	mgr := session.NewManager(memory.NewStore(), eng.Provider(flows))
	return NewServer(eng, flows, mgr, WithMaxInputSize(32))
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func TestValidateFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleValidate(ctx, mcp.CallToolRequest{}, FlowArgs{Flow: atendimento})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Cycles)

	res, err = s.handleValidate(ctx, mcp.CallToolRequest{}, FlowArgs{Flow: loop})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"inicio → menu → inicio"}, res.Cycles)

	_, err = s.handleValidate(ctx, mcp.CallToolRequest{}, FlowArgs{})
	assert.Error(t, err)
	_, err = s.handleValidate(ctx, mcp.CallToolRequest{}, FlowArgs{Flow: "{"})
	assert.Error(t, err)
}

func TestAutoFixFlow(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleAutoFix(context.Background(), mcp.CallToolRequest{}, FlowArgs{Flow: loop})
	require.NoError(t, err)
	assert.Equal(t, []string{"inicio → menu → inicio"}, res.FixedCycles)
	assert.Empty(t, res.UnresolvedCycles)
	require.Len(t, res.Actions, 1)
	assert.Contains(t, res.Actions[0], `"Voltar"`)
	assert.Len(t, res.Flow.Steps["menu"].Options, 1)
}

func TestFlowGraph(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGraph(ctx, callRequest(map[string]any{"flow_id": "atendimento"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	text := res.Content[0].(mcp.TextContent).Text
	assert.True(t, strings.HasPrefix(text, "graph TD\n"))
	assert.Contains(t, text, `inicio -- "Suporte" --> suporte`)
	assert.NotContains(t, text, "classDef")

	_, err = s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{FlowID: "atendimento", SessionID: "s1"})
	require.NoError(t, err)
	res, err = s.handleGraph(ctx, callRequest(map[string]any{"session_id": "s1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	text = res.Content[0].(mcp.TextContent).Text
	assert.Contains(t, text, "class inicio current;")

	res, err = s.handleGraph(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSessionTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	list, err := s.handleListFlows(ctx, mcp.CallToolRequest{}, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"atendimento"}, list.Flows)

	turn, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{FlowID: "atendimento", SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingMenuChoice, turn.State.Status)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, "Olá! Sobre o que deseja falar?", turn.Messages[0].Text)

	_, err = s.handleResume(ctx, mcp.CallToolRequest{}, ResumeArgs{SessionID: "s1", Input: "Financeiro"})
	assert.ErrorIs(t, err, domain.ErrInvalidChoice)

	_, err = s.handleResume(ctx, mcp.CallToolRequest{}, ResumeArgs{SessionID: "s1", Input: strings.Repeat("x", 33)})
	assert.Error(t, err)

	turn, err = s.handleResume(ctx, mcp.CallToolRequest{}, ResumeArgs{SessionID: "s1", Input: "2"})
	require.NoError(t, err)
	assert.True(t, turn.Terminal)
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, domain.OriginUser, turn.Messages[0].Origin)
	assert.Equal(t, "Confira nossas ofertas.", turn.Messages[1].Text)

	got, err := s.handleGetSession(ctx, mcp.CallToolRequest{}, SessionArgs{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, got.State.Status)

	turn, err = s.handleReset(ctx, mcp.CallToolRequest{}, SessionArgs{SessionID: "s1"})
	require.NoError(t, err)
	assert.False(t, turn.Terminal)
	assert.Len(t, turn.Messages, 1)

	_, err = s.handleGetSession(ctx, mcp.CallToolRequest{}, SessionArgs{SessionID: "nada"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestToolsWithoutSessions(t *testing.T) {
	s := NewServer(nil, nil, nil)
	ctx := context.Background()

	_, err := s.handleStart(ctx, mcp.CallToolRequest{}, StartArgs{FlowID: "x"})
	assert.ErrorIs(t, err, errNoSessions)
	_, err = s.handleListFlows(ctx, mcp.CallToolRequest{}, struct{}{})
	assert.Error(t, err)

	res, err := s.handleValidate(ctx, mcp.CallToolRequest{}, FlowArgs{Flow: atendimento})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestTurnResultJSON(t *testing.T) {
	data, err := json.Marshal(newTurnResult(nil, &domain.SimulationState{Status: domain.StatusFinished}))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"terminal":true`)
	assert.Contains(t, string(data), `"messages":[]`)
}
