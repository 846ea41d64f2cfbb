package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triagem"
	httpadapter "github.com/aretw0/triagem/pkg/adapters/http"
	"github.com/aretw0/triagem/pkg/adapters/memory"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/observability"
	"github.com/aretw0/triagem/pkg/session"
)

const atendimento = `{
  "etapaInicial": "inicio",
  "etapas": {
    "inicio": {
      "tipo": "mensagem_menu",
      "mensagem": "Olá! Sobre o que deseja falar?",
      "opcoes": [
        {"texto": "Suporte", "proximaEtapa": "nome"},
        {"texto": "Vendas", "proximaEtapa": "vendas"}
      ]
    },
    "nome": {"tipo": "pergunta_aberta", "mensagem": "Qual o seu nome?", "variavel": "nome", "proximaEtapa": "fim"},
    "fim": {"tipo": "finalizar", "mensagem": "Obrigado, {{nome}}."},
    "vendas": {"tipo": "finalizar", "mensagem": "Confira nossas ofertas."}
  }
}`

func cyclicFlow() *domain.Flow {
	return &domain.Flow{
		EntryStepID: "inicio",
		Steps: map[string]*domain.Step{
			"inicio": {ID: "inicio", Kind: domain.KindMessage, Message: "Bem-vindo", NextStepID: "menu", AutoAdvance: true},
			"menu": {ID: "menu", Kind: domain.KindMenu, Message: "Escolha", Options: []domain.Option{
				{Value: "1", Label: "Pedidos", NextStepID: "pedidos"},
				{Value: "2", Label: "Voltar", NextStepID: "inicio"},
			}},
			"pedidos": {ID: "pedidos", Kind: domain.KindTerminate, Message: "Até logo"},
		},
	}
}

type fixture struct {
	handler http.Handler
	metrics *observability.Metrics
	flows   *memory.FlowRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics := observability.NewMetrics()
	eng := triagem.New(triagem.WithLifecycleHooks(metrics.Hooks()))
	flow, err := eng.Parse([]byte(atendimento))
	require.NoError(t, err)

	flows := memory.NewFlowRepository(map[string]*domain.Flow{"atendimento": flow})
	mgr := session.NewManager(memory.NewStore(), eng.Provider(flows))
	h := httpadapter.NewHandler(eng, flows, mgr,
		httpadapter.WithMetrics(metrics.Handler()),
		httpadapter.WithMaxInputSize(64),
	)
	return &fixture{handler: h, metrics: metrics, flows: flows}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	info := decode[map[string]string](t, rec)
	assert.Equal(t, triagem.Version, info["version"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/flows/validate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidateFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/flows/validate", atendimento)
	require.Equal(t, http.StatusOK, rec.Code)
	ok := decode[map[string]any](t, rec)
	assert.Equal(t, true, ok["valid"])

	body, err := json.Marshal(cyclicFlow())
	require.NoError(t, err)
	rec = f.do(t, http.MethodPost, "/flows/validate", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	bad := decode[map[string]any](t, rec)
	assert.Equal(t, false, bad["valid"])
	assert.Equal(t, []any{"inicio → menu → inicio"}, bad["cycles"])

	rec = f.do(t, http.MethodPost, "/flows/validate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoFixFlow(t *testing.T) {
	f := newFixture(t)
	body, err := json.Marshal(cyclicFlow())
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/flows/autofix", string(body))
	require.Equal(t, http.StatusOK, rec.Code)

	var res struct {
		FixedFlow       *domain.Flow `json:"fixedFlow"`
		FixedCycles     []string     `json:"fixedCycles"`
		RemainingCycles []string     `json:"remainingCycles"`
		Actions         []string     `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"inicio → menu → inicio"}, res.FixedCycles)
	assert.Empty(t, res.RemainingCycles)
	assert.Equal(t, []string{`Removed option "Voltar" from menu (pointed back to inicio)`}, res.Actions)
	require.NotNil(t, res.FixedFlow)
	assert.Len(t, res.FixedFlow.Steps["menu"].Options, 1)
}

func TestVisualRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/flows/visual", atendimento)
	require.Equal(t, http.StatusOK, rec.Code)
	graph := decode[domain.VisualGraph](t, rec)
	assert.NotEmpty(t, graph.Nodes)

	rec = f.do(t, http.MethodPost, "/flows/document", rec.Body.String())
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[domain.Flow](t, rec)
	assert.Equal(t, "inicio", doc.EntryStepID)
	assert.Len(t, doc.Steps, 4)

	rec = f.do(t, http.MethodPost, "/flows/document", `{"nodes":[],"edges":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotEmpty(t, decode[map[string]any](t, rec)["issues"])
}

func TestFlowCRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/flows/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"atendimento"}, decode[[]string](t, rec))

	rec = f.do(t, http.MethodGet, "/flows/atendimento", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "inicio", decode[domain.Flow](t, rec).EntryStepID)

	rec = f.do(t, http.MethodGet, "/flows/sumiu", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/flows/copia", atendimento)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := f.flows.Get(context.Background(), "copia")
	require.NoError(t, err)

	rec = f.do(t, http.MethodDelete, "/flows/copia", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = f.flows.Get(context.Background(), "copia")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestPutFlowRejectsCycles(t *testing.T) {
	f := newFixture(t)
	body, err := json.Marshal(cyclicFlow())
	require.NoError(t, err)

	rec := f.do(t, http.MethodPut, "/flows/loop", string(body))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, []any{"inicio → menu → inicio"}, resp["cycles"])

	_, err = f.flows.Get(context.Background(), "loop")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/flows/atendimento/sessions", `{"sessionId":"s1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decode[domain.SimulationState](t, rec)
	assert.Equal(t, "s1", state.SessionID)
	assert.Equal(t, "atendimento", state.FlowID)
	assert.Equal(t, domain.StatusAwaitingMenuChoice, state.Status)

	rec = f.do(t, http.MethodPost, "/sessions/s1/resume", `{"input":"Financeiro"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions/s1/resume", `{"input":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusAwaitingFreeText, decode[domain.SimulationState](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/sessions/s1/resume", `{"input":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[domain.SimulationState](t, rec)
	assert.Equal(t, domain.StatusFinished, state.Status)
	assert.Equal(t, "Ana", state.Context["nome"])

	rec = f.do(t, http.MethodPost, "/sessions/s1/resume", `{"input":"1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/sessions/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1"}, decode[[]string](t, rec))

	rec = f.do(t, http.MethodPost, "/sessions/s1/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[domain.SimulationState](t, rec)
	assert.Equal(t, domain.StatusAwaitingMenuChoice, state.Status)
	assert.Len(t, state.History, 1)

	rec = f.do(t, http.MethodDelete, "/sessions/s1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Finishes))
}

func TestStartSessionGeneratesID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/flows/atendimento/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode[domain.SimulationState](t, rec).SessionID)

	rec = f.do(t, http.MethodPost, "/flows/sumiu/sessions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResumeRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/flows/atendimento/sessions", `{"sessionId":"s1"}`).Code)

	rec := f.do(t, http.MethodPost, "/sessions/s1/resume", `{"input":"`+strings.Repeat("a", 65)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions/s1/resume", `{"input":"a\u0000b"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions/nada/resume", `{"input":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/flows/atendimento/sessions", "").Code)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triagem_steps_entered_total")
}

func TestStatelessServer(t *testing.T) {
	h := httpadapter.NewHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/sessions/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/flows/validate", strings.NewReader(atendimento))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/flows/atendimento/sessions", `{"sessionId":"s1"}`).Code)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s1/events?watch=context", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	readData := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				return data
			}
		}
		return ""
	}
	require.Equal(t, "connected", readData())

	// Picking a menu entry changes no context, so the watch filter drops it.
	post := func(body string) {
		r, err := http.Post(srv.URL+"/sessions/s1/resume", "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		r.Body.Close()
		require.Equal(t, http.StatusOK, r.StatusCode)
	}
	post(`{"input":"1"}`)
	post(`{"input":"Ana"}`)

	var diff domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(readData()), &diff))
	assert.Equal(t, "s1", diff.SessionID)
	assert.Equal(t, "Ana", diff.Context["nome"])
	require.NotNil(t, diff.Status)
	assert.Equal(t, domain.StatusFinished, *diff.Status)
}
