package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triagem/internal/runtime"
	"github.com/aretw0/triagem/pkg/adapters/memory"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/dsl"
	"github.com/aretw0/triagem/pkg/runner"
)

func triageEngine(t *testing.T) *runtime.Engine {
	t.Helper()
	b := dsl.New("inicio")
	b.Add("inicio").
		Menu("Olá! Como posso ajudar?").
		Option("Suporte", "nome").Bind("setor", "{{resposta}}").
		Option("Financeiro", "fim")
	b.Add("nome").Question("Qual o seu nome?").SaveTo("nome").Go("fim")
	b.Add("fim").Text("Obrigado, {{contexto.nome}}!").Terminal()

	eng, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)
	return eng
}

func run(t *testing.T, r *runner.Runner, eng *runtime.Engine) *domain.SimulationState {
	t.Helper()
	type result struct {
		state *domain.SimulationState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		s, err := r.Run(t.Context(), eng, nil)
		done <- result{s, err}
	}()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		return res.state
	case <-time.After(2 * time.Second):
		t.Fatal("runner timed out")
	}
	return nil
}

func TestRunner_TextFlow(t *testing.T) {
	in := bytes.NewBufferString("1\nMaria\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(in, out)))

	final := run(t, r, triageEngine(t))

	assert.Equal(t, domain.StatusFinished, final.Status)
	assert.Equal(t, "Suporte", final.Context["setor"])
	assert.Equal(t, "Maria", final.Context["nome"])

	text := out.String()
	assert.Contains(t, text, "Olá! Como posso ajudar?")
	assert.Contains(t, text, "  1) Suporte")
	assert.Contains(t, text, "  2) Financeiro")
	assert.Contains(t, text, "Qual o seu nome?")
	assert.Contains(t, text, "Obrigado, Maria!")
	assert.NotContains(t, text, "[System]")
}

func TestRunner_InvalidChoiceIsRetried(t *testing.T) {
	in := bytes.NewBufferString("7\nfinanceiro\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(in, out)))

	final := run(t, r, triageEngine(t))

	assert.Equal(t, domain.StatusFinished, final.Status)
	assert.Contains(t, out.String(), `[System] "7" is not one of the choices`)
	assert.Equal(t, 1, strings.Count(out.String(), "Olá! Como posso ajudar?"))
}

func TestRunner_OversizedInputIsRetried(t *testing.T) {
	in := bytes.NewBufferString("12345678\n2\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(in, out)),
		runner.WithMaxInputSize(4),
	)

	final := run(t, r, triageEngine(t))
	assert.Equal(t, domain.StatusFinished, final.Status)
	assert.Contains(t, out.String(), "input exceeds maximum allowed size")
}

func TestRunner_EOFStopsWithoutError(t *testing.T) {
	in := bytes.NewBufferString("1\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(in, out)))

	final := run(t, r, triageEngine(t))
	assert.Equal(t, domain.StatusAwaitingFreeText, final.Status)
	assert.Equal(t, "nome", final.CurrentStepID)
}

func TestRunner_ExitAndReset(t *testing.T) {
	in := bytes.NewBufferString("1\n/reset\n/exit\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(in, out)))

	final := run(t, r, triageEngine(t))
	assert.Equal(t, domain.StatusAwaitingMenuChoice, final.Status)
	assert.NotContains(t, final.Context, "setor")
	assert.Equal(t, 2, strings.Count(out.String(), "Olá! Como posso ajudar?"))
}

func TestRunner_PersistsEveryTurn(t *testing.T) {
	store := memory.NewStore()
	in := bytes.NewBufferString("1\n")
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(in, io.Discard)),
		runner.WithStore(store),
		runner.WithSessionID("sess-1"),
	)

	run(t, r, triageEngine(t))

	saved, err := store.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", saved.SessionID)
	assert.Equal(t, domain.StatusAwaitingFreeText, saved.Status)
	assert.Equal(t, "Suporte", saved.Context["setor"])
}

func TestRunner_ResumesGivenState(t *testing.T) {
	eng := triageEngine(t)
	start, err := eng.Start(context.Background(), "x")
	require.NoError(t, err)
	mid, err := eng.Resume(context.Background(), start, "1")
	require.NoError(t, err)

	in := bytes.NewBufferString("Ana\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(in, out)))

	final, err := r.Run(t.Context(), eng, mid)
	require.NoError(t, err)
	assert.Equal(t, "Ana", final.Context["nome"])
	assert.Contains(t, out.String(), "Qual o seu nome?", "the full transcript is shown for a resumed state")
}

func TestRunner_JSONHeadless(t *testing.T) {
	in := bytes.NewBufferString("\"2\"\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(runner.WithInputHandler(runner.NewJSONHandler(in, out)))

	final := run(t, r, triageEngine(t))
	assert.Equal(t, domain.StatusFinished, final.Status)

	var turns []runner.Turn
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var turn runner.Turn
		require.NoError(t, json.Unmarshal(sc.Bytes(), &turn))
		turns = append(turns, turn)
	}
	require.Len(t, turns, 2)
	assert.Equal(t, domain.StatusAwaitingMenuChoice, turns[0].State.Status)
	require.Len(t, turns[0].Messages, 1)
	assert.Equal(t, "Olá! Como posso ajudar?", turns[0].Messages[0].Text)

	assert.True(t, turns[1].Terminal)
	require.Len(t, turns[1].Messages, 2)
	assert.Equal(t, domain.OriginUser, turns[1].Messages[0].Origin)
	assert.Equal(t, "Financeiro", turns[1].Messages[0].Text)
}

func TestTextHandler_InputHonorsCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	h := runner.NewTextHandler(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.Input(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTextHandler_Renderer(t *testing.T) {
	out := &bytes.Buffer{}
	h := runner.NewTextHandler(strings.NewReader(""), out,
		runner.WithTextHandlerRenderer(func(s string) (string, error) { return "**" + s + "**\n", nil }))

	turn := &runner.Turn{
		State: &domain.SimulationState{Status: domain.StatusAwaitingManualContinue},
		Messages: []domain.HistoryEntry{
			{Origin: domain.OriginBot, Text: "oi"},
			{Origin: domain.OriginUser, Text: "não aparece"},
			{Origin: domain.OriginSystem, Text: "aviso"},
		},
	}
	needsInput, err := h.Output(context.Background(), turn)
	require.NoError(t, err)
	assert.True(t, needsInput)
	assert.Equal(t, "**oi**\n[System] aviso\n(press Enter to continue)\n", out.String())
}

func TestNewTurn(t *testing.T) {
	prev := &domain.SimulationState{History: []domain.HistoryEntry{{ID: "a"}, {ID: "b"}}}
	next := &domain.SimulationState{
		Status:  domain.StatusFinished,
		History: []domain.HistoryEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}

	turn := runner.NewTurn(prev, next)
	assert.True(t, turn.Terminal)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, "c", turn.Messages[0].ID)

	reset := &domain.SimulationState{History: []domain.HistoryEntry{{ID: "z"}}}
	turn = runner.NewTurn(prev, reset)
	require.Len(t, turn.Messages, 1)
	assert.Equal(t, "z", turn.Messages[0].ID)

	assert.Empty(t, runner.NewTurn(nil, nil).Messages)
}

type recordingDispatcher struct {
	got []domain.Handoff
}

func (d *recordingDispatcher) Dispatch(_ context.Context, sessionID string, h domain.Handoff) error {
	d.got = append(d.got, h)
	return nil
}

func TestRunner_DispatchesHandoffs(t *testing.T) {
	b := dsl.New("inicio")
	b.Add("inicio").
		Menu("Precisa de ajuda?").
		Option("Atendente", "fim").Handoff(domain.ActionTransferToAttendant, "", "financeiro").
		Option("Não", "fim")
	b.Add("fim").Text("Até logo").Terminal()
	eng, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	d := &recordingDispatcher{}
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(bytes.NewBufferString("1\n"), io.Discard)),
		runner.WithDispatcher(d),
	)
	final := run(t, r, eng)

	require.Len(t, d.got, 1)
	assert.Equal(t, domain.ActionTransferToAttendant, d.got[0].Action)
	assert.Equal(t, "financeiro", d.got[0].DepartmentID)
	assert.Equal(t, final.Handoffs, d.got)
}

func TestRunner_ResetDispatchesHandoffsOfNewRun(t *testing.T) {
	b := dsl.New("encaminhar")
	b.Add("encaminhar").
		Action("Encaminhando", domain.ActionCreateTicket, "", "").
		Go("menu").Auto()
	b.Add("menu").Menu("Algo mais?").
		Option("Não", "fim")
	b.Add("fim").Text("Até logo").Terminal()
	eng, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	d := &recordingDispatcher{}
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(bytes.NewBufferString(runner.CommandReset+"\n"), io.Discard)),
		runner.WithDispatcher(d),
	)
	final := run(t, r, eng)

	require.Len(t, final.Handoffs, 1)
	require.Len(t, d.got, 2)
	assert.Equal(t, domain.ActionCreateTicket, d.got[1].Action)
}
