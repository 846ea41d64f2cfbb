package runtime_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/triagem/internal/runtime"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, flow *domain.Flow, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()
	seq := 0
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := []runtime.EngineOption{
		runtime.WithClock(func() time.Time { return fixed }),
		runtime.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("h%d", seq)
		}),
	}
	e, err := runtime.NewEngine(flow, append(base, opts...)...)
	require.NoError(t, err)
	return e
}

func texts(state *domain.SimulationState, origin domain.Origin) []string {
	var out []string
	for _, h := range state.History {
		if h.Origin == origin {
			out = append(out, h.Text)
		}
	}
	return out
}

func TestNewEngine_NilFlow(t *testing.T) {
	_, err := runtime.NewEngine(nil)
	assert.ErrorIs(t, err, domain.ErrNilFlow)
}

func TestEngine_MenuScenario(t *testing.T) {
	b := dsl.New("inicio")
	b.Add("inicio").Menu("Como podemos ajudar?").
		Option("Suporte", "suporte").
		Option("Vendas", "vendas")
	b.Add("suporte").Question("Descreva o problema")
	b.Add("vendas").Text("Um consultor vai falar com você")
	engine := newEngine(t, b.MustBuild())

	ctx := context.Background()
	state, err := engine.Start(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAwaitingMenuChoice, state.Status)
	assert.Equal(t, "inicio", state.CurrentStepID)
	require.Len(t, state.PendingOptions, 2)
	assert.Equal(t, "Como podemos ajudar?", state.Prompt)

	next, err := engine.Resume(ctx, state, "Suporte")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAwaitingFreeText, next.Status)
	assert.Equal(t, "suporte", next.CurrentStepID)
	assert.Equal(t, []string{"Suporte"}, texts(next, domain.OriginUser))
	assert.Equal(t, []string{"Como podemos ajudar?", "Descreva o problema"}, texts(next, domain.OriginBot))

	// The previous snapshot is untouched.
	assert.Len(t, state.History, 1)
	assert.Equal(t, domain.StatusAwaitingMenuChoice, state.Status)
}

func TestEngine_ConditionalNextShortCircuitsAutoAdvance(t *testing.T) {
	b := dsl.New("inicio").Context("vip", true)
	b.Add("inicio").Text("Verificando").
		Branch("contexto.vip === true", "vip_flow").
		Go("standard_flow").Auto()
	b.Add("vip_flow").Menu("Atendimento VIP").Option("Falar com gerente", "fim")
	b.Add("standard_flow").Text("Fila comum")
	b.Add("fim").Terminal()

	var entered []string
	engine := newEngine(t, b.MustBuild(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, ev *domain.StepEvent) { entered = append(entered, ev.StepID) },
	}))

	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAwaitingMenuChoice, state.Status)
	assert.Equal(t, "vip_flow", state.CurrentStepID)
	assert.Equal(t, []string{"inicio", "vip_flow"}, entered)
}

func TestEngine_AutoAdvanceWithoutMatch(t *testing.T) {
	b := dsl.New("inicio").Context("vip", false)
	b.Add("inicio").Text("Verificando").
		Branch("contexto.vip === true", "vip_flow").
		Go("standard_flow").Auto()
	b.Add("vip_flow").Text("VIP")
	b.Add("standard_flow").Question("Seu nome?")

	state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "standard_flow", state.CurrentStepID)
	assert.Equal(t, domain.StatusAwaitingFreeText, state.Status)
}

func TestEngine_DeadEndFinishes(t *testing.T) {
	b := dsl.New("only")
	b.Add("only").Text("Obrigado!")

	state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFinished, state.Status)
	require.Len(t, state.History, 1)
	assert.Equal(t, domain.OriginBot, state.History[0].Origin)
	assert.Empty(t, state.Diagnostic)
}

func TestEngine_HistoryMetadata(t *testing.T) {
	b := dsl.New("only")
	b.Add("only").Text("Oi")

	state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, state.History, 1)
	assert.Equal(t, "h1", state.History[0].ID)
	assert.Equal(t, "only", state.History[0].StepID)
	assert.Equal(t, 2024, state.History[0].Timestamp.Year())
}

func TestEngine_DefaultIDsAreUnique(t *testing.T) {
	b := dsl.New("a")
	b.Add("a").Text("A").Go("b").Auto()
	b.Add("b").Text("B")
	e, err := runtime.NewEngine(b.MustBuild())
	require.NoError(t, err)

	state, err := e.Start(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, state.History, 2)
	assert.NotEmpty(t, state.History[0].ID)
	assert.NotEqual(t, state.History[0].ID, state.History[1].ID)
}

func TestEngine_EntryProblems(t *testing.T) {
	tests := []struct {
		name string
		flow *domain.Flow
	}{
		{"empty entry", &domain.Flow{Steps: map[string]*domain.Step{"a": {ID: "a", Kind: domain.KindMessage}}}},
		{"missing entry", &domain.Flow{EntryStepID: "ghost", Steps: map[string]*domain.Step{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := newEngine(t, tt.flow).Start(context.Background(), "")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusError, state.Status)
			assert.NotEmpty(t, state.Diagnostic)
			assert.Equal(t, []string{state.Diagnostic}, texts(state, domain.OriginSystem))
		})
	}
}

func TestEngine_MissingTargetFinishesWithDiagnostic(t *testing.T) {
	b := dsl.New("a")
	b.Add("a").Text("A").Go("vanished").Auto()

	state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFinished, state.Status)
	assert.Contains(t, state.Diagnostic, `"vanished"`)
	require.Len(t, state.History, 2)
	assert.Equal(t, domain.OriginSystem, state.History[1].Origin)
}

func TestEngine_RuntimeLoopGuard(t *testing.T) {
	t.Run("auto advance", func(t *testing.T) {
		b := dsl.New("a")
		b.Add("a").Text("A").Go("b").Auto()
		b.Add("b").Text("B").Go("a").Auto()

		state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, state.Status)
		assert.Equal(t, []string{"A", "B"}, texts(state, domain.OriginBot))
		assert.Contains(t, state.Diagnostic, "Loop detected while auto-advancing")
	})

	t.Run("conditional next", func(t *testing.T) {
		b := dsl.New("a").Context("loop", true)
		b.Add("a").Text("A").Branch("contexto.loop === true", "b")
		b.Add("b").Text("B").Branch("loop == true", "a")

		state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, state.Status)
		assert.Contains(t, state.Diagnostic, "Loop detected while evaluating conditional next")
	})

	t.Run("matched condition", func(t *testing.T) {
		b := dsl.New("a").Context("ok", true)
		b.Add("a").Conditional("A").When("ok", domain.OpExists, nil, "b")
		b.Add("b").Conditional("B").When("ok", domain.OpExists, nil, "a")

		state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, state.Status)
		assert.Contains(t, state.Diagnostic, "Loop detected while resolving condition")
	})

	t.Run("self loop", func(t *testing.T) {
		b := dsl.New("a")
		b.Add("a").Text("A").Go("a").Auto()

		state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFinished, state.Status)
		assert.Len(t, texts(state, domain.OriginBot), 1)
	})
}

func TestEngine_LoopsAcrossTurnsAreAllowed(t *testing.T) {
	b := dsl.New("menu")
	b.Add("menu").Menu("Escolha").
		Option("De novo", "menu").
		Option("Sair", "")

	engine := newEngine(t, b.MustBuild())
	ctx := context.Background()
	state, err := engine.Start(ctx, "")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		state, err = engine.Resume(ctx, state, "1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAwaitingMenuChoice, state.Status)
	}
	assert.Len(t, texts(state, domain.OriginBot), 4)

	state, err = engine.Resume(ctx, state, "Sair")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, state.Status)
}

func TestEngine_MenuInputMatching(t *testing.T) {
	b := dsl.New("m")
	b.Add("m").Menu("Escolha").
		Option("Suporte", "a").Value("sup").
		Option("Vendas", "b")
	b.Add("a").Text("A")
	b.Add("b").Text("B")
	engine := newEngine(t, b.MustBuild())
	ctx := context.Background()
	start, err := engine.Start(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		input string
		want  string
	}{
		{"sup", "A"},
		{"2", "B"},
		{"  vendas ", "B"},
		{"SUPORTE", "A"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			state, err := engine.Resume(ctx, start, tt.input)
			require.NoError(t, err)
			bots := texts(state, domain.OriginBot)
			assert.Equal(t, tt.want, bots[len(bots)-1])
		})
	}

	for _, bad := range []string{"", "3", "0", "outro"} {
		_, err := engine.Resume(ctx, start, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidChoice, "input %q", bad)
	}
}

func TestEngine_OptionWithoutTargetFinishes(t *testing.T) {
	b := dsl.New("m")
	b.Add("m").Menu("Escolha").Option("Tchau", "")
	engine := newEngine(t, b.MustBuild())

	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)
	state, err = engine.Resume(context.Background(), state, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, state.Status)
	assert.Empty(t, state.Diagnostic)
}

func TestEngine_OptionConditionalTarget(t *testing.T) {
	b := dsl.New("m").Context("cliente.plano", "premium")
	b.Add("m").Menu("Escolha").
		Option("Suporte", "comum").
		OptionBranch("contexto.cliente.plano === 'premium'", "premium")
	b.Add("comum").Text("Comum")
	b.Add("premium").Text("Premium")
	engine := newEngine(t, b.MustBuild())

	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)
	state, err = engine.Resume(context.Background(), state, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Escolha", "Premium"}, texts(state, domain.OriginBot))
}

func TestEngine_ContextBindings(t *testing.T) {
	b := dsl.New("m").Context("cliente.nome", "Ana").Context("origem", "site")
	b.Add("m").Menu("Escolha").
		Option("Financeiro", "fim").
		Bind("setor", "{{resposta}}").
		Bind("contato.nome", "{{contexto.cliente.nome}}").
		Bind("origem", "whatsapp").
		Bind("copia", "{{contexto.origem}}").
		Bind("prioridade", 2).
		Bind("ausente", "{{contexto.nao.existe}}")
	b.Add("fim").Text("Olá {{contexto.contato.nome}}, setor {{contexto.setor}}")
	engine := newEngine(t, b.MustBuild())

	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)
	next, err := engine.Resume(context.Background(), state, "Financeiro")
	require.NoError(t, err)

	assert.Equal(t, "Financeiro", next.Context["setor"])
	assert.Equal(t, map[string]any{"nome": "Ana"}, next.Context["contato"])
	assert.Equal(t, "whatsapp", next.Context["origem"])
	assert.Equal(t, "site", next.Context["copia"], "references read the context before the update")
	assert.Equal(t, 2, next.Context["prioridade"])
	assert.Nil(t, next.Context["ausente"])
	assert.Contains(t, next.Context, "ausente")

	bots := texts(next, domain.OriginBot)
	assert.Equal(t, "Olá Ana, setor Financeiro", bots[len(bots)-1])

	_, ok := state.Context["setor"]
	assert.False(t, ok, "previous state context must not change")
}

func TestEngine_OptionHandoff(t *testing.T) {
	b := dsl.New("m")
	b.Add("m").Menu("Escolha").
		Option("Falar com atendente", "aguarde").
		Handoff(domain.ActionTransferToAttendant, "", "dep-9").
		Option("Encerrar", "").
		Handoff(domain.ActionTerminate, "", "")
	b.Add("aguarde").Text("Aguarde um momento")

	var events []domain.Handoff
	engine := newEngine(t, b.MustBuild(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnHandoff: func(_ context.Context, ev *domain.HandoffEvent) { events = append(events, ev.Handoff) },
	}))
	ctx := context.Background()
	start, err := engine.Start(ctx, "")
	require.NoError(t, err)

	state, err := engine.Resume(ctx, start, "1")
	require.NoError(t, err)
	require.Len(t, state.Handoffs, 1)
	assert.Equal(t, domain.Handoff{Action: domain.ActionTransferToAttendant, DepartmentID: "dep-9", StepID: "m"}, state.Handoffs[0])
	assert.Equal(t, events, state.Handoffs)
	assert.Len(t, texts(state, domain.OriginSystem), 1)
	assert.Equal(t, domain.StatusFinished, state.Status)
	assert.Equal(t, "Aguarde um momento", state.History[len(state.History)-1].Text)

	state, err = engine.Resume(ctx, start, "Encerrar")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, state.Status)
	assert.Empty(t, state.Handoffs)
}

func TestEngine_ActionStep(t *testing.T) {
	b := dsl.New("transfer")
	b.Add("transfer").Action("Transferindo", domain.ActionTransferToNucleus, "nuc-1", "").Go("fim")
	b.Add("fim").Terminal()

	engine := newEngine(t, b.MustBuild())
	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, state.Handoffs, 1)
	assert.Equal(t, "nuc-1", state.Handoffs[0].NucleusID)
	assert.Equal(t, domain.StatusAwaitingManualContinue, state.Status)
	assert.Equal(t, "fim", state.ContinueTarget)
	assert.Equal(t, []domain.Origin{domain.OriginBot, domain.OriginSystem}, []domain.Origin{state.History[0].Origin, state.History[1].Origin})

	state, err = engine.Resume(context.Background(), state, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, state.Status)
}

func TestEngine_FreeText(t *testing.T) {
	b := dsl.New("q")
	b.Add("q").Question("Qual seu email?").SaveTo("contexto.cliente.email").Go("ok")
	b.Add("ok").Text("Enviaremos para {{contexto.cliente.email}}")
	engine := newEngine(t, b.MustBuild())
	ctx := context.Background()

	state, err := engine.Start(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "contexto.cliente.email", state.VariableName)

	same, err := engine.Resume(ctx, state, "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingFreeText, same.Status)
	assert.Equal(t, state.History, same.History)

	next, err := engine.Resume(ctx, state, " ana@example.com ")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, next.Status)
	assert.Equal(t, []string{"ana@example.com"}, texts(next, domain.OriginUser))
	assert.Equal(t, map[string]any{"email": "ana@example.com"}, next.Context["cliente"])
	assert.Equal(t, "Enviaremos para ana@example.com", next.History[len(next.History)-1].Text)
}

func TestEngine_ConditionChoice(t *testing.T) {
	b := dsl.New("c").Context("idade", 15)
	b.Add("c").Conditional("Verificando idade").
		When("idade", domain.OpGreaterThan, 17, "adulto").
		When("idade", domain.OpLessThan, 10, "crianca").
		When("idade", domain.OpExists, nil, "")
	b.Add("adulto").Text("Adulto")
	b.Add("crianca").Text("Criança")
	engine := newEngine(t, b.MustBuild())
	ctx := context.Background()

	state, err := engine.Start(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingConditionChoice, state.Status)
	assert.Len(t, state.PendingConditions, 3)

	byIndex, err := engine.Resume(ctx, state, "1")
	require.NoError(t, err)
	assert.Equal(t, "Adulto", byIndex.History[len(byIndex.History)-1].Text)

	byTarget, err := engine.Resume(ctx, state, "crianca")
	require.NoError(t, err)
	assert.Equal(t, "Criança", byTarget.History[len(byTarget.History)-1].Text)

	noTarget, err := engine.Resume(ctx, state, "3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, noTarget.Status)
	assert.NotEmpty(t, noTarget.Diagnostic)

	_, err = engine.Resume(ctx, state, "9")
	assert.ErrorIs(t, err, domain.ErrInvalidChoice)
}

func TestEngine_ConditionalAutoResolves(t *testing.T) {
	b := dsl.New("c").Context("idade", 30)
	b.Add("c").Conditional("Verificando").
		When("idade", domain.OpGreaterThan, 17, "adulto").
		If("contexto.idade < 18", "menor")
	b.Add("adulto").Question("Nome completo?")
	b.Add("menor").Text("Menor")

	state, err := newEngine(t, b.MustBuild()).Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "adulto", state.CurrentStepID)
	assert.Equal(t, domain.StatusAwaitingFreeText, state.Status)
}

func TestEngine_ManualContinue(t *testing.T) {
	b := dsl.New("a")
	b.Add("a").Text("A").Go("b")
	b.Add("b").Text("B")
	engine := newEngine(t, b.MustBuild())

	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingManualContinue, state.Status)
	assert.Equal(t, "b", state.ContinueTarget)

	state, err = engine.Resume(context.Background(), state, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, texts(state, domain.OriginBot))
	assert.Equal(t, domain.StatusFinished, state.Status)
}

func TestEngine_ResumeRequiresSuspension(t *testing.T) {
	b := dsl.New("a")
	b.Add("a").Text("A")
	engine := newEngine(t, b.MustBuild())

	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)

	_, err = engine.Resume(context.Background(), state, "x")
	assert.ErrorIs(t, err, domain.ErrNotSuspended)
	_, err = engine.Resume(context.Background(), nil, "x")
	assert.ErrorIs(t, err, domain.ErrNotSuspended)
}

func TestEngine_Reset(t *testing.T) {
	b := dsl.New("q").Context("tentativas", 0)
	b.Add("q").Question("Nome?").SaveTo("nome").Go("fim")
	b.Add("fim").Text("Obrigado {{contexto.nome}}")
	engine := newEngine(t, b.MustBuild(), runtime.WithFlowID("flow-1"))
	ctx := context.Background()

	state, err := engine.Start(ctx, "sess")
	require.NoError(t, err)
	state, err = engine.Resume(ctx, state, "Bia")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFinished, state.Status)

	reset, err := engine.Reset(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "sess", reset.SessionID)
	assert.Equal(t, "flow-1", reset.FlowID)
	assert.Equal(t, domain.StatusAwaitingFreeText, reset.Status)
	assert.Equal(t, map[string]any{"tentativas": 0}, reset.Context)
	assert.Len(t, reset.History, 1)
}

func TestEngine_DoesNotShareFlowWithCaller(t *testing.T) {
	b := dsl.New("a")
	b.Add("a").Text("Original")
	flow := b.MustBuild()
	engine := newEngine(t, flow)

	flow.Steps["a"].Message = "Edited"
	state, err := engine.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Original", state.History[0].Text)
}

func TestEngine_MessageFallback(t *testing.T) {
	flow := &domain.Flow{
		EntryStepID: "a",
		Steps: map[string]*domain.Step{
			"a": {ID: "a", Kind: domain.KindMessage, Name: "Boas-vindas", NextStepID: "b", AutoAdvance: true},
			"b": {ID: "b", Kind: domain.KindMessage},
		},
	}
	state, err := newEngine(t, flow).Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Boas-vindas", "Step b"}, texts(state, domain.OriginBot))
}

func TestEngine_LifecycleHooks(t *testing.T) {
	b := dsl.New("m")
	b.Add("m").Menu("Escolha").Option("Fim", "fim")
	b.Add("fim").Terminal()

	var suspends, finishes []string
	engine := newEngine(t, b.MustBuild(), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnSuspend: func(_ context.Context, ev *domain.RunEvent) { suspends = append(suspends, string(ev.Status)) },
		OnFinish:  func(_ context.Context, ev *domain.RunEvent) { finishes = append(finishes, ev.StepID) },
	}))
	ctx := context.Background()

	state, err := engine.Start(ctx, "sess-1")
	require.NoError(t, err)
	_, err = engine.Resume(ctx, state, "1")
	require.NoError(t, err)

	assert.Equal(t, []string{string(domain.StatusAwaitingMenuChoice)}, suspends)
	assert.Equal(t, []string{"fim"}, finishes)
}

func TestMatchOption(t *testing.T) {
	opts := []domain.Option{
		{Value: "2", Label: "Primeira"},
		{Value: "x", Label: "Segunda"},
	}
	o, ok := runtime.MatchOption(opts, "2")
	require.True(t, ok)
	assert.Equal(t, "Primeira", o.Label, "value wins over position")

	o, ok = runtime.MatchOption(opts, "1")
	require.True(t, ok)
	assert.Equal(t, "Primeira", o.Label)

	_, ok = runtime.MatchOption(nil, "1")
	assert.False(t, ok)
}
