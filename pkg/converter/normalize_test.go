package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triagem/pkg/domain"
)

const legacyFlow = `{
	"etapaInicial": "boas_vindas",
	"versao": "2",
	"variaveis": {"empresa": "Acme"},
	"canal": "whatsapp",
	"etapas": {
		"boas_vindas": {
			"tipo": "mensagem_menu",
			"titulo": "Boas-vindas",
			"mensagem": ["Olá!", "", "Escolha uma opção:"],
			"opcoes": [
				{"numero": 1, "texto": "Suporte", "proxima_etapa": "coleta_nome", "salvarContexto": {"setor": "{{resposta}}"}},
				{"valor": "2", "texto": "Financeiro", "acao": "transferir_nucleo", "nucleoId": "n-9", "departamentoId": "d-1"},
				{"proximaEtapa": "fim", "acao": "finalizar", "cor": "red"}
			]
		},
		"coleta_nome": {
			"tipo": "coleta_dados",
			"mensagem": {"texto": "Qual o seu nome?"},
			"variavel": "cliente.nome",
			"proximaEtapa": "checa"
		},
		"checa": {
			"tipo": "validacao",
			"condicoes": [
				{"campo": "cliente.nome", "operador": "existe", "proximaEtapa": "fim"},
				{"se": "contexto.vip === true", "entao": "boas_vindas"}
			],
			"proximaEtapaCondicional": [{"se": "x == 1", "entao": "fim"}]
		},
		"aviso": {"mensagem": "segue", "aguardarResposta": false, "proximaEtapa": "fim"},
		"fim": {"nome": "Encerramento", "finalizar": true}
	}
}`

func TestParse_LegacyDocument(t *testing.T) {
	flow, err := Parse([]byte(legacyFlow))
	require.NoError(t, err)

	assert.Equal(t, "boas_vindas", flow.EntryStepID)
	assert.Equal(t, "2", flow.Version)
	assert.Equal(t, map[string]any{"empresa": "Acme"}, flow.InitialContext)
	assert.Equal(t, "whatsapp", flow.Extra["canal"])
	require.Len(t, flow.Steps, 5)

	menu := flow.Steps["boas_vindas"]
	assert.Equal(t, domain.KindMenu, menu.Kind)
	assert.Equal(t, "Boas-vindas", menu.Name)
	assert.Equal(t, "Olá!\nEscolha uma opção:", menu.Message)
	require.Len(t, menu.Options, 3)

	assert.Equal(t, "1", menu.Options[0].Value)
	assert.Equal(t, "Suporte", menu.Options[0].Label)
	assert.Equal(t, domain.ActionAdvance, menu.Options[0].Action)
	assert.Equal(t, "coleta_nome", menu.Options[0].NextStepID)
	assert.Equal(t, map[string]any{"setor": "{{resposta}}"}, menu.Options[0].ContextBindings)

	assert.Equal(t, "2", menu.Options[1].Value)
	assert.Equal(t, domain.ActionTransferToNucleus, menu.Options[1].Action)
	assert.Equal(t, "n-9", menu.Options[1].NucleusID)
	assert.Equal(t, "d-1", menu.Options[1].DepartmentID)

	assert.Equal(t, "3", menu.Options[2].Value, "value defaults to position")
	assert.Equal(t, "Option 3", menu.Options[2].Label)
	assert.Equal(t, domain.ActionTerminate, menu.Options[2].Action)
	assert.Equal(t, "red", menu.Options[2].Extra["cor"])

	q := flow.Steps["coleta_nome"]
	assert.Equal(t, domain.KindQuestion, q.Kind)
	assert.Equal(t, "Qual o seu nome?", q.Message)
	assert.Equal(t, "cliente.nome", q.VariableName)
	assert.Equal(t, "checa", q.NextStepID)

	c := flow.Steps["checa"]
	assert.Equal(t, domain.KindConditional, c.Kind)
	require.Len(t, c.Conditions, 2)
	assert.Equal(t, domain.Condition{Field: "cliente.nome", Operator: domain.OpExists, NextStepID: "fim"}, c.Conditions[0])
	assert.Equal(t, "contexto.vip === true", c.Conditions[1].Expression)
	assert.Equal(t, "boas_vindas", c.Conditions[1].NextStepID)
	assert.Equal(t, []domain.ConditionalNext{{Expression: "x == 1", ThenStepID: "fim"}}, c.ConditionalNext)

	aviso := flow.Steps["aviso"]
	assert.Equal(t, domain.KindMessage, aviso.Kind)
	assert.True(t, aviso.AutoAdvance)

	fim := flow.Steps["fim"]
	assert.Equal(t, domain.KindTerminate, fim.Kind)
	assert.Equal(t, "Encerramento", fim.Name)
}

func TestNormalizeStep_KindInference(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want domain.StepKind
	}{
		{"default message", map[string]any{"message": "hi"}, domain.KindMessage},
		{"options imply menu", map[string]any{"options": []any{map[string]any{"label": "a"}}}, domain.KindMenu},
		{"explicit kind wins over options", map[string]any{"kind": "question", "options": []any{map[string]any{}}}, domain.KindQuestion},
		{"empty options stay message", map[string]any{"options": []any{}}, domain.KindMessage},
		{"terminate flag overrides", map[string]any{"kind": "menu", "options": []any{map[string]any{}}, "finalizar": true}, domain.KindTerminate},
		{"canonical terminate flag", map[string]any{"terminate": true}, domain.KindTerminate},
		{"transfer marker", map[string]any{"acao": "transferir"}, domain.KindAction},
		{"transfer marker beats terminate", map[string]any{"finalizar": true, "action": "transfer"}, domain.KindAction},
		{"legacy conditional", map[string]any{"tipo": "condicional"}, domain.KindConditional},
		{"legacy action", map[string]any{"tipo": "acao"}, domain.KindAction},
		{"unknown kind falls back", map[string]any{"kind": "carousel"}, domain.KindMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := NormalizeStep("s", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, step.Kind)
		})
	}
}

func TestNormalizeStep_Nil(t *testing.T) {
	step, err := NormalizeStep("orfa", nil)
	require.NoError(t, err)
	assert.Equal(t, &domain.Step{ID: "orfa", Kind: domain.KindMessage, Name: "orfa"}, step)
}

func TestNormalizeStep_MapKeyIsAuthoritative(t *testing.T) {
	step, err := NormalizeStep("real", map[string]any{"id": "other"})
	require.NoError(t, err)
	assert.Equal(t, "real", step.ID)
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "olá", "olá"},
		{"fragments", []any{"a", nil, "", "b"}, "a\nb"},
		{"numeric fragment", []any{"a", float64(2)}, "a\n2"},
		{"text object", map[string]any{"text": "t"}, "t"},
		{"content object", map[string]any{"content": "c"}, "c"},
		{"legacy object", map[string]any{"conteudo": "c"}, "c"},
		{"empty object", map[string]any{"other": 1}, ""},
		{"number", 42, ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMessage(tt.in))
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"steps": `))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"steps": {"a": {"options": "nope"}}}`))
	assert.Error(t, err)
}

func TestParse_UnknownFieldsSurviveSave(t *testing.T) {
	doc := `{
		"entryStepId": "a",
		"owner": {"team": "cx"},
		"steps": {
			"a": {"kind": "menu", "message": "m", "layoutHint": [1, 2],
				"options": [{"value": "1", "label": "x", "nextStepId": "b", "badge": "new"}]},
			"b": {"kind": "conditional", "conditions": [{"field": "f", "operator": "exists", "nextStepId": "a", "weight": 3}]}
		}
	}`
	flow, err := Parse([]byte(doc))
	require.NoError(t, err)

	out, err := Marshal(flow)
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, flow, again)
	assert.Equal(t, map[string]any{"team": "cx"}, again.Extra["owner"])
	assert.Equal(t, []any{float64(1), float64(2)}, again.Steps["a"].Extra["layoutHint"])
	assert.Equal(t, "new", again.Steps["a"].Options[0].Extra["badge"])
	assert.Equal(t, float64(3), again.Steps["b"].Conditions[0].Extra["weight"])
}
