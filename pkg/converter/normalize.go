package converter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/aretw0/triagem/pkg/domain"
)

// DefaultVersion is stamped on documents produced without one.
const DefaultVersion = "1.0"

type rawFlow struct {
	EntryStepID    string         `mapstructure:"entryStepId"`
	EtapaInicial   string         `mapstructure:"etapaInicial"`
	Steps          map[string]any `mapstructure:"steps"`
	Etapas         map[string]any `mapstructure:"etapas"`
	InitialContext map[string]any `mapstructure:"initialContext"`
	Variaveis      map[string]any `mapstructure:"variaveis"`
	Version        string         `mapstructure:"version"`
	Versao         string         `mapstructure:"versao"`
	Rest           map[string]any `mapstructure:",remain"`
}

type rawConditionalNext struct {
	Expression string `mapstructure:"expression"`
	Se         string `mapstructure:"se"`
	ThenStepID string `mapstructure:"thenStepId"`
	Entao      string `mapstructure:"entao"`
}

type rawOption struct {
	Value                   any                  `mapstructure:"value"`
	Valor                   any                  `mapstructure:"valor"`
	Number                  any                  `mapstructure:"number"`
	Numero                  any                  `mapstructure:"numero"`
	Label                   string               `mapstructure:"label"`
	Text                    string               `mapstructure:"text"`
	Texto                   string               `mapstructure:"texto"`
	Action                  string               `mapstructure:"action"`
	Acao                    string               `mapstructure:"acao"`
	NucleusID               string               `mapstructure:"nucleusId"`
	NucleoID                string               `mapstructure:"nucleoId"`
	DepartmentID            string               `mapstructure:"departmentId"`
	DepartamentoID          string               `mapstructure:"departamentoId"`
	NextStepID              string               `mapstructure:"nextStepId"`
	ProximaEtapa            string               `mapstructure:"proximaEtapa"`
	ProximaEtapaSnake       string               `mapstructure:"proxima_etapa"`
	ConditionalNext         []rawConditionalNext `mapstructure:"conditionalNext"`
	ProximaEtapaCondicional []rawConditionalNext `mapstructure:"proximaEtapaCondicional"`
	ContextBindings         map[string]any       `mapstructure:"contextBindings"`
	SalvarContexto          map[string]any       `mapstructure:"salvarContexto"`
	Rest                    map[string]any       `mapstructure:",remain"`
}

type rawCondition struct {
	Field        string         `mapstructure:"field"`
	Campo        string         `mapstructure:"campo"`
	Operator     string         `mapstructure:"operator"`
	Operador     string         `mapstructure:"operador"`
	Value        any            `mapstructure:"value"`
	Valor        any            `mapstructure:"valor"`
	Expression   string         `mapstructure:"expression"`
	Se           string         `mapstructure:"se"`
	NextStepID   string         `mapstructure:"nextStepId"`
	ProximaEtapa string         `mapstructure:"proximaEtapa"`
	Entao        string         `mapstructure:"entao"`
	Rest         map[string]any `mapstructure:",remain"`
}

type rawStep struct {
	ID                      string               `mapstructure:"id"`
	Kind                    string               `mapstructure:"kind"`
	Tipo                    string               `mapstructure:"tipo"`
	Name                    string               `mapstructure:"name"`
	Nome                    string               `mapstructure:"nome"`
	Titulo                  string               `mapstructure:"titulo"`
	Message                 any                  `mapstructure:"message"`
	Mensagem                any                  `mapstructure:"mensagem"`
	Options                 []rawOption          `mapstructure:"options"`
	Opcoes                  []rawOption          `mapstructure:"opcoes"`
	Conditions              []rawCondition       `mapstructure:"conditions"`
	Condicoes               []rawCondition       `mapstructure:"condicoes"`
	NextStepID              string               `mapstructure:"nextStepId"`
	ProximaEtapa            string               `mapstructure:"proximaEtapa"`
	ProximaEtapaSnake       string               `mapstructure:"proxima_etapa"`
	ConditionalNext         []rawConditionalNext `mapstructure:"conditionalNext"`
	ProximaEtapaCondicional []rawConditionalNext `mapstructure:"proximaEtapaCondicional"`
	AutoAdvance             *bool                `mapstructure:"autoAdvance"`
	AguardarResposta        *bool                `mapstructure:"aguardarResposta"`
	VariableName            string               `mapstructure:"variableName"`
	Variavel                string               `mapstructure:"variavel"`
	Terminate               *bool                `mapstructure:"terminate"`
	Finalizar               *bool                `mapstructure:"finalizar"`
	Action                  string               `mapstructure:"action"`
	Acao                    string               `mapstructure:"acao"`
	NucleusID               string               `mapstructure:"nucleusId"`
	NucleoID                string               `mapstructure:"nucleoId"`
	DepartmentID            string               `mapstructure:"departmentId"`
	DepartamentoID          string               `mapstructure:"departamentoId"`
	Rest                    map[string]any       `mapstructure:",remain"`
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Parse decodes a JSON flow document and normalizes it.
func Parse(data []byte) (*domain.Flow, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed flow document: %w", err)
	}
	return Normalize(raw)
}

// Marshal encodes a flow as an indented portable document.
func Marshal(flow *domain.Flow) ([]byte, error) {
	if flow == nil {
		return nil, domain.ErrNilFlow
	}
	return json.MarshalIndent(flow, "", "  ")
}

// Normalize turns a raw document, canonical or legacy, into a domain.Flow.
// Unknown fields are kept in the Extra maps so they survive a later save.
func Normalize(raw map[string]any) (*domain.Flow, error) {
	if raw == nil {
		return nil, domain.ErrNilFlow
	}

	var rf rawFlow
	if err := decode(raw, &rf); err != nil {
		return nil, fmt.Errorf("malformed flow document: %w", err)
	}

	flow := &domain.Flow{
		EntryStepID:    firstString(rf.EntryStepID, rf.EtapaInicial),
		InitialContext: firstMap(rf.InitialContext, rf.Variaveis),
		Version:        firstString(rf.Version, rf.Versao),
		Steps:          make(map[string]*domain.Step),
		Extra:          emptyToNil(rf.Rest),
	}

	rawSteps := rf.Steps
	if rawSteps == nil {
		rawSteps = rf.Etapas
	}
	ids := make([]string, 0, len(rawSteps))
	for id := range rawSteps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		step, err := NormalizeStep(id, rawSteps[id])
		if err != nil {
			return nil, err
		}
		flow.Steps[id] = step
	}
	return flow, nil
}

// NormalizeStep converts one raw step. A nil step becomes an empty message step.
func NormalizeStep(id string, raw any) (*domain.Step, error) {
	if raw == nil {
		return &domain.Step{ID: id, Kind: domain.KindMessage, Name: id}, nil
	}

	var rs rawStep
	if err := decode(raw, &rs); err != nil {
		return nil, fmt.Errorf("malformed step %q: %w", id, err)
	}

	step := &domain.Step{
		ID:           id,
		Name:         firstString(rs.Name, rs.Nome, rs.Titulo),
		Message:      NormalizeMessage(firstPresent(rs.Message, rs.Mensagem)),
		NextStepID:   firstString(rs.NextStepID, rs.ProximaEtapa, rs.ProximaEtapaSnake),
		VariableName: firstString(rs.VariableName, rs.Variavel),
		NucleusID:    firstString(rs.NucleusID, rs.NucleoID),
		DepartmentID: firstString(rs.DepartmentID, rs.DepartamentoID),
		Extra:        emptyToNil(rs.Rest),
	}
	rawOptions := rs.Options
	if rawOptions == nil {
		rawOptions = rs.Opcoes
	}
	for i, ro := range rawOptions {
		step.Options = append(step.Options, normalizeOption(ro, i))
	}

	rawConditions := rs.Conditions
	if rawConditions == nil {
		rawConditions = rs.Condicoes
	}
	for _, rc := range rawConditions {
		step.Conditions = append(step.Conditions, normalizeCondition(rc))
	}

	step.ConditionalNext = normalizeConditionalNext(rs.ConditionalNext, rs.ProximaEtapaCondicional)

	switch {
	case rs.AutoAdvance != nil:
		step.AutoAdvance = *rs.AutoAdvance
	case rs.AguardarResposta != nil:
		step.AutoAdvance = !*rs.AguardarResposta
	}

	rawAction := firstString(rs.Action, rs.Acao)
	if a, ok := ParseAction(rawAction); ok {
		step.Action = a
	}

	step.Kind = inferKind(rs, rawAction, len(step.Options))
	return step, nil
}

// inferKind applies the kind rules in order: explicit kind, options imply a
// menu, a terminate flag overrides, a transfer marker makes an action step.
func inferKind(rs rawStep, rawAction string, optionCount int) domain.StepKind {
	explicit := firstString(rs.Kind, rs.Tipo)

	kind := domain.KindMessage
	if k, ok := ParseStepKind(explicit); ok {
		kind = k
	}
	if explicit == "" && optionCount > 0 {
		kind = domain.KindMenu
	}
	if (rs.Terminate != nil && *rs.Terminate) || (rs.Finalizar != nil && *rs.Finalizar) {
		kind = domain.KindTerminate
	}
	if transferMarkers[strings.TrimSpace(rawAction)] {
		kind = domain.KindAction
	}
	return kind
}

func normalizeOption(ro rawOption, index int) domain.Option {
	opt := domain.Option{
		Label:           firstString(ro.Label, ro.Text, ro.Texto),
		NucleusID:       firstString(ro.NucleusID, ro.NucleoID),
		DepartmentID:    firstString(ro.DepartmentID, ro.DepartamentoID),
		NextStepID:      firstString(ro.NextStepID, ro.ProximaEtapa, ro.ProximaEtapaSnake),
		ConditionalNext: normalizeConditionalNext(ro.ConditionalNext, ro.ProximaEtapaCondicional),
		ContextBindings: firstMap(ro.ContextBindings, ro.SalvarContexto),
		Extra:           emptyToNil(ro.Rest),
	}

	if v := firstPresent(ro.Value, ro.Valor, ro.Number, ro.Numero); v != nil {
		opt.Value = cast.ToString(v)
	}
	if opt.Value == "" {
		opt.Value = strconv.Itoa(index + 1)
	}
	if opt.Label == "" {
		opt.Label = fmt.Sprintf("Option %d", index+1)
	}

	opt.Action = domain.ActionAdvance
	if a, ok := ParseAction(firstString(ro.Action, ro.Acao)); ok {
		opt.Action = a
	}
	return opt
}

func normalizeCondition(rc rawCondition) domain.Condition {
	cond := domain.Condition{
		Field:      firstString(rc.Field, rc.Campo),
		Value:      firstPresent(rc.Value, rc.Valor),
		Expression: firstString(rc.Expression, rc.Se),
		NextStepID: firstString(rc.NextStepID, rc.ProximaEtapa, rc.Entao),
		Extra:      emptyToNil(rc.Rest),
	}
	rawOp := firstString(rc.Operator, rc.Operador)
	if op, ok := ParseOperator(rawOp); ok {
		cond.Operator = op
	} else if rawOp != "" {
		cond.Operator = domain.Operator(rawOp)
	}
	return cond
}

func normalizeConditionalNext(lists ...[]rawConditionalNext) []domain.ConditionalNext {
	var out []domain.ConditionalNext
	for _, list := range lists {
		if list == nil {
			continue
		}
		for _, rc := range list {
			out = append(out, domain.ConditionalNext{
				Expression: firstString(rc.Expression, rc.Se),
				ThenStepID: firstString(rc.ThenStepID, rc.Entao),
			})
		}
		break
	}
	return out
}

// NormalizeMessage flattens the accepted message shapes into one string:
// strings pass through, fragment lists join with newlines, objects yield
// their text or content field.
func NormalizeMessage(v any) string {
	switch m := v.(type) {
	case string:
		return m
	case []any:
		parts := make([]string, 0, len(m))
		for _, item := range m {
			if falsy(item) {
				continue
			}
			parts = append(parts, cast.ToString(item))
		}
		return strings.Join(parts, "\n")
	case []string:
		parts := make([]string, 0, len(m))
		for _, s := range m {
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		for _, key := range []string{"text", "content", "texto", "conteudo"} {
			if s := cast.ToString(m[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func falsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	}
	return false
}

func firstString(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstMap(values ...map[string]any) map[string]any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func emptyToNil(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
