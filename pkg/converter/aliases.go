package converter

import (
	"strings"

	"github.com/aretw0/triagem/pkg/domain"
)

var stepKindAliases = map[string]domain.StepKind{
	"message":         domain.KindMessage,
	"mensagem":        domain.KindMessage,
	"menu":            domain.KindMenu,
	"mensagem_menu":   domain.KindMenu,
	"menu_opcoes":     domain.KindMenu,
	"question":        domain.KindQuestion,
	"coleta_dados":    domain.KindQuestion,
	"pergunta_aberta": domain.KindQuestion,
	"conditional":     domain.KindConditional,
	"condicional":     domain.KindConditional,
	"validacao":       domain.KindConditional,
	"action":          domain.KindAction,
	"acao":            domain.KindAction,
	"terminate":       domain.KindTerminate,
	"finalizar":       domain.KindTerminate,
}

var actionAliases = map[string]domain.OptionAction{
	"advance":              domain.ActionAdvance,
	"proximo_passo":        domain.ActionAdvance,
	"transferToNucleus":    domain.ActionTransferToNucleus,
	"transferir_nucleo":    domain.ActionTransferToNucleus,
	"transferir":           domain.ActionTransferToNucleus,
	"transfer":             domain.ActionTransferToNucleus,
	"transferToAttendant":  domain.ActionTransferToAttendant,
	"transferir_atendente": domain.ActionTransferToAttendant,
	"createTicket":         domain.ActionCreateTicket,
	"criar_ticket":         domain.ActionCreateTicket,
	"terminate":            domain.ActionTerminate,
	"finalizar":            domain.ActionTerminate,
}

var operatorAliases = map[string]domain.Operator{
	"equal":       domain.OpEqual,
	"igual":       domain.OpEqual,
	"==":          domain.OpEqual,
	"===":         domain.OpEqual,
	"notEqual":    domain.OpNotEqual,
	"diferente":   domain.OpNotEqual,
	"!=":          domain.OpNotEqual,
	"!==":         domain.OpNotEqual,
	"contains":    domain.OpContains,
	"contem":      domain.OpContains,
	"greaterThan": domain.OpGreaterThan,
	"maior":       domain.OpGreaterThan,
	">":           domain.OpGreaterThan,
	"lessThan":    domain.OpLessThan,
	"menor":       domain.OpLessThan,
	"<":           domain.OpLessThan,
	"exists":      domain.OpExists,
	"existe":      domain.OpExists,
	"notExists":   domain.OpNotExists,
	"nao_existe":  domain.OpNotExists,
}

// transferMarkers flag a raw step as an action step during kind inference.
var transferMarkers = map[string]bool{
	"transferir": true,
	"transfer":   true,
}

// ParseStepKind maps canonical and legacy kind names. Unknown names report false.
func ParseStepKind(name string) (domain.StepKind, bool) {
	k, ok := stepKindAliases[strings.TrimSpace(name)]
	return k, ok
}

// ParseAction maps canonical and legacy option actions. Unknown names report false.
func ParseAction(name string) (domain.OptionAction, bool) {
	a, ok := actionAliases[strings.TrimSpace(name)]
	return a, ok
}

// ParseOperator maps canonical and legacy condition operators. Unknown names report false.
func ParseOperator(name string) (domain.Operator, bool) {
	op, ok := operatorAliases[strings.TrimSpace(name)]
	return op, ok
}
