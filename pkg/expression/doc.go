/*
Package expression evaluates the small boolean language used by conditional
transitions and renders {{path}} placeholders in bot messages.

Both operations fail closed: a malformed clause evaluates to false and a
missing value renders as an empty string. Neither ever returns an error.

	ok := expression.Evaluate("contexto.vip === true || plano == 'gold'", ctx)
	msg := expression.Render("Olá {{contexto.nome}}!", ctx)
*/
package expression
