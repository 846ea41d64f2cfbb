/*
Package dsl provides a fluent builder for constructing triagem flows in Go.

It is an alternative to hand-written JSON documents, useful for tests,
generated flows and IDE type-checking.

Example usage:

	b := dsl.New("inicio")

	b.Add("inicio").
		Menu("Olá {{nome}}, como posso ajudar?").
		Option("Suporte", "suporte").
		Option("⬅️ Voltar", "inicio")

	b.Add("suporte").
		Question("Descreva o problema").
		SaveTo("chamado.descricao").
		Go("fim")

	b.Add("fim").
		Text("Obrigado!").
		Terminal()

	flow, err := b.Build()
*/
package dsl
