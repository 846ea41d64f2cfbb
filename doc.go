/*
Package triagem runs conversational triage flows: graphs of bot messages,
menus, questions and conditional branches, as built by a visual flow editor.

A flow document is plain data. The Engine validates it, detects the loops
that would trap a user, removes "back to menu" shortcuts that close them,
and interprets it one turn at a time. The interpreter never holds session
data: each call takes a SimulationState and returns a new one, which makes
it safe to persist states between requests and to serve many sessions
from one Engine.

# Usage

	eng := triagem.New()

	flow, err := eng.Load("atendimento.json")
	if err != nil {
		log.Fatal(err)
	}
	if err := eng.Validate(flow).Err(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	state, err := eng.Start(ctx, flow, "session-123")
	if err != nil {
		log.Fatal(err)
	}
	for state.Status.Suspended() {
		next, err := eng.Resume(ctx, flow, state, readAnswer())
		if err != nil {
			log.Print(err) // not one of the choices, ask again
			continue
		}
		state = next
	}

For durable sessions see package session; for an interactive terminal loop
see package runner.
*/
package triagem
