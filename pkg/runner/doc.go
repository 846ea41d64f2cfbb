/*
Package runner drives a simulation interactively.

It bridges the stateless interpreter and a person (or a program) on the
other end of a stream. A Runner shows each Turn through an IOHandler, reads
the next answer, sanitizes it and resumes the run. TextHandler prints bot
messages and numbered choices for terminals; JSONHandler exchanges JSON
Lines for headless hosts.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("demo"),
		runner.WithStore(store),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	final, err := r.Run(ctx, engine, nil)

Typing /reset restarts the run and /exit leaves the loop.
*/
package runner
