/*
Package domain contains the core models of the triagem flow engine.

It defines the conversational flow graph (Flow, Step, Option, Condition), the
runtime snapshot of a simulation (SimulationState, HistoryEntry) and the visual
node/edge representation consumed by editors. The package is pure and free of
I/O or persistence concerns.

# Key Entities

  - Flow: the portable document, an entry step plus a map of steps.
  - Step: one bot turn (message, menu, question, conditional, action, terminate).
  - SimulationState: the suspension point of a run, with context and history.
  - VisualGraph: nodes and edges as drawn by a visual editor.
*/
package domain
