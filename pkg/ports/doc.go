/*
Package ports defines the driven ports (interfaces) of the flow engine.

These interfaces decouple the interpreter from storage, locking and the host
systems that act on hand-offs, so the same core runs in the CLI, the HTTP
server and the MCP server.

# Key Interfaces

  - Interpreter: runs one flow document (Start, Resume, Reset).
  - SessionStore: persists SimulationState snapshots per session.
  - FlowRepository: stores portable flow documents by ID.
  - DistributedLocker: serializes access to a session across replicas.
  - HandoffDispatcher: delivers transfer and ticket requests to the host.
*/
package ports
