/*
Package observability turns interpreter lifecycle events into Prometheus
metrics and structured log lines.

A Metrics value owns its own registry so several engines (or tests) can run
side by side without colliding on the global default registry. Plug it into
an engine through its Hooks, and expose it with Handler.
*/
package observability
