package cli

import (
	"context"
	"fmt"

	mcpadapter "github.com/aretw0/triagem/pkg/adapters/mcp"
)

// MCPOptions configures the Model Context Protocol server.
type MCPOptions struct {
	ConfigPath string
	// Transport is "stdio" or "sse".
	Transport string
	Port      int
	Flows     []string
}

// ServeMCP exposes flows and sessions as MCP tools. Over stdio the logs
// must stay on stderr, which logging.New already guarantees.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	st, err := buildStack(ctx, opts.ConfigPath, opts.Port, opts.Flows)
	if err != nil {
		return err
	}
	defer st.backends.Close()

	srv := mcpadapter.NewServer(st.engine, st.backends.Flows, st.sessions,
		mcpadapter.WithLogger(st.logger),
		mcpadapter.WithMaxInputSize(st.cfg.Input.MaxSize),
	)

	switch opts.Transport {
	case "", "stdio":
		st.logger.Info("mcp server listening (stdio)")
		return handleExecutionError(srv.ServeStdio())
	case "sse":
		return srv.ServeSSE(ctx, st.cfg.Server.Port)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", opts.Transport)
	}
}
