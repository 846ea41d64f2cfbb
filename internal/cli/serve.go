package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/triagem"
	"github.com/aretw0/triagem/internal/config"
	"github.com/aretw0/triagem/internal/logging"
	httpadapter "github.com/aretw0/triagem/pkg/adapters/http"
	"github.com/aretw0/triagem/pkg/observability"
	"github.com/aretw0/triagem/pkg/session"
)

// ServeOptions configures the HTTP server. Zero values fall back to the
// config file and its defaults.
type ServeOptions struct {
	ConfigPath string
	Port       int
	// Flows are flow files registered at startup.
	Flows []string
}

// stack is everything a long-running server needs, built once from config.
type stack struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *triagem.Engine
	metrics  *observability.Metrics
	backends *Backends
	sessions *session.Manager
}

func buildStack(ctx context.Context, configPath string, port int, seeds []string) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return newStack(ctx, cfg, logger, seeds)
}

func newStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, seeds []string) (*stack, error) {
	metrics := observability.NewMetrics()
	eng := triagem.New(
		triagem.WithLogger(logger),
		triagem.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LogHooks(logger))),
	)

	backends, err := OpenBackends(ctx, cfg, logger, seeds)
	if err != nil {
		return nil, err
	}

	opts := []session.Option{session.WithLogger(logger)}
	if backends.Locker != nil {
		opts = append(opts, session.WithLocker(backends.Locker))
	}
	if backends.Dispatcher != nil {
		opts = append(opts, session.WithDispatcher(backends.Dispatcher))
	}

	return &stack{
		cfg:      cfg,
		logger:   logger,
		engine:   eng,
		metrics:  metrics,
		backends: backends,
		sessions: session.NewManager(backends.Sessions, eng.Provider(backends.Flows), opts...),
	}, nil
}

func (s *stack) httpServer() *http.Server {
	handler := httpadapter.NewHandler(s.engine, s.backends.Flows, s.sessions,
		httpadapter.WithLogger(s.logger),
		httpadapter.WithMetrics(s.metrics.Handler()),
		httpadapter.WithMaxInputSize(s.cfg.Input.MaxSize),
	)
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs the HTTP API until ctx is cancelled, then drains open
// requests within the configured shutdown timeout.
func Serve(ctx context.Context, opts ServeOptions) error {
	st, err := buildStack(ctx, opts.ConfigPath, opts.Port, opts.Flows)
	if err != nil {
		return err
	}
	defer st.backends.Close()

	srv := st.httpServer()
	serverErrors := make(chan error, 1)
	go func() {
		st.logger.Info("triagem server listening", "address", srv.Addr, "version", triagem.Version,
			"sessions", st.cfg.Sessions.Backend, "flows", st.cfg.Flows.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		timeout := st.cfg.Server.ShutdownTimeout
		st.logger.Info("shutting down", "timeout", timeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			st.logger.Error("graceful shutdown did not complete", "error", err)
			return srv.Close()
		}
		st.logger.Info("server stopped gracefully")
		return nil
	}
}
