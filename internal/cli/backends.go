package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/triagem/internal/config"
	"github.com/aretw0/triagem/pkg/adapters/file"
	"github.com/aretw0/triagem/pkg/adapters/memory"
	"github.com/aretw0/triagem/pkg/adapters/process"
	"github.com/aretw0/triagem/pkg/adapters/redis"
	"github.com/aretw0/triagem/pkg/adapters/sqlite"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/persistence/middleware"
	"github.com/aretw0/triagem/pkg/ports"
)

// Backends are the storage and hand-off adapters selected by the config.
type Backends struct {
	Sessions   ports.SessionStore
	Flows      ports.FlowRepository
	Locker     ports.DistributedLocker
	Dispatcher ports.HandoffDispatcher

	closers []func() error
}

// OpenBackends wires the configured adapters. Flow files named in seeds are
// saved into the flow repository under their base name.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger, seeds []string) (*Backends, error) {
	b := &Backends{}
	if err := b.open(ctx, cfg, logger, seeds); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backends) open(ctx context.Context, cfg *config.Config, logger *slog.Logger, seeds []string) error {
	if err := b.openSessions(ctx, cfg, logger); err != nil {
		return err
	}
	if err := b.openFlows(cfg); err != nil {
		return err
	}
	for _, path := range seeds {
		flow, err := file.Load(path)
		if err != nil {
			return err
		}
		id := flowID(path)
		if err := b.Flows.Save(ctx, id, flow); err != nil {
			return fmt.Errorf("failed to register flow %q: %w", id, err)
		}
		logger.Info("flow registered", "flow_id", id, "path", path)
	}

	handlers, err := process.LoadHandlers(cfg.Handoffs.Handlers)
	if err != nil {
		return err
	}
	if len(handlers) > 0 {
		b.Dispatcher = process.NewDispatcher(
			process.WithRegistry(handlers),
			process.WithBaseDir(filepath.Dir(cfg.Handoffs.Handlers)),
			process.WithTimeout(cfg.Handoffs.Timeout),
			process.WithLogger(logger),
		)
		logger.Info("hand-off handlers loaded", "path", cfg.Handoffs.Handlers, "count", len(handlers))
	}
	return nil
}

func (b *Backends) openSessions(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var store ports.SessionStore
	switch cfg.Sessions.Backend {
	case "redis":
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithTTL(cfg.Sessions.TTL),
			redis.WithPrefix(cfg.Redis.Prefix),
		)
		b.closers = append(b.closers, rs.Close)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		b.Locker = redis.NewLocker(rs.Client(), cfg.Redis.Prefix+"lock:")
		store = rs
		logger.Info("sessions stored in redis", "addr", cfg.Redis.Addr, "ttl", cfg.Sessions.TTL)
	default:
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if len(cfg.Security.PIIKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Security.PIIKeys)
		if err != nil {
			return err
		}
		mws = append(mws, pii)
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		return err
	}
	if key != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return err
		}
		mws = append(mws, enc)
	}
	b.Sessions = middleware.Chain(store, mws...)
	return nil
}

func (b *Backends) openFlows(cfg *config.Config) error {
	switch cfg.Flows.Backend {
	case "sqlite":
		repo, err := sqlite.New(cfg.Flows.SQLitePath)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, repo.Close)
		b.Flows = repo
	case "file":
		b.Flows = file.NewFlowRepository(cfg.Flows.Dir)
	default:
		b.Flows = memory.NewFlowRepository(map[string]*domain.Flow{})
	}
	return nil
}

// Close releases the connections opened by OpenBackends.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
