package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/triagem/internal/logging"
	"github.com/aretw0/triagem/pkg/domain"
	"github.com/aretw0/triagem/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// EngineProvider returns the interpreter for a flow ID.
type EngineProvider func(ctx context.Context, flowID string) (ports.Interpreter, error)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager runs conversations on behalf of transports: it serializes access
// per session, drives the interpreter and persists every resulting state.
// Unused per-session locks are reference counted and released.
type Manager struct {
	store    ports.SessionStore
	provider EngineProvider

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker     ports.DistributedLocker
	lockTTL    time.Duration
	dispatcher ports.HandoffDispatcher
	newID      func() string
	logger     *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithDispatcher forwards every new hand-off to the host.
func WithDispatcher(d ports.HandoffDispatcher) Option {
	return func(m *Manager) {
		m.dispatcher = d
	}
}

// WithIDGenerator overrides how session IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager on top of a store and a source of interpreters.
func NewManager(store ports.SessionStore, provider EngineProvider, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		provider: provider,
		locks:    make(map[string]*lockEntry),
		lockTTL:  DefaultLockTTL,
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

func (m *Manager) interpreter(ctx context.Context, flowID string) (ports.Interpreter, error) {
	if m.provider == nil {
		return nil, errors.New("session manager has no engine provider")
	}
	return m.provider(ctx, flowID)
}

// Start opens a new conversation on flowID. An empty sessionID gets a
// generated one. Starting over an existing session replaces it.
func (m *Manager) Start(ctx context.Context, flowID, sessionID string) (*domain.SimulationState, error) {
	if sessionID == "" {
		sessionID = m.newID()
	}
	var state *domain.SimulationState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		engine, err := m.interpreter(ctx, flowID)
		if err != nil {
			return err
		}
		state, err = engine.Start(ctx, sessionID)
		if err != nil {
			return err
		}
		state.SessionID = sessionID
		state.FlowID = flowID
		if err := m.store.Save(ctx, sessionID, state); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		m.dispatch(ctx, sessionID, nil, state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("session started", "session_id", sessionID, "flow_id", flowID, "status", state.Status)
	return state, nil
}

// Resume loads a session, feeds it the input and persists the result.
// Caller mistakes (domain.ErrInvalidChoice, domain.ErrNotSuspended) leave
// the stored state untouched.
func (m *Manager) Resume(ctx context.Context, sessionID, input string) (*domain.SimulationState, error) {
	return m.transition(ctx, sessionID, false, func(ctx context.Context, engine ports.Interpreter, prev *domain.SimulationState) (*domain.SimulationState, error) {
		return engine.Resume(ctx, prev, input)
	})
}

// Reset restarts a session from the flow's entry step. Every hand-off the
// new run raises is dispatched, as after Start.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*domain.SimulationState, error) {
	return m.transition(ctx, sessionID, true, func(ctx context.Context, engine ports.Interpreter, prev *domain.SimulationState) (*domain.SimulationState, error) {
		return engine.Reset(ctx, prev)
	})
}

type stepFunc func(context.Context, ports.Interpreter, *domain.SimulationState) (*domain.SimulationState, error)

// transition applies step to the stored state. A restart begins a new
// run, so none of its hand-offs count as already dispatched.
func (m *Manager) transition(ctx context.Context, sessionID string, restart bool, step stepFunc) (*domain.SimulationState, error) {
	var next *domain.SimulationState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		prev, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		engine, err := m.interpreter(ctx, prev.FlowID)
		if err != nil {
			return err
		}
		next, err = step(ctx, engine, prev)
		if err != nil {
			return err
		}
		if err := m.store.Save(ctx, sessionID, next); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		if restart {
			prev = nil
		}
		m.dispatch(ctx, sessionID, prev, next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// dispatch forwards the hand-offs next gained over prev; next must
// continue the run of prev, or prev must be nil. Failures are logged; the
// conversation state is already persisted.
func (m *Manager) dispatch(ctx context.Context, sessionID string, prev, next *domain.SimulationState) {
	if m.dispatcher == nil {
		return
	}
	seen := 0
	if prev != nil {
		seen = min(len(prev.Handoffs), len(next.Handoffs))
	}
	for _, h := range next.Handoffs[seen:] {
		if err := m.dispatcher.Dispatch(ctx, sessionID, h); err != nil {
			m.logger.Warn("failed to dispatch handoff",
				"session_id", sessionID,
				"action", h.Action,
				"err", err,
			)
		}
	}
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.SimulationState, error) {
	var state *domain.SimulationState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// WithLock executes fn while holding the local and, if configured, the
// distributed lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
