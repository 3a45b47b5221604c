package store

import (
	"context"
	"iter"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/synergy/pkg/config"
	"github.com/ajitpratap0/synergy/pkg/errors"
	"github.com/ajitpratap0/synergy/pkg/metrics"
	"github.com/ajitpratap0/synergy/pkg/observability"
)

// DefaultTimeout bounds backend round trips when neither the manager nor the
// connection configuration sets one.
const DefaultTimeout = 10 * time.Second

// Manager presents a backend-agnostic document store and decides which
// backend is live. It starts Uninitialized; Initialize binds it to a real
// backend (Live) or to an in-memory store (Mock). A connectivity failure
// while Live degrades it to Mock for the rest of its lifetime.
//
// All methods are safe for concurrent use.
type Manager struct {
	logger     *zap.Logger
	dialer     Dialer
	timeout    time.Duration
	timeoutSet bool
	now        func() time.Time

	mu      sync.RWMutex
	state   State
	backend Backend
	live    Backend
	mock    *MemoryStore
	closed  bool
}

// Option configures a Manager
type Option func(*Manager)

// WithDialer sets the dialer used to open the real backend. Without one the
// manager always runs in mock mode.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithTimeout sets the timeout for each backend round trip. It takes
// precedence over ConnectionConfig.Timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
			m.timeoutSet = true
		}
	}
}

// WithClock overrides the source of write timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates an uninitialized manager
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:  logger.With(zap.String("component", "store")),
		timeout: DefaultTimeout,
		now:     time.Now,
		mock:    NewMemoryStore(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// InitializeFromSnapshot validates snap and initializes from its connection
// settings. An invalid snapshot is refused with a config_validation error and
// leaves the manager untouched.
func (m *Manager) InitializeFromSnapshot(ctx context.Context, snap config.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return config.AsError(err)
	}
	return m.Initialize(ctx, snap.Connection)
}

// Initialize selects the backend:
//
//  1. With no dialer or no connection string configured, mock mode is
//     selected and nil returned.
//  2. Otherwise the dialer opens (or reuses) the shared connection. The
//     round-trip timeout is cfg.Timeout unless WithTimeout was given, and
//     the dialer sees the effective value in cfg.Timeout.
//  3. Connectivity and credential failures are logged and fall back to mock
//     mode, returning nil. Any other failure returns an init error and
//     leaves the manager Failed.
//
// Calling Initialize on a Live or Mock manager is a no-op.
func (m *Manager) Initialize(ctx context.Context, cfg config.ConnectionConfig) (err error) {
	timer := metrics.NewTimer("initialize")
	ctx, span := observability.StartSpan(ctx, "initialize", attribute.String("project_id", cfg.ProjectID))
	defer func() {
		observability.EndSpan(span, err)
		metrics.ObserveOperation("initialize", m.State().String(), metrics.Status(err), timer.Stop())
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateLive, StateMock:
		m.logger.Debug("store already initialized", zap.Stringer("state", m.state))
		return nil
	case StateFailed:
		return errors.New(errors.ErrorTypeInit, "store initialization previously failed")
	}

	if m.dialer == nil || !cfg.HasBackend() {
		m.logger.Warn("no backend client configured, running in mock mode")
		m.setState(StateMock, m.mock)
		return nil
	}

	if !m.timeoutSet && cfg.Timeout > 0 {
		m.timeout = cfg.Timeout
	}
	cfg.Timeout = m.timeout
	openCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	backend, err := m.dialer.Open(openCtx, cfg)
	if err != nil {
		err = classify(err)
		if errors.IsConnectivity(err) {
			m.logger.Error("backend unavailable, falling back to mock mode",
				zap.String("project_id", cfg.ProjectID), zap.Error(err))
			m.setState(StateMock, m.mock)
			return nil
		}
		m.logger.Error("backend initialization failed", zap.String("project_id", cfg.ProjectID), zap.Error(err))
		m.setState(StateFailed, nil)
		return errors.Wrap(err, errors.ErrorTypeInit, "failed to initialize store").
			WithDetail("project_id", cfg.ProjectID)
	}

	m.live = backend
	m.setState(StateLive, backend)
	m.logger.Info("store initialized", zap.String("project_id", cfg.ProjectID), zap.Stringer("state", m.state))
	return nil
}

// setState must be called with mu held
func (m *Manager) setState(s State, b Backend) {
	m.state = s
	m.backend = b
	metrics.SetMode(s.String(), allStates...)
}

// current returns a consistent (state, backend) pair or a persist error if
// the manager cannot serve operations.
func (m *Manager) current() (State, Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.closed:
		return m.state, nil, errors.New(errors.ErrorTypePersist, "store is closed")
	case m.state == StateFailed:
		return m.state, nil, errors.New(errors.ErrorTypePersist, "store initialization failed")
	case m.state == StateUninitialized:
		return m.state, nil, errors.New(errors.ErrorTypePersist, "store is not initialized")
	}
	return m.state, m.backend, nil
}

// degrade switches a Live manager to Mock once and returns the backend to
// retry against. Concurrent callers that lose the race get the mock store.
func (m *Manager) degrade(cause error) Backend {
	m.mu.Lock()
	if m.state != StateLive {
		b := m.backend
		m.mu.Unlock()
		return b
	}
	live := m.live
	m.live = nil
	m.setState(StateMock, m.mock)
	m.mu.Unlock()

	metrics.Degradations.Inc()
	m.logger.Error("live backend unreachable, degraded to mock mode for the rest of the process; "+
		"records written before the switch are not migrated",
		zap.Error(cause))

	if live != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := live.Close(ctx); err != nil {
			m.logger.Warn("failed to release live backend", zap.Error(err))
		}
	}
	return m.mock
}

// classify types raw backend errors the manager can recognize itself.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var e *errors.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "backend operation timed out")
	}
	return err
}

// shouldDegrade reports whether err from a Live backend is a connectivity
// failure. Errors seen after the caller's own context ended are cancellation,
// not a verdict on the backend.
func shouldDegrade(ctx context.Context, state State, err error) bool {
	return err != nil && state == StateLive && ctx.Err() == nil && errors.IsConnectivity(err)
}

// run executes op against the current backend, degrading and retrying once
// against the mock store on a connectivity failure while Live. status labels
// the outcome in metrics; nil means metrics.Status.
func (m *Manager) run(ctx context.Context, name string, op func(context.Context, Backend) error, status func(error) string) error {
	if status == nil {
		status = metrics.Status
	}
	timer := metrics.NewTimer(name)
	state, backend, err := m.current()
	if err != nil {
		metrics.ObserveOperation(name, state.String(), metrics.StatusError, timer.Stop())
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err = classify(op(opCtx, backend))
	cancel()

	if shouldDegrade(ctx, state, err) {
		backend = m.degrade(err)
		state = StateMock
		opCtx, cancel = context.WithTimeout(ctx, m.timeout)
		err = classify(op(opCtx, backend))
		cancel()
	}

	metrics.ObserveOperation(name, state.String(), status(err), timer.Stop())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypePersist, name+" failed")
	}
	return nil
}

func validateAddress(collection, key string) error {
	if collection == "" {
		return errors.New(errors.ErrorTypePersist, "collection name is required")
	}
	if key == "" {
		return errors.New(errors.ErrorTypePersist, "record key is required").
			WithDetail("collection", collection)
	}
	return nil
}

// Put stores fields under (collection, key), replacing any existing record.
// The record is stamped with the manager's clock.
func (m *Manager) Put(ctx context.Context, collection, key string, fields Fields) (err error) {
	if err := validateAddress(collection, key); err != nil {
		return err
	}
	ctx, span := observability.StartSpan(ctx, "put",
		attribute.String("collection", collection), attribute.String("key", key))
	defer func() { observability.EndSpan(span, err) }()

	ts := m.now()
	return m.run(ctx, "put", func(ctx context.Context, b Backend) error {
		return b.Write(ctx, collection, key, fields, ts)
	}, nil)
}

// Get returns the record at (collection, key). A missing record, whether the
// collection or only the key was never written, is (Record{}, false, nil).
func (m *Manager) Get(ctx context.Context, collection, key string) (rec Record, found bool, err error) {
	if err := validateAddress(collection, key); err != nil {
		return Record{}, false, err
	}
	ctx, span := observability.StartSpan(ctx, "get",
		attribute.String("collection", collection), attribute.String("key", key))
	defer func() { observability.EndSpan(span, err) }()

	err = m.run(ctx, "get", func(ctx context.Context, b Backend) error {
		var rerr error
		rec, found, rerr = b.ReadOne(ctx, collection, key)
		return rerr
	}, func(err error) string { return metrics.LookupStatus(found, err) })
	if err != nil {
		return Record{}, false, err
	}
	return rec, found, nil
}

// Query returns a lazy sequence of the records in collection matching
// filter. Nothing is read until the sequence is ranged over, and every range
// re-reads the backend. Order is backend-defined: insertion order in mock
// mode, unspecified when Live.
//
// The timeout bounds each backend round trip, not the whole scan, so a slow
// consumer never times the scan out; ctx still cancels it. A failure is
// yielded once as the last element. A connectivity failure while Live
// degrades the manager and the scan continues against the mock store.
func (m *Manager) Query(ctx context.Context, collection string, filter Filter) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		var err error
		ctx, span := observability.StartSpan(ctx, "query", attribute.String("collection", collection))
		defer func() { observability.EndSpan(span, err) }()

		timer := metrics.NewTimer("query")
		state, backend, err := m.current()
		if err != nil {
			metrics.ObserveOperation("query", state.String(), metrics.StatusError, timer.Stop())
			yield(Record{}, err)
			return
		}
		defer func() {
			metrics.ObserveOperation("query", state.String(), metrics.Status(err), timer.Stop())
		}()

		fail := func(rerr error) {
			err = errors.Wrap(rerr, errors.ErrorTypePersist, "query failed").
				WithDetail("collection", collection)
			yield(Record{}, err)
		}

		for rec, rerr := range backend.ReadMany(ctx, collection, filter) {
			if rerr == nil {
				if !yield(rec, nil) {
					return
				}
				continue
			}

			rerr = classify(rerr)
			if !shouldDegrade(ctx, state, rerr) {
				fail(rerr)
				return
			}

			backend = m.degrade(rerr)
			state = StateMock
			for rec, rerr := range backend.ReadMany(ctx, collection, filter) {
				if rerr != nil {
					fail(classify(rerr))
					return
				}
				if !yield(rec, nil) {
					return
				}
			}
			return
		}
	}
}

// QueryAll collects Query into a slice, stopping at the first error.
func (m *Manager) QueryAll(ctx context.Context, collection string, filter Filter) ([]Record, error) {
	var out []Record
	for rec, err := range m.Query(ctx, collection, filter) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Close releases the live connection handle. It is a no-op in mock mode and
// idempotent: the handle is released at most once.
func (m *Manager) Close(ctx context.Context) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLive || m.closed {
		return nil
	}
	m.closed = true
	live := m.live
	m.live = nil
	if live == nil {
		return nil
	}

	timer := metrics.NewTimer("close")
	defer func() { metrics.ObserveOperation("close", m.state.String(), metrics.Status(err), timer.Stop()) }()

	if err := live.Close(ctx); err != nil {
		return errors.Wrap(err, errors.ErrorTypePersist, "failed to close live backend")
	}
	m.logger.Info("store closed")
	return nil
}
