package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lead-capture/internal/admin"
	"lead-capture/internal/auth"
	"lead-capture/internal/common/database"
	"lead-capture/internal/common/logger"
	"lead-capture/internal/common/metrics"
	"lead-capture/internal/common/observability"
	"lead-capture/internal/form/store"
	"lead-capture/internal/form/wizard"
)

// Backend is everything a session needs from the remote API.
type Backend interface {
	wizard.Submitter
	auth.TokenVerifier
	auth.Authenticator
	admin.API
}

// Session bundles the live components of one wizard instance.
type Session struct {
	ID         string
	Store      *store.Store
	Controller *wizard.Controller
	Guard      *auth.Guard
	Auth       *auth.Service
	Admin      *admin.Dashboard
}

// Manager builds and tracks live sessions. Snapshots go through the
// registry; the startup auth guard runs in the background as soon as a
// session comes alive.
type Manager struct {
	registry *Registry
	rdb      *database.RedisClient
	backend  Backend
	tokenTTL time.Duration
	log      logger.Logger

	audit    wizard.AuditTrail
	notifier wizard.Notifier
	obs      *observability.Observability

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures optional manager collaborators.
type ManagerOption func(*Manager)

// WithAuditTrail wires the submission audit log into every session.
func WithAuditTrail(audit wizard.AuditTrail) ManagerOption {
	return func(m *Manager) { m.audit = audit }
}

// WithNotifier wires the confirmation notifier into every session.
func WithNotifier(n wizard.Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithObservability wires tracing into every session.
func WithObservability(obs *observability.Observability) ManagerOption {
	return func(m *Manager) { m.obs = obs }
}

// NewManager wires a session manager.
func NewManager(registry *Registry, rdb *database.RedisClient, backend Backend, tokenTTL time.Duration, log logger.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		rdb:      rdb,
		backend:  backend,
		tokenTTL: tokenTTL,
		log:      log,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a fresh session and kicks off its startup auth check.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	id := uuid.New().String()
	sess := m.build(id)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	metrics.SessionsActive.Inc()

	if err := m.registry.Save(ctx, sess.Store.Snapshot()); err != nil {
		m.log.Warn("failed to persist new session", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}

	go sess.Guard.Run(context.WithoutCancel(ctx))

	m.log.Info("session created", map[string]interface{}{"session_id": id})
	return sess, nil
}

// Get returns a live session, resuming it from its snapshot when the
// process has restarted since the session was created.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return sess, nil
	}

	snapshot, err := m.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	sess = m.build(id)
	sess.Store.Restore(*snapshot)

	m.mu.Lock()
	// Another request may have resumed the session concurrently.
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[id] = sess
	m.mu.Unlock()
	metrics.SessionsActive.Inc()

	go sess.Guard.Run(context.WithoutCancel(ctx))

	m.log.Info("session resumed from snapshot", map[string]interface{}{"session_id": id})
	return sess, nil
}

// Save persists the session's current snapshot.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	return m.registry.Save(ctx, sess.Store.Snapshot())
}

// Delete drops a session, its snapshot and its persisted token.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		metrics.SessionsActive.Dec()
	}

	tokens := auth.NewRedisTokenStore(m.rdb, id, m.tokenTTL)
	if err := tokens.Clear(ctx); err != nil {
		m.log.Warn("failed to clear session token", map[string]interface{}{
			"session_id": id,
			"error":      err.Error(),
		})
	}
	return m.registry.Delete(ctx, id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) build(id string) *Session {
	tokens := auth.NewRedisTokenStore(m.rdb, id, m.tokenTTL)
	st := store.New(id, tokens, m.log)

	// Submission outcomes land asynchronously, so the controller
	// persists the snapshot itself when a resolution commits.
	opts := []wizard.Option{
		wizard.WithResolutionHook(func(ctx context.Context) {
			if err := m.registry.Save(ctx, st.Snapshot()); err != nil {
				m.log.Warn("failed to persist session after submission", map[string]interface{}{
					"session_id": id,
					"error":      err.Error(),
				})
			}
		}),
	}
	if m.audit != nil {
		opts = append(opts, wizard.WithAuditTrail(m.audit))
	}
	if m.notifier != nil {
		opts = append(opts, wizard.WithNotifier(m.notifier))
	}
	if m.obs != nil {
		opts = append(opts, wizard.WithObservability(m.obs))
	}
	controller := wizard.New(st, m.backend, m.log, opts...)

	guard := auth.NewGuard(st, tokens, m.backend, m.log)
	authSvc := auth.NewService(st, guard, m.backend, m.log)
	dashboard := admin.NewDashboard(st, m.backend, m.log)

	return &Session{
		ID:         id,
		Store:      st,
		Controller: controller,
		Guard:      guard,
		Auth:       authSvc,
		Admin:      dashboard,
	}
}
