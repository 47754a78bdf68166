// Package session owns the lifecycle of a logged-in till session: the
// Reconciliation Engine with its hydration flags, the ledger and the
// cash-day machine built on it. Logging out tears all of them down.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/clock"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/id"
	"tillsync/internal/core/security"
	"tillsync/internal/core/tx"
	"tillsync/internal/domain"
	"tillsync/internal/domain/cashday"
	"tillsync/internal/domain/ledger"
	"tillsync/internal/reconcile"
	"tillsync/pkg/logger"
)

// Deps are shared by every session of the process.
type Deps struct {
	Docs      reconcile.Documents
	Outbox    reconcile.Outbox
	TxManager tx.Manager

	// Remote is nil in local-only mode.
	Remote reconcile.RemoteStore
	// Feed delivers remote changes while a session is active. Optional.
	Feed   reconcile.ChangeFeed
	Clock  clock.Clock
	Audit  domain.Auditor
	Tokens *security.TokenService
	PIN    cashday.PINVerifier
	Logger *logger.Logger
}

// Config tunes the services built for each session.
type Config struct {
	DeviceID          string
	ShopID            string
	RemoteTimeout     time.Duration
	Location          *time.Location
	EditWindow        time.Duration
	DisplayEditWindow time.Duration
	PhoneRegion       string

	// Background runs the probe/drain monitor and the change feed for
	// each session. The CLI leaves it off.
	Background    bool
	ProbeInterval time.Duration
	DrainInterval time.Duration
}

// Session is one authenticated till session.
type Session struct {
	ID        string
	Actor     appctx.Actor
	Token     string
	ExpiresAt time.Time
	StartedAt time.Time

	Engine  *reconcile.Engine
	Ledger  *ledger.Service
	CashDay *cashday.Machine

	// AutoClosed lists the stale days closed when the session started.
	AutoClosed []string

	ended   atomic.Bool
	workers *workers
}

var errNoTokens = errors.New("session token service is not configured")

// live reports whether the session may still talk to the remote.
func (s *Session) live(now time.Time) bool {
	if s.ended.Load() {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Context returns ctx carrying the session actor.
func (s *Session) Context(ctx context.Context) context.Context {
	actor := s.Actor
	return appctx.WithActor(ctx, &actor)
}

// Manager holds the single active session of this till.
type Manager struct {
	deps Deps
	cfg  Config
	log  *logger.Logger

	mu      sync.RWMutex
	current *Session
}

// NewManager creates a manager with no active session.
func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Manager{deps: deps, cfg: cfg, log: deps.Logger.WithComponent("session")}
}

// LoginInput identifies the cashier starting a session. PIN is the
// manager PIN and only checked for the manager role.
type LoginInput struct {
	UserID string
	Name   string
	Role   string
	PIN    string
}

// Login starts a session, replacing any active one. It closes stale cash
// days and drains the outbox before returning. Neither failing remotely
// fails the login.
func (m *Manager) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if in.UserID == "" {
		return nil, apperror.NewValidation("user id is required").WithDetail("field", "user_id")
	}
	if in.Role != appctx.RoleCashier && in.Role != appctx.RoleManager {
		return nil, apperror.NewValidation("unknown role").WithDetail("role", in.Role)
	}
	if m.deps.Tokens == nil {
		return nil, apperror.NewInternal(errNoTokens)
	}
	if in.Role == appctx.RoleManager && m.deps.PIN != nil {
		if err := m.deps.PIN.Verify(in.PIN); err != nil {
			m.log.WithContext(ctx).Warnw("manager login refused", "user_id", in.UserID)
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.teardown(ctx, m.current)
	}

	actor := appctx.Actor{
		UserID:    in.UserID,
		Name:      in.Name,
		Role:      in.Role,
		DeviceID:  m.cfg.DeviceID,
		ShopID:    m.cfg.ShopID,
		SessionID: id.New(),
	}
	token, expiresAt, err := m.deps.Tokens.Issue(actor)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	sess := m.build(actor)
	sess.Token = token
	sess.ExpiresAt = expiresAt
	ctx = sess.Context(ctx)
	log := m.log.WithContext(ctx)

	if m.deps.Remote != nil {
		if err := sess.Engine.Probe(ctx); err != nil {
			log.Warnw("remote unreachable at login; working offline", "error", err)
		}
	}

	closed, err := sess.CashDay.AutoCloseStaleOpenSessions(ctx)
	if err != nil {
		sess.Engine.Close()
		return nil, err
	}
	for _, r := range closed {
		sess.AutoClosed = append(sess.AutoClosed, r.BusinessDate)
	}

	if sess.Engine.Online() {
		if n, err := sess.Engine.DrainOutbox(ctx); err != nil {
			log.Warnw("outbox not drained at login", "error", err)
		} else if n > 0 {
			log.Infow("outbox drained at login", "sent", n)
		}
	}

	m.current = sess
	m.startWorkers(sess)
	log.Infow("session started",
		"session_id", actor.SessionID,
		"role", actor.Role,
		"auto_closed", len(sess.AutoClosed))
	return sess, nil
}

func (m *Manager) build(actor appctx.Actor) *Session {
	guards := map[entity.Collection]entity.DeleteGuard{}
	for c, g := range ledger.DeleteGuards() {
		guards[c] = g
	}
	for c, g := range cashday.DeleteGuards() {
		guards[c] = g
	}

	sess := &Session{Actor: actor, ID: actor.SessionID, StartedAt: m.deps.Clock.Now()}
	engine := reconcile.New(reconcile.Deps{
		Docs:      m.deps.Docs,
		Outbox:    m.deps.Outbox,
		TxManager: m.deps.TxManager,
		Remote:    m.deps.Remote,
		Clock:     m.deps.Clock,
		Logger:    m.deps.Logger,
	}, reconcile.Config{
		RemoteTimeout: m.cfg.RemoteTimeout,
		DeleteGuards:  guards,
		Authenticated: func() bool { return sess.live(m.deps.Clock.Now()) },
	})

	var policy *security.EditPolicy
	if m.cfg.EditWindow > 0 {
		policy = security.NewEditPolicy(m.cfg.EditWindow, m.cfg.DisplayEditWindow, m.deps.Clock.Now)
	}
	sess.Engine = engine
	sess.Ledger = ledger.New(engine, ledger.Config{
		Policy:      policy,
		Audit:       m.deps.Audit,
		PhoneRegion: m.cfg.PhoneRegion,
		Logger:      m.deps.Logger,
	})
	sess.CashDay = cashday.New(engine, sess.Ledger, cashday.Config{
		Location: m.cfg.Location,
		PIN:      m.deps.PIN,
		Audit:    m.deps.Audit,
		Logger:   m.deps.Logger,
	})
	return sess
}

// Logout ends the active session. Pending outbox entries stay queued for
// the next session.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return apperror.NewUnauthorized("no active session")
	}
	m.teardown(ctx, m.current)
	return nil
}

func (m *Manager) teardown(ctx context.Context, s *Session) {
	s.ended.Store(true)
	s.workers.stop()
	s.Engine.Close()
	s.Engine.Hydration().Reset()
	m.current = nil
	m.log.WithContext(ctx).Infow("session ended", "session_id", s.ID, "user_id", s.Actor.UserID)
}

// Current returns the active session or UNAUTHORIZED.
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, apperror.NewUnauthorized("no active session")
	}
	if !m.current.live(m.deps.Clock.Now()) {
		return nil, apperror.NewUnauthorized("session expired")
	}
	return m.current, nil
}

// Engine returns the engine of the active session.
func (m *Manager) Engine() (*reconcile.Engine, error) {
	s, err := m.Current()
	if err != nil {
		return nil, err
	}
	return s.Engine, nil
}

// Authenticated reports whether a live session exists.
func (m *Manager) Authenticated() bool {
	_, err := m.Current()
	return err == nil
}

// Authenticate validates a bearer token against the active session.
func (m *Manager) Authenticate(token string) (*Session, error) {
	if m.deps.Tokens == nil {
		return nil, apperror.NewInternal(errNoTokens)
	}
	actor, _, err := m.deps.Tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	s, err := m.Current()
	if err != nil {
		return nil, err
	}
	if actor.SessionID != s.ID {
		return nil, apperror.NewUnauthorized("session has ended")
	}
	return s, nil
}
