// Package session serializes access to survey sessions. One subject
// answering one survey is a single conversation; the manager guarantees
// that replies for it are processed one at a time even when the carrier
// delivers webhooks concurrently.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/switchback-sms/switchback/internal/logging"
	"github.com/switchback-sms/switchback/pkg/domain"
	"github.com/switchback-sms/switchback/pkg/ports"
	"github.com/switchback-sms/switchback/pkg/schema"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager mediates session lookup and creation under a per-conversation
// lock. Lock entries are reference counted and garbage collected when the
// last holder releases them, so the map stays proportional to in-flight
// conversations rather than to total subjects seen.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	logger *slog.Logger
	clock  func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking for multi-replica deployments.
// The in-process mutex still applies; the distributed lock extends it
// across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) { m.locker = locker }
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// NewManager creates a session manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func conversationKey(subjectHash, surveyID string) string {
	return subjectHash + ":" + surveyID
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Begin starts a fresh session for the subject at the survey's consent
// gate. Any session still open for the pair is closed first, so the
// invariant of at most one active session per subject+survey holds.
func (m *Manager) Begin(ctx context.Context, subjectHash string, def *schema.Definition) (*domain.Session, error) {
	var session *domain.Session
	err := m.withLock(ctx, conversationKey(subjectHash, def.Metadata.ID), func(ctx context.Context) error {
		now := m.clock()

		existing, err := m.store.FindActive(ctx, subjectHash, def.Metadata.ID)
		if err != nil && err != domain.ErrSessionNotFound {
			return fmt.Errorf("check for active session: %w", err)
		}
		if err == nil {
			existing.MarkCompleted(now)
			if err := m.store.Save(ctx, existing); err != nil {
				return fmt.Errorf("supersede active session: %w", err)
			}
			m.logger.Info("superseded active session",
				"survey_id", def.Metadata.ID, "session_id", existing.ID)
		}

		session = domain.NewSession(subjectHash, def.Metadata.ID, def.Metadata.Version, def.Consent.StepID)
		if err := m.store.Save(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	return session, err
}

// WithActive runs fn while holding the conversation lock, with the
// subject's open session loaded. Sessions idle past timeout are closed
// and reported as domain.ErrSessionNotFound, so an abandoned conversation
// never resumes mid-survey weeks later.
func (m *Manager) WithActive(ctx context.Context, subjectHash, surveyID string, timeout time.Duration, fn func(context.Context, *domain.Session) error) error {
	return m.withLock(ctx, conversationKey(subjectHash, surveyID), func(ctx context.Context) error {
		session, err := m.store.FindActive(ctx, subjectHash, surveyID)
		if err != nil {
			return err
		}
		if session.Expired(m.clock(), timeout) {
			session.MarkCompleted(m.clock())
			if err := m.store.Save(ctx, session); err != nil {
				return fmt.Errorf("expire stale session: %w", err)
			}
			m.logger.Info("expired stale session", "survey_id", surveyID, "session_id", session.ID)
			return domain.ErrSessionNotFound
		}
		return fn(ctx, session)
	})
}

// Find retrieves a session by id without taking the conversation lock.
func (m *Manager) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.store.Find(ctx, sessionID)
}

// withLock executes fn while holding the conversation lock, and the
// distributed lock when one is configured.
func (m *Manager) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, 30*time.Second)
		if err != nil {
			return fmt.Errorf("acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock, will expire via TTL",
					"key", key, "err", err)
			}
		}()
	}

	return fn(ctx)
}
