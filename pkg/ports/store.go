package ports

import (
	"context"

	"github.com/switchback-sms/switchback/pkg/domain"
)

// SessionStore persists survey sessions.
type SessionStore interface {
	// Save writes the full session record atomically, replacing any prior
	// version. The engine computes a complete new record per transition, so
	// stores never see partial field updates.
	Save(ctx context.Context, session *domain.Session) error

	// Find retrieves a session by its id.
	// Returns domain.ErrSessionNotFound if it does not exist.
	Find(ctx context.Context, sessionID string) (*domain.Session, error)

	// FindActive returns the session for subjectHash+surveyID whose
	// CompletedAt is still nil, or domain.ErrSessionNotFound.
	FindActive(ctx context.Context, subjectHash, surveyID string) (*domain.Session, error)

	// Delete removes a session and, by cascade, its response records.
	Delete(ctx context.Context, sessionID string) error
}

// ResponseStore is the append-only log of processed replies.
type ResponseStore interface {
	// Append writes one record. Records are immutable once written.
	Append(ctx context.Context, record domain.ResponseRecord) error

	// BySession returns a session's records in arrival order.
	BySession(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error)
}

// OptOutStore tracks subjects who asked to stop receiving messages.
type OptOutStore interface {
	// AddOptOut records an opt-out, updating the timestamp if one exists.
	AddOptOut(ctx context.Context, subjectHash, keyword string) error

	// RemoveOptOut reverses an opt-out. Returns true if one was removed.
	RemoveOptOut(ctx context.Context, subjectHash string) (bool, error)

	// IsOptedOut reports whether the subject is currently opted out.
	IsOptedOut(ctx context.Context, subjectHash string) (bool, error)
}
