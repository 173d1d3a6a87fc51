// Package postgres implements the persistence ports on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/switchback-sms/switchback/pkg/domain"
)

// Store implements ports.SessionStore, ports.ResponseStore, and
// ports.OptOutStore on a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL, verifies the connection, and ensures the
// schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an existing database handle without migrating.
func NewFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	subject_hash TEXT NOT NULL,
	survey_id TEXT NOT NULL,
	survey_version TEXT NOT NULL,
	current_step_id TEXT NOT NULL,
	consent_given BOOLEAN NOT NULL DEFAULT FALSE,
	consent_requested_at TIMESTAMPTZ NOT NULL,
	consent_given_at TIMESTAMPTZ,
	retry_count INTEGER NOT NULL DEFAULT 0,
	context JSONB NOT NULL DEFAULT '{}',
	started_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sessions_active
	ON sessions (subject_hash, survey_id) WHERE completed_at IS NULL;

CREATE TABLE IF NOT EXISTS responses (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	step_id TEXT NOT NULL,
	raw_text TEXT NOT NULL,
	stored_value TEXT,
	valid BOOLEAN NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_responses_session ON responses (session_id, received_at);

CREATE TABLE IF NOT EXISTS opt_outs (
	subject_hash TEXT PRIMARY KEY,
	keyword TEXT NOT NULL,
	opted_out_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Save upserts the full session row.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	contextJSON, err := json.Marshal(session.Context)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}
	const query = `
INSERT INTO sessions (
	id, subject_hash, survey_id, survey_version, current_step_id,
	consent_given, consent_requested_at, consent_given_at,
	retry_count, context, started_at, updated_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	current_step_id = EXCLUDED.current_step_id,
	consent_given = EXCLUDED.consent_given,
	consent_given_at = EXCLUDED.consent_given_at,
	retry_count = EXCLUDED.retry_count,
	context = EXCLUDED.context,
	updated_at = EXCLUDED.updated_at,
	completed_at = EXCLUDED.completed_at`
	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.SubjectHash, session.SurveyID, session.SurveyVersion,
		session.CurrentStepID, session.ConsentGiven, session.ConsentRequestedAt,
		session.ConsentGivenAt, session.RetryCount, contextJSON,
		session.StartedAt, session.UpdatedAt, session.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Find retrieves a session by id.
func (s *Store) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	const query = sessionColumns + ` WHERE id = $1`
	return s.scanSession(s.db.QueryRowContext(ctx, query, sessionID))
}

// FindActive returns the open session for a subject+survey pair. The
// partial index keeps this lookup cheap even as completed sessions pile up.
func (s *Store) FindActive(ctx context.Context, subjectHash, surveyID string) (*domain.Session, error) {
	const query = sessionColumns + `
 WHERE subject_hash = $1 AND survey_id = $2 AND completed_at IS NULL
 ORDER BY started_at DESC LIMIT 1`
	return s.scanSession(s.db.QueryRowContext(ctx, query, subjectHash, surveyID))
}

// Delete removes a session; responses cascade.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

const sessionColumns = `
SELECT id, subject_hash, survey_id, survey_version, current_step_id,
	consent_given, consent_requested_at, consent_given_at,
	retry_count, context, started_at, updated_at, completed_at
FROM sessions`

func (s *Store) scanSession(row *sql.Row) (*domain.Session, error) {
	var (
		session     domain.Session
		contextJSON []byte
	)
	err := row.Scan(
		&session.ID, &session.SubjectHash, &session.SurveyID, &session.SurveyVersion,
		&session.CurrentStepID, &session.ConsentGiven, &session.ConsentRequestedAt,
		&session.ConsentGivenAt, &session.RetryCount, &contextJSON,
		&session.StartedAt, &session.UpdatedAt, &session.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &session.Context); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}
	return &session, nil
}

// Append writes one immutable response record.
func (s *Store) Append(ctx context.Context, record domain.ResponseRecord) error {
	const query = `
INSERT INTO responses (id, session_id, step_id, raw_text, stored_value, valid, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.SessionID, record.StepID, record.RawText,
		record.StoredValue, record.Valid, record.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	return nil
}

// BySession returns a session's records in arrival order.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error) {
	const query = `
SELECT id, session_id, step_id, raw_text, stored_value, valid, received_at
FROM responses WHERE session_id = $1 ORDER BY received_at`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var records []domain.ResponseRecord
	for rows.Next() {
		var rec domain.ResponseRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StepID, &rec.RawText,
			&rec.StoredValue, &rec.Valid, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AddOptOut records an opt-out, refreshing the timestamp on repeats.
func (s *Store) AddOptOut(ctx context.Context, subjectHash, keyword string) error {
	const query = `
INSERT INTO opt_outs (subject_hash, keyword, opted_out_at) VALUES ($1,$2,$3)
ON CONFLICT (subject_hash) DO UPDATE SET keyword = EXCLUDED.keyword, opted_out_at = EXCLUDED.opted_out_at`
	_, err := s.db.ExecContext(ctx, query, subjectHash, keyword, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add opt-out: %w", err)
	}
	return nil
}

// RemoveOptOut reverses an opt-out.
func (s *Store) RemoveOptOut(ctx context.Context, subjectHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM opt_outs WHERE subject_hash = $1`, subjectHash)
	if err != nil {
		return false, fmt.Errorf("remove opt-out: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsOptedOut reports whether the subject is opted out.
func (s *Store) IsOptedOut(ctx context.Context, subjectHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM opt_outs WHERE subject_hash = $1)`, subjectHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check opt-out: %w", err)
	}
	return exists, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
