// Package redis implements the persistence ports on Redis, plus a SET NX
// based distributed lock for multi-replica deployments.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/switchback-sms/switchback/pkg/domain"
)

// Store implements ports.SessionStore, ports.ResponseStore, and
// ports.OptOutStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets an expiration on session keys. Completed or abandoned
// sessions then age out without an explicit purge job.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "switchback:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *Store) activeKey(subjectHash, surveyID string) string {
	return s.prefix + "active:" + subjectHash + ":" + surveyID
}
func (s *Store) responsesKey(sessionID string) string { return s.prefix + "responses:" + sessionID }
func (s *Store) optoutKey(subjectHash string) string  { return s.prefix + "optout:" + subjectHash }

// Save persists the session and keeps the active-session index in step:
// an open session claims the subject+survey slot, a completed one clears
// it if it is the current holder.
func (s *Store) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	active := s.activeKey(session.SubjectHash, session.SurveyID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(session.ID), data, s.ttl)
	if session.Active() {
		pipe.Set(ctx, active, session.ID, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session to redis: %w", err)
	}

	if !session.Active() {
		holder, err := s.client.Get(ctx, active).Result()
		if err == nil && holder == session.ID {
			if err := s.client.Del(ctx, active).Err(); err != nil {
				return fmt.Errorf("clear active index: %w", err)
			}
		}
	}
	return nil
}

// Find retrieves a session by id.
func (s *Store) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session from redis: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// FindActive resolves the active-session index for subject+survey.
func (s *Store) FindActive(ctx context.Context, subjectHash, surveyID string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, s.activeKey(subjectHash, surveyID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get active index from redis: %w", err)
	}
	session, err := s.Find(ctx, id)
	if err == domain.ErrSessionNotFound {
		// Index outlived the session key (TTL skew); treat as no session.
		return nil, domain.ErrSessionNotFound
	}
	return session, err
}

// Delete removes the session, its response log, and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	session, err := s.Find(ctx, sessionID)
	if err == domain.ErrSessionNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	pipe.Del(ctx, s.responsesKey(sessionID))
	if session.Active() {
		pipe.Del(ctx, s.activeKey(session.SubjectHash, session.SurveyID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Append pushes a response record onto the session's log.
func (s *Store) Append(ctx context.Context, record domain.ResponseRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal response record: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.responsesKey(record.SessionID), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.responsesKey(record.SessionID), s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// BySession returns the session's records in arrival order.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error) {
	vals, err := s.client.LRange(ctx, s.responsesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list responses from redis: %w", err)
	}
	records := make([]domain.ResponseRecord, 0, len(vals))
	for _, v := range vals {
		var rec domain.ResponseRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal response record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// AddOptOut records an opt-out. Opt-outs never expire on their own.
func (s *Store) AddOptOut(ctx context.Context, subjectHash, keyword string) error {
	payload := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), keyword)
	return s.client.Set(ctx, s.optoutKey(subjectHash), payload, 0).Err()
}

// RemoveOptOut reverses an opt-out.
func (s *Store) RemoveOptOut(ctx context.Context, subjectHash string) (bool, error) {
	n, err := s.client.Del(ctx, s.optoutKey(subjectHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsOptedOut reports whether the subject is opted out.
func (s *Store) IsOptedOut(ctx context.Context, subjectHash string) (bool, error) {
	n, err := s.client.Exists(ctx, s.optoutKey(subjectHash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
