// Package switchback is the high-level entry point for the survey
// engine. It wires the registry, session manager, and conversation
// runtime behind a small API; transports (the SMS webhook, the CLI)
// build on this package rather than on the internals directly.
package switchback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/switchback-sms/switchback/internal/logging"
	"github.com/switchback-sms/switchback/internal/runtime"
	"github.com/switchback-sms/switchback/internal/validator"
	"github.com/switchback-sms/switchback/pkg/adapters/memory"
	"github.com/switchback-sms/switchback/pkg/adapters/surveyfs"
	"github.com/switchback-sms/switchback/pkg/domain"
	"github.com/switchback-sms/switchback/pkg/ports"
	"github.com/switchback-sms/switchback/pkg/registry"
	"github.com/switchback-sms/switchback/pkg/schema"
	"github.com/switchback-sms/switchback/pkg/session"
)

// Engine runs conversational surveys end to end: it loads definitions,
// manages one session per subject per survey, and advances conversations
// one inbound message at a time.
type Engine struct {
	source    ports.DefinitionSource
	sessions  ports.SessionStore
	responses ports.ResponseStore
	locker    ports.DistributedLocker
	logger    *slog.Logger

	registry *registry.Registry
	manager  *session.Manager
	runtime  *runtime.Engine
}

// Option configures the Engine.
type Option func(*Engine)

// WithSource injects a custom definition source, bypassing the default
// filesystem directory.
func WithSource(source ports.DefinitionSource) Option {
	return func(e *Engine) { e.source = source }
}

// WithSessionStore sets the session persistence backend.
func WithSessionStore(store ports.SessionStore) Option {
	return func(e *Engine) { e.sessions = store }
}

// WithResponseStore sets the response log backend.
func WithResponseStore(store ports.ResponseStore) Option {
	return func(e *Engine) { e.responses = store }
}

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithLogger sets a structured logger for the whole engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New initializes an engine. By default definitions come from YAML files
// under surveysDir and state lives in process memory; production callers
// override the stores via options.
func New(surveysDir string, opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}

	if e.source == nil {
		if surveysDir == "" {
			return nil, fmt.Errorf("surveysDir is required when no custom source is provided")
		}
		e.source = surveyfs.New(surveysDir)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.sessions == nil || e.responses == nil {
		store := memory.NewStore()
		if e.sessions == nil {
			e.sessions = store
		}
		if e.responses == nil {
			e.responses = store
		}
	}

	e.registry = registry.New(e.source, registry.WithLogger(e.logger))

	managerOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(e.locker))
	}
	e.manager = session.NewManager(e.sessions, managerOpts...)

	e.runtime = runtime.New(e.registry, e.sessions, e.responses, runtime.WithLogger(e.logger))
	return e, nil
}

// Start begins a new session for the subject, superseding any open one,
// and returns the session together with the consent prompt to send.
func (e *Engine) Start(ctx context.Context, subjectHash, surveyID string) (*domain.Session, string, error) {
	def, err := e.registry.Load(surveyID)
	if err != nil {
		return nil, "", err
	}
	sess, err := e.manager.Begin(ctx, subjectHash, def)
	if err != nil {
		return nil, "", err
	}
	return sess, def.Consent.Text, nil
}

// Advance applies one inbound message to the subject's open session for
// the survey. Returns domain.ErrSessionNotFound when there is none.
func (e *Engine) Advance(ctx context.Context, subjectHash, surveyID, input string) (runtime.Reply, error) {
	def, err := e.registry.Load(surveyID)
	if err != nil {
		return runtime.Reply{}, err
	}
	var reply runtime.Reply
	err = e.manager.WithActive(ctx, subjectHash, surveyID, def.Settings.Timeout(),
		func(ctx context.Context, sess *domain.Session) error {
			var err error
			reply, err = e.runtime.Advance(ctx, sess, input)
			return err
		})
	return reply, err
}

// Prompt returns the message a session's subject should currently see.
func (e *Engine) Prompt(ctx context.Context, sess *domain.Session) (string, error) {
	return e.runtime.Prompt(ctx, sess)
}

// Responses returns a session's append-only response log.
func (e *Engine) Responses(ctx context.Context, sessionID string) ([]domain.ResponseRecord, error) {
	return e.responses.BySession(ctx, sessionID)
}

// Surveys lists the ids the engine can serve.
func (e *Engine) Surveys() ([]string, error) {
	return e.registry.IDs()
}

// Load returns the parsed, validated definition for a survey id.
func (e *Engine) Load(surveyID string) (*schema.Definition, error) {
	return e.registry.Load(surveyID)
}

// Registry exposes the definition cache, mainly for transports.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Manager exposes the session manager, mainly for transports.
func (e *Engine) Manager() *session.Manager { return e.manager }

// Runtime exposes the conversation runtime, mainly for transports.
func (e *Engine) Runtime() *runtime.Engine { return e.runtime }

// ValidateDocument parses and structurally checks a raw survey document
// without caching it. It returns graph warnings even on success.
func ValidateDocument(raw []byte) ([]string, error) {
	def, err := schema.Parse(raw)
	if err != nil {
		return nil, err
	}
	return validator.ValidateGraph(def)
}
