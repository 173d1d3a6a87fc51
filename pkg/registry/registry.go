// Package registry loads survey definitions on demand and serves
// immutable, shared instances keyed by survey id.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/switchback-sms/switchback/internal/logging"
	"github.com/switchback-sms/switchback/internal/validator"
	"github.com/switchback-sms/switchback/pkg/ports"
	"github.com/switchback-sms/switchback/pkg/schema"
)

// ErrDefinitionInvalid marks a survey that failed parsing or structural
// validation. It is non-retryable: the survey must not be served until the
// document is fixed.
var ErrDefinitionInvalid = errors.New("survey definition invalid")

// InvalidDefinitionError wraps the underlying parse or structure failure.
type InvalidDefinitionError struct {
	SurveyID string
	Err      error
}

func (e *InvalidDefinitionError) Error() string {
	return "survey definition invalid: " + e.Err.Error()
}

func (e *InvalidDefinitionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDefinitionInvalid) succeed.
func (e *InvalidDefinitionError) Is(target error) bool {
	return target == ErrDefinitionInvalid
}

// Registry memoizes parsed and structurally validated definitions.
// Definitions are immutable, so cached instances are shared across
// arbitrary concurrent readers without locking. Concurrent first loads of
// the same id are idempotent: both parse, one wins the cache slot, and the
// instances are equivalent either way. Failures are never cached, so a
// fixed document is picked up on the next load.
type Registry struct {
	source ports.DefinitionSource
	logger *slog.Logger

	mu   sync.RWMutex
	defs map[string]*schema.Definition
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the logger used for load events and graph warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New creates a registry backed by the given document source.
func New(source ports.DefinitionSource, opts ...Option) *Registry {
	r := &Registry{
		source: source,
		logger: logging.NewNop(),
		defs:   make(map[string]*schema.Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load returns the definition for surveyID, parsing and validating it on
// first access. Returns domain.ErrSurveyNotFound for unknown ids and an
// error matching ErrDefinitionInvalid for broken documents.
func (r *Registry) Load(surveyID string) (*schema.Definition, error) {
	r.mu.RLock()
	def, ok := r.defs[surveyID]
	r.mu.RUnlock()
	if ok {
		return def, nil
	}

	raw, err := r.source.Read(surveyID)
	if err != nil {
		return nil, err
	}

	def, err = schema.Parse(raw)
	if err != nil {
		r.logger.Error("survey failed field validation", "survey_id", surveyID, "err", err)
		return nil, &InvalidDefinitionError{SurveyID: surveyID, Err: err}
	}

	warnings, err := validator.ValidateGraph(def)
	if err != nil {
		r.logger.Error("survey failed structural validation", "survey_id", surveyID, "err", err)
		return nil, &InvalidDefinitionError{SurveyID: surveyID, Err: err}
	}
	for _, w := range warnings {
		r.logger.Warn("survey graph warning", "survey_id", surveyID, "warning", w)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.defs[surveyID]; ok {
		// Lost the race to a concurrent load; keep the first instance.
		return cached, nil
	}
	r.defs[surveyID] = def
	r.logger.Info("survey loaded", "survey_id", surveyID, "version", def.Metadata.Version, "steps", len(def.Steps))
	return def, nil
}

// IDs lists every survey id the source can serve.
func (r *Registry) IDs() ([]string, error) {
	return r.source.IDs()
}

// Invalidate drops one cached definition, forcing a reload on next access.
func (r *Registry) Invalidate(surveyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, surveyID)
}

// Reset drops the whole cache. Useful when documents change at runtime.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]*schema.Definition)
}
