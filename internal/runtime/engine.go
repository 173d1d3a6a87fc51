// Package runtime drives conversations: it validates replies, applies
// them to session state, resolves branching, and renders the next
// message. All state transitions go through Engine.Advance.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/switchback-sms/switchback/internal/logging"
	"github.com/switchback-sms/switchback/pkg/domain"
	"github.com/switchback-sms/switchback/pkg/ports"
	"github.com/switchback-sms/switchback/pkg/registry"
	"github.com/switchback-sms/switchback/pkg/schema"
)

// consentStepID labels response records taken at the consent gate, which
// is not a graph step and has no id of its own.
const consentStepID = "consent"

// Reply is what the engine wants sent back to the subject.
type Reply struct {
	Text string
	// Done reports that the session is now complete and the subject
	// should not be prompted again.
	Done bool
}

// Engine orchestrates one conversational transition at a time.
//
// Advance works on a clone of the session and publishes state only after
// every write succeeds, so a failed transition leaves the caller's session
// exactly as it was.
type Engine struct {
	registry  *registry.Registry
	sessions  ports.SessionStore
	responses ports.ResponseStore
	logger    *slog.Logger
	clock     func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source. Tests use this to make retry and
// completion timestamps deterministic.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New creates an engine over the given registry and stores.
func New(reg *registry.Registry, sessions ports.SessionStore, responses ports.ResponseStore, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		sessions:  sessions,
		responses: responses,
		logger:    logging.NewNop(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prompt returns the message the subject should currently be shown: the
// consent text before consent, otherwise the rendered current step.
func (e *Engine) Prompt(ctx context.Context, session *domain.Session) (string, error) {
	def, err := e.registry.Load(session.SurveyID)
	if err != nil {
		return "", &domain.EngineError{SurveyID: session.SurveyID, Err: err}
	}
	if !session.ConsentGiven {
		return def.Consent.Text, nil
	}
	step := def.Step(session.CurrentStepID)
	if step == nil {
		return "", &domain.EngineError{SurveyID: session.SurveyID, StepID: session.CurrentStepID,
			Err: fmt.Errorf("session references unknown step")}
	}
	text, err := Render(step.ID, step.Text, session.Context)
	if err != nil {
		return "", &domain.EngineError{SurveyID: session.SurveyID, StepID: step.ID, Err: err}
	}
	return text, nil
}

// Advance processes one inbound reply and returns the outbound message.
//
// The transition happens on a clone; the caller's session is updated and
// response records are appended only when the whole transition, including
// persistence, succeeds.
func (e *Engine) Advance(ctx context.Context, session *domain.Session, raw string) (Reply, error) {
	def, err := e.registry.Load(session.SurveyID)
	if err != nil {
		return Reply{}, &domain.EngineError{SurveyID: session.SurveyID, Err: err}
	}

	if !session.Active() {
		return Reply{Done: true}, nil
	}

	work := session.Clone()
	now := e.clock()

	var reply Reply
	var pending []domain.ResponseRecord

	if !work.ConsentGiven {
		reply, pending, err = e.advanceConsent(def, work, raw, now)
		if err != nil {
			return Reply{}, err
		}
	} else {
		reply, pending, err = e.advanceStep(def, work, raw, now)
		if err != nil {
			return Reply{}, err
		}
	}

	if err := e.commit(ctx, session, work, pending); err != nil {
		return Reply{}, &domain.EngineError{SurveyID: session.SurveyID, StepID: session.CurrentStepID, Err: err}
	}
	return reply, nil
}

// Stored values for the synthetic consent records. The subject's words
// vary by survey; the recorded decision does not.
const (
	consentAccepted = "accepted"
	consentDeclined = "declined"
)

// advanceConsent handles the gate. Unrecognized replies count against the
// retry counter but re-send the consent prompt without limit; the skip
// rule applies to questions, not to the decision whether to participate
// at all.
func (e *Engine) advanceConsent(def *schema.Definition, work *domain.Session, raw string, now time.Time) (Reply, []domain.ResponseRecord, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))

	switch {
	case def.Consent.Accepts(normalized):
		work.GiveConsent(now)
		stored := consentAccepted
		record := domain.NewResponseRecord(work.ID, consentStepID, raw, &stored, true)

		// The session was created pointing at the survey's first step;
		// consent unlocks it.
		step := def.Step(work.CurrentStepID)
		text, err := Render(step.ID, step.Text, work.Context)
		if err != nil {
			return Reply{}, nil, &domain.EngineError{SurveyID: def.Metadata.ID, StepID: step.ID, Err: err}
		}
		if step.Terminal() {
			work.MarkCompleted(now)
			return Reply{Text: text, Done: true}, []domain.ResponseRecord{record}, nil
		}
		return Reply{Text: text}, []domain.ResponseRecord{record}, nil

	case def.Consent.Declines(normalized):
		work.MarkCompleted(now)
		stored := consentDeclined
		record := domain.NewResponseRecord(work.ID, consentStepID, raw, &stored, true)
		return Reply{Text: def.Consent.DeclineMessage, Done: true}, []domain.ResponseRecord{record}, nil

	default:
		work.IncrementRetry(now)
		record := domain.NewResponseRecord(work.ID, consentStepID, raw, nil, false)
		return Reply{Text: def.Consent.Text}, []domain.ResponseRecord{record}, nil
	}
}

func (e *Engine) advanceStep(def *schema.Definition, work *domain.Session, raw string, now time.Time) (Reply, []domain.ResponseRecord, error) {
	step := def.Step(work.CurrentStepID)
	if step == nil {
		return Reply{}, nil, &domain.EngineError{SurveyID: def.Metadata.ID, StepID: work.CurrentStepID,
			Err: fmt.Errorf("session references unknown step")}
	}
	if step.Terminal() {
		// Reaching a terminal completes the session in the same transition,
		// so an active session parked on one means a prior commit raced.
		// Close it out instead of looping forever.
		work.MarkCompleted(now)
		return Reply{Done: true}, nil, nil
	}

	verdict := ValidateInput(step, raw)

	if !verdict.Valid {
		record := domain.NewResponseRecord(work.ID, step.ID, raw, nil, false)
		work.IncrementRetry(now)
		if work.RetryCount <= def.Settings.MaxRetryAttempts {
			return Reply{Text: verdict.ErrorMessage}, []domain.ResponseRecord{record}, nil
		}

		// Retry budget exhausted: skip the question, leave its answer
		// uncollected, and move on so the conversation is never stuck.
		e.logger.Info("retry budget exhausted, skipping step",
			"survey_id", def.Metadata.ID, "step_id", step.ID, "retries", work.RetryCount)
		reply, err := e.moveTo(def, work, step, now)
		if err != nil {
			return Reply{}, nil, err
		}
		reply.Text = def.Settings.RetryExceededMessage + "\n\n" + reply.Text
		return reply, []domain.ResponseRecord{record}, nil
	}

	stored := verdict.StoredValue
	record := domain.NewResponseRecord(work.ID, step.ID, raw, &stored, true)
	if step.StoreAs != "" {
		work.SetContext(step.StoreAs, stored)
	}

	reply, err := e.moveTo(def, work, step, now)
	if err != nil {
		return Reply{}, nil, err
	}
	return reply, []domain.ResponseRecord{record}, nil
}

// moveTo resolves the step after from, advances the session, and renders
// the new prompt. Landing on a terminal completes the session.
func (e *Engine) moveTo(def *schema.Definition, work *domain.Session, from *schema.Step, now time.Time) (Reply, error) {
	nextID, err := ResolveNext(from, work.Context, e.logger)
	if err != nil {
		return Reply{}, &domain.EngineError{SurveyID: def.Metadata.ID, StepID: from.ID, Err: err}
	}

	next := def.Step(nextID)
	text, err := Render(next.ID, next.Text, work.Context)
	if err != nil {
		return Reply{}, &domain.EngineError{SurveyID: def.Metadata.ID, StepID: next.ID, Err: err}
	}

	work.AdvanceStep(nextID, now)
	if next.Terminal() {
		work.MarkCompleted(now)
		return Reply{Text: text, Done: true}, nil
	}
	return Reply{Text: text}, nil
}

// commit persists the transition and only then publishes it to the
// caller's session pointer.
func (e *Engine) commit(ctx context.Context, session, work *domain.Session, pending []domain.ResponseRecord) error {
	for _, record := range pending {
		if err := e.responses.Append(ctx, record); err != nil {
			return fmt.Errorf("append response record: %w", err)
		}
	}
	if err := e.sessions.Save(ctx, work); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	*session = *work
	return nil
}
