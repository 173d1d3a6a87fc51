// Package http exposes the SMS webhook and a small operational API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/switchback-sms/switchback/internal/hash"
	"github.com/switchback-sms/switchback/internal/logging"
	"github.com/switchback-sms/switchback/internal/runtime"
	"github.com/switchback-sms/switchback/pkg/domain"
	"github.com/switchback-sms/switchback/pkg/ports"
	"github.com/switchback-sms/switchback/pkg/registry"
	"github.com/switchback-sms/switchback/pkg/schema"
	"github.com/switchback-sms/switchback/pkg/session"
)

// Carrier-level keywords honored regardless of survey state.
var optOutKeywords = map[string]bool{
	"stop":        true,
	"stopall":     true,
	"unsubscribe": true,
	"cancel":      true,
	"end":         true,
	"quit":        true,
}

const (
	optInKeyword = "start"

	optOutConfirmation = "You have been unsubscribed and will receive no more messages. Reply START to opt back in."
	optInConfirmation  = "You are resubscribed. Text a survey's start word to begin."
	apologyMessage     = "Sorry, something went wrong on our end. Please try again in a moment."
)

// Server handles inbound SMS webhooks and the operational API.
type Server struct {
	registry *registry.Registry
	manager  *session.Manager
	engine   *runtime.Engine
	hasher   *hash.Hasher
	optOuts  ports.OptOutStore
	logger   *slog.Logger
	metrics  *metrics

	defaultSurveyID string
	authToken       string
	publicURL       string
	validateSig     bool
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDefaultSurvey routes messages from subjects with no active session
// and no matching start word into the given survey's start-word check.
func WithDefaultSurvey(surveyID string) Option {
	return func(s *Server) { s.defaultSurveyID = surveyID }
}

// WithSignatureValidation enables Twilio signature checks on the webhook.
func WithSignatureValidation(authToken, publicURL string) Option {
	return func(s *Server) {
		s.validateSig = true
		s.authToken = authToken
		s.publicURL = publicURL
	}
}

// NewServer wires the webhook around the engine and its collaborators.
func NewServer(reg *registry.Registry, manager *session.Manager, engine *runtime.Engine, hasher *hash.Hasher, optOuts ports.OptOutStore, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		manager:  manager,
		engine:   engine,
		hasher:   hasher,
		optOuts:  optOuts,
		logger:   logging.NewNop(),
		metrics:  newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		if s.validateSig {
			r.Use(signatureMiddleware(s.authToken, s.publicURL))
		}
		r.Post("/webhook/sms", s.handleInbound)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/surveys", s.handleListSurveys)
	r.Get("/api/surveys/{surveyID}", s.handleGetSurvey)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	return r
}

// handleInbound processes one SMS. The response is always TwiML with
// status 200; Twilio retries non-2xx responses, and a retried transition
// would double-process the reply.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	s.metrics.messagesReceived.Inc()
	ctx := r.Context()
	subject := s.hasher.Subject(from)
	normalized := strings.ToLower(strings.TrimSpace(body))
	log := s.logger.With("subject", hash.Truncate(subject))

	// Opt-out keywords win over everything, including active sessions.
	if optOutKeywords[normalized] {
		if err := s.optOuts.AddOptOut(ctx, subject, normalized); err != nil {
			log.Error("failed to record opt-out", "err", err)
			writeTwiML(w, apologyMessage)
			return
		}
		s.metrics.optOuts.Inc()
		log.Info("subject opted out", "keyword", normalized)
		s.reply(w, optOutConfirmation)
		return
	}

	if normalized == optInKeyword {
		removed, err := s.optOuts.RemoveOptOut(ctx, subject)
		if err != nil {
			log.Error("failed to remove opt-out", "err", err)
			writeTwiML(w, apologyMessage)
			return
		}
		if removed {
			log.Info("subject opted back in")
			s.reply(w, optInConfirmation)
			return
		}
		// Not opted out; fall through in case "start" is a survey start word.
	}

	optedOut, err := s.optOuts.IsOptedOut(ctx, subject)
	if err != nil {
		log.Error("failed to check opt-out", "err", err)
		writeTwiML(w, apologyMessage)
		return
	}
	if optedOut {
		// Opted-out subjects get silence, not a nag to come back.
		writeTwiML(w)
		return
	}

	// A start word begins a fresh session even if one is already open.
	if def := s.matchStartWord(normalized); def != nil {
		if _, err := s.manager.Begin(ctx, subject, def); err != nil {
			log.Error("failed to begin session", "survey_id", def.Metadata.ID, "err", err)
			writeTwiML(w, apologyMessage)
			return
		}
		s.metrics.sessionsStarted.WithLabelValues(def.Metadata.ID).Inc()
		log.Info("session started", "survey_id", def.Metadata.ID)
		s.reply(w, def.Consent.Text)
		return
	}

	// Otherwise the message is a reply to whichever conversation is open.
	reply, ok := s.advanceActive(r, subject, body, log)
	if !ok {
		writeTwiML(w, apologyMessage)
		return
	}
	if reply == "" {
		// No active session and no start word: stay silent rather than
		// messaging someone who never asked for anything.
		writeTwiML(w)
		return
	}
	s.reply(w, reply)
}

// matchStartWord finds the survey whose start words include the message.
func (s *Server) matchStartWord(normalized string) *schema.Definition {
	if normalized == "" {
		return nil
	}
	for _, def := range s.definitions() {
		if def.IsStartWord(normalized) {
			return def
		}
	}
	return nil
}

// advanceActive finds the subject's open conversation and advances it.
// The bool result is false only for failures that warrant an apology.
func (s *Server) advanceActive(r *http.Request, subject, body string, log *slog.Logger) (string, bool) {
	ctx := r.Context()
	for _, def := range s.definitions() {
		var reply runtime.Reply
		err := s.manager.WithActive(ctx, subject, def.Metadata.ID, def.Settings.Timeout(),
			func(ctx context.Context, sess *domain.Session) error {
				var err error
				reply, err = s.engine.Advance(ctx, sess, body)
				return err
			})
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			s.metrics.engineErrors.Inc()
			log.Error("failed to advance session", "survey_id", def.Metadata.ID, "err", err)
			return "", false
		}
		if reply.Done {
			s.metrics.sessionsCompleted.WithLabelValues(def.Metadata.ID).Inc()
			log.Info("session completed", "survey_id", def.Metadata.ID)
		}
		return reply.Text, true
	}
	return "", true
}

// definitions loads every servable survey, default survey first so it
// wins start-word ties and is checked first for active sessions.
func (s *Server) definitions() []*schema.Definition {
	ids, err := s.registry.IDs()
	if err != nil {
		s.logger.Error("failed to list surveys", "err", err)
		return nil
	}
	if s.defaultSurveyID != "" {
		ordered := []string{s.defaultSurveyID}
		for _, id := range ids {
			if id != s.defaultSurveyID {
				ordered = append(ordered, id)
			}
		}
		ids = ordered
	}

	defs := make([]*schema.Definition, 0, len(ids))
	for _, id := range ids {
		def, err := s.registry.Load(id)
		if err != nil {
			// Broken documents are logged at load; just skip serving them.
			continue
		}
		defs = append(defs, def)
	}
	return defs
}

func (s *Server) reply(w http.ResponseWriter, text string) {
	s.metrics.repliesSent.Inc()
	writeTwiML(w, text)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

type surveySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
}

func (s *Server) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	defs := s.definitions()
	out := make([]surveySummary, 0, len(defs))
	for _, def := range defs {
		out = append(out, surveySummary{
			ID:          def.Metadata.ID,
			Name:        def.Metadata.Name,
			Version:     def.Metadata.Version,
			Description: def.Metadata.Description,
			Steps:       len(def.Steps),
		})
	}
	render.JSON(w, r, out)
}

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	surveyID := chi.URLParam(r, "surveyID")
	def, err := s.registry.Load(surveyID)
	if err != nil {
		if errors.Is(err, domain.ErrSurveyNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "survey not found"})
			return
		}
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	render.JSON(w, r, surveySummary{
		ID:          def.Metadata.ID,
		Name:        def.Metadata.Name,
		Version:     def.Metadata.Version,
		Description: def.Metadata.Description,
		Steps:       len(def.Steps),
	})
}
