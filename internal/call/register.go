// Package call tracks call sessions and turns webhook events into spoken
// replies. The register is the orchestration point: it owns session state and
// drives the emotion detector, the configuration store, and the response
// builder for each caller utterance.
package call

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/voiceback/voiceback/internal/emotion"
	"github.com/voiceback/voiceback/internal/models"
	"github.com/voiceback/voiceback/internal/respconfig"
	"github.com/voiceback/voiceback/internal/response"
)

// DefaultGreeting opens every call.
const DefaultGreeting = "Hello, welcome to Voiceback. How are you feeling today?"

// DefaultEndCallMessage is spoken when the platform terminates the call.
const DefaultEndCallMessage = "Thank you for calling Voiceback. Take care."

// Agent produces a free-form reply for a transcript. It is optional; when
// configured, it replaces the quote pipeline for non-crisis utterances.
type Agent interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

// Register owns all call sessions and handles webhook events. Safe for
// concurrent use.
type Register struct {
	detector *emotion.Detector
	store    *respconfig.Store
	builder  *response.Builder

	agent    Agent
	greeting string
	clock    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.RWMutex
	sessions map[string]*models.CallSession
}

// Opts holds configuration options for the register.
type Opts struct {
	Agent    Agent
	Greeting string
	Clock    func() time.Time
	Rand     *rand.Rand
}

// Option defines a configuration option for the register.
type Option func(*Opts)

// WithAgent enables generative replies for non-crisis utterances. The quote
// pipeline remains the fallback when the agent errors.
func WithAgent(a Agent) Option {
	return func(o *Opts) { o.Agent = a }
}

// WithGreeting overrides the first message spoken on a new call.
func WithGreeting(greeting string) Option {
	return func(o *Opts) { o.Greeting = greeting }
}

// WithClock injects the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// WithRand sets the random source used to pick quote records.
func WithRand(r *rand.Rand) Option {
	return func(o *Opts) { o.Rand = r }
}

// NewRegister creates a call register wired to the given pipeline components.
func NewRegister(detector *emotion.Detector, store *respconfig.Store, builder *response.Builder, opts ...Option) *Register {
	cfg := Opts{
		Greeting: DefaultGreeting,
		Clock:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Register{
		detector: detector,
		store:    store,
		builder:  builder,
		agent:    cfg.Agent,
		greeting: cfg.Greeting,
		clock:    cfg.Clock,
		rng:      rng,
		sessions: make(map[string]*models.CallSession),
	}
}

// HandleWebhook dispatches a parsed webhook event and returns the body to
// send back to the platform. Every event with an empty call ID is rejected;
// unknown event types are acknowledged without side effects. A panic inside
// response handling degrades to an apology reply so the caller never hears
// silence.
func (r *Register) HandleWebhook(ctx context.Context, ev models.WebhookEvent) (result any) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Register.HandleWebhook: panic during event handling", "event", ev.Type, "call_id", ev.CallID, "panic", rec)
			// The degraded result must still match the shape the platform
			// expects for the event.
			switch ev.Type {
			case models.EventUserUtterance:
				result = models.UtteranceReply{Result: response.ApologyResponse}
			case models.EventAssistantRequest:
				result = models.NewAssistantResponse(response.ApologyResponse, DefaultEndCallMessage)
			default:
				result = models.Received()
			}
		}
	}()

	if ev.CallID == "" {
		slog.Warn("Register.HandleWebhook: event without call ID", "event", ev.Type)
		return models.Error("Missing call ID")
	}

	switch ev.Type {
	case models.EventAssistantRequest:
		r.startSession(ev)
		slog.Info("Register.HandleWebhook: assistant requested", "call_id", ev.CallID)
		return models.NewAssistantResponse(r.greeting, DefaultEndCallMessage)

	case models.EventCallStarted:
		r.startSession(ev)
		slog.Info("Register.HandleWebhook: call started", "call_id", ev.CallID, "active", r.ActiveCount())
		return models.Received()

	case models.EventCallEnded:
		r.endSession(ev.CallID)
		return models.Received()

	case models.EventSpeechStarted, models.EventSpeechEnded:
		slog.Debug("Register.HandleWebhook: speech event", "event", ev.Type, "call_id", ev.CallID)
		return models.Received()

	case models.EventUserUtterance:
		return r.handleUtterance(ctx, ev)

	default:
		slog.Warn("Register.HandleWebhook: unrecognized event type", "event", ev.Type, "call_id", ev.CallID)
		return models.Received()
	}
}

// startSession records an active session with a fresh start timestamp. A
// start event always overwrites any existing entry for the ID, so a call
// restarted after ending becomes active again.
func (r *Register) startSession(ev models.WebhookEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[ev.CallID] = &models.CallSession{
		ID:         ev.CallID,
		StartedAt:  r.clock(),
		Status:     models.CallStatusActive,
		FromNumber: ev.FromNumber,
		ToNumber:   ev.ToNumber,
	}
}

// endSession marks a session ended and computes its duration. Ended sessions
// are retained for inspection. Ending an unknown call logs a warning and
// creates no session.
func (r *Register) endSession(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	if !ok {
		slog.Warn("Register.endSession: end event for unknown call", "call_id", callID)
		return
	}
	if s.Status == models.CallStatusEnded {
		return
	}
	now := r.clock()
	s.EndedAt = &now
	s.Status = models.CallStatusEnded
	s.DurationSeconds = now.Sub(s.StartedAt).Seconds()
	slog.Info("Register.endSession: call ended", "call_id", callID, "duration_seconds", s.DurationSeconds)
}

// handleUtterance runs the full pipeline: classify, pick a record, compose.
// Crisis input short-circuits to the fixed script before anything else runs.
func (r *Register) handleUtterance(ctx context.Context, ev models.WebhookEvent) models.UtteranceReply {
	category := r.detector.Classify(ev.Transcript)
	slog.Info("Register.handleUtterance: classified transcript", "call_id", ev.CallID, "emotion", category)

	if category == models.EmotionCrisis {
		return models.UtteranceReply{Result: response.CrisisResponse}
	}

	if r.agent != nil {
		reply, err := r.agent.Reply(ctx, ev.Transcript)
		if err == nil && reply != "" {
			return models.UtteranceReply{Result: reply}
		}
		slog.Warn("Register.handleUtterance: agent failed, falling back to quote pipeline", "call_id", ev.CallID, "error", err)
	}

	rec := r.pickRecord(category)
	return models.UtteranceReply{Result: r.builder.Build(category, rec)}
}

// pickRecord chooses a random configured record for the emotion, or nil when
// none is available. The builder supplies its own fallback in that case.
func (r *Register) pickRecord(category models.EmotionCategory) *models.QuoteRecord {
	records := r.store.RecordsFor(category)
	if len(records) == 0 {
		return nil
	}
	r.rngMu.Lock()
	idx := r.rng.IntN(len(records))
	r.rngMu.Unlock()
	return &records[idx]
}

// GetSession returns a copy of the session for the given call ID.
func (r *Register) GetSession(callID string) (models.CallSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	if !ok {
		return models.CallSession{}, false
	}
	return s.Clone(), true
}

// ListActive returns copies of all sessions still in progress.
func (r *Register) ListActive() []models.CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CallSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Status == models.CallStatusActive {
			out = append(out, s.Clone())
		}
	}
	return out
}

// ActiveCount reports the number of in-progress sessions.
func (r *Register) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.sessions {
		if s.Status == models.CallStatusActive {
			n++
		}
	}
	return n
}
