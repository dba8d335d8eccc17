// Package response composes the spoken reply delivered back to a caller:
// an emotion acknowledgment, a historical quote with context, and a closing
// disclaimer. Crisis input bypasses composition entirely.
package response

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/voiceback/voiceback/internal/models"
)

// CrisisResponse is the fixed script spoken whenever crisis keywords were
// detected. It must never be altered by composition and never carries the
// disclaimer.
const CrisisResponse = "I'm truly sorry you're feeling this way. Voiceback is not equipped to help " +
	"with urgent emotional crises, but you're not alone. Please consider reaching out to a " +
	"professional or calling a helpline such as 988 in the US or 1-833-456-4566 in Canada. " +
	"Take care of yourself."

// Disclaimer closes every non-crisis response.
const Disclaimer = " Thank you for calling Voiceback. Please remember, this service offers " +
	"inspiration, not professional advice. Goodbye."

// ApologyResponse is spoken when response handling fails entirely.
const ApologyResponse = "I'm sorry, I'm having trouble understanding right now. " +
	"Thank you for calling Voiceback."

// acknowledgments maps each scored emotion to its empathetic openers. One is
// chosen at random per response.
var acknowledgments = map[models.EmotionCategory][]string{
	models.EmotionAnxiety: {
		"That's completely understandable.",
		"Many people experience this feeling.",
		"You're not alone in feeling this way.",
		"It's natural to feel anxious sometimes.",
	},
	models.EmotionSadness: {
		"I can hear the heaviness in that.",
		"Sadness is a natural part of the human experience.",
		"It's okay to feel this deeply.",
		"Your feelings are valid and important.",
	},
	models.EmotionFrustration: {
		"That frustration sounds really difficult.",
		"It's clear this has been weighing on you.",
		"Frustration can be so overwhelming.",
		"I can understand why you'd feel that way.",
	},
	models.EmotionUncertainty: {
		"Uncertainty can feel unsettling.",
		"Not knowing what's ahead is challenging.",
		"It's hard when the path isn't clear.",
		"Feeling uncertain is part of being human.",
	},
	models.EmotionOverwhelm: {
		"That sounds like so much to handle.",
		"Being overwhelmed is exhausting.",
		"It's understandable to feel swamped.",
		"Sometimes life can feel like too much.",
	},
}

const defaultAcknowledgment = "I hear you."

// fallbackRecord is used when no usable quote record is available, keeping
// the caller experience intact while the configuration is degraded.
var fallbackRecord = models.QuoteRecord{
	Figure:             "Seneca",
	ContextLines:       []string{"a Stoic philosopher who faced exile and hardship with steady calm"},
	Quote:              "We suffer more often in imagination than in reality.",
	EncouragementLines: []string{"May his words bring you a moment of perspective."},
}

// Builder composes responses. Line selection is randomized per call; inject
// a seeded source for deterministic output in tests.
type Builder struct {
	rng *rand.Rand
}

// Opts holds configuration options for the builder.
type Opts struct {
	Rand *rand.Rand
}

// Option defines a configuration option for the builder.
type Option func(*Opts)

// WithRand sets the random source used to pick context and encouragement
// lines.
func WithRand(r *rand.Rand) Option {
	return func(o *Opts) { o.Rand = r }
}

// NewBuilder creates a response builder.
func NewBuilder(opts ...Option) *Builder {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Builder{rng: rng}
}

// Build composes the full spoken response for the detected emotion. Crisis
// returns the fixed script. A nil or invalid record falls back to the
// built-in Seneca quote and logs the degradation.
func (b *Builder) Build(emotion models.EmotionCategory, rec *models.QuoteRecord) string {
	if emotion == models.EmotionCrisis {
		return CrisisResponse
	}

	if rec == nil {
		slog.Warn("Builder.Build: no record available, using fallback quote", "emotion", emotion)
		rec = &fallbackRecord
	} else if err := rec.Validate(); err != nil {
		slog.Warn("Builder.Build: invalid record, using fallback quote", "emotion", emotion, "error", err)
		rec = &fallbackRecord
	}

	ack := b.pick(acknowledgments[emotion])
	if ack == "" {
		ack = defaultAcknowledgment
	}

	contextLine := b.pick(rec.ContextLines)
	encouragementLine := b.pick(rec.EncouragementLines)

	body := fmt.Sprintf("It sounds like you're feeling %s. %s You remind me of %s, %s. [pause] '%s' %s",
		emotion, ack, rec.Figure, contextLine, rec.Quote, encouragementLine)
	return body + Disclaimer
}

// pick returns a random element, or an empty string for an empty slice.
func (b *Builder) pick(lines []string) string {
	switch len(lines) {
	case 0:
		return ""
	case 1:
		return lines[0]
	default:
		return lines[b.rng.IntN(len(lines))]
	}
}

// Acknowledgments returns the openers an emotion can draw from; unknown
// categories get the generic one.
func Acknowledgments(emotion models.EmotionCategory) []string {
	if acks, ok := acknowledgments[emotion]; ok {
		out := make([]string, len(acks))
		copy(out, acks)
		return out
	}
	return []string{defaultAcknowledgment}
}

// FallbackFigure exposes the name in the built-in fallback record, mainly so
// tests and diagnostics can assert on degraded output.
func FallbackFigure() string { return fallbackRecord.Figure }

// HasDisclaimer reports whether a composed response carries the closing
// disclaimer.
func HasDisclaimer(text string) bool {
	return strings.HasSuffix(text, Disclaimer)
}
