// Package models defines the core data structures for Voiceback.
//
// It includes types for emotion categories, quote records, call sessions, and
// webhook payloads, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// EmotionCategory identifies one of the supported emotional states.
type EmotionCategory string

const (
	// EmotionAnxiety covers worry, stress, and fear language.
	EmotionAnxiety EmotionCategory = "anxiety"
	// EmotionSadness covers grief, loss, and low-mood language.
	EmotionSadness EmotionCategory = "sadness"
	// EmotionFrustration covers anger and irritation language.
	EmotionFrustration EmotionCategory = "frustration"
	// EmotionUncertainty covers confusion and indecision language.
	EmotionUncertainty EmotionCategory = "uncertainty"
	// EmotionOverwhelm covers overload and burnout language.
	EmotionOverwhelm EmotionCategory = "overwhelm"
	// EmotionCrisis is the override category for self-harm language. It is
	// never part of the scored set; it bypasses all corpus lookup.
	EmotionCrisis EmotionCategory = "crisis"
)

// DefaultEmotion is used when input is empty or matches no keyword table.
// Anxiety is the most common state that leads callers to seek support and
// yields a safe reply that does not assume severe distress.
const DefaultEmotion = EmotionAnxiety

// ScoredEmotions lists the categories that participate in keyword scoring,
// in the fixed tie-break priority order (most specific first).
var ScoredEmotions = []EmotionCategory{
	EmotionUncertainty,
	EmotionOverwhelm,
	EmotionFrustration,
	EmotionSadness,
	EmotionAnxiety,
}

// IsScoredEmotion reports whether the category participates in keyword scoring.
func IsScoredEmotion(e EmotionCategory) bool {
	for _, s := range ScoredEmotions {
		if s == e {
			return true
		}
	}
	return false
}

// Validation constants for quote records and emotion keys.
const (
	// MaxFigureLength defines the maximum allowed length for a figure name.
	MaxFigureLength = 100
	// MaxQuoteLength defines the maximum allowed length for a quote.
	MaxQuoteLength = 1000
	// MaxLineLength defines the maximum allowed length for a context or encouragement line.
	MaxLineLength = 500
	// MaxLinesPerRecord defines the maximum number of context or encouragement lines.
	MaxLinesPerRecord = 10
	// MaxEmotionKeyLength defines the maximum allowed length for an emotion key.
	MaxEmotionKeyLength = 50
)

// Error variables for better error handling and testability
var (
	ErrEmptyFigure          = errors.New("figure cannot be empty")
	ErrFigureTooLong        = errors.New("figure name exceeds maximum length")
	ErrPlaceholderFigure    = errors.New("figure name is a placeholder value")
	ErrEmptyQuote           = errors.New("quote cannot be empty")
	ErrQuoteTooLong         = errors.New("quote exceeds maximum length")
	ErrMissingContextLines  = errors.New("at least one context line is required")
	ErrTooManyContextLines  = errors.New("too many context lines")
	ErrMissingEncouragement = errors.New("at least one encouragement line is required")
	ErrTooManyEncouragement = errors.New("too many encouragement lines")
	ErrEmptyLine            = errors.New("line cannot be empty")
	ErrLineTooLong          = errors.New("line exceeds maximum length")
	ErrEmptyCallID          = errors.New("call ID cannot be empty")
)

// placeholderFigures are generic attributions rejected at validation time.
var placeholderFigures = map[string]bool{
	"unknown":   true,
	"anonymous": true,
	"n/a":       true,
	"none":      true,
}

// IsPlaceholderFigure reports whether the given figure name is a rejected
// generic attribution. Matching is case-insensitive.
func IsPlaceholderFigure(name string) bool {
	return placeholderFigures[strings.ToLower(strings.TrimSpace(name))]
}

// QuoteRecord is a single historical-figure attribution with context, a
// quotation, and encouragement lines, scoped to one emotion.
type QuoteRecord struct {
	Figure             string   `json:"figure"`
	ContextLines       []string `json:"context_lines"`
	Quote              string   `json:"quote"`
	EncouragementLines []string `json:"encouragement_lines"`
}

// Validate performs comprehensive validation on a QuoteRecord structure.
func (r *QuoteRecord) Validate() error {
	figure := strings.TrimSpace(r.Figure)
	if figure == "" {
		return ErrEmptyFigure
	}
	if len(r.Figure) > MaxFigureLength {
		return ErrFigureTooLong
	}
	if IsPlaceholderFigure(figure) {
		return ErrPlaceholderFigure
	}

	if strings.TrimSpace(r.Quote) == "" {
		return ErrEmptyQuote
	}
	if len(r.Quote) > MaxQuoteLength {
		return ErrQuoteTooLong
	}

	if len(r.ContextLines) == 0 {
		return ErrMissingContextLines
	}
	if len(r.ContextLines) > MaxLinesPerRecord {
		return ErrTooManyContextLines
	}
	if err := validateLines(r.ContextLines); err != nil {
		return err
	}

	if len(r.EncouragementLines) == 0 {
		return ErrMissingEncouragement
	}
	if len(r.EncouragementLines) > MaxLinesPerRecord {
		return ErrTooManyEncouragement
	}
	return validateLines(r.EncouragementLines)
}

func validateLines(lines []string) error {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			return ErrEmptyLine
		}
		if len(line) > MaxLineLength {
			return ErrLineTooLong
		}
	}
	return nil
}

// ResponseConfiguration maps emotion keys to their quote records.
type ResponseConfiguration map[string][]QuoteRecord

// CallStatus represents the lifecycle state of a call session.
type CallStatus string

const (
	// CallStatusActive indicates the call is in progress.
	CallStatusActive CallStatus = "active"
	// CallStatusEnded indicates the call has completed.
	CallStatusEnded CallStatus = "ended"
)

// CallSession tracks the state of a single call. Sessions are owned
// exclusively by the call register; values handed to callers are copies.
type CallSession struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Status          CallStatus `json:"status"`
	FromNumber      string     `json:"from_number,omitempty"`
	ToNumber        string     `json:"to_number,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
}

// Clone returns a copy safe to hand outside the register.
func (s *CallSession) Clone() CallSession {
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return c
}
