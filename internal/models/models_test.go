package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validRecord() QuoteRecord {
	return QuoteRecord{
		Figure:             "Seneca",
		ContextLines:       []string{"who faced exile with calm"},
		Quote:              "We suffer more often in imagination than in reality.",
		EncouragementLines: []string{"You have strength within you."},
	}
}

func TestQuoteRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*QuoteRecord)
		wantErr error
	}{
		{"valid", func(r *QuoteRecord) {}, nil},
		{"empty figure", func(r *QuoteRecord) { r.Figure = "  " }, ErrEmptyFigure},
		{"figure too long", func(r *QuoteRecord) { r.Figure = strings.Repeat("a", MaxFigureLength+1) }, ErrFigureTooLong},
		{"placeholder figure", func(r *QuoteRecord) { r.Figure = "Unknown" }, ErrPlaceholderFigure},
		{"empty quote", func(r *QuoteRecord) { r.Quote = "" }, ErrEmptyQuote},
		{"quote too long", func(r *QuoteRecord) { r.Quote = strings.Repeat("q", MaxQuoteLength+1) }, ErrQuoteTooLong},
		{"no context lines", func(r *QuoteRecord) { r.ContextLines = nil }, ErrMissingContextLines},
		{"too many context lines", func(r *QuoteRecord) {
			r.ContextLines = make([]string, MaxLinesPerRecord+1)
			for i := range r.ContextLines {
				r.ContextLines[i] = "line"
			}
		}, ErrTooManyContextLines},
		{"blank context line", func(r *QuoteRecord) { r.ContextLines = []string{"   "} }, ErrEmptyLine},
		{"no encouragement lines", func(r *QuoteRecord) { r.EncouragementLines = nil }, ErrMissingEncouragement},
		{"line too long", func(r *QuoteRecord) { r.EncouragementLines = []string{strings.Repeat("e", MaxLineLength+1)} }, ErrLineTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)
			err := rec.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPlaceholderFigure(t *testing.T) {
	for _, name := range []string{"unknown", "Unknown", "ANONYMOUS", " n/a ", "None"} {
		if !IsPlaceholderFigure(name) {
			t.Errorf("expected %q to be a placeholder", name)
		}
	}
	if IsPlaceholderFigure("Marcus Aurelius") {
		t.Error("real figure flagged as placeholder")
	}
}

func TestNormalizeEventType(t *testing.T) {
	tests := []struct {
		raw  string
		want EventType
	}{
		{"assistant-request", EventAssistantRequest},
		{"call.started", EventCallStarted},
		{"call-started", EventCallStarted},
		{"call.ended", EventCallEnded},
		{"function-call", EventUserUtterance},
		{"Function-Call", EventUserUtterance},
		{"transcript-update", EventType("transcript-update")},
	}
	for _, tt := range tests {
		if got := NormalizeEventType(tt.raw); got != tt.want {
			t.Errorf("NormalizeEventType(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestCallSessionClone(t *testing.T) {
	ended := time.Now()
	s := CallSession{ID: "call-1", Status: CallStatusEnded, EndedAt: &ended}
	c := s.Clone()
	*c.EndedAt = c.EndedAt.Add(time.Hour)
	if !s.EndedAt.Equal(ended) {
		t.Error("Clone shares EndedAt with the original")
	}
}

func TestNewAssistantResponse(t *testing.T) {
	resp := NewAssistantResponse("Hello!", "Farewell.")
	a := resp.Assistant
	if a.FirstMessage != "Hello!" {
		t.Errorf("unexpected first message %q", a.FirstMessage)
	}
	if a.Voice.Provider != DefaultVoiceProvider || a.Voice.VoiceID != DefaultVoiceID {
		t.Errorf("unexpected voice config %+v", a.Voice)
	}
	if a.SilenceTimeoutSeconds != DefaultSilenceTimeoutSeconds || a.MaxDurationSeconds != DefaultMaxDurationSeconds {
		t.Errorf("unexpected duration budgets %+v", a)
	}
	if a.RecordingEnabled {
		t.Error("recording should be disabled by default")
	}
}
