// Package models: webhook event types exchanged with the telephony platform.
package models

import "strings"

// EventType identifies the kind of webhook event delivered by the platform.
type EventType string

const (
	// EventAssistantRequest asks for the assistant configuration for a new call.
	EventAssistantRequest EventType = "assistant-request"
	// EventCallStarted signals that a call has connected.
	EventCallStarted EventType = "call-started"
	// EventCallEnded signals that a call has completed.
	EventCallEnded EventType = "call-ended"
	// EventSpeechStarted signals that the caller began speaking.
	EventSpeechStarted EventType = "speech-started"
	// EventSpeechEnded signals that the caller stopped speaking.
	EventSpeechEnded EventType = "speech-ended"
	// EventUserUtterance carries a transcript that needs a spoken reply.
	// The platform delivers these as "function-call" messages.
	EventUserUtterance EventType = "user-utterance"
)

// NormalizeEventType maps the platform's wire spellings onto the canonical
// event types. Dotted forms ("call.started") and the "function-call" alias
// are accepted; unrecognized values pass through unchanged so the register
// can acknowledge them generically.
func NormalizeEventType(raw string) EventType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "assistant-request":
		return EventAssistantRequest
	case "call-started", "call.started":
		return EventCallStarted
	case "call-ended", "call.ended":
		return EventCallEnded
	case "speech-started", "speech.started", "speech-update-started":
		return EventSpeechStarted
	case "speech-ended", "speech.ended":
		return EventSpeechEnded
	case "user-utterance", "function-call", "function.call":
		return EventUserUtterance
	default:
		return EventType(raw)
	}
}

// WebhookEvent is the parsed form of an inbound webhook payload, produced by
// the HTTP layer and consumed by the call register.
type WebhookEvent struct {
	Type       EventType `json:"type"`
	CallID     string    `json:"call_id"`
	FromNumber string    `json:"from_number,omitempty"`
	ToNumber   string    `json:"to_number,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
}

// UtteranceReply is the envelope the platform expects for spoken replies to
// function-call events.
type UtteranceReply struct {
	Result string `json:"result"`
}

// VoiceConfig selects the TTS voice used for the call.
type VoiceConfig struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

// Assistant is the voice-delivery payload returned for assistant-request
// events: the first spoken message plus delivery hints.
type Assistant struct {
	FirstMessage          string      `json:"firstMessage"`
	Voice                 VoiceConfig `json:"voice"`
	EndCallMessage        string      `json:"endCallMessage,omitempty"`
	EndCallPhrases        []string    `json:"endCallPhrases,omitempty"`
	RecordingEnabled      bool        `json:"recordingEnabled"`
	SilenceTimeoutSeconds int         `json:"silenceTimeoutSeconds,omitempty"`
	MaxDurationSeconds    int         `json:"maxDurationSeconds,omitempty"`
}

// AssistantResponse wraps an Assistant for the webhook reply body.
type AssistantResponse struct {
	Assistant Assistant `json:"assistant"`
}

// Delivery defaults for assistant payloads.
const (
	// DefaultVoiceProvider is the TTS provider used for calls.
	DefaultVoiceProvider = "openai"
	// DefaultVoiceID is a warm, friendly voice.
	DefaultVoiceID = "alloy"
	// DefaultSilenceTimeoutSeconds ends the call after prolonged silence.
	DefaultSilenceTimeoutSeconds = 30
	// DefaultMaxDurationSeconds caps call length at five minutes.
	DefaultMaxDurationSeconds = 300
)

// NewAssistantResponse builds the standard assistant payload around the given
// first message.
func NewAssistantResponse(firstMessage, endCallMessage string) AssistantResponse {
	return AssistantResponse{Assistant: Assistant{
		FirstMessage:          firstMessage,
		Voice:                 VoiceConfig{Provider: DefaultVoiceProvider, VoiceID: DefaultVoiceID},
		EndCallMessage:        endCallMessage,
		EndCallPhrases:        []string{"goodbye", "thank you", "end call", "bye"},
		RecordingEnabled:      false,
		SilenceTimeoutSeconds: DefaultSilenceTimeoutSeconds,
		MaxDurationSeconds:    DefaultMaxDurationSeconds,
	}}
}
