package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voiceback/voiceback/internal/models"
	"github.com/voiceback/voiceback/internal/util"
)

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

// numberRef is a phone number reference inside a webhook payload.
type numberRef struct {
	Number string `json:"number"`
}

// callPayload is the call object embedded in webhook payloads.
type callPayload struct {
	ID          string     `json:"id"`
	Customer    *numberRef `json:"customer"`
	PhoneNumber *numberRef `json:"phoneNumber"`
}

// functionCall carries a transcript inside function-call messages.
type functionCall struct {
	Name       string `json:"name"`
	Parameters struct {
		Transcript string `json:"transcript"`
	} `json:"parameters"`
}

// webhookPayload captures the fields we use from a platform message. The
// platform sends the same shape either at the top level or nested under a
// "message" key depending on the event.
type webhookPayload struct {
	Type         string        `json:"type"`
	Call         *callPayload  `json:"call"`
	Customer     *numberRef    `json:"customer"`
	PhoneNumber  *numberRef    `json:"phoneNumber"`
	Transcript   string        `json:"transcript"`
	FunctionCall *functionCall `json:"functionCall"`
}

// parseWebhookPayload accepts both envelope shapes.
func parseWebhookPayload(body []byte) (*webhookPayload, error) {
	var envelope struct {
		Message *webhookPayload `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != nil && envelope.Message.Type != "" {
		return envelope.Message, nil
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// toEvent flattens a payload into the event the register consumes.
func (p *webhookPayload) toEvent() models.WebhookEvent {
	ev := models.WebhookEvent{Type: models.NormalizeEventType(p.Type)}

	if p.Call != nil {
		ev.CallID = p.Call.ID
		if p.Call.Customer != nil {
			ev.FromNumber = p.Call.Customer.Number
		}
		if p.Call.PhoneNumber != nil {
			ev.ToNumber = p.Call.PhoneNumber.Number
		}
	}
	if ev.FromNumber == "" && p.Customer != nil {
		ev.FromNumber = p.Customer.Number
	}
	if ev.ToNumber == "" && p.PhoneNumber != nil {
		ev.ToNumber = p.PhoneNumber.Number
	}

	ev.Transcript = strings.TrimSpace(p.Transcript)
	if ev.Transcript == "" && p.FunctionCall != nil {
		ev.Transcript = strings.TrimSpace(p.FunctionCall.Parameters.Transcript)
	}
	return ev
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := util.GenerateRequestID()
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Error("Server.handleWebhook: failed to read body", "request_id", requestID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Failed to read request body"))
		return
	}

	payload, err := parseWebhookPayload(body)
	if err != nil {
		slog.Error("Server.handleWebhook: invalid JSON payload", "request_id", requestID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON payload"))
		return
	}

	ev := payload.toEvent()
	slog.Info("Server.handleWebhook: event received", "request_id", requestID, "event", ev.Type, "call_id", ev.CallID)

	result := s.register.HandleWebhook(r.Context(), ev)

	status := http.StatusOK
	if resp, ok := result.(models.APIResponse); ok && resp.Status == string(models.APIStatusError) {
		status = http.StatusBadRequest
	}
	writeJSONResponse(w, status, result)

	slog.Debug("Server.handleWebhook: event handled", "request_id", requestID, "event", ev.Type, "elapsed", time.Since(start))
}

// healthStatus is the body served by the health endpoint.
type healthStatus struct {
	Status         string     `json:"status"`
	ConfigLoaded   bool       `json:"config_loaded"`
	ActiveCalls    int        `json:"active_calls"`
	ConfigLoadedAt *time.Time `json:"config_loaded_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthStatus{
		Status:       "ok",
		ConfigLoaded: s.store.IsLoaded(),
		ActiveCalls:  s.register.ActiveCount(),
	}
	if t := s.store.LoadedAt(); !t.IsZero() {
		body.ConfigLoadedAt = &t
	}
	status := http.StatusOK
	if !body.ConfigLoaded {
		body.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, body)
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.register.ListActive()))
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session, ok := s.register.GetSession(id)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Call not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(session))
}

func (s *Server) handleConfigReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reload(); err != nil {
		slog.Error("Server.handleConfigReload: reload failed", "error", err)
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("configuration reloaded", map[string]any{
		"emotions": s.store.Emotions(),
	}))
}
