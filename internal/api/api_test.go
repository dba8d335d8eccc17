package api

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voiceback/voiceback/internal/call"
	"github.com/voiceback/voiceback/internal/emotion"
	"github.com/voiceback/voiceback/internal/models"
	"github.com/voiceback/voiceback/internal/respconfig"
	"github.com/voiceback/voiceback/internal/response"
)

const testConfig = `{
  "anxiety": [
    {
      "figure": "Seneca",
      "context_lines": ["a Stoic philosopher who faced exile with steady calm"],
      "quote": "We suffer more often in imagination than in reality.",
      "encouragement_lines": ["May his words bring you a moment of calm."]
    }
  ]
}`

type testEnv struct {
	server *Server
	store  *respconfig.Store
	path   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "responses.json")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := respconfig.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Load(false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	detector, err := emotion.NewDetector()
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	builder := response.NewBuilder(response.WithRand(rand.New(rand.NewPCG(1, 1))))
	register := call.NewRegister(detector, store, builder, call.WithRand(rand.New(rand.NewPCG(2, 2))))

	return &testEnv{
		server: NewServer(register, store, WithAddr(":0")),
		store:  store,
		path:   path,
	}
}

func (e *testEnv) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestWebhookAssistantRequest(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/webhook", `{
		"message": {
			"type": "assistant-request",
			"call": {"id": "call-1", "customer": {"number": "+15550001111"}}
		}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeJSON[models.AssistantResponse](t, w)
	if resp.Assistant.FirstMessage == "" {
		t.Error("assistant firstMessage empty")
	}
	if resp.Assistant.Voice.VoiceID != models.DefaultVoiceID {
		t.Errorf("voiceId = %q", resp.Assistant.Voice.VoiceID)
	}
}

func TestWebhookUtteranceFlow(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/webhook", `{"message": {"type": "call.started", "call": {"id": "call-1"}}}`)

	w := env.post(t, "/webhook", `{
		"message": {
			"type": "function-call",
			"call": {"id": "call-1"},
			"functionCall": {"name": "respond", "parameters": {"transcript": "I'm really anxious about work"}}
		}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	reply := decodeJSON[models.UtteranceReply](t, w)
	if !strings.Contains(reply.Result, "Seneca") {
		t.Errorf("reply missing configured figure: %s", reply.Result)
	}
	if !response.HasDisclaimer(reply.Result) {
		t.Errorf("reply missing disclaimer: %s", reply.Result)
	}
}

func TestWebhookCrisisFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/webhook", `{
		"type": "function-call",
		"call": {"id": "call-2"},
		"functionCall": {"parameters": {"transcript": "I can't go on anymore"}}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	reply := decodeJSON[models.UtteranceReply](t, w)
	if reply.Result != response.CrisisResponse {
		t.Errorf("crisis script altered: %s", reply.Result)
	}
	if !strings.Contains(reply.Result, "988") {
		t.Error("crisis script missing helpline number")
	}
}

func TestWebhookFlatPayload(t *testing.T) {
	env := newTestEnv(t)

	// Top-level payload without the message envelope.
	w := env.post(t, "/webhook", `{"type": "call-started", "call": {"id": "flat-1", "phoneNumber": {"number": "+15559998888"}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeJSON[models.APIResponse](t, w)
	if resp.Status != string(models.APIStatusReceived) {
		t.Errorf("response = %+v", resp)
	}
}

func TestWebhookMissingCallID(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/webhook", `{"message": {"type": "call-started"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeJSON[models.APIResponse](t, w)
	if resp.Message != "Missing call ID" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestWebhookInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/webhook", `{nope`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhookUnknownEventType(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/webhook", `{"message": {"type": "transfer-request", "call": {"id": "c"}}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[models.APIResponse](t, w)
	if resp.Status != string(models.APIStatusReceived) {
		t.Errorf("response = %+v, want received", resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.get(t, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Status       string `json:"status"`
		ConfigLoaded bool   `json:"config_loaded"`
		ActiveCalls  int    `json:"active_calls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || !body.ConfigLoaded {
		t.Errorf("health = %+v", body)
	}
}

func TestCallEndpoints(t *testing.T) {
	env := newTestEnv(t)

	env.post(t, "/webhook", `{"message": {"type": "call-started", "call": {"id": "call-1"}}}`)

	w := env.get(t, "/calls")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /calls status = %d", w.Code)
	}
	var list struct {
		Result []models.CallSession `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Result) != 1 || list.Result[0].ID != "call-1" {
		t.Errorf("calls = %+v", list.Result)
	}

	w = env.get(t, "/calls/call-1")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /calls/call-1 status = %d", w.Code)
	}

	w = env.get(t, "/calls/nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /calls/nope status = %d, want 404", w.Code)
	}
}

func TestConfigReloadEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.post(t, "/config/reload", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reload status = %d, body = %s", w.Code, w.Body.String())
	}

	// Break the file on disk: reload must fail and report it.
	if err := os.WriteFile(env.path, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	w = env.post(t, "/config/reload", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("reload of broken file status = %d, want 422", w.Code)
	}

	// The previous document still serves the webhook path.
	w = env.post(t, "/webhook", `{
		"type": "function-call",
		"call": {"id": "c"},
		"functionCall": {"parameters": {"transcript": "feeling anxious"}}
	}`)
	reply := decodeJSON[models.UtteranceReply](t, w)
	if !strings.Contains(reply.Result, "Seneca") {
		t.Errorf("cached config not serving after failed reload: %s", reply.Result)
	}
}
