// Package vapi is a thin HTTP client for the Vapi voice platform's control
// API: health checks, phone number management, webhook registration and call
// control. Webhook delivery itself is handled by the api package.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/voiceback/voiceback/internal/models"
)

// DefaultBaseURL is the production Vapi API endpoint.
const DefaultBaseURL = "https://api.vapi.ai"

// ConnectionError indicates the platform could not be reached or returned a
// server-side failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("vapi connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError indicates the API key was rejected.
type AuthenticationError struct {
	Op         string
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("vapi authentication failed during %s (status %d)", e.Op, e.StatusCode)
}

// PhoneNumber is a number provisioned on the platform.
type PhoneNumber struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Provider  string `json:"provider,omitempty"`
	ServerURL string `json:"serverUrl,omitempty"`
}

// CallInfo is the platform's view of a call.
type CallInfo struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	StartedAt string `json:"startedAt,omitempty"`
	EndedAt   string `json:"endedAt,omitempty"`
}

// Client talks to the Vapi control API. Safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the client.
type Option func(*Opts)

// WithAPIKey sets the API key, overriding the VAPI_API_KEY environment
// variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// NewClient creates a Vapi API client. The API key falls back to the
// VAPI_API_KEY environment variable when not set explicitly.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("VAPI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vapi API key is required (set VAPI_API_KEY)")
	}
	return &Client{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, httpClient: cfg.HTTPClient}, nil
}

// do executes a request against the control API and decodes the JSON reply
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthenticationError{Op: op, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &ConnectionError{Op: op, Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("vapi %s failed with status %d: %s", op, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// HealthCheck verifies connectivity and credentials by listing phone numbers.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.do(ctx, "health check", http.MethodGet, "/phone-number", nil, nil); err != nil {
		return err
	}
	slog.Info("Client.HealthCheck: vapi connectivity verified")
	return nil
}

// PhoneNumbers lists the numbers provisioned on the account.
func (c *Client) PhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var numbers []PhoneNumber
	if err := c.do(ctx, "list phone numbers", http.MethodGet, "/phone-number", nil, &numbers); err != nil {
		return nil, err
	}
	return numbers, nil
}

// RegisterWebhook points a phone number's server URL at this service so the
// platform delivers call events to it.
func (c *Client) RegisterWebhook(ctx context.Context, phoneNumberID, serverURL string) error {
	body := map[string]string{"serverUrl": serverURL}
	if err := c.do(ctx, "register webhook", http.MethodPatch, "/phone-number/"+phoneNumberID, body, nil); err != nil {
		return err
	}
	slog.Info("Client.RegisterWebhook: webhook registered", "phone_number_id", phoneNumberID, "server_url", serverURL)
	return nil
}

// AssistantInfo is the platform's record of a created assistant.
type AssistantInfo struct {
	ID string `json:"id"`
}

// CreateAssistant registers a reusable assistant configuration on the
// platform and returns its record.
func (c *Client) CreateAssistant(ctx context.Context, assistant models.Assistant) (*AssistantInfo, error) {
	var info AssistantInfo
	if err := c.do(ctx, "create assistant", http.MethodPost, "/assistant", assistant, &info); err != nil {
		return nil, err
	}
	slog.Info("Client.CreateAssistant: assistant created", "assistant_id", info.ID)
	return &info, nil
}

// CallStatus fetches the platform's view of a call.
func (c *Client) CallStatus(ctx context.Context, callID string) (*CallInfo, error) {
	var info CallInfo
	if err := c.do(ctx, "call status", http.MethodGet, "/call/"+callID, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// EndCall asks the platform to terminate an in-progress call.
func (c *Client) EndCall(ctx context.Context, callID string) error {
	body := map[string]string{"status": "ended"}
	if err := c.do(ctx, "end call", http.MethodPatch, "/call/"+callID, body, nil); err != nil {
		return err
	}
	slog.Info("Client.EndCall: call termination requested", "call_id", callID)
	return nil
}
