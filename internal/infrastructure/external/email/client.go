// Package email implements the transactional email provider client used for
// gamification notifications (level-up congratulations, badge announcements,
// streak reminders). Delivery is best-effort: callers treat every error as
// non-fatal and the engine never blocks on this client.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
	"github.com/tutorlink/tutorlink-gamification/pkg/circuitbreaker"
	"github.com/tutorlink/tutorlink-gamification/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the email client.
type ClientConfig struct {
	// APIKey is the provider API key
	APIKey string

	// BaseURL is the provider API base URL
	BaseURL string

	// FromAddress is the sender shown on outgoing mail
	FromAddress string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.resend.com",
		FromAddress: "TutorLink <notifications@tutorlink.app>",
		Timeout:     10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// sendRequest is the provider wire format.
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// APIError represents a provider API error.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("email api error %d (%s): %s", e.StatusCode, e.Name, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client sends email through the provider HTTP API. Requests go through a
// circuit breaker and a retrier, in that order: when the provider is down the
// breaker fails fast instead of burning retry budget.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a new email client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.resend.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: retry.EmailRetrier(),
		breaker: circuitbreaker.EmailBreaker(func(name string, from, to circuitbreaker.State) {
			config.Logger.Warn("email breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		}),
		logger:  config.Logger,
	}
}

// Send delivers one message. Returns shared.ErrEmailRateLimited on provider
// throttling and shared.ErrEmailUnavailable when the provider cannot be
// reached or the breaker is open.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.config.APIKey == "" {
		return fmt.Errorf("%w: no api key configured", shared.ErrEmailUnavailable)
	}
	if msg.To == "" {
		return fmt.Errorf("%w: empty recipient", shared.ErrInvalidInput)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doSend(ctx, msg)
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return fmt.Errorf("%w: circuit open", shared.ErrEmailUnavailable)
		}
		return err
	}

	return nil
}

// IsHealthy reports whether the breaker currently admits requests.
func (c *Client) IsHealthy() bool {
	return c.breaker.State() != circuitbreaker.StateOpen
}

// doSend performs a single API call.
func (c *Client) doSend(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		From:    c.config.FromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to marshal email: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("%w: %v", shared.ErrEmailUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ok sendResponse
		if err := json.Unmarshal(respBody, &ok); err == nil && ok.ID != "" {
			c.logger.Debug("email sent", "to", maskRecipient(msg.To), "provider_id", ok.ID)
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.Retryable(shared.ErrEmailRateLimited)

	case resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("%w: status %d", shared.ErrEmailUnavailable, resp.StatusCode))

	default:
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return retry.Permanent(&APIError{
			StatusCode: resp.StatusCode,
			Name:       errResp.Name,
			Message:    errResp.Message,
		})
	}
}

// maskRecipient hides most of the address in logs.
func maskRecipient(addr string) string {
	at := strings.IndexByte(addr, '@')
	if at <= 1 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}
