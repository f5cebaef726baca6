// Package notify delivers invite links to invitees through an external
// email/SMS provider. The provider is an opaque webhook; the invite record
// is the source of truth, so delivery failures are reported as a boolean
// and never abort the operation that triggered them.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Message contains everything the provider needs to render and send an
// invite notification.
type Message struct {
	Destination string `json:"destination"`
	Channel     string `json:"channel"`
	TechName    string `json:"tech_name"`
	CompanyName string `json:"company_name"`
	SignupLink  string `json:"signup_link"`
	ExpiresAt   string `json:"expires_at"`
}

// Client posts notification payloads to the configured provider URL.
type Client struct {
	httpClient  *http.Client
	providerURL string
	timeout     time.Duration
}

// NewClient creates a notification client. An empty providerURL puts the
// client in dev mode: messages are logged instead of sent and reported as
// delivered.
func NewClient(providerURL string, timeoutMS int) *Client {
	timeout := time.Duration(timeoutMS) * time.Millisecond
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		providerURL: providerURL,
		timeout:     timeout,
	}
}

// Send delivers one message. Returns true when the provider accepted it.
// All failures are logged at WARN level and surface only as a false return.
func (c *Client) Send(ctx context.Context, msg Message) bool {
	if c.providerURL == "" {
		log.Info().
			Str("destination", msg.Destination).
			Str("channel", msg.Channel).
			Str("signup_link", msg.SignupLink).
			Msg("Notification provider not configured, logging instead of sending")
		return true
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		log.Warn().
			Err(err).
			Str("destination", msg.Destination).
			Msg("Failed to marshal notification payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.providerURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Warn().
			Err(err).
			Msg("Failed to create notification request")
		return false
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || isTimeoutError(err) {
			log.Warn().
				Err(err).
				Dur("timeout", c.timeout).
				Str("destination", msg.Destination).
				Msg("Notification timed out")
		} else {
			log.Warn().
				Err(err).
				Str("destination", msg.Destination).
				Msg("Failed to send notification")
		}
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("destination", msg.Destination).
			Msg("Notification provider returned non-2xx status")
		return false
	}

	log.Info().
		Str("destination", msg.Destination).
		Str("channel", msg.Channel).
		Msg("Notification delivered")
	return true
}

func isTimeoutError(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
