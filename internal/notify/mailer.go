// Package notify delivers transactional email through a background queue.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Mailer sends a single email message.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// HTTPMailer posts messages to an HTTP mail provider API.
type HTTPMailer struct {
	Endpoint string
	APIKey   string
	From     string
	Client   *http.Client
}

// NewHTTPMailer builds a mailer with an instrumented HTTP client.
func NewHTTPMailer(endpoint, apiKey, from string) *HTTPMailer {
	return &HTTPMailer{
		Endpoint: endpoint,
		APIKey:   apiKey,
		From:     from,
		Client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type mailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Send posts the message to the provider.
func (m *HTTPMailer) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(mailPayload{From: m.From, To: to, Subject: subject, HTML: html})
	if err != nil {
		return fmt.Errorf("encode mail payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// NopMailer discards messages. Used when no provider is configured.
type NopMailer struct{}

// Send implements Mailer.
func (NopMailer) Send(context.Context, string, string, string) error { return nil }

// InMemoryMailer records messages for tests.
type InMemoryMailer struct {
	Outbox []Message
}

// Message is a single captured email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Send records the message.
func (m *InMemoryMailer) Send(_ context.Context, to, subject, html string) error {
	m.Outbox = append(m.Outbox, Message{To: to, Subject: subject, HTML: html})
	return nil
}
