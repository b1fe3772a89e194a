// Package transport is the only component that talks to the agent API.
// Four operations, one request/response round trip each, no automatic
// retries: a failed call surfaces as an error and the widget decides the
// user-visible degrade.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/receptly/chat-widget/internal/domain"
)

// Client calls the conversational agent's chat API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an agent API client. timeout bounds each round trip;
// zero means the default of 60 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type wireMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// HistoryResponse is the stored transcript for a session
type HistoryResponse struct {
	Messages []domain.Message
}

// GreetingResponse is the conversation opener for a business
type GreetingResponse struct {
	BusinessName string `json:"business_name"`
	Message      string `json:"message"`
}

// ChatResponse is the agent's reply to one posted message, optionally
// carrying a structured-input directive for the next turn.
type ChatResponse struct {
	Message     string             `json:"message"`
	InputType   string             `json:"input_type"`
	InputConfig domain.InputConfig `json:"input_config"`
}

// FetchHistory retrieves the full stored transcript for a session
func (c *Client) FetchHistory(ctx context.Context, businessID, sessionID string) (*HistoryResponse, error) {
	endpoint := fmt.Sprintf("%s/chat/history/%s/%s",
		c.baseURL, url.PathEscape(businessID), url.PathEscape(sessionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent api returned status %d", resp.StatusCode)
	}

	var raw struct {
		Messages []wireMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	history := &HistoryResponse{Messages: make([]domain.Message, 0, len(raw.Messages))}
	for _, m := range raw.Messages {
		history.Messages = append(history.Messages, domain.Message{
			Role:      domain.MessageRole(m.Role),
			Content:   m.Content,
			Timestamp: parseTimestamp(m.Timestamp),
		})
	}
	return history, nil
}

// FetchGreeting retrieves the opening assistant message for a business
func (c *Client) FetchGreeting(ctx context.Context, businessID, sessionID string) (*GreetingResponse, error) {
	endpoint := fmt.Sprintf("%s/chat/greeting/%s?session_id=%s",
		c.baseURL, url.PathEscape(businessID), url.QueryEscape(sessionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent api returned status %d", resp.StatusCode)
	}

	var greeting GreetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&greeting); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &greeting, nil
}

// PostMessage sends one user message and returns the agent's reply
func (c *Client) PostMessage(ctx context.Context, businessID, sessionID, text string) (*ChatResponse, error) {
	body, err := json.Marshal(map[string]string{
		"business_id": businessID,
		"session_id":  sessionID,
		"message":     text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/message", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent api returned status %d", resp.StatusCode)
	}

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &chat, nil
}

// DeleteSession asks the server to discard a conversation. Best-effort:
// the caller rotates the client-side identity regardless of the outcome.
func (c *Client) DeleteSession(ctx context.Context, businessID, sessionID string) error {
	endpoint := fmt.Sprintf("%s/chat/session/%s/%s",
		c.baseURL, url.PathEscape(businessID), url.PathEscape(sessionID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent api returned status %d", resp.StatusCode)
	}
	return nil
}

// parseTimestamp tolerates the timestamp shapes the agent emits
// (RFC3339 and Python's naive isoformat). Unparseable values become the
// zero time rather than failing the whole history load.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
