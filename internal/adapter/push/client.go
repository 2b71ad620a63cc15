// Package push sends device notifications through an Expo-compatible push gateway.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts push messages to the gateway.
type Client struct {
	url         string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a new push gateway client.
func NewClient(url, accessToken string, timeout time.Duration) *Client {
	return &Client{
		url:         url,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Message is one push notification.
type Message struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

// Ticket is the gateway's per-message receipt.
type Ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type sendResponse struct {
	Data   []Ticket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// Send delivers a single notification to token.
func (c *Client) Send(ctx context.Context, token, title, body string) error {
	payload, err := json.Marshal([]Message{{To: token, Title: title, Body: body, Sound: "default"}})
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var out sendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return fmt.Errorf("failed to unmarshal push response: %w", err)
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("push gateway error: %s", out.Errors[0].Message)
	}
	if len(out.Data) == 0 {
		return fmt.Errorf("push gateway returned no ticket")
	}
	if t := out.Data[0]; t.Status != "ok" {
		return fmt.Errorf("push rejected: %s", t.Message)
	}
	return nil
}
