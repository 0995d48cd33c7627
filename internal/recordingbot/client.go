// Package recordingbot is the HTTP client for the meeting-recording bot
// service. It implements the orchestrator's BotAdapter.
package recordingbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tutorcoach_backend/internal/sessions/orchestrator"
	"tutorcoach_backend/platform/config"
	"tutorcoach_backend/platform/logger"
)

// Client talks to the recording bot service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a recording bot client. Returns nil when no base URL is
// configured; the orchestrator treats every call on a nil client as a
// best-effort failure.
func NewClient(cfg config.BotConfig, log *logger.Logger) *Client {
	if cfg.GetBotBaseURL() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetBotBaseURL(), "/"),
		apiKey:  cfg.GetBotAPIKey(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type scheduleBotRequest struct {
	MeetingURL string            `json:"meetingUrl"`
	JoinAt     time.Time         `json:"joinAt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type scheduleBotResponse struct {
	BotID string `json:"botId"`
}

// ScheduleBot books a recording bot for the meeting and returns its id.
func (c *Client) ScheduleBot(ctx context.Context, meetingURL string, joinAt time.Time, metadata map[string]string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("recording bot service not configured")
	}

	payload := scheduleBotRequest{MeetingURL: meetingURL, JoinAt: joinAt, Metadata: metadata}
	var resp scheduleBotResponse
	if err := c.do(ctx, http.MethodPost, "/bots", payload, &resp); err != nil {
		return "", err
	}
	if resp.BotID == "" {
		return "", fmt.Errorf("bot service returned an empty bot id")
	}

	c.log.Info("recording bot scheduled", "bot_id", resp.BotID)
	return resp.BotID, nil
}

// CancelBot cancels a scheduled bot.
func (c *Client) CancelBot(ctx context.Context, botID string) error {
	if c == nil {
		return fmt.Errorf("recording bot service not configured")
	}
	return c.do(ctx, http.MethodDelete, "/bots/"+botID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal bot payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bot request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bot service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode bot response: %w", err)
		}
	}
	return nil
}

// Compile-time check.
var _ orchestrator.BotAdapter = (*Client)(nil)
