// Package calendar is the HTTP client for the external calendar/video
// service. It implements the orchestrator's CalendarAdapter.
package calendar

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

	"golang.org/x/time/rate"
)

// Client talks to the calendar service. The provider throttles aggressively,
// so all calls go through a shared rate limiter.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a calendar client. Returns nil when no base URL is
// configured; callers treat a nil client as a hard adapter failure.
func NewClient(cfg config.CalendarConfig, log *logger.Logger) *Client {
	if cfg.GetCalendarBaseURL() == "" {
		return nil
	}

	rps := cfg.GetCalendarRequestsPerSecond()
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetCalendarBaseURL(), "/"),
		apiKey:  cfg.GetCalendarAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:     log,
	}
}

type createEventRequest struct {
	OrganizerID string    `json:"organizerId"`
	AttendeeID  string    `json:"attendeeId"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type createEventResponse struct {
	EventID    string `json:"eventId"`
	MeetingURL string `json:"meetingUrl"`
}

type updateEventRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CreateEvent books a meeting with the coach impersonated as organizer and
// returns the event id plus the video-meeting link.
func (c *Client) CreateEvent(ctx context.Context, req orchestrator.CalendarEventRequest) (*orchestrator.CalendarEvent, error) {
	if c == nil {
		return nil, fmt.Errorf("calendar service not configured")
	}

	payload := createEventRequest{
		OrganizerID: req.CoachID.String(),
		AttendeeID:  req.LearnerID.String(),
		Title:       req.Title,
		Start:       req.Start,
		End:         req.End,
	}

	var resp createEventResponse
	if err := c.do(ctx, http.MethodPost, "/events", req.CoachID.String(), payload, &resp); err != nil {
		return nil, err
	}
	if resp.EventID == "" || resp.MeetingURL == "" {
		return nil, fmt.Errorf("calendar service returned an incomplete event")
	}

	c.log.Info("calendar event created", "event_id", resp.EventID)
	return &orchestrator.CalendarEvent{EventID: resp.EventID, MeetingURL: resp.MeetingURL}, nil
}

// UpdateEvent moves an existing event to a new slot.
func (c *Client) UpdateEvent(ctx context.Context, eventID string, start, end time.Time) error {
	if c == nil {
		return fmt.Errorf("calendar service not configured")
	}
	return c.do(ctx, http.MethodPatch, "/events/"+eventID, "", updateEventRequest{Start: start, End: end}, nil)
}

// CancelEvent cancels an event.
func (c *Client) CancelEvent(ctx context.Context, eventID string) error {
	if c == nil {
		return fmt.Errorf("calendar service not configured")
	}
	return c.do(ctx, http.MethodDelete, "/events/"+eventID, "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, impersonate string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("calendar rate limit wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal calendar payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if impersonate != "" {
		req.Header.Set("X-Impersonate-Organizer", impersonate)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendar request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("calendar service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode calendar response: %w", err)
		}
	}
	return nil
}

// Compile-time check.
var _ orchestrator.CalendarAdapter = (*Client)(nil)
