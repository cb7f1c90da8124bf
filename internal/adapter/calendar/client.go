// Package calendar implements calendar.Calendar against an HTTP scheduling
// service.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain"
	portcal "github.com/Strob0t/MedScribe/internal/port/calendar"
	"github.com/Strob0t/MedScribe/internal/resilience"
)

// Client creates events in one calendar.
type Client struct {
	baseURL    string
	calendarID string
	token      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a calendar client.
func NewClient(baseURL, calendarID, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		calendarID: calendarID,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type eventRequest struct {
	Subject string `json:"subject"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Body    string `json:"body"`
}

// CreateEvent books ev and returns the event ID. Failures wrap
// domain.ErrExternalAction.
func (c *Client) CreateEvent(ctx context.Context, ev portcal.Event) (string, error) {
	if !ev.End.After(ev.Start) {
		return "", fmt.Errorf("%w: event end must be after start", domain.ErrExternalAction)
	}
	body, err := json.Marshal(eventRequest{
		Subject: ev.Subject,
		Start:   ev.Start.Format(time.RFC3339),
		End:     ev.End.Format(time.RFC3339),
		Body:    ev.Body,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal event: %v", domain.ErrExternalAction, err)
	}

	var id string
	call := func(ctx context.Context) error {
		path := "/v1/calendars/" + url.PathEscape(c.calendarID) + "/events"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("calendar API error %d: %s", resp.StatusCode, string(data))
		}

		var out struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if out.ID == "" {
			return fmt.Errorf("calendar API returned no event id")
		}
		id = out.ID
		return nil
	}

	if c.breaker != nil {
		err = c.breaker.ExecuteContext(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("%w: create event: %w", domain.ErrExternalAction, err)
	}
	return id, nil
}
