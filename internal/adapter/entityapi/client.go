// Package entityapi implements extraction.Extractor against an HTTP entity
// recognition service that runs each request as an asynchronous job.
//
//	POST /v1/entities/jobs        {"text": "..."}          -> {"job_id": "..."}
//	GET  /v1/entities/jobs/{id}                            -> {"status": "...", "entities": [...]}
package entityapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Strob0t/MedScribe/internal/domain"
	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/clinical"
	"github.com/Strob0t/MedScribe/internal/resilience"
)

// Job statuses reported by the service.
const (
	StatusSubmitted  = "SUBMITTED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

type submitResponse struct {
	JobID string `json:"job_id"`
}

type jobEntity struct {
	Text     string  `json:"text"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

type jobResponse struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Entities []jobEntity `json:"entities"`
}

// Client is the entity extraction adapter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
	poll       resilience.PollConfig
}

// NewClient creates a client. The poll config bounds the wait for each job.
func NewClient(baseURL, apiKey string, timeout time.Duration, poll resilience.PollConfig) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		poll:       poll,
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Extract submits text, waits for the job and returns its entities in the
// order the service reported them. Every failure wraps domain.ErrExtraction.
func (c *Client) Extract(ctx context.Context, text string) ([]clinical.Entity, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", domain.ErrExtraction, err)
	}

	var sub submitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/entities/jobs", body, &sub); err != nil {
		return nil, fmt.Errorf("%w: submit job: %w", domain.ErrExtraction, err)
	}
	if sub.JobID == "" {
		return nil, fmt.Errorf("%w: submit job: empty job id", domain.ErrExtraction)
	}

	path := "/v1/entities/jobs/" + url.PathEscape(sub.JobID)
	job, err := resilience.Poll(ctx, c.poll, func(ctx context.Context) (jobResponse, bool, error) {
		var job jobResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &job); err != nil {
			return job, false, err
		}
		switch job.Status {
		case StatusCompleted:
			return job, true, nil
		case StatusFailed:
			return job, false, fmt.Errorf("job %s failed: %s", sub.JobID, job.Message)
		case StatusSubmitted, StatusInProgress, "":
			return job, false, nil
		default:
			return job, false, fmt.Errorf("job %s: unexpected status %q", sub.JobID, job.Status)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}

	entities := make([]clinical.Entity, 0, len(job.Entities))
	for _, e := range job.Entities {
		if e.Text == "" || e.Category == "" {
			continue
		}
		entities = append(entities, clinical.Entity{
			Text:       e.Text,
			Category:   clinical.Category(e.Category),
			Confidence: agent.Clamp(e.Score),
		})
	}
	return entities, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	call := func(ctx context.Context) error {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
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
			return fmt.Errorf("entity API error %d: %s", resp.StatusCode, string(data))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	if c.breaker != nil {
		return c.breaker.ExecuteContext(ctx, call)
	}
	return call(ctx)
}

// ErrUnavailable is reported by Health when the service does not answer.
var ErrUnavailable = errors.New("entity service unavailable")

// Health pings the service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
