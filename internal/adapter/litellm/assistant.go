package litellm

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/Strob0t/MedScribe/internal/resilience"
)

// AssistantConfig describes the remote assistant backing one agent.
type AssistantConfig struct {
	Name         string
	Model        string
	Instructions string
}

// Assistant is an immutable handle to a remote assistant. Each Generate
// call runs on a fresh thread, so concurrent calls share no remote state.
// It implements generation.Generator.
type Assistant struct {
	client *Client
	id     string
	name   string
}

type idResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// Run statuses of the assistants API.
const (
	runQueued     = "queued"
	runInProgress = "in_progress"
	runCompleted  = "completed"
)

// CreateAssistant registers an assistant and returns its handle. It is
// called once per agent by the composition root.
func (c *Client) CreateAssistant(ctx context.Context, cfg AssistantConfig) (*Assistant, error) {
	if cfg.Model == "" {
		return nil, errors.New("create assistant: model is required")
	}
	var resp idResponse
	err := c.postJSON(ctx, "/v1/assistants", map[string]string{
		"name":         cfg.Name,
		"model":        cfg.Model,
		"instructions": cfg.Instructions,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create assistant %s: %w", cfg.Name, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create assistant %s: empty id", cfg.Name)
	}
	return &Assistant{client: c, id: resp.ID, name: cfg.Name}, nil
}

// ID returns the remote assistant ID.
func (a *Assistant) ID() string { return a.id }

// Generate posts input on a new thread, runs the assistant, waits for the
// run to finish and returns the newest assistant message.
func (a *Assistant) Generate(ctx context.Context, input string) (string, error) {
	var thread idResponse
	if err := a.client.postJSON(ctx, "/v1/threads", struct{}{}, &thread); err != nil {
		return "", fmt.Errorf("assistant %s: create thread: %w", a.name, err)
	}
	if thread.ID == "" {
		return "", fmt.Errorf("assistant %s: create thread: empty id", a.name)
	}
	base := "/v1/threads/" + url.PathEscape(thread.ID)

	msg := map[string]string{"role": "user", "content": input}
	if err := a.client.postJSON(ctx, base+"/messages", msg, nil); err != nil {
		return "", fmt.Errorf("assistant %s: add message: %w", a.name, err)
	}

	var run runResponse
	if err := a.client.postJSON(ctx, base+"/runs", map[string]string{"assistant_id": a.id}, &run); err != nil {
		return "", fmt.Errorf("assistant %s: start run: %w", a.name, err)
	}
	if run.ID == "" {
		return "", fmt.Errorf("assistant %s: start run: empty id", a.name)
	}

	runPath := base + "/runs/" + url.PathEscape(run.ID)
	_, err := resilience.Poll(ctx, a.client.poll, func(ctx context.Context) (struct{}, bool, error) {
		if !pending(run.Status) {
			return struct{}{}, true, nil
		}
		if err := a.client.getJSON(ctx, runPath, &run); err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, !pending(run.Status), nil
	})
	if err != nil {
		return "", fmt.Errorf("assistant %s: run %s: %w", a.name, run.ID, err)
	}
	if run.Status != runCompleted {
		return "", fmt.Errorf("assistant %s: %w", a.name, runFailure(run))
	}

	var msgs messageList
	if err := a.client.getJSON(ctx, base+"/messages?order=desc&limit=1", &msgs); err != nil {
		return "", fmt.Errorf("assistant %s: read reply: %w", a.name, err)
	}
	for _, m := range msgs.Data {
		if m.Role != "assistant" {
			continue
		}
		for _, part := range m.Content {
			if part.Type == "text" && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("assistant %s: run %s produced no text", a.name, run.ID)
}

func pending(status string) bool {
	return status == "" || status == runQueued || status == runInProgress
}

func runFailure(r runResponse) error {
	if r.LastError != nil {
		return fmt.Errorf("run ended %s: %s", r.Status, r.LastError.Message)
	}
	return fmt.Errorf("run ended %s", r.Status)
}
