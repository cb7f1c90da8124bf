package litellm

import (
	"context"
	"errors"
	"fmt"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Completer sends single-turn chat completions to one model. It implements
// llm.Completer.
type Completer struct {
	client *Client
	model  string
	json   bool
}

// NewCompleter returns a completer for model. When jsonMode is set the
// proxy is asked for a JSON object reply; the caller still parses it
// strictly.
func (c *Client) NewCompleter(model string, jsonMode bool) *Completer {
	return &Completer{client: c, model: model, json: jsonMode}
}

// Complete returns the text of the first choice.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if c.json {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := c.client.postJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices in reply")
	}
	return resp.Choices[0].Message.Content, nil
}
