// Package marking implements the answer-marking pipeline: prompt assembly,
// the external model call with a structured-output contract and a degraded
// fallback, and validation of the returned report.
package marking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/panphy/labassistant/internal/model"
)

// ErrMarkingFailed signals that neither the strict nor the degraded call
// produced a usable response body. The student may simply resubmit.
var ErrMarkingFailed = errors.New("marking service produced no usable response")

// DefaultTimeout bounds a single marking call, covering both the strict
// attempt and the degraded retry.
const DefaultTimeout = 90 * time.Second

const maxCompletionTokens = 1500

// Client wraps an OpenAI-compatible API client for answer marking.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New creates a marking client. An empty baseURL targets the default API
// endpoint; a non-positive timeout falls back to DefaultTimeout.
func New(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		timeout: timeout,
	}
}

// Ping verifies the API endpoint is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("marking API health check: %w", err)
	}
	return nil
}

// Mark sends the submission for marking and returns a validated report.
// Primary path requests schema-validated output; any failure triggers one
// retry in loose JSON-object mode. There is no further retry loop: if both
// paths yield nothing usable, ErrMarkingFailed is returned and the caller
// surfaces it as an error report.
func (c *Client) Mark(ctx context.Context, q model.Question, sub model.Submission) (model.MarkingReport, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := buildMessages(q, sub)

	raw, err := c.complete(ctx, msgs, strictFormat(q))
	if err != nil || strings.TrimSpace(raw) == "" {
		slog.Warn("structured marking call failed, retrying in loose JSON mode",
			"question", q.ID, "error", err)
		raw, err = c.complete(ctx, msgs, looseFormat())
	}
	if err != nil {
		return model.MarkingReport{}, fmt.Errorf("%w: %v", ErrMarkingFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		return model.MarkingReport{}, ErrMarkingFailed
	}

	slog.Debug("marking response", "question", q.ID, "raw", raw)
	return Validate(raw, q), nil
}

func (c *Client) complete(ctx context.Context, msgs []openai.ChatCompletionMessage, format *openai.ChatCompletionResponseFormat) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            msgs,
		ResponseFormat:      format,
		MaxCompletionTokens: maxCompletionTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marking API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func strictFormat(q model.Question) *openai.ChatCompletionResponseFormat {
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   "marking_report",
			Schema: reportSchema(q.MaxMarks),
			Strict: true,
		},
	}
}

func looseFormat() *openai.ChatCompletionResponseFormat {
	return &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
}
