package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config generative-AI endpoint settings
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	RetryCount int
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

var errEmptyCompletion = errors.New("empty completion")

// Client generateContent client; string in, string out.
// Both the question and the recommendation generator are served by it.
type Client struct {
	httpClient *resty.Client
	model      string
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates the client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500 || r.StatusCode() == 429
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// Generate returns the model's text for prompt, or "" on any failure.
func (c *Client) Generate(ctx context.Context, prompt string) string {
	text, err := c.GenerateContent(ctx, prompt)
	if err != nil {
		c.logger.Warn("Generative AI call failed",
			zap.String("model", c.model),
			zap.Int("prompt_len", len(prompt)),
			zap.Error(err),
		)
		return ""
	}
	return text
}

// GenerateContent is Generate with the error kept
func (c *Client) GenerateContent(ctx context.Context, prompt string) (string, error) {
	request := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}

	var response generateResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetPathParam("model", c.model).
		SetQueryParam("key", c.apiKey).
		SetBody(request).
		SetResult(&response).
		SetError(&response).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("failed to call generative AI: %w", err)
	}

	if resp.IsError() {
		if response.Error != nil {
			return "", fmt.Errorf("generative AI error: %s (status: %d)", response.Error.Message, resp.StatusCode())
		}
		return "", fmt.Errorf("generative AI error: status %d", resp.StatusCode())
	}

	var sb strings.Builder
	if len(response.Candidates) > 0 {
		for _, p := range response.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errEmptyCompletion
	}

	c.logger.Debug("Generative AI call succeeded",
		zap.String("model", c.model),
		zap.Int("completion_len", len(text)),
	)
	return text, nil
}
