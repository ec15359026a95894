// Package genai is the HTTP client for the text-generation service used by the
// inference-backed ranking dimensions.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"placement-workers/internal/common/errors"
	commonhttp "placement-workers/internal/common/http"
	"placement-workers/internal/common/logger"
)

const generatePath = "/api/ai/generate"

// Config configures Client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client issues a single generation request per call. Retries are the caller's
// decision, guided by errors.IsRetryable.
type Client struct {
	config *Config
	http   *commonhttp.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	httpClient := commonhttp.NewClient(config.Timeout).
		WithHeader("Content-Type", "application/json")
	if config.APIKey != "" {
		httpClient = httpClient.WithHeader("Authorization", "Bearer "+config.APIKey)
	}
	return &Client{
		config: config,
		http:   httpClient,
		logger: log.With(map[string]interface{}{"component": "genai"}),
	}
}

type generateRequest struct {
	Prompt           string  `json:"prompt"`
	Model            string  `json:"model,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"response_mime_type"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Rank sends prompt and decodes the JSON ranking the model returns.
//
// Errors are StandardErrors: INFERENCE_TIMEOUT (retryable) for deadlines, transport
// failures and 5xx responses; INFERENCE_QUOTA_EXCEEDED for 429; INFERENCE_AUTH_FAILED
// for 401/403; INFERENCE_RESPONSE_INVALID for anything unparseable.
func (c *Client) Rank(ctx context.Context, prompt string) (*RankingResponse, error) {
	text, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseRankingResponse(text)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:           prompt,
		Model:            c.config.Model,
		Temperature:      c.config.Temperature,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", errors.NewInferenceResponseInvalidError(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewInferenceResponseInvalidError(fmt.Sprintf("build request: %v", err))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.NewInferenceTimeoutError(err.Error())
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewInferenceTimeoutError(fmt.Sprintf("read response: %v", err))
	}

	c.logger.Debug("inference call finished", map[string]interface{}{
		"status":     resp.StatusCode,
		"durationMs": time.Since(start).Milliseconds(),
	})

	if err := classifyStatus(resp.StatusCode, payload); err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", errors.NewInferenceResponseInvalidError(fmt.Sprintf("decode envelope: %v", err))
	}
	return out.Text, nil
}

func classifyStatus(status int, payload []byte) error {
	details := fmt.Sprintf("status %d: %s", status, truncate(string(payload), 200))
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests:
		return errors.NewInferenceQuotaExceededError(details)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.NewInferenceAuthFailedError(details)
	case status == http.StatusRequestTimeout || status >= 500:
		return errors.NewInferenceTimeoutError(details)
	default:
		return errors.NewInferenceResponseInvalidError(details)
	}
}

// truncate keeps the first n runes of s.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
