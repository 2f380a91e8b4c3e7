package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/promptbuilder"
	"github.com/vadiminshakov/folio/pkg/backoff"
)

const (
	chatCompletionsPath = "/chat/completions"
	oracleMaxTokens     = 600
)

// SentimentOracle scores per-ticker sentiment through an OpenAI-compatible
// chat API. Responses are strict JSON parsed into SentimentAssessment.
type SentimentOracle struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
	prompts    *promptbuilder.PromptBuilder
	retry      *backoff.Policy
	l          *zap.Logger
}

// NewSentimentOracle creates a client for OpenAI-compatible APIs. The API key
// is read from the environment variable named in the config.
func NewSentimentOracle(l *zap.Logger, cfg config.Oracle, prompts *promptbuilder.PromptBuilder) (*SentimentOracle, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, errors.Errorf("oracle API key env %s is empty", cfg.APIKeyEnv)
	}

	return &SentimentOracle{
		apiURL:  strings.TrimSuffix(cfg.BaseURL, "/") + chatCompletionsPath,
		apiKey:  apiKey,
		model:   cfg.Model,
		prompts: prompts,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retry: backoff.New(backoff.WithMaxAttempts(cfg.MaxRetries)),
		l:     l,
	}, nil
}

// chatRequest represents the request structure for OpenAI-compatible APIs
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents the response structure from OpenAI-compatible APIs
type chatResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []choice  `json:"choices"`
	Usage   usage     `json:"usage"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Score sends a sentiment request to the oracle and returns the validated
// assessment. Client errors other than rate limits are not retried.
func (o *SentimentOracle) Score(ctx context.Context, ticker string) (*domain.SentimentAssessment, error) {
	reqBody := chatRequest{
		Model: o.model,
		Messages: []message{
			{
				Role:    "system",
				Content: promptbuilder.SystemPrompt,
			},
			{
				Role:    "user",
				Content: o.prompts.BuildTickerPrompt(ticker, time.Now()),
			},
		},
		Temperature: 0.0, // deterministic responses for repeatable scoring
		MaxTokens:   oracleMaxTokens,
	}

	raw, err := backoff.DoWithData(o.retry, ctx, func(ctx context.Context) (string, error) {
		return o.sendRequest(ctx, reqBody)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "sentiment for %s", ticker)
	}

	assessment, err := domain.ParseSentiment(raw)
	if err != nil {
		o.l.Warn("oracle returned unparseable sentiment",
			zap.String("ticker", ticker),
			zap.String("raw", raw),
			zap.Error(err))
		return nil, errors.Wrapf(err, "parse sentiment for %s", ticker)
	}

	return assessment, nil
}

func (o *SentimentOracle) sendRequest(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", backoff.Permanent(errors.Wrap(err, "failed to marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", backoff.Permanent(errors.Wrap(err, "failed to create HTTP request"))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", o.apiKey))

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("oracle API returned status %d: %s", resp.StatusCode, string(body))
		// 4xx responses repeat identically; only rate limits are worth retrying.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", errors.Wrap(err, "failed to unmarshal response")
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("oracle API error: %s (type: %s, code: %s)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if len(chatResp.Choices) == 0 {
		return "", errors.New("oracle API returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}
