package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SentimentAssessment is the opaque scorer's verdict for a ticker.
// Score is in [-1, 1], Confidence in [0, 100].
type SentimentAssessment struct {
	Score      decimal.Decimal `json:"score"`
	Confidence decimal.Decimal `json:"confidence"`
	Reasoning  string          `json:"reasoning"`
}

// ParseSentiment builds a validated assessment from a raw oracle response.
// The response may be wrapped in markdown fences.
func ParseSentiment(raw string) (*SentimentAssessment, error) {
	payload := sanitizeOraclePayload(raw)

	if !json.Valid([]byte(payload)) {
		return nil, errors.New("invalid JSON structure")
	}

	var assessment SentimentAssessment
	if err := json.Unmarshal([]byte(payload), &assessment); err != nil {
		return nil, errors.Wrap(err, "JSON unmarshal error")
	}

	if err := assessment.Validate(); err != nil {
		return nil, err
	}

	return &assessment, nil
}

func sanitizeOraclePayload(raw string) string {
	payload := strings.TrimSpace(raw)
	payload = strings.TrimPrefix(payload, "```json")
	payload = strings.TrimPrefix(payload, "```")
	payload = strings.TrimSuffix(payload, "```")
	return strings.TrimSpace(payload)
}

// Validate validates assessment bounds.
func (s *SentimentAssessment) Validate() error {
	one := decimal.NewFromInt(1)
	if s.Score.LessThan(one.Neg()) || s.Score.GreaterThan(one) {
		return fmt.Errorf("invalid score: %s (must be -1..1)", s.Score.String())
	}
	hundred := decimal.NewFromInt(100)
	if s.Confidence.IsNegative() || s.Confidence.GreaterThan(hundred) {
		return fmt.Errorf("invalid confidence: %s (must be 0-100)", s.Confidence.String())
	}
	if s.Reasoning == "" {
		return errors.New("reasoning field is required")
	}
	return nil
}
