// Package promptbuilder generates the prompts for the sentiment oracle.
// The oracle scores one ticker at a time; prompts stay deliberately small so
// the score reflects sentiment, not our own technical inputs.
package promptbuilder

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SystemPrompt defines the global system instructions for the sentiment oracle.
const SystemPrompt = `You are an equity market sentiment scorer. You assess the current news flow, analyst tone and investor positioning around a single US-listed stock.

## OBJECTIVE
Produce one calibrated sentiment reading for the requested ticker as of the requested date.

## SCORING RULES
- score is a number in [-1, 1]: -1 extreme bearish, 0 neutral, 1 extreme bullish
- confidence is a number in [0, 100]: how certain you are in the score
- Use low confidence when recent information about the company is thin
- Do not score the broad market; score the company relative to it
- Hard negative catalysts (fraud, guidance withdrawal, going-concern doubt) belong below -0.4

## OUTPUT FORMAT

Respond with ONLY valid JSON. No markdown, no code blocks, no additional text.

{
  "score": 0.0,
  "confidence": 0,
  "reasoning": "one or two sentences naming the drivers"
}

## CRITICAL REMINDERS

1. Output ONLY the JSON object - nothing else
2. Ensure JSON is valid and parseable
3. Keep reasoning short and specific
4. When information is stale or contradictory, pull the score toward 0 and lower confidence`

// PromptBuilder constructs prompts for the sentiment oracle.
type PromptBuilder struct {
	logger *zap.Logger
}

// NewPromptBuilder creates a new PromptBuilder instance.
func NewPromptBuilder(logger *zap.Logger) *PromptBuilder {
	return &PromptBuilder{logger: logger}
}

// BuildTickerPrompt constructs the user prompt for one sentiment request.
func (pb *PromptBuilder) BuildTickerPrompt(ticker string, asOf time.Time) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Sentiment Request: %s\n\n", ticker))
	sb.WriteString(fmt.Sprintf("**As of:** %s\n", asOf.Format("2006-01-02")))

	sb.WriteString("\n## Instructions\n\n")
	sb.WriteString(fmt.Sprintf("Assess current market sentiment for %s and respond in the JSON format from the system instructions.\n", ticker))

	return sb.String()
}
