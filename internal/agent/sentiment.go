package agent

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/llm"
)

// SentimentResult is the outcome of a sentiment classification.
type SentimentResult struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// analyzeSentiment sets the draft sentiment from the summary. An empty
// summary skips the stage.
func (r *run) analyzeSentiment(ctx context.Context) StageResult {
	summary := r.state.Extracted.Summary
	if strings.TrimSpace(summary) != "" {
		content, err := r.complete(ctx, "sentiment", false, llm.UserMessage(sentimentPrompt(summary)))
		if err != nil {
			return fallBack(err)
		}
		res := parseSentiment(content)
		r.state.Extracted.Sentiment = res.Sentiment
		r.log.Debug("sentiment classified",
			zap.String("sentiment", res.Sentiment),
			zap.Float64("confidence", res.Confidence),
		)
	}
	r.state.Stage = StageSentimentAnalyzed
	return proceed()
}

// parseSentiment reads a {sentiment, confidence} object and otherwise scans
// the text for "positive" then "negative", defaulting to neutral.
func parseSentiment(content string) SentimentResult {
	if obj, err := decodeObject(content); err == nil {
		res := SentimentResult{Sentiment: SentimentNeutral}
		if s, ok := obj["sentiment"].(string); ok {
			res.Sentiment = clampSentiment(s)
		}
		if c, ok := obj["confidence"].(float64); ok {
			res.Confidence = c
		}
		return res
	}

	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, SentimentPositive):
		return SentimentResult{Sentiment: SentimentPositive, Confidence: 0.8}
	case strings.Contains(lower, SentimentNegative):
		return SentimentResult{Sentiment: SentimentNegative, Confidence: 0.8}
	default:
		return SentimentResult{Sentiment: SentimentNeutral, Confidence: 0.7}
	}
}

// parseSentimentWord reads a one-word reply: the first word, lowercased.
func parseSentimentWord(content string) string {
	fields := strings.Fields(strings.ToLower(content))
	if len(fields) == 0 {
		return SentimentNeutral
	}
	return clampSentiment(strings.Trim(fields[0], `.,;:!"'*`))
}

// clampSentiment maps anything outside the three labels to neutral.
func clampSentiment(s string) string {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return s
	default:
		return SentimentNeutral
	}
}
