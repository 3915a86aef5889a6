package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/ziadkadry99/crm-agent/internal/llm"
)

// AnalyzeSentiment classifies text on its own, outside a pipeline run.
func (p *Pipeline) AnalyzeSentiment(ctx context.Context, text string) (SentimentResult, error) {
	if strings.TrimSpace(text) == "" {
		return SentimentResult{}, errors.New("text is required")
	}
	if err := llm.CheckCredential(p.provider); err != nil {
		return SentimentResult{}, err
	}
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(sentimentPrompt(text))},
	})
	if err != nil {
		return SentimentResult{}, err
	}
	return parseSentiment(resp.Content), nil
}

// SuggestFollowUps proposes follow-up actions for a summary on its own,
// outside a pipeline run.
func (p *Pipeline) SuggestFollowUps(ctx context.Context, summary, sentiment string) ([]SuggestedFollowUp, error) {
	if strings.TrimSpace(summary) == "" {
		return nil, errors.New("summary is required")
	}
	if err := llm.CheckCredential(p.provider); err != nil {
		return nil, err
	}
	sentiment = strings.ToLower(strings.TrimSpace(sentiment))
	resp, err := p.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(followUpPrompt(summary, sentiment))},
	})
	if err != nil {
		return nil, err
	}
	return parseFollowUps(resp.Content, sentiment), nil
}
