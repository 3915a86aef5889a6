package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/llm"
)

// fallback re-derives the draft with three direct calls, without the staged
// state machine, then reconciles. Provider failures here are terminal.
func (r *run) fallback(ctx context.Context) *ProcessResult {
	r.path = PathFallback

	provider, err := r.p.fallbackProvider()
	if err != nil {
		return r.failure(terminate(KindProvider, fmt.Errorf("Failed to initialize LLM: %w", err)))
	}
	r.provider = provider

	input := r.state.Input()

	content, err := r.complete(ctx, "fallback_extract", false, llm.UserMessage(extractionPrompt(input)))
	if err != nil {
		return r.failure(terminate(KindProvider, err))
	}
	draft := extractDraft(content, input, r.log)

	summary := orDefault(draft.Summary, input)

	content, err = r.complete(ctx, "fallback_sentiment", false, llm.UserMessage(fallbackSentimentPrompt(summary)))
	if err != nil {
		return r.failure(terminate(KindProvider, err))
	}
	draft.Sentiment = parseSentimentWord(content)

	content, err = r.complete(ctx, "fallback_followups", false, llm.UserMessage(fallbackFollowUpPrompt(summary)))
	if err != nil {
		return r.failure(terminate(KindProvider, err))
	}
	draft.SuggestedFollowUps = parseFallbackFollowUps(content)

	r.state.Extracted = draft
	r.state.Stage = StageFollowupsSuggested
	r.state.History = append(r.state.History, llm.AssistantMessage(composeFallbackResponse(draft)))

	if res := r.reconcile(ctx); res.Outcome != Continue {
		r.log.Error("fallback pipeline failed", zap.Error(res.Err))
		return r.failure(res)
	}
	r.state.Stage = StageResponded
	return r.success()
}
