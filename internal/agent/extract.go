package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/llm"
)

// extract turns the raw input into a draft. Unreadable output falls back to
// a draft carrying the raw text as its summary; only provider failures
// leave the staged pipeline.
func (r *run) extract(ctx context.Context) StageResult {
	input := r.state.Input()

	content, err := r.complete(ctx, "extract", true,
		llm.SystemMessage(extractionSystemPrompt),
		llm.UserMessage(extractionPrompt(input)),
	)
	if err != nil {
		return fallBack(err)
	}

	r.state.Extracted = extractDraft(content, input, r.log)
	r.state.Stage = StageExtracted
	return proceed()
}

func extractDraft(content, input string, log *zap.Logger) ExtractedDraft {
	draft, err := parseDraft(content, input)
	if err != nil {
		log.Warn("extraction output unreadable, using raw text", zap.Error(err))
		return fallbackDraft(input)
	}
	return draft
}
