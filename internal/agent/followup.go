package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ziadkadry99/crm-agent/internal/llm"
)

// suggestFollowUps proposes action items for the draft. An empty summary
// skips the stage.
func (r *run) suggestFollowUps(ctx context.Context) StageResult {
	d := &r.state.Extracted
	if strings.TrimSpace(d.Summary) != "" {
		content, err := r.complete(ctx, "followups", false, llm.UserMessage(followUpPrompt(d.Summary, d.Sentiment)))
		if err != nil {
			return fallBack(err)
		}
		d.SuggestedFollowUps = parseFollowUps(content, d.Sentiment)
	}
	r.state.Stage = StageFollowupsSuggested
	return proceed()
}

// parseFollowUps reads a JSON array of {action_item, priority}. Valid JSON of
// another shape yields a single generic item; text that is not JSON yields
// the two-item default whose second priority depends on sentiment.
func parseFollowUps(content, sentiment string) []SuggestedFollowUp {
	list, res := decodeArray(content)
	switch res {
	case arrayFound:
		return normalizeFollowUps(list)
	case notAnArray:
		return genericFollowUp()
	default:
		materialsPriority := PriorityLow
		if sentiment == SentimentPositive {
			materialsPriority = PriorityHigh
		}
		return []SuggestedFollowUp{
			{ActionItem: "Schedule next meeting", Priority: PriorityMedium},
			{ActionItem: "Send requested materials", Priority: materialsPriority},
		}
	}
}

// parseFallbackFollowUps is the single-shot variant: anything other than an
// array yields the generic item.
func parseFallbackFollowUps(content string) []SuggestedFollowUp {
	list, res := decodeArray(content)
	if res != arrayFound {
		return genericFollowUp()
	}
	return normalizeFollowUps(list)
}

func genericFollowUp() []SuggestedFollowUp {
	return []SuggestedFollowUp{{ActionItem: "Follow up on discussed topics", Priority: PriorityMedium}}
}

// normalizeFollowUps keeps items with an action and coerces priorities.
// Bare strings are accepted as actions.
func normalizeFollowUps(list []any) []SuggestedFollowUp {
	out := []SuggestedFollowUp{}
	for _, item := range list {
		var fu SuggestedFollowUp
		switch it := item.(type) {
		case string:
			fu.ActionItem = it
		case map[string]any:
			if v, ok := it["action_item"]; ok && v != nil {
				fu.ActionItem = fmt.Sprint(v)
			} else if v, ok := it["action"]; ok && v != nil {
				fu.ActionItem = fmt.Sprint(v)
			}
			if p, ok := it["priority"].(string); ok {
				fu.Priority = p
			}
		default:
			continue
		}
		fu.ActionItem = strings.TrimSpace(fu.ActionItem)
		if fu.ActionItem == "" {
			continue
		}
		fu.Priority = normalizePriority(fu.Priority)
		out = append(out, fu)
	}
	return out
}

func normalizePriority(p string) string {
	switch p = strings.ToLower(strings.TrimSpace(p)); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}
