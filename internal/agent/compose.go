package agent

import (
	"fmt"
	"strings"
)

// ComposeResponse renders the markdown reply for a staged run. It is pure:
// the same draft and id always give the same text.
func ComposeResponse(d ExtractedDraft, interactionID string) string {
	var b strings.Builder

	b.WriteString("I've extracted the following information:\n\n")
	fmt.Fprintf(&b, "**HCP:** %s\n", orDefault(d.HCPName, "Not specified"))
	fmt.Fprintf(&b, "**Summary:** %s\n", orDefault(d.Summary, "No summary"))
	fmt.Fprintf(&b, "**Sentiment:** %s\n", titleCase(orDefault(d.Sentiment, SentimentNeutral)))
	fmt.Fprintf(&b, "**Topics:** %s\n", orDefault(strings.Join(d.Topics, ", "), "None"))
	fmt.Fprintf(&b, "**Materials:** %d item(s)\n", len(d.Materials))
	fmt.Fprintf(&b, "**Samples:** %d item(s)\n\n", len(d.Samples))

	if len(d.SuggestedFollowUps) > 0 {
		b.WriteString("\n**Suggested Follow-ups:**\n")
		for i, fu := range d.SuggestedFollowUps {
			fmt.Fprintf(&b, "%d. %s (%s priority)\n", i+1,
				orDefault(fu.ActionItem, "N/A"), orDefault(fu.Priority, PriorityMedium))
		}
	}

	out := b.String()
	if interactionID != "" {
		out = strings.TrimRight(out, "\n") + "\n\n**Interaction ID:** " + interactionID
	}
	return out
}

// composeFallbackResponse renders the short reply of the single-shot path.
func composeFallbackResponse(d ExtractedDraft) string {
	return fmt.Sprintf("Extracted information:\n- HCP: %s\n- Summary: %s\n- Sentiment: %s",
		orDefault(d.HCPName, "Not specified"),
		orDefault(d.Summary, "N/A"),
		orDefault(d.Sentiment, SentimentNeutral),
	)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
