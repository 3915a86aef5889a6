package agent

import "fmt"

const extractionSystemPrompt = "You are an expert at extracting structured data from medical rep conversations."

func extractionPrompt(text string) string {
	return fmt.Sprintf(`Extract the following information from this text and return ONLY valid JSON:
- hcp_name: Name of the healthcare professional
- title: Their title if mentioned (e.g. Dr., Prof.)
- speciality: Their medical speciality if mentioned
- organisation: Their hospital or practice if mentioned
- datetime: Date and time (ISO format if available)
- summary: Summary of discussion
- materials: Array of {"material_type": str, "quantity": int, "notes": str} if mentioned
- samples: Array of {"product_code": str, "quantity": int, "lot": str} if mentioned
- topics: Array of discussion topics
- outcome: Any outcomes or decisions

Text: %s

Return JSON:`, text)
}

func sentimentPrompt(text string) string {
	return fmt.Sprintf(`Analyze the sentiment of this text and return ONLY a JSON object with "sentiment" (positive/neutral/negative) and "confidence" (0-1):

Text: %s

JSON:`, text)
}

func followUpPrompt(summary, sentiment string) string {
	if sentiment == "" {
		sentiment = "unknown"
	}
	return fmt.Sprintf(`Based on this interaction summary, suggest 2-3 specific follow-up actions. Return ONLY a JSON array of objects with "action_item" (string) and "priority" (high/medium/low):

Summary: %s
Sentiment: %s

JSON:`, summary, sentiment)
}

func fallbackSentimentPrompt(text string) string {
	return fmt.Sprintf("Analyze sentiment (positive/neutral/negative) of: %s. Return only the word.", text)
}

func fallbackFollowUpPrompt(summary string) string {
	return fmt.Sprintf("Suggest 2 follow-up actions for: %s. Return JSON array with 'action_item' and 'priority'.", summary)
}

func editPrompt(recordJSON, instruction string) string {
	return fmt.Sprintf(`Given this interaction data and an edit request, return ONLY a JSON object with fields to update:

Current Interaction:
%s

Edit Request: %s

Return JSON with only fields to update:`, recordJSON, instruction)
}
