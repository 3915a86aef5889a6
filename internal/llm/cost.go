package llm

// modelPricing holds per-model pricing in USD per 1M tokens.
type modelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

var priceTable = map[string]modelPricing{
	// Groq
	"llama-3.1-8b-instant":    {InputPerMillion: 0.05, OutputPerMillion: 0.08},
	"llama-3.3-70b-versatile": {InputPerMillion: 0.59, OutputPerMillion: 0.79},

	// OpenAI
	"gpt-4o":      {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4o-mini": {InputPerMillion: 0.15, OutputPerMillion: 0.60},
}

// EstimateCost returns the estimated cost in USD for the given model and token counts.
// Returns 0 if the model is not found in the price table (local models included).
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	pricing, ok := priceTable[model]
	if !ok {
		return 0
	}

	inputCost := float64(inputTokens) / 1_000_000.0 * pricing.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000.0 * pricing.OutputPerMillion
	return inputCost + outputCost
}

// Usage accumulates token counts across the calls of one pipeline run.
type Usage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Add records one completion response.
func (u *Usage) Add(resp *CompletionResponse) {
	if resp == nil {
		return
	}
	u.Calls++
	u.InputTokens += resp.InputTokens
	u.OutputTokens += resp.OutputTokens
	u.CostUSD += EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens)
}
