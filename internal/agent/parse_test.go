package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSentimentAlwaysInEnum(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"json positive", `{"sentiment": "positive", "confidence": 0.9}`, SentimentPositive},
		{"json capitalised", `{"sentiment": "Negative"}`, SentimentNegative},
		{"json unknown label", `{"sentiment": "ecstatic"}`, SentimentNeutral},
		{"json missing label", `{"confidence": 0.4}`, SentimentNeutral},
		{"json wrong type", `{"sentiment": 5}`, SentimentNeutral},
		{"fenced json", "```json\n{\"sentiment\": \"negative\"}\n```", SentimentNegative},
		{"prose positive first", "Not negative; overall positive.", SentimentPositive},
		{"prose negative", "Clearly NEGATIVE tone", SentimentNegative},
		{"prose nothing", "hard to say", SentimentNeutral},
		{"empty", "", SentimentNeutral},
		{"json array", `["positive"]`, SentimentPositive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseSentiment(tc.content).Sentiment)
		})
	}
}

func TestParseSentimentWord(t *testing.T) {
	assert.Equal(t, SentimentPositive, parseSentimentWord("Positive"))
	assert.Equal(t, SentimentNegative, parseSentimentWord("  negative.\n"))
	assert.Equal(t, SentimentNeutral, parseSentimentWord("The sentiment is positive"))
	assert.Equal(t, SentimentNeutral, parseSentimentWord(""))
}

func TestParseFollowUpsDefaults(t *testing.T) {
	positive := parseFollowUps("no json here", SentimentPositive)
	assert.Equal(t, []SuggestedFollowUp{
		{ActionItem: "Schedule next meeting", Priority: PriorityMedium},
		{ActionItem: "Send requested materials", Priority: PriorityHigh},
	}, positive)

	for _, s := range []string{SentimentNeutral, SentimentNegative, ""} {
		got := parseFollowUps("no json here", s)
		require.Len(t, got, 2)
		assert.Equal(t, PriorityLow, got[1].Priority, "sentiment %q", s)
	}

	assert.Equal(t, genericFollowUp(), parseFollowUps(`{"action_item": "x"}`, SentimentPositive))
	assert.Equal(t, genericFollowUp(), parseFollowUps(`"just a string"`, SentimentPositive))
}

func TestParseFollowUpsNormalises(t *testing.T) {
	got := parseFollowUps(`Here are some:
[
  {"action_item": "Send study", "priority": "HIGH"},
  {"action_item": "Call back", "priority": "asap"},
  {"action_item": "", "priority": "low"},
  {"priority": "low"},
  "Drop off samples",
  42
]`, SentimentNeutral)

	assert.Equal(t, []SuggestedFollowUp{
		{ActionItem: "Send study", Priority: PriorityHigh},
		{ActionItem: "Call back", Priority: PriorityMedium},
		{ActionItem: "Drop off samples", Priority: PriorityMedium},
	}, got)
}

func TestParseFallbackFollowUps(t *testing.T) {
	assert.Equal(t, genericFollowUp(), parseFallbackFollowUps("nope"))
	assert.Equal(t, genericFollowUp(), parseFallbackFollowUps(`{"a": 1}`))
	assert.Equal(t,
		[]SuggestedFollowUp{{ActionItem: "Email deck", Priority: PriorityLow}},
		parseFallbackFollowUps(`[{"action_item": "Email deck", "priority": "low"}]`))
}

func TestParseDraftCoercesLooseShapes(t *testing.T) {
	d, err := parseDraft(`{
		"hcp_name": " Dr. Meera Patel ",
		"summary": "Talked",
		"sentiment": "Happy",
		"topics": "efficacy, dosing",
		"materials": {"material_type": "brochure", "quantity": 2.6},
		"samples": ["CX-10", {"product_code": "", "quantity": 1}],
		"outcome": null,
		"suggested_follow_ups": "ignored"
	}`, "raw")
	require.NoError(t, err)

	assert.Equal(t, "Dr. Meera Patel", d.HCPName)
	assert.Equal(t, SentimentNeutral, d.Sentiment)
	assert.Equal(t, []string{"efficacy", "dosing"}, d.Topics)
	assert.Equal(t, []DraftMaterial{{MaterialType: "brochure", Quantity: 3}}, d.Materials)
	assert.Equal(t, []DraftSample{{ProductCode: "CX-10"}}, d.Samples)
	assert.Empty(t, d.Outcome)
	assert.Nil(t, d.SuggestedFollowUps)
}

func TestParseDraftRejectsWrongShapes(t *testing.T) {
	for _, content := range []string{
		"not json",
		`["a", "b"]`,
		`{"topics": [1, {"x": 2}], "summary": 7}`,
		`{"materials": [{"material_type": "x", "quantity": -3}], "summary": {"a": 1}}`,
	} {
		_, err := parseDraft(content, "raw")
		assert.ErrorIs(t, err, ErrParse, content)
	}
}

func TestParseDraftNegativeQuantityDropsToZero(t *testing.T) {
	d, err := parseDraft(`{"summary": "s", "samples": [{"product_code": "A", "quantity": -2}]}`, "raw")
	require.NoError(t, err)
	require.Len(t, d.Samples, 1)
	assert.Zero(t, d.Samples[0].Quantity)
}

func TestFallbackDraft(t *testing.T) {
	d := fallbackDraft("the raw text")
	assert.Equal(t, "the raw text", d.Summary)
	assert.Empty(t, d.HCPName)
	assert.NotNil(t, d.Materials)
	assert.NotNil(t, d.Samples)
	assert.NotNil(t, d.Topics)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```{\"a\":1}```"))
	assert.Equal(t, `[1]`, stripFences("  [1]  "))
}

func TestParseEditPatch(t *testing.T) {
	patch, err := parseEditPatch(`{"summary": "x", "updates": "not-an-object"}`)
	require.NoError(t, err)
	assert.Equal(t, "x", patch["summary"])

	_, err = parseEditPatch(`[1, 2]`)
	assert.ErrorIs(t, err, ErrParse)
}
