package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/llm"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

const meeraInput = "Met Dr. Meera Patel today, discussed new cardiac drug, she seemed happy. Gave 2 boxes of pamphlets."

const meeraExtraction = "```json\n" + `{
  "hcp_name": "Dr. Meera Patel",
  "datetime": "2025-03-04T10:30:00",
  "summary": "Discussed the new cardiac drug; Dr. Patel seemed happy.",
  "topics": ["new cardiac drug"],
  "materials": [{"material_type": "pamphlets", "quantity": "2"}],
  "samples": [],
  "outcome": null
}` + "\n```"

func scriptMeera(p *fakeProvider) {
	p.on(onExtract, meeraExtraction).
		on(onSentiment, `{"sentiment": "positive", "confidence": 0.92}`).
		on(onFollowUps, `[{"action_item": "Send clinical trial data", "priority": "high"}, {"action_item": "Book lunch talk", "priority": "urgent"}]`)
}

func TestScenarioANewHCPCreated(t *testing.T) {
	f := newFixture(t)
	scriptMeera(f.provider)
	ctx := context.Background()

	res := f.pipeline.Process(ctx, meeraInput, "rep_1")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, PathStaged, res.Path)
	assert.Equal(t, SentimentPositive, res.Sentiment)

	hcps, err := f.store.ListHCPs(ctx)
	require.NoError(t, err)
	require.Len(t, hcps, 1)
	assert.Equal(t, "Dr. Meera Patel", hcps[0].Name)

	require.NotNil(t, res.Interaction)
	it := res.Interaction
	assert.Equal(t, hcps[0].ID, it.HCPID)
	assert.Equal(t, records.ModeConversational, it.Mode)
	assert.Equal(t, meeraInput, it.SourceRaw)
	assert.Equal(t, "rep_1", it.RepID)
	assert.Equal(t, SentimentPositive, it.Sentiment)
	require.NotNil(t, it.Datetime)

	require.Len(t, it.Materials, 1)
	assert.Contains(t, it.Materials[0].MaterialType, "pamphlet")
	assert.Equal(t, 2, it.Materials[0].Quantity)

	require.Len(t, it.FollowUps, 2)
	for _, fu := range it.FollowUps {
		assert.Equal(t, "rep_1", fu.Owner)
		assert.Equal(t, records.FollowUpStatusOpen, fu.Status)
		assert.Nil(t, fu.DueDate)
	}
	assert.Equal(t, []SuggestedFollowUp{
		{ActionItem: "Send clinical trial data", Priority: PriorityHigh},
		{ActionItem: "Book lunch talk", Priority: PriorityMedium},
	}, res.SuggestedFollowUps)

	assert.True(t, strings.HasPrefix(res.AIResponse, "I've extracted the following information:"))
	assert.Contains(t, res.AIResponse, "**Interaction ID:** "+it.ID)
	assert.Equal(t, 3, res.Usage.Calls)

	// The extraction call carries the system instruction; the others do not.
	first := f.provider.call(0)
	require.Len(t, first.Messages, 2)
	assert.Equal(t, llm.RoleSystem, first.Messages[0].Role)
	assert.True(t, first.JSONMode)

	entries, err := f.audit.Query(ctx, audit.QueryFilter{EntityID: it.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionCreated, entries[0].Action)
	assert.Equal(t, "rep_1", entries[0].Actor)
}

func TestScenarioBReusesExistingHCP(t *testing.T) {
	f := newFixture(t)
	scriptMeera(f.provider)
	ctx := context.Background()

	first := f.pipeline.Process(ctx, meeraInput, "")
	require.True(t, first.Success, first.Error)
	second := f.pipeline.Process(ctx, meeraInput, "")
	require.True(t, second.Success, second.Error)

	assert.Equal(t, first.Interaction.HCPID, second.Interaction.HCPID)
	assert.NotEqual(t, first.Interaction.ID, second.Interaction.ID)
	assert.Equal(t, DefaultRepID, second.Interaction.RepID)

	hcps, err := f.store.ListHCPs(ctx)
	require.NoError(t, err)
	assert.Len(t, hcps, 1)
}

func TestReusesExistingHCPWithNonASCIIName(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, `{"hcp_name": "Dr. Özlem Ünal", "summary": "Discussed dosing"}`).
		on(onSentiment, `{"sentiment": "neutral"}`).
		on(onFollowUps, `[]`)
	ctx := context.Background()

	first := f.pipeline.Process(ctx, "Met Dr. Özlem Ünal about dosing", "")
	require.True(t, first.Success, first.Error)
	second := f.pipeline.Process(ctx, "Met Dr. Özlem Ünal again", "")
	require.True(t, second.Success, second.Error)

	require.Equal(t, first.Interaction.HCPID, second.Interaction.HCPID)
	hcps, err := f.store.ListHCPs(ctx)
	require.NoError(t, err)
	assert.Len(t, hcps, 1)
}

func TestReconcileMatchesBySubstringAndIgnoresOtherFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.store.Store.CreateHCP(ctx, records.HCPCreate{Name: "Dr. Anita Rao", Speciality: "Cardiology"})
	require.NoError(t, err)

	f.provider.on(onExtract, `{"hcp_name": "anita rao", "speciality": "Oncology", "summary": "Quick chat"}`).
		on(onSentiment, `neutral`).
		on(onFollowUps, `[]`)

	res := f.pipeline.Process(ctx, "quick chat with anita rao", "rep_2")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, existing.ID, res.Interaction.HCPID)

	got, err := f.store.Store.GetHCP(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", got.Speciality)
}

func TestNewHCPCarriesExtractedDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.provider.on(onExtract, `{"hcp_name": "Dr. Vikram Sethi", "title": "Prof.", "organisation": "AIIMS", "summary": "Intro"}`).
		on(onSentiment, `{"sentiment": "neutral"}`).
		on(onFollowUps, `[]`)

	res := f.pipeline.Process(ctx, "intro with prof sethi", "")
	require.True(t, res.Success, res.Error)

	h, err := f.store.Store.GetHCP(ctx, res.Interaction.HCPID)
	require.NoError(t, err)
	assert.Equal(t, "Prof.", h.Title)
	assert.Equal(t, "AIIMS", h.Organisation)
	assert.Empty(t, h.Speciality)
}

func TestScenarioCMissingCredential(t *testing.T) {
	f := newFixture(t)
	unavailable, err := llm.NewProvider(llm.Options{Provider: "groq", Model: "llama-3.1-8b-instant"})
	require.ErrorIs(t, err, llm.ErrMissingCredential)

	p := New(Options{Provider: unavailable, Store: f.store, CredentialEnvVar: "GROQ_API_KEY"})
	res := p.Process(context.Background(), meeraInput, "rep_1")

	assert.False(t, res.Success)
	assert.Equal(t, KindCredentialMissing, res.ErrorKind)
	assert.Contains(t, res.Error, "GROQ_API_KEY")
	assert.Contains(t, res.Error, "missing API credential")
	assert.Zero(t, f.store.calls.Load(), "no store calls expected")
	assert.Zero(t, f.provider.callCount(), "no model calls expected")
}

func TestMissingProviderIsCredentialFailure(t *testing.T) {
	f := newFixture(t)
	p := New(Options{Store: f.store})
	res := p.Process(context.Background(), "hello", "")
	assert.False(t, res.Success)
	assert.Equal(t, KindCredentialMissing, res.ErrorKind)
}

func TestScenarioDGarbageExtraction(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, "Sorry, I cannot help with that.").
		on(onSentiment, "The tone is mostly negative.").
		on(onFollowUps, `not json at all`)

	res := f.pipeline.Process(context.Background(), meeraInput, "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, PathStaged, res.Path)

	d := res.ExtractedData
	require.NotNil(t, d)
	assert.Equal(t, meeraInput, d.Summary)
	assert.Empty(t, d.HCPName)
	assert.Empty(t, d.Materials)
	assert.Empty(t, d.Samples)
	assert.Empty(t, d.Topics)
	assert.NotNil(t, d.Materials)
	assert.NotNil(t, d.Samples)
	assert.NotNil(t, d.Topics)

	assert.Equal(t, SentimentNegative, res.Sentiment)
	assert.Equal(t, []SuggestedFollowUp{
		{ActionItem: "Schedule next meeting", Priority: PriorityMedium},
		{ActionItem: "Send requested materials", Priority: PriorityLow},
	}, res.SuggestedFollowUps)
	assert.Empty(t, res.Interaction.HCPID)
}

func TestExtractionWrongShapeFallsBackToRawText(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, `{"hcp_name": {"first": "Meera"}, "summary": "x"}`).
		on(onSentiment, `{"sentiment": "positive"}`).
		on(onFollowUps, `[]`)

	res := f.pipeline.Process(context.Background(), "raw notes", "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "raw notes", res.ExtractedData.Summary)
}

func TestEmptyExtractedSummaryUsesRawInput(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, `{"hcp_name": "Dr. X", "summary": ""}`).
		on(onSentiment, `{"sentiment": "neutral"}`).
		on(onFollowUps, `[]`)

	res := f.pipeline.Process(context.Background(), "saw dr x", "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "saw dr x", res.ExtractedData.Summary)
}

func TestInvalidDatetimeIsDropped(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, `{"hcp_name": "", "summary": "s", "datetime": "last Tuesday afternoon"}`).
		on(onSentiment, `{"sentiment": "neutral"}`).
		on(onFollowUps, `[]`)

	res := f.pipeline.Process(context.Background(), "s", "")
	require.True(t, res.Success, res.Error)
	assert.Nil(t, res.Interaction.Datetime)
	assert.Equal(t, "last Tuesday afternoon", res.ExtractedData.Datetime)
}

func TestStagedProviderFailureUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.provider.failOn(onExtract, errors.New("503 from upstream")).
		on(onExtract, `{"hcp_name": "Dr. Rohan Sharma", "summary": "Discussed dosing"}`).
		on(onFallbackSentiment, "Positive.").
		on(onFallbackFollowUps, "Here you go: call back next week")

	res := f.pipeline.Process(context.Background(), "met dr rohan sharma about dosing", "rep_3")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, PathFallback, res.Path)
	assert.Equal(t, SentimentPositive, res.Sentiment)
	assert.Equal(t, genericFollowUp(), res.SuggestedFollowUps)
	assert.Equal(t,
		"Extracted information:\n- HCP: Dr. Rohan Sharma\n- Summary: Discussed dosing\n- Sentiment: positive",
		res.AIResponse)
	require.NotNil(t, res.Interaction)
	assert.Len(t, res.Interaction.FollowUps, 1)

	// Fallback extraction is a single user message with no system instruction.
	require.Equal(t, 4, f.provider.callCount())
	fallbackExtract := f.provider.call(1)
	require.Len(t, fallbackExtract.Messages, 1)
	assert.Equal(t, llm.RoleUser, fallbackExtract.Messages[0].Role)
}

func TestStagedSentimentFailureUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, `{"hcp_name": "", "summary": "Short visit"}`).
		failOn(onSentiment, errors.New("timeout")).
		on(onFallbackSentiment, "furious").
		on(onFallbackFollowUps, `[{"action_item": "Resend invite", "priority": "low"}]`)

	res := f.pipeline.Process(context.Background(), "short visit", "")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, PathFallback, res.Path)
	assert.Equal(t, SentimentNeutral, res.Sentiment)
	assert.Equal(t, []SuggestedFollowUp{{ActionItem: "Resend invite", Priority: PriorityLow}}, res.SuggestedFollowUps)
}

func TestFallbackProviderInitFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.failOn(onExtract, errors.New("boom"))

	p := New(Options{
		Provider:         f.provider,
		Store:            f.store,
		FallbackProvider: func() (llm.Provider, error) { return nil, errors.New("bad base url") },
	})
	res := p.Process(context.Background(), "notes", "")

	assert.False(t, res.Success)
	assert.Equal(t, PathFallback, res.Path)
	assert.Contains(t, res.Error, "Failed to initialize LLM")
	assert.Zero(t, f.store.calls.Load())
}

func TestFallbackCallFailureIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.provider.failOn(onExtract, errors.New("down"))

	res := f.pipeline.Process(context.Background(), "notes", "")
	assert.False(t, res.Success)
	assert.Equal(t, KindProvider, res.ErrorKind)
	assert.Equal(t, 2, f.provider.callCount())
	assert.Zero(t, f.store.calls.Load())
}

func TestPersistenceFailureIsReportedWithoutFallback(t *testing.T) {
	f := newFixture(t)
	scriptMeera(f.provider)
	f.store.failCreate = errors.New("disk full")

	res := f.pipeline.Process(context.Background(), meeraInput, "")
	assert.False(t, res.Success)
	assert.Equal(t, KindPersistence, res.ErrorKind)
	assert.Equal(t, PathStaged, res.Path)
	assert.Contains(t, res.Error, "disk full")
	assert.Equal(t, 3, f.provider.callCount())

	// The HCP created before the failure is not rolled back.
	hcps, err := f.store.Store.ListHCPs(context.Background())
	require.NoError(t, err)
	assert.Len(t, hcps, 1)
}

func TestEmptyTextIsRejected(t *testing.T) {
	f := newFixture(t)
	res := f.pipeline.Process(context.Background(), "   ", "")
	assert.False(t, res.Success)
	assert.Equal(t, KindInvalidInput, res.ErrorKind)
	assert.Zero(t, f.provider.callCount())
}

func TestFailureResultAlwaysCarriesExtractedData(t *testing.T) {
	f := newFixture(t)
	res := f.pipeline.Process(context.Background(), "", "")
	require.False(t, res.Success)
	require.NotNil(t, res.ExtractedData)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(b, &body))
	assert.IsType(t, map[string]any{}, body["extracted_data"])
}

func TestPipelineLogsUnderCallerName(t *testing.T) {
	f := newFixture(t)
	scriptMeera(f.provider)
	core, logs := observer.New(zapcore.DebugLevel)
	p := New(Options{
		Provider: f.provider,
		Store:    f.store,
		Logger:   zap.New(core).Named("agent"),
	})

	res := p.Process(context.Background(), meeraInput, "rep_1")
	require.True(t, res.Success, res.Error)

	require.NotZero(t, logs.Len())
	for _, e := range logs.All() {
		assert.Equal(t, "agent", e.LoggerName, e.Message)
	}
}

func TestConcurrentProcessKeepsRunsIndependent(t *testing.T) {
	f := newFixture(t)
	f.provider.on(onExtract, `{"hcp_name": "", "summary": "s"}`).
		on(onSentiment, `{"sentiment": "neutral"}`).
		on(onFollowUps, `[]`)

	var wg sync.WaitGroup
	results := make([]*ProcessResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.pipeline.Process(context.Background(), fmt.Sprintf("note %d", i), fmt.Sprintf("rep_%d", i))
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i, res := range results {
		require.True(t, res.Success, res.Error)
		assert.Equal(t, fmt.Sprintf("rep_%d", i), res.Interaction.RepID)
		assert.Equal(t, fmt.Sprintf("note %d", i), res.Interaction.SourceRaw)
		seen[res.Interaction.ID] = true
	}
	assert.Len(t, seen, len(results))
}
