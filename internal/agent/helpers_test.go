package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/db"
	"github.com/ziadkadry99/crm-agent/internal/llm"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// Prompt markers used to route fake replies.
const (
	onExtract           = "Extract the following information"
	onSentiment         = "Analyze the sentiment of this text"
	onFollowUps         = "suggest 2-3 specific follow-up actions"
	onFallbackSentiment = "Analyze sentiment (positive/neutral/negative)"
	onFallbackFollowUps = "Suggest 2 follow-up actions"
	onEdit              = "Edit Request:"
)

type reply struct {
	content string
	err     error
}

// fakeProvider answers by matching a marker in the last user message.
type fakeProvider struct {
	mu      sync.Mutex
	replies map[string][]reply // marker -> queued replies; the last one repeats
	calls   []llm.CompletionRequest
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{replies: map[string][]reply{}}
}

func (f *fakeProvider) on(marker, content string) *fakeProvider {
	f.replies[marker] = append(f.replies[marker], reply{content: content})
	return f
}

func (f *fakeProvider) failOn(marker string, err error) *fakeProvider {
	f.replies[marker] = append(f.replies[marker], reply{err: err})
	return f
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)

	msg, _ := llm.LastOfRole(req.Messages, llm.RoleUser)
	for _, marker := range []string{onExtract, onSentiment, onFollowUps, onFallbackSentiment, onFallbackFollowUps, onEdit} {
		if !strings.Contains(msg.Content, marker) {
			continue
		}
		queue := f.replies[marker]
		if len(queue) == 0 {
			return nil, &llm.ProviderError{Provider: "fake", Err: errors.New("no reply scripted for " + marker)}
		}
		next := queue[0]
		if len(queue) > 1 {
			f.replies[marker] = queue[1:]
		}
		if next.err != nil {
			return nil, &llm.ProviderError{Provider: "fake", Err: next.err}
		}
		return &llm.CompletionResponse{Content: next.content, Model: "fake", InputTokens: 10, OutputTokens: 5}, nil
	}
	return nil, &llm.ProviderError{Provider: "fake", Err: errors.New("unexpected prompt")}
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) call(i int) llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

// countingStore wraps records.Store, counting calls and optionally failing
// interaction creation.
type countingStore struct {
	*records.Store
	calls      atomic.Int32
	failCreate error
}

func (s *countingStore) CreateHCP(ctx context.Context, in records.HCPCreate) (*records.HCP, error) {
	s.calls.Add(1)
	return s.Store.CreateHCP(ctx, in)
}

func (s *countingStore) SearchHCPByName(ctx context.Context, q string, limit int) ([]records.HCP, error) {
	s.calls.Add(1)
	return s.Store.SearchHCPByName(ctx, q, limit)
}

func (s *countingStore) GetHCP(ctx context.Context, id string) (*records.HCP, error) {
	s.calls.Add(1)
	return s.Store.GetHCP(ctx, id)
}

func (s *countingStore) CreateInteraction(ctx context.Context, in records.InteractionCreate) (*records.Interaction, error) {
	s.calls.Add(1)
	if s.failCreate != nil {
		return nil, s.failCreate
	}
	return s.Store.CreateInteraction(ctx, in)
}

func (s *countingStore) GetInteraction(ctx context.Context, id string) (*records.Interaction, error) {
	s.calls.Add(1)
	return s.Store.GetInteraction(ctx, id)
}

func (s *countingStore) UpdateInteraction(ctx context.Context, id string, patch map[string]any) (*records.Interaction, error) {
	s.calls.Add(1)
	return s.Store.UpdateInteraction(ctx, id, patch)
}

type fixture struct {
	provider *fakeProvider
	store    *countingStore
	audit    *audit.Store
	pipeline *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		provider: newFakeProvider(),
		store:    &countingStore{Store: records.NewStore(database)},
		audit:    audit.NewStore(database),
	}
	f.pipeline = New(Options{
		Provider:         f.provider,
		Store:            f.store,
		Audit:            f.audit,
		CredentialEnvVar: "GROQ_API_KEY",
	})
	return f
}
