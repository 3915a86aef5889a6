package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/llm"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// DefaultRepID is used when a caller does not identify the rep.
const DefaultRepID = "default_rep"

// Options configures a Pipeline.
type Options struct {
	Provider llm.Provider
	// FallbackProvider builds the client used by the single-shot pipeline.
	// When nil the primary provider is reused.
	FallbackProvider func() (llm.Provider, error)
	Store            RecordStore
	Audit            Auditor // optional
	Logger           *zap.Logger
	DefaultRepID     string
	// CredentialEnvVar names the variable that supplies the API key; it is
	// quoted in credential errors.
	CredentialEnvVar string
}

// Pipeline turns free-text interaction notes into CRM records and applies
// free-text edits. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	provider         llm.Provider
	fallbackProvider func() (llm.Provider, error)
	store            RecordStore
	audit            Auditor
	logger           *zap.Logger
	defaultRepID     string
	credentialEnvVar string
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		provider:         opts.Provider,
		fallbackProvider: opts.FallbackProvider,
		store:            opts.Store,
		audit:            opts.Audit,
		logger:           opts.Logger,
		defaultRepID:     opts.DefaultRepID,
		credentialEnvVar: opts.CredentialEnvVar,
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.defaultRepID == "" {
		p.defaultRepID = DefaultRepID
	}
	if p.fallbackProvider == nil {
		p.fallbackProvider = func() (llm.Provider, error) {
			if p.provider == nil {
				return nil, errors.New("no provider configured")
			}
			return p.provider, nil
		}
	}
	return p
}

// run carries the state of one Process call.
type run struct {
	p           *Pipeline
	provider    llm.Provider
	state       *PipelineState
	repID       string
	path        Path
	interaction *records.Interaction
	usage       llm.Usage
	log         *zap.Logger
}

// complete sends one completion request and records its usage.
func (r *run) complete(ctx context.Context, step string, jsonMode bool, msgs ...llm.Message) (string, error) {
	start := time.Now()
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{Messages: msgs, JSONMode: jsonMode})
	if err != nil {
		r.log.Warn("completion failed", zap.String("step", step), zap.Error(err))
		return "", err
	}
	r.usage.Add(resp)
	r.log.Debug("completion",
		zap.String("step", step),
		zap.Duration("took", time.Since(start)),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
	)
	return resp.Content, nil
}

// Process runs the staged pipeline on text, falling back to the single-shot
// pipeline if a model call fails. It never returns a Go error; every failure
// is reported in the result.
func (p *Pipeline) Process(ctx context.Context, text, repID string) *ProcessResult {
	if strings.TrimSpace(repID) == "" {
		repID = p.defaultRepID
	}

	if err := llm.CheckCredential(p.provider); err != nil {
		p.logger.Warn("refusing to process without credential", zap.Error(err))
		return p.credentialFailure(err)
	}
	if strings.TrimSpace(text) == "" {
		return failure(KindInvalidInput, errors.New("text is required"))
	}

	r := &run{
		p:        p,
		provider: p.provider,
		state: &PipelineState{
			Stage:   StageStart,
			History: []llm.Message{llm.UserMessage(text)},
		},
		repID: repID,
		path:  PathStaged,
		log:   p.logger.With(zap.String("rep_id", repID)),
	}

	stages := []func(context.Context) StageResult{
		r.extract,
		r.analyzeSentiment,
		r.suggestFollowUps,
		r.reconcile,
		r.respond,
	}

	for _, stage := range stages {
		res := stage(ctx)
		switch res.Outcome {
		case Continue:
			continue
		case Fallback:
			r.log.Warn("staged pipeline failed, using single-shot fallback",
				zap.String("stage", string(r.state.Stage)), zap.Error(res.Err))
			return r.fallback(ctx)
		case Terminate:
			r.log.Error("pipeline failed", zap.String("stage", string(r.state.Stage)), zap.Error(res.Err))
			return r.failure(res)
		}
	}

	return r.success()
}

// respond composes the reply and appends it to the history.
func (r *run) respond(context.Context) StageResult {
	reply := ComposeResponse(r.state.Extracted, r.state.InteractionID)
	r.state.History = append(r.state.History, llm.AssistantMessage(reply))
	r.state.Stage = StageResponded
	return proceed()
}

func (r *run) success() *ProcessResult {
	reply := "Processing complete"
	if msg, ok := llm.LastOfRole(r.state.History, llm.RoleAssistant); ok {
		reply = msg.Content
	}

	d := r.state.Extracted
	followUps := d.SuggestedFollowUps
	if followUps == nil {
		followUps = []SuggestedFollowUp{}
	}

	r.log.Info("interaction processed",
		zap.String("pipeline", string(r.path)),
		zap.String("interaction_id", r.state.InteractionID),
		zap.Int("llm_calls", r.usage.Calls),
		zap.Int("input_tokens", r.usage.InputTokens),
		zap.Int("output_tokens", r.usage.OutputTokens),
		zap.Float64("cost_usd", r.usage.CostUSD),
	)

	return &ProcessResult{
		Success:            true,
		ExtractedData:      &d,
		AIResponse:         reply,
		Interaction:        r.interaction,
		Sentiment:          orDefault(d.Sentiment, SentimentNeutral),
		SuggestedFollowUps: followUps,
		Path:               r.path,
		Usage:              r.usage,
	}
}

func (r *run) failure(res StageResult) *ProcessResult {
	out := failure(res.Kind, res.Err)
	out.Path = r.path
	out.Usage = r.usage
	return out
}

func failure(kind ErrorKind, err error) *ProcessResult {
	msg := "processing failed"
	if err != nil {
		msg = err.Error()
	}
	return &ProcessResult{
		Success:       false,
		ExtractedData: &ExtractedDraft{},
		AIResponse:    "Error processing: " + msg,
		Error:         msg,
		ErrorKind:     kind,
	}
}

func (p *Pipeline) credentialFailure(err error) *ProcessResult {
	msg := err.Error()
	if p.credentialEnvVar != "" {
		msg = fmt.Sprintf("%s environment variable is not set (%v). Set it in the environment or a .env file.", p.credentialEnvVar, err)
	}
	res := failure(KindCredentialMissing, errors.New(msg))
	res.AIResponse = "AI features require an API key. " + msg
	return res
}

// record writes an audit entry. Audit failures are logged, not returned.
func (p *Pipeline) record(ctx context.Context, entry audit.Entry) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Log(ctx, entry); err != nil {
		p.logger.Warn("writing audit entry",
			zap.String("entity_id", entry.EntityID), zap.Error(err))
	}
}
