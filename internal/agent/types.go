package agent

import (
	"context"
	"errors"

	"github.com/ziadkadry99/crm-agent/internal/audit"
	"github.com/ziadkadry99/crm-agent/internal/llm"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// Sentiment labels. Any other model output is coerced to SentimentNeutral.
const (
	SentimentPositive = records.SentimentPositive
	SentimentNeutral  = records.SentimentNeutral
	SentimentNegative = records.SentimentNegative
)

// Follow-up priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ErrParse marks model output that could not be read into the expected shape.
var ErrParse = errors.New("could not parse model output")

// RecordStore is the persistence surface the pipeline needs.
type RecordStore interface {
	CreateHCP(ctx context.Context, in records.HCPCreate) (*records.HCP, error)
	SearchHCPByName(ctx context.Context, query string, limit int) ([]records.HCP, error)
	GetHCP(ctx context.Context, id string) (*records.HCP, error)
	CreateInteraction(ctx context.Context, in records.InteractionCreate) (*records.Interaction, error)
	GetInteraction(ctx context.Context, id string) (*records.Interaction, error)
	UpdateInteraction(ctx context.Context, id string, patch map[string]any) (*records.Interaction, error)
}

// Auditor records changes made by the pipeline.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// DraftMaterial is a material entry as extracted from free text.
type DraftMaterial struct {
	MaterialType string `json:"material_type"`
	Quantity     int    `json:"quantity"`
	Notes        string `json:"notes,omitempty"`
}

// DraftSample is a sample entry as extracted from free text.
type DraftSample struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
	Lot         string `json:"lot,omitempty"`
}

// SuggestedFollowUp is a model-proposed action item.
type SuggestedFollowUp struct {
	ActionItem string `json:"action_item"`
	Priority   string `json:"priority"`
}

// ExtractedDraft is the structured record built up by the pipeline stages.
// Extraction fills it, the sentiment and follow-up stages amend it, and
// reconciliation and the composer only read it.
type ExtractedDraft struct {
	HCPName            string              `json:"hcp_name"`
	Datetime           string              `json:"datetime,omitempty"`
	Summary            string              `json:"summary"`
	Sentiment          string              `json:"sentiment,omitempty"`
	Topics             []string            `json:"topics"`
	Outcome            string              `json:"outcome,omitempty"`
	Materials          []DraftMaterial     `json:"materials"`
	Samples            []DraftSample       `json:"samples"`
	SuggestedFollowUps []SuggestedFollowUp `json:"suggested_follow_ups,omitempty"`

	Title        string `json:"title,omitempty"`
	Speciality   string `json:"speciality,omitempty"`
	Organisation string `json:"organisation,omitempty"`
}

// Stage names a point in the pipeline state machine.
type Stage string

const (
	StageStart              Stage = "start"
	StageExtracted          Stage = "extracted"
	StageSentimentAnalyzed  Stage = "sentiment_analyzed"
	StageFollowupsSuggested Stage = "followups_suggested"
	StagePersisted          Stage = "persisted"
	StageResponded          Stage = "responded"
)

// PipelineState is owned by a single Process call.
type PipelineState struct {
	Stage         Stage
	History       []llm.Message
	Extracted     ExtractedDraft
	InteractionID string
}

// Input returns the text the run was started with.
func (s *PipelineState) Input() string {
	msg, _ := llm.LastOfRole(s.History, llm.RoleUser)
	return msg.Content
}

// Outcome tells the orchestrator what to do after a stage.
type Outcome int

const (
	// Continue moves to the next stage.
	Continue Outcome = iota
	// Fallback abandons the staged run for the single-shot pipeline.
	Fallback
	// Terminate ends the run with a failure.
	Terminate
)

// StageResult is returned by every stage instead of raising.
type StageResult struct {
	Outcome Outcome
	Kind    ErrorKind
	Err     error
}

func proceed() StageResult { return StageResult{Outcome: Continue} }

func fallBack(err error) StageResult {
	return StageResult{Outcome: Fallback, Kind: KindProvider, Err: err}
}

func terminate(kind ErrorKind, err error) StageResult {
	return StageResult{Outcome: Terminate, Kind: kind, Err: err}
}

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindCredentialMissing ErrorKind = "credential_missing"
	KindProvider          ErrorKind = "provider_error"
	KindParse             ErrorKind = "parse_error"
	KindNotFound          ErrorKind = "not_found"
	KindPersistence       ErrorKind = "persistence_error"
	KindInvalidInput      ErrorKind = "invalid_input"
)

// Path records which pipeline produced a result.
type Path string

const (
	PathStaged   Path = "staged"
	PathFallback Path = "fallback"
)

// ProcessResult is returned by Pipeline.Process. It never carries a Go error;
// failures are reported through Success, Error and ErrorKind.
type ProcessResult struct {
	Success            bool                 `json:"success"`
	ExtractedData      *ExtractedDraft      `json:"extracted_data"`
	AIResponse         string               `json:"ai_response"`
	Interaction        *records.Interaction `json:"interaction,omitempty"`
	Sentiment          string               `json:"sentiment,omitempty"`
	SuggestedFollowUps []SuggestedFollowUp  `json:"suggested_follow_ups,omitempty"`
	Error              string               `json:"error,omitempty"`
	ErrorKind          ErrorKind            `json:"error_kind,omitempty"`
	Path               Path                 `json:"pipeline,omitempty"`
	Usage              llm.Usage            `json:"-"`
}

// EditResult is returned by Pipeline.Edit.
type EditResult struct {
	Success     bool                 `json:"success"`
	Interaction *records.Interaction `json:"interaction,omitempty"`
	Changes     map[string]any       `json:"changes,omitempty"`
	Error       string               `json:"error,omitempty"`
	ErrorKind   ErrorKind            `json:"error_kind,omitempty"`
}
