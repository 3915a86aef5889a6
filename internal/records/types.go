package records

import "time"

// Interaction modes.
const (
	ModeStructured     = "structured"
	ModeConversational = "conversational"
)

// Sentiment values accepted by the store.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// FollowUpStatusOpen is the status given to newly created follow-ups.
const FollowUpStatusOpen = "open"

// HCP is a healthcare professional.
type HCP struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Title        string         `json:"title,omitempty"`
	Speciality   string         `json:"speciality,omitempty"`
	Organisation string         `json:"organisation,omitempty"`
	Contact      map[string]any `json:"contact,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// HCPCreate holds the fields accepted when registering an HCP.
type HCPCreate struct {
	Name         string         `json:"name" validate:"required"`
	Title        string         `json:"title,omitempty"`
	Speciality   string         `json:"speciality,omitempty"`
	Organisation string         `json:"organisation,omitempty"`
	Contact      map[string]any `json:"contact,omitempty"`
}

// Material is printed or digital material left with an HCP.
type Material struct {
	ID           string `json:"id,omitempty"`
	MaterialType string `json:"material_type" validate:"required"`
	Quantity     int    `json:"quantity" validate:"gte=0"`
	Notes        string `json:"notes,omitempty"`
}

// Sample is a drug sample handed over during an interaction.
type Sample struct {
	ID          string `json:"id,omitempty"`
	ProductCode string `json:"product_code" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
	Lot         string `json:"lot,omitempty"`
}

// FollowUp is a task owned by a rep that came out of an interaction.
type FollowUp struct {
	ID            string     `json:"id,omitempty"`
	InteractionID string     `json:"interaction_id,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	ActionItem    string     `json:"action_item" validate:"required"`
	Owner         string     `json:"owner,omitempty"`
	Status        string     `json:"status,omitempty"`
}

// Interaction is one logged rep/HCP contact together with its child records.
type Interaction struct {
	ID        string     `json:"id"`
	HCPID     string     `json:"hcp_id"`
	RepID     string     `json:"rep_id"`
	Mode      string     `json:"mode"`
	Datetime  *time.Time `json:"datetime"`
	Summary   string     `json:"summary"`
	Sentiment string     `json:"sentiment"`
	Topics    []string   `json:"topics"`
	Outcome   string     `json:"outcome"`
	SourceRaw string     `json:"source_raw,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Materials []Material `json:"materials_shared"`
	Samples   []Sample   `json:"samples"`
	FollowUps []FollowUp `json:"follow_ups"`
}

// InteractionCreate is the composite payload for CreateInteraction.
type InteractionCreate struct {
	HCPID     string     `json:"hcp_id,omitempty"`
	RepID     string     `json:"rep_id,omitempty"`
	Mode      string     `json:"mode,omitempty" validate:"omitempty,oneof=structured conversational"`
	Datetime  *time.Time `json:"datetime,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Sentiment string     `json:"sentiment,omitempty" validate:"omitempty,oneof=positive neutral negative"`
	Topics    []string   `json:"topics,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	SourceRaw string     `json:"source_raw,omitempty"`

	Materials []Material `json:"materials_shared,omitempty" validate:"dive"`
	Samples   []Sample   `json:"samples,omitempty" validate:"dive"`
	FollowUps []FollowUp `json:"follow_ups,omitempty" validate:"dive"`
}

// InteractionFilter narrows ListInteractions.
type InteractionFilter struct {
	HCPID  string
	RepID  string
	Limit  int
	Offset int
}

// ValidSentiment reports whether s is one of the stored sentiment values.
func ValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}
