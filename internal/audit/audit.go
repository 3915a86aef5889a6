package audit

import "time"

// EntityType identifies the kind of record an entry refers to.
type EntityType string

const (
	EntityInteraction EntityType = "interaction"
	EntityHCP         EntityType = "hcp"
)

// Action describes what was done.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Entry is a single audit trail record. Diff holds the changed fields, or the
// full created record for ActionCreated.
type Entry struct {
	ID         string         `json:"id"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     Action         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Diff       map[string]any `json:"diff"`
}
