package model

import "time"

// Audit actions.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDeactivate = "deactivate"
)

// Action is one audit-log entry recording who did what to which record.
type Action struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id,omitempty"`
	ObjectType string    `json:"object_type"`
	ObjectID   int64     `json:"object_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Joined fields (not always populated).
	UserName string `json:"user_name,omitempty"`
}
