package audit

import (
	"encoding/json"
	"time"
)

type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionArchive    Action = "archive"
	ActionUnarchive  Action = "unarchive"
	ActionSubmit     Action = "submit"
	ActionComplete   Action = "complete"
	ActionReopen     Action = "reopen"
	ActionAssign     Action = "assign"
	ActionUnassign   Action = "unassign"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionClose      Action = "close"
)

type EntityType string

const (
	EntityUser             EntityType = "user"
	EntityEvaluationItem   EntityType = "evaluation_item"
	EntityAssignment       EntityType = "evaluation_item_assignment"
	EntityEvaluation       EntityType = "evaluation"
	EntityPerformanceCycle EntityType = "performance_cycle"
)

// Entry is one append-only audit row.
type Entry struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"createdAt"`
	UserID     string          `json:"userId"`
	UserRole   string          `json:"userRole"`
	CompanyID  string          `json:"companyId"`
	Action     Action          `json:"action"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	OldData    json.RawMessage `json:"oldData,omitempty"`
	NewData    json.RawMessage `json:"newData,omitempty"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	IPAddress  string          `json:"ipAddress,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	SessionID  string          `json:"sessionId,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	UserID     string
	// From is inclusive and To exclusive: [From, To).
	From *time.Time
	To   *time.Time
}

// Match applies the filter in memory; the SQL store builds the same predicate in buildBaseQuery.
func (f Filter) Match(e Entry) bool {
	if f.Action != "" && string(e.Action) != f.Action {
		return false
	}
	if f.EntityType != "" && string(e.EntityType) != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.From != nil && e.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}
