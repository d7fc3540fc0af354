package domain

import "time"

// ActionKind identifies the class of operator action being recommended.
type ActionKind string

const (
	ActionOpenChannel          ActionKind = "OPEN_CHANNEL"
	ActionCloseChannel         ActionKind = "CLOSE_CHANNEL"
	ActionUpdateFees           ActionKind = "UPDATE_FEES"
	ActionRebalance            ActionKind = "REBALANCE"
	ActionIncreaseCapacity     ActionKind = "INCREASE_CAPACITY"
	ActionOptimizeDistribution ActionKind = "OPTIMIZE_DISTRIBUTION"
)

// Priority ranks how urgently an action should be considered.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ActionStatus is the lifecycle state of a persisted Action.
type ActionStatus string

const (
	ActionPending    ActionStatus = "PENDING"
	ActionInProgress ActionStatus = "IN_PROGRESS"
	ActionCompleted  ActionStatus = "COMPLETED"
	ActionFailed     ActionStatus = "FAILED"
)

// ValidActionStatus reports whether s is a known status value.
func ValidActionStatus(s ActionStatus) bool {
	switch s {
	case ActionPending, ActionInProgress, ActionCompleted, ActionFailed:
		return true
	}
	return false
}

// Recommendation is the scoring engine's ephemeral output before
// persistence. Reason embeds the triggering feature value.
type Recommendation struct {
	Kind       ActionKind
	Priority   Priority
	Confidence float64 // [0,1]
	Reason     string
}

// Action is the persisted, addressable record of a recommendation.
// Corresponds to the actions table in PostgreSQL. The ledger exclusively
// owns the collection; history is append-only and "dismissal" is a status
// transition, never a delete.
type Action struct {
	ID          string // UUID, generated at creation
	Kind        ActionKind
	Priority    Priority
	Confidence  float64
	Description string
	Status      ActionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
