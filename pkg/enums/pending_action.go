package enums

import "fmt"

// PendingAction is the staged intent recorded in the pending-change ledger.
type PendingAction string

const (
	PendingActionSync   PendingAction = "sync"
	PendingActionUnsync PendingAction = "unsync"
)

var validPendingActions = []PendingAction{
	PendingActionSync,
	PendingActionUnsync,
}

// String returns the literal string for the action.
func (p PendingAction) String() string {
	return string(p)
}

// IsValid reports whether the action is known.
func (p PendingAction) IsValid() bool {
	for _, candidate := range validPendingActions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePendingAction converts raw input into a PendingAction.
func ParsePendingAction(value string) (PendingAction, error) {
	for _, candidate := range validPendingActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending action %q", value)
}
