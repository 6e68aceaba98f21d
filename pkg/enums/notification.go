package enums

import "fmt"

// NotificationSeverity is the level attached to a back-office notification.
type NotificationSeverity string

const (
	NotificationSuccess NotificationSeverity = "success"
	NotificationWarning NotificationSeverity = "warning"
	NotificationError   NotificationSeverity = "error"
)

var validNotificationSeverities = []NotificationSeverity{
	NotificationSuccess,
	NotificationWarning,
	NotificationError,
}

// String returns the literal string for the severity.
func (n NotificationSeverity) String() string {
	return string(n)
}

// IsValid reports whether the severity is known.
func (n NotificationSeverity) IsValid() bool {
	for _, candidate := range validNotificationSeverities {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationSeverity converts raw input into a severity.
func ParseNotificationSeverity(value string) (NotificationSeverity, error) {
	for _, candidate := range validNotificationSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification severity %q", value)
}
