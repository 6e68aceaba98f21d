package enums

import "fmt"

// ChangeType selects how a bulk rule derives new values from current ones.
type ChangeType string

const (
	ChangeTypeSet        ChangeType = "set"
	ChangeTypeIncrease   ChangeType = "increase"
	ChangeTypeDecrease   ChangeType = "decrease"
	ChangeTypePercentage ChangeType = "percentage"
	// ChangeTypeAdjust applies a signed delta; stock rules only.
	ChangeTypeAdjust ChangeType = "adjust"
)

var validChangeTypes = []ChangeType{
	ChangeTypeSet,
	ChangeTypeIncrease,
	ChangeTypeDecrease,
	ChangeTypePercentage,
	ChangeTypeAdjust,
}

// String returns the literal string for the change type.
func (c ChangeType) String() string {
	return string(c)
}

// IsValid reports whether the change type is known.
func (c ChangeType) IsValid() bool {
	for _, candidate := range validChangeTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// AllowsNegativeAmount reports whether the rule amount may be signed.
func (c ChangeType) AllowsNegativeAmount() bool {
	return c == ChangeTypeDecrease || c == ChangeTypeAdjust
}

// ParseChangeType converts raw input into a ChangeType.
func ParseChangeType(value string) (ChangeType, error) {
	for _, candidate := range validChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change type %q", value)
}
