package enums

import "fmt"

// TargetType identifies the kind of external system a media item can sync to.
type TargetType string

const (
	TargetTypePrestaShop TargetType = "prestashop"
	TargetTypeERP        TargetType = "erp"
)

var validTargetTypes = []TargetType{
	TargetTypePrestaShop,
	TargetTypeERP,
}

// String returns the literal string for the target type.
func (t TargetType) String() string {
	return string(t)
}

// IsValid reports whether the target type is known.
func (t TargetType) IsValid() bool {
	for _, candidate := range validTargetTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTargetType converts raw input into a TargetType.
func ParseTargetType(value string) (TargetType, error) {
	for _, candidate := range validTargetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid target type %q", value)
}
