package enums

import "fmt"

// DeleteScope controls where a media item is removed from.
type DeleteScope string

const (
	DeleteScopeLocal  DeleteScope = "local"
	DeleteScopeRemote DeleteScope = "remote"
	DeleteScopeBoth   DeleteScope = "both"
)

var validDeleteScopes = []DeleteScope{
	DeleteScopeLocal,
	DeleteScopeRemote,
	DeleteScopeBoth,
}

// String returns the literal string for the scope.
func (d DeleteScope) String() string {
	return string(d)
}

// IsValid reports whether the scope is known.
func (d DeleteScope) IsValid() bool {
	for _, candidate := range validDeleteScopes {
		if candidate == d {
			return true
		}
	}
	return false
}

// IncludesLocal reports whether the local row should be removed.
func (d DeleteScope) IncludesLocal() bool {
	return d == DeleteScopeLocal || d == DeleteScopeBoth
}

// IncludesRemote reports whether remote copies should be removed.
func (d DeleteScope) IncludesRemote() bool {
	return d == DeleteScopeRemote || d == DeleteScopeBoth
}

// ParseDeleteScope converts raw input into a DeleteScope.
func ParseDeleteScope(value string) (DeleteScope, error) {
	for _, candidate := range validDeleteScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delete scope %q", value)
}
