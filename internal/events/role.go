package events

import (
	"fmt"
	"strings"
)

// Role is the access level a user holds on an event.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// ParseRole validates a raw role string.
func ParseRole(rawInput string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(rawInput))) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleEditor:
		return RoleEditor, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", &ValidationError{Reason: fmt.Sprintf("role must be one of OWNER, EDITOR, VIEWER, got %q", rawInput)}
	}
}

// Rank maps the role onto the total order OWNER(3) > EDITOR(2) > VIEWER(1).
// Unrecognized values rank as 0 and never satisfy a requirement.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleEditor:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Meets reports whether the held role satisfies the required role.
func (r Role) Meets(required Role) bool {
	if required.Rank() == 0 {
		return false
	}
	return r.Rank() >= required.Rank()
}

// String returns the stored role value.
func (r Role) String() string {
	return string(r)
}
