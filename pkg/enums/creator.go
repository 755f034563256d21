package enums

import "fmt"

// CreatorStatus gates whether a creator may publish products.
type CreatorStatus string

const (
	CreatorStatusActive    CreatorStatus = "active"
	CreatorStatusInactive  CreatorStatus = "inactive"
	CreatorStatusSuspended CreatorStatus = "suspended"
)

var validCreatorStatuses = []CreatorStatus{
	CreatorStatusActive,
	CreatorStatusInactive,
	CreatorStatusSuspended,
}

func (s CreatorStatus) String() string {
	return string(s)
}

func (s CreatorStatus) IsValid() bool {
	for _, candidate := range validCreatorStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCreatorStatus converts raw input into a CreatorStatus.
func ParseCreatorStatus(value string) (CreatorStatus, error) {
	for _, candidate := range validCreatorStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid creator status %q", value)
}
