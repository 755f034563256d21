package enums

import "fmt"

// CartOwnerKind distinguishes carts keyed by user from carts keyed by session.
type CartOwnerKind string

const (
	CartOwnerUser    CartOwnerKind = "user"
	CartOwnerSession CartOwnerKind = "session"
)

var validCartOwnerKinds = []CartOwnerKind{
	CartOwnerUser,
	CartOwnerSession,
}

// String implements fmt.Stringer.
func (k CartOwnerKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known CartOwnerKind.
func (k CartOwnerKind) IsValid() bool {
	for _, candidate := range validCartOwnerKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCartOwnerKind converts raw input into a CartOwnerKind.
func ParseCartOwnerKind(value string) (CartOwnerKind, error) {
	for _, candidate := range validCartOwnerKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart owner kind %q", value)
}
