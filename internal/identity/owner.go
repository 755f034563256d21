// Package identity resolves who a cart belongs to.
package identity

import (
	"strings"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Owner identifies a cart holder: an authenticated user or an anonymous
// session. The zero value is anonymous and never persisted.
type Owner struct {
	Kind enums.CartOwnerKind
	ID   string
}

func User(id string) Owner {
	id = strings.TrimSpace(id)
	if id == "" {
		return Owner{}
	}
	return Owner{Kind: enums.CartOwnerUser, ID: id}
}

func Session(id string) Owner {
	id = strings.TrimSpace(id)
	if id == "" {
		return Owner{}
	}
	return Owner{Kind: enums.CartOwnerSession, ID: id}
}

// Resolve picks the user when both identifiers are present.
func Resolve(userID, sessionID string) Owner {
	if owner := User(userID); !owner.IsZero() {
		return owner
	}
	return Session(sessionID)
}

func (o Owner) IsZero() bool {
	return o.ID == "" || !o.Kind.IsValid()
}

func (o Owner) IsUser() bool {
	return !o.IsZero() && o.Kind == enums.CartOwnerUser
}

// Key is the stable lock/cache key for the owner.
func (o Owner) Key() string {
	if o.IsZero() {
		return ""
	}
	return string(o.Kind) + ":" + o.ID
}

func (o Owner) String() string {
	if o.IsZero() {
		return "anonymous"
	}
	return o.Key()
}
