// Package access decides who may read or modify a set and everything that
// hangs off it. Cards and files carry no visibility of their own; callers
// resolve them to their set first and ask about the set.
package access

import (
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
)

// Action is what the requester wants to do with the resource.
type Action int

const (
	Read Action = iota
	Write
)

// Decision is the outcome of Decide.
type Decision int

const (
	AllowRead Decision = iota
	AllowWrite
	DenyUnauthenticated
	DenyForbidden
	NotFound
)

func (d Decision) String() string {
	switch d {
	case AllowRead:
		return "allow-read"
	case AllowWrite:
		return "allow-write"
	case DenyUnauthenticated:
		return "deny-unauthenticated"
	case DenyForbidden:
		return "deny-forbidden"
	case NotFound:
		return "not-found"
	}
	return "unknown"
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d == AllowRead || d == AllowWrite
}

// Decide applies the visibility rules to a set. requester is the
// authenticated username, or "" for an anonymous request. A nil set means
// the resource does not exist.
//
// Precedence: missing resource, then public read, then ownership.
func Decide(requester string, set *model.Set, action Action) Decision {
	if set == nil {
		return NotFound
	}
	if set.OwnedBy(requester) {
		if action == Write {
			return AllowWrite
		}
		return AllowRead
	}
	if set.Public && action == Read {
		return AllowRead
	}
	if requester == "" {
		return DenyUnauthenticated
	}
	return DenyForbidden
}

// Err converts a denial into the matching apperror. It returns nil when the
// decision allows the action.
func (d Decision) Err(resource, id string) error {
	switch d {
	case AllowRead, AllowWrite:
		return nil
	case DenyUnauthenticated:
		return apperror.Unauthenticated("authentication required")
	case DenyForbidden:
		return apperror.Forbidden("you do not have access to this " + resource)
	default:
		return apperror.NotFound(resource, id)
	}
}

// Check is Decide followed by Err.
func Check(requester string, set *model.Set, action Action, resource, id string) error {
	return Decide(requester, set, action).Err(resource, id)
}
