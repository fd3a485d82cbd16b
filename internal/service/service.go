// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, applies the access rules, orchestrates
//	Repository (data layer)  → reads/writes the database and blob storage
//
// Services take the requesting username as a plain string ("" for an
// anonymous request) and know nothing about HTTP. Expected outcomes come
// back as apperror values; anything else is wrapped with context and left
// for the handler to turn into a 500.
package service

import (
	"context"
	"fmt"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// requireUser rejects anonymous callers.
func requireUser(requester string) error {
	if requester == "" {
		return apperror.Unauthenticated("authentication required")
	}
	return nil
}

// lookupSet returns the set, or nil when it does not exist. Only store
// failures are returned as errors, so the result feeds straight into
// access.Decide.
func lookupSet(ctx context.Context, sets repository.SetRepository, id string) (*model.Set, error) {
	set, err := sets.GetSet(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting set %s: %w", id, err)
	}
	return set, nil
}
