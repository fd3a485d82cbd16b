package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// SetService applies the visibility rules to flashcard sets.
type SetService struct {
	sets   repository.SetRepository
	logger *slog.Logger
}

func NewSetService(sets repository.SetRepository, logger *slog.Logger) *SetService {
	return &SetService{sets: sets, logger: logger}
}

// SetInput is the client-controlled part of a set. The owner always comes
// from the authenticated requester.
type SetInput struct {
	Title       string
	Description string
	Public      bool
	Cards       []model.Card
}

// SetQuery holds the listing filters. User selects one owner's sets; Title
// is a case-insensitive substring match.
type SetQuery struct {
	User  string
	Title string
}

func (in SetInput) toSet(owner string) (*model.Set, error) {
	set := &model.Set{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Owner:       owner,
		Public:      in.Public,
		Cards:       in.Cards,
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	if len(set.Title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(set.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	return set, nil
}

// Create stores a new set owned by the requester. Cards missing a face are
// dropped; at least one complete card must remain.
func (s *SetService) Create(ctx context.Context, requester string, in SetInput) (*model.Set, error) {
	if err := requireUser(requester); err != nil {
		return nil, err
	}
	set, err := in.toSet(requester)
	if err != nil {
		return nil, err
	}

	if err := s.sets.CreateSet(ctx, set); err != nil {
		if apperror.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("creating set: %w", err)
	}

	s.logger.Info("set created",
		slog.String("id", set.ID),
		slog.String("owner", set.Owner),
		slog.Int("cards", len(set.Cards)),
	)
	return set, nil
}

// Get returns a set the requester may read.
func (s *SetService) Get(ctx context.Context, requester, id string) (*model.Set, error) {
	set, err := lookupSet(ctx, s.sets, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(requester, set, access.Read, "set", id); err != nil {
		return nil, err
	}
	return set, nil
}

// List picks the listing scope from who is asking and whose sets they ask
// for:
//
//	own name in q.User        → every set the requester owns
//	someone else's name       → that user's public sets
//	no q.User, signed in      → public sets plus the requester's private ones
//	no q.User, anonymous      → public sets
func (s *SetService) List(ctx context.Context, requester string, q SetQuery) ([]model.Set, error) {
	filter := repository.SetFilter{Title: strings.TrimSpace(q.Title)}
	switch {
	case q.User != "" && q.User == requester:
		filter.Scope, filter.Owner = repository.ScopeOwner, requester
	case q.User != "":
		filter.Scope, filter.Owner = repository.ScopeOwnerPublic, q.User
	case requester != "":
		filter.Scope, filter.Owner = repository.ScopePublicAndOwner, requester
	default:
		filter.Scope = repository.ScopePublic
	}

	sets, err := s.sets.ListSets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing sets: %w", err)
	}
	return sets, nil
}

// Update replaces the set's metadata and cards. A missing set is reported
// before any authentication problem.
func (s *SetService) Update(ctx context.Context, requester, id string, in SetInput) (*model.Set, error) {
	existing, err := lookupSet(ctx, s.sets, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(requester, existing, access.Write, "set", id); err != nil {
		return nil, err
	}

	set, err := in.toSet(existing.Owner)
	if err != nil {
		return nil, err
	}
	set.ID = existing.ID

	if err := s.sets.UpdateSet(ctx, set); err != nil {
		if apperror.Is(err, apperror.ErrValidation) || apperror.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("updating set %s: %w", id, err)
	}

	s.logger.Info("set updated",
		slog.String("id", set.ID),
		slog.Int("cards", len(set.Cards)),
	)
	return set, nil
}

// Delete removes a set and its cards. Deleting a set that is already gone
// succeeds, but only for an authenticated requester.
func (s *SetService) Delete(ctx context.Context, requester, id string) error {
	if err := requireUser(requester); err != nil {
		return err
	}
	set, err := lookupSet(ctx, s.sets, id)
	if err != nil {
		return err
	}
	if set == nil {
		return nil
	}
	if err := access.Check(requester, set, access.Write, "set", id); err != nil {
		return err
	}

	if err := s.sets.DeleteSet(ctx, id); err != nil {
		return fmt.Errorf("deleting set %s: %w", id, err)
	}
	s.logger.Info("set deleted", slog.String("id", id), slog.String("owner", set.Owner))
	return nil
}
