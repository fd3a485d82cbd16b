package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// CardService exposes single cards. A card has no visibility of its own: every
// operation resolves the card to its set and asks about the set.
type CardService struct {
	cards  repository.CardRepository
	sets   repository.SetRepository
	logger *slog.Logger
}

func NewCardService(cards repository.CardRepository, sets repository.SetRepository, logger *slog.Logger) *CardService {
	return &CardService{cards: cards, sets: sets, logger: logger}
}

// resolve returns the card and its set. A card whose set is gone is treated
// as missing.
func (s *CardService) resolve(ctx context.Context, id string) (*model.Card, *model.Set, error) {
	card, err := s.cards.GetCard(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("getting card %s: %w", id, err)
	}
	set, err := lookupSet(ctx, s.sets, card.SetID)
	if err != nil || set == nil {
		return nil, nil, err
	}
	return card, set, nil
}

func (s *CardService) Get(ctx context.Context, requester, id string) (*model.Card, error) {
	card, set, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(requester, set, access.Read, "card", id); err != nil {
		return nil, err
	}
	return card, nil
}

// Update rewrites both faces of a card in place.
func (s *CardService) Update(ctx context.Context, requester, id string, term, definition model.CardSide) (*model.Card, error) {
	_, set, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Check(requester, set, access.Write, "card", id); err != nil {
		return nil, err
	}

	updated := model.Card{Term: term, Definition: definition}
	if !updated.Valid() {
		return nil, apperror.ValidationFailed("card", "term and definition are required")
	}
	card, err := s.cards.UpdateCard(ctx, id, updated)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) || apperror.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("updating card %s: %w", id, err)
	}
	return card, nil
}

// Delete removes a single card. Like set deletion it succeeds for a card
// that is already gone. The last card of a set cannot be removed; delete the
// set instead.
func (s *CardService) Delete(ctx context.Context, requester, id string) error {
	if err := requireUser(requester); err != nil {
		return err
	}
	_, set, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	if set == nil {
		return nil
	}
	if err := access.Check(requester, set, access.Write, "card", id); err != nil {
		return err
	}

	if err := s.cards.DeleteCard(ctx, id); err != nil {
		if apperror.Is(err, apperror.ErrValidation) {
			return err
		}
		return fmt.Errorf("deleting card %s: %w", id, err)
	}
	s.logger.Info("card deleted", slog.String("id", id), slog.String("set", set.ID))
	return nil
}
