// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
)

// Set is a named, ordered collection of cards owned by one user.
// Cards are loaded from the card table and never stored on the set row.
type Set struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Owner       string    `json:"user"`
	Public      bool      `json:"public"`
	Cards       []Card    `json:"cards"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnedBy reports whether username owns the set.
func (s *Set) OwnedBy(username string) bool {
	return username != "" && s.Owner == username
}

// Validate checks the fields a set must carry before it is stored: a
// title, an owner, and at least one card with both faces filled in.
func (s *Set) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if s.Owner == "" {
		return apperror.ValidationFailed("user", "owner is required")
	}
	if len(ValidCards(s.Cards)) == 0 {
		return apperror.ValidationFailed("cards", "at least one card with a term and a definition is required")
	}
	return nil
}

// CardSide is one face of a card. When IsFile is true, Content holds the id
// of an uploaded file rather than literal text.
type CardSide struct {
	IsFile  bool   `json:"file"`
	Content string `json:"content"`
}

func (c CardSide) present() bool {
	return strings.TrimSpace(c.Content) != ""
}

// Card is a term/definition pair belonging to exactly one set.
type Card struct {
	ID         string   `json:"id"`
	Term       CardSide `json:"term"`
	Definition CardSide `json:"definition"`
	SetID      string   `json:"set"`
}

// Valid reports whether both faces carry content.
func (c Card) Valid() bool {
	return c.Term.present() && c.Definition.present()
}

// References reports whether either face of the card points at fileID.
func (c Card) References(fileID string) bool {
	return (c.Term.IsFile && c.Term.Content == fileID) ||
		(c.Definition.IsFile && c.Definition.Content == fileID)
}

// ValidCards returns the cards that pass Valid, preserving order.
func ValidCards(cards []Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}
