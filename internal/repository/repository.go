// Package repository declares the storage contracts the services depend on.
//
// Expected outcomes are reported as apperror values: a malformed id or a
// missing record is apperror.ErrNotFound, missing fields are
// apperror.ErrValidation, a taken username is apperror.ErrConflict. Any other
// error means the store itself failed.
package repository

import (
	"context"
	"io"

	"github.com/sakif/flashcards/internal/model"
)

// SetScope selects which sets a listing may return.
type SetScope int

const (
	// ScopePublic lists public sets of every owner.
	ScopePublic SetScope = iota
	// ScopeOwner lists every set of Owner, public or not.
	ScopeOwner
	// ScopeOwnerPublic lists only the public sets of Owner.
	ScopeOwnerPublic
	// ScopePublicAndOwner lists public sets plus every set of Owner.
	ScopePublicAndOwner
)

// SetFilter narrows a set listing. Title, when set, is a case-insensitive
// substring match.
type SetFilter struct {
	Scope SetScope
	Owner string
	Title string
}

type SetRepository interface {
	// CreateSet persists the set and its valid cards in one step, filling in
	// ids and timestamps. Invalid cards are skipped.
	CreateSet(ctx context.Context, set *model.Set) error
	// GetSet returns the set with its cards in order.
	GetSet(ctx context.Context, id string) (*model.Set, error)
	ListSets(ctx context.Context, filter SetFilter) ([]model.Set, error)
	// UpdateSet rewrites the metadata and replaces the cards wholesale, then
	// reloads set from the store.
	UpdateSet(ctx context.Context, set *model.Set) error
	// DeleteSet removes the set, its cards and any saved-list entries. A
	// missing or malformed id is not an error.
	DeleteSet(ctx context.Context, id string) error
	DeleteSetsByOwner(ctx context.Context, owner string) (int64, error)
	ChangeOwner(ctx context.Context, oldOwner, newOwner string) (int64, error)
}

type CardRepository interface {
	// CreateCard rejects a card missing either face.
	CreateCard(ctx context.Context, setID string, card *model.Card) error
	// CreateCards appends the valid cards to the set and returns them with
	// ids assigned. Invalid entries are skipped.
	CreateCards(ctx context.Context, setID string, cards []model.Card) ([]model.Card, error)
	// ReplaceCards deletes every card of the set and creates the valid ones
	// from cards, atomically.
	ReplaceCards(ctx context.Context, setID string, cards []model.Card) ([]model.Card, error)
	CardsBySet(ctx context.Context, setID string) ([]model.Card, error)
	DeleteCardsBySet(ctx context.Context, setID string) (int64, error)
	GetCard(ctx context.Context, id string) (*model.Card, error)
	// DeleteCard is a no-op for malformed or unknown ids and refuses to
	// remove the last card of a set.
	DeleteCard(ctx context.Context, id string) error
	UpdateCard(ctx context.Context, id string, card model.Card) (*model.Card, error)
	// CardByFile returns the card that owns the file: among cards in sets
	// of owner whose term or definition references it, the first card of
	// the oldest set. Rewriting a set's cards does not change the answer.
	CardByFile(ctx context.Context, fileID, owner string) (*model.Card, error)
}

type UserRepository interface {
	// CreateUser fails with a conflict when the username is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, username string) (*model.User, error)
	// UpdateUser writes credentials and token for username. When
	// user.Username differs, the account and everything it owns (sets,
	// saved list, uploaded files) move to the new name in the same
	// transaction.
	UpdateUser(ctx context.Context, username string, user *model.User) error
	// SetToken stores a freshly issued token.
	SetToken(ctx context.Context, username, token string) error
	// DeleteUser removes the account and every set it owns, and disowns its
	// files so a later account with the same name cannot claim them.
	DeleteUser(ctx context.Context, username string) error
	// AddSavedSet idempotently records setID on the user's saved list after
	// checking the set still exists.
	AddSavedSet(ctx context.Context, username, setID string) model.SaveResult
	SavedSets(ctx context.Context, username string) ([]string, error)
}

type FileRepository interface {
	// CreateFile streams r into blob storage and records the metadata.
	// file.ID must already be assigned.
	CreateFile(ctx context.Context, file *model.File, r io.Reader) error
	GetFile(ctx context.Context, id string) (*model.File, error)
	// OpenFile returns the metadata and a reader over the bytes. The caller
	// closes the reader.
	OpenFile(ctx context.Context, id string) (*model.File, io.ReadCloser, error)
	// DeleteFile removes metadata and bytes. Unknown ids are not an error.
	DeleteFile(ctx context.Context, id string) error
}

// BlobStore holds file bytes keyed by file id.
type BlobStore interface {
	// Put streams r under key and returns the number of bytes stored.
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
