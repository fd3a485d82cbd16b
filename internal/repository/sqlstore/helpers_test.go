package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { db.Close() })
	return db
}

func card(term, def string) model.Card {
	return model.Card{
		Term:       model.CardSide{Content: term},
		Definition: model.CardSide{Content: def},
	}
}

func createSet(t *testing.T, db *DB, owner, title string, public bool, cards ...model.Card) *model.Set {
	t.Helper()
	if len(cards) == 0 {
		cards = []model.Card{card("term", "def")}
	}
	s := &model.Set{Title: title, Owner: owner, Public: public, Cards: cards}
	require.NoError(t, db.CreateSet(context.Background(), s))
	return s
}

func createUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "hash-" + username, Token: "token-" + username}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}
