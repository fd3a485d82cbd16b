package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/auth"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository/sqlstore"
)

const testSecret = "service-test-secret-0123456789"

type services struct {
	db    *sqlstore.DB
	users *UserService
	sets  *SetService
	cards *CardService
	files *FileService
}

// newServices wires every service to a fresh in-memory database.
func newServices(t *testing.T) *services {
	t.Helper()
	db, err := sqlstore.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret, 0)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

	return &services{
		db:    db,
		users: NewUserService(db, db, tokens, auth.NewPasswordService(4), logger),
		sets:  NewSetService(db, logger),
		cards: NewCardService(db, db, logger),
		files: NewFileService(db, db, db, logger),
	}
}

func textCard(term, def string) model.Card {
	return model.Card{
		Term:       model.CardSide{Content: term},
		Definition: model.CardSide{Content: def},
	}
}

func (s *services) register(t *testing.T, username string) *AuthResult {
	t.Helper()
	res, err := s.users.Register(context.Background(), username, "password")
	require.NoError(t, err)
	return res
}

func (s *services) createSet(t *testing.T, owner, title string, public bool, cards ...model.Card) *model.Set {
	t.Helper()
	if len(cards) == 0 {
		cards = []model.Card{textCard("term", "def")}
	}
	set, err := s.sets.Create(context.Background(), owner, SetInput{Title: title, Public: public, Cards: cards})
	require.NoError(t, err)
	return set
}
