package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/ident"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// =========================================================================
// CreateSet / GetSet
// =========================================================================

func TestCreateSet_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	in := &model.Set{
		Title:       "title",
		Description: "desc",
		Owner:       "name",
		Public:      true,
		Cards: []model.Card{
			card("one", "1"),
			{Term: model.CardSide{IsFile: true, Content: ident.New()}, Definition: model.CardSide{Content: "2"}},
		},
	}
	require.NoError(t, db.CreateSet(ctx, in))
	require.True(t, ident.Valid(in.ID))
	require.Len(t, in.Cards, 2)

	got, err := db.GetSet(ctx, in.ID)
	require.NoError(t, err)

	assert.Equal(t, in.Title, got.Title)
	assert.Equal(t, in.Description, got.Description)
	assert.Equal(t, in.Owner, got.Owner)
	assert.Equal(t, in.Public, got.Public)
	require.Len(t, got.Cards, 2)
	for i := range got.Cards {
		assert.Equal(t, in.Cards[i].Term, got.Cards[i].Term)
		assert.Equal(t, in.Cards[i].Definition, got.Cards[i].Definition)
		assert.Equal(t, in.ID, got.Cards[i].SetID)
	}
}

func TestCreateSet_SkipsInvalidCards(t *testing.T) {
	db := newTestDB(t)

	s := createSet(t, db, "name", "title", true,
		card("a", "1"),
		model.Card{Term: model.CardSide{Content: "no definition"}},
		card("c", "3"),
	)

	got, err := db.GetSet(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, got.Cards, 2)
	assert.Equal(t, "a", got.Cards[0].Term.Content)
	assert.Equal(t, "c", got.Cards[1].Term.Content)
}

func TestCreateSet_Rejects(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name string
		set  model.Set
	}{
		{"empty cards", model.Set{Title: "t", Owner: "name", Cards: []model.Card{}}},
		{"missing cards", model.Set{Title: "t", Owner: "name"}},
		{"missing title", model.Set{Owner: "name", Cards: []model.Card{card("a", "b")}}},
		{"missing owner", model.Set{Title: "t", Cards: []model.Card{card("a", "b")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreateSet(ctx, &tt.set)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}

	sets, err := db.ListSets(ctx, repository.SetFilter{Scope: repository.ScopeOwner, Owner: "name"})
	require.NoError(t, err)
	assert.Empty(t, sets, "rejected sets must not be persisted")
}

func TestGetSet_MalformedAndMissing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"", "short", "zzzzzzzzzzzzzzzzzzzzzzzz", ident.New()} {
		_, err := db.GetSet(ctx, id)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "id %q", id)
	}
}

// =========================================================================
// ListSets
// =========================================================================

func TestListSets_Scopes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createSet(t, db, "alice", "alice public", true)
	createSet(t, db, "alice", "alice private", false)
	createSet(t, db, "bob", "bob public", true)
	createSet(t, db, "bob", "bob private", false)

	titles := func(filter repository.SetFilter) []string {
		sets, err := db.ListSets(ctx, filter)
		require.NoError(t, err)
		out := make([]string, 0, len(sets))
		for _, s := range sets {
			require.NotEmpty(t, s.Cards, "listed sets carry their cards")
			out = append(out, s.Title)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"alice public", "bob public"},
		titles(repository.SetFilter{Scope: repository.ScopePublic}))
	assert.ElementsMatch(t, []string{"alice public", "alice private"},
		titles(repository.SetFilter{Scope: repository.ScopeOwner, Owner: "alice"}))
	assert.ElementsMatch(t, []string{"bob public"},
		titles(repository.SetFilter{Scope: repository.ScopeOwnerPublic, Owner: "bob"}))
	assert.ElementsMatch(t, []string{"alice public", "bob public", "bob private"},
		titles(repository.SetFilter{Scope: repository.ScopePublicAndOwner, Owner: "bob"}))
}

func TestListSets_TitleFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createSet(t, db, "alice", "Spanish Verbs", true)
	createSet(t, db, "alice", "french verbs", true)
	createSet(t, db, "alice", "100% chemistry", true)
	createSet(t, db, "alice", "1000 chemistry", true)

	sets, err := db.ListSets(ctx, repository.SetFilter{Title: "VERBS"})
	require.NoError(t, err)
	assert.Len(t, sets, 2)

	sets, err = db.ListSets(ctx, repository.SetFilter{Title: "100%"})
	require.NoError(t, err)
	require.Len(t, sets, 1, "wildcards in the query match literally")
	assert.Equal(t, "100% chemistry", sets[0].Title)
}

func TestListSets_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)
	sets, err := db.ListSets(context.Background(), repository.SetFilter{})
	require.NoError(t, err)
	assert.NotNil(t, sets)
	assert.Empty(t, sets)
}

// =========================================================================
// UpdateSet
// =========================================================================

func TestUpdateSet_ReplacesCards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := createSet(t, db, "name", "title", true, card("a", "1"), card("b", "2"))
	oldIDs := []string{s.Cards[0].ID, s.Cards[1].ID}

	update := &model.Set{
		ID:     s.ID,
		Title:  "new title",
		Owner:  "name",
		Public: false,
		Cards:  []model.Card{card("c", "3")},
	}
	require.NoError(t, db.UpdateSet(ctx, update))

	assert.Equal(t, "new title", update.Title)
	assert.False(t, update.Public)
	require.Len(t, update.Cards, 1)
	assert.Equal(t, "c", update.Cards[0].Term.Content)

	for _, id := range oldIDs {
		_, err := db.GetCard(ctx, id)
		assert.ErrorIs(t, err, apperror.ErrNotFound, "old cards are replaced, not merged")
	}
}

func TestUpdateSet_ClearsOmittedDescription(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := &model.Set{Title: "t", Description: "d", Owner: "name", Cards: []model.Card{card("a", "1")}}
	require.NoError(t, db.CreateSet(ctx, s))

	update := &model.Set{ID: s.ID, Title: "t", Owner: "name", Cards: []model.Card{card("a", "1")}}
	require.NoError(t, db.UpdateSet(ctx, update))
	assert.Equal(t, "", update.Description)
}

func TestUpdateSet_KeepsOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createSet(t, db, "name", "title", true)

	update := &model.Set{ID: s.ID, Title: "t", Owner: "intruder", Cards: []model.Card{card("a", "1")}}
	require.NoError(t, db.UpdateSet(ctx, update))
	assert.Equal(t, "name", update.Owner)
}

func TestUpdateSet_InvalidLeavesSetUntouched(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createSet(t, db, "name", "title", true)

	err := db.UpdateSet(ctx, &model.Set{ID: s.ID, Title: "t", Owner: "name", Cards: []model.Card{}})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	got, err := db.GetSet(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "title", got.Title)
	assert.Len(t, got.Cards, 1)
}

func TestUpdateSet_Missing(t *testing.T) {
	db := newTestDB(t)
	err := db.UpdateSet(context.Background(), &model.Set{ID: ident.New(), Title: "t", Owner: "name", Cards: []model.Card{card("a", "1")}})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// DeleteSet / DeleteSetsByOwner / ChangeOwner
// =========================================================================

func TestDeleteSet_Cascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	createUser(t, db, "reader")
	s := createSet(t, db, "name", "title", true, card("a", "1"), card("b", "2"))
	require.True(t, db.AddSavedSet(ctx, "reader", s.ID).Success)

	require.NoError(t, db.DeleteSet(ctx, s.ID))

	_, err := db.GetSet(ctx, s.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	cards, err := db.CardsBySet(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	saved, err := db.SavedSets(ctx, "reader")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestDeleteSet_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createSet(t, db, "name", "title", true)

	assert.NoError(t, db.DeleteSet(ctx, s.ID))
	assert.NoError(t, db.DeleteSet(ctx, s.ID))
	assert.NoError(t, db.DeleteSet(ctx, "malformed"))
}

func TestDeleteSetsByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a1 := createSet(t, db, "alice", "a1", true)
	createSet(t, db, "alice", "a2", false)
	b := createSet(t, db, "bob", "b", true)

	n, err := db.DeleteSetsByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := db.ListSets(ctx, repository.SetFilter{Scope: repository.ScopeOwner, Owner: "alice"})
	require.NoError(t, err)
	assert.Empty(t, left)

	cards, err := db.CardsBySet(ctx, a1.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	_, err = db.GetSet(ctx, b.ID)
	assert.NoError(t, err, "other owners are untouched")
}

func TestChangeOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := createSet(t, db, "old", "t", false)
	createSet(t, db, "old", "t2", true)

	n, err := db.ChangeOwner(ctx, "old", "new")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := db.GetSet(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Owner)
}
