package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/model"
)

func TestSetCreate(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	set, err := s.sets.Create(ctx, "name", SetInput{
		Title:       "  title  ",
		Description: "desc",
		Public:      true,
		Cards: []model.Card{
			textCard("term", "def"),
			textCard("", "dropped"),
			textCard("term2", "def2"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "title", set.Title)
	assert.Equal(t, "name", set.Owner)
	require.Len(t, set.Cards, 2)

	got, err := s.sets.Get(ctx, "", set.ID)
	require.NoError(t, err)
	assert.Equal(t, set.Title, got.Title)
	assert.Equal(t, set.Description, got.Description)
	assert.Equal(t, set.Public, got.Public)
	require.Len(t, got.Cards, 2)
	assert.Equal(t, "term", got.Cards[0].Term.Content)
	assert.Equal(t, "term2", got.Cards[1].Term.Content)
}

func TestSetCreate_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		requester string
		in        SetInput
		want      error
	}{
		{
			name: "anonymous",
			in:   SetInput{Title: "t", Cards: []model.Card{textCard("a", "b")}},
			want: apperror.ErrUnauthenticated,
		},
		{
			name:      "no cards",
			requester: "name",
			in:        SetInput{Title: "t", Cards: []model.Card{}},
			want:      apperror.ErrValidation,
		},
		{
			name:      "only invalid cards",
			requester: "name",
			in:        SetInput{Title: "t", Cards: []model.Card{textCard("a", "")}},
			want:      apperror.ErrValidation,
		},
		{
			name:      "no title",
			requester: "name",
			in:        SetInput{Title: " ", Cards: []model.Card{textCard("a", "b")}},
			want:      apperror.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServices(t)
			ctx := context.Background()

			_, err := s.sets.Create(ctx, tt.requester, tt.in)
			assert.True(t, apperror.Is(err, tt.want), "got %v, want %v", err, tt.want)

			sets, err := s.sets.List(ctx, "name", SetQuery{User: "name"})
			require.NoError(t, err)
			assert.Empty(t, sets, "nothing should be persisted")
		})
	}
}

// Anonymous readers get 401 for private sets, other users 403; public sets
// are readable by everyone.
func TestSetGet_Visibility(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	public := s.createSet(t, "owner", "public", true)
	private := s.createSet(t, "owner", "private", false)

	tests := []struct {
		name      string
		requester string
		id        string
		want      error
	}{
		{"anonymous public", "", public.ID, nil},
		{"stranger public", "stranger", public.ID, nil},
		{"owner public", "owner", public.ID, nil},
		{"anonymous private", "", private.ID, apperror.ErrUnauthenticated},
		{"stranger private", "stranger", private.ID, apperror.ErrForbidden},
		{"owner private", "owner", private.ID, nil},
		{"missing", "owner", "0123456789abcdef01234567", apperror.ErrNotFound},
		{"malformed", "owner", "short", apperror.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.sets.Get(ctx, tt.requester, tt.id)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestSetList_Scopes(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	s.createSet(t, "alice", "alice public", true)
	s.createSet(t, "alice", "alice private", false)
	s.createSet(t, "bob", "bob public", true)
	s.createSet(t, "bob", "bob private", false)

	titles := func(sets []model.Set) []string {
		out := make([]string, 0, len(sets))
		for _, set := range sets {
			out = append(out, set.Title)
		}
		return out
	}

	tests := []struct {
		name      string
		requester string
		query     SetQuery
		want      []string
	}{
		{"anonymous", "", SetQuery{}, []string{"alice public", "bob public"}},
		{"signed in", "alice", SetQuery{}, []string{"alice public", "alice private", "bob public"}},
		{"own sets", "alice", SetQuery{User: "alice"}, []string{"alice public", "alice private"}},
		{"someone else's sets", "alice", SetQuery{User: "bob"}, []string{"bob public"}},
		{"anonymous asking for a user", "", SetQuery{User: "bob"}, []string{"bob public"}},
		{"title filter", "", SetQuery{Title: "BOB"}, []string{"bob public"}},
		{"title filter with scope", "alice", SetQuery{Title: "private"}, []string{"alice private"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, err := s.sets.List(ctx, tt.requester, tt.query)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, titles(sets))
		})
	}
}

func TestSetUpdate(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	set := s.createSet(t, "owner", "title", true, textCard("a", "1"), textCard("b", "2"))

	updated, err := s.sets.Update(ctx, "owner", set.ID, SetInput{
		Title:  "renamed",
		Public: false,
		Cards:  []model.Card{textCard("c", "3")},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.False(t, updated.Public)
	require.Len(t, updated.Cards, 1, "cards are replaced, not merged")
	assert.Equal(t, "c", updated.Cards[0].Term.Content)

	_, err = s.sets.Get(ctx, "", set.ID)
	assert.True(t, apperror.Is(err, apperror.ErrUnauthenticated), "now private, got %v", err)
	_, err = s.sets.Get(ctx, "other", set.ID)
	assert.True(t, apperror.Is(err, apperror.ErrForbidden), "now private, got %v", err)
}

func TestSetUpdate_ErrorOrder(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	set := s.createSet(t, "owner", "title", true)
	valid := SetInput{Title: "t", Cards: []model.Card{textCard("a", "b")}}

	tests := []struct {
		name      string
		requester string
		id        string
		in        SetInput
		want      error
	}{
		{"missing set before auth", "", "0123456789abcdef01234567", valid, apperror.ErrNotFound},
		{"anonymous", "", set.ID, valid, apperror.ErrUnauthenticated},
		{"stranger", "other", set.ID, valid, apperror.ErrForbidden},
		{"empty cards", "owner", set.ID, SetInput{Title: "t"}, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.sets.Update(ctx, tt.requester, tt.id, tt.in)
			assert.True(t, apperror.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}

	got, err := s.sets.Get(ctx, "owner", set.ID)
	require.NoError(t, err)
	assert.Equal(t, "title", got.Title, "rejected updates must not change the set")
	assert.Len(t, got.Cards, 1)
}

func TestSetDelete(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	set := s.createSet(t, "owner", "title", false)

	err := s.sets.Delete(ctx, "", set.ID)
	assert.True(t, apperror.Is(err, apperror.ErrUnauthenticated), "got %v", err)

	err = s.sets.Delete(ctx, "other", set.ID)
	assert.True(t, apperror.Is(err, apperror.ErrForbidden), "got %v", err)

	require.NoError(t, s.sets.Delete(ctx, "owner", set.ID))
	require.NoError(t, s.sets.Delete(ctx, "owner", set.ID), "second delete is a no-op")

	_, err = s.sets.Get(ctx, "owner", set.ID)
	assert.True(t, apperror.Is(err, apperror.ErrNotFound), "got %v", err)

	cards, err := s.db.CardsBySet(ctx, set.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	err = s.sets.Delete(ctx, "", set.ID)
	assert.True(t, apperror.Is(err, apperror.ErrUnauthenticated), "anonymous delete of a gone set, got %v", err)
}
