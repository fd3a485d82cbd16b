package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/ident"
	"github.com/sakif/flashcards/internal/model"
)

const cardColumns = `id, set_id, term_is_file, term_content, definition_is_file, definition_content`

func scanCard(row rowScanner) (model.Card, error) {
	var c model.Card
	err := row.Scan(&c.ID, &c.SetID, &c.Term.IsFile, &c.Term.Content, &c.Definition.IsFile, &c.Definition.Content)
	return c, err
}

func (db *DB) CreateCard(ctx context.Context, setID string, card *model.Card) error {
	if !card.Valid() {
		return apperror.ValidationFailed("card", "a card needs both a term and a definition")
	}
	cards, err := db.CreateCards(ctx, setID, []model.Card{*card})
	if err != nil {
		return err
	}
	*card = cards[0]
	return nil
}

func (db *DB) CreateCards(ctx context.Context, setID string, cards []model.Card) ([]model.Card, error) {
	if !ident.Valid(setID) {
		return nil, apperror.NotFound("set", setID)
	}

	var created []model.Card
	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		if err := db.requireSet(ctx, tx, setID); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx, db.rebind(
			`SELECT COALESCE(MAX(position) + 1, 0) FROM cards WHERE set_id = ?`), setID,
		).Scan(&next); err != nil {
			return err
		}
		var err error
		created, err = db.insertCards(ctx, tx, setID, cards, next)
		return err
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlstore: creating cards in set %s: %w", setID, err)
	}
	return created, nil
}

func (db *DB) ReplaceCards(ctx context.Context, setID string, cards []model.Card) ([]model.Card, error) {
	if !ident.Valid(setID) {
		return nil, apperror.NotFound("set", setID)
	}

	var created []model.Card
	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		if err := db.requireSet(ctx, tx, setID); err != nil {
			return err
		}
		var err error
		created, err = db.replaceCards(ctx, tx, setID, cards)
		return err
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlstore: replacing cards of set %s: %w", setID, err)
	}
	return created, nil
}

// replaceCards drops every card of the set and recreates the valid ones
// from cards. The whole list is replaced, never merged.
func (db *DB) replaceCards(ctx context.Context, tx DBTX, setID string, cards []model.Card) ([]model.Card, error) {
	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM cards WHERE set_id = ?`), setID); err != nil {
		return nil, err
	}
	return db.insertCards(ctx, tx, setID, cards, 0)
}

// insertCards stores the valid entries of cards at consecutive positions
// starting at first. Invalid entries are skipped.
func (db *DB) insertCards(ctx context.Context, tx DBTX, setID string, cards []model.Card, first int) ([]model.Card, error) {
	valid := model.ValidCards(cards)
	created := make([]model.Card, 0, len(valid))

	for i, c := range valid {
		c.ID = ident.New()
		c.SetID = setID
		_, err := tx.ExecContext(ctx, db.rebind(
			`INSERT INTO cards (id, set_id, position, term_is_file, term_content, definition_is_file, definition_content)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			c.ID, setID, first+i, c.Term.IsFile, c.Term.Content, c.Definition.IsFile, c.Definition.Content,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting card: %w", err)
		}
		created = append(created, c)
	}
	return created, nil
}

func (db *DB) requireSet(ctx context.Context, q DBTX, setID string) error {
	var one int
	err := q.QueryRowContext(ctx, db.rebind(`SELECT 1 FROM sets WHERE id = ?`), setID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("set", setID)
	}
	return err
}

func (db *DB) CardsBySet(ctx context.Context, setID string) ([]model.Card, error) {
	if !ident.Valid(setID) {
		return []model.Card{}, nil
	}
	return db.cardsBySet(ctx, db.conn, setID)
}

func (db *DB) cardsBySet(ctx context.Context, q DBTX, setID string) ([]model.Card, error) {
	rows, err := q.QueryContext(ctx, db.rebind(
		`SELECT `+cardColumns+` FROM cards WHERE set_id = ? ORDER BY position`), setID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing cards of set %s: %w", setID, err)
	}
	defer rows.Close()

	cards := make([]model.Card, 0)
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating cards: %w", err)
	}
	return cards, nil
}

func (db *DB) DeleteCardsBySet(ctx context.Context, setID string) (int64, error) {
	if !ident.Valid(setID) {
		return 0, nil
	}
	n, err := rowsAffected(db.conn.ExecContext(ctx, db.rebind(`DELETE FROM cards WHERE set_id = ?`), setID))
	if err != nil {
		return 0, fmt.Errorf("sqlstore: deleting cards of set %s: %w", setID, err)
	}
	return n, nil
}

func (db *DB) GetCard(ctx context.Context, id string) (*model.Card, error) {
	if !ident.Valid(id) {
		return nil, apperror.NotFound("card", id)
	}
	c, err := scanCard(db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("card", id)
		}
		return nil, fmt.Errorf("sqlstore: getting card %s: %w", id, err)
	}
	return &c, nil
}

// DeleteCard removes the card unless it is the last one of its set. Touching
// the set row first takes its write lock, so concurrent deletes in one set
// count cards one at a time.
func (db *DB) DeleteCard(ctx context.Context, id string) error {
	if !ident.Valid(id) {
		return nil
	}

	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		var setID string
		err := tx.QueryRowContext(ctx, db.rebind(`SELECT set_id FROM cards WHERE id = ?`), id).Scan(&setID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, db.rebind(
			`UPDATE sets SET updated_at = ? WHERE id = ?`), time.Now().UTC(), setID,
		); err != nil {
			return err
		}

		var remaining int
		if err := tx.QueryRowContext(ctx, db.rebind(
			`SELECT COUNT(*) FROM cards WHERE set_id = ?`), setID,
		).Scan(&remaining); err != nil {
			return err
		}
		if remaining <= 1 {
			return apperror.ValidationFailed("card", "a set must keep at least one card")
		}

		_, err = tx.ExecContext(ctx, db.rebind(`DELETE FROM cards WHERE id = ?`), id)
		return err
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrValidation) {
			return err
		}
		return fmt.Errorf("sqlstore: deleting card %s: %w", id, err)
	}
	return nil
}

func (db *DB) UpdateCard(ctx context.Context, id string, card model.Card) (*model.Card, error) {
	if !ident.Valid(id) {
		return nil, apperror.NotFound("card", id)
	}
	if !card.Valid() {
		return nil, apperror.ValidationFailed("card", "a card needs both a term and a definition")
	}

	n, err := rowsAffected(db.conn.ExecContext(ctx, db.rebind(
		`UPDATE cards
		 SET term_is_file = ?, term_content = ?, definition_is_file = ?, definition_content = ?
		 WHERE id = ?`),
		card.Term.IsFile, card.Term.Content, card.Definition.IsFile, card.Definition.Content, id,
	))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: updating card %s: %w", id, err)
	}
	if n == 0 {
		return nil, apperror.NotFound("card", id)
	}
	return db.GetCard(ctx, id)
}

func (db *DB) CardByFile(ctx context.Context, fileID, owner string) (*model.Card, error) {
	if !ident.Valid(fileID) || owner == "" {
		return nil, apperror.NotFound("card", fileID)
	}
	// Set creation time and card position survive card rewrites, so the
	// chosen card stays put while its set exists.
	c, err := scanCard(db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT c.id, c.set_id, c.term_is_file, c.term_content, c.definition_is_file, c.definition_content
		 FROM cards c
		 JOIN sets s ON s.id = c.set_id
		 WHERE s.owner = ?
		   AND ((c.term_is_file = ? AND c.term_content = ?)
		     OR (c.definition_is_file = ? AND c.definition_content = ?))
		 ORDER BY s.created_at, s.id, c.position
		 LIMIT 1`),
		owner, true, fileID, true, fileID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("card", fileID)
		}
		return nil, fmt.Errorf("sqlstore: finding card for file %s: %w", fileID, err)
	}
	return &c, nil
}
