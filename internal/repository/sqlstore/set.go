package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/ident"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

const setColumns = `id, title, description, owner, public, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSet(row rowScanner) (model.Set, error) {
	var s model.Set
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.Owner, &s.Public, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (db *DB) CreateSet(ctx context.Context, set *model.Set) error {
	if err := set.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	set.ID = ident.New()
	set.CreatedAt = now
	set.UpdatedAt = now

	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, db.rebind(
			`INSERT INTO sets (`+setColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`),
			set.ID, set.Title, set.Description, set.Owner, set.Public, set.CreatedAt, set.UpdatedAt,
		)
		if err != nil {
			return err
		}
		cards, err := db.insertCards(ctx, tx, set.ID, set.Cards, 0)
		if err != nil {
			return err
		}
		set.Cards = cards
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlstore: creating set: %w", err)
	}

	return nil
}

func (db *DB) GetSet(ctx context.Context, id string) (*model.Set, error) {
	if !ident.Valid(id) {
		return nil, apperror.NotFound("set", id)
	}
	return db.getSet(ctx, db.conn, id)
}

func (db *DB) getSet(ctx context.Context, q DBTX, id string) (*model.Set, error) {
	set, err := scanSet(q.QueryRowContext(ctx, db.rebind(
		`SELECT `+setColumns+` FROM sets WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("set", id)
		}
		return nil, fmt.Errorf("sqlstore: getting set %s: %w", id, err)
	}

	set.Cards, err = db.cardsBySet(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return &set, nil
}

func (db *DB) ListSets(ctx context.Context, filter repository.SetFilter) ([]model.Set, error) {
	var (
		where []string
		args  []any
	)

	switch filter.Scope {
	case repository.ScopeOwner:
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	case repository.ScopeOwnerPublic:
		where = append(where, "owner = ? AND public = ?")
		args = append(args, filter.Owner, true)
	case repository.ScopePublicAndOwner:
		where = append(where, "(public = ? OR owner = ?)")
		args = append(args, true, filter.Owner)
	default:
		where = append(where, "public = ?")
		args = append(args, true)
	}

	if title := strings.TrimSpace(filter.Title); title != "" {
		where = append(where, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(title))+"%")
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(
		`SELECT `+setColumns+` FROM sets
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at, id`), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing sets: %w", err)
	}

	sets := make([]model.Set, 0)
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlstore: scanning set row: %w", err)
		}
		sets = append(sets, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlstore: iterating sets: %w", err)
	}
	// Release the connection before loading cards.
	rows.Close()

	for i := range sets {
		sets[i].Cards, err = db.cardsBySet(ctx, db.conn, sets[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return sets, nil
}

func (db *DB) UpdateSet(ctx context.Context, set *model.Set) error {
	if !ident.Valid(set.ID) {
		return apperror.NotFound("set", set.ID)
	}
	if err := set.Validate(); err != nil {
		return err
	}

	var updated *model.Set
	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		n, err := rowsAffected(tx.ExecContext(ctx, db.rebind(
			`UPDATE sets
			 SET title = ?, description = ?, public = ?, updated_at = ?
			 WHERE id = ?`),
			set.Title, set.Description, set.Public, time.Now().UTC(), set.ID,
		))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("set", set.ID)
		}
		if _, err := db.replaceCards(ctx, tx, set.ID, set.Cards); err != nil {
			return err
		}
		updated, err = db.getSet(ctx, tx, set.ID)
		return err
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("sqlstore: updating set %s: %w", set.ID, err)
	}

	*set = *updated
	return nil
}

func (db *DB) DeleteSet(ctx context.Context, id string) error {
	if !ident.Valid(id) {
		return nil
	}

	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		for _, query := range []string{
			`DELETE FROM cards WHERE set_id = ?`,
			`DELETE FROM saved_sets WHERE set_id = ?`,
			`DELETE FROM sets WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, db.rebind(query), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlstore: deleting set %s: %w", id, err)
	}
	return nil
}

func (db *DB) DeleteSetsByOwner(ctx context.Context, owner string) (int64, error) {
	var n int64
	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		var err error
		n, err = db.deleteSetsByOwner(ctx, tx, owner)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sqlstore: deleting sets of %s: %w", owner, err)
	}
	return n, nil
}

func (db *DB) deleteSetsByOwner(ctx context.Context, tx DBTX, owner string) (int64, error) {
	for _, query := range []string{
		`DELETE FROM cards WHERE set_id IN (SELECT id FROM sets WHERE owner = ?)`,
		`DELETE FROM saved_sets WHERE set_id IN (SELECT id FROM sets WHERE owner = ?)`,
	} {
		if _, err := tx.ExecContext(ctx, db.rebind(query), owner); err != nil {
			return 0, err
		}
	}
	return rowsAffected(tx.ExecContext(ctx, db.rebind(`DELETE FROM sets WHERE owner = ?`), owner))
}

func (db *DB) ChangeOwner(ctx context.Context, oldOwner, newOwner string) (int64, error) {
	n, err := db.changeOwner(ctx, db.conn, oldOwner, newOwner)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: moving sets from %s to %s: %w", oldOwner, newOwner, err)
	}
	return n, nil
}

func (db *DB) changeOwner(ctx context.Context, q DBTX, oldOwner, newOwner string) (int64, error) {
	return rowsAffected(q.ExecContext(ctx, db.rebind(
		`UPDATE sets SET owner = ?, updated_at = ? WHERE owner = ?`),
		newOwner, time.Now().UTC(), oldOwner,
	))
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
