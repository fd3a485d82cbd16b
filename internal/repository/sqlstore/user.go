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

var (
	errSetMissing  = errors.New("set missing")
	errUserMissing = errors.New("user missing")
)

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.Username == "" || user.PasswordHash == "" {
		return apperror.ValidationFailed("username", "username and password are required")
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.SavedSets == nil {
		user.SavedSets = []string{}
	}

	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO users (username, password_hash, token, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`),
		user.Username, user.PasswordHash, user.Token, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlstore: creating user: %w", err)
	}
	return nil
}

func (db *DB) GetUser(ctx context.Context, username string) (*model.User, error) {
	if username == "" {
		return nil, apperror.NotFound("user", username)
	}

	var u model.User
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT username, password_hash, token, created_at, updated_at
		 FROM users WHERE username = ?`), username,
	).Scan(&u.Username, &u.PasswordHash, &u.Token, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", username, err)
	}

	u.SavedSets, err = db.savedSets(ctx, db.conn, username)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) UpdateUser(ctx context.Context, username string, user *model.User) error {
	if user.Username == "" || user.PasswordHash == "" {
		return apperror.ValidationFailed("username", "username and password are required")
	}

	renamed := user.Username != username
	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		if renamed {
			var one int
			err := tx.QueryRowContext(ctx, db.rebind(`SELECT 1 FROM users WHERE username = ?`), user.Username).Scan(&one)
			if err == nil {
				return apperror.Conflict("user", user.Username)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		// saved_sets follows the rename through ON UPDATE CASCADE.
		n, err := rowsAffected(tx.ExecContext(ctx, db.rebind(
			`UPDATE users
			 SET username = ?, password_hash = ?, token = ?, updated_at = ?
			 WHERE username = ?`),
			user.Username, user.PasswordHash, user.Token, time.Now().UTC(), username,
		))
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("user", user.Username)
			}
			return err
		}
		if n == 0 {
			return apperror.NotFound("user", username)
		}

		if renamed {
			if _, err := db.changeOwner(ctx, tx, username, user.Username); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, db.rebind(
				`UPDATE files SET owner = ? WHERE owner = ?`), user.Username, username,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("sqlstore: updating user %s: %w", username, err)
	}
	return nil
}

func (db *DB) SetToken(ctx context.Context, username, token string) error {
	n, err := rowsAffected(db.conn.ExecContext(ctx, db.rebind(
		`UPDATE users SET token = ?, updated_at = ? WHERE username = ?`),
		token, time.Now().UTC(), username,
	))
	if err != nil {
		return fmt.Errorf("sqlstore: storing token for %s: %w", username, err)
	}
	if n == 0 {
		return apperror.NotFound("user", username)
	}
	return nil
}

func (db *DB) DeleteUser(ctx context.Context, username string) error {
	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM saved_sets WHERE username = ?`), username); err != nil {
			return err
		}
		n, err := rowsAffected(tx.ExecContext(ctx, db.rebind(`DELETE FROM users WHERE username = ?`), username))
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("user", username)
		}
		if _, err := tx.ExecContext(ctx, db.rebind(
			`UPDATE files SET owner = '' WHERE owner = ?`), username,
		); err != nil {
			return err
		}
		_, err = db.deleteSetsByOwner(ctx, tx, username)
		return err
	})
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("sqlstore: deleting user %s: %w", username, err)
	}
	return nil
}

func (db *DB) AddSavedSet(ctx context.Context, username, setID string) model.SaveResult {
	setMissing := model.SaveResult{Reason: model.SaveSetMissing, Message: "Set not found or has been deleted"}
	if !ident.Valid(setID) {
		return setMissing
	}

	err := db.withTx(ctx, func(ctx context.Context, tx DBTX) error {
		if err := db.requireSet(ctx, tx, setID); err != nil {
			if apperror.Is(err, apperror.ErrNotFound) {
				return errSetMissing
			}
			return err
		}

		var one int
		err := tx.QueryRowContext(ctx, db.rebind(`SELECT 1 FROM users WHERE username = ?`), username).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return errUserMissing
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, db.rebind(
			`INSERT INTO saved_sets (username, set_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (username, set_id) DO NOTHING`),
			username, setID, time.Now().UTC(),
		)
		return err
	})

	switch {
	case errors.Is(err, errSetMissing):
		return setMissing
	case errors.Is(err, errUserMissing):
		return model.SaveResult{Reason: model.SaveUserMissing, Message: "User not found"}
	case err != nil:
		return model.SaveResult{Reason: model.SaveFailed, Message: "Error updating saved sets", Err: err}
	}

	user, err := db.GetUser(ctx, username)
	if err != nil {
		return model.SaveResult{Reason: model.SaveFailed, Message: "Error updating saved sets", Err: err}
	}
	return model.SaveResult{Success: true, Reason: model.SaveOK, Message: "Set saved", User: user}
}

func (db *DB) SavedSets(ctx context.Context, username string) ([]string, error) {
	return db.savedSets(ctx, db.conn, username)
}

func (db *DB) savedSets(ctx context.Context, q DBTX, username string) ([]string, error) {
	rows, err := q.QueryContext(ctx, db.rebind(
		`SELECT set_id FROM saved_sets WHERE username = ? ORDER BY created_at, set_id`), username)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing saved sets of %s: %w", username, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning saved set: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating saved sets: %w", err)
	}
	return ids, nil
}
