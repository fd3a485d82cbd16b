package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/ident"
	"github.com/sakif/flashcards/internal/model"
)

// CreateFile writes the bytes first and the metadata row last, so a file is
// never visible before its content is complete.
func (db *DB) CreateFile(ctx context.Context, file *model.File, r io.Reader) error {
	if !ident.Valid(file.ID) {
		return apperror.ValidationFailed("id", "file id is malformed")
	}

	size, err := db.blobs.Put(ctx, file.ID, file.ContentType, r)
	if err != nil {
		_ = db.blobs.Delete(context.WithoutCancel(ctx), file.ID)
		return fmt.Errorf("sqlstore: storing file %s: %w", file.ID, err)
	}
	file.Size = size
	file.CreatedAt = time.Now().UTC()

	_, err = db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO files (id, owner, original_name, content_type, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		file.ID, file.Owner, file.OriginalName, file.ContentType, file.Size, file.CreatedAt,
	)
	if err != nil {
		_ = db.blobs.Delete(context.WithoutCancel(ctx), file.ID)
		return fmt.Errorf("sqlstore: recording file %s: %w", file.ID, err)
	}
	return nil
}

func (db *DB) GetFile(ctx context.Context, id string) (*model.File, error) {
	if !ident.Valid(id) {
		return nil, apperror.NotFound("file", id)
	}

	var f model.File
	err := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT id, owner, original_name, content_type, size, created_at FROM files WHERE id = ?`), id,
	).Scan(&f.ID, &f.Owner, &f.OriginalName, &f.ContentType, &f.Size, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("file", id)
		}
		return nil, fmt.Errorf("sqlstore: getting file %s: %w", id, err)
	}
	return &f, nil
}

func (db *DB) OpenFile(ctx context.Context, id string) (*model.File, io.ReadCloser, error) {
	f, err := db.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := db.blobs.Open(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: opening file %s: %w", id, err)
	}
	return f, rc, nil
}

func (db *DB) DeleteFile(ctx context.Context, id string) error {
	if !ident.Valid(id) {
		return nil
	}
	if _, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM files WHERE id = ?`), id); err != nil {
		return fmt.Errorf("sqlstore: deleting file %s: %w", id, err)
	}
	if err := db.blobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("sqlstore: deleting file %s content: %w", id, err)
	}
	return nil
}
