package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/sakif/flashcards/internal/repository"
)

// DefaultChunkSize is the size of each stored piece of a file.
const DefaultChunkSize = 255 * 1024

// ChunkStore keeps file bytes in the file_chunks table, one row per chunk.
// Reads and writes move one chunk at a time, so no file is ever held in
// memory whole.
type ChunkStore struct {
	db        *DB
	chunkSize int
}

var _ repository.BlobStore = (*ChunkStore)(nil)

// ChunkStore returns a blob store backed by this database.
func (db *DB) ChunkStore() *ChunkStore {
	return &ChunkStore{db: db, chunkSize: DefaultChunkSize}
}

func (s *ChunkStore) Put(ctx context.Context, key, _ string, r io.Reader) (int64, error) {
	if err := s.Delete(ctx, key); err != nil {
		return 0, err
	}

	buf := make([]byte, s.chunkSize)
	var total int64
	for n := 0; ; n++ {
		read, err := io.ReadFull(r, buf)
		if read > 0 {
			if _, err := s.db.conn.ExecContext(ctx, s.db.rebind(
				`INSERT INTO file_chunks (file_id, n, data) VALUES (?, ?, ?)`),
				key, n, buf[:read],
			); err != nil {
				return total, fmt.Errorf("writing chunk %d: %w", n, err)
			}
			total += int64(read)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("reading upload: %w", err)
		}
	}
}

func (s *ChunkStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return &chunkReader{ctx: ctx, store: s, key: key}, nil
}

func (s *ChunkStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.conn.ExecContext(ctx, s.db.rebind(`DELETE FROM file_chunks WHERE file_id = ?`), key)
	return err
}

// chunkReader fetches chunks lazily, one query per chunk.
type chunkReader struct {
	ctx   context.Context
	store *ChunkStore
	key   string
	next  int
	buf   []byte
	done  bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if c.done {
			return 0, io.EOF
		}
		err := c.store.db.conn.QueryRowContext(c.ctx, c.store.db.rebind(
			`SELECT data FROM file_chunks WHERE file_id = ? AND n = ?`),
			c.key, c.next,
		).Scan(&c.buf)
		if errors.Is(err, sql.ErrNoRows) {
			c.done = true
			return 0, io.EOF
		}
		if err != nil {
			return 0, fmt.Errorf("reading chunk %d of %s: %w", c.next, c.key, err)
		}
		c.next++
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *chunkReader) Close() error {
	c.done = true
	c.buf = nil
	return nil
}
