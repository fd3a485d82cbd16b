package sqlstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/ident"
	"github.com/sakif/flashcards/internal/model"
)

func TestFile_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	// Small chunks so the payload spans several rows.
	db.blobs = &ChunkStore{db: db, chunkSize: 4}

	payload := []byte("\x89PNG\r\n\x1a\nnot really a picture")
	f := &model.File{ID: ident.New(), Owner: "name", OriginalName: "cat.png", ContentType: "image/png"}
	require.NoError(t, db.CreateFile(ctx, f, bytes.NewReader(payload)))
	assert.Equal(t, int64(len(payload)), f.Size)

	var chunks int
	require.NoError(t, db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_chunks WHERE file_id = ?`, f.ID).Scan(&chunks))
	assert.Equal(t, (len(payload)+3)/4, chunks)

	meta, rc, err := db.OpenFile(ctx, f.ID)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "cat.png", meta.OriginalName)
	assert.Equal(t, "name", meta.Owner)
	assert.Equal(t, "image/png", meta.ContentType)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFile_ExactChunkMultiple(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.blobs = &ChunkStore{db: db, chunkSize: 4}

	f := &model.File{ID: ident.New(), ContentType: "image/gif"}
	require.NoError(t, db.CreateFile(ctx, f, strings.NewReader("12345678")))

	_, rc, err := db.OpenFile(ctx, f.ID)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(got))
}

func TestFile_OwnerFollowsAccount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "name")

	f := &model.File{ID: ident.New(), Owner: "name", ContentType: "image/png"}
	require.NoError(t, db.CreateFile(ctx, f, strings.NewReader("data")))

	renamed := *u
	renamed.Username = "renamed"
	require.NoError(t, db.UpdateUser(ctx, "name", &renamed))

	got, err := db.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Owner)

	require.NoError(t, db.DeleteUser(ctx, "renamed"))
	got, err = db.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Owner, "a deleted account's files belong to nobody")
}

type failingReader struct{ after int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), r.after)
	r.after -= n
	return n, nil
}

func TestCreateFile_FailedUploadLeavesNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	db.blobs = &ChunkStore{db: db, chunkSize: 4}

	f := &model.File{ID: ident.New(), ContentType: "image/png"}
	err := db.CreateFile(ctx, f, &failingReader{after: 10})
	require.Error(t, err)

	_, err = db.GetFile(ctx, f.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	var chunks int
	require.NoError(t, db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_chunks WHERE file_id = ?`, f.ID).Scan(&chunks))
	assert.Zero(t, chunks)
}

func TestCreateFile_MalformedID(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateFile(context.Background(), &model.File{ID: "bad"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestGetFile_Missing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetFile(ctx, ident.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, _, err = db.OpenFile(ctx, "bad")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDeleteFile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	f := &model.File{ID: ident.New(), ContentType: "image/png"}
	require.NoError(t, db.CreateFile(ctx, f, strings.NewReader("data")))

	require.NoError(t, db.DeleteFile(ctx, f.ID))
	_, err := db.GetFile(ctx, f.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.NoError(t, db.DeleteFile(ctx, f.ID), "deleting twice is fine")
	assert.NoError(t, db.DeleteFile(ctx, "bad"))
}

type memBlobs struct {
	data map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	m.data[key] = b
	return int64(len(b)), err
}

func (m *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data[key])), nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestWithBlobStore(t *testing.T) {
	blobs := &memBlobs{data: map[string][]byte{}}
	db, err := New(":memory:", WithBlobStore(blobs))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &model.File{ID: ident.New(), ContentType: "image/png"}
	require.NoError(t, db.CreateFile(context.Background(), f, strings.NewReader("elsewhere")))
	assert.Equal(t, "elsewhere", string(blobs.data[f.ID]))

	require.NoError(t, db.DeleteFile(context.Background(), f.ID))
	assert.NotContains(t, blobs.data, f.ID)
}
