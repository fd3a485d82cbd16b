package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sakif/flashcards/internal/access"
	"github.com/sakif/flashcards/internal/apperror"
	"github.com/sakif/flashcards/internal/ident"
	"github.com/sakif/flashcards/internal/model"
	"github.com/sakif/flashcards/internal/repository"
)

// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

// rasterTypes are the detected types an upload may have. Vector formats
// can carry script and are refused.
var rasterTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/avif": true,
	"image/tiff": true,
}

// FileService stores uploaded images. A file remembers its uploader, and
// access comes from the uploader's oldest set whose cards reference it.
// References from other users' sets grant nothing.
type FileService struct {
	files  repository.FileRepository
	cards  repository.CardRepository
	sets   repository.SetRepository
	logger *slog.Logger
}

func NewFileService(
	files repository.FileRepository,
	cards repository.CardRepository,
	sets repository.SetRepository,
	logger *slog.Logger,
) *FileService {
	return &FileService{files: files, cards: cards, sets: sets, logger: logger}
}

// Upload streams an image into storage. The type detected from the leading
// bytes must be a raster image, and the declared type must be an image
// unless the client left it empty or generic. Nothing is stored otherwise.
func (s *FileService) Upload(ctx context.Context, requester, name, declaredType string, r io.Reader) (*model.File, error) {
	if err := requireUser(requester); err != nil {
		return nil, err
	}
	if declaredType != "" && declaredType != "application/octet-stream" && !isImage(declaredType) {
		return nil, apperror.ValidationFailed("file", "only image uploads are accepted")
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(head) == 0 {
		return nil, apperror.ValidationFailed("file", "file is empty")
	}
	detected := mimetype.Detect(head)
	if !isRaster(detected.String()) {
		return nil, apperror.ValidationFailed("file", "only image uploads are accepted")
	}

	file := &model.File{
		ID:           ident.New(),
		Owner:        requester,
		OriginalName: filepath.Base(name),
		ContentType:  detected.String(),
	}
	if err := s.files.CreateFile(ctx, file, br); err != nil {
		if apperror.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	s.logger.Info("file uploaded",
		slog.String("id", file.ID),
		slog.String("by", requester),
		slog.String("type", file.ContentType),
		slog.Int64("size", file.Size),
	)
	return file, nil
}

// Open returns the file and a reader over its bytes when the requester may
// read the owning set. The caller closes the reader.
func (s *FileService) Open(ctx context.Context, requester, id string) (*model.File, io.ReadCloser, error) {
	set, err := s.OwningSet(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Check(requester, set, access.Read, "image", id); err != nil {
		return nil, nil, err
	}

	file, rc, err := s.files.OpenFile(ctx, id)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("opening file %s: %w", id, err)
	}
	return file, rc, nil
}

// Delete removes a file the requester may write through its owning set,
// which only the uploader can. A file none of the uploader's cards reference
// is reported as missing.
func (s *FileService) Delete(ctx context.Context, requester, id string) error {
	if err := requireUser(requester); err != nil {
		return err
	}
	set, err := s.OwningSet(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Check(requester, set, access.Write, "image", id); err != nil {
		return err
	}

	if err := s.files.DeleteFile(ctx, id); err != nil {
		return fmt.Errorf("deleting file %s: %w", id, err)
	}
	s.logger.Info("file deleted", slog.String("id", id), slog.String("set", set.ID))
	return nil
}

// OwningSet resolves File → Card → Set through the uploader's sets only. A
// missing hop yields a nil set and no error.
func (s *FileService) OwningSet(ctx context.Context, fileID string) (*model.Set, error) {
	file, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting file %s: %w", fileID, err)
	}
	if file.Owner == "" {
		return nil, nil
	}

	card, err := s.cards.CardByFile(ctx, fileID, file.Owner)
	if err != nil {
		if apperror.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding card for file %s: %w", fileID, err)
	}
	return lookupSet(ctx, s.sets, card.SetID)
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

func isRaster(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return rasterTypes[mediaType]
}
