package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/storage"
)

// FilePage is one page of a user's file listing.
type FilePage struct {
	Items    []*models.FileRecord `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"pageSize"`
	Pages    int64                `json:"pages"`
}

// FileService provides CRUD over uploaded files. Metadata lives in the
// database, contents in object storage. Every operation is scoped by the
// owning user id supplied by the authorization gate; the service itself
// never sees unauthenticated callers.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       storage.BlobStorage
	now         func() time.Time
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, blobs storage.BlobStorage) *FileService {
	return &FileService{db: db, repomanager: m, blobs: blobs, now: time.Now}
}

// WithClock replaces the service's time source and returns the service.
func (s *FileService) WithClock(now func() time.Time) *FileService {
	s.now = now
	return s
}

func fileExtension(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}

// Save stores a new file for userID: contents to object storage, metadata
// to the database.
func (s *FileService) Save(ctx context.Context, userID, name, mimeType string, body io.Reader, size int64) (*models.FileRecord, error) {
	key := storage.RandomStorageKey()
	if err := s.blobs.Put(ctx, key, mimeType, body, size); err != nil {
		return nil, fmt.Errorf("error storing blob: %v", err)
	}

	file := &models.FileRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		Extension:  fileExtension(name),
		MimeType:   mimeType,
		Size:       size,
		UploadedAt: s.now(),
		StorageKey: key,
	}

	repo := s.repomanager.Files(s.db)
	if err := repo.Create(ctx, file); err != nil {
		// metadata failed, don't leave the blob orphaned
		_ = s.blobs.Delete(ctx, key)
		return nil, fmt.Errorf("error creating file record: %v", err)
	}

	return file, nil
}

// List returns one page of userID's files, newest first. page starts at 1.
func (s *FileService) List(ctx context.Context, userID string, page, pageSize int) (*FilePage, error) {
	repo := s.repomanager.Files(s.db)

	offset := (page - 1) * pageSize
	items, err := repo.List(ctx, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing files: %v", err)
	}

	total, err := repo.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error counting files: %v", err)
	}

	pages := (total + int64(pageSize) - 1) / int64(pageSize)

	if items == nil {
		items = []*models.FileRecord{}
	}

	return &FilePage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}

// Get returns the metadata of one file owned by userID, or
// common.ErrorNotFound.
func (s *FileService) Get(ctx context.Context, userID, id string) (*models.FileRecord, error) {
	repo := s.repomanager.Files(s.db)
	return repo.Get(ctx, userID, id)
}

// Download returns the metadata and an open reader over the file contents.
// The caller must close the reader.
func (s *FileService) Download(ctx context.Context, userID, id string) (*models.FileRecord, io.ReadCloser, error) {
	repo := s.repomanager.Files(s.db)

	file, err := repo.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.blobs.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading blob: %v", err)
	}

	return file, body, nil
}

// Update replaces the contents and metadata of an existing file, keeping
// its id. The old blob is removed best-effort once the new one is in place.
func (s *FileService) Update(ctx context.Context, userID, id, name, mimeType string, body io.Reader, size int64) (*models.FileRecord, error) {
	repo := s.repomanager.Files(s.db)

	existing, err := repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	key := storage.RandomStorageKey()
	if err := s.blobs.Put(ctx, key, mimeType, body, size); err != nil {
		return nil, fmt.Errorf("error storing blob: %v", err)
	}

	file := &models.FileRecord{
		ID:         id,
		UserID:     userID,
		Name:       name,
		Extension:  fileExtension(name),
		MimeType:   mimeType,
		Size:       size,
		UploadedAt: s.now(),
		StorageKey: key,
	}

	if err := repo.Update(ctx, file); err != nil {
		_ = s.blobs.Delete(ctx, key)
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error updating file record: %v", err)
	}

	_ = s.blobs.Delete(ctx, existing.StorageKey)

	return file, nil
}

// Delete removes a file owned by userID. The blob is removed best-effort
// before the metadata row.
func (s *FileService) Delete(ctx context.Context, userID, id string) error {
	repo := s.repomanager.Files(s.db)

	file, err := repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	_ = s.blobs.Delete(ctx, file.StorageKey)

	return repo.Delete(ctx, userID, id)
}
