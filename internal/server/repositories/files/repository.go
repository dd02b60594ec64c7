// Package files declares the repository contract for per-user file metadata
// and provides its PostgreSQL implementation. File contents live in object
// storage; only metadata and the storage key are kept here.
package files

import (
	"context"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.FileRecord) error

	// List returns up to limit records owned by userID ordered by upload
	// time, newest first, skipping offset records.
	List(ctx context.Context, userID string, limit, offset int) ([]*models.FileRecord, error)

	// Count returns the total number of records owned by userID.
	Count(ctx context.Context, userID string) (int64, error)

	// Get returns the record with the given id owned by userID, or
	// common.ErrorNotFound.
	Get(ctx context.Context, userID, id string) (*models.FileRecord, error)

	// Update overwrites the record's metadata in place scoped by owner;
	// common.ErrorNotFound when no row matches.
	Update(ctx context.Context, file *models.FileRecord) error

	// Delete removes the record scoped by owner; common.ErrorNotFound when
	// no row matches.
	Delete(ctx context.Context, userID, id string) error
}
