package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) error {
	query := `
		INSERT INTO files (id, user_id, name, extension, mime_type, size, uploaded_at, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		file.ID, file.UserID, file.Name, file.Extension, file.MimeType,
		file.Size, file.UploadedAt, file.StorageKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, limit, offset int) ([]*models.FileRecord, error) {
	query := `
		SELECT id, user_id, name, extension, mime_type, size, uploaded_at, storage_key
		FROM files
		WHERE user_id = $1
		ORDER BY uploaded_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		var item models.FileRecord
		if err := rows.Scan(&item.ID, &item.UserID, &item.Name, &item.Extension,
			&item.MimeType, &item.Size, &item.UploadedAt, &item.StorageKey); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(1) FROM files WHERE user_id = $1`

	var total int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.FileRecord, error) {
	query := `
		SELECT id, user_id, name, extension, mime_type, size, uploaded_at, storage_key
		FROM files
		WHERE id = $1 AND user_id = $2
	`
	file := &models.FileRecord{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&file.ID, &file.UserID, &file.Name, &file.Extension,
		&file.MimeType, &file.Size, &file.UploadedAt, &file.StorageKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) Update(ctx context.Context, file *models.FileRecord) error {
	query := `
		UPDATE files
		SET name = $1, extension = $2, mime_type = $3, size = $4, uploaded_at = $5, storage_key = $6
		WHERE id = $7 AND user_id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		file.Name, file.Extension, file.MimeType, file.Size, file.UploadedAt,
		file.StorageKey, file.ID, file.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM files WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
