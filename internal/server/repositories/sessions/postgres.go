package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
)

// PostgresRepository implements the session repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at, user_agent, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.AccessToken, session.RefreshToken,
		session.AccessExpiresAt, session.RefreshExpiresAt, session.CreatedAt,
		session.UserAgent, session.IP); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByRefreshToken(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, revoked_at, created_at
		FROM sessions
		WHERE refresh_token = $1 AND revoked_at IS NULL AND refresh_expires_at > $2
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token, now).Scan(
		&session.ID, &session.UserID, &session.AccessToken, &session.RefreshToken,
		&session.AccessExpiresAt, &session.RefreshExpiresAt, &session.RevokedAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

// UpdateTokenPair is the rotation point write. The WHERE clause re-checks the
// current refresh token so that concurrent rotations of the same session
// cannot both succeed: whoever writes second no longer matches and gets
// common.ErrorNotFound.
func (r *PostgresRepository) UpdateTokenPair(ctx context.Context, sessionID, oldRefreshToken string, pair *models.Session) error {
	query := `
		UPDATE sessions
		SET access_token = $1, refresh_token = $2, access_expires_at = $3, refresh_expires_at = $4
		WHERE id = $5 AND refresh_token = $6 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query,
		pair.AccessToken, pair.RefreshToken, pair.AccessExpiresAt, pair.RefreshExpiresAt,
		sessionID, oldRefreshToken)
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

func (r *PostgresRepository) FindByIDAndAccessToken(ctx context.Context, sessionID, accessToken string) (*models.Session, error) {
	query := `
		SELECT id, user_id, access_token, access_expires_at, revoked_at
		FROM sessions
		WHERE id = $1 AND access_token = $2
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionID, accessToken).Scan(
		&session.ID, &session.UserID, &session.AccessToken, &session.AccessExpiresAt, &session.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	query := `
		UPDATE sessions SET revoked_at = $1
		WHERE id = $2 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, at, sessionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeAllExcept(ctx context.Context, userID, keepSessionID string, at time.Time) error {
	query := `
		UPDATE sessions SET revoked_at = $1
		WHERE user_id = $2 AND id != $3 AND revoked_at IS NULL
	`
	if _, err := r.db.ExecContext(ctx, query, at, userID, keepSessionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
