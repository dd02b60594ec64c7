// Package sessions declares the server-side repository contract for
// authenticated sessions and provides its PostgreSQL implementation.
//
// A session row holds the current access/refresh token pair. Rotation and
// revocation are in-place point writes keyed by session id or by the current
// refresh-token value; rows are never deleted.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filevault/internal/server/models"
)

type Repository interface {
	// Create persists a freshly issued session row.
	Create(ctx context.Context, session *models.Session) error

	// FindByRefreshToken returns the session whose current refresh token
	// equals token, is not revoked, and whose refresh expiry is after now.
	// Anything else reports common.ErrorNotFound.
	FindByRefreshToken(ctx context.Context, token string, now time.Time) (*models.Session, error)

	// UpdateTokenPair overwrites the session's token pair in place, but only
	// if oldRefreshToken is still the current value. A stale value reports
	// common.ErrorNotFound, which is how a lost rotation race surfaces.
	UpdateTokenPair(ctx context.Context, sessionID, oldRefreshToken string, pair *models.Session) error

	// FindByIDAndAccessToken returns the session with the given id whose
	// current access token equals accessToken, or common.ErrorNotFound.
	// Revocation and expiry are left for the caller to evaluate.
	FindByIDAndAccessToken(ctx context.Context, sessionID, accessToken string) (*models.Session, error)

	// Revoke marks the session revoked at the given instant. Revoking an
	// already revoked or unknown session is a no-op.
	Revoke(ctx context.Context, sessionID string, at time.Time) error

	// RevokeAllExcept revokes every non-revoked session of userID other
	// than keepSessionID.
	RevokeAllExcept(ctx context.Context, userID, keepSessionID string, at time.Time) error
}
