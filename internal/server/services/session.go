package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived signed access token and a long-lived
// opaque refresh token, together with their expiry instants and the id of
// the session they belong to.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	SessionID        string    `json:"sessionId"`
}

// Identity is the resolved caller attached to a request after the gate
// accepts its access token.
type Identity struct {
	UserID    string
	SessionID string
}

// SessionService owns the session lifecycle:
//   - Create: mint a token pair and persist a new session
//   - Rotate: exchange a refresh token for a fresh pair, same session id
//   - Revoke / RevokeAllExcept: soft-delete sessions
//   - VerifyAccessToken: the read-side check backing the authorization gate
//
// The refresh token is an opaque random value, never signed: it is only
// ever matched by exact value in the store, which is what makes revocation
// and rotation effective for it. The access token is signed so the codec
// can reject forgeries without touching the store, but the gate still
// cross-checks the stored current value so revocation and rotation take
// effect before the signed expiry.
type SessionService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	codec                        *auth.Codec
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewSessionService constructs a SessionService using repositories, the
// token codec, and server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, cfg *config.Config) *SessionService {
	return &SessionService{
		db:                           db,
		repomanager:                  m,
		codec:                        codec,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// WithClock replaces the service's time source and returns the service.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Create starts a new session for userID and returns its first token pair.
func (s *SessionService) Create(ctx context.Context, userID, userAgent, ip string) (*TokenPair, error) {
	now := s.now()
	sessionID := uuid.NewString()

	accessToken, err := s.codec.Sign(userID, sessionID, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	session := &models.Session{
		ID:               sessionID,
		UserID:           userID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.accessTokenValidityDuration),
		RefreshExpiresAt: now.Add(s.refreshTokenValidityDuration),
		CreatedAt:        now,
		UserAgent:        userAgent,
		IP:               ip,
	}

	repo := s.repomanager.Sessions(s.db)
	if err := repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating session: %v", err)
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  session.AccessExpiresAt,
		RefreshExpiresAt: session.RefreshExpiresAt,
		SessionID:        sessionID,
	}, nil
}

// Rotate exchanges a refresh token for a brand-new pair with fresh expiries,
// overwriting the session's token fields in place. The session id is
// preserved. Unknown, revoked, and expired refresh tokens all report
// common.ErrInvalidRefreshToken; the caller learns nothing about which.
func (s *SessionService) Rotate(ctx context.Context, oldRefreshToken string) (*TokenPair, error) {
	repo := s.repomanager.Sessions(s.db)
	now := s.now()

	session, err := repo.FindByRefreshToken(ctx, oldRefreshToken, now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.ErrorInternal
	}

	accessToken, err := s.codec.Sign(session.UserID, session.ID, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	next := &models.Session{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(s.accessTokenValidityDuration),
		RefreshExpiresAt: now.Add(s.refreshTokenValidityDuration),
	}

	// The update re-checks the old refresh token, so if a concurrent
	// rotation got there first this write matches nothing and the race
	// loser is told the token is invalid.
	if err := repo.UpdateTokenPair(ctx, session.ID, oldRefreshToken, next); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, common.ErrorInternal
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  next.AccessExpiresAt,
		RefreshExpiresAt: next.RefreshExpiresAt,
		SessionID:        session.ID,
	}, nil
}

// Revoke marks the session revoked. Revoking an already revoked or unknown
// session succeeds without effect.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	repo := s.repomanager.Sessions(s.db)
	if err := repo.Revoke(ctx, sessionID, s.now()); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// RevokeAllExcept revokes every non-revoked session of userID other than
// keepSessionID ("log out other devices").
func (s *SessionService) RevokeAllExcept(ctx context.Context, userID, keepSessionID string) error {
	repo := s.repomanager.Sessions(s.db)
	if err := repo.RevokeAllExcept(ctx, userID, keepSessionID, s.now()); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// VerifyAccessToken is the gate check: decode the bearer token, then
// cross-check the store for a session with that id whose current access
// token is an exact match, not revoked, and not past its access expiry.
// Every failure collapses to common.ErrorUnauthorized. The check never
// mutates session state.
func (s *SessionService) VerifyAccessToken(ctx context.Context, token string) (*Identity, error) {
	_, sessionID, err := s.codec.Verify(token)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Sessions(s.db)
	session, err := repo.FindByIDAndAccessToken(ctx, sessionID, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if session.Revoked() || !session.AccessExpiresAt.After(s.now()) {
		return nil, common.ErrorUnauthorized
	}

	return &Identity{UserID: session.UserID, SessionID: session.ID}, nil
}
