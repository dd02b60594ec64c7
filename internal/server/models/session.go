package models

import "time"

// Session binds a user to one issued token lineage. A session holds exactly
// one current access/refresh token pair; rotation overwrites the pair in
// place, revocation sets RevokedAt and is irreversible. Rows are never
// physically deleted, expiry is evaluated lazily at verification time.
type Session struct {
	ID               string
	UserID           string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RevokedAt        *time.Time
	CreatedAt        time.Time

	// Client metadata, collected on creation and unused by core logic.
	UserAgent string
	IP        string
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}
