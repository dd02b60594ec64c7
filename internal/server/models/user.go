// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account identified by a client-supplied id. The password is
// stored only as a bcrypt hash.
type User struct {
	ID           string
	PasswordHash string
	CreatedAt    time.Time
}
