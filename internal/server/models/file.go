package models

import "time"

// FileRecord describes metadata for an uploaded file owned by a user.
// The file contents live in object storage under StorageKey.
type FileRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Extension  string    `json:"extension,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	StorageKey string    `json:"-"`
}
