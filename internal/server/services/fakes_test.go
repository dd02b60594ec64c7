package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
)

// In-memory repository fakes mirroring the SQL semantics of the postgres
// implementations, so service tests exercise real wiring without a database.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	u := *user
	u.CreatedAt = time.Now()
	r.users[user.ID] = &u
	return &u, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *u
	return &copied, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*models.Session{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *session
	r.sessions[session.ID] = &s
	return nil
}

func (r *fakeSessionRepo) FindByRefreshToken(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshToken == token && !s.Revoked() && s.RefreshExpiresAt.After(now) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeSessionRepo) UpdateTokenPair(ctx context.Context, sessionID, oldRefreshToken string, pair *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.RefreshToken != oldRefreshToken || s.Revoked() {
		return common.ErrorNotFound
	}
	s.AccessToken = pair.AccessToken
	s.RefreshToken = pair.RefreshToken
	s.AccessExpiresAt = pair.AccessExpiresAt
	s.RefreshExpiresAt = pair.RefreshExpiresAt
	return nil
}

func (r *fakeSessionRepo) FindByIDAndAccessToken(ctx context.Context, sessionID, accessToken string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.AccessToken != accessToken {
		return nil, common.ErrorNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Revoked() {
		return nil
	}
	t := at
	s.RevokedAt = &t
	return nil
}

func (r *fakeSessionRepo) RevokeAllExcept(ctx context.Context, userID, keepSessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.ID != keepSessionID && !s.Revoked() {
			t := at
			s.RevokedAt = &t
		}
	}
	return nil
}

type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*models.FileRecord
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: map[string]*models.FileRecord{}}
}

func (r *fakeFileRepo) Create(ctx context.Context, file *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := *file
	r.files[file.ID] = &f
	return nil
}

func (r *fakeFileRepo) owned(userID string) []*models.FileRecord {
	var result []*models.FileRecord
	for _, f := range r.files {
		if f.UserID == userID {
			copied := *f
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result
}

func (r *fakeFileRepo) List(ctx context.Context, userID string, limit, offset int) ([]*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := r.owned(userID)
	if offset >= len(owned) {
		return nil, nil
	}
	owned = owned[offset:]
	if limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

func (r *fakeFileRepo) Count(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.owned(userID))), nil
}

func (r *fakeFileRepo) Get(ctx context.Context, userID, id string) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok || f.UserID != userID {
		return nil, common.ErrorNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *fakeFileRepo) Update(ctx context.Context, file *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[file.ID]
	if !ok || f.UserID != file.UserID {
		return common.ErrorNotFound
	}
	copied := *file
	r.files[file.ID] = &copied
	return nil
}

func (r *fakeFileRepo) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok || f.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.files, id)
	return nil
}

type fakeRepoMgr struct {
	userRepo    *fakeUserRepo
	sessionRepo *fakeSessionRepo
	fileRepo    *fakeFileRepo
}

func newFakeRepoMgr() *fakeRepoMgr {
	return &fakeRepoMgr{
		userRepo:    newFakeUserRepo(),
		sessionRepo: newFakeSessionRepo(),
		fileRepo:    newFakeFileRepo(),
	}
}

func (m *fakeRepoMgr) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *fakeRepoMgr) Users(db dbx.DBTX) users.Repository                  { return m.userRepo }
func (m *fakeRepoMgr) Sessions(db dbx.DBTX) sessions.Repository            { return m.sessionRepo }
func (m *fakeRepoMgr) Files(db dbx.DBTX) files.Repository                  { return m.fileRepo }

type fakeBlobStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeBlobStorage() *fakeBlobStorage {
	return &fakeBlobStorage{objects: map[string][]byte{}}
}

func (s *fakeBlobStorage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeBlobStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeBlobStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db
}
