package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/dbx"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/auth"
	"github.com/dmitrijs2005/filevault/internal/server/config"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/files"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/filevault/internal/server/repositories/users"
	"github.com/dmitrijs2005/filevault/internal/server/services"
)

// In-memory fixtures backing the real services, so handler tests go through
// the full stack below the HTTP layer without a database or object store.

type memUserRepo struct{ users map[string]*models.User }

func (r *memUserRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, ok := r.users[user.ID]; ok {
		return nil, common.ErrorAlreadyExists
	}
	u := *user
	r.users[user.ID] = &u
	return &u, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	copied := *u
	return &copied, nil
}

type memSessionRepo struct{ sessions map[string]*models.Session }

func (r *memSessionRepo) Create(ctx context.Context, session *models.Session) error {
	s := *session
	r.sessions[session.ID] = &s
	return nil
}

func (r *memSessionRepo) FindByRefreshToken(ctx context.Context, token string, now time.Time) (*models.Session, error) {
	for _, s := range r.sessions {
		if s.RefreshToken == token && !s.Revoked() && s.RefreshExpiresAt.After(now) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memSessionRepo) UpdateTokenPair(ctx context.Context, sessionID, oldRefreshToken string, pair *models.Session) error {
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

func (r *memSessionRepo) FindByIDAndAccessToken(ctx context.Context, sessionID, accessToken string) (*models.Session, error) {
	s, ok := r.sessions[sessionID]
	if !ok || s.AccessToken != accessToken {
		return nil, common.ErrorNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *memSessionRepo) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	s, ok := r.sessions[sessionID]
	if !ok || s.Revoked() {
		return nil
	}
	t := at
	s.RevokedAt = &t
	return nil
}

func (r *memSessionRepo) RevokeAllExcept(ctx context.Context, userID, keepSessionID string, at time.Time) error {
	for _, s := range r.sessions {
		if s.UserID == userID && s.ID != keepSessionID && !s.Revoked() {
			t := at
			s.RevokedAt = &t
		}
	}
	return nil
}

type memFileRepo struct{ files map[string]*models.FileRecord }

func (r *memFileRepo) Create(ctx context.Context, file *models.FileRecord) error {
	f := *file
	r.files[file.ID] = &f
	return nil
}

func (r *memFileRepo) owned(userID string) []*models.FileRecord {
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

func (r *memFileRepo) List(ctx context.Context, userID string, limit, offset int) ([]*models.FileRecord, error) {
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

func (r *memFileRepo) Count(ctx context.Context, userID string) (int64, error) {
	return int64(len(r.owned(userID))), nil
}

func (r *memFileRepo) Get(ctx context.Context, userID, id string) (*models.FileRecord, error) {
	f, ok := r.files[id]
	if !ok || f.UserID != userID {
		return nil, common.ErrorNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *memFileRepo) Update(ctx context.Context, file *models.FileRecord) error {
	f, ok := r.files[file.ID]
	if !ok || f.UserID != file.UserID {
		return common.ErrorNotFound
	}
	copied := *file
	r.files[file.ID] = &copied
	return nil
}

func (r *memFileRepo) Delete(ctx context.Context, userID, id string) error {
	f, ok := r.files[id]
	if !ok || f.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.files, id)
	return nil
}

type memRepoMgr struct {
	userRepo    *memUserRepo
	sessionRepo *memSessionRepo
	fileRepo    *memFileRepo
}

func (m *memRepoMgr) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }
func (m *memRepoMgr) Users(db dbx.DBTX) users.Repository                  { return m.userRepo }
func (m *memRepoMgr) Sessions(db dbx.DBTX) sessions.Repository            { return m.sessionRepo }
func (m *memRepoMgr) Files(db dbx.DBTX) files.Repository                  { return m.fileRepo }

var _ repomanager.RepositoryManager = (*memRepoMgr)(nil)

type memBlobStorage struct{ objects map[string][]byte }

func (s *memBlobStorage) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *memBlobStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStorage) Delete(ctx context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

type testClock struct{ current time.Time }

func (c *testClock) Now() time.Time          { return c.current }
func (c *testClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

type fixture struct {
	server *Server
	mgr    *memRepoMgr
	blobs  *memBlobStorage
	clock  *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		EndpointAddr:                 "127.0.0.1:0",
		SecretKey:                    "test-secret",
		AccessTokenValidityDuration:  10 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
		MaxUploadSize:                10 << 20,
	}

	clock := &testClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	codec := auth.NewCodec([]byte(cfg.SecretKey)).WithClock(clock.Now)

	mgr := &memRepoMgr{
		userRepo:    &memUserRepo{users: map[string]*models.User{}},
		sessionRepo: &memSessionRepo{sessions: map[string]*models.Session{}},
		fileRepo:    &memFileRepo{files: map[string]*models.FileRecord{}},
	}
	blobs := &memBlobStorage{objects: map[string][]byte{}}

	us := services.NewUserService(db, mgr)
	ss := services.NewSessionService(db, mgr, codec, cfg).WithClock(clock.Now)
	fs := services.NewFileService(db, mgr, blobs).WithClock(clock.Now)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := NewServer(cfg, logger, us, ss, fs)

	return &fixture{server: srv, mgr: mgr, blobs: blobs, clock: clock}
}
