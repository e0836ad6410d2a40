package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/clinic-auth-service/internal/hasher"
	"github.com/pribylovaa/clinic-auth-service/internal/models"
	"github.com/pribylovaa/clinic-auth-service/internal/storage"
	"github.com/pribylovaa/clinic-auth-service/internal/tokens"
	"github.com/pribylovaa/clinic-auth-service/mocks"
)

func testCodecOpts() tokens.Options {
	return tokens.Options{
		AccessSecret:  "unit-access-secret",
		RefreshSecret: "unit-refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "clinic-auth-service",
		Audience:      []string{"clinic-api"},
	}
}

func testCodec(t *testing.T, mutate ...func(*tokens.Options)) *tokens.Codec {
	t.Helper()
	opts := testCodecOpts()
	for _, m := range mutate {
		m(&opts)
	}
	c, err := tokens.New(opts)
	require.NoError(t, err)
	return c
}

func testHasher() *hasher.Hasher {
	return hasher.New(bcrypt.MinCost)
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	return New(st, testCodec(t), testHasher()), st
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := testHasher().Hash(plain)
	require.NoError(t, err)
	return h
}

// issuedRefresh выпускает refresh-токен и запись, как если бы он был сохранён при входе.
func issuedRefresh(t *testing.T, svc *Service, userID uuid.UUID) (string, *models.RefreshToken) {
	t.Helper()
	tokenID := uuid.New()
	tok, exp, err := svc.codec.IssueRefreshToken(userID, tokenID)
	require.NoError(t, err)
	return tok, &models.RefreshToken{
		ID:        1,
		TokenID:   tokenID,
		UserID:    userID,
		TokenHash: mustHash(t, tok),
		ExpiresAt: exp,
		CreatedAt: time.Now().UTC(),
	}
}

// memStore - потокобезопасное хранилище в памяти с той же семантикой ротации,
// что и у postgres: вставка новой записи и удаление старой атомарны.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	refresh map[uuid.UUID]*models.RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]*models.User{},
		refresh: map[uuid.UUID]*models.RefreshToken{},
	}
}

func (m *memStore) SaveUser(_ context.Context, u models.NewUser) (*models.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.Email]; ok {
		return nil, storage.ErrAlreadyExists
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         u.Name,
		Surname:      u.Surname,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	m.users[u.Email] = user

	return user.Public(), nil
}

func (m *memStore) UserCredentialsByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (*models.PublicUser, error) {
	u, err := m.UserCredentialsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (m *memStore) UserByID(_ context.Context, id uuid.UUID) (*models.PublicUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.ID == id {
			return u.Public(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SaveRefreshToken(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.refresh[t.TokenID] = &cp
	return nil
}

func (m *memStore) RefreshTokenByID(_ context.Context, id uuid.UUID) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.refresh[id]
	if !ok || !t.ExpiresAt.After(time.Now()) {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, old uuid.UUID, next *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.refresh[old]; !ok {
		return storage.ErrNotFound
	}
	delete(m.refresh, old)
	cp := *next
	m.refresh[next.TokenID] = &cp
	return nil
}

func (m *memStore) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, t := range m.refresh {
		if !t.ExpiresAt.After(now) {
			delete(m.refresh, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Close() {}

func (m *memStore) liveTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refresh)
}

var _ storage.Storage = (*memStore)(nil)
