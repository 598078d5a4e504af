package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

type mockUserStore struct {
	byEmail   map[string]*models.User
	byID      map[string]*models.User
	created   []*models.User
	passwords map[string]string
	active    map[string]bool
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		byEmail:   map[string]*models.User{},
		byID:      map[string]*models.User{},
		passwords: map[string]string{},
		active:    map[string]bool{},
	}
}

func (m *mockUserStore) add(u *models.User) {
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserStore) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	m.add(user)
	m.created = append(m.created, user)
	return nil
}

func (m *mockUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockUserStore) SetActive(ctx context.Context, id string, active bool) error {
	m.active[id] = active
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	store := newMockUserStore()
	svc := NewUserService(store, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:    "bob@example.com",
		FullName: "Bob",
		Password: "longenough",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newMockUserStore()
	store.add(&models.User{ID: "u1", Email: "bob@example.com"})
	svc := NewUserService(store, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:    "bob@example.com",
		FullName: "Bob",
		Password: "longenough",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.created)
}

func TestCreateUserInvalidPayload(t *testing.T) {
	svc := NewUserService(newMockUserStore(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResetPassword(t *testing.T) {
	store := newMockUserStore()
	store.add(&models.User{ID: "u1", Email: "bob@example.com"})
	svc := NewUserService(store, nil, zap.NewNop())

	err := svc.ResetPassword(context.Background(), "u1", dto.ResetPasswordRequest{Password: "freshpassword"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.passwords["u1"]), []byte("freshpassword")))

	err = svc.ResetPassword(context.Background(), "ghost", dto.ResetPasswordRequest{Password: "freshpassword"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeactivateUser(t *testing.T) {
	store := newMockUserStore()
	store.add(&models.User{ID: "u1", Email: "bob@example.com", Active: true})
	svc := NewUserService(store, nil, zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))
	active, ok := store.active["u1"]
	require.True(t, ok)
	assert.False(t, active)

	err := svc.Deactivate(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
