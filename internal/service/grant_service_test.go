package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

type mockGrantRepo struct {
	existing    map[string]bool // formID+":"+userID+":"+capability
	created     []*models.FormPermission
	list        []models.FormPermission
	deletedRows int64
}

func (m *mockGrantRepo) GrantExists(ctx context.Context, formID, userID string, capability models.Capability) (bool, error) {
	return m.existing[formID+":"+userID+":"+string(capability)], nil
}

func (m *mockGrantRepo) Create(ctx context.Context, grant *models.FormPermission) error {
	grant.ID = "grant-1"
	m.created = append(m.created, grant)
	return nil
}

func (m *mockGrantRepo) ListByOwner(ctx context.Context, ownerID string) ([]models.FormPermission, error) {
	return m.list, nil
}

func (m *mockGrantRepo) DeleteOwned(ctx context.Context, grantID, ownerID string) (int64, error) {
	return m.deletedRows, nil
}

type mockOwnerReader struct {
	owners map[string]string
}

func (m *mockOwnerReader) OwnerOf(ctx context.Context, formID string) (*string, error) {
	owner, ok := m.owners[formID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &owner, nil
}

type mockEmailReader struct {
	users map[string]*models.User
}

func (m *mockEmailReader) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newGrantService(grants *mockGrantRepo, forms *mockOwnerReader, users *mockEmailReader) *GrantService {
	return NewGrantService(grants, forms, users, validator.New(), zap.NewNop())
}

func validGrantRequest() dto.CreateGrantRequest {
	return dto.CreateGrantRequest{
		FormID:     "f1",
		Email:      "viewer@example.com",
		Capability: "view_responses",
	}
}

func TestCreateGrant(t *testing.T) {
	grants := &mockGrantRepo{}
	forms := &mockOwnerReader{owners: map[string]string{"f1": "owner"}}
	users := &mockEmailReader{users: map[string]*models.User{
		"viewer@example.com": {ID: "u2", Email: "viewer@example.com", FullName: "Viewer"},
	}}
	svc := newGrantService(grants, forms, users)

	grant, err := svc.CreateGrant(context.Background(), validGrantRequest(), "owner")
	require.NoError(t, err)
	assert.Equal(t, "u2", grant.UserID)
	assert.Equal(t, models.CapabilityViewResponses, grant.Capability)
	assert.Equal(t, "viewer@example.com", grant.UserEmail)
	require.Len(t, grants.created, 1)
}

func TestCreateGrantNonOwnerForbidden(t *testing.T) {
	forms := &mockOwnerReader{owners: map[string]string{"f1": "owner"}}
	svc := newGrantService(&mockGrantRepo{}, forms, &mockEmailReader{})

	_, err := svc.CreateGrant(context.Background(), validGrantRequest(), "someone-else")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCreateGrantUnknownForm(t *testing.T) {
	svc := newGrantService(&mockGrantRepo{}, &mockOwnerReader{}, &mockEmailReader{})

	_, err := svc.CreateGrant(context.Background(), validGrantRequest(), "owner")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateGrantUnknownEmail(t *testing.T) {
	forms := &mockOwnerReader{owners: map[string]string{"f1": "owner"}}
	svc := newGrantService(&mockGrantRepo{}, forms, &mockEmailReader{})

	_, err := svc.CreateGrant(context.Background(), validGrantRequest(), "owner")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "no user with that email", appErr.Message)
}

func TestCreateGrantDuplicateConflicts(t *testing.T) {
	grants := &mockGrantRepo{existing: map[string]bool{
		"f1:u2:view_responses": true,
	}}
	forms := &mockOwnerReader{owners: map[string]string{"f1": "owner"}}
	users := &mockEmailReader{users: map[string]*models.User{
		"viewer@example.com": {ID: "u2", Email: "viewer@example.com"},
	}}
	svc := newGrantService(grants, forms, users)

	_, err := svc.CreateGrant(context.Background(), validGrantRequest(), "owner")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateGrantDifferentCapabilityAllowed(t *testing.T) {
	// An edit grant does not block a view_responses grant for the same
	// (form, user) pair; only the exact tuple conflicts.
	grants := &mockGrantRepo{existing: map[string]bool{
		"f1:u2:edit": true,
	}}
	forms := &mockOwnerReader{owners: map[string]string{"f1": "owner"}}
	users := &mockEmailReader{users: map[string]*models.User{
		"viewer@example.com": {ID: "u2", Email: "viewer@example.com"},
	}}
	svc := newGrantService(grants, forms, users)

	_, err := svc.CreateGrant(context.Background(), validGrantRequest(), "owner")
	assert.NoError(t, err)
}

func TestCreateGrantValidatesCapability(t *testing.T) {
	svc := newGrantService(&mockGrantRepo{}, &mockOwnerReader{}, &mockEmailReader{})

	req := validGrantRequest()
	req.Capability = "admin"
	_, err := svc.CreateGrant(context.Background(), req, "owner")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDeleteGrantNotFound(t *testing.T) {
	svc := newGrantService(&mockGrantRepo{deletedRows: 0}, &mockOwnerReader{}, &mockEmailReader{})

	err := svc.DeleteGrant(context.Background(), "g1", "owner")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDeleteGrant(t *testing.T) {
	svc := newGrantService(&mockGrantRepo{deletedRows: 1}, &mockOwnerReader{}, &mockEmailReader{})
	assert.NoError(t, svc.DeleteGrant(context.Background(), "g1", "owner"))
}
