package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/authz"
	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

type mockFormRepo struct {
	forms        map[string]*models.Form
	byToken      map[string]*models.Form
	summaries    []models.FormSummary
	replaceCalls int
	deleteCalls  int
	replaceErr   error
}

func newMockFormRepo(forms ...*models.Form) *mockFormRepo {
	m := &mockFormRepo{forms: map[string]*models.Form{}, byToken: map[string]*models.Form{}}
	for _, f := range forms {
		m.forms[f.ID] = f
		m.byToken[f.ShareToken] = f
	}
	return m
}

func (m *mockFormRepo) Create(ctx context.Context, form *models.Form) error {
	form.ID = "form-new"
	form.ShareToken = "token-new"
	m.forms[form.ID] = form
	m.byToken[form.ShareToken] = form
	return nil
}

func (m *mockFormRepo) FindByID(ctx context.Context, id string) (*models.Form, error) {
	form, ok := m.forms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return form, nil
}

func (m *mockFormRepo) FindByShareToken(ctx context.Context, token string) (*models.Form, error) {
	form, ok := m.byToken[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return form, nil
}

func (m *mockFormRepo) List(ctx context.Context, userID string, isAdmin bool) ([]models.FormSummary, error) {
	return m.summaries, nil
}

func (m *mockFormRepo) ReplaceTree(ctx context.Context, form *models.Form, sections []models.Section) error {
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	form.Sections = sections
	return nil
}

func (m *mockFormRepo) Delete(ctx context.Context, id string) error {
	m.deleteCalls++
	delete(m.forms, id)
	return nil
}

type mockGrantReader struct {
	grants map[string]models.CapabilitySet // keyed by formID+":"+userID
}

func (m *mockGrantReader) GrantsFor(ctx context.Context, formID, userID string) (models.CapabilitySet, error) {
	if m.grants == nil {
		return nil, nil
	}
	return m.grants[formID+":"+userID], nil
}

type stubCache struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = map[string][]byte{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = raw
	return nil
}

func (s *stubCache) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.store, key)
	return nil
}

func ownedForm(id, owner string) *models.Form {
	return &models.Form{ID: id, OwnerID: &owner, ShareToken: "token-" + id, Title: "T"}
}

func userActor(id string) *authz.Actor {
	return &authz.Actor{ID: id, Role: models.RoleUser}
}

func TestFormServiceCreateAssignsOwner(t *testing.T) {
	repo := newMockFormRepo()
	svc := NewFormService(repo, &mockGrantReader{}, nil, time.Minute, nil, zap.NewNop())

	form, err := svc.Create(context.Background(), dto.FormRequest{Title: "Survey"}, userActor("u1"))
	require.NoError(t, err)
	require.NotNil(t, form.OwnerID)
	assert.Equal(t, "u1", *form.OwnerID)
	assert.NotEmpty(t, form.ShareToken)
}

func TestFormServiceCreateAnonymousDenied(t *testing.T) {
	svc := NewFormService(newMockFormRepo(), &mockGrantReader{}, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), dto.FormRequest{Title: "x"}, nil)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestFormServiceCreateRejectsUnknownQuestionType(t *testing.T) {
	svc := NewFormService(newMockFormRepo(), &mockGrantReader{}, nil, time.Minute, nil, zap.NewNop())

	req := dto.FormRequest{
		Title: "Survey",
		Sections: []dto.SectionInput{{
			Title:     "S",
			Questions: []dto.QuestionInput{{Text: "Q", Type: "hologram"}},
		}},
	}
	_, err := svc.Create(context.Background(), req, userActor("u1"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, appErr.Details, 1)
}

func TestFormServiceGetCloaksInvisibleForm(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	svc := NewFormService(repo, &mockGrantReader{}, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "f1", userActor("stranger"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestFormServiceGetWithGrant(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	grants := &mockGrantReader{grants: map[string]models.CapabilitySet{
		"f1:viewer": {models.CapabilityViewResponses: {}},
	}}
	svc := NewFormService(repo, grants, nil, time.Minute, nil, zap.NewNop())

	form, err := svc.Get(context.Background(), "f1", userActor("viewer"))
	require.NoError(t, err)
	assert.Equal(t, "f1", form.ID)
}

func TestFormServiceGetByShareTokenCachesResult(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	cache := &stubCache{}
	svc := NewFormService(repo, &mockGrantReader{}, cache, time.Minute, nil, zap.NewNop())

	form, err := svc.GetByShareToken(context.Background(), "token-f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", form.ID)
	assert.Contains(t, cache.store, "form:share:token-f1")

	// Second read is served from cache even if the store forgets the form.
	delete(repo.byToken, "token-f1")
	again, err := svc.GetByShareToken(context.Background(), "token-f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", again.ID)
}

func TestFormServiceGetByShareTokenUnknown(t *testing.T) {
	svc := NewFormService(newMockFormRepo(), &mockGrantReader{}, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.GetByShareToken(context.Background(), "nope")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestFormServiceUpdateRequiresEditGrant(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	svc := NewFormService(repo, &mockGrantReader{}, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), "f1", dto.FormRequest{Title: "New"}, userActor("stranger"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Zero(t, repo.replaceCalls)
}

func TestFormServiceUpdateWithEditGrantReplacesTree(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	grants := &mockGrantReader{grants: map[string]models.CapabilitySet{
		"f1:editor": {models.CapabilityEdit: {}},
	}}
	cache := &stubCache{store: map[string][]byte{"form:share:token-f1": []byte(`{}`)}}
	svc := NewFormService(repo, grants, cache, time.Minute, nil, zap.NewNop())

	req := dto.FormRequest{
		Title: "Renamed",
		Sections: []dto.SectionInput{{
			Title:     "S1",
			Questions: []dto.QuestionInput{{Text: "Q1", Type: "short_text"}},
		}},
	}
	form, err := svc.Update(context.Background(), "f1", req, userActor("editor"))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.replaceCalls)
	assert.Equal(t, "Renamed", form.Title)
	assert.Contains(t, cache.deleted, "form:share:token-f1")
}

func TestFormServiceDeleteOwnerOnly(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	grants := &mockGrantReader{grants: map[string]models.CapabilitySet{
		"f1:editor": {models.CapabilityEdit: {}},
	}}
	svc := NewFormService(repo, grants, nil, time.Minute, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "f1", userActor("editor"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Zero(t, repo.deleteCalls)

	require.NoError(t, svc.Delete(context.Background(), "f1", userActor("owner")))
	assert.Equal(t, 1, repo.deleteCalls)
}

func TestFormServiceListAttachesCapabilities(t *testing.T) {
	repo := newMockFormRepo()
	repo.summaries = []models.FormSummary{{ID: "f1"}, {ID: "f2", IsOwned: true}}
	grants := &mockGrantReader{grants: map[string]models.CapabilitySet{
		"f1:u1": {models.CapabilityEdit: {}},
	}}
	svc := NewFormService(repo, grants, nil, time.Minute, nil, zap.NewNop())

	summaries, err := svc.List(context.Background(), userActor("u1"))
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, []models.Capability{models.CapabilityEdit}, summaries[0].Capabilities)
	assert.Empty(t, summaries[1].Capabilities)
	assert.True(t, summaries[1].IsOwned)
}

func TestFormServiceAuthorizeResponses(t *testing.T) {
	repo := newMockFormRepo(ownedForm("f1", "owner"))
	grants := &mockGrantReader{grants: map[string]models.CapabilitySet{
		"f1:viewer": {models.CapabilityViewResponses: {}},
		"f1:editor": {models.CapabilityEdit: {}},
	}}
	svc := NewFormService(repo, grants, nil, time.Minute, nil, zap.NewNop())

	_, err := svc.AuthorizeResponses(context.Background(), "f1", userActor("viewer"))
	assert.NoError(t, err)

	_, err = svc.AuthorizeResponses(context.Background(), "f1", userActor("editor"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
