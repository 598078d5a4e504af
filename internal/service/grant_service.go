package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

type grantStore interface {
	GrantExists(ctx context.Context, formID, userID string, capability models.Capability) (bool, error)
	Create(ctx context.Context, grant *models.FormPermission) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.FormPermission, error)
	DeleteOwned(ctx context.Context, grantID, ownerID string) (int64, error)
}

type grantFormReader interface {
	OwnerOf(ctx context.Context, formID string) (*string, error)
}

type grantUserReader interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// GrantService manages per-form capability delegation. Only the form owner
// may create or revoke grants, and grants are addressed by the grantee's
// email so owners never need user ids.
type GrantService struct {
	grants   grantStore
	forms    grantFormReader
	users    grantUserReader
	validate *validator.Validate
	logger   *zap.Logger
}

func NewGrantService(grants grantStore, forms grantFormReader, users grantUserReader, validate *validator.Validate, logger *zap.Logger) *GrantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrantService{grants: grants, forms: forms, users: users, validate: validate, logger: logger}
}

// CreateGrant gives the user identified by email a capability on the form.
func (s *GrantService) CreateGrant(ctx context.Context, req dto.CreateGrantRequest, actorID string) (*models.FormPermission, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	ownerID, err := s.forms.OwnerOf(ctx, req.FormID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}
	if ownerID == nil || *ownerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the form owner can share it")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no user with that email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up user")
	}

	capability := models.Capability(req.Capability)
	exists, err := s.grants.GrantExists(ctx, req.FormID, user.ID, capability)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing grants")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this user already has that permission for this form")
	}

	grant := &models.FormPermission{
		FormID:     req.FormID,
		UserID:     user.ID,
		Capability: capability,
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grant")
	}
	grant.UserEmail = user.Email
	grant.UserName = user.FullName

	s.logger.Info("grant created",
		zap.String("form_id", req.FormID),
		zap.String("user_id", user.ID),
		zap.String("capability", string(capability)))
	return grant, nil
}

// ListGrants returns every grant on forms the actor owns.
func (s *GrantService) ListGrants(ctx context.Context, actorID string) ([]models.FormPermission, error) {
	grants, err := s.grants.ListByOwner(ctx, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grants")
	}
	return grants, nil
}

// DeleteGrant revokes a grant. The delete is scoped to forms the actor
// owns, so a grant on someone else's form reads as absent.
func (s *GrantService) DeleteGrant(ctx context.Context, grantID, actorID string) error {
	affected, err := s.grants.DeleteOwned(ctx, grantID, actorID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grant")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "grant not found")
	}
	s.logger.Info("grant revoked", zap.String("grant_id", grantID))
	return nil
}
