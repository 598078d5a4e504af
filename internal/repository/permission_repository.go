package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

// PermissionRepository stores capability grants. The unique constraint on
// (form_id, user_id, capability) is the ultimate guard against duplicate
// grants; callers pre-check only to produce a friendly error.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository creates a new instance of PermissionRepository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// GrantExists reports whether the exact (form, user, capability) grant exists.
func (r *PermissionRepository) GrantExists(ctx context.Context, formID, userID string, capability models.Capability) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM form_permissions WHERE form_id = $1 AND user_id = $2 AND capability = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, formID, userID, capability); err != nil {
		return false, fmt.Errorf("grant exists: %w", err)
	}
	return exists, nil
}

// GrantsFor returns the set of capabilities the user holds on the form.
func (r *PermissionRepository) GrantsFor(ctx context.Context, formID, userID string) (models.CapabilitySet, error) {
	const query = `SELECT capability FROM form_permissions WHERE form_id = $1 AND user_id = $2`
	var capabilities []models.Capability
	if err := r.db.SelectContext(ctx, &capabilities, query, formID, userID); err != nil {
		return nil, fmt.Errorf("grants for: %w", err)
	}
	set := make(models.CapabilitySet, len(capabilities))
	for _, c := range capabilities {
		set[c] = struct{}{}
	}
	return set, nil
}

// Create inserts a grant. A concurrent duplicate insert loses against the
// unique constraint and surfaces as a Conflict.
func (r *PermissionRepository) Create(ctx context.Context, grant *models.FormPermission) error {
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO form_permissions (id, form_id, user_id, capability, created_at)
        VALUES (:id, :form_id, :user_id, :capability, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.Clone(appErrors.ErrConflict, "this user already has that permission for this form")
		}
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

// ListByOwner returns every grant on forms owned by the given user, with
// grantee and form display fields resolved.
func (r *PermissionRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.FormPermission, error) {
	const query = `SELECT p.id, p.form_id, p.user_id, p.capability, p.created_at,
            u.email AS user_email, u.full_name AS user_name, f.title AS form_title
        FROM form_permissions p
        JOIN forms f ON f.id = p.form_id
        JOIN users u ON u.id = p.user_id
        WHERE f.owner_id = $1
        ORDER BY p.created_at DESC`
	var grants []models.FormPermission
	if err := r.db.SelectContext(ctx, &grants, query, ownerID); err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	return grants, nil
}

// DeleteOwned removes a grant, but only when the acting user owns the form.
// Returns the number of rows removed so callers can distinguish absence.
func (r *PermissionRepository) DeleteOwned(ctx context.Context, grantID, ownerID string) (int64, error) {
	const query = `DELETE FROM form_permissions p
        USING forms f
        WHERE p.id = $1 AND f.id = p.form_id AND f.owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, grantID, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete grant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete grant rows: %w", err)
	}
	return affected, nil
}
