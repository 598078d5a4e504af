package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/authz"
	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

type formStore interface {
	Create(ctx context.Context, form *models.Form) error
	FindByID(ctx context.Context, id string) (*models.Form, error)
	FindByShareToken(ctx context.Context, token string) (*models.Form, error)
	List(ctx context.Context, userID string, isAdmin bool) ([]models.FormSummary, error)
	ReplaceTree(ctx context.Context, form *models.Form, sections []models.Section) error
	Delete(ctx context.Context, id string) error
}

type grantReader interface {
	GrantsFor(ctx context.Context, formID, userID string) (models.CapabilitySet, error)
}

type formCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// FormService implements form CRUD with per-form authorization and the
// full-replace schema update strategy.
type FormService struct {
	forms    formStore
	grants   grantReader
	cache    formCache
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewFormService constructs a FormService. cache and metrics may be nil.
func NewFormService(forms formStore, grants grantReader, cache formCache, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *FormService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormService{forms: forms, grants: grants, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

func shareCacheKey(token string) string {
	return "form:share:" + token
}

// Create builds a new form owned by the actor, with its initial tree.
func (s *FormService) Create(ctx context.Context, req dto.FormRequest, actor *authz.Actor) (*models.Form, error) {
	if err := authz.Authorize(actor, nil, authz.OpCreate, nil); err != nil {
		return nil, err
	}

	sections, err := buildTree(req.Sections)
	if err != nil {
		return nil, err
	}

	form := &models.Form{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     &actor.ID,
		Sections:    sections,
	}
	if form.Title == "" {
		form.Title = "Untitled Form"
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create form")
	}

	s.logger.Info("form created", zap.String("form_id", form.ID), zap.String("owner_id", actor.ID))
	return s.reload(ctx, form.ID)
}

// List returns the actor's visible forms with ownership and capability
// annotations. Visibility is a query-layer filter, not a per-item check.
func (s *FormService) List(ctx context.Context, actor *authz.Actor) ([]models.FormSummary, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	summaries, err := s.forms.List(ctx, actor.ID, actor.Role == models.RoleAdmin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list forms")
	}
	for i := range summaries {
		caps, err := s.grants.GrantsFor(ctx, summaries[i].ID, actor.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve capabilities")
		}
		summaries[i].Capabilities = make([]models.Capability, 0, len(caps))
		for c := range caps {
			summaries[i].Capabilities = append(summaries[i].Capabilities, c)
		}
	}
	return summaries, nil
}

// Get returns a form by id for the dashboard detail view.
func (s *FormService) Get(ctx context.Context, id string, actor *authz.Actor) (*models.Form, error) {
	form, grants, err := s.loadForAuthz(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, form, authz.OpReadPrivate, grants); err != nil {
		return nil, err
	}
	return form, nil
}

// GetByShareToken returns a form by its public share token. This path is
// open to anonymous respondents and backed by the share cache.
func (s *FormService) GetByShareToken(ctx context.Context, token string) (*models.Form, error) {
	if s.cache != nil {
		var cached models.Form
		if err := s.cache.Get(ctx, shareCacheKey(token), &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	form, err := s.forms.FindByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, shareCacheKey(token), form, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache shared form", zap.Error(err))
		}
	}
	return form, nil
}

// Update replaces the form's metadata and whole tree with the desired
// state. Requires ownership, admin role, or an "edit" grant.
func (s *FormService) Update(ctx context.Context, id string, req dto.FormRequest, actor *authz.Actor) (*models.Form, error) {
	form, grants, err := s.loadForAuthz(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, form, authz.OpUpdate, grants); err != nil {
		return nil, err
	}

	sections, err := buildTree(req.Sections)
	if err != nil {
		return nil, err
	}

	form.Title = req.Title
	form.Description = req.Description
	if form.Title == "" {
		form.Title = "Untitled Form"
	}
	if err := s.forms.ReplaceTree(ctx, form, sections); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update form")
	}
	s.invalidateShareCache(ctx, form.ShareToken)

	s.logger.Info("form tree replaced", zap.String("form_id", form.ID), zap.Int("sections", len(sections)))
	return s.reload(ctx, form.ID)
}

// Delete destroys the form aggregate. Owner-only (admins pass the role rule).
func (s *FormService) Delete(ctx context.Context, id string, actor *authz.Actor) error {
	form, grants, err := s.loadForAuthz(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, form, authz.OpDelete, grants); err != nil {
		return err
	}

	if err := s.forms.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete form")
	}
	s.invalidateShareCache(ctx, form.ShareToken)

	s.logger.Info("form deleted", zap.String("form_id", id))
	return nil
}

// AuthorizeResponses checks the view_responses operation for a form and
// returns the loaded form on success.
func (s *FormService) AuthorizeResponses(ctx context.Context, id string, actor *authz.Actor) (*models.Form, error) {
	form, grants, err := s.loadForAuthz(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, form, authz.OpViewResponses, grants); err != nil {
		return nil, err
	}
	return form, nil
}

func (s *FormService) loadForAuthz(ctx context.Context, id string, actor *authz.Actor) (*models.Form, models.CapabilitySet, error) {
	form, err := s.forms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "form not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load form")
	}

	var grants models.CapabilitySet
	if actor != nil {
		grants, err = s.grants.GrantsFor(ctx, form.ID, actor.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve grants")
		}
	}
	return form, grants, nil
}

func (s *FormService) reload(ctx context.Context, id string) (*models.Form, error) {
	form, err := s.forms.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload form")
	}
	return form, nil
}

func (s *FormService) invalidateShareCache(ctx context.Context, token string) {
	if s.cache == nil || token == "" {
		return
	}
	if err := s.cache.Delete(ctx, shareCacheKey(token)); err != nil {
		s.logger.Warn("failed to invalidate shared form cache", zap.Error(err))
	}
}

// buildTree converts the request tree into model rows, validating question
// types. Client-supplied ids never survive; order defaults to 0.
func buildTree(inputs []dto.SectionInput) ([]models.Section, error) {
	var details []string
	sections := make([]models.Section, 0, len(inputs))
	for si, sIn := range inputs {
		section := models.Section{
			Title:       sIn.Title,
			Description: sIn.Description,
			Position:    sIn.Order,
		}
		if section.Title == "" {
			section.Title = "Untitled Section"
		}
		section.Questions = make([]models.Question, 0, len(sIn.Questions))
		for qi, qIn := range sIn.Questions {
			qType := models.QuestionType(qIn.Type)
			if qType == "" {
				qType = models.QuestionShortText
			}
			if !qType.Valid() {
				details = append(details, fmt.Sprintf("sections[%d].questions[%d]: unknown question type %q", si, qi, qIn.Type))
				continue
			}
			question := models.Question{
				Text:     qIn.Text,
				Type:     qType,
				Required: qIn.Required,
				Position: qIn.Order,
			}
			if question.Text == "" {
				question.Text = "Untitled Question"
			}
			question.Choices = make([]models.Choice, 0, len(qIn.Choices))
			for _, cIn := range qIn.Choices {
				question.Choices = append(question.Choices, models.Choice{Text: cIn.Text, Position: cIn.Order})
			}
			section.Questions = append(section.Questions, question)
		}
		sections = append(sections, section)
	}
	if len(details) > 0 {
		return nil, appErrors.Validation(details)
	}
	return sections, nil
}
