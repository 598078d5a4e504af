package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/service"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
	"github.com/formhub/formhub-api/pkg/response"
)

// GrantHandler exposes capability sharing endpoints.
type GrantHandler struct {
	service *service.GrantService
}

// NewGrantHandler constructs a grant handler.
func NewGrantHandler(svc *service.GrantService) *GrantHandler {
	return &GrantHandler{service: svc}
}

// Create godoc
// @Summary Share a form with another user
// @Description Grants edit or view_responses on one of the caller's forms to the user with the given email.
// @Tags Grants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateGrantRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grants [post]
func (h *GrantHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	grant, err := h.service.CreateGrant(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// List godoc
// @Summary List grants on the caller's forms
// @Tags Grants
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /grants [get]
func (h *GrantHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	grants, err := h.service.ListGrants(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grants, nil)
}

// Delete godoc
// @Summary Revoke a grant
// @Tags Grants
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grant ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grants/{id} [delete]
func (h *GrantHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteGrant(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
