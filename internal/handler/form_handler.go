package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/service"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
	"github.com/formhub/formhub-api/pkg/response"
)

const maxSubmissionMemory = 32 << 20

// FormHandler exposes the form builder and collection endpoints.
type FormHandler struct {
	forms       *service.FormService
	submissions *service.SubmissionService
	exports     *service.ExportService
}

// NewFormHandler constructs a form handler.
func NewFormHandler(forms *service.FormService, submissions *service.SubmissionService, exports *service.ExportService) *FormHandler {
	return &FormHandler{forms: forms, submissions: submissions, exports: exports}
}

// List godoc
// @Summary List visible forms
// @Description Forms the caller owns plus forms shared with them. Admins see all.
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /forms [get]
func (h *FormHandler) List(c *gin.Context) {
	summaries, err := h.forms.List(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, nil)
}

// Create godoc
// @Summary Create form
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.FormRequest true "Form tree"
// @Success 201 {object} response.Envelope
// @Router /forms [post]
func (h *FormHandler) Create(c *gin.Context) {
	var req dto.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	form, err := h.forms.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, form)
}

// Get godoc
// @Summary Get form detail
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id} [get]
func (h *FormHandler) Get(c *gin.Context) {
	form, err := h.forms.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// GetShared godoc
// @Summary Get form by share token
// @Description Public read used by respondents. No authentication required.
// @Tags Forms
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/shared/{token} [get]
func (h *FormHandler) GetShared(c *gin.Context) {
	form, err := h.forms.GetByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Update godoc
// @Summary Replace form tree
// @Description Replaces the form's metadata and entire section tree with the payload.
// @Tags Forms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Param payload body dto.FormRequest true "Desired form tree"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/{id} [put]
func (h *FormHandler) Update(c *gin.Context) {
	var req dto.FormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	form, err := h.forms.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, form, nil)
}

// Delete godoc
// @Summary Delete form
// @Tags Forms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id} [delete]
func (h *FormHandler) Delete(c *gin.Context) {
	if err := h.forms.Delete(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit a response
// @Description Accepts a structured JSON body or a multipart form with flattened answers[i][field] keys.
// @Tags Responses
// @Accept json
// @Accept mpfd
// @Produce json
// @Param token path string true "Share token"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /forms/shared/{token}/responses [post]
func (h *FormHandler) Submit(c *gin.Context) {
	form, err := h.forms.GetByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := buildSubmissionPayload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp, err := h.submissions.Submit(c.Request.Context(), form, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// Responses godoc
// @Summary List a form's responses
// @Tags Responses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/responses [get]
func (h *FormHandler) Responses(c *gin.Context) {
	form, err := h.forms.AuthorizeResponses(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	responses, err := h.submissions.ListByForm(c.Request.Context(), form.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, responses, nil)
}

// Export godoc
// @Summary Export a form's responses
// @Tags Responses
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Form ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /forms/{id}/export [get]
func (h *FormHandler) Export(c *gin.Context) {
	form, err := h.forms.AuthorizeResponses(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	out, contentType, err := h.exports.Export(c.Request.Context(), form, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("%s-responses.%s", slugify(form.Title), format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, out)
}

// buildSubmissionPayload splits the request into the raw shapes the
// ingestion engine understands. JSON bodies pass through untouched;
// form bodies are flattened into field and file maps.
func buildSubmissionPayload(c *gin.Context) (service.SubmissionPayload, error) {
	var payload service.SubmissionPayload

	contentType := c.ContentType()
	if contentType == "application/json" {
		body, err := c.GetRawData()
		if err != nil {
			return payload, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable request body")
		}
		payload.JSON = body
		return payload, nil
	}

	if contentType == "multipart/form-data" {
		mf, err := c.MultipartForm()
		if err != nil {
			return payload, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
		}
		payload.Fields = mf.Value
		payload.Files = make(map[string]*multipart.FileHeader, len(mf.File))
		for key, headers := range mf.File {
			if len(headers) > 0 {
				payload.Files[key] = headers[0]
			}
		}
		return payload, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return payload, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload")
	}
	payload.Fields = c.Request.PostForm
	return payload, nil
}

func slugify(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(title))
	if slug == "" {
		slug = "form"
	}
	return slug
}
