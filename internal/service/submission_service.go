package service

import (
	"context"
	"fmt"
	"mime/multipart"

	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/dto"
	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
	"github.com/formhub/formhub-api/pkg/storage"
)

// SubmissionPayload carries the raw material of a submission request.
// Exactly one of JSON (a structured body) or Fields/Files (a multipart or
// urlencoded form) is populated by the handler.
type SubmissionPayload struct {
	JSON   []byte
	Fields map[string][]string
	Files  map[string]*multipart.FileHeader
}

type responseStore interface {
	Create(ctx context.Context, resp *models.Response) error
	ListByForm(ctx context.Context, formID string) ([]models.Response, error)
}

// SubmissionService validates and persists anonymous submissions. A payload
// either persists completely or not at all; validation failures report
// every failing answer, not just the first.
type SubmissionService struct {
	responses responseStore
	media     *storage.MediaStore
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewSubmissionService constructs a SubmissionService. metrics may be nil.
func NewSubmissionService(responses responseStore, media *storage.MediaStore, metrics *MetricsService, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{responses: responses, media: media, metrics: metrics, logger: logger}
}

// Submit ingests one submission against the given form. The form must be
// loaded with its full tree; question and choice ids are resolved against
// it, never against the database directly.
func (s *SubmissionService) Submit(ctx context.Context, form *models.Form, payload SubmissionPayload) (*models.Response, error) {
	fields := payload.Fields
	if len(payload.Files) > 0 {
		// File parts carry flattened keys too; fold them in so the parser
		// can associate each part with its answer index.
		fields = make(map[string][]string, len(payload.Fields)+len(payload.Files))
		for k, v := range payload.Fields {
			fields[k] = v
		}
		for k := range payload.Files {
			if _, ok := fields[k]; !ok {
				fields[k] = []string{k}
			}
		}
	}

	inputs, err := decodeAnswers(payload.JSON, fields)
	if err != nil {
		return nil, err
	}

	questions := indexQuestions(form)
	var details []string
	answers := make([]models.Answer, 0, len(inputs))

	for i, in := range inputs {
		questionID := string(in.QuestionID)
		if questionID == "" {
			details = append(details, fmt.Sprintf("answers[%d]: question_id is required", i))
			continue
		}
		question, ok := questions[questionID]
		if !ok {
			details = append(details, fmt.Sprintf("answers[%d]: question %s does not belong to this form", i, questionID))
			continue
		}

		answer := models.Answer{QuestionID: questionID}
		switch {
		case question.Type == models.QuestionMedia:
			file, ok := payload.Files[in.FileKey]
			if in.FileKey == "" || !ok {
				details = append(details, fmt.Sprintf("answers[%d]: question %q expects an uploaded file", i, question.Text))
				continue
			}
			answer.FileAnswer = new(string)
			*answer.FileAnswer = s.media.Key(file.Filename)
		case question.Type.TakesChoices():
			if len(in.SelectedChoices) == 0 {
				if in.TextAnswer != "" {
					details = append(details, fmt.Sprintf("answers[%d]: question %q takes selected choices, not text", i, question.Text))
				} else {
					details = append(details, fmt.Sprintf("answers[%d]: question %q has no selected choices", i, question.Text))
				}
				continue
			}
			valid := choiceSet(question)
			bad := false
			for _, choiceID := range in.SelectedChoices {
				if _, ok := valid[choiceID]; !ok {
					details = append(details, fmt.Sprintf("answers[%d]: choice %s does not belong to question %q", i, choiceID, question.Text))
					bad = true
				}
			}
			if bad {
				continue
			}
			answer.SelectedChoices = in.SelectedChoices
		default:
			text := string(in.TextAnswer)
			answer.TextAnswer = &text
		}
		answers = append(answers, answer)
	}

	if len(details) > 0 {
		return nil, appErrors.Validation(details)
	}
	if len(answers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission contains no answers")
	}

	// Files are written before the transaction so the stored key recorded
	// in the answer row always refers to an existing file. A failed commit
	// leaves orphans on disk; SweepExcept cleans those up out of band.
	if err := s.saveFiles(answers, inputs, payload.Files); err != nil {
		return nil, err
	}

	resp := &models.Response{FormID: form.ID, Answers: answers}
	if err := s.responses.Create(ctx, resp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}

	s.metrics.RecordSubmission(form.ID)
	s.logger.Info("submission stored",
		zap.String("form_id", form.ID),
		zap.String("response_id", resp.ID),
		zap.Int("answers", len(answers)))
	return resp, nil
}

// ListByForm returns all submissions for a form, newest first. Callers
// authorize view_responses before reaching here.
func (s *SubmissionService) ListByForm(ctx context.Context, formID string) ([]models.Response, error) {
	responses, err := s.responses.ListByForm(ctx, formID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list responses")
	}
	return responses, nil
}

func (s *SubmissionService) saveFiles(answers []models.Answer, inputs []dto.AnswerInput, files map[string]*multipart.FileHeader) error {
	fileKeys := make(map[string]string, len(inputs))
	for _, in := range inputs {
		if in.FileKey != "" {
			fileKeys[string(in.QuestionID)] = in.FileKey
		}
	}
	for i := range answers {
		answer := &answers[i]
		if answer.FileAnswer == nil {
			continue
		}
		header := files[fileKeys[answer.QuestionID]]
		src, err := header.Open()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file")
		}
		if _, err := s.media.SaveStream(*answer.FileAnswer, src); err != nil {
			src.Close()
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
		}
		src.Close()
	}
	return nil
}

func indexQuestions(form *models.Form) map[string]*models.Question {
	out := make(map[string]*models.Question)
	for si := range form.Sections {
		for qi := range form.Sections[si].Questions {
			q := &form.Sections[si].Questions[qi]
			out[q.ID] = q
		}
	}
	return out
}

func choiceSet(q *models.Question) map[string]struct{} {
	out := make(map[string]struct{}, len(q.Choices))
	for _, c := range q.Choices {
		out[c.ID] = struct{}{}
	}
	return out
}
