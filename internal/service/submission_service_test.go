package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
	"github.com/formhub/formhub-api/pkg/storage"
)

type mockResponseRepo struct {
	created   []*models.Response
	responses []models.Response
	createErr error
	listErr   error
}

func (m *mockResponseRepo) Create(ctx context.Context, resp *models.Response) error {
	if m.createErr != nil {
		return m.createErr
	}
	resp.ID = "resp-1"
	m.created = append(m.created, resp)
	return nil
}

func (m *mockResponseRepo) ListByForm(ctx context.Context, formID string) ([]models.Response, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.responses, nil
}

func surveyForm() *models.Form {
	return &models.Form{
		ID:         "form-1",
		ShareToken: "token-1",
		Sections: []models.Section{{
			ID: "s1",
			Questions: []models.Question{
				{ID: "q-text", Type: models.QuestionShortText, Text: "Name"},
				{
					ID: "q-choice", Type: models.QuestionMultipleSelect, Text: "Toppings",
					Choices: []models.Choice{
						{ID: "c1", Text: "Cheese"},
						{ID: "c2", Text: "Olives"},
					},
				},
			},
		}},
	}
}

func newSubmissionService(repo *mockResponseRepo) *SubmissionService {
	return NewSubmissionService(repo, nil, nil, zap.NewNop())
}

func TestSubmitStructuredJSON(t *testing.T) {
	repo := &mockResponseRepo{}
	svc := newSubmissionService(repo)

	payload := SubmissionPayload{JSON: []byte(`{"answers":[
        {"question_id":"q-text","text_answer":"Ada"},
        {"question_id":"q-choice","selected_choices":["c1","c2"]}
    ]}`)}

	resp, err := svc.Submit(context.Background(), surveyForm(), payload)
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.Len(t, resp.Answers, 2)

	assert.Equal(t, "form-1", resp.FormID)
	require.NotNil(t, resp.Answers[0].TextAnswer)
	assert.Equal(t, "Ada", *resp.Answers[0].TextAnswer)
	assert.ElementsMatch(t, []string{"c1", "c2"}, resp.Answers[1].SelectedChoices)
}

func TestSubmitFlattenedFields(t *testing.T) {
	repo := &mockResponseRepo{}
	svc := newSubmissionService(repo)

	payload := SubmissionPayload{Fields: map[string][]string{
		"answers[0][question_id]":      {"q-text"},
		"answers[0][text_answer]":      {"Ada"},
		"answers[1][question_id]":      {"q-choice"},
		"answers[1][selected_choices]": {"c1", "c2"},
	}}

	resp, err := svc.Submit(context.Background(), surveyForm(), payload)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 2)
	require.NotNil(t, resp.Answers[0].TextAnswer)
	assert.Equal(t, "Ada", *resp.Answers[0].TextAnswer)
	assert.ElementsMatch(t, []string{"c1", "c2"}, resp.Answers[1].SelectedChoices)
}

func TestSubmitStructuredAndFlattenedAgree(t *testing.T) {
	structured := SubmissionPayload{JSON: []byte(`{"answers":[{"question_id":"q-choice","selected_choices":["c1"]}]}`)}
	flattened := SubmissionPayload{Fields: map[string][]string{
		"answers[0][question_id]":      {"q-choice"},
		"answers[0][selected_choices]": {"c1"},
	}}

	repoA := &mockResponseRepo{}
	respA, err := newSubmissionService(repoA).Submit(context.Background(), surveyForm(), structured)
	require.NoError(t, err)

	repoB := &mockResponseRepo{}
	respB, err := newSubmissionService(repoB).Submit(context.Background(), surveyForm(), flattened)
	require.NoError(t, err)

	require.Len(t, respA.Answers, 1)
	require.Len(t, respB.Answers, 1)
	assert.Equal(t, respA.Answers[0].QuestionID, respB.Answers[0].QuestionID)
	assert.Equal(t, respA.Answers[0].SelectedChoices, respB.Answers[0].SelectedChoices)
}

func TestSubmitEnumeratesEveryFailure(t *testing.T) {
	repo := &mockResponseRepo{}
	svc := newSubmissionService(repo)

	payload := SubmissionPayload{JSON: []byte(`{"answers":[
        {"question_id":"q-unknown","text_answer":"x"},
        {"question_id":"q-choice","selected_choices":["c-bogus"]},
        {"text_answer":"no question"}
    ]}`)}

	_, err := svc.Submit(context.Background(), surveyForm(), payload)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, appErr.Details, 3)

	// All-or-nothing: nothing was persisted.
	assert.Empty(t, repo.created)
}

func TestSubmitChoiceQuestionRejectsText(t *testing.T) {
	repo := &mockResponseRepo{}
	svc := newSubmissionService(repo)

	payload := SubmissionPayload{JSON: []byte(`{"answers":[{"question_id":"q-choice","text_answer":"Cheese"}]}`)}

	_, err := svc.Submit(context.Background(), surveyForm(), payload)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.created)
}

func TestSubmitEmptyPayload(t *testing.T) {
	repo := &mockResponseRepo{}
	svc := newSubmissionService(repo)

	_, err := svc.Submit(context.Background(), surveyForm(), SubmissionPayload{JSON: []byte(`{"answers":[]}`)})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func mediaForm() *models.Form {
	form := surveyForm()
	form.Sections[0].Questions = append(form.Sections[0].Questions, models.Question{
		ID: "q-media", Type: models.QuestionMedia, Text: "Photo",
	})
	return form
}

// uploadedFile builds a real multipart file header carrying content under
// the given part name.
func uploadedFile(t *testing.T, partName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(partName, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	headers := form.File[partName]
	require.Len(t, headers, 1)
	return headers[0]
}

func TestSubmitFlattenedMediaAnswer(t *testing.T) {
	media, err := storage.NewMediaStore(t.TempDir())
	require.NoError(t, err)
	repo := &mockResponseRepo{}
	svc := NewSubmissionService(repo, media, nil, zap.NewNop())

	const partKey = "answers[0][file_answer]"
	payload := SubmissionPayload{
		Fields: map[string][]string{
			"answers[0][question_id]": {"q-media"},
		},
		Files: map[string]*multipart.FileHeader{
			partKey: uploadedFile(t, partKey, "receipt.png", "imagedata"),
		},
	}

	resp, err := svc.Submit(context.Background(), mediaForm(), payload)
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.Len(t, resp.Answers, 1)

	require.NotNil(t, resp.Answers[0].FileAnswer)
	key := *resp.Answers[0].FileAnswer
	assert.True(t, strings.HasPrefix(key, "uploads/"), key)
	assert.True(t, strings.HasSuffix(key, "_receipt.png"), key)

	f, err := media.Open(key)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	stored, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "imagedata", string(stored))
}

func TestSubmitStructuredMediaAnswerNamesFilePart(t *testing.T) {
	media, err := storage.NewMediaStore(t.TempDir())
	require.NoError(t, err)
	repo := &mockResponseRepo{}
	svc := NewSubmissionService(repo, media, nil, zap.NewNop())

	payload := SubmissionPayload{
		Fields: map[string][]string{
			"answers": {`[{"question_id":"q-media","file_answer":"photo"}]`},
		},
		Files: map[string]*multipart.FileHeader{
			"photo": uploadedFile(t, "photo", "cat.jpg", "catbytes"),
		},
	}

	resp, err := svc.Submit(context.Background(), mediaForm(), payload)
	require.NoError(t, err)
	require.Len(t, resp.Answers, 1)
	require.NotNil(t, resp.Answers[0].FileAnswer)
	assert.True(t, strings.HasSuffix(*resp.Answers[0].FileAnswer, "_cat.jpg"), *resp.Answers[0].FileAnswer)
}

func TestSubmitMediaQuestionWithoutFile(t *testing.T) {
	form := surveyForm()
	form.Sections[0].Questions = append(form.Sections[0].Questions, models.Question{
		ID: "q-media", Type: models.QuestionMedia, Text: "Photo",
	})
	repo := &mockResponseRepo{}
	svc := newSubmissionService(repo)

	payload := SubmissionPayload{JSON: []byte(`{"answers":[{"question_id":"q-media"}]}`)}

	_, err := svc.Submit(context.Background(), form, payload)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubmitRepositoryFailure(t *testing.T) {
	repo := &mockResponseRepo{createErr: errors.New("db down")}
	svc := newSubmissionService(repo)

	payload := SubmissionPayload{JSON: []byte(`{"answers":[{"question_id":"q-text","text_answer":"x"}]}`)}

	_, err := svc.Submit(context.Background(), surveyForm(), payload)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
}
