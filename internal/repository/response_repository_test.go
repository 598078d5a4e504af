package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formhub/formhub-api/internal/models"
)

func TestResponseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO responses")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answers")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answer_choices")).
		WithArgs(sqlmock.AnyArg(), "c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answer_choices")).
		WithArgs(sqlmock.AnyArg(), "c2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	resp := &models.Response{
		FormID: "f1",
		Answers: []models.Answer{
			{QuestionID: "q1", SelectedChoices: []string{"c1", "c2"}},
		},
	}
	require.NoError(t, repo.Create(context.Background(), resp))
	assert.NotEmpty(t, resp.ID)
	assert.NotEmpty(t, resp.Answers[0].ID)
	assert.Equal(t, resp.ID, resp.Answers[0].ResponseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryCreateRollsBackOnAnswerFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO responses")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answers")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	resp := &models.Response{
		FormID:  "f1",
		Answers: []models.Answer{{QuestionID: "q1"}},
	}
	require.Error(t, repo.Create(context.Background(), resp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryListByForm(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResponseRepository(db)
	now := time.Now()
	text := "Ada"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, form_id, created_at FROM responses WHERE form_id = $1 ORDER BY created_at DESC")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_id", "created_at"}).
			AddRow("r2", "f1", now).
			AddRow("r1", "f1", now.Add(-time.Hour)))

	mock.ExpectQuery(regexp.QuoteMeta("FROM answers WHERE response_id IN")).
		WithArgs("r2", "r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "response_id", "question_id", "text_answer", "file_answer"}).
			AddRow("a1", "r1", "q1", text, nil).
			AddRow("a2", "r2", "q2", nil, nil))

	mock.ExpectQuery(regexp.QuoteMeta("FROM answer_choices WHERE answer_id IN")).
		WithArgs("a1", "a2").
		WillReturnRows(sqlmock.NewRows([]string{"answer_id", "choice_id"}).
			AddRow("a2", "c1"))

	responses, err := repo.ListByForm(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "r2", responses[0].ID)

	require.Len(t, responses[0].Answers, 1)
	assert.Equal(t, []string{"c1"}, responses[0].Answers[0].SelectedChoices)
	require.Len(t, responses[1].Answers, 1)
	require.NotNil(t, responses[1].Answers[0].TextAnswer)
	assert.Equal(t, "Ada", *responses[1].Answers[0].TextAnswer)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryListByFormEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewResponseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM responses WHERE form_id = $1")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "form_id", "created_at"}))

	responses, err := repo.ListByForm(context.Background(), "f1")
	require.NoError(t, err)
	assert.Empty(t, responses)
}
