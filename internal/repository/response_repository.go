package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/formhub/formhub-api/internal/models"
)

// ResponseRepository persists submission aggregates: one response row plus
// its answers and their selected choices, written all-or-nothing.
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository creates a new instance of ResponseRepository.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Create writes the response with all its answers in one transaction.
func (r *ResponseRepository) Create(ctx context.Context, resp *models.Response) error {
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create response: %w", err)
	}

	const responseInsert = `INSERT INTO responses (id, form_id, created_at) VALUES (:id, :form_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, responseInsert, resp); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create response: %w", err)
	}

	const answerInsert = `INSERT INTO answers (id, response_id, question_id, text_answer, file_answer)
        VALUES (:id, :response_id, :question_id, :text_answer, :file_answer)`
	const choiceInsert = `INSERT INTO answer_choices (answer_id, choice_id) VALUES ($1, $2)`

	for i := range resp.Answers {
		answer := &resp.Answers[i]
		answer.ID = uuid.NewString()
		answer.ResponseID = resp.ID
		if _, err := tx.NamedExecContext(ctx, answerInsert, answer); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("create answer: %w", err)
		}
		for _, choiceID := range answer.SelectedChoices {
			if _, err := tx.ExecContext(ctx, choiceInsert, answer.ID, choiceID); err != nil {
				tx.Rollback() //nolint:errcheck
				return fmt.Errorf("create answer choice: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create response: %w", err)
	}
	return nil
}

// ListByForm returns all responses for a form, newest first, with answers
// and selected choice ids resolved.
func (r *ResponseRepository) ListByForm(ctx context.Context, formID string) ([]models.Response, error) {
	const responseQuery = `SELECT id, form_id, created_at FROM responses WHERE form_id = $1 ORDER BY created_at DESC`
	var responses []models.Response
	if err := r.db.SelectContext(ctx, &responses, responseQuery, formID); err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if len(responses) == 0 {
		return []models.Response{}, nil
	}

	responseIDs := make([]string, len(responses))
	responseIdx := make(map[string]int, len(responses))
	for i := range responses {
		responseIDs[i] = responses[i].ID
		responseIdx[responses[i].ID] = i
		responses[i].Answers = []models.Answer{}
	}

	placeholders, args := inClause(responseIDs)
	answerQuery := fmt.Sprintf(`SELECT id, response_id, question_id, text_answer, file_answer
        FROM answers WHERE response_id IN (%s)`, placeholders)
	var answers []models.Answer
	if err := r.db.SelectContext(ctx, &answers, answerQuery, args...); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if len(answers) == 0 {
		return responses, nil
	}

	answerIDs := make([]string, len(answers))
	for i := range answers {
		answerIDs[i] = answers[i].ID
	}

	placeholders, args = inClause(answerIDs)
	selectionQuery := fmt.Sprintf(`SELECT answer_id, choice_id FROM answer_choices WHERE answer_id IN (%s)`, placeholders)
	var selections []struct {
		AnswerID string `db:"answer_id"`
		ChoiceID string `db:"choice_id"`
	}
	if err := r.db.SelectContext(ctx, &selections, selectionQuery, args...); err != nil {
		return nil, fmt.Errorf("list answer choices: %w", err)
	}

	choicesByAnswer := make(map[string][]string)
	for _, s := range selections {
		choicesByAnswer[s.AnswerID] = append(choicesByAnswer[s.AnswerID], s.ChoiceID)
	}
	for i := range answers {
		answers[i].SelectedChoices = choicesByAnswer[answers[i].ID]
		ri := responseIdx[answers[i].ResponseID]
		responses[ri].Answers = append(responses[ri].Answers, answers[i])
	}
	return responses, nil
}
