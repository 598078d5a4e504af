package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/formhub/formhub-api/internal/models"
)

// FormRepository persists the form aggregate: the form row plus its ordered
// section/question/choice tree. The tree is always written whole; ids of
// tree nodes are ephemeral across updates.
type FormRepository struct {
	db *sqlx.DB
}

// NewFormRepository creates a new instance of FormRepository.
func NewFormRepository(db *sqlx.DB) *FormRepository {
	return &FormRepository{db: db}
}

const formColumns = `id, title, description, owner_id, share_token, created_at, updated_at`

// Create inserts a form and its full tree in one transaction. The share
// token is assigned here, once, and is never regenerated afterwards.
func (r *FormRepository) Create(ctx context.Context, form *models.Form) error {
	if form.ID == "" {
		form.ID = uuid.NewString()
	}
	if form.ShareToken == "" {
		form.ShareToken = uuid.NewString()
	}
	now := time.Now().UTC()
	form.CreatedAt = now
	form.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create form: %w", err)
	}

	const query = `INSERT INTO forms (id, title, description, owner_id, share_token, created_at, updated_at)
        VALUES (:id, :title, :description, :owner_id, :share_token, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, form); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create form: %w", err)
	}

	if err := insertTree(ctx, tx, form.ID, form.Sections); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create form: %w", err)
	}
	return nil
}

// FindByID returns the form with its fully ordered tree.
func (r *FormRepository) FindByID(ctx context.Context, id string) (*models.Form, error) {
	return r.findBy(ctx, "id", id)
}

// FindByShareToken returns the form addressed by its public share token.
func (r *FormRepository) FindByShareToken(ctx context.Context, token string) (*models.Form, error) {
	return r.findBy(ctx, "share_token", token)
}

func (r *FormRepository) findBy(ctx context.Context, column, value string) (*models.Form, error) {
	query := fmt.Sprintf(`SELECT %s FROM forms WHERE %s = $1 LIMIT 1`, formColumns, column)
	var form models.Form
	if err := r.db.GetContext(ctx, &form, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find form by %s: %w", column, err)
	}
	if err := r.loadTree(ctx, &form); err != nil {
		return nil, err
	}
	return &form, nil
}

// List returns dashboard summaries for the actor's visible set: forms they
// own plus forms with any grant to them. Admins see every form. Visibility
// is enforced here, at the query layer, so that forms outside the set are
// indistinguishable from absent ones.
func (r *FormRepository) List(ctx context.Context, userID string, isAdmin bool) ([]models.FormSummary, error) {
	query := `SELECT f.id, f.title, f.description, f.share_token, f.created_at, f.updated_at,
            COALESCE(u.full_name, '') AS owner_name,
            (f.owner_id = $1) IS TRUE AS is_owned,
            (SELECT COUNT(*) FROM sections s WHERE s.form_id = f.id) AS section_count,
            (SELECT COUNT(*) FROM questions q JOIN sections s ON q.section_id = s.id WHERE s.form_id = f.id) AS question_count
        FROM forms f
        LEFT JOIN users u ON u.id = f.owner_id`
	if !isAdmin {
		query += ` WHERE f.owner_id = $1
            OR EXISTS (SELECT 1 FROM form_permissions p WHERE p.form_id = f.id AND p.user_id = $1)`
	}
	query += ` ORDER BY f.updated_at DESC`

	var summaries []models.FormSummary
	if err := r.db.SelectContext(ctx, &summaries, query, userID); err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return summaries, nil
}

// Exists reports whether a form row exists.
func (r *FormRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("form exists: %w", err)
	}
	return exists, nil
}

// OwnerOf returns the owner id of a form, nil when unowned.
func (r *FormRepository) OwnerOf(ctx context.Context, id string) (*string, error) {
	var owner sql.NullString
	if err := r.db.GetContext(ctx, &owner, `SELECT owner_id FROM forms WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("form owner: %w", err)
	}
	if !owner.Valid {
		return nil, nil
	}
	return &owner.String, nil
}

// ReplaceTree updates the form's title and description and replaces the
// whole section/question/choice tree with the desired one, atomically.
// Existing tree rows are destroyed, not merged: a failure partway through
// rolls back to the prior tree. Answers referencing destroyed questions go
// with them; their parent response rows survive.
func (r *FormRepository) ReplaceTree(ctx context.Context, form *models.Form, sections []models.Section) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tree: %w", err)
	}

	form.UpdatedAt = time.Now().UTC()
	const update = `UPDATE forms SET title = :title, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, form); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update form: %w", err)
	}

	// Dependency-order destruction of the current subtree.
	deletes := []string{
		`DELETE FROM answer_choices WHERE answer_id IN (
            SELECT a.id FROM answers a
            JOIN questions q ON q.id = a.question_id
            JOIN sections s ON s.id = q.section_id
            WHERE s.form_id = $1)`,
		`DELETE FROM answers WHERE question_id IN (
            SELECT q.id FROM questions q
            JOIN sections s ON s.id = q.section_id
            WHERE s.form_id = $1)`,
		`DELETE FROM choices WHERE question_id IN (
            SELECT q.id FROM questions q
            JOIN sections s ON s.id = q.section_id
            WHERE s.form_id = $1)`,
		`DELETE FROM questions WHERE section_id IN (SELECT id FROM sections WHERE form_id = $1)`,
		`DELETE FROM sections WHERE form_id = $1`,
	}
	for _, stmt := range deletes {
		if _, err := tx.ExecContext(ctx, stmt, form.ID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("destroy form tree: %w", err)
		}
	}

	if err := insertTree(ctx, tx, form.ID, sections); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tree: %w", err)
	}
	form.Sections = sections
	return nil
}

// Delete destroys the form aggregate and everything hanging off it:
// responses, answers, selected choices, the tree, and capability grants,
// in dependency order inside one transaction.
func (r *FormRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete form: %w", err)
	}

	deletes := []string{
		`DELETE FROM answer_choices WHERE answer_id IN (
            SELECT a.id FROM answers a
            JOIN responses r ON r.id = a.response_id
            WHERE r.form_id = $1)`,
		`DELETE FROM answers WHERE response_id IN (SELECT id FROM responses WHERE form_id = $1)`,
		`DELETE FROM responses WHERE form_id = $1`,
		`DELETE FROM choices WHERE question_id IN (
            SELECT q.id FROM questions q
            JOIN sections s ON s.id = q.section_id
            WHERE s.form_id = $1)`,
		`DELETE FROM questions WHERE section_id IN (SELECT id FROM sections WHERE form_id = $1)`,
		`DELETE FROM sections WHERE form_id = $1`,
		`DELETE FROM form_permissions WHERE form_id = $1`,
		`DELETE FROM forms WHERE id = $1`,
	}
	for _, stmt := range deletes {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("delete form: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete form: %w", err)
	}
	return nil
}

// insertTree writes the desired sections, questions and choices in supplied
// order, assigning fresh ids. Mutates the given slice in place so callers
// see the stored identifiers.
func insertTree(ctx context.Context, tx *sqlx.Tx, formID string, sections []models.Section) error {
	const sectionInsert = `INSERT INTO sections (id, form_id, title, description, position)
        VALUES (:id, :form_id, :title, :description, :position)`
	const questionInsert = `INSERT INTO questions (id, section_id, text, question_type, required, position)
        VALUES (:id, :section_id, :text, :question_type, :required, :position)`
	const choiceInsert = `INSERT INTO choices (id, question_id, text, position)
        VALUES (:id, :question_id, :text, :position)`

	for si := range sections {
		section := &sections[si]
		section.ID = uuid.NewString()
		section.FormID = formID
		if _, err := tx.NamedExecContext(ctx, sectionInsert, section); err != nil {
			return fmt.Errorf("insert section: %w", err)
		}
		for qi := range section.Questions {
			question := &section.Questions[qi]
			question.ID = uuid.NewString()
			question.SectionID = section.ID
			if _, err := tx.NamedExecContext(ctx, questionInsert, question); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
			for ci := range question.Choices {
				choice := &question.Choices[ci]
				choice.ID = uuid.NewString()
				choice.QuestionID = question.ID
				if _, err := tx.NamedExecContext(ctx, choiceInsert, choice); err != nil {
					return fmt.Errorf("insert choice: %w", err)
				}
			}
		}
	}
	return nil
}

// loadTree populates Sections, Questions and Choices ordered by position
// with insertion order as the tie-break.
func (r *FormRepository) loadTree(ctx context.Context, form *models.Form) error {
	var sections []models.Section
	const sectionQuery = `SELECT id, form_id, title, description, position
        FROM sections WHERE form_id = $1 ORDER BY position, seq`
	if err := r.db.SelectContext(ctx, &sections, sectionQuery, form.ID); err != nil {
		return fmt.Errorf("load sections: %w", err)
	}
	form.Sections = sections
	if len(sections) == 0 {
		form.Sections = []models.Section{}
		return nil
	}

	sectionIDs := make([]string, len(sections))
	sectionIdx := make(map[string]int, len(sections))
	for i := range sections {
		sectionIDs[i] = sections[i].ID
		sectionIdx[sections[i].ID] = i
		form.Sections[i].Questions = []models.Question{}
	}

	placeholders, args := inClause(sectionIDs)
	questionQuery := fmt.Sprintf(`SELECT id, section_id, text, question_type, required, position
        FROM questions WHERE section_id IN (%s) ORDER BY position, seq`, placeholders)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, questionQuery, args...); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil
	}

	questionIDs := make([]string, len(questions))
	for i := range questions {
		questionIDs[i] = questions[i].ID
		questions[i].Choices = []models.Choice{}
	}

	placeholders, args = inClause(questionIDs)
	choiceQuery := fmt.Sprintf(`SELECT id, question_id, text, position
        FROM choices WHERE question_id IN (%s) ORDER BY position, seq`, placeholders)
	var choices []models.Choice
	if err := r.db.SelectContext(ctx, &choices, choiceQuery, args...); err != nil {
		return fmt.Errorf("load choices: %w", err)
	}

	choicesByQuestion := make(map[string][]models.Choice)
	for _, c := range choices {
		choicesByQuestion[c.QuestionID] = append(choicesByQuestion[c.QuestionID], c)
	}
	for i := range questions {
		if cs, ok := choicesByQuestion[questions[i].ID]; ok {
			questions[i].Choices = cs
		}
		si := sectionIdx[questions[i].SectionID]
		form.Sections[si].Questions = append(form.Sections[si].Questions, questions[i])
	}
	return nil
}

// inClause builds $n placeholders and args for an IN query.
func inClause(ids []string) (string, []interface{}) {
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(placeholders, ","), args
}
