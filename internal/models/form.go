package models

import "time"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionShortText      QuestionType = "short_text"
	QuestionLongText       QuestionType = "long_text"
	QuestionNumber         QuestionType = "number"
	QuestionFloat          QuestionType = "float"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionMultipleSelect QuestionType = "multiple_select"
	QuestionMedia          QuestionType = "media"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionShortText, QuestionLongText, QuestionNumber, QuestionFloat,
		QuestionMultipleChoice, QuestionMultipleSelect, QuestionMedia:
		return true
	}
	return false
}

// TakesChoices reports whether answers to this type reference choices.
func (t QuestionType) TakesChoices() bool {
	return t == QuestionMultipleChoice || t == QuestionMultipleSelect
}

// Form is the aggregate root owning the section/question/choice tree.
// ShareToken is assigned once at creation and never regenerated.
type Form struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	OwnerID     *string   `db:"owner_id" json:"owner_id,omitempty"`
	ShareToken  string    `db:"share_token" json:"share_token"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Sections []Section `db:"-" json:"sections"`
}

// Section groups ordered questions inside a form.
type Section struct {
	ID          string `db:"id" json:"id"`
	FormID      string `db:"form_id" json:"-"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	Position    int    `db:"position" json:"order"`

	Questions []Question `db:"-" json:"questions"`
}

// Question belongs to one section. Choices are populated only for
// multiple_choice / multiple_select types.
type Question struct {
	ID        string       `db:"id" json:"id"`
	SectionID string       `db:"section_id" json:"-"`
	Text      string       `db:"text" json:"text"`
	Type      QuestionType `db:"question_type" json:"question_type"`
	Required  bool         `db:"required" json:"required"`
	Position  int          `db:"position" json:"order"`

	Choices []Choice `db:"-" json:"choices"`
}

// Choice is one selectable option of a choice question.
type Choice struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"-"`
	Text       string `db:"text" json:"text"`
	Position   int    `db:"position" json:"order"`
}

// FormSummary is the lightweight shape used by the dashboard list view.
type FormSummary struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	ShareToken    string    `db:"share_token" json:"share_token"`
	OwnerName     string    `db:"owner_name" json:"owner_name,omitempty"`
	SectionCount  int       `db:"section_count" json:"section_count"`
	QuestionCount int       `db:"question_count" json:"question_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`

	IsOwned      bool         `db:"is_owned" json:"is_owned"`
	Capabilities []Capability `db:"-" json:"capabilities"`
}
