package models

import "time"

// Response is one anonymous submission of a form. Immutable after creation.
type Response struct {
	ID        string    `db:"id" json:"id"`
	FormID    string    `db:"form_id" json:"form_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Answers []Answer `db:"-" json:"answers"`
}

// Answer holds exactly one of: a free-text value, an uploaded-file
// reference, or a set of selected choice ids, depending on the
// question's type.
type Answer struct {
	ID         string  `db:"id" json:"id"`
	ResponseID string  `db:"response_id" json:"-"`
	QuestionID string  `db:"question_id" json:"question_id"`
	TextAnswer *string `db:"text_answer" json:"text_answer,omitempty"`
	FileAnswer *string `db:"file_answer" json:"file_answer,omitempty"`

	SelectedChoices []string `db:"-" json:"selected_choices,omitempty"`
}
