package dto

// FormRequest is the full desired state of a form for create and update.
// Any client-supplied ids inside the tree are ignored: updates replace the
// whole section/question/choice tree and assign fresh ids.
type FormRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Sections    []SectionInput `json:"sections"`
}

// SectionInput is one desired section with its ordered questions.
type SectionInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Order       int             `json:"order"`
	Questions   []QuestionInput `json:"questions"`
}

// QuestionInput is one desired question with its ordered choices.
type QuestionInput struct {
	Text     string        `json:"text"`
	Type     string        `json:"question_type"`
	Required bool          `json:"required"`
	Order    int           `json:"order"`
	Choices  []ChoiceInput `json:"choices"`
}

// ChoiceInput is one desired choice.
type ChoiceInput struct {
	Text  string `json:"text"`
	Order int    `json:"order"`
}
