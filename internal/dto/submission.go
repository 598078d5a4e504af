package dto

import (
	"encoding/json"
	"fmt"
)

// FlexString decodes a JSON string or number into a string. Spreadsheet
// style clients send choice ids and numeric answers unquoted.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// FlexStrings decodes a JSON array of strings or numbers, or a single
// scalar, into a string slice.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = string(item)
		}
		*f = out
		return nil
	}
	var single FlexString
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*f = []string{string(single)}
	return nil
}

// SubmitRequest is the structured JSON shape of a submission payload.
type SubmitRequest struct {
	Answers []AnswerInput `json:"answers"`
}

// AnswerInput is one answer record in a submission. Exactly one of
// TextAnswer / SelectedChoices / a matching file part applies, according to
// the referenced question's type.
type AnswerInput struct {
	QuestionID      FlexString  `json:"question_id"`
	TextAnswer      FlexString  `json:"text_answer"`
	SelectedChoices FlexStrings `json:"selected_choices"`

	// FileKey names the multipart file part carrying the uploaded file for
	// media questions. The flattened parser records the full field key;
	// structured payloads name the part directly under "file_answer".
	FileKey string `json:"file_answer"`
}
