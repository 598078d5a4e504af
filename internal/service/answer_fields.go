package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/formhub/formhub-api/internal/dto"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
)

// Flattened submission keys come in two dialects. The bracketed form is
// canonical; the bare form is what some HTML form serializers emit when
// the field name is appended without brackets.
//
//	answers[0][question_id]       bracketed
//	answers[0]question_id         bare
//
// Array-style serializers suffix repeated fields with "[]", either inside
// the field brackets (answers[0][selected_choices[]]) or after them
// (answers[0][selected_choices][]); both normalize to "selected_choices[]".
// The bare pattern only applies when no key in the payload matches the
// bracketed one, so mixed payloads never split across dialects.
var (
	answerKeyBracketed = regexp.MustCompile(`^answers\[(\d+)\]\[([^\]]*(?:\[\])?)\](\[\])?$`)
	answerKeyBare      = regexp.MustCompile(`^answers\[(\d+)\]([^\[]+)$`)
)

// parseFlattenedAnswers reconstructs the answers array from flattened form
// fields. Repeated values for selected_choices accumulate; for scalar
// fields the first value wins. Indices need not be contiguous; answers are
// returned in ascending index order.
func parseFlattenedAnswers(fields map[string][]string) ([]dto.AnswerInput, error) {
	byIndex := make(map[int]*dto.AnswerInput)

	pattern := answerKeyBracketed
	matched := false
	for key := range fields {
		if pattern.MatchString(key) {
			matched = true
			break
		}
	}
	if !matched {
		pattern = answerKeyBare
	}

	for key, values := range fields {
		m := pattern.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(m[1], "%d", &idx); err != nil {
			continue
		}
		answer := byIndex[idx]
		if answer == nil {
			answer = &dto.AnswerInput{}
			byIndex[idx] = answer
		}
		field := m[2]
		if len(m) > 3 {
			field += m[3]
		}
		switch field {
		case "question_id":
			answer.QuestionID = dto.FlexString(values[0])
		case "text_answer":
			answer.TextAnswer = dto.FlexString(values[0])
		case "selected_choices", "selected_choices[]":
			answer.SelectedChoices = append(answer.SelectedChoices, values...)
		case "file_answer":
			// The file part itself carries this key; record it so the
			// ingestion engine can find the upload.
			answer.FileKey = key
		}
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	answers := make([]dto.AnswerInput, 0, len(indices))
	for _, idx := range indices {
		answers = append(answers, *byIndex[idx])
	}
	return answers, nil
}

// decodeAnswers extracts the answers array from a submission payload,
// preferring a structured JSON body, then an "answers" form field carrying
// JSON, then flattened answers[i][field] keys.
func decodeAnswers(body []byte, fields map[string][]string) ([]dto.AnswerInput, error) {
	if len(body) > 0 {
		var req dto.SubmitRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "malformed JSON payload: "+err.Error())
		}
		return req.Answers, nil
	}

	if raw, ok := fields["answers"]; ok && len(raw) > 0 {
		var answers []dto.AnswerInput
		if err := json.Unmarshal([]byte(raw[0]), &answers); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "malformed answers field: "+err.Error())
		}
		return answers, nil
	}

	return parseFlattenedAnswers(fields)
}
