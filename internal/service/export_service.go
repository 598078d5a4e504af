package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formhub/formhub-api/internal/models"
	appErrors "github.com/formhub/formhub-api/pkg/errors"
	"github.com/formhub/formhub-api/pkg/export"
)

// ExportFormat selects the rendered output of a response export.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportService renders a form's responses as a downloadable file. Columns
// follow the form's question order; multi-choice answers join choice texts
// with ", "; file answers export the stored key.
type ExportService struct {
	responses responseStore
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

func NewExportService(responses responseStore, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		responses: responses,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// Export renders every response of the form in the requested format and
// returns the file bytes plus its content type.
func (s *ExportService) Export(ctx context.Context, form *models.Form, format ExportFormat) ([]byte, string, error) {
	responses, err := s.responses.ListByForm(ctx, form.ID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load responses")
	}

	data := buildDataset(form, responses)

	switch format {
	case ExportCSV:
		out, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return out, "text/csv", nil
	case ExportPDF:
		out, err := s.pdf.Render(data, form.Title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return out, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+string(format))
	}
}

func buildDataset(form *models.Form, responses []models.Response) export.Dataset {
	type column struct {
		questionID string
		header     string
	}
	var columns []column
	choiceTexts := make(map[string]string)
	for _, section := range form.Sections {
		for _, question := range section.Questions {
			columns = append(columns, column{questionID: question.ID, header: question.Text})
			for _, choice := range question.Choices {
				choiceTexts[choice.ID] = choice.Text
			}
		}
	}

	headers := make([]string, 0, len(columns)+2)
	headers = append(headers, "Response ID", "Submitted At")
	for _, col := range columns {
		headers = append(headers, col.header)
	}

	rows := make([]map[string]string, 0, len(responses))
	for _, resp := range responses {
		byQuestion := make(map[string]string, len(resp.Answers))
		for _, answer := range resp.Answers {
			byQuestion[answer.QuestionID] = renderAnswer(answer, choiceTexts)
		}
		row := map[string]string{
			"Response ID":  resp.ID,
			"Submitted At": resp.CreatedAt.Format(time.RFC3339),
		}
		for _, col := range columns {
			row[col.header] = byQuestion[col.questionID]
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}
}

func renderAnswer(answer models.Answer, choiceTexts map[string]string) string {
	switch {
	case len(answer.SelectedChoices) > 0:
		texts := make([]string, 0, len(answer.SelectedChoices))
		for _, choiceID := range answer.SelectedChoices {
			if text, ok := choiceTexts[choiceID]; ok {
				texts = append(texts, text)
			} else {
				texts = append(texts, choiceID)
			}
		}
		return strings.Join(texts, ", ")
	case answer.FileAnswer != nil:
		return *answer.FileAnswer
	case answer.TextAnswer != nil:
		return *answer.TextAnswer
	default:
		return ""
	}
}
