package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xuri/excelize/v2"

	"github.com/quizdeck/quizdeck-api/internal/dto"
	"github.com/quizdeck/quizdeck-api/internal/models"
)

const questionBankSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["kind", "text", "correct_keys"],
				"properties": {
					"kind": {"enum": ["single", "multiple", "truefalse"]},
					"text": {"type": "string", "minLength": 3},
					"options": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["key", "text"],
							"properties": {
								"key": {"type": "string", "minLength": 1},
								"text": {"type": "string", "minLength": 1}
							}
						}
					},
					"correct_keys": {"type": "array", "minItems": 1, "items": {"type": "string"}},
					"weight": {"type": "number", "exclusiveMinimum": 0}
				}
			}
		}
	}
}`

var compiledBankSchema = jsonschema.MustCompileString("question_bank.json", questionBankSchema)

type questionBankFile struct {
	Questions []dto.QuestionCreateRequest `json:"questions"`
}

// ImportJSON validates a question-bank document against the embedded schema
// and appends all well-formed questions to the quiz.
func (s *quizService) ImportJSON(ctx context.Context, ownerID, quizID uint, payload []byte) (dto.QuestionImportReport, error) {
	quiz, err := s.ownedQuizWithQuestions(ctx, ownerID, quizID)
	if err != nil {
		return dto.QuestionImportReport{}, err
	}

	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return dto.QuestionImportReport{}, fmt.Errorf("invalid json: %w", err)
	}

	if err := compiledBankSchema.Validate(raw); err != nil {
		return dto.QuestionImportReport{}, fmt.Errorf("question bank schema violation: %w", err)
	}

	var bank questionBankFile
	if err := json.Unmarshal(payload, &bank); err != nil {
		return dto.QuestionImportReport{}, fmt.Errorf("invalid json: %w", err)
	}

	return s.appendQuestions(ctx, quizID, len(quiz.Questions), bank.Questions)
}

// ImportExcel reads question rows from the first worksheet. Expected columns:
// kind, text, options ("A=..|B=.."), correct_keys ("A,B"), weight.
func (s *quizService) ImportExcel(ctx context.Context, ownerID, quizID uint, reader io.Reader) (dto.QuestionImportReport, error) {
	quiz, err := s.ownedQuizWithQuestions(ctx, ownerID, quizID)
	if err != nil {
		return dto.QuestionImportReport{}, err
	}

	f, err := excelize.OpenReader(reader)
	if err != nil {
		return dto.QuestionImportReport{}, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return dto.QuestionImportReport{}, fmt.Errorf("excel sheet is empty")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return dto.QuestionImportReport{}, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return dto.QuestionImportReport{}, fmt.Errorf("no data rows found")
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"kind", "text", "correct_keys"} {
		if _, ok := header[col]; !ok {
			return dto.QuestionImportReport{}, fmt.Errorf("missing required column: %s", col)
		}
	}

	report := dto.QuestionImportReport{Errors: make([]dto.QuestionImportRowError, 0)}
	pending := make([]dto.QuestionCreateRequest, 0, len(rows)-1)

	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]
		report.TotalRows++

		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		payload := dto.QuestionCreateRequest{
			Kind:        strings.ToLower(get("kind")),
			Text:        get("text"),
			Options:     parseOptionCell(get("options")),
			CorrectKeys: splitKeys(get("correct_keys")),
		}
		if w := get("weight"); w != "" {
			weight, err := strconv.ParseFloat(w, 64)
			if err != nil {
				report.FailedRows++
				report.Errors = append(report.Errors, dto.QuestionImportRowError{Row: rowNo, Error: "invalid weight"})
				continue
			}
			payload.Weight = weight
		}

		if err := s.validator.Struct(payload); err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, dto.QuestionImportRowError{Row: rowNo, Error: err.Error()})
			continue
		}

		pending = append(pending, payload)
	}

	appended, err := s.appendQuestions(ctx, quizID, len(quiz.Questions), pending)
	if err != nil {
		return dto.QuestionImportReport{}, err
	}

	report.SuccessRows = appended.SuccessRows
	report.FailedRows += appended.FailedRows
	report.Errors = append(report.Errors, appended.Errors...)
	return report, nil
}

func (s *quizService) appendQuestions(ctx context.Context, quizID uint, existing int, payloads []dto.QuestionCreateRequest) (dto.QuestionImportReport, error) {
	report := dto.QuestionImportReport{TotalRows: len(payloads), Errors: make([]dto.QuestionImportRowError, 0)}

	questions := make([]models.Question, 0, len(payloads))
	for i, payload := range payloads {
		question, err := s.buildQuestion(quizID, existing+len(questions)+1, payload)
		if err != nil {
			report.FailedRows++
			report.Errors = append(report.Errors, dto.QuestionImportRowError{Row: i + 1, Error: err.Error()})
			continue
		}
		questions = append(questions, question)
	}

	if err := s.repo.CreateQuestions(ctx, questions); err != nil {
		return dto.QuestionImportReport{}, err
	}

	report.SuccessRows = len(questions)
	s.logger.Info().Uint("quiz_id", quizID).Int("imported", len(questions)).Msg("question bank imported")
	return report, nil
}

// parseOptionCell parses "A=Option text|B=Other text" cells.
func parseOptionCell(cell string) []dto.QuestionOption {
	if cell == "" {
		return nil
	}

	parts := strings.Split(cell, "|")
	options := make([]dto.QuestionOption, 0, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		options = append(options, dto.QuestionOption{
			Key:  strings.TrimSpace(kv[0]),
			Text: strings.TrimSpace(kv[1]),
		})
	}
	return options
}

func splitKeys(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
