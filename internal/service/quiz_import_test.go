package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quizdeck/quizdeck-api/internal/dto"
)

func TestQuizServiceImportJSON(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Imported Set"})
	require.NoError(t, err)

	bank := []byte(`{
		"questions": [
			{
				"kind": "single",
				"text": "What does TCP stand for?",
				"options": [{"key": "A", "text": "Transmission Control Protocol"}, {"key": "B", "text": "Total Control Plane"}],
				"correct_keys": ["A"],
				"weight": 2
			},
			{
				"kind": "truefalse",
				"text": "UDP guarantees delivery.",
				"correct_keys": ["FALSE"]
			}
		]
	}`)

	report, err := svc.ImportJSON(context.Background(), 1, quiz.ID, bank)
	require.NoError(t, err)
	require.Equal(t, 2, report.TotalRows)
	require.Equal(t, 2, report.SuccessRows)
	require.Empty(t, report.Errors)

	_, questions, err := svc.Get(context.Background(), 1, quiz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, 1, questions[0].Position)
	require.Equal(t, float64(2), questions[0].Weight)
}

func TestQuizServiceImportJSONSchemaViolation(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Imported Set"})
	require.NoError(t, err)

	// correct_keys is required by the schema.
	_, err = svc.ImportJSON(context.Background(), 1, quiz.ID, []byte(`{
		"questions": [{"kind": "single", "text": "No answer key"}]
	}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "schema violation")
}

func TestQuizServiceImportExcel(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Imported Set"})
	require.NoError(t, err)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"kind", "text", "options", "correct_keys", "weight"},
		{"single", "Pick the compiled language", "A=Go|B=Python", "A", "2"},
		{"multiple", "Select the Go keywords", "A=func|B=lambda|C=defer", "A,C", ""},
		{"single", "", "A=x|B=y", "A", ""},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	report, err := svc.ImportExcel(context.Background(), 1, quiz.ID, &buf)
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalRows)
	require.Equal(t, 2, report.SuccessRows)
	require.Equal(t, 1, report.FailedRows)
	require.Len(t, report.Errors, 1)
	require.Equal(t, 4, report.Errors[0].Row, "row numbers match the sheet")

	_, questions, err := svc.Get(context.Background(), 1, quiz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Equal(t, []string{"A", "C"}, questions[1].CorrectKeys)
}

func TestQuizServiceImportExcelMissingColumn(t *testing.T) {
	svc := newQuizEnv(t)

	quiz, err := svc.Create(context.Background(), 1, dto.QuizCreateRequest{Title: "Imported Set"})
	require.NoError(t, err)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "kind"))
	require.NoError(t, f.SetCellValue(sheet, "B1", "text"))
	require.NoError(t, f.SetCellValue(sheet, "A2", "single"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "orphan row"))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err = svc.ImportExcel(context.Background(), 1, quiz.ID, &buf)
	require.Error(t, err)
	require.Contains(t, err.Error(), "correct_keys")
}
