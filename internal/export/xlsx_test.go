package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func exportRows(t *testing.T, records []repository.ResultRecord) [][]string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	return rows
}

func TestWriteResultsHeaderCoversAllDomains(t *testing.T) {
	rows := exportRows(t, nil)

	require.Len(t, rows, 1)
	header := rows[0]
	require.Len(t, header, len(baseHeaders)+len(model.AllQuestionTypes))
	assert.Equal(t, "Session ID", header[0])
	assert.Equal(t, "Pattern %", header[len(baseHeaders)])
	assert.Equal(t, "Memory %", header[len(header)-1])
}

func TestWriteResultsRowValues(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()
	percentile := 71.5
	strongest := model.QuestionTypeLogic
	weakest := model.QuestionTypeMemory

	rec := repository.ResultRecord{
		UserID: userID,
		Mode:   model.TestModeFixed,
		Result: model.SubmittedTestResult{
			TestSessionID:      sessionID,
			IQScore:            108,
			AccuracyPercentage: 80,
			CorrectAnswers:     16,
			TotalQuestions:     20,
			PercentileRank:     &percentile,
			ConfidenceInterval: &model.ConfidenceInterval{Lower: 101, Upper: 115, Level: 0.95},
			StrongestDomain:    &strongest,
			WeakestDomain:      &weakest,
			ResponseTimeFlags:  []string{"rushed", "uniform_timing"},
			DomainScores: []model.DomainScore{
				{Domain: model.QuestionTypeLogic, Correct: 4, Total: 4, Percentage: 100},
				{Domain: model.QuestionTypeMemory, Correct: 1, Total: 4, Percentage: 25},
			},
			ScoredAt: time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
		},
	}

	rows := exportRows(t, []repository.ResultRecord{rec})
	require.Len(t, rows, 2)

	row := rows[1]
	assert.Equal(t, sessionID.String(), row[0])
	assert.Equal(t, userID.String(), row[1])
	assert.Equal(t, "fixed", row[2])
	assert.Equal(t, "108", row[3])
	assert.Equal(t, "108 (101-115)", row[4])
	assert.Equal(t, "80", row[5])
	assert.Equal(t, "72nd", row[8])
	assert.Equal(t, "logic", row[9])
	assert.Equal(t, "memory", row[10])
	assert.Equal(t, "rushed, uniform_timing", row[11])
	assert.Equal(t, "2026-03-14T10:30:00Z", row[12])

	// Domain columns follow AllQuestionTypes order; unscored domains are blank.
	logicCol := len(baseHeaders) + 1
	memoryCol := len(baseHeaders) + 5
	assert.Equal(t, "100", row[logicCol])
	assert.Equal(t, "25", row[memoryCol])
	assert.Equal(t, "", row[len(baseHeaders)])
}

func TestWriteResultsOptionalFieldsBlank(t *testing.T) {
	rec := repository.ResultRecord{
		UserID: uuid.New(),
		Mode:   model.TestModeAdaptive,
		Result: model.SubmittedTestResult{
			TestSessionID:  uuid.New(),
			IQScore:        95,
			CorrectAnswers: 9,
			TotalQuestions: 12,
			ScoredAt:       time.Now().UTC(),
		},
	}

	rows := exportRows(t, []repository.ResultRecord{rec})
	require.Len(t, rows, 2)

	row := rows[1]
	assert.Equal(t, "95", row[3])
	assert.Equal(t, "", row[4])
	assert.Equal(t, "", row[8])
	assert.Equal(t, "", row[9])
	assert.Equal(t, "", row[10])
}
