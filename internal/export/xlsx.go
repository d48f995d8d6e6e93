package export

import (
	"io"
	"strings"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Results"

// baseHeaders are the fixed columns. One percentage column per cognitive
// domain follows them, in display order.
var baseHeaders = []string{
	"Session ID",
	"User ID",
	"Mode",
	"IQ Score",
	"Confidence Interval",
	"Accuracy %",
	"Correct",
	"Total Questions",
	"Percentile",
	"Strongest Domain",
	"Weakest Domain",
	"Response Time Flags",
	"Scored At",
}

// WriteResults renders the records as an XLSX workbook with a header row and
// one row per scored result.
func WriteResults(w io.Writer, records []repository.ResultRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	headers := append([]string{}, baseHeaders...)
	for _, domain := range model.AllQuestionTypes {
		headers = append(headers, domainTitle(domain)+" %")
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return err
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := resultRow(rec)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func resultRow(rec repository.ResultRecord) []interface{} {
	res := rec.Result

	interval := ""
	if res.ConfidenceInterval != nil {
		interval = res.ConfidenceInterval.CombinedLabel(res.IQScore)
	}
	percentile := ""
	if res.PercentileRank != nil {
		percentile = model.OrdinalPercentile(*res.PercentileRank)
	}

	row := []interface{}{
		res.TestSessionID.String(),
		rec.UserID.String(),
		string(rec.Mode),
		res.IQScore,
		interval,
		res.AccuracyPercentage,
		res.CorrectAnswers,
		res.TotalQuestions,
		percentile,
		domainLabel(res.StrongestDomain),
		domainLabel(res.WeakestDomain),
		strings.Join(res.ResponseTimeFlags, ", "),
		res.ScoredAt.UTC().Format(time.RFC3339),
	}

	byDomain := make(map[model.QuestionType]model.DomainScore, len(res.DomainScores))
	for _, ds := range res.DomainScores {
		byDomain[ds.Domain] = ds
	}
	for _, domain := range model.AllQuestionTypes {
		if ds, ok := byDomain[domain]; ok {
			row = append(row, ds.Percentage)
		} else {
			row = append(row, "")
		}
	}

	return row
}

func domainLabel(d *model.QuestionType) string {
	if d == nil {
		return ""
	}
	return string(*d)
}

func domainTitle(d model.QuestionType) string {
	s := string(d)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
