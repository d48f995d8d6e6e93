package model

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// PerformanceLevel buckets a percentile rank into a coarse band.
type PerformanceLevel string

const (
	PerformanceExcellent    PerformanceLevel = "excellent"
	PerformanceGood         PerformanceLevel = "good"
	PerformanceAverage      PerformanceLevel = "average"
	PerformanceBelowAverage PerformanceLevel = "below_average"
	PerformancePoor         PerformanceLevel = "poor"
)

// PerformanceLevelFor maps a percentile rank onto its band. Bands are
// half-open: [75, 90) is good, [50, 75) is average.
func PerformanceLevelFor(percentile float64) PerformanceLevel {
	switch {
	case percentile >= 90:
		return PerformanceExcellent
	case percentile >= 75:
		return PerformanceGood
	case percentile >= 50:
		return PerformanceAverage
	case percentile >= 25:
		return PerformanceBelowAverage
	default:
		return PerformancePoor
	}
}

// OrdinalPercentile renders a percentile rank as an English ordinal,
// rounded to the nearest integer: 71.5 becomes "72nd".
func OrdinalPercentile(percentile float64) string {
	n := int(math.Round(percentile))
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// DomainScore is the per-domain slice of a scored result.
type DomainScore struct {
	Domain     QuestionType `json:"domain"`
	Correct    int          `json:"correct"`
	Total      int          `json:"total"`
	Percentage float64      `json:"percentage"`
	Percentile *float64     `json:"percentile,omitempty"`
}

// PercentileLabel renders the domain's percentile rank as an ordinal, or ""
// when the scorer supplied none.
func (d DomainScore) PercentileLabel() string {
	if d.Percentile == nil {
		return ""
	}
	return OrdinalPercentile(*d.Percentile)
}

// PerformanceLevel buckets the domain's percentile rank. The second return
// is false when the scorer supplied no percentile for this domain.
func (d DomainScore) PerformanceLevel() (PerformanceLevel, bool) {
	if d.Percentile == nil {
		return "", false
	}
	return PerformanceLevelFor(*d.Percentile), true
}

// ConfidenceInterval bounds the estimated true score.
type ConfidenceInterval struct {
	Lower int     `json:"lower"`
	Upper int     `json:"upper"`
	Level float64 `json:"confidence_level"`
}

// CombinedLabel renders a score with its interval, e.g. "108 (101-115)".
func (ci ConfidenceInterval) CombinedLabel(score int) string {
	return fmt.Sprintf("%d (%d-%d)", score, ci.Lower, ci.Upper)
}

// AccessibilityText renders the interval as a screen-reader sentence.
func (ci ConfidenceInterval) AccessibilityText(score int) string {
	pct := int(math.Round(ci.Level * 100))
	return fmt.Sprintf("IQ score %d, with %d percent confidence the true score is between %d and %d",
		score, pct, ci.Lower, ci.Upper)
}

// SubmittedTestResult is the immutable scored outcome of a submission.
type SubmittedTestResult struct {
	TestSessionID      uuid.UUID           `json:"test_session_id"`
	IQScore            int                 `json:"iq_score"`
	AccuracyPercentage float64             `json:"accuracy_percentage"`
	CorrectAnswers     int                 `json:"correct_answers"`
	TotalQuestions     int                 `json:"total_questions"`
	PercentileRank     *float64            `json:"percentile_rank,omitempty"`
	DomainScores       []DomainScore       `json:"domain_scores,omitempty"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval,omitempty"`
	StrongestDomain    *QuestionType       `json:"strongest_domain,omitempty"`
	WeakestDomain      *QuestionType       `json:"weakest_domain,omitempty"`
	ResponseTimeFlags  []string            `json:"response_time_flags,omitempty"`
	ScoredAt           time.Time           `json:"scored_at"`
}

// ScoreLabel renders the IQ score, with its confidence interval when present.
func (r *SubmittedTestResult) ScoreLabel() string {
	if r.ConfidenceInterval != nil {
		return r.ConfidenceInterval.CombinedLabel(r.IQScore)
	}
	return strconv.Itoa(r.IQScore)
}
