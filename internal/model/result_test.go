package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdinalPercentile(t *testing.T) {
	tests := []struct {
		percentile float64
		want       string
	}{
		{71.5, "72nd"},
		{1, "1st"},
		{2, "2nd"},
		{3, "3rd"},
		{4, "4th"},
		{11, "11th"},
		{12, "12th"},
		{13, "13th"},
		{21, "21st"},
		{33, "33rd"},
		{50.4, "50th"},
		{99, "99th"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OrdinalPercentile(tt.percentile), "percentile %v", tt.percentile)
	}
}

func TestPerformanceLevelBands(t *testing.T) {
	tests := []struct {
		percentile float64
		want       PerformanceLevel
	}{
		{97, PerformanceExcellent},
		{90, PerformanceExcellent},
		{89.9, PerformanceGood},
		{75, PerformanceGood},
		{74.9, PerformanceAverage},
		{71.5, PerformanceAverage},
		{50, PerformanceAverage},
		{49.9, PerformanceBelowAverage},
		{25, PerformanceBelowAverage},
		{24.9, PerformancePoor},
		{3, PerformancePoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PerformanceLevelFor(tt.percentile), "percentile %v", tt.percentile)
	}
}

func TestDomainScoreFormatting(t *testing.T) {
	p := 71.5
	score := DomainScore{Domain: QuestionTypeLogic, Correct: 3, Total: 4, Percentage: 75.0, Percentile: &p}

	assert.Equal(t, "72nd", score.PercentileLabel())

	level, ok := score.PerformanceLevel()
	require.True(t, ok)
	assert.Equal(t, PerformanceAverage, level)
}

func TestDomainScoreWithoutPercentile(t *testing.T) {
	score := DomainScore{Domain: QuestionTypeMath, Correct: 2, Total: 5, Percentage: 40}

	assert.Equal(t, "", score.PercentileLabel())
	_, ok := score.PerformanceLevel()
	assert.False(t, ok)
}

func TestConfidenceIntervalLabels(t *testing.T) {
	ci := ConfidenceInterval{Lower: 101, Upper: 115, Level: 0.95}

	assert.Equal(t, "108 (101-115)", ci.CombinedLabel(108))
	assert.Contains(t, ci.AccessibilityText(108), "95 percent confidence")
}

func TestScoreLabel(t *testing.T) {
	withCI := SubmittedTestResult{
		IQScore:            108,
		ConfidenceInterval: &ConfidenceInterval{Lower: 101, Upper: 115, Level: 0.95},
	}
	assert.Equal(t, "108 (101-115)", withCI.ScoreLabel())

	bare := SubmittedTestResult{IQScore: 97}
	assert.Equal(t, "97", bare.ScoreLabel())
}
