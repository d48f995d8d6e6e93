package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QuestionType enumerates the cognitive domains a question can probe.
type QuestionType string

const (
	QuestionTypePattern QuestionType = "pattern"
	QuestionTypeLogic   QuestionType = "logic"
	QuestionTypeSpatial QuestionType = "spatial"
	QuestionTypeMath    QuestionType = "math"
	QuestionTypeVerbal  QuestionType = "verbal"
	QuestionTypeMemory  QuestionType = "memory"
)

// AllQuestionTypes lists every cognitive domain in display order.
var AllQuestionTypes = []QuestionType{
	QuestionTypePattern,
	QuestionTypeLogic,
	QuestionTypeSpatial,
	QuestionTypeMath,
	QuestionTypeVerbal,
	QuestionTypeMemory,
}

// IsValid reports whether the type is one of the known cognitive domains.
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionTypePattern, QuestionTypeLogic, QuestionTypeSpatial,
		QuestionTypeMath, QuestionTypeVerbal, QuestionTypeMemory:
		return true
	}
	return false
}

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether the difficulty is one of the known grades.
func (d Difficulty) IsValid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

var (
	ErrEmptyQuestionText   = errors.New("question text is empty")
	ErrMissingContent      = errors.New("question content is required")
	ErrInvalidDifficulty   = errors.New("invalid difficulty")
	ErrUnknownQuestionType = errors.New("unknown question type")
)

// Content is the type-specific portion of a question. Each variant carries
// only the fields that apply to its cognitive domain.
type Content interface {
	QuestionType() QuestionType
}

// PatternContent asks which element continues a sequence.
type PatternContent struct {
	Sequence []string `json:"sequence"`
	Choices  []string `json:"choices"`
}

func (PatternContent) QuestionType() QuestionType { return QuestionTypePattern }

// LogicContent is a deduction item over a set of premises.
type LogicContent struct {
	Premises []string `json:"premises,omitempty"`
	Choices  []string `json:"choices"`
}

func (LogicContent) QuestionType() QuestionType { return QuestionTypeLogic }

// SpatialContent is a mental-rotation or figure-matching item.
type SpatialContent struct {
	FigureRef string   `json:"figure_ref,omitempty"`
	Choices   []string `json:"choices"`
}

func (SpatialContent) QuestionType() QuestionType { return QuestionTypeSpatial }

// MathContent is a numeric-reasoning item. Choices may be empty for
// free-entry answers.
type MathContent struct {
	Choices []string `json:"choices,omitempty"`
}

func (MathContent) QuestionType() QuestionType { return QuestionTypeMath }

// VerbalContent is a vocabulary or analogy item.
type VerbalContent struct {
	Choices []string `json:"choices"`
}

func (VerbalContent) QuestionType() QuestionType { return QuestionTypeVerbal }

// MemoryContent shows a stimulus for a bounded exposure, then asks about it.
type MemoryContent struct {
	Stimulus        string   `json:"stimulus"`
	ExposureSeconds int      `json:"exposure_seconds"`
	Choices         []string `json:"choices"`
}

func (MemoryContent) QuestionType() QuestionType { return QuestionTypeMemory }

// Question is one item in a test: shared attributes plus a content variant
// determined by the question type.
type Question struct {
	ID          uuid.UUID
	Position    int
	Text        string
	Difficulty  Difficulty
	Explanation string
	Content     Content
}

// NewQuestion builds a Question, rejecting empty text, missing content, and
// unknown difficulty grades.
func NewQuestion(id uuid.UUID, position int, text string, difficulty Difficulty, content Content, explanation string) (Question, error) {
	if strings.TrimSpace(text) == "" {
		return Question{}, ErrEmptyQuestionText
	}
	if content == nil {
		return Question{}, ErrMissingContent
	}
	if !difficulty.IsValid() {
		return Question{}, fmt.Errorf("%w: %q", ErrInvalidDifficulty, difficulty)
	}
	return Question{
		ID:          id,
		Position:    position,
		Text:        text,
		Difficulty:  difficulty,
		Explanation: explanation,
		Content:     content,
	}, nil
}

// Type returns the cognitive domain of the question's content variant.
func (q Question) Type() QuestionType {
	if q.Content == nil {
		return ""
	}
	return q.Content.QuestionType()
}

type questionJSON struct {
	ID          uuid.UUID       `json:"question_id"`
	Position    int             `json:"position"`
	Text        string          `json:"question_text"`
	Type        QuestionType    `json:"question_type"`
	Difficulty  Difficulty      `json:"difficulty"`
	Explanation string          `json:"explanation,omitempty"`
	Content     json.RawMessage `json:"content"`
}

// MarshalJSON encodes the content variant under a question_type discriminator.
func (q Question) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(q.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(questionJSON{
		ID:          q.ID,
		Position:    q.Position,
		Text:        q.Text,
		Type:        q.Type(),
		Difficulty:  q.Difficulty,
		Explanation: q.Explanation,
		Content:     raw,
	})
}

// UnmarshalJSON decodes the content variant selected by question_type.
// Unknown types are an error, never silently dropped.
func (q *Question) UnmarshalJSON(data []byte) error {
	var wire questionJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var content Content
	switch wire.Type {
	case QuestionTypePattern:
		var c PatternContent
		if err := json.Unmarshal(wire.Content, &c); err != nil {
			return err
		}
		content = c
	case QuestionTypeLogic:
		var c LogicContent
		if err := json.Unmarshal(wire.Content, &c); err != nil {
			return err
		}
		content = c
	case QuestionTypeSpatial:
		var c SpatialContent
		if err := json.Unmarshal(wire.Content, &c); err != nil {
			return err
		}
		content = c
	case QuestionTypeMath:
		var c MathContent
		if err := json.Unmarshal(wire.Content, &c); err != nil {
			return err
		}
		content = c
	case QuestionTypeVerbal:
		var c VerbalContent
		if err := json.Unmarshal(wire.Content, &c); err != nil {
			return err
		}
		content = c
	case QuestionTypeMemory:
		var c MemoryContent
		if err := json.Unmarshal(wire.Content, &c); err != nil {
			return err
		}
		content = c
	default:
		return fmt.Errorf("%w: %q", ErrUnknownQuestionType, wire.Type)
	}

	q.ID = wire.ID
	q.Position = wire.Position
	q.Text = wire.Text
	q.Difficulty = wire.Difficulty
	q.Explanation = wire.Explanation
	q.Content = content
	return nil
}
