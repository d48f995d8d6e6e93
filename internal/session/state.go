// Package session holds the in-flight state of a test attempt and the pure
// transition function that advances it. Nothing here touches storage, the
// network, or a clock; callers feed events in and read snapshots out, which
// keeps every transition testable in isolation.
package session

import (
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
)

// State is one immutable snapshot of a test attempt: the delivered
// questions, the user's answers, the cursor, and the lock/completion flags.
type State struct {
	SessionID uuid.UUID
	Mode      model.TestMode
	Questions []model.Question
	Answers   map[uuid.UUID]string
	Current   int
	Locked    bool
	Completed bool
}

// NewState builds a fresh unlocked state over a question list. Fixed-form
// sessions pass the full set; adaptive sessions start empty and append.
func NewState(sessionID uuid.UUID, mode model.TestMode, questions []model.Question) State {
	return State{
		SessionID: sessionID,
		Mode:      mode,
		Questions: append([]model.Question(nil), questions...),
		Answers:   map[uuid.UUID]string{},
	}
}

// Event is a state transition input. The event types in this package are
// the only implementations.
type Event interface{ isEvent() }

// QuestionAppended adds the next adaptive question and moves the cursor to
// it. Ignored once the state is locked or completed.
type QuestionAppended struct{ Question model.Question }

// AnswerSet records the user's current answer for a question. Ignored once
// the state is locked or completed; setting "" clears the answer.
type AnswerSet struct {
	QuestionID uuid.UUID
	Answer     string
}

// Advanced moves the cursor to the next question, clamped at the end.
type Advanced struct{}

// Retreated moves the cursor to the previous question, clamped at zero.
type Retreated struct{}

// Jumped moves the cursor to an absolute index, clamped into range.
type Jumped struct{ Index int }

// AnswersLocked freezes the answer map. Idempotent; never unset within a
// state's lifetime.
type AnswersLocked struct{}

// MarkedCompleted flags the attempt as finished.
type MarkedCompleted struct{}

func (QuestionAppended) isEvent() {}
func (AnswerSet) isEvent()        {}
func (Advanced) isEvent()         {}
func (Retreated) isEvent()        {}
func (Jumped) isEvent()           {}
func (AnswersLocked) isEvent()    {}
func (MarkedCompleted) isEvent()  {}

// Reduce applies one event to a snapshot and returns the next state. It
// never mutates its input: the answer map and question list are copied on
// write, so callers can keep old snapshots.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case QuestionAppended:
		if s.Locked || s.Completed {
			return s
		}
		s.Questions = append(append([]model.Question(nil), s.Questions...), e.Question)
		s.Current = len(s.Questions) - 1
		return s

	case AnswerSet:
		if s.Locked || s.Completed {
			return s
		}
		answers := make(map[uuid.UUID]string, len(s.Answers)+1)
		for k, v := range s.Answers {
			answers[k] = v
		}
		answers[e.QuestionID] = e.Answer
		s.Answers = answers
		return s

	case Advanced:
		s.Current = clampIndex(s.Current+1, len(s.Questions))
		return s

	case Retreated:
		s.Current = clampIndex(s.Current-1, len(s.Questions))
		return s

	case Jumped:
		s.Current = clampIndex(e.Index, len(s.Questions))
		return s

	case AnswersLocked:
		s.Locked = true
		return s

	case MarkedCompleted:
		s.Completed = true
		return s

	default:
		return s
	}
}

func clampIndex(i, count int) int {
	if count == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= count {
		return count - 1
	}
	return i
}

// AnsweredCount counts the questions whose current answer is non-empty.
// Stray answer-map entries for unknown question ids never count.
func AnsweredCount(s State) int {
	n := 0
	for _, q := range s.Questions {
		if s.Answers[q.ID] != "" {
			n++
		}
	}
	return n
}

// AllAnswered reports whether every question has a non-empty answer. An
// empty question list is never "all answered".
func AllAnswered(s State) bool {
	return len(s.Questions) > 0 && AnsweredCount(s) == len(s.Questions)
}

// CurrentQuestion returns the question under the cursor.
func CurrentQuestion(s State) (model.Question, bool) {
	if len(s.Questions) == 0 {
		return model.Question{}, false
	}
	return s.Questions[s.Current], true
}

// AnswerRecords converts the answered subset into ordered submission
// records. Order follows the question list; unanswered questions are
// skipped. timeSpent may be nil.
func AnswerRecords(s State, timeSpent map[uuid.UUID]int) ([]model.AnswerRecord, error) {
	records := make([]model.AnswerRecord, 0, len(s.Questions))
	for _, q := range s.Questions {
		answer := s.Answers[q.ID]
		if answer == "" {
			continue
		}
		rec, err := model.NewAnswerRecord(q.ID, answer, timeSpent[q.ID])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Snapshot captures the resumable subset of the state. Empty answers are
// dropped from the snapshot.
func Snapshot(s State, startedAt, now time.Time) model.SavedProgress {
	answers := make(map[uuid.UUID]string, len(s.Answers))
	for id, a := range s.Answers {
		if a != "" {
			answers[id] = a
		}
	}
	return model.SavedProgress{
		SessionID:    s.SessionID,
		StartedAt:    startedAt,
		Answers:      answers,
		CurrentIndex: s.Current,
		SavedAt:      now,
	}
}

// Restore rebuilds a state over the session's question list from a saved
// snapshot. Every restored answer and the cursor go through Reduce, so the
// usual clamping applies.
func Restore(sessionID uuid.UUID, mode model.TestMode, questions []model.Question, progress *model.SavedProgress) State {
	s := NewState(sessionID, mode, questions)
	if progress == nil {
		return s
	}
	for id, answer := range progress.Answers {
		s = Reduce(s, AnswerSet{QuestionID: id, Answer: answer})
	}
	return Reduce(s, Jumped{Index: progress.CurrentIndex})
}
