package session

import (
	"testing"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedQuestions(t *testing.T, n int) []model.Question {
	t.Helper()
	questions := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		q, err := model.NewQuestion(uuid.New(), i, "prompt", model.DifficultyMedium,
			model.VerbalContent{Choices: []string{"a", "b"}}, "")
		require.NoError(t, err)
		questions = append(questions, q)
	}
	return questions
}

func TestLockIsIdempotent(t *testing.T) {
	s := NewState(uuid.New(), model.TestModeFixed, fixedQuestions(t, 2))

	s = Reduce(s, AnswersLocked{})
	require.True(t, s.Locked)

	s = Reduce(s, AnswersLocked{})
	assert.True(t, s.Locked)
}

func TestAnswerMutationAfterLockIsNoOp(t *testing.T) {
	questions := fixedQuestions(t, 2)
	s := NewState(uuid.New(), model.TestModeFixed, questions)

	s = Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "first"})
	s = Reduce(s, AnswersLocked{})

	locked := Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "overwritten"})
	assert.Equal(t, "first", locked.Answers[questions[0].ID])

	locked = Reduce(locked, AnswerSet{QuestionID: questions[1].ID, Answer: "late"})
	assert.Empty(t, locked.Answers[questions[1].ID])
	assert.Equal(t, 1, AnsweredCount(locked))
}

func TestAppendAfterLockIsNoOp(t *testing.T) {
	questions := fixedQuestions(t, 1)
	s := NewState(uuid.New(), model.TestModeAdaptive, nil)

	s = Reduce(s, QuestionAppended{Question: questions[0]})
	s = Reduce(s, AnswersLocked{})
	s = Reduce(s, QuestionAppended{Question: fixedQuestions(t, 1)[0]})

	assert.Len(t, s.Questions, 1)
}

func TestNavigationClamps(t *testing.T) {
	s := NewState(uuid.New(), model.TestModeFixed, fixedQuestions(t, 3))

	s = Reduce(s, Retreated{})
	assert.Equal(t, 0, s.Current)

	s = Reduce(s, Advanced{})
	s = Reduce(s, Advanced{})
	s = Reduce(s, Advanced{})
	assert.Equal(t, 2, s.Current)

	s = Reduce(s, Jumped{Index: -5})
	assert.Equal(t, 0, s.Current)

	s = Reduce(s, Jumped{Index: 99})
	assert.Equal(t, 2, s.Current)

	s = Reduce(s, Jumped{Index: 1})
	assert.Equal(t, 1, s.Current)
}

func TestNavigationOnEmptyStateStaysAtZero(t *testing.T) {
	s := NewState(uuid.New(), model.TestModeAdaptive, nil)

	s = Reduce(s, Advanced{})
	assert.Equal(t, 0, s.Current)

	s = Reduce(s, Jumped{Index: 7})
	assert.Equal(t, 0, s.Current)
}

func TestAnsweredCountTracksNonEmptyAnswers(t *testing.T) {
	questions := fixedQuestions(t, 3)
	s := NewState(uuid.New(), model.TestModeFixed, questions)
	assert.Equal(t, 0, AnsweredCount(s))

	s = Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "a"})
	s = Reduce(s, AnswerSet{QuestionID: questions[1].ID, Answer: "b"})
	assert.Equal(t, 2, AnsweredCount(s))
	assert.False(t, AllAnswered(s))

	// Overwriting keeps the count stable; clearing drops it.
	s = Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "changed"})
	assert.Equal(t, 2, AnsweredCount(s))

	s = Reduce(s, AnswerSet{QuestionID: questions[1].ID, Answer: ""})
	assert.Equal(t, 1, AnsweredCount(s))

	// Answers for ids outside the question list never count.
	s = Reduce(s, AnswerSet{QuestionID: uuid.New(), Answer: "stray"})
	assert.Equal(t, 1, AnsweredCount(s))

	s = Reduce(s, AnswerSet{QuestionID: questions[1].ID, Answer: "b"})
	s = Reduce(s, AnswerSet{QuestionID: questions[2].ID, Answer: "c"})
	assert.True(t, AllAnswered(s))
}

func TestAllAnsweredEmptyListIsFalse(t *testing.T) {
	s := NewState(uuid.New(), model.TestModeAdaptive, nil)
	assert.False(t, AllAnswered(s))
}

func TestAdaptiveAppendKeepsOrderAndCursor(t *testing.T) {
	s := NewState(uuid.New(), model.TestModeAdaptive, nil)

	first := fixedQuestions(t, 1)[0]
	second := fixedQuestions(t, 1)[0]

	s = Reduce(s, QuestionAppended{Question: first})
	assert.Equal(t, 0, s.Current)

	s = Reduce(s, AnswerSet{QuestionID: first.ID, Answer: "x"})
	s = Reduce(s, QuestionAppended{Question: second})

	require.Len(t, s.Questions, 2)
	assert.Equal(t, first.ID, s.Questions[0].ID)
	assert.Equal(t, second.ID, s.Questions[1].ID)
	assert.Equal(t, 1, s.Current)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	questions := fixedQuestions(t, 2)
	base := NewState(uuid.New(), model.TestModeFixed, questions)
	base = Reduce(base, AnswerSet{QuestionID: questions[0].ID, Answer: "kept"})

	next := Reduce(base, AnswerSet{QuestionID: questions[0].ID, Answer: "replaced"})

	assert.Equal(t, "kept", base.Answers[questions[0].ID])
	assert.Equal(t, "replaced", next.Answers[questions[0].ID])
	assert.False(t, base.Locked)

	_ = Reduce(base, AnswersLocked{})
	assert.False(t, base.Locked)
}

func TestAnswerRecordsOrderAndSkip(t *testing.T) {
	questions := fixedQuestions(t, 3)
	s := NewState(uuid.New(), model.TestModeFixed, questions)

	s = Reduce(s, AnswerSet{QuestionID: questions[2].ID, Answer: "third"})
	s = Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "first"})

	records, err := AnswerRecords(s, map[uuid.UUID]int{questions[0].ID: 12})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, questions[0].ID, records[0].QuestionID)
	assert.Equal(t, 12, records[0].TimeSpentSeconds)
	assert.Equal(t, questions[2].ID, records[1].QuestionID)
	assert.Equal(t, 0, records[1].TimeSpentSeconds)
}

func TestAnswerRecordsRejectNegativeTimeSpent(t *testing.T) {
	questions := fixedQuestions(t, 1)
	s := NewState(uuid.New(), model.TestModeFixed, questions)
	s = Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "a"})

	_, err := AnswerRecords(s, map[uuid.UUID]int{questions[0].ID: -3})
	assert.ErrorIs(t, err, model.ErrNegativeTimeSpent)
}

func TestSnapshotAndRestore(t *testing.T) {
	questions := fixedQuestions(t, 3)
	sessionID := uuid.New()
	startedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s := NewState(sessionID, model.TestModeFixed, questions)
	s = Reduce(s, AnswerSet{QuestionID: questions[0].ID, Answer: "a"})
	s = Reduce(s, AnswerSet{QuestionID: questions[1].ID, Answer: ""})
	s = Reduce(s, Jumped{Index: 2})

	snap := Snapshot(s, startedAt, startedAt.Add(10*time.Minute))
	assert.Equal(t, sessionID, snap.SessionID)
	assert.Equal(t, startedAt, snap.StartedAt)
	assert.Len(t, snap.Answers, 1)
	assert.Equal(t, 2, snap.CurrentIndex)

	restored := Restore(sessionID, model.TestModeFixed, questions, &snap)
	assert.Equal(t, "a", restored.Answers[questions[0].ID])
	assert.Equal(t, 2, restored.Current)
	assert.Equal(t, 1, AnsweredCount(restored))
	assert.False(t, restored.Locked)
}

func TestRestoreClampsSavedCursor(t *testing.T) {
	questions := fixedQuestions(t, 2)
	snap := model.SavedProgress{
		SessionID:    uuid.New(),
		Answers:      map[uuid.UUID]string{questions[0].ID: "a"},
		CurrentIndex: 40,
	}

	restored := Restore(snap.SessionID, model.TestModeFixed, questions, &snap)
	assert.Equal(t, 1, restored.Current)
}
