package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/oneshot"
	"github.com/gioe/aiq-sub010/internal/progress"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/gioe/aiq-sub010/internal/scoring"
	"github.com/gioe/aiq-sub010/internal/session"
	"github.com/gioe/aiq-sub010/internal/timer"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrActiveSessionConflict = errors.New("another test session is already in progress")
	ErrSessionNotFound       = errors.New("test session not found")
	ErrNotSessionOwner       = errors.New("test session belongs to another user")
	ErrSessionNotActive      = errors.New("test session is no longer active")
	ErrSessionExpired        = errors.New("test session time limit reached")
	ErrNotAdaptive           = errors.New("session is not adaptive")
	ErrIncompleteAnswers     = errors.New("every question must be answered before submitting")
	ErrSubmissionInFlight    = errors.New("timeout submission already in flight")
	ErrResultNotFound        = errors.New("no result scored for this session")
)

// SessionStore is the session persistence surface the service depends on.
// *repository.SessionRepository satisfies it.
type SessionStore interface {
	Create(ctx context.Context, userID uuid.UUID, mode model.TestMode) (*model.TestSession, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*model.TestSession, error)
	Complete(ctx context.Context, id uuid.UUID, timeLimitExceeded bool, completedAt time.Time) error
	Abandon(ctx context.Context, id uuid.UUID) error
	SetQuestionCount(ctx context.Context, id uuid.UUID, count int) error
	IncrementQuestionCount(ctx context.Context, id uuid.UUID) error
	SetAdaptiveComplete(ctx context.Context, id uuid.UUID) error
	ListOverdue(ctx context.Context, cutoff time.Time) ([]model.TestSession, error)
}

// AnswerStore is the per-question answer persistence surface.
type AnswerStore interface {
	UpsertBatch(ctx context.Context, rows []repository.AnswerRow) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]repository.AnswerRow, error)
	DeleteBySession(ctx context.Context, sessionID uuid.UUID) error
}

// ResultStore is the scored-result persistence surface.
type ResultStore interface {
	Create(ctx context.Context, result *model.SubmittedTestResult) error
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.SubmittedTestResult, error)
}

// Scorer is the assessment engine surface. *scoring.Client satisfies it.
type Scorer interface {
	FetchForm(ctx context.Context, req scoring.FormRequest) ([]model.Question, error)
	NextQuestion(ctx context.Context, req scoring.NextQuestionRequest) (*model.Question, bool, error)
	Score(ctx context.Context, payload model.SubmissionPayload) (*model.SubmittedTestResult, error)
	Abandon(ctx context.Context, sessionID uuid.UUID) error
}

// PersistQueue hands answer rows to the background persist worker.
type PersistQueue interface {
	Enqueue(ctx context.Context, rows []repository.AnswerRow) error
}

// SessionService orchestrates the test session lifecycle: entry resolution,
// progress snapshots, adaptive delivery, and the two submission paths.
type SessionService struct {
	sessions  SessionStore
	answers   AnswerStore
	results   ResultStore
	scorer    Scorer
	snapshots progress.Store
	guard     oneshot.Guard
	queue     PersistQueue
	now       func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions SessionStore,
	answers AnswerStore,
	results ResultStore,
	scorer Scorer,
	snapshots progress.Store,
	guard oneshot.Guard,
	queue PersistQueue,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		answers:   answers,
		results:   results,
		scorer:    scorer,
		snapshots: snapshots,
		guard:     guard,
		queue:     queue,
		now:       time.Now,
	}
}

// ActiveTest is the client-facing view of a running session.
type ActiveTest struct {
	Session          *model.TestSession   `json:"session"`
	Questions        []model.Question     `json:"questions"`
	Answers          map[uuid.UUID]string `json:"answers"`
	CurrentIndex     int                  `json:"current_index"`
	RemainingSeconds float64              `json:"remaining_seconds"`
}

// ProgressState is the lightweight resync view: answers and clock, without
// question bodies.
type ProgressState struct {
	SessionID        uuid.UUID            `json:"session_id"`
	Answers          map[uuid.UUID]string `json:"answers"`
	CurrentIndex     int                  `json:"current_index"`
	AnsweredCount    int                  `json:"answered_count"`
	RemainingSeconds float64              `json:"remaining_seconds"`
}

// DecisionKind tags the outcome of Enter.
type DecisionKind string

const (
	DecisionStarted          DecisionKind = "started"
	DecisionResumeAvailable  DecisionKind = "resume_available"
	DecisionConflict         DecisionKind = "conflict"
	DecisionExpiredSubmitted DecisionKind = "expired_submitted"
)

// EnterDecision is what the client gets when it opens the test screen.
// Exactly one of Test, Progress, Session, or Result is set, according to
// Kind.
type EnterDecision struct {
	Kind     DecisionKind               `json:"kind"`
	Test     *ActiveTest                `json:"test,omitempty"`
	Progress *model.SavedProgress       `json:"progress,omitempty"`
	Session  *model.TestSession         `json:"session,omitempty"`
	Result   *model.SubmittedTestResult `json:"result,omitempty"`
}

// Enter resolves what the client should see when opening the test screen.
// Checks run in strict order: expired saved progress is submitted on the
// spot, fresh saved progress offers a resume, an active server session with
// no local snapshot surfaces as a conflict, and a clean slate starts a new
// session.
func (s *SessionService) Enter(ctx context.Context, userID uuid.UUID, mode model.TestMode) (*EnterDecision, error) {
	saved, err := s.snapshots.Load(ctx, userID)
	if err != nil && !errors.Is(err, progress.ErrNotFound) {
		return nil, fmt.Errorf("load saved progress: %w", err)
	}

	if saved != nil {
		if !timer.Expired(saved.StartedAt, s.now()) {
			return &EnterDecision{Kind: DecisionResumeAvailable, Progress: saved}, nil
		}

		// Out of time: the snapshot is submitted as-is, never offered for
		// resume.
		result, err := s.TimeoutSubmit(ctx, saved.SessionID)
		switch {
		case err == nil:
			_ = s.snapshots.Clear(ctx, userID)
			return &EnterDecision{Kind: DecisionExpiredSubmitted, Result: result}, nil
		case errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionNotActive):
			// The snapshot outlived its session. Drop it and keep resolving.
			_ = s.snapshots.Clear(ctx, userID)
		default:
			return nil, err
		}
	}

	active, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check active session: %w", err)
	}
	if active != nil {
		if timer.Expired(active.StartedAt, s.now()) {
			result, err := s.TimeoutSubmit(ctx, active.ID)
			if err != nil {
				return nil, err
			}
			return &EnterDecision{Kind: DecisionExpiredSubmitted, Result: result}, nil
		}
		return &EnterDecision{Kind: DecisionConflict, Session: active}, nil
	}

	test, err := s.StartNew(ctx, userID, mode)
	if err != nil {
		return nil, err
	}
	return &EnterDecision{Kind: DecisionStarted, Test: test}, nil
}

// StartNew creates a session and delivers its opening question set: the
// full form for fixed mode, the first engine-selected item for adaptive.
func (s *SessionService) StartNew(ctx context.Context, userID uuid.UUID, mode model.TestMode) (*ActiveTest, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid test mode %q", mode)
	}

	sess, err := s.sessions.Create(ctx, userID, mode)
	if err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, ErrActiveSessionConflict
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	var questions []model.Question
	switch mode {
	case model.TestModeFixed:
		questions, err = s.scorer.FetchForm(ctx, scoring.FormRequest{SessionID: sess.ID, UserID: userID})
		if err != nil {
			return nil, fmt.Errorf("fetch form: %w", err)
		}
		if err := s.sessions.SetQuestionCount(ctx, sess.ID, len(questions)); err != nil {
			return nil, fmt.Errorf("set question count: %w", err)
		}
		sess.QuestionCount = len(questions)

	case model.TestModeAdaptive:
		q, done, err := s.scorer.NextQuestion(ctx, scoring.NextQuestionRequest{SessionID: sess.ID})
		if err != nil {
			return nil, fmt.Errorf("fetch first question: %w", err)
		}
		if !done && q != nil {
			questions = []model.Question{*q}
			if err := s.sessions.IncrementQuestionCount(ctx, sess.ID); err != nil {
				return nil, fmt.Errorf("count question: %w", err)
			}
			sess.QuestionCount = 1
		}
	}

	snapshot := session.Snapshot(session.NewState(sess.ID, mode, questions), sess.StartedAt, s.now())
	if err := s.snapshots.Save(ctx, userID, &snapshot); err != nil {
		return nil, fmt.Errorf("save initial progress: %w", err)
	}

	return &ActiveTest{
		Session:          sess,
		Questions:        questions,
		Answers:          map[uuid.UUID]string{},
		RemainingSeconds: timer.RemainingAt(sess.StartedAt, s.now()).Seconds(),
	}, nil
}

// Resume rebuilds the client view of the given session, preferring the
// saved snapshot and falling back to the server-side answer copy when no
// snapshot exists (fresh device, evicted cache).
func (s *SessionService) Resume(ctx context.Context, userID, sessionID uuid.UUID) (*ActiveTest, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrNotSessionOwner
	}
	if sess.Status.IsTerminal() {
		if saved, serr := s.snapshots.Load(ctx, userID); serr == nil && saved.SessionID == sess.ID {
			_ = s.snapshots.Clear(ctx, userID)
		}
		return nil, ErrSessionNotActive
	}

	var (
		answers map[uuid.UUID]string
		current int
	)
	saved, err := s.snapshots.Load(ctx, userID)
	switch {
	case err == nil && saved.SessionID == sess.ID:
		answers = saved.Answers
		current = saved.CurrentIndex

	case err == nil, errors.Is(err, progress.ErrNotFound):
		// No snapshot, or one left over from another session. The
		// server-side answer copy is the source of truth.
		rows, lerr := s.answers.ListBySession(ctx, sess.ID)
		if lerr != nil {
			return nil, fmt.Errorf("list answers: %w", lerr)
		}
		answers = make(map[uuid.UUID]string, len(rows))
		for _, row := range rows {
			answers[row.QuestionID] = row.UserAnswer
		}

	default:
		return nil, fmt.Errorf("load saved progress: %w", err)
	}
	if timer.Expired(sess.StartedAt, s.now()) {
		if _, err := s.TimeoutSubmit(ctx, sess.ID); err != nil {
			return nil, err
		}
		return nil, ErrSessionExpired
	}

	// The engine replays the question set delivered so far for this
	// session: the whole form for fixed mode, issued items for adaptive.
	questions, err := s.scorer.FetchForm(ctx, scoring.FormRequest{SessionID: sess.ID, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("fetch question set: %w", err)
	}

	st := session.Restore(sess.ID, sess.Mode, questions, &model.SavedProgress{
		Answers:      answers,
		CurrentIndex: current,
	})

	// Self-heal the snapshot so the next entry resolves locally.
	snapshot := session.Snapshot(st, sess.StartedAt, s.now())
	_ = s.snapshots.Save(ctx, userID, &snapshot)

	return &ActiveTest{
		Session:          sess,
		Questions:        st.Questions,
		Answers:          st.Answers,
		CurrentIndex:     st.Current,
		RemainingSeconds: timer.RemainingAt(sess.StartedAt, s.now()).Seconds(),
	}, nil
}

// AbandonAndStartNew discards the named session and immediately starts a
// fresh one. Used from the conflict branch of Enter. A session that already
// disappeared or reached a terminal state does not block the new start.
func (s *SessionService) AbandonAndStartNew(ctx context.Context, userID, sessionID uuid.UUID, mode model.TestMode) (*ActiveTest, error) {
	err := s.Abandon(ctx, userID, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionNotActive) {
		return nil, err
	}
	return s.StartNew(ctx, userID, mode)
}

// Abandon discards one of the user's in-progress sessions. No result is
// produced and saved progress is cleared, so the next entry starts clean.
func (s *SessionService) Abandon(ctx context.Context, userID, sessionID uuid.UUID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return ErrNotSessionOwner
	}
	if sess.Status.IsTerminal() {
		return ErrSessionNotActive
	}

	if err := s.scorer.Abandon(ctx, sess.ID); err != nil {
		var apiErr *scoring.APIError
		if !errors.As(err, &apiErr) {
			return fmt.Errorf("abandon engine session: %w", err)
		}
		// An engine rejection means it no longer tracks this session.
		// Proceed with the local teardown.
	}

	if err := s.sessions.Abandon(ctx, sess.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotActive
		}
		return fmt.Errorf("abandon session: %w", err)
	}
	if err := s.answers.DeleteBySession(ctx, sess.ID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	if err := s.snapshots.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

// SaveProgress replaces the user's resumable snapshot and mirrors the
// answers to the persist queue. Saves are rejected once the session clock
// has run out; the timeout path owns the final state from then on.
func (s *SessionService) SaveProgress(ctx context.Context, userID, sessionID uuid.UUID, answers map[uuid.UUID]string, currentIndex int) error {
	prev, err := s.snapshots.Load(ctx, userID)
	if errors.Is(err, progress.ErrNotFound) || (err == nil && prev.SessionID != sessionID) {
		// Snapshot evicted, never written, or left over from another
		// session. Fall back to the session row.
		sess, dbErr := s.sessions.GetActiveByUser(ctx, userID)
		if errors.Is(dbErr, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		if dbErr != nil {
			return fmt.Errorf("get active session: %w", dbErr)
		}
		if sess.ID != sessionID {
			return ErrSessionNotFound
		}
		prev = &model.SavedProgress{SessionID: sess.ID, StartedAt: sess.StartedAt}
	} else if err != nil {
		return fmt.Errorf("load saved progress: %w", err)
	}

	if timer.Expired(prev.StartedAt, s.now()) {
		return ErrSessionExpired
	}

	kept := make(map[uuid.UUID]string, len(answers))
	for id, answer := range answers {
		if answer != "" {
			kept[id] = answer
		}
	}

	if currentIndex < 0 {
		currentIndex = 0
	}

	next := &model.SavedProgress{
		SessionID:    prev.SessionID,
		StartedAt:    prev.StartedAt,
		Answers:      kept,
		CurrentIndex: currentIndex,
		SavedAt:      s.now(),
	}
	if err := s.snapshots.Save(ctx, userID, next); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	// The snapshot is authoritative for resume; the queued rows are a
	// durability mirror, so a failed enqueue does not fail the save.
	if rows := answerRows(prev.SessionID, kept); len(rows) > 0 {
		_ = s.queue.Enqueue(ctx, rows)
	}
	return nil
}

// NextQuestion asks the engine for the next adaptive item given the answers
// so far. done reports that the engine has converged and the attempt should
// be submitted.
func (s *SessionService) NextQuestion(ctx context.Context, userID, sessionID uuid.UUID) (*model.Question, bool, error) {
	saved, sess, err := s.loadActive(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if sess.ID != sessionID {
		return nil, false, ErrSessionNotFound
	}
	if sess.Mode != model.TestModeAdaptive {
		return nil, false, ErrNotAdaptive
	}
	if timer.Expired(sess.StartedAt, s.now()) {
		return nil, false, ErrSessionExpired
	}

	records := make([]model.AnswerRecord, 0, len(saved.Answers))
	for id, answer := range saved.Answers {
		if answer != "" {
			records = append(records, model.AnswerRecord{QuestionID: id, UserAnswer: answer})
		}
	}

	q, done, err := s.scorer.NextQuestion(ctx, scoring.NextQuestionRequest{SessionID: sess.ID, Answers: records})
	if err != nil {
		return nil, false, fmt.Errorf("next question: %w", err)
	}
	if done {
		if err := s.sessions.SetAdaptiveComplete(ctx, sess.ID); err != nil {
			return nil, false, fmt.Errorf("mark adaptive complete: %w", err)
		}
		return nil, true, nil
	}

	if err := s.sessions.IncrementQuestionCount(ctx, sess.ID); err != nil {
		return nil, false, fmt.Errorf("count question: %w", err)
	}
	return q, false, nil
}

// Submit scores a finished attempt. Fixed-form sessions must have every
// question answered; adaptive sessions must have converged. A session past
// its time limit is routed through the timeout path instead, which accepts
// partial answers.
func (s *SessionService) Submit(ctx context.Context, userID, sessionID uuid.UUID, answers []model.SubmitAnswer) (*model.SubmittedTestResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	switch sess.Status {
	case model.SessionStatusCompleted:
		// Duplicate submit: hand back the canonical result.
		return s.canonicalResult(ctx, sessionID)
	case model.SessionStatusAbandoned:
		return nil, ErrSessionNotActive
	}

	if timer.Expired(sess.StartedAt, s.now()) {
		return s.TimeoutSubmit(ctx, sessionID)
	}

	given := make(map[uuid.UUID]string, len(answers))
	timeSpent := make(map[uuid.UUID]int, len(answers))
	for _, a := range answers {
		given[a.QuestionID] = a.UserAnswer
		timeSpent[a.QuestionID] = a.TimeSpentSeconds
	}

	var (
		records []model.AnswerRecord
		rows    []repository.AnswerRow
	)
	switch sess.Mode {
	case model.TestModeFixed:
		questions, err := s.scorer.FetchForm(ctx, scoring.FormRequest{SessionID: sess.ID, UserID: userID})
		if err != nil {
			return nil, fmt.Errorf("fetch question set: %w", err)
		}
		st := session.Restore(sess.ID, sess.Mode, questions, &model.SavedProgress{Answers: given})
		if !session.AllAnswered(st) {
			return nil, ErrIncompleteAnswers
		}
		records, err = session.AnswerRecords(st, timeSpent)
		if err != nil {
			return nil, err
		}
		for i, q := range questions {
			rows = append(rows, repository.AnswerRow{
				SessionID:        sess.ID,
				QuestionID:       q.ID,
				Position:         i,
				UserAnswer:       given[q.ID],
				TimeSpentSeconds: timeSpent[q.ID],
			})
		}

	case model.TestModeAdaptive:
		if !sess.AdaptiveComplete {
			return nil, ErrIncompleteAnswers
		}
		for i, a := range answers {
			if a.UserAnswer == "" {
				continue
			}
			rec, err := model.NewAnswerRecord(a.QuestionID, a.UserAnswer, a.TimeSpentSeconds)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
			rows = append(rows, repository.AnswerRow{
				SessionID:        sess.ID,
				QuestionID:       a.QuestionID,
				Position:         i,
				UserAnswer:       a.UserAnswer,
				TimeSpentSeconds: a.TimeSpentSeconds,
			})
		}
	}

	if err := s.answers.UpsertBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("persist answers: %w", err)
	}

	result, err := s.scorer.Score(ctx, model.SubmissionPayload{
		SessionID:         sess.ID,
		TimeLimitExceeded: false,
		Answers:           records,
	})
	if err != nil {
		return nil, fmt.Errorf("score submission: %w", err)
	}
	s.fillResult(result, sess.ID)

	if err := s.results.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}

	if err := s.sessions.Complete(ctx, sess.ID, false, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race with the timeout path; its result is canonical.
			_ = s.snapshots.Clear(ctx, userID)
			return s.canonicalResult(ctx, sessionID)
		}
		return nil, fmt.Errorf("complete session: %w", err)
	}

	_ = s.snapshots.Clear(ctx, userID)
	return result, nil
}

// TimeoutSubmit submits whatever answers exist for a session whose clock
// ran out. It is safe to invoke from several places at once (the live
// channel, the entry resolver, the sweeper): the guard admits one attempt
// and everyone else reads the stored result.
func (s *SessionService) TimeoutSubmit(ctx context.Context, sessionID uuid.UUID) (*model.SubmittedTestResult, error) {
	key := config.CacheKey.TimeoutSubmitKey(sessionID.String())
	acquired, err := s.guard.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquire submit guard: %w", err)
	}
	if !acquired {
		result, rerr := s.results.GetBySession(ctx, sessionID)
		if rerr == nil {
			// Heal a half-finished attempt: the result may exist while the
			// status flip failed. Completing twice is a no-op.
			_ = s.sessions.Complete(ctx, sessionID, true, s.now())
			return result, nil
		}
		if errors.Is(rerr, pgx.ErrNoRows) {
			return nil, ErrSubmissionInFlight
		}
		return nil, fmt.Errorf("get result: %w", rerr)
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = s.guard.Release(ctx, key)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		_ = s.guard.Release(ctx, key)
		return nil, fmt.Errorf("get session: %w", err)
	}

	switch sess.Status {
	case model.SessionStatusCompleted:
		_ = s.snapshots.Clear(ctx, sess.UserID)
		return s.canonicalResult(ctx, sessionID)
	case model.SessionStatusAbandoned:
		_ = s.guard.Release(ctx, key)
		return nil, ErrSessionNotActive
	}

	records, rows := s.timeoutAnswers(ctx, sess)

	if len(rows) > 0 {
		// Durability mirror only; the scoring payload is already built.
		_ = s.answers.UpsertBatch(ctx, rows)
	}

	result, err := s.scorer.Score(ctx, model.SubmissionPayload{
		SessionID:         sessionID,
		TimeLimitExceeded: true,
		Answers:           records,
	})
	if err != nil {
		// Give the next invocation (sweeper, retry) a clean shot.
		_ = s.guard.Release(ctx, key)
		return nil, fmt.Errorf("score timed-out session: %w", err)
	}
	s.fillResult(result, sessionID)

	if err := s.results.Create(ctx, result); err != nil {
		_ = s.guard.Release(ctx, key)
		return nil, fmt.Errorf("store result: %w", err)
	}

	if err := s.sessions.Complete(ctx, sessionID, true, s.now()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = s.snapshots.Clear(ctx, sess.UserID)
			return s.canonicalResult(ctx, sessionID)
		}
		// The result row exists; a later invocation heals the status via
		// the not-acquired branch. Keep the guard so scoring never reruns.
		return nil, fmt.Errorf("complete session: %w", err)
	}

	_ = s.snapshots.Clear(ctx, sess.UserID)
	return result, nil
}

// State returns the lightweight resync view of the user's active session.
func (s *SessionService) State(ctx context.Context, userID, sessionID uuid.UUID) (*ProgressState, error) {
	saved, sess, err := s.loadActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess.ID != sessionID {
		return nil, ErrSessionNotFound
	}

	return &ProgressState{
		SessionID:        sess.ID,
		Answers:          saved.Answers,
		CurrentIndex:     saved.CurrentIndex,
		AnsweredCount:    saved.AnsweredCount(),
		RemainingSeconds: timer.RemainingAt(sess.StartedAt, s.now()).Seconds(),
	}, nil
}

// GetResult returns the scored result of one of the user's sessions.
func (s *SessionService) GetResult(ctx context.Context, userID, sessionID uuid.UUID) (*model.SubmittedTestResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != userID {
		return nil, ErrNotSessionOwner
	}

	result, err := s.results.GetBySession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// SweepOverdue timeout-submits every in-progress session whose ceiling has
// passed. Returns how many sessions were submitted; per-session failures
// are joined so one bad session never stalls the sweep.
func (s *SessionService) SweepOverdue(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-timer.SessionDuration)
	overdue, err := s.sessions.ListOverdue(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list overdue sessions: %w", err)
	}

	var (
		submitted int
		errs      []error
	)
	for _, sess := range overdue {
		if _, err := s.TimeoutSubmit(ctx, sess.ID); err != nil {
			if errors.Is(err, ErrSubmissionInFlight) {
				continue
			}
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}
		submitted++
	}
	return submitted, errors.Join(errs...)
}

// loadActive resolves the user's active session through the snapshot with
// a database fallback, mirroring the cache-first read used everywhere else.
func (s *SessionService) loadActive(ctx context.Context, userID uuid.UUID) (*model.SavedProgress, *model.TestSession, error) {
	saved, err := s.snapshots.Load(ctx, userID)
	if err == nil {
		sess, gerr := s.sessions.GetByID(ctx, saved.SessionID)
		if errors.Is(gerr, pgx.ErrNoRows) {
			_ = s.snapshots.Clear(ctx, userID)
			return nil, nil, ErrSessionNotFound
		}
		if gerr != nil {
			return nil, nil, fmt.Errorf("get session: %w", gerr)
		}
		if sess.UserID != userID {
			return nil, nil, ErrNotSessionOwner
		}
		if sess.Status.IsTerminal() {
			_ = s.snapshots.Clear(ctx, userID)
			return nil, nil, ErrSessionNotActive
		}
		return saved, sess, nil
	}
	if !errors.Is(err, progress.ErrNotFound) {
		return nil, nil, fmt.Errorf("load saved progress: %w", err)
	}

	sess, err := s.sessions.GetActiveByUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get active session: %w", err)
	}

	rows, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list answers: %w", err)
	}
	answers := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		answers[row.QuestionID] = row.UserAnswer
	}
	return &model.SavedProgress{
		SessionID: sess.ID,
		StartedAt: sess.StartedAt,
		Answers:   answers,
	}, sess, nil
}

// timeoutAnswers gathers whatever answers exist for a timed-out session,
// preferring the snapshot and falling back to the persisted rows. Partial
// sets, including none at all, are valid here.
func (s *SessionService) timeoutAnswers(ctx context.Context, sess *model.TestSession) ([]model.AnswerRecord, []repository.AnswerRow) {
	saved, err := s.snapshots.Load(ctx, sess.UserID)
	if err == nil && saved.SessionID == sess.ID {
		records := make([]model.AnswerRecord, 0, len(saved.Answers))
		for id, answer := range saved.Answers {
			if answer != "" {
				records = append(records, model.AnswerRecord{QuestionID: id, UserAnswer: answer})
			}
		}
		return records, answerRows(sess.ID, saved.Answers)
	}

	rows, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, nil
	}
	records := make([]model.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		if row.UserAnswer == "" {
			continue
		}
		records = append(records, model.AnswerRecord{
			QuestionID:       row.QuestionID,
			UserAnswer:       row.UserAnswer,
			TimeSpentSeconds: row.TimeSpentSeconds,
		})
	}
	return records, nil
}

// canonicalResult reads the stored result for a session that some path has
// already completed.
func (s *SessionService) canonicalResult(ctx context.Context, sessionID uuid.UUID) (*model.SubmittedTestResult, error) {
	result, err := s.results.GetBySession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// fillResult backstops fields the engine may omit from its response.
func (s *SessionService) fillResult(result *model.SubmittedTestResult, sessionID uuid.UUID) {
	if result.TestSessionID == uuid.Nil {
		result.TestSessionID = sessionID
	}
	if result.ScoredAt.IsZero() {
		result.ScoredAt = s.now()
	}
}

func answerRows(sessionID uuid.UUID, answers map[uuid.UUID]string) []repository.AnswerRow {
	rows := make([]repository.AnswerRow, 0, len(answers))
	for id, answer := range answers {
		if answer == "" {
			continue
		}
		rows = append(rows, repository.AnswerRow{
			SessionID:  sessionID,
			QuestionID: id,
			UserAnswer: answer,
		})
	}
	return rows
}
