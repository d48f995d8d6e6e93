package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrActiveSessionExists is returned by Create when the user already holds
// an in-progress session.
var ErrActiveSessionExists = errors.New("user already has an active session")

const sessionColumns = `id, user_id, mode, status, started_at, completed_at,
	time_limit_exceeded, question_count, adaptive_complete, created_at, updated_at`

// SessionRepository handles test session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := row.Scan(&s.ID, &s.UserID, &s.Mode, &s.Status, &s.StartedAt, &s.CompletedAt,
		&s.TimeLimitExceeded, &s.QuestionCount, &s.AdaptiveComplete, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new in-progress session. The partial unique index on
// (user_id) WHERE status = 'in_progress' makes a second active session a
// conflict, reported as ErrActiveSessionExists.
func (r *SessionRepository) Create(ctx context.Context, userID uuid.UUID, mode model.TestMode) (*model.TestSession, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (user_id, mode, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING `+sessionColumns,
		userID, mode, model.SessionStatusInProgress)

	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrActiveSessionExists
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions WHERE id = $1`, id))
}

// GetActiveByUser retrieves the user's in-progress session, if any.
func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE user_id = $1 AND status = $2`, userID, model.SessionStatusInProgress))
}

// Complete transitions an in-progress session to completed. The status
// predicate makes the transition single-shot: a session already terminal
// reports pgx.ErrNoRows and is never mutated again.
func (r *SessionRepository) Complete(ctx context.Context, id uuid.UUID, timeLimitExceeded bool, completedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1, completed_at = $2, time_limit_exceeded = $3, updated_at = now()
		 WHERE id = $4 AND status = $5`,
		model.SessionStatusCompleted, completedAt, timeLimitExceeded, id, model.SessionStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Abandon transitions an in-progress session to abandoned. Abandoned
// sessions never carry a completion timestamp.
func (r *SessionRepository) Abandon(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1, updated_at = now()
		 WHERE id = $2 AND status = $3`,
		model.SessionStatusAbandoned, id, model.SessionStatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetQuestionCount records the size of a fixed-form question set.
func (r *SessionRepository) SetQuestionCount(ctx context.Context, id uuid.UUID, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET question_count = $1, updated_at = now() WHERE id = $2`,
		count, id)
	return err
}

// IncrementQuestionCount bumps the delivered-question counter of an
// adaptive session.
func (r *SessionRepository) IncrementQuestionCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET question_count = question_count + 1, updated_at = now() WHERE id = $1`,
		id)
	return err
}

// SetAdaptiveComplete records that the engine has converged for this
// session, which permits a normal submission with the answers so far.
func (r *SessionRepository) SetAdaptiveComplete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET adaptive_complete = TRUE, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, model.SessionStatusInProgress)
	return err
}

// ListActive retrieves all in-progress sessions, newest first.
func (r *SessionRepository) ListActive(ctx context.Context) ([]model.TestSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE status = $1 ORDER BY started_at DESC`, model.SessionStatusInProgress)
}

// ListOverdue retrieves in-progress sessions whose start timestamp is at or
// before the cutoff. The expiry sweeper feeds these into the timeout path.
func (r *SessionRepository) ListOverdue(ctx context.Context, cutoff time.Time) ([]model.TestSession, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions
		 WHERE status = $1 AND started_at <= $2 ORDER BY started_at ASC`,
		model.SessionStatusInProgress, cutoff)
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}
