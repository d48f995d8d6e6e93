package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRow is the persisted form of a single response within a session.
type AnswerRow struct {
	SessionID        uuid.UUID `json:"session_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	Position         int       `json:"position"`
	UserAnswer       string    `json:"user_answer"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// AnswerRepository handles per-question answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Upsert writes a single answer, replacing any earlier response to the same
// question within the session.
func (r *AnswerRepository) Upsert(ctx context.Context, row AnswerRow) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, position, user_answer, time_spent_seconds)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET user_answer = EXCLUDED.user_answer,
		               time_spent_seconds = EXCLUDED.time_spent_seconds,
		               updated_at = now()`,
		row.SessionID, row.QuestionID, row.Position, row.UserAnswer, row.TimeSpentSeconds)
	return err
}

// UpsertBatch writes a batch of answers in one statement via array unnest.
// Later entries for the same (session, question) pair win, matching the
// replace-on-rewrite semantics of Upsert.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, rows []AnswerRow) error {
	if len(rows) == 0 {
		return nil
	}

	// Collapse duplicates first: ON CONFLICT cannot see two inserts for the
	// same key inside a single statement.
	latest := make(map[[2]uuid.UUID]AnswerRow, len(rows))
	order := make([][2]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		key := [2]uuid.UUID{row.SessionID, row.QuestionID}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = row
	}

	sessionIDs := make([]uuid.UUID, 0, len(order))
	questionIDs := make([]uuid.UUID, 0, len(order))
	positions := make([]int, 0, len(order))
	answers := make([]string, 0, len(order))
	timeSpent := make([]int, 0, len(order))
	for _, key := range order {
		row := latest[key]
		sessionIDs = append(sessionIDs, row.SessionID)
		questionIDs = append(questionIDs, row.QuestionID)
		positions = append(positions, row.Position)
		answers = append(answers, row.UserAnswer)
		timeSpent = append(timeSpent, row.TimeSpentSeconds)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_answers (session_id, question_id, position, user_answer, time_spent_seconds)
		 SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::int[], $4::text[], $5::int[])
		 ON CONFLICT (session_id, question_id)
		 DO UPDATE SET user_answer = EXCLUDED.user_answer,
		               time_spent_seconds = EXCLUDED.time_spent_seconds,
		               updated_at = now()`,
		sessionIDs, questionIDs, positions, answers, timeSpent)
	return err
}

// ListBySession retrieves a session's answers in presentation order.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]AnswerRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, position, user_answer, time_spent_seconds
		 FROM session_answers WHERE session_id = $1 ORDER BY position ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []AnswerRow
	for rows.Next() {
		var a AnswerRow
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Position, &a.UserAnswer, &a.TimeSpentSeconds); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// DeleteBySession removes all answers recorded for a session.
func (r *AnswerRepository) DeleteBySession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_answers WHERE session_id = $1`, sessionID)
	return err
}
