package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var sqlBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ResultRecord pairs a scored result with the session context needed for
// listings and exports.
type ResultRecord struct {
	Result model.SubmittedTestResult `json:"result"`
	UserID uuid.UUID                 `json:"user_id"`
	Mode   model.TestMode            `json:"mode"`
}

// ResultFilter narrows result listings. Nil fields are ignored.
type ResultFilter struct {
	UserID            *uuid.UUID
	Mode              model.TestMode
	MinScore          *int
	MaxScore          *int
	From              *time.Time
	To                *time.Time
	TimeLimitExceeded *bool
	Page              int
	PerPage           int
}

// ResultRepository handles scored result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create stores a scored result. The first writer for a session wins; a
// concurrent second store is silently skipped so callers can fall back to
// reading the canonical row.
func (r *ResultRepository) Create(ctx context.Context, result *model.SubmittedTestResult) error {
	domainScores, err := json.Marshal(result.DomainScores)
	if err != nil {
		return err
	}
	flags, err := json.Marshal(result.ResponseTimeFlags)
	if err != nil {
		return err
	}
	var interval []byte
	if result.ConfidenceInterval != nil {
		interval, err = json.Marshal(result.ConfidenceInterval)
		if err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO test_results (session_id, iq_score, accuracy_percentage, correct_answers,
		    total_questions, percentile_rank, domain_scores, confidence_interval,
		    strongest_domain, weakest_domain, response_time_flags, scored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (session_id) DO NOTHING`,
		result.TestSessionID, result.IQScore, result.AccuracyPercentage, result.CorrectAnswers,
		result.TotalQuestions, result.PercentileRank, domainScores, interval,
		domainAsString(result.StrongestDomain), domainAsString(result.WeakestDomain),
		flags, result.ScoredAt)
	return err
}

// GetBySession retrieves the result scored for a session.
func (r *ResultRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.SubmittedTestResult, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT session_id, iq_score, accuracy_percentage, correct_answers, total_questions,
		    percentile_rank, domain_scores, confidence_interval, strongest_domain,
		    weakest_domain, response_time_flags, scored_at
		 FROM test_results WHERE session_id = $1`, sessionID)
	result, err := scanResult(row)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List retrieves scored results matching the filter, newest first, along
// with the unpaginated total.
func (r *ResultRepository) List(ctx context.Context, filter ResultFilter) ([]ResultRecord, int, error) {
	base := sqlBuilder.
		Select().
		From("test_results tr").
		Join("test_sessions ts ON ts.id = tr.session_id")

	if filter.UserID != nil {
		base = base.Where(squirrel.Eq{"ts.user_id": *filter.UserID})
	}
	if filter.Mode != "" {
		base = base.Where(squirrel.Eq{"ts.mode": filter.Mode})
	}
	if filter.MinScore != nil {
		base = base.Where(squirrel.GtOrEq{"tr.iq_score": *filter.MinScore})
	}
	if filter.MaxScore != nil {
		base = base.Where(squirrel.LtOrEq{"tr.iq_score": *filter.MaxScore})
	}
	if filter.From != nil {
		base = base.Where(squirrel.GtOrEq{"tr.scored_at": *filter.From})
	}
	if filter.To != nil {
		base = base.Where(squirrel.LtOrEq{"tr.scored_at": *filter.To})
	}
	if filter.TimeLimitExceeded != nil {
		base = base.Where(squirrel.Eq{"ts.time_limit_exceeded": *filter.TimeLimitExceeded})
	}

	countSQL, countArgs, err := base.Column("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	listSQL, listArgs, err := base.
		Columns(`tr.session_id, tr.iq_score, tr.accuracy_percentage, tr.correct_answers,
			tr.total_questions, tr.percentile_rank, tr.domain_scores, tr.confidence_interval,
			tr.strongest_domain, tr.weakest_domain, tr.response_time_flags, tr.scored_at,
			ts.user_id, ts.mode`).
		OrderBy("tr.scored_at DESC").
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		rec, err := scanResultRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func scanResult(row pgx.Row) (*model.SubmittedTestResult, error) {
	var (
		result             model.SubmittedTestResult
		domainScores       []byte
		interval           []byte
		flags              []byte
		strongest, weakest *string
	)
	err := row.Scan(&result.TestSessionID, &result.IQScore, &result.AccuracyPercentage,
		&result.CorrectAnswers, &result.TotalQuestions, &result.PercentileRank,
		&domainScores, &interval, &strongest, &weakest, &flags, &result.ScoredAt)
	if err != nil {
		return nil, err
	}
	if err := hydrateResult(&result, domainScores, interval, flags, strongest, weakest); err != nil {
		return nil, err
	}
	return &result, nil
}

func scanResultRecord(rows pgx.Rows) (ResultRecord, error) {
	var (
		rec                ResultRecord
		domainScores       []byte
		interval           []byte
		flags              []byte
		strongest, weakest *string
	)
	err := rows.Scan(&rec.Result.TestSessionID, &rec.Result.IQScore, &rec.Result.AccuracyPercentage,
		&rec.Result.CorrectAnswers, &rec.Result.TotalQuestions, &rec.Result.PercentileRank,
		&domainScores, &interval, &strongest, &weakest, &flags, &rec.Result.ScoredAt,
		&rec.UserID, &rec.Mode)
	if err != nil {
		return ResultRecord{}, err
	}
	if err := hydrateResult(&rec.Result, domainScores, interval, flags, strongest, weakest); err != nil {
		return ResultRecord{}, err
	}
	return rec, nil
}

func hydrateResult(result *model.SubmittedTestResult, domainScores, interval, flags []byte, strongest, weakest *string) error {
	if len(domainScores) > 0 {
		if err := json.Unmarshal(domainScores, &result.DomainScores); err != nil {
			return err
		}
	}
	if len(interval) > 0 {
		result.ConfidenceInterval = &model.ConfidenceInterval{}
		if err := json.Unmarshal(interval, result.ConfidenceInterval); err != nil {
			return err
		}
	}
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &result.ResponseTimeFlags); err != nil {
			return err
		}
	}
	result.StrongestDomain = domainFromString(strongest)
	result.WeakestDomain = domainFromString(weakest)
	return nil
}

func domainAsString(d *model.QuestionType) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func domainFromString(s *string) *model.QuestionType {
	if s == nil {
		return nil
	}
	d := model.QuestionType(*s)
	return &d
}
