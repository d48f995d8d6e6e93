package service

import (
	"context"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/gioe/aiq-sub010/internal/response"
	"github.com/gioe/aiq-sub010/internal/timer"
)

// ActiveSessionView is one in-progress session as shown on the ops overview.
type ActiveSessionView struct {
	Session          model.TestSession `json:"session"`
	RemainingSeconds float64           `json:"remaining_seconds"`
	Overdue          bool              `json:"overdue"`
}

// ResultLister is the filtered result read surface.
// *repository.ResultRepository satisfies it.
type ResultLister interface {
	List(ctx context.Context, filter repository.ResultFilter) ([]repository.ResultRecord, int, error)
}

// ActiveSessionLister reports every in-progress session.
// *repository.SessionRepository satisfies it.
type ActiveSessionLister interface {
	ListActive(ctx context.Context) ([]model.TestSession, error)
}

// OpsService handles the operator-facing read surface: result listings, the
// export feed, and the live session overview.
type OpsService struct {
	sessions ActiveSessionLister
	results  ResultLister
	now      func() time.Time
}

// NewOpsService creates a new OpsService.
func NewOpsService(sessions ActiveSessionLister, results ResultLister) *OpsService {
	return &OpsService{sessions: sessions, results: results, now: time.Now}
}

// ListResults retrieves scored results matching the filter with pagination,
// newest first.
func (s *OpsService) ListResults(ctx context.Context, filter repository.ResultFilter) ([]repository.ResultRecord, *response.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	records, total, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	if records == nil {
		records = []repository.ResultRecord{}
	}

	totalPages := (total + filter.PerPage - 1) / filter.PerPage

	pagination := &response.Pagination{
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return records, pagination, nil
}

// ExportResults walks every page of the filtered listing so the export
// covers the full match set rather than a single page.
func (s *OpsService) ExportResults(ctx context.Context, filter repository.ResultFilter) ([]repository.ResultRecord, error) {
	filter.Page = 1
	filter.PerPage = 100

	var all []repository.ResultRecord
	for {
		records, total, err := s.results.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if len(records) == 0 || len(all) >= total {
			break
		}
		filter.Page++
	}

	return all, nil
}

// ListActiveSessions reports every in-progress session with its remaining
// time. A session past the ceiling shows as overdue until the expiry sweeper
// submits it.
func (s *OpsService) ListActiveSessions(ctx context.Context) ([]ActiveSessionView, error) {
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]ActiveSessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, ActiveSessionView{
			Session:          sess,
			RemainingSeconds: timer.RemainingAt(sess.StartedAt, now).Seconds(),
			Overdue:          timer.Expired(sess.StartedAt, now),
		})
	}

	return views, nil
}
