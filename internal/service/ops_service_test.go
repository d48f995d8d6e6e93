package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResultLister struct {
	records []repository.ResultRecord
	filters []repository.ResultFilter
	err     error
}

func (f *fakeResultLister) List(_ context.Context, filter repository.ResultFilter) ([]repository.ResultRecord, int, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, 0, f.err
	}
	start := (filter.Page - 1) * filter.PerPage
	if start >= len(f.records) {
		return nil, len(f.records), nil
	}
	end := start + filter.PerPage
	if end > len(f.records) {
		end = len(f.records)
	}
	return f.records[start:end], len(f.records), nil
}

type fakeActiveLister struct {
	sessions []model.TestSession
	err      error
}

func (f *fakeActiveLister) ListActive(_ context.Context) ([]model.TestSession, error) {
	return f.sessions, f.err
}

func scoredRecords(n int) []repository.ResultRecord {
	out := make([]repository.ResultRecord, n)
	for i := range out {
		out[i] = repository.ResultRecord{
			UserID: uuid.New(),
			Mode:   model.TestModeFixed,
			Result: model.SubmittedTestResult{TestSessionID: uuid.New(), IQScore: 100 + i},
		}
	}
	return out
}

func TestListResultsNormalizesPagination(t *testing.T) {
	lister := &fakeResultLister{records: scoredRecords(45)}
	svc := NewOpsService(&fakeActiveLister{}, lister)

	records, pagination, err := svc.ListResults(context.Background(), repository.ResultFilter{Page: 0, PerPage: 0})
	require.NoError(t, err)

	require.Len(t, lister.filters, 1)
	assert.Equal(t, 1, lister.filters[0].Page)
	assert.Equal(t, 20, lister.filters[0].PerPage)

	assert.Len(t, records, 20)
	assert.Equal(t, 45, pagination.TotalItems)
	assert.Equal(t, 3, pagination.TotalPages)
}

func TestListResultsCapsPerPage(t *testing.T) {
	lister := &fakeResultLister{records: scoredRecords(5)}
	svc := NewOpsService(&fakeActiveLister{}, lister)

	_, pagination, err := svc.ListResults(context.Background(), repository.ResultFilter{Page: 1, PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, pagination.PerPage)
}

func TestListResultsEmptyPageIsNotNil(t *testing.T) {
	svc := NewOpsService(&fakeActiveLister{}, &fakeResultLister{})

	records, pagination, err := svc.ListResults(context.Background(), repository.ResultFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	require.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, 0, pagination.TotalItems)
	assert.Equal(t, 0, pagination.TotalPages)
}

func TestListResultsPropagatesError(t *testing.T) {
	lister := &fakeResultLister{err: errors.New("db down")}
	svc := NewOpsService(&fakeActiveLister{}, lister)

	_, _, err := svc.ListResults(context.Background(), repository.ResultFilter{})
	assert.Error(t, err)
}

func TestExportResultsWalksEveryPage(t *testing.T) {
	lister := &fakeResultLister{records: scoredRecords(250)}
	svc := NewOpsService(&fakeActiveLister{}, lister)

	all, err := svc.ExportResults(context.Background(), repository.ResultFilter{Page: 7, PerPage: 3})
	require.NoError(t, err)

	assert.Len(t, all, 250)
	require.Len(t, lister.filters, 3, "250 records at 100 per page")
	for i, filter := range lister.filters {
		assert.Equal(t, i+1, filter.Page)
		assert.Equal(t, 100, filter.PerPage, "export ignores the caller's page size")
	}
}

func TestListActiveSessionsReportsClock(t *testing.T) {
	now := time.Date(2026, 5, 11, 14, 0, 0, 0, time.UTC)
	running := model.TestSession{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Mode:      model.TestModeFixed,
		Status:    model.SessionStatusInProgress,
		StartedAt: now.Add(-10 * time.Minute),
	}
	overdue := model.TestSession{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Mode:      model.TestModeAdaptive,
		Status:    model.SessionStatusInProgress,
		StartedAt: now.Add(-31 * time.Minute),
	}

	svc := NewOpsService(&fakeActiveLister{sessions: []model.TestSession{running, overdue}}, &fakeResultLister{})
	svc.now = func() time.Time { return now }

	views, err := svc.ListActiveSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, running.ID, views[0].Session.ID)
	assert.InDelta(t, 1200, views[0].RemainingSeconds, 0.001)
	assert.False(t, views[0].Overdue)

	assert.Equal(t, overdue.ID, views[1].Session.ID)
	assert.Zero(t, views[1].RemainingSeconds, "remaining time clamps at zero")
	assert.True(t, views[1].Overdue)
}
