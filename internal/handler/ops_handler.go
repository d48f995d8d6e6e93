package handler

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gioe/aiq-sub010/internal/export"
	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/repository"
	"github.com/gioe/aiq-sub010/internal/response"
	"github.com/gioe/aiq-sub010/internal/service"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// OpsHandler handles the operator read surface behind the ops key.
type OpsHandler struct {
	opsService *service.OpsService
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(opsService *service.OpsService) *OpsHandler {
	return &OpsHandler{opsService: opsService}
}

// ListResults godoc
// GET /ops/results
// Lists scored results with pagination, filtered by user, mode, score range,
// scoring window, and the time-limit flag.
func (h *OpsHandler) ListResults(c *gin.Context) {
	filter, ok := parseResultFilter(c)
	if !ok {
		return
	}

	records, pagination, err := h.opsService.ListResults(c.Request.Context(), filter)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": records}, pagination)
}

// ExportResults godoc
// GET /ops/results/export
// Streams the filtered result set as an XLSX workbook. Accepts the same
// filters as the listing; pagination does not apply.
func (h *OpsHandler) ExportResults(c *gin.Context) {
	filter, ok := parseResultFilter(c)
	if !ok {
		return
	}

	records, err := h.opsService.ExportResults(c.Request.Context(), filter)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Built in memory so a mid-write failure can still produce a clean
	// error response instead of a truncated download.
	var buf bytes.Buffer
	if err := export.WriteResults(&buf, records); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	filename := "results-" + time.Now().UTC().Format("2006-01-02") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListActiveSessions godoc
// GET /ops/sessions/active
// Lists every in-progress session with its remaining time.
func (h *OpsHandler) ListActiveSessions(c *gin.Context) {
	sessions, err := h.opsService.ListActiveSessions(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// parseResultFilter reads the result-listing filters from the query string.
// On a malformed value it writes the 400 response and reports false.
func parseResultFilter(c *gin.Context) (repository.ResultFilter, bool) {
	var filter repository.ResultFilter

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))

	if s := c.Query("user_id"); s != "" {
		userID, err := uuid.Parse(s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return filter, false
		}
		filter.UserID = &userID
	}

	if s := c.Query("mode"); s != "" {
		mode := model.TestMode(s)
		if mode != model.TestModeFixed && mode != model.TestModeAdaptive {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return filter, false
		}
		filter.Mode = mode
	}

	if s := c.Query("min_score"); s != "" {
		score, err := strconv.Atoi(s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return filter, false
		}
		filter.MinScore = &score
	}

	if s := c.Query("max_score"); s != "" {
		score, err := strconv.Atoi(s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return filter, false
		}
		filter.MaxScore = &score
	}

	if s := c.Query("from"); s != "" {
		from, err := parseFilterTime(s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return filter, false
		}
		filter.From = &from
	}

	if s := c.Query("to"); s != "" {
		to, err := parseFilterTime(s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return filter, false
		}
		filter.To = &to
	}

	if s := c.Query("time_limit_exceeded"); s != "" {
		tle, err := strconv.ParseBool(s)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return filter, false
		}
		filter.TimeLimitExceeded = &tle
	}

	return filter, true
}

// parseFilterTime accepts RFC 3339 timestamps or bare dates. A bare date
// means midnight UTC of that day.
func parseFilterTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
