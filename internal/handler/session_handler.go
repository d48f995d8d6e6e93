package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gioe/aiq-sub010/internal/middleware"
	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/response"
	"github.com/gioe/aiq-sub010/internal/scoring"
	"github.com/gioe/aiq-sub010/internal/service"
	"github.com/gioe/aiq-sub010/internal/validator"
	"github.com/google/uuid"
)

// SessionHandler handles the participant-facing test session endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Enter godoc
// POST /api/v1/sessions/enter
// Resolves what the client should see when opening the test screen: a fresh
// session, a resume offer, a conflict prompt, or the result of an expired
// attempt that was submitted on the spot.
func (h *SessionHandler) Enter(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	decision, err := h.sessionService.Enter(c.Request.Context(), claims.UserID, model.TestMode(req.Mode))
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, decision)
}

// Start godoc
// POST /api/v1/sessions
// Creates a new session outright. Fails with a conflict when another session
// is already in progress.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.sessionService.StartNew(c.Request.Context(), claims.UserID, model.TestMode(req.Mode))
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// Resume godoc
// POST /api/v1/sessions/:session_id/resume
// Rebuilds the session view from saved progress, falling back to the
// server-side answer copy when the snapshot is gone.
func (h *SessionHandler) Resume(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.sessionService.Resume(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// AbandonAndStart godoc
// POST /api/v1/sessions/:session_id/abandon-and-new
// Discards the conflicting session and starts a fresh one in a single step.
func (h *SessionHandler) AbandonAndStart(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AbandonAndStartRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.sessionService.AbandonAndStartNew(c.Request.Context(), claims.UserID, sessionID, model.TestMode(req.Mode))
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// Abandon godoc
// POST /api/v1/sessions/:session_id/abandon
// Discards the session and all saved progress. No result is produced.
func (h *SessionHandler) Abandon(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.Abandon(c.Request.Context(), claims.UserID, sessionID); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SaveProgress godoc
// PUT /api/v1/sessions/:session_id/progress
// Persists the current answers and cursor so the session survives a page
// reload. Rejected once the session window has elapsed.
func (h *SessionHandler) SaveProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SaveProgressRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	answers := make(map[uuid.UUID]string, len(req.Answers))
	for key, answer := range req.Answers {
		questionID, err := uuid.Parse(key)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		answers[questionID] = answer
	}

	if err := h.sessionService.SaveProgress(c.Request.Context(), claims.UserID, sessionID, answers, req.CurrentIndex); err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"saved_at": time.Now().UTC()})
}

// State godoc
// GET /api/v1/sessions/:session_id
// Returns the lightweight resync view: answers, cursor, and remaining time,
// without question bodies. Covers the page-reload case.
func (h *SessionHandler) State(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// NextQuestion godoc
// POST /api/v1/sessions/:session_id/next-question
// Asks the adaptive engine for the next item. done=true signals convergence;
// the client should submit.
func (h *SessionHandler) NextQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	question, done, err := h.sessionService.NextQuestion(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": question, "done": done})
}

// Submit godoc
// POST /api/v1/sessions/:session_id/submit
// Scores the attempt. Requires every question answered (fixed mode) or
// engine convergence (adaptive mode); an expired session reroutes to the
// timeout path and returns the partial-credit result.
func (h *SessionHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), claims.UserID, sessionID, req.Answers)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetResult godoc
// GET /api/v1/results/:session_id
// Returns the scored result of one of the caller's sessions.
func (h *SessionHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// failSessionError maps session service sentinels onto HTTP statuses. Every
// session endpoint funnels through here so the same failure always wears the
// same status and code.
func failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrActiveSessionConflict):
		response.Fail(c, http.StatusConflict, response.ErrActiveSessionConflict)
	case errors.Is(err, service.ErrNotSessionOwner):
		// Hides other users' sessions instead of confirming they exist.
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
	case errors.Is(err, service.ErrSessionNotActive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrNotAdaptive):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
	case errors.Is(err, service.ErrIncompleteAnswers):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrIncompleteAnswers)
	case errors.Is(err, service.ErrSubmissionInFlight):
		response.Fail(c, http.StatusConflict, response.ErrSubmissionInFlight)
	case errors.Is(err, service.ErrResultNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrResultNotFound)
	case scoring.Retryable(err):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUpstreamUnavailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
