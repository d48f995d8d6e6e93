package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gioe/aiq-sub010/internal/middleware"
	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/response"
	"github.com/gioe/aiq-sub010/internal/scoring"
	"github.com/gioe/aiq-sub010/internal/service"
	"github.com/gioe/aiq-sub010/internal/session"
	"github.com/gioe/aiq-sub010/internal/timer"
	ws "github.com/gioe/aiq-sub010/internal/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// LiveHandler drives an active test session over a WebSocket: full state
// replay on connect, per-answer autosave, the 1 Hz countdown, and both
// submission paths.
type LiveHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "live_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/sessions/:session_id
// Upgrades to WebSocket and attaches to the caller's session. The server
// pushes the full state, then ticks the countdown at 1 Hz; the client sends
// answers, navigation, and lifecycle actions.
func (h *LiveHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	userID := claims.UserID

	active, err := h.sessionService.Resume(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeResumeError(conn, err)
		return
	}

	lc := &liveConn{
		conn:      conn,
		svc:       h.sessionService,
		userID:    userID,
		sessionID: sessionID,
		log: h.log.With().
			Str("user_id", userID.String()).
			Str("session_id", sessionID.String()).
			Logger(),
		state: session.Restore(active.Session.ID, active.Session.Mode, active.Questions, &model.SavedProgress{
			Answers:      active.Answers,
			CurrentIndex: active.CurrentIndex,
		}),
	}
	lc.countdown = timer.New(timer.Callbacks{
		OnTick:    lc.onTick,
		OnWarning: lc.onWarning,
		OnExpired: lc.onExpired,
	})
	defer lc.countdown.Stop()

	lc.sendState(active.Session, active.RemainingSeconds)
	lc.log.Info().Msg("Participant connected")

	if !lc.countdown.StartWithSessionTime(active.Session.StartedAt) {
		// The window closed between the resume check and the countdown
		// anchor. The expiry path still owns the submission.
		lc.onExpired()
		return
	}

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lc.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				lc.log.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAnswer:
			lc.handleAnswer(&msg)
		case ws.ActionNavigate:
			lc.handleNavigate(&msg)
		case ws.ActionNextQuestion:
			lc.handleNextQuestion()
		case ws.ActionSave:
			lc.handleSave()
		case ws.ActionSubmit:
			lc.handleSubmit(&msg)
		case ws.ActionAbandon:
			lc.handleAbandon()
		case ws.ActionPing:
			lc.send(ws.PongResponse{Event: ws.EventPong})
		default:
			lc.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			lc.sendError(response.ErrInvalidPayload, "unknown action: "+string(msg.Action))
		}
	}
}

// writeResumeError maps a resume failure onto the wire before the connection
// ever gets a state frame.
func writeResumeError(conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNotSessionOwner):
		ws.WriteError(conn, string(response.ErrSessionNotFound), "no such session; start one over HTTP first")
	case errors.Is(err, service.ErrSessionExpired):
		// Resume already ran the timeout submission. The scored result is
		// waiting on the HTTP surface.
		_ = ws.WriteTyped(conn, ws.ExpiredResponse{Event: ws.EventExpired})
		ws.WriteError(conn, string(response.ErrSessionExpired), "session expired and was submitted; fetch the result over HTTP")
	case errors.Is(err, service.ErrSessionNotActive):
		ws.WriteError(conn, string(response.ErrSessionNotActive), response.GetMessage(response.ErrSessionNotActive))
	case scoring.Retryable(err):
		ws.WriteError(conn, string(response.ErrUpstreamUnavailable), response.GetMessage(response.ErrUpstreamUnavailable))
	default:
		ws.WriteError(conn, string(response.ErrInternal), response.GetMessage(response.ErrInternal))
	}
}

// liveConn is one participant's live channel. The read loop and the
// countdown goroutine both touch it, so the in-flight state lives behind mu
// and every outgoing frame goes out under writeMu.
type liveConn struct {
	conn      *websocket.Conn
	svc       *service.SessionService
	userID    uuid.UUID
	sessionID uuid.UUID
	log       zerolog.Logger

	countdown *timer.Countdown

	writeMu sync.Mutex

	mu       sync.Mutex
	state    session.State
	finished bool
}

func (lc *liveConn) send(v interface{}) {
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()
	if err := ws.WriteTyped(lc.conn, v); err != nil {
		lc.log.Debug().Err(err).Msg("Write failed")
	}
}

func (lc *liveConn) sendError(code response.ErrCode, message string) {
	if message == "" {
		message = response.GetMessage(code)
	}
	lc.send(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Message: message})
}

func (lc *liveConn) sendState(sess *model.TestSession, remainingSeconds float64) {
	lc.mu.Lock()
	st := lc.state
	lc.mu.Unlock()

	answers := make(map[string]string, len(st.Answers))
	for id, a := range st.Answers {
		if a != "" {
			answers[id.String()] = a
		}
	}
	lc.send(ws.StateResponse{
		Event:            ws.EventState,
		SessionID:        sess.ID.String(),
		Mode:             string(sess.Mode),
		Questions:        st.Questions,
		Answers:          answers,
		CurrentIndex:     st.Current,
		AnsweredCount:    session.AnsweredCount(st),
		RemainingSeconds: remainingSeconds,
	})
}

// closeConn sends a normal close frame and tears the socket down, which
// unblocks the read loop.
func (lc *liveConn) closeConn() {
	lc.writeMu.Lock()
	_ = lc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	lc.writeMu.Unlock()
	_ = lc.conn.Close()
}

// progressLocked copies the resumable subset of the state. Callers hold mu.
func (lc *liveConn) progressLocked() (map[uuid.UUID]string, int) {
	answers := make(map[uuid.UUID]string, len(lc.state.Answers))
	for id, a := range lc.state.Answers {
		if a != "" {
			answers[id] = a
		}
	}
	return answers, lc.state.Current
}

// persist pushes the given progress through the autosave path and
// acknowledges it.
func (lc *liveConn) persist(answers map[uuid.UUID]string, index int) {
	err := lc.svc.SaveProgress(context.Background(), lc.userID, lc.sessionID, answers, index)
	switch {
	case err == nil:
		lc.send(ws.SavedResponse{Event: ws.EventSaved, SavedAt: time.Now().UTC().Format(time.RFC3339)})
	case errors.Is(err, service.ErrSessionExpired):
		lc.sendError(response.ErrSessionExpired, "")
	case errors.Is(err, service.ErrSessionNotFound):
		lc.sendError(response.ErrSessionNotFound, "")
	default:
		lc.log.Error().Err(err).Msg("Save progress failed")
		lc.sendError(response.ErrInternal, "save failed")
	}
}

func (lc *liveConn) handleAnswer(msg *ws.RequestEnvelope) {
	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		lc.sendError(response.ErrInvalidID, "invalid q_id format")
		return
	}

	lc.mu.Lock()
	if lc.finished {
		lc.mu.Unlock()
		lc.sendError(response.ErrSessionNotActive, "")
		return
	}
	if lc.state.Locked {
		lc.mu.Unlock()
		lc.sendError(response.ErrAnswersLocked, "")
		return
	}
	lc.state = session.Reduce(lc.state, session.AnswerSet{QuestionID: questionID, Answer: msg.Answer})
	answers, index := lc.progressLocked()
	lc.mu.Unlock()

	lc.persist(answers, index)
}

func (lc *liveConn) handleNavigate(msg *ws.RequestEnvelope) {
	lc.mu.Lock()
	if lc.finished {
		lc.mu.Unlock()
		lc.sendError(response.ErrSessionNotActive, "")
		return
	}
	lc.state = session.Reduce(lc.state, session.Jumped{Index: msg.Index})
	locked := lc.state.Locked
	answers, index := lc.progressLocked()
	lc.mu.Unlock()

	// After the lock the cursor still moves locally, but there is nothing
	// left to autosave.
	if locked {
		return
	}
	lc.persist(answers, index)
}

func (lc *liveConn) handleNextQuestion() {
	lc.mu.Lock()
	finished, locked := lc.finished, lc.state.Locked
	lc.mu.Unlock()
	if finished {
		lc.sendError(response.ErrSessionNotActive, "")
		return
	}
	if locked {
		lc.sendError(response.ErrAnswersLocked, "")
		return
	}

	question, done, err := lc.svc.NextQuestion(context.Background(), lc.userID, lc.sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAdaptive):
			lc.sendError(response.ErrInvalidPayload, "session is not adaptive")
		case errors.Is(err, service.ErrSessionExpired):
			lc.sendError(response.ErrSessionExpired, "")
		case errors.Is(err, service.ErrSessionNotFound):
			lc.sendError(response.ErrSessionNotFound, "")
		case scoring.Retryable(err):
			lc.sendError(response.ErrUpstreamUnavailable, "")
		default:
			lc.log.Error().Err(err).Msg("Next question failed")
			lc.sendError(response.ErrInternal, "")
		}
		return
	}
	if done {
		lc.send(ws.QuestionResponse{Event: ws.EventQuestion, Done: true})
		return
	}

	lc.mu.Lock()
	lc.state = session.Reduce(lc.state, session.QuestionAppended{Question: *question})
	lc.mu.Unlock()

	lc.send(ws.QuestionResponse{Event: ws.EventQuestion, Question: question})
}

func (lc *liveConn) handleSave() {
	lc.mu.Lock()
	finished, locked := lc.finished, lc.state.Locked
	answers, index := lc.progressLocked()
	lc.mu.Unlock()
	if finished {
		lc.sendError(response.ErrSessionNotActive, "")
		return
	}
	if locked {
		lc.sendError(response.ErrAnswersLocked, "")
		return
	}

	lc.persist(answers, index)
}

func (lc *liveConn) handleSubmit(msg *ws.RequestEnvelope) {
	lc.mu.Lock()
	if lc.finished {
		lc.mu.Unlock()
		lc.sendError(response.ErrSessionNotActive, "")
		return
	}
	st := lc.state
	lc.mu.Unlock()

	answers := make([]model.SubmitAnswer, 0, len(st.Questions))
	for _, q := range st.Questions {
		answer := st.Answers[q.ID]
		if answer == "" {
			continue
		}
		spent := msg.TimeSpent[q.ID.String()]
		if spent < 0 {
			spent = 0
		}
		answers = append(answers, model.SubmitAnswer{
			QuestionID:       q.ID,
			UserAnswer:       answer,
			TimeSpentSeconds: spent,
		})
	}

	result, err := lc.svc.Submit(context.Background(), lc.userID, lc.sessionID, answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrIncompleteAnswers):
			lc.sendError(response.ErrIncompleteAnswers, "")
		case errors.Is(err, service.ErrSubmissionInFlight):
			lc.sendError(response.ErrSubmissionInFlight, "")
		case errors.Is(err, service.ErrSessionNotFound):
			lc.sendError(response.ErrSessionNotFound, "")
		case errors.Is(err, service.ErrSessionNotActive):
			lc.sendError(response.ErrSessionNotActive, "")
		case scoring.Retryable(err):
			lc.sendError(response.ErrUpstreamUnavailable, "")
		default:
			lc.log.Error().Err(err).Msg("Submit failed")
			lc.sendError(response.ErrInternal, "")
		}
		return
	}

	lc.mu.Lock()
	lc.finished = true
	lc.state = session.Reduce(lc.state, session.AnswersLocked{})
	lc.state = session.Reduce(lc.state, session.MarkedCompleted{})
	lc.mu.Unlock()

	lc.countdown.Stop()
	lc.send(ws.SubmittedResponse{
		Event:             ws.EventSubmitted,
		TimeLimitExceeded: lc.countdown.Expired(),
		Result:            result,
	})
	lc.log.Info().Int("iq_score", result.IQScore).Msg("Test submitted")
	lc.closeConn()
}

func (lc *liveConn) handleAbandon() {
	lc.mu.Lock()
	if lc.finished {
		lc.mu.Unlock()
		lc.sendError(response.ErrSessionNotActive, "")
		return
	}
	lc.mu.Unlock()

	if err := lc.svc.Abandon(context.Background(), lc.userID, lc.sessionID); err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrSessionNotActive):
			lc.sendError(response.ErrSessionNotFound, "")
		default:
			lc.log.Error().Err(err).Msg("Abandon failed")
			lc.sendError(response.ErrInternal, "")
		}
		return
	}

	lc.mu.Lock()
	lc.finished = true
	lc.mu.Unlock()

	lc.countdown.Stop()
	lc.send(ws.AbandonedResponse{Event: ws.EventAbandoned})
	lc.log.Info().Msg("Test abandoned")
	lc.closeConn()
}

func (lc *liveConn) onTick(remaining time.Duration) {
	lc.mu.Lock()
	finished := lc.finished
	lc.mu.Unlock()
	if finished {
		return
	}
	lc.send(ws.TickResponse{Event: ws.EventTick, RemainingSeconds: remaining.Seconds()})
}

func (lc *liveConn) onWarning() {
	lc.send(ws.WarningResponse{Event: ws.EventWarning, RemainingSeconds: lc.countdown.Remaining().Seconds()})
	lc.log.Info().Msg("Warning threshold crossed")
}

// onExpired locks the attempt and runs the timeout submission. The one-shot
// guard inside the service keeps a concurrent sweeper or a second tab from
// scoring the session twice.
func (lc *liveConn) onExpired() {
	lc.mu.Lock()
	if lc.finished {
		lc.mu.Unlock()
		return
	}
	lc.finished = true
	lc.state = session.Reduce(lc.state, session.AnswersLocked{})
	lc.mu.Unlock()

	// Lock frames go out first so the client stops accepting input before
	// the submission round-trips.
	lc.send(ws.ExpiredResponse{Event: ws.EventExpired})
	lc.send(ws.LockedResponse{Event: ws.EventLocked})

	result, err := lc.svc.TimeoutSubmit(context.Background(), lc.sessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmissionInFlight):
			lc.log.Info().Msg("Timeout submission already in flight elsewhere")
			lc.sendError(response.ErrSubmissionInFlight, "")
		case scoring.Retryable(err):
			// The expiry sweeper retries this session, so the attempt is
			// not lost.
			lc.log.Warn().Err(err).Msg("Timeout submission hit a scoring outage")
			lc.sendError(response.ErrUpstreamUnavailable, "")
		default:
			lc.log.Error().Err(err).Msg("Timeout submission failed")
			lc.sendError(response.ErrInternal, "")
		}
		lc.closeConn()
		return
	}

	lc.send(ws.SubmittedResponse{Event: ws.EventSubmitted, TimeLimitExceeded: true, Result: result})
	lc.log.Info().Int("iq_score", result.IQScore).Msg("Test auto-submitted at expiry")
	lc.closeConn()
}
