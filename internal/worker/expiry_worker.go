package worker

import (
	"context"
	"time"

	"github.com/gioe/aiq-sub010/internal/service"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// ExpiryWorker sweeps sessions past the 30-minute ceiling once a minute and
// runs the timeout submission for each. It is the safety net behind the live
// countdown: a participant whose connection died still gets scored.
type ExpiryWorker struct {
	sessionService *service.SessionService
	scheduler      *gocron.Scheduler
	log            zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessionService *service.SessionService, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessionService: sessionService,
		scheduler:      gocron.NewScheduler(time.UTC),
		log:            log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start schedules the sweep and runs it in the background.
func (w *ExpiryWorker) Start() {
	w.scheduler.Every(1).Minute().Do(w.sweep)
	w.scheduler.StartAsync()
	w.log.Info().Msg("Worker started")
}

// Stop halts the schedule. A sweep already running finishes.
func (w *ExpiryWorker) Stop() {
	w.scheduler.Stop()
	w.log.Info().Msg("Worker stopped")
}

func (w *ExpiryWorker) sweep() {
	submitted, err := w.sessionService.SweepOverdue(context.Background())
	if err != nil {
		// Partial failures are expected during scorer outages; the next
		// sweep picks the remaining sessions up again.
		w.log.Warn().Err(err).Int("submitted", submitted).Msg("Sweep finished with errors")
		return
	}
	if submitted > 0 {
		w.log.Info().Int("submitted", submitted).Msg("Swept overdue sessions")
	}
}
