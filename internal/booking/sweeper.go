package booking

import (
	"context"
	"errors"
	"time"

	"github.com/carebridge/telehealth-scheduling/internal/observability/metrics"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

// NoShowSweeper periodically marks confirmed appointments whose end time has
// passed as no-show. Each appointment is transitioned individually with the
// engine's optimistic guard, so a sweep racing a doctor completing the visit
// loses cleanly.
type NoShowSweeper struct {
	engine   *Engine
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	interval time.Duration
	now      func() time.Time
}

// SweeperOption configures a NoShowSweeper.
type SweeperOption func(*NoShowSweeper)

// WithSweepInterval sets the time between sweeps.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *NoShowSweeper) { s.interval = d }
}

// WithSweepClock replaces the time source, for tests.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *NoShowSweeper) { s.now = now }
}

// WithSweepMetrics attaches booking metrics.
func WithSweepMetrics(m *metrics.BookingMetrics) SweeperOption {
	return func(s *NoShowSweeper) { s.metrics = m }
}

// NewNoShowSweeper creates a sweeper over the given engine.
func NewNoShowSweeper(engine *Engine, logger *logging.Logger, opts ...SweeperOption) *NoShowSweeper {
	if engine == nil {
		panic("booking: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &NoShowSweeper{
		engine:   engine,
		logger:   logger,
		interval: 15 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on the configured interval until the context is cancelled. One
// sweep runs immediately on start.
func (s *NoShowSweeper) Run(ctx context.Context) {
	s.logger.Info("no-show sweeper started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("no-show sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *NoShowSweeper) sweep(ctx context.Context) {
	count, err := s.ProcessDue(ctx)
	if err != nil {
		s.logger.Error("no-show sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("no-show sweep completed", "marked", count)
	}
}

// ProcessDue marks every overdue confirmed appointment as no-show and returns
// how many were marked. Per-appointment failures are logged and skipped so one
// bad record cannot stall the sweep.
func (s *NoShowSweeper) ProcessDue(ctx context.Context) (int, error) {
	now := s.now().In(s.engine.loc)
	due, err := s.engine.repo.ListConfirmedThrough(ctx, now.Format(time.DateOnly))
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, appt := range due {
		end, err := appt.EndAt(s.engine.loc)
		if err != nil {
			s.logger.Error("skipping appointment with bad times",
				"appointment_id", appt.ID, "error", err)
			continue
		}
		if now.Before(end) {
			continue
		}
		_, err = s.engine.Transition(ctx, TransitionRequest{
			AppointmentID: appt.ID,
			Target:        StatusNoShow,
			Actor:         SystemActor,
		})
		if err != nil {
			// A concurrent completion or cancellation is expected noise.
			if errors.Is(err, ErrInvalidTransition) {
				s.logger.Info("appointment changed before sweep could mark it",
					"appointment_id", appt.ID)
				continue
			}
			s.logger.Error("failed to mark no-show",
				"appointment_id", appt.ID, "error", err)
			continue
		}
		marked++
	}

	s.metrics.ObserveNoShows(marked)
	return marked, nil
}
