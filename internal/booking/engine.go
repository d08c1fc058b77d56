package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/telehealth-scheduling/internal/availability"
	"github.com/carebridge/telehealth-scheduling/internal/events"
	"github.com/carebridge/telehealth-scheduling/internal/observability/metrics"
	"github.com/carebridge/telehealth-scheduling/internal/storage"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

var (
	// ErrOutOfWindow indicates the requested date is in the past or beyond
	// the doctor's advance booking limit.
	ErrOutOfWindow = errors.New("booking: date outside bookable window")
	// ErrInvalidSlot indicates the requested time does not match any slot the
	// doctor's schedule generates for that date.
	ErrInvalidSlot = errors.New("booking: requested time is not a valid slot")
	// ErrConflict indicates the slot is already held by another appointment.
	ErrConflict = errors.New("booking: slot already booked")
	// ErrInvalidTransition indicates a status change the state machine does
	// not allow, or an actor not permitted to make it.
	ErrInvalidTransition = errors.New("booking: invalid status transition")
)

// ProfileSource supplies doctor availability profiles.
type ProfileSource interface {
	GetByDoctor(ctx context.Context, doctorID string) (*availability.Profile, error)
}

// BookRequest is a patient's request for a specific slot.
type BookRequest struct {
	DoctorID       string
	PatientID      string
	Date           string // "2006-01-02"
	StartTime      string // "15:04"
	Type           string
	ReasonForVisit string
	Symptoms       []string
}

// TransitionRequest asks for one status change on an appointment. The outcome
// fields are only applied when the target is completed.
type TransitionRequest struct {
	AppointmentID string
	Target        Status
	Actor         Actor

	DoctorNotes      string
	Prescription     string
	Diagnosis        string
	FollowUpRequired bool
	FollowUpDate     string
}

// Engine implements the booking operations: listing open slots, creating
// appointments, and driving the status state machine.
type Engine struct {
	repo            *Repository
	profiles        ProfileSource
	emitter         events.Emitter
	logger          *logging.Logger
	metrics         *metrics.BookingMetrics
	now             func() time.Time
	loc             *time.Location
	minCancelNotice time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMinCancelNotice sets the notice window below which a cancellation is
// flagged as late.
func WithMinCancelNotice(d time.Duration) Option {
	return func(e *Engine) { e.minCancelNotice = d }
}

// WithMetrics attaches booking metrics. A nil receiver is tolerated
// everywhere, so omitting this option is safe.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a booking engine.
func NewEngine(repo *Repository, profiles ProfileSource, emitter events.Emitter, logger *logging.Logger, opts ...Option) *Engine {
	if repo == nil {
		panic("booking: repository cannot be nil")
	}
	if profiles == nil {
		panic("booking: profile source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if emitter == nil {
		emitter = events.NewLogEmitter(logger)
	}
	e := &Engine{
		repo:            repo,
		profiles:        profiles,
		emitter:         emitter,
		logger:          logger,
		now:             time.Now,
		loc:             time.UTC,
		minCancelNotice: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AvailableSlots returns the doctor's open slots for a date. Pending and
// confirmed appointments block a slot; cancelled ones do not. On the current
// date, slots whose start has already passed are dropped.
func (e *Engine) AvailableSlots(ctx context.Context, doctorID, date string) ([]availability.Slot, error) {
	slots, err := e.markedSlots(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	open := slots[:0]
	for _, s := range slots {
		if !s.IsBooked {
			open = append(open, s)
		}
	}
	return open, nil
}

// markedSlots returns the full slot set for a date with booked ones flagged.
func (e *Engine) markedSlots(ctx context.Context, doctorID, date string) ([]availability.Slot, error) {
	started := e.now()
	defer func() {
		e.metrics.ObserveSlotQuery(e.now().Sub(started).Seconds())
	}()

	day, dateT, err := e.resolveDay(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	slots, err := availability.GenerateSlots(day, dateT)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, nil
	}

	appts, err := e.repo.ListForDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(appts))
	for _, a := range appts {
		if a.Status == StatusPending || a.Status == StatusConfirmed {
			taken[a.StartTime] = true
		}
	}

	now := e.now().In(e.loc)
	today := now.Format(time.DateOnly)
	out := slots[:0]
	for _, s := range slots {
		if date == today {
			start, err := clockOnDate(s.Date, s.StartTime, e.loc)
			if err != nil {
				return nil, err
			}
			if !start.After(now) {
				continue
			}
		}
		s.IsBooked = taken[s.StartTime]
		out = append(out, s)
	}
	return out, nil
}

// Book creates a pending appointment for the requested slot. The slot claim
// is taken before the appointment record is written, so of two concurrent
// requests for the same slot exactly one succeeds.
func (e *Engine) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	appt, err := e.book(ctx, req)
	e.metrics.ObserveBooking(bookingOutcome(err))
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (e *Engine) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	profile, err := e.profiles.GetByDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	dateT, err := e.checkWindow(req.Date, profile.AdvanceBookingLimitDays)
	if err != nil {
		return nil, err
	}

	day, err := profile.Resolve(dateT)
	if err != nil {
		return nil, err
	}
	slots, err := availability.GenerateSlots(day, dateT)
	if err != nil {
		return nil, err
	}
	slot, ok := findSlot(slots, req.StartTime)
	if !ok {
		return nil, fmt.Errorf("%w: %s at %s for doctor %s",
			ErrInvalidSlot, req.Date, req.StartTime, req.DoctorID)
	}

	start, err := clockOnDate(req.Date, req.StartTime, e.loc)
	if err != nil {
		return nil, err
	}
	if !start.After(e.now().In(e.loc)) {
		return nil, fmt.Errorf("%w: %s %s already started", ErrOutOfWindow, req.Date, req.StartTime)
	}

	apptType := req.Type
	if apptType == "" {
		apptType = DefaultAppointmentType
	}
	appt := &Appointment{
		ID:             uuid.NewString(),
		DoctorID:       req.DoctorID,
		PatientID:      req.PatientID,
		Date:           req.Date,
		StartTime:      slot.StartTime,
		EndTime:        slot.EndTime,
		Status:         StatusPending,
		Type:           apptType,
		Fee:            profile.ConsultationFee,
		PaymentStatus:  PaymentPending,
		ReasonForVisit: req.ReasonForVisit,
		Symptoms:       req.Symptoms,
	}

	if err := e.repo.ClaimSlot(ctx, appt); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: %s at %s for doctor %s",
				ErrConflict, req.Date, req.StartTime, req.DoctorID)
		}
		return nil, err
	}

	if err := e.repo.Create(ctx, appt); err != nil {
		if releaseErr := e.repo.ReleaseSlot(ctx, appt); releaseErr != nil {
			e.logger.Error("failed to release slot claim after create failure",
				"doctor_id", appt.DoctorID, "date", appt.Date, "start", appt.StartTime,
				"error", releaseErr)
		}
		return nil, err
	}

	e.logger.Info("appointment booked",
		"appointment_id", appt.ID, "doctor_id", appt.DoctorID,
		"patient_id", appt.PatientID, "date", appt.Date, "start", appt.StartTime)
	e.emit(ctx, events.TypeAppointmentCreated, appt)
	return appt, nil
}

// Transition applies one status change. The write carries an optimistic
// guard on the status loaded here, so a concurrent transition loses with
// ErrInvalidTransition rather than overwriting.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	appt, err := e.transition(ctx, req)
	e.metrics.ObserveTransition(string(req.Target), transitionOutcome(err))
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (e *Engine) transition(ctx context.Context, req TransitionRequest) (*Appointment, error) {
	appt, err := e.repo.Get(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	extra, err := e.checkTransition(appt, req)
	if err != nil {
		return nil, err
	}

	if err := e.repo.UpdateStatus(ctx, appt.ID, appt.Status, req.Target, extra); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, appt.ID)
		}
		return nil, err
	}

	from := appt.Status
	appt.Status = req.Target
	appt.UpdatedAt = time.Now().UTC()
	applyExtra(appt, extra)

	if req.Target == StatusCancelled {
		if err := e.repo.ReleaseSlot(ctx, appt); err != nil {
			e.logger.Error("failed to release slot claim on cancellation",
				"appointment_id", appt.ID, "error", err)
		}
	}

	e.logger.Info("appointment status changed",
		"appointment_id", appt.ID, "from", from, "to", req.Target,
		"actor_role", req.Actor.Role)

	eventType := events.TypeAppointmentUpdated
	if req.Target == StatusCancelled {
		eventType = events.TypeAppointmentCancelled
	}
	e.emit(ctx, eventType, appt)
	return appt, nil
}

// checkTransition validates the state machine and actor rules, returning the
// extra fields to write alongside the status.
func (e *Engine) checkTransition(appt *Appointment, req TransitionRequest) (map[string]any, error) {
	if appt.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, appt.ID, appt.Status)
	}

	switch req.Target {
	case StatusConfirmed:
		if appt.Status != StatusPending {
			return nil, transitionErr(appt, req.Target)
		}
		if req.Actor.Role != RoleDoctor || req.Actor.ID != appt.DoctorID {
			return nil, actorErr(appt, req)
		}
		return nil, nil

	case StatusCancelled:
		if err := e.checkCancelActor(appt, req.Actor); err != nil {
			return nil, err
		}
		extra := map[string]any{}
		start, err := appt.StartAt(e.loc)
		if err != nil {
			return nil, err
		}
		if e.now().In(e.loc).After(start.Add(-e.minCancelNotice)) {
			extra["cancelledLate"] = true
			e.logger.Warn("late cancellation",
				"appointment_id", appt.ID, "date", appt.Date, "start", appt.StartTime,
				"actor_role", req.Actor.Role)
		}
		return extra, nil

	case StatusCompleted:
		if appt.Status != StatusConfirmed {
			return nil, transitionErr(appt, req.Target)
		}
		if req.Actor.Role != RoleDoctor || req.Actor.ID != appt.DoctorID {
			return nil, actorErr(appt, req)
		}
		start, err := appt.StartAt(e.loc)
		if err != nil {
			return nil, err
		}
		if e.now().In(e.loc).Before(start) {
			return nil, fmt.Errorf("%w: %s has not started yet", ErrInvalidTransition, appt.ID)
		}
		return completionExtra(req), nil

	case StatusNoShow:
		if appt.Status != StatusConfirmed {
			return nil, transitionErr(appt, req.Target)
		}
		if req.Actor.Role != RoleSystem {
			return nil, actorErr(appt, req)
		}
		end, err := appt.EndAt(e.loc)
		if err != nil {
			return nil, err
		}
		if e.now().In(e.loc).Before(end) {
			return nil, fmt.Errorf("%w: %s has not ended yet", ErrInvalidTransition, appt.ID)
		}
		return nil, nil
	}

	return nil, transitionErr(appt, req.Target)
}

func (e *Engine) checkCancelActor(appt *Appointment, actor Actor) error {
	switch actor.Role {
	case RoleDoctor:
		if actor.ID == appt.DoctorID {
			return nil
		}
	case RolePatient:
		if actor.ID == appt.PatientID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s may not cancel %s",
		ErrInvalidTransition, actor.Role, actor.ID, appt.ID)
}

func (e *Engine) checkWindow(date string, limitDays int) (time.Time, error) {
	dateT, err := time.ParseInLocation(time.DateOnly, date, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, date)
	}
	now := e.now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	if dateT.Before(today) {
		return time.Time{}, fmt.Errorf("%w: %s is in the past", ErrOutOfWindow, date)
	}
	if limitDays <= 0 {
		limitDays = availability.DefaultAdvanceBookingLimitDays
	}
	if dateT.After(today.AddDate(0, 0, limitDays)) {
		return time.Time{}, fmt.Errorf("%w: %s is beyond the %d-day limit", ErrOutOfWindow, date, limitDays)
	}
	return dateT, nil
}

func (e *Engine) resolveDay(ctx context.Context, doctorID, date string) (availability.DaySchedule, time.Time, error) {
	profile, err := e.profiles.GetByDoctor(ctx, doctorID)
	if err != nil {
		return availability.DaySchedule{}, time.Time{}, err
	}
	dateT, err := time.ParseInLocation(time.DateOnly, date, e.loc)
	if err != nil {
		return availability.DaySchedule{}, time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, date)
	}
	day, err := profile.Resolve(dateT)
	if err != nil {
		return availability.DaySchedule{}, time.Time{}, err
	}
	return day, dateT, nil
}

// emit publishes an event best-effort. Delivery failures are logged and never
// fail the operation that triggered them.
func (e *Engine) emit(ctx context.Context, eventType string, appt *Appointment) {
	if err := e.emitter.Emit(ctx, eventType, appt); err != nil {
		e.logger.Warn("event emission failed",
			"event_type", eventType, "appointment_id", appt.ID, "error", err)
	}
}

func findSlot(slots []availability.Slot, startTime string) (availability.Slot, bool) {
	for _, s := range slots {
		if s.StartTime == startTime {
			return s, true
		}
	}
	return availability.Slot{}, false
}

func completionExtra(req TransitionRequest) map[string]any {
	extra := map[string]any{}
	if req.DoctorNotes != "" {
		extra["doctorNotes"] = req.DoctorNotes
	}
	if req.Prescription != "" {
		extra["prescription"] = req.Prescription
	}
	if req.Diagnosis != "" {
		extra["diagnosis"] = req.Diagnosis
	}
	if req.FollowUpRequired {
		extra["followUpRequired"] = true
		if req.FollowUpDate != "" {
			extra["followUpDate"] = req.FollowUpDate
		}
	}
	return extra
}

func applyExtra(appt *Appointment, extra map[string]any) {
	for field, value := range extra {
		switch field {
		case "cancelledLate":
			appt.CancelledLate = value.(bool)
		case "doctorNotes":
			appt.DoctorNotes = value.(string)
		case "prescription":
			appt.Prescription = value.(string)
		case "diagnosis":
			appt.Diagnosis = value.(string)
		case "followUpRequired":
			appt.FollowUpRequired = value.(bool)
		case "followUpDate":
			appt.FollowUpDate = value.(string)
		}
	}
}

func transitionErr(appt *Appointment, target Status) error {
	return fmt.Errorf("%w: %s -> %s on %s", ErrInvalidTransition, appt.Status, target, appt.ID)
}

func actorErr(appt *Appointment, req TransitionRequest) error {
	return fmt.Errorf("%w: %s %s may not set %s on %s",
		ErrInvalidTransition, req.Actor.Role, req.Actor.ID, req.Target, appt.ID)
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrOutOfWindow):
		return "out_of_window"
	case errors.Is(err, ErrInvalidSlot):
		return "invalid_slot"
	default:
		return "error"
	}
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid"
	default:
		return "error"
	}
}
