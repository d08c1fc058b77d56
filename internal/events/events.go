// Package events defines the appointment domain events emitted by the
// booking engine and the sinks that deliver them. Delivery is best-effort:
// a failed emission is logged by the caller and never fails the operation
// that triggered it.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

// Event types carried on the wire.
const (
	TypeAppointmentCreated   = "appointment.created"
	TypeAppointmentUpdated   = "appointment.updated"
	TypeAppointmentCancelled = "appointment.cancelled"
)

// AppointmentEventV1 is the envelope for all appointment events. Appointment
// holds the full record as JSON so sinks never depend on the booking types.
type AppointmentEventV1 struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Appointment json.RawMessage `json:"appointment"`
}

// NewAppointmentEvent wraps an appointment record into a versioned envelope.
func NewAppointmentEvent(eventType string, appointment any) (AppointmentEventV1, error) {
	payload, err := json.Marshal(appointment)
	if err != nil {
		return AppointmentEventV1{}, fmt.Errorf("events: marshal appointment: %w", err)
	}
	return AppointmentEventV1{
		EventID:     uuid.New().String(),
		Type:        eventType,
		OccurredAt:  time.Now().UTC(),
		Appointment: payload,
	}, nil
}

// Emitter delivers appointment events to a sink.
type Emitter interface {
	Emit(ctx context.Context, eventType string, appointment any) error
}

// LogEmitter writes events to the structured log. It is the default sink
// when no transport is configured.
type LogEmitter struct {
	logger *logging.Logger
}

// NewLogEmitter creates a log-only sink.
func NewLogEmitter(logger *logging.Logger) *LogEmitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(_ context.Context, eventType string, appointment any) error {
	evt, err := NewAppointmentEvent(eventType, appointment)
	if err != nil {
		return err
	}
	e.logger.Info("appointment event",
		"event_id", evt.EventID,
		"type", evt.Type,
		"appointment", string(evt.Appointment),
	)
	return nil
}

// Fanout delivers each event to every sink, collecting failures. A failing
// sink never prevents delivery to the others.
type Fanout struct {
	sinks []Emitter
}

// NewFanout combines sinks into one emitter.
func NewFanout(sinks ...Emitter) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Emit(ctx context.Context, eventType string, appointment any) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Emit(ctx, eventType, appointment); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Emitter = (*LogEmitter)(nil)
	_ Emitter = (*Fanout)(nil)
)
