package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/telehealth-scheduling/internal/storage"
)

const (
	appointmentsCollection = "appointments"
	slotClaimsCollection   = "slot_claims"
)

// SlotClaim is the uniqueness record behind a booked slot. Its id is the
// doctor/date/start triple, so the store's conditional put is the arbiter
// when two bookings race for the same slot.
type SlotClaim struct {
	ID            string    `dynamodbav:"id"`
	DoctorID      string    `dynamodbav:"doctorId"`
	Date          string    `dynamodbav:"appointmentDate"`
	StartTime     string    `dynamodbav:"startTime"`
	AppointmentID string    `dynamodbav:"appointmentId"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
}

// ClaimKey builds the slot claim id for a doctor, date and start time.
func ClaimKey(doctorID, date, startTime string) string {
	return doctorID + "#" + date + "#" + startTime
}

// Repository persists appointments and slot claims.
type Repository struct {
	appointments *storage.Repository[Appointment]
	claims       *storage.Repository[SlotClaim]
}

// NewRepository creates a booking repository over the given store.
func NewRepository(store storage.Store) *Repository {
	if store == nil {
		panic("booking: store cannot be nil")
	}
	return &Repository{
		appointments: storage.NewRepository[Appointment](store, appointmentsCollection),
		claims:       storage.NewRepository[SlotClaim](store, slotClaimsCollection),
	}
}

// Get fetches an appointment by id.
func (r *Repository) Get(ctx context.Context, id string) (*Appointment, error) {
	return r.appointments.Get(ctx, id)
}

// Create inserts a new appointment record.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	return r.appointments.Create(ctx, a.ID, a)
}

// ClaimSlot atomically reserves a slot for an appointment. It fails with
// storage.ErrConditionFailed when the slot is already claimed.
func (r *Repository) ClaimSlot(ctx context.Context, a *Appointment) error {
	claim := &SlotClaim{
		ID:            ClaimKey(a.DoctorID, a.Date, a.StartTime),
		DoctorID:      a.DoctorID,
		Date:          a.Date,
		StartTime:     a.StartTime,
		AppointmentID: a.ID,
		CreatedAt:     time.Now().UTC(),
	}
	return r.claims.Create(ctx, claim.ID, claim)
}

// ReleaseSlot frees the claim held by an appointment, making its slot
// bookable again.
func (r *Repository) ReleaseSlot(ctx context.Context, a *Appointment) error {
	return r.claims.Delete(ctx, ClaimKey(a.DoctorID, a.Date, a.StartTime))
}

// ListForDoctorDate returns a doctor's appointments on one date ordered by
// start time.
func (r *Repository) ListForDoctorDate(ctx context.Context, doctorID, date string) ([]Appointment, error) {
	return r.appointments.Find(ctx, storage.Query{
		Filters: []storage.Filter{
			storage.Eq("doctorId", doctorID),
			storage.Eq("appointmentDate", date),
		},
		Sort: &storage.Sort{Field: "startTime"},
	})
}

// ListForPatient returns a patient's appointments, most recent date first.
func (r *Repository) ListForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.appointments.Find(ctx, storage.Query{
		Filters: []storage.Filter{storage.Eq("patientId", patientID)},
		Sort:    &storage.Sort{Field: "appointmentDate", Descending: true},
	})
}

// ListConfirmedThrough returns confirmed appointments dated on or before the
// given date. The sweep narrows the result to those whose end time has passed.
func (r *Repository) ListConfirmedThrough(ctx context.Context, date string) ([]Appointment, error) {
	return r.appointments.Find(ctx, storage.Query{
		Filters: []storage.Filter{
			storage.Eq("status", string(StatusConfirmed)),
			storage.Range("appointmentDate", nil, date),
		},
		Sort: &storage.Sort{Field: "appointmentDate"},
	})
}

// UpdateStatus transitions an appointment's status with an optimistic guard
// on the status it is expected to still hold. Extra fields ride along in the
// same write.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to Status, extra map[string]any) error {
	changes := map[string]any{
		"status":    string(to),
		"updatedAt": time.Now().UTC(),
	}
	for field, value := range extra {
		changes[field] = value
	}
	guard := &storage.Guard{Field: "status", Equals: string(from)}
	if err := r.appointments.Update(ctx, id, changes, guard); err != nil {
		return fmt.Errorf("booking: update status %s: %w", id, err)
	}
	return nil
}
