// Package booking drives the appointment lifecycle: turning generated slots
// into bookings, enforcing the one-appointment-per-slot invariant, and
// running the status state machine.
package booking

import (
	"fmt"
	"time"
)

// Status is an appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Role identifies who is acting on an appointment.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
	RoleSystem  Role = "system"
)

// Actor is the party requesting a status transition.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used by time-driven transitions such as the no-show sweep.
var SystemActor = Actor{Role: RoleSystem}

// PaymentStatus tracks the fee state on an appointment. Payment execution
// itself happens outside this core.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentWaived  PaymentStatus = "waived"
)

// DefaultAppointmentType is applied when a booking request carries no type.
const DefaultAppointmentType = "consultation"

// Appointment is the durable booking record. Appointments are never deleted;
// cancellation is a status change that preserves the audit trail.
type Appointment struct {
	ID               string        `dynamodbav:"id" json:"id"`
	DoctorID         string        `dynamodbav:"doctorId" json:"doctorId"`
	PatientID        string        `dynamodbav:"patientId" json:"patientId"`
	Date             string        `dynamodbav:"appointmentDate" json:"appointmentDate"` // "2006-01-02"
	StartTime        string        `dynamodbav:"startTime" json:"startTime"`             // "15:04"
	EndTime          string        `dynamodbav:"endTime" json:"endTime"`
	Status           Status        `dynamodbav:"status" json:"status"`
	Type             string        `dynamodbav:"appointmentType" json:"appointmentType"`
	Fee              float64       `dynamodbav:"fee" json:"fee"`
	PaymentStatus    PaymentStatus `dynamodbav:"paymentStatus" json:"paymentStatus"`
	ReasonForVisit   string        `dynamodbav:"reasonForVisit" json:"reasonForVisit"`
	DoctorNotes      string        `dynamodbav:"doctorNotes" json:"doctorNotes"`
	Prescription     string        `dynamodbav:"prescription" json:"prescription"`
	Symptoms         []string      `dynamodbav:"symptoms" json:"symptoms"`
	Diagnosis        string        `dynamodbav:"diagnosis" json:"diagnosis"`
	FollowUpRequired bool          `dynamodbav:"followUpRequired" json:"followUpRequired"`
	FollowUpDate     string        `dynamodbav:"followUpDate,omitempty" json:"followUpDate,omitempty"`
	// CancelledLate marks a cancellation made inside the minimum-notice
	// window. The cancellation itself is still honored.
	CancelledLate bool      `dynamodbav:"cancelledLate" json:"cancelledLate"`
	CreatedAt     time.Time `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time `dynamodbav:"updatedAt" json:"updatedAt"`
}

// StartAt combines the appointment date and start time in the given location.
func (a *Appointment) StartAt(loc *time.Location) (time.Time, error) {
	return clockOnDate(a.Date, a.StartTime, loc)
}

// EndAt combines the appointment date and end time in the given location.
func (a *Appointment) EndAt(loc *time.Location) (time.Time, error) {
	return clockOnDate(a.Date, a.EndTime, loc)
}

func clockOnDate(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("booking: parse %s %s: %w", date, clock, err)
	}
	return t, nil
}
