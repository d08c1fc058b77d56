package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/carebridge/telehealth-scheduling/internal/booking"
	"github.com/carebridge/telehealth-scheduling/internal/events"
	"github.com/carebridge/telehealth-scheduling/internal/storage"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

// Contact is the delivery address for one platform user.
type Contact struct {
	Email string
	Name  string
}

// ContactDirectory resolves a user id to their contact details.
type ContactDirectory interface {
	Contact(ctx context.Context, userID string) (Contact, error)
}

// Service listens on the appointment event stream and mails the parties
// involved. It plugs in as an event sink; delivery failures surface to the
// emitter, which treats them as best-effort.
type Service struct {
	sender    EmailSender
	directory ContactDirectory
	logger    *logging.Logger
}

// NewService creates a notification service.
func NewService(sender EmailSender, directory ContactDirectory, logger *logging.Logger) *Service {
	if sender == nil {
		panic("notify: sender cannot be nil")
	}
	if directory == nil {
		panic("notify: directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{sender: sender, directory: directory, logger: logger}
}

var _ events.Emitter = (*Service)(nil)

// Emit sends the emails for one appointment event.
func (s *Service) Emit(ctx context.Context, eventType string, appointment any) error {
	appt, ok := appointment.(*booking.Appointment)
	if !ok {
		return fmt.Errorf("notify: unexpected payload %T for %s", appointment, eventType)
	}

	var errs []error
	for _, m := range s.compose(ctx, eventType, appt) {
		if err := s.sender.Send(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) compose(ctx context.Context, eventType string, appt *booking.Appointment) []EmailMessage {
	when := fmt.Sprintf("%s at %s", appt.Date, appt.StartTime)

	var messages []EmailMessage
	add := func(userID, subject, body string) {
		contact, err := s.directory.Contact(ctx, userID)
		if err != nil {
			s.logger.Warn("skipping notification, contact lookup failed",
				"user_id", userID, "appointment_id", appt.ID, "error", err)
			return
		}
		messages = append(messages, EmailMessage{
			To:      contact.Email,
			ToName:  contact.Name,
			Subject: subject,
			Body:    body,
		})
	}

	switch eventType {
	case events.TypeAppointmentCreated:
		add(appt.PatientID, "Appointment requested",
			fmt.Sprintf("Your appointment request for %s has been received and is awaiting the doctor's confirmation.", when))
		add(appt.DoctorID, "New appointment request",
			fmt.Sprintf("A patient has requested an appointment for %s. Please confirm or cancel it.", when))

	case events.TypeAppointmentCancelled:
		add(appt.PatientID, "Appointment cancelled",
			fmt.Sprintf("Your appointment on %s has been cancelled.", when))
		add(appt.DoctorID, "Appointment cancelled",
			fmt.Sprintf("The appointment on %s has been cancelled.", when))

	case events.TypeAppointmentUpdated:
		switch appt.Status {
		case booking.StatusConfirmed:
			add(appt.PatientID, "Appointment confirmed",
				fmt.Sprintf("Your appointment on %s has been confirmed.", when))
		case booking.StatusCompleted:
			add(appt.PatientID, "Visit summary available",
				fmt.Sprintf("Your appointment on %s is complete. Any notes or prescriptions from your doctor are available in your records.", when))
		case booking.StatusNoShow:
			add(appt.PatientID, "Missed appointment",
				fmt.Sprintf("You missed your appointment on %s. Please book a new slot if you still need a consultation.", when))
		}
	}
	return messages
}

// userRecord is the subset of the users collection the directory reads.
type userRecord struct {
	ID    string `dynamodbav:"id"`
	Email string `dynamodbav:"email"`
	Name  string `dynamodbav:"name"`
}

// StoreDirectory resolves contacts from the users collection.
type StoreDirectory struct {
	users *storage.Repository[userRecord]
}

// NewStoreDirectory creates a directory over the given store.
func NewStoreDirectory(store storage.Store) *StoreDirectory {
	if store == nil {
		panic("notify: store cannot be nil")
	}
	return &StoreDirectory{users: storage.NewRepository[userRecord](store, "users")}
}

var _ ContactDirectory = (*StoreDirectory)(nil)

// Contact looks up a user's email and display name.
func (d *StoreDirectory) Contact(ctx context.Context, userID string) (Contact, error) {
	user, err := d.users.Get(ctx, userID)
	if err != nil {
		return Contact{}, err
	}
	if user.Email == "" {
		return Contact{}, fmt.Errorf("notify: user %s has no email", userID)
	}
	return Contact{Email: user.Email, Name: user.Name}, nil
}
