package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/telehealth-scheduling/internal/booking"
	"github.com/carebridge/telehealth-scheduling/internal/events"
	"github.com/carebridge/telehealth-scheduling/internal/storage"
	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

type fakeSender struct {
	sent    []EmailMessage
	sendErr error
}

func (f *fakeSender) Send(_ context.Context, msg EmailMessage) error {
	f.sent = append(f.sent, msg)
	return f.sendErr
}

type fakeDirectory map[string]Contact

func (f fakeDirectory) Contact(_ context.Context, userID string) (Contact, error) {
	c, ok := f[userID]
	if !ok {
		return Contact{}, errors.New("unknown user")
	}
	return c, nil
}

func testAppointment(status booking.Status) *booking.Appointment {
	return &booking.Appointment{
		ID:        "appt-1",
		DoctorID:  "doc-1",
		PatientID: "pat-1",
		Date:      "2026-03-02",
		StartTime: "09:00",
		EndTime:   "09:30",
		Status:    status,
	}
}

func newTestService(sender *fakeSender) *Service {
	directory := fakeDirectory{
		"doc-1": {Email: "doctor@clinic.test", Name: "Dr. Osei"},
		"pat-1": {Email: "patient@example.test", Name: "Jordan Lee"},
	}
	return NewService(sender, directory, logging.New("error"))
}

func TestCreatedEventMailsBothParties(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(sender)

	err := svc.Emit(context.Background(), events.TypeAppointmentCreated, testAppointment(booking.StatusPending))
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "patient@example.test", sender.sent[0].To)
	assert.Equal(t, "Appointment requested", sender.sent[0].Subject)
	assert.Equal(t, "doctor@clinic.test", sender.sent[1].To)
	assert.Contains(t, sender.sent[1].Body, "2026-03-02 at 09:00")
}

func TestUpdatedEventMailsPatientByStatus(t *testing.T) {
	tests := []struct {
		status  booking.Status
		subject string
	}{
		{booking.StatusConfirmed, "Appointment confirmed"},
		{booking.StatusCompleted, "Visit summary available"},
		{booking.StatusNoShow, "Missed appointment"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sender := &fakeSender{}
			svc := newTestService(sender)

			err := svc.Emit(context.Background(), events.TypeAppointmentUpdated, testAppointment(tt.status))
			require.NoError(t, err)

			require.Len(t, sender.sent, 1)
			assert.Equal(t, "patient@example.test", sender.sent[0].To)
			assert.Equal(t, tt.subject, sender.sent[0].Subject)
		})
	}
}

func TestCancelledEventMailsBothParties(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(sender)

	err := svc.Emit(context.Background(), events.TypeAppointmentCancelled, testAppointment(booking.StatusCancelled))
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
}

func TestMissingContactIsSkippedNotFatal(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, fakeDirectory{
		"pat-1": {Email: "patient@example.test"},
	}, logging.New("error"))

	err := svc.Emit(context.Background(), events.TypeAppointmentCreated, testAppointment(booking.StatusPending))
	require.NoError(t, err)

	require.Len(t, sender.sent, 1, "the resolvable party still gets mailed")
	assert.Equal(t, "patient@example.test", sender.sent[0].To)
}

func TestSendFailureSurfacesToEmitter(t *testing.T) {
	sender := &fakeSender{sendErr: errors.New("ses throttled")}
	svc := newTestService(sender)

	err := svc.Emit(context.Background(), events.TypeAppointmentCreated, testAppointment(booking.StatusPending))
	assert.Error(t, err)
}

func TestUnexpectedPayloadIsRejected(t *testing.T) {
	svc := newTestService(&fakeSender{})

	err := svc.Emit(context.Background(), events.TypeAppointmentCreated, map[string]string{"id": "x"})
	assert.Error(t, err)
}

func TestStoreDirectoryResolvesUsers(t *testing.T) {
	store := storage.NewMemoryStore()
	users := storage.NewRepository[userRecord](store, "users")
	require.NoError(t, users.Create(context.Background(), "pat-1", &userRecord{
		ID: "pat-1", Email: "patient@example.test", Name: "Jordan Lee",
	}))
	require.NoError(t, users.Create(context.Background(), "pat-2", &userRecord{ID: "pat-2"}))

	directory := NewStoreDirectory(store)

	contact, err := directory.Contact(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Equal(t, "patient@example.test", contact.Email)

	_, err = directory.Contact(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = directory.Contact(context.Background(), "pat-2")
	assert.Error(t, err, "user without an email cannot be notified")
}
