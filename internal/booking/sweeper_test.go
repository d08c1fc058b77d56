package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDueMarksOverdueConfirmed(t *testing.T) {
	ctx := context.Background()
	doctor := Actor{ID: "doc-1", Role: RoleDoctor}

	current := testNow
	engine, repo, _ := newTestEngine(t, func() time.Time { return current })
	sweeper := NewNoShowSweeper(engine, nil, WithSweepClock(func() time.Time { return current }))

	book := func(date, start string) *Appointment {
		appt, err := engine.Book(ctx, BookRequest{
			DoctorID: "doc-1", PatientID: "pat-1", Date: date, StartTime: start,
		})
		require.NoError(t, err)
		return appt
	}

	overdue := book("2026-03-02", "09:00")
	upcoming := book("2026-03-02", "15:00")
	pending := book("2026-03-02", "10:00")
	_, err := engine.Transition(ctx, TransitionRequest{AppointmentID: overdue.ID, Target: StatusConfirmed, Actor: doctor})
	require.NoError(t, err)
	_, err = engine.Transition(ctx, TransitionRequest{AppointmentID: upcoming.ID, Target: StatusConfirmed, Actor: doctor})
	require.NoError(t, err)

	// Noon: the 09:00 visit ended at 09:30, the 15:00 one has not started.
	current = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	marked, err := sweeper.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, err := repo.Get(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)

	got, err = repo.Get(ctx, upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status, "future appointments are untouched")

	got, err = repo.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status, "unconfirmed appointments are not swept")
}

func TestProcessDueIsIdempotent(t *testing.T) {
	ctx := context.Background()

	current := testNow
	engine, _, _ := newTestEngine(t, func() time.Time { return current })
	sweeper := NewNoShowSweeper(engine, nil, WithSweepClock(func() time.Time { return current }))

	appt, err := engine.Book(ctx, BookRequest{
		DoctorID: "doc-1", PatientID: "pat-1", Date: "2026-03-02", StartTime: "09:00",
	})
	require.NoError(t, err)
	_, err = engine.Transition(ctx, TransitionRequest{
		AppointmentID: appt.ID, Target: StatusConfirmed, Actor: Actor{ID: "doc-1", Role: RoleDoctor},
	})
	require.NoError(t, err)

	current = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	marked, err := sweeper.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	marked, err = sweeper.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, marked, "already-marked appointments are not re-swept")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	engine, _, _ := newTestEngine(t, fixedClock(testNow))
	sweeper := NewNoShowSweeper(engine, nil,
		WithSweepInterval(time.Hour),
		WithSweepClock(fixedClock(testNow)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
