package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

type recordingEmitter struct {
	types []string
	err   error
}

func (r *recordingEmitter) Emit(_ context.Context, eventType string, _ any) error {
	r.types = append(r.types, eventType)
	return r.err
}

func TestNewAppointmentEventEnvelope(t *testing.T) {
	record := map[string]string{"id": "a1", "status": "pending"}

	evt, err := NewAppointmentEvent(TypeAppointmentCreated, record)
	require.NoError(t, err)

	assert.NotEmpty(t, evt.EventID)
	assert.Equal(t, "appointment.created", evt.Type)
	assert.False(t, evt.OccurredAt.IsZero())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(evt.Appointment, &decoded))
	assert.Equal(t, "a1", decoded["id"])
}

func TestLogEmitterNeverFailsOnValidPayload(t *testing.T) {
	e := NewLogEmitter(logging.Default())
	err := e.Emit(context.Background(), TypeAppointmentUpdated, map[string]string{"id": "a1"})
	assert.NoError(t, err)
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	a := &recordingEmitter{}
	b := &recordingEmitter{err: errors.New("sink down")}
	c := &recordingEmitter{}
	f := NewFanout(a, b, c)

	err := f.Emit(context.Background(), TypeAppointmentCancelled, map[string]string{"id": "a1"})

	assert.Error(t, err, "fanout reports sink failures to the caller")
	assert.Equal(t, []string{"appointment.cancelled"}, a.types)
	assert.Equal(t, []string{"appointment.cancelled"}, c.types, "one failing sink must not stop the others")
}

type mockSQS struct {
	inputs  []*sqs.SendMessageInput
	sendErr error
}

func (m *mockSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSEmitterSendsEnvelope(t *testing.T) {
	mock := &mockSQS{}
	e := NewSQSEmitter(mock, "https://sqs.test/appointment-events")

	err := e.Emit(context.Background(), TypeAppointmentCreated, map[string]string{"id": "a1"})
	require.NoError(t, err)

	require.Len(t, mock.inputs, 1)
	assert.Equal(t, "https://sqs.test/appointment-events", aws.ToString(mock.inputs[0].QueueUrl))

	var evt AppointmentEventV1
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(mock.inputs[0].MessageBody)), &evt))
	assert.Equal(t, TypeAppointmentCreated, evt.Type)
	assert.NotEmpty(t, evt.EventID)
}

func TestSQSEmitterPropagatesTransportError(t *testing.T) {
	mock := &mockSQS{sendErr: errors.New("queue unreachable")}
	e := NewSQSEmitter(mock, "https://sqs.test/appointment-events")

	err := e.Emit(context.Background(), TypeAppointmentCreated, map[string]string{"id": "a1"})
	assert.Error(t, err)
}
