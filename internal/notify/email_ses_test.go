package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/telehealth-scheduling/pkg/logging"
)

type mockSES struct {
	inputs  []*sesv2.SendEmailInput
	sendErr error
}

func (m *mockSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSenderBuildsSimpleMessage(t *testing.T) {
	mock := &mockSES{}
	sender := NewSESSender(mock, SESConfig{FromEmail: "noreply@carebridge.test"}, logging.New("error"))

	err := sender.Send(context.Background(), EmailMessage{
		To:      "patient@example.test",
		Subject: "Appointment confirmed",
		Body:    "See you at 09:00.",
	})
	require.NoError(t, err)

	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, "CareBridge Telehealth <noreply@carebridge.test>", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"patient@example.test"}, in.Destination.ToAddresses)
	assert.Equal(t, "Appointment confirmed", aws.ToString(in.Content.Simple.Subject.Data))
	assert.Equal(t, "See you at 09:00.", aws.ToString(in.Content.Simple.Body.Text.Data))
	assert.Nil(t, in.Content.Simple.Body.Html)
}

func TestSESSenderIncludesHTMLWhenProvided(t *testing.T) {
	mock := &mockSES{}
	sender := NewSESSender(mock, SESConfig{FromEmail: "noreply@carebridge.test"}, logging.New("error"))

	err := sender.Send(context.Background(), EmailMessage{
		To:      "patient@example.test",
		Subject: "Appointment confirmed",
		Body:    "See you at 09:00.",
		HTML:    "<p>See you at 09:00.</p>",
	})
	require.NoError(t, err)
	require.Len(t, mock.inputs, 1)
	assert.Equal(t, "<p>See you at 09:00.</p>", aws.ToString(mock.inputs[0].Content.Simple.Body.Html.Data))
}

func TestSESSenderWrapsTransportError(t *testing.T) {
	mock := &mockSES{sendErr: errors.New("throttled")}
	sender := NewSESSender(mock, SESConfig{FromEmail: "noreply@carebridge.test"}, logging.New("error"))

	err := sender.Send(context.Background(), EmailMessage{To: "patient@example.test", Subject: "x"})
	assert.Error(t, err)
}

func TestNewSESSenderRequiresClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}
