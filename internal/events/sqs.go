package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// sqsAPI is the subset of the SQS client used by SQSEmitter.
type sqsAPI interface {
	SendMessage(context.Context, *sqs.SendMessageInput, ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSEmitter publishes appointment events to an SQS queue, one JSON envelope
// per message.
type SQSEmitter struct {
	client   sqsAPI
	queueURL string
}

// NewSQSEmitter creates an emitter for the given queue.
func NewSQSEmitter(client sqsAPI, queueURL string) *SQSEmitter {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	return &SQSEmitter{client: client, queueURL: queueURL}
}

var _ Emitter = (*SQSEmitter)(nil)

func (e *SQSEmitter) Emit(ctx context.Context, eventType string, appointment any) error {
	evt, err := NewAppointmentEvent(eventType, appointment)
	if err != nil {
		return err
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	_, err = e.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(e.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("events: send %s: %w", eventType, err)
	}
	return nil
}
