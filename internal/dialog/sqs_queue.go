package dialog

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue carries conversation jobs over AWS SQS. LocalStack serves
// the same interface during development.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue wraps the provided SQS client and queue URL.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("dialog: SQS client required")
	}
	if queueURL == "" {
		panic("dialog: SQS queue URL required")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

// Send publishes one serialized conversation job.
func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("dialog: send queue message: %w", err)
	}
	return nil
}

// Receive long-polls for jobs. Batch size and wait are clamped to the
// bounds SQS accepts (1-10 messages, at most 20 seconds).
func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(clamp(maxMessages, 1, 10)),
		WaitTimeSeconds:     int32(clamp(waitSeconds, 0, 20)),
	})
	if err != nil {
		return nil, fmt.Errorf("dialog: receive queue messages: %w", err)
	}

	jobs := make([]queueMessage, 0, len(out.Messages))
	for _, msg := range out.Messages {
		jobs = append(jobs, queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return jobs, nil
}

// Delete acknowledges a processed job.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("dialog: delete queue message: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
