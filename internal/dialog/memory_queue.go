package dialog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue keeps conversation jobs in a buffered channel. It stands
// in for SQS when the API runs without AWS, which covers local
// development and most tests.
type MemoryQueue struct {
	jobs chan queueMessage
}

// NewMemoryQueue creates a MemoryQueue with the given buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{jobs: make(chan queueMessage, buffer)}
}

// Send enqueues a job, blocking while the buffer is full.
func (q *MemoryQueue) Send(ctx context.Context, body string) error {
	msg := queueMessage{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}
	select {
	case q.jobs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive waits up to waitSeconds for the first job, then takes
// whatever else is immediately available up to maxMessages.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	wait := ctx
	if waitSeconds > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, time.Duration(waitSeconds)*time.Second)
		defer cancel()
	}

	var first queueMessage
	select {
	case first = <-q.jobs:
	case <-wait.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Long poll elapsed with nothing queued.
		return nil, nil
	}

	batch := append(make([]queueMessage, 0, maxMessages), first)
	for len(batch) < maxMessages {
		select {
		case msg := <-q.jobs:
			batch = append(batch, msg)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Delete is a no-op: receiving from the channel already consumed the job.
func (q *MemoryQueue) Delete(context.Context, string) error {
	return nil
}
