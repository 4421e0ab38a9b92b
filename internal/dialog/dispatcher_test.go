package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docadesk/booking-ai-platform/internal/session"
	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

type echoService struct{}

func (echoService) StartConversation(context.Context, StartRequest) (*Response, error) {
	return &Response{SessionID: "new", Stage: session.StageSymptomsOrDoctor, Reply: "hello"}, nil
}

func (echoService) ProcessMessage(_ context.Context, req MessageRequest) (*Response, error) {
	return &Response{SessionID: req.SessionID, Stage: session.StageDateSelection, Reply: req.Text}, nil
}

func TestDispatcherRoundTrip(t *testing.T) {
	d := NewDispatcher(echoService{}, NewMemoryQueue(8), logging.Default(),
		WithWorkerCount(1), WithReceiveWaitSeconds(1))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.Shutdown(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start, err := d.StartConversation(ctx, StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, "new", start.SessionID)

	resp, err := d.ProcessMessage(ctx, MessageRequest{SessionID: "s1", Text: "next monday"})
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "next monday", resp.Reply)
}

func TestDispatcherShutdown(t *testing.T) {
	d := NewDispatcher(echoService{}, NewMemoryQueue(8), logging.Default(), WithWorkerCount(2))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestDispatcherCallerTimeout(t *testing.T) {
	// No workers consume from this queue, so the caller's context wins.
	d := &Dispatcher{
		processor: echoService{},
		queue:     NewMemoryQueue(1),
		logger:    logging.Default(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.enqueue(ctx, jobTypeMessage, StartRequest{}, MessageRequest{SessionID: "s1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
