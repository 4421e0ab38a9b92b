package dialog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docadesk/booking-ai-platform/pkg/logging"
)

type errService struct {
	err error
}

func (s errService) StartConversation(context.Context, StartRequest) (*Response, error) {
	return nil, s.err
}

func (s errService) ProcessMessage(context.Context, MessageRequest) (*Response, error) {
	return nil, s.err
}

func TestHandlerStart(t *testing.T) {
	h := NewHandler(echoService{}, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/conversations/start", nil)
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"new"`)
}

func TestHandlerMessage(t *testing.T) {
	h := NewHandler(echoService{}, logging.Default())

	body := strings.NewReader(`{"session_id":"s1","text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/message", body)
	rec := httptest.NewRecorder()
	h.Message(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"hello"`)
}

func TestHandlerMessageWithoutSession(t *testing.T) {
	h := NewHandler(echoService{}, logging.Default())

	// No session_id in the body: the service starts a fresh session
	// rather than rejecting the turn.
	req := httptest.NewRequest(http.MethodPost, "/conversations/message", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.Message(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"hi"`)
}

func TestHandlerMessageServiceFailure(t *testing.T) {
	h := NewHandler(errService{err: assert.AnError}, logging.Default())

	body := strings.NewReader(`{"session_id":"s1","text":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/message", body)
	rec := httptest.NewRecorder()
	h.Message(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerMessageBadJSON(t *testing.T) {
	h := NewHandler(echoService{}, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.Message(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
