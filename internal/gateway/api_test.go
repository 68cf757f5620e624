// ABOUTME: Tests for the HTTP API handlers
// ABOUTME: Exercises send/quiz/search, conversation sub-routes, and SSE streams

package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/senpai-gateway/internal/agent"
	"github.com/2389/senpai-gateway/internal/auth"
	"github.com/2389/senpai-gateway/internal/config"
	"github.com/2389/senpai-gateway/internal/conversation"
	"github.com/2389/senpai-gateway/internal/store"
)

type stubInvoker struct {
	response string
	err      error
}

func (s *stubInvoker) Invoke(ctx context.Context, req *agent.InvokeRequest) (string, error) {
	return s.response, s.err
}

// blockingInvoker holds the agent call open until release is closed.
type blockingInvoker struct {
	response string
	release  chan struct{}
}

func (b *blockingInvoker) Invoke(ctx context.Context, req *agent.InvokeRequest) (string, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return b.response, nil
}

type stubCreds struct {
	err error
}

func (s *stubCreds) Credentials(ctx context.Context) (auth.Credentials, error) {
	if s.err != nil {
		return auth.Credentials{}, s.err
	}
	return auth.Credentials{AccessKeyID: "AKID"}, nil
}

type testGateway struct {
	gw      *Gateway
	store   *store.MemoryStore
	service *conversation.Service
}

func newTestGateway(t *testing.T, invoker agent.Invoker) *testGateway {
	t.Helper()

	st := store.NewMemoryStore()
	broadcaster := conversation.NewBroadcaster(nil)
	t.Cleanup(broadcaster.Close)

	svc, err := conversation.New(conversation.Options{
		Store:       st,
		Invoker:     invoker,
		Credentials: &stubCreds{},
		Broadcaster: broadcaster,
		Mentors: []conversation.Mentor{
			{Name: conversation.MentorGeneral, Endpoint: "arn:general"},
			{Name: conversation.MentorLearning, Endpoint: "arn:learning"},
		},
	})
	require.NoError(t, err)

	gw, err := New(Options{
		Config:       &config.Config{Server: config.ServerConfig{HTTPAddr: ":0"}},
		Conversation: svc,
		Broadcaster:  broadcaster,
		Credentials:  &stubCreds{},
	})
	require.NoError(t, err)

	return &testGateway{gw: gw, store: st, service: svc}
}

func (tg *testGateway) request(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	tg.gw.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleSend_StreamsTurnEvents(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "Hello back"})

	rec := tg.request(t, http.MethodPost, "/api/send", SendRequest{Text: "Hello"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: started")
	assert.Contains(t, body, "event: user")
	assert.Contains(t, body, "event: agent")
	assert.Contains(t, body, "event: done")
	assert.Contains(t, body, "Hello back")
}

func TestHandleSend_EmptyText(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodPost, "/api/send", SendRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSend_InvalidJSON(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	tg.gw.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSend_UnknownMentor(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodPost, "/api/send", SendRequest{Text: "hi", Mentor: "astrology"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSend_StaleConversation(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodPost, "/api/send", SendRequest{ConversationID: "missing", Text: "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSend_BusyConversation(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "ok"})
	ctx := context.Background()

	_, err := tg.store.Create(ctx, "c1", "taken")
	require.NoError(t, err)
	require.NoError(t, tg.store.BeginTurn(ctx, "c1"))

	rec := tg.request(t, http.MethodPost, "/api/send", SendRequest{ConversationID: "c1", Text: "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleSend_MethodNotAllowed(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodGet, "/api/send", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleQuiz(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: `{"questions":["What is a goroutine?"],"answers":["a"]}`})

	rec := tg.request(t, http.MethodPost, "/api/quiz", SendRequest{Text: "quiz me on Go"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QuizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "What is a goroutine?", resp.Questions[0])
	assert.False(t, resp.Fallback)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestHandleQuiz_UndecodableReply(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "plain prose"})

	rec := tg.request(t, http.MethodPost, "/api/quiz", SendRequest{Text: "quiz me"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QuizResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Questions)
	assert.Equal(t, "plain prose", resp.AgentMessage.Text)
}

func TestHandleListConversations(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})

	rec := tg.request(t, http.MethodPost, "/api/send", SendRequest{Text: "first conversation"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = tg.request(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, "first conversation", resp.Conversations[0].Title)
	assert.Equal(t, 2, resp.Conversations[0].MessageCount)
	assert.Equal(t, "idle", resp.Conversations[0].State)
}

func TestHandleConversationMessages(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})

	res, err := tg.service.Submit(context.Background(), &conversation.SubmitRequest{Text: "hello"})
	require.NoError(t, err)

	rec := tg.request(t, http.MethodGet, "/api/conversations/"+res.ConversationID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConversationMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Sender)
	assert.Equal(t, "agent", resp.Messages[1].Sender)
}

func TestHandleConversationMessages_Limit(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})

	res, err := tg.service.Submit(context.Background(), &conversation.SubmitRequest{Text: "hello"})
	require.NoError(t, err)

	rec := tg.request(t, http.MethodGet, "/api/conversations/"+res.ConversationID+"/messages?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConversationMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	// The limit keeps the most recent messages.
	assert.Equal(t, "agent", resp.Messages[0].Sender)
}

func TestHandleConversationMessages_NotFound(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodGet, "/api/conversations/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRename(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})

	res, err := tg.service.Submit(context.Background(), &conversation.SubmitRequest{Text: "hello"})
	require.NoError(t, err)

	rec := tg.request(t, http.MethodPost, "/api/conversations/"+res.ConversationID+"/rename", RenameRequest{Title: "Renamed"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	conv, err := tg.service.Conversation(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", conv.Title)
}

func TestHandleRename_NotFound(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodPost, "/api/conversations/missing/rename", RenameRequest{Title: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSearch(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})
	ctx := context.Background()

	_, err := tg.service.Submit(ctx, &conversation.SubmitRequest{Text: "Help me plan a presentation for the board meeting"})
	require.NoError(t, err)
	_, err = tg.service.Submit(ctx, &conversation.SubmitRequest{Text: "Grocery list ideas"})
	require.NoError(t, err)

	rec := tg.request(t, http.MethodGet, "/api/search?q=board", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conversations, 1)
	assert.Contains(t, resp.Conversations[0].Title, "Help me plan")
}

func TestHandleTranscript(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "Here is **bold** advice"})

	res, err := tg.service.Submit(context.Background(), &conversation.SubmitRequest{Text: "advise me"})
	require.NoError(t, err)

	rec := tg.request(t, http.MethodGet, "/api/conversations/"+res.ConversationID+"/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "advise me")
	assert.Contains(t, body, "<strong>bold</strong>")
}

func TestHandleTranscript_EscapesTitle(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})

	res, err := tg.service.Submit(context.Background(), &conversation.SubmitRequest{Text: "hello"})
	require.NoError(t, err)

	err = tg.service.Rename(context.Background(), res.ConversationID, `</title><script>alert(1)</script>`)
	require.NoError(t, err)

	rec := tg.request(t, http.MethodGet, "/api/conversations/"+res.ConversationID+"/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;alert(1)&lt;/script&gt;")
}

func TestHandleUnknownConversationRoute(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodGet, "/api/conversations/c1/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_NoCredentials(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})
	tg.gw.creds = &stubCreds{err: auth.ErrUnauthenticated}

	rec := tg.request(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleConversationEvents_Stream(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{response: "reply"})

	res, err := tg.service.Submit(context.Background(), &conversation.SubmitRequest{Text: "hello"})
	require.NoError(t, err)

	srv := httptest.NewServer(tg.gw.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/conversations/%s/events", srv.URL, res.ConversationID), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	scanner := bufio.NewScanner(resp.Body)
	waitForLine := func(substr string) {
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before seeing %q", substr)
	}

	waitForLine("event: subscribed")

	require.NoError(t, tg.service.Rename(ctx, res.ConversationID, "Live title"))
	waitForLine("event: renamed")
	waitForLine("Live title")
}

func TestHandleSend_StreamsProgressively(t *testing.T) {
	invoker := &blockingInvoker{response: "eventual reply", release: make(chan struct{})}
	tg := newTestGateway(t, invoker)

	srv := httptest.NewServer(tg.gw.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(SendRequest{Text: "take your time"})
	require.NoError(t, err)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/send", bytes.NewReader(payload))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	waitForLine := func(substr string) {
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before seeing %q", substr)
	}

	// started and user must arrive while the agent call is still in flight
	waitForLine("event: started")
	waitForLine("event: user")

	close(invoker.release)
	waitForLine("event: agent")
	waitForLine("eventual reply")
	waitForLine("event: done")
}

func TestHandleConversationEvents_NotFound(t *testing.T) {
	tg := newTestGateway(t, &stubInvoker{})

	rec := tg.request(t, http.MethodGet, "/api/conversations/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
