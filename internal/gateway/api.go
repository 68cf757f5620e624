// ABOUTME: HTTP API handlers for the conversation surface.
// ABOUTME: Provides send/quiz/search endpoints plus per-conversation sub-routes.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/senpai-gateway/internal/conversation"
	"github.com/2389/senpai-gateway/internal/store"
)

// SendRequest is the JSON request body for POST /api/send and POST /api/quiz.
type SendRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Mentor         string `json:"mentor,omitempty"`
	Text           string `json:"text"`
	ContextTag     string `json:"context_tag,omitempty"`
}

// RenameRequest is the JSON request body for POST /api/conversations/{id}/rename.
type RenameRequest struct {
	Title string `json:"title"`
}

// MessageResponse is the JSON shape of one transcript message.
type MessageResponse struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	Text       string `json:"text"`
	ContextTag string `json:"context_tag,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// ConversationSummary is the JSON shape for conversation listings.
type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	State        string `json:"state"`
	LastActivity string `json:"last_activity"`
	MessageCount int    `json:"message_count"`
}

// ListConversationsResponse is the JSON response for GET /api/conversations
// and GET /api/search.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// ConversationMessagesResponse is the JSON response for
// GET /api/conversations/{id}/messages.
type ConversationMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Title          string            `json:"title"`
	Messages       []MessageResponse `json:"messages"`
}

// QuizResponse is the JSON response for POST /api/quiz.
type QuizResponse struct {
	ConversationID string          `json:"conversation_id"`
	UserMessage    MessageResponse `json:"user_message"`
	AgentMessage   MessageResponse `json:"agent_message"`
	Fallback       bool            `json:"fallback"`

	Questions    []string            `json:"questions"`
	Selects      []map[string]string `json:"selects,omitempty"`
	Answers      []string            `json:"answers"`
	Explanations []string            `json:"explanations,omitempty"`
}

// handleSend handles POST /api/send requests.
// It accepts a JSON body with the submission and streams the turn via SSE
// as it advances: a "started" event with the conversation ID, the recorded
// "user" and "agent" messages, then "done". Each event is flushed when its
// phase completes, so "started" and "user" arrive before the agent replies.
func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseSendRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before the turn runs (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// SSE headers go out with the first event, so turn-setup errors can
	// still map to plain HTTP statuses.
	streaming := false
	writeEvent := func(event string, data interface{}) {
		if !streaming {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("X-Accel-Buffering", "no")
			streaming = true
		}
		g.writeSSEEvent(w, event, data)
		flusher.Flush()
	}

	_, err = g.conversation.Submit(r.Context(), &conversation.SubmitRequest{
		ConversationID: req.ConversationID,
		Mentor:         req.Mentor,
		Text:           req.Text,
		ContextTag:     req.ContextTag,
		Progress: func(u conversation.TurnUpdate) {
			switch u.Phase {
			case conversation.PhaseStarted:
				writeEvent("started", map[string]string{"conversation_id": u.ConversationID})
			case conversation.PhaseUser:
				writeEvent("user", messageToResponse(*u.Message))
			case conversation.PhaseAgent:
				writeEvent("agent", map[string]interface{}{
					"message":  messageToResponse(*u.Message),
					"fallback": u.Fallback,
				})
			}
		},
	})
	if err != nil {
		if !streaming {
			g.sendSubmitError(w, err)
			return
		}
		g.logger.Error("submit failed mid-stream", "error", err)
		writeEvent("error", map[string]string{"error": "internal server error"})
		return
	}

	writeEvent("done", map[string]string{})
}

// handleQuiz handles POST /api/quiz requests.
// Runs a turn against the learning mentor (unless overridden) and returns
// the decoded quiz payload alongside the recorded messages.
func (g *Gateway) handleQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseSendRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := g.conversation.GenerateQuiz(r.Context(), &conversation.SubmitRequest{
		ConversationID: req.ConversationID,
		Mentor:         req.Mentor,
		Text:           req.Text,
		ContextTag:     req.ContextTag,
	})
	if err != nil {
		g.sendSubmitError(w, err)
		return
	}

	response := QuizResponse{
		ConversationID: res.ConversationID,
		UserMessage:    messageToResponse(res.UserMessage),
		AgentMessage:   messageToResponse(res.AgentMessage),
		Fallback:       res.Fallback,
		Questions:      res.Quiz.Questions,
		Selects:        res.Quiz.Selects,
		Answers:        res.Quiz.Answers,
		Explanations:   res.Quiz.Explanations,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleListConversations handles GET /api/conversations requests.
// Returns conversation summaries, most recently created first.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	g.writeConversationList(w, g.conversation.Conversations(r.Context()))
}

// handleSearch handles GET /api/search?q=term requests.
// An empty term matches every conversation.
func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	term := r.URL.Query().Get("q")
	g.writeConversationList(w, g.conversation.Search(r.Context(), term))
}

// handleConversationRoutes dispatches /api/conversations/{id}/{action} requests.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	conversationID, action, _ := strings.Cut(rest, "/")
	if conversationID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	switch action {
	case "messages":
		g.handleConversationMessages(w, r, conversationID)
	case "rename":
		g.handleRename(w, r, conversationID)
	case "events":
		g.handleConversationEvents(w, r, conversationID)
	case "transcript":
		g.handleTranscript(w, r, conversationID)
	default:
		g.sendJSONError(w, http.StatusNotFound, "unknown conversation route")
	}
}

// handleConversationMessages handles GET /api/conversations/{id}/messages.
// Returns the transcript in order, optionally trimmed to the last ?limit=N.
func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request, conversationID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conv, err := g.conversation.Conversation(r.Context(), conversationID)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to get conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	messages := conv.Messages
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if len(messages) > limit {
			messages = messages[len(messages)-limit:]
		}
	}

	response := ConversationMessagesResponse{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Messages:       make([]MessageResponse, len(messages)),
	}
	for i, msg := range messages {
		response.Messages[i] = messageToResponse(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRename handles POST /api/conversations/{id}/rename.
// Empty titles are ignored without error, matching the store's behavior.
func (g *Gateway) handleRename(w http.ResponseWriter, r *http.Request, conversationID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := g.conversation.Rename(r.Context(), conversationID, req.Title)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		g.logger.Error("failed to rename conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleConversationEvents handles GET /api/conversations/{id}/events.
// Streams appended messages and renames for the conversation as SSE until
// the client disconnects.
func (g *Gateway) handleConversationEvents(w http.ResponseWriter, r *http.Request, conversationID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if g.broadcaster == nil {
		g.sendJSONError(w, http.StatusServiceUnavailable, "event streaming not enabled")
		return
	}

	if _, err := g.conversation.Conversation(r.Context(), conversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		g.logger.Error("failed to get conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, subID := g.broadcaster.Subscribe(r.Context(), conversationID)
	defer g.broadcaster.Unsubscribe(conversationID, subID)

	g.writeSSEEvent(w, "subscribed", map[string]string{"conversation_id": conversationID})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			g.writeSSEEvent(w, ev.Type, ev)
			flusher.Flush()
		}
	}
}

// sendSubmitError maps orchestrator errors onto HTTP statuses.
func (g *Gateway) sendSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		g.sendJSONError(w, http.StatusBadRequest, "text is required")
	case errors.Is(err, conversation.ErrUnknownMentor):
		g.sendJSONError(w, http.StatusBadRequest, "unknown mentor")
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, conversation.ErrConversationBusy):
		g.sendJSONError(w, http.StatusConflict, "conversation busy")
	default:
		g.logger.Error("submit failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeConversationList writes conversation summaries as JSON.
func (g *Gateway) writeConversationList(w http.ResponseWriter, convs []*store.Conversation) {
	response := ListConversationsResponse{
		Conversations: make([]ConversationSummary, len(convs)),
	}
	for i, conv := range convs {
		response.Conversations[i] = ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			State:        string(conv.State),
			LastActivity: conv.LastActivity.Format(time.RFC3339),
			MessageCount: len(conv.Messages),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// messageToResponse converts a stored message to its JSON shape.
func messageToResponse(msg store.Message) MessageResponse {
	return MessageResponse{
		ID:         msg.ID,
		Sender:     string(msg.Sender),
		Text:       msg.Text,
		ContextTag: msg.ContextTag,
		Timestamp:  msg.Timestamp.Format(time.RFC3339),
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseSendRequest parses and validates a SendRequest from the given reader.
// Returns an error if the JSON is invalid or the text field is missing.
func parseSendRequest(r io.Reader) (*SendRequest, error) {
	var req SendRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("text is required")
	}

	return &req, nil
}
