// ABOUTME: Turn orchestrator driving the Idle/Sending state machine per conversation
// ABOUTME: All transcript mutations flow through here - the store records before the agent hears

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/senpai-gateway/internal/agent"
	"github.com/2389/senpai-gateway/internal/auth"
	"github.com/2389/senpai-gateway/internal/reply"
	"github.com/2389/senpai-gateway/internal/session"
	"github.com/2389/senpai-gateway/internal/store"
)

// Submission errors
var (
	// ErrEmptyInput is returned when the trimmed input is empty. Nothing is
	// recorded; the submission is a no-op.
	ErrEmptyInput = errors.New("empty input")

	// ErrConversationBusy is returned while a previous turn for the same
	// conversation is still in flight. Nothing is recorded.
	ErrConversationBusy = errors.New("conversation busy")

	// ErrUnknownMentor is returned for mentor names absent from the registry.
	ErrUnknownMentor = errors.New("unknown mentor")
)

const (
	// maxTitleRunes is where auto-derived titles get truncated.
	maxTitleRunes = 20

	titleEllipsis = "..."
)

// ConversationStore defines what the orchestrator needs from storage.
type ConversationStore interface {
	Create(ctx context.Context, id, title string) (*store.Conversation, error)
	Append(ctx context.Context, id string, msg store.Message) error
	Rename(ctx context.Context, id, title string) error
	Find(ctx context.Context, id string) (*store.Conversation, error)
	List(ctx context.Context) []*store.Conversation
	Search(ctx context.Context, term string) []*store.Conversation
	BeginTurn(ctx context.Context, id string) error
	EndTurn(ctx context.Context, id string) error
}

// Service is the turn orchestrator. It owns every write to the conversation
// store and drives the agent transport through the session builder and the
// reply normalizer.
type Service struct {
	store         ConversationStore
	invoker       agent.Invoker
	creds         auth.Provider
	sessions      *session.Builder
	mentors       map[string]Mentor
	broadcaster   *Broadcaster
	invokeTimeout time.Duration
	logger        *slog.Logger
}

// Options configures a Service. Store, Invoker, Credentials and at least one
// mentor are required.
type Options struct {
	Store       ConversationStore
	Invoker     agent.Invoker
	Credentials auth.Provider
	Sessions    *session.Builder
	Mentors     []Mentor
	Broadcaster *Broadcaster

	// InvokeTimeout bounds a single transport call. Zero means no bound
	// beyond the caller's context.
	InvokeTimeout time.Duration

	Logger *slog.Logger
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Invoker == nil {
		return nil, errors.New("invoker is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential provider is required")
	}
	if len(opts.Mentors) == 0 {
		return nil, errors.New("at least one mentor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewBuilder(0)
	}

	mentors := make(map[string]Mentor, len(opts.Mentors))
	for _, m := range opts.Mentors {
		if m.Name == "" {
			return nil, errors.New("mentor with empty name")
		}
		mentors[m.Name] = m
	}

	return &Service{
		store:         opts.Store,
		invoker:       opts.Invoker,
		creds:         opts.Credentials,
		sessions:      sessions,
		mentors:       mentors,
		broadcaster:   opts.Broadcaster,
		invokeTimeout: opts.InvokeTimeout,
		logger:        logger.With("component", "conversation"),
	}, nil
}

// SubmitRequest is one user submission.
type SubmitRequest struct {
	// ConversationID selects an existing conversation. Empty means start a
	// new one.
	ConversationID string

	// Mentor names the target mentor domain. Empty means general chat.
	Mentor string

	// Text is the user's input; it is trimmed before any other handling.
	Text string

	// ContextTag optionally labels the submission (selected role, selected
	// emotion) to steer the prompt.
	ContextTag string

	// Progress, when set, is called synchronously as the turn advances:
	// once when the turn slot is taken, once after the user message is
	// recorded, and once after the agent message is recorded. Callers use
	// it to stream the turn instead of waiting for the full result.
	Progress func(TurnUpdate)
}

// Turn phases reported through SubmitRequest.Progress.
const (
	PhaseStarted = "started"
	PhaseUser    = "user"
	PhaseAgent   = "agent"
)

// TurnUpdate reports one phase of a turn in flight.
type TurnUpdate struct {
	Phase          string
	ConversationID string
	Message        *store.Message // set for PhaseUser and PhaseAgent
	Fallback       bool           // set for PhaseAgent
}

// SubmitResult reports one completed turn. Every accepted submission yields
// exactly one user message and exactly one agent message, fallback included.
type SubmitResult struct {
	ConversationID string
	UserMessage    store.Message
	AgentMessage   store.Message

	// Fallback is true when the agent message is the user-safe substitute
	// for a failed call.
	Fallback bool
}

// Submit runs one turn: record the user message, call the agent once, record
// the reply or the fallback. The conversation always returns to Idle.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	res, _, err := s.submit(ctx, req)
	return res, err
}

// QuizResult is a turn whose reply was additionally decoded as a quiz.
type QuizResult struct {
	SubmitResult

	// Quiz is the decoded payload. Empty (never nil slices) when decoding
	// degraded or the turn fell back.
	Quiz reply.QuizPayload
}

// GenerateQuiz runs a turn against the learning mentor (unless the request
// names another) and decodes the structured quiz payload from the raw reply.
// Decode failures degrade to an empty payload; the turn itself still counts.
func (s *Service) GenerateQuiz(ctx context.Context, req *SubmitRequest) (*QuizResult, error) {
	if req.Mentor == "" {
		r := *req
		r.Mentor = MentorLearning
		req = &r
	}
	res, raw, err := s.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return &QuizResult{SubmitResult: *res, Quiz: reply.DecodeQuiz(raw)}, nil
}

func (s *Service) submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, "", ErrEmptyInput
	}

	mentor, ok := s.mentors[mentorName(req.Mentor)]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownMentor, req.Mentor)
	}

	conversationID := req.ConversationID
	isNew := conversationID == ""
	if isNew {
		conversationID = uuid.New().String()
	}

	// Resolve or create the conversation, then take the turn slot. The
	// title decision needs the pre-append view of the conversation.
	var retitle bool
	if isNew {
		if _, err := s.store.Create(ctx, conversationID, deriveTitle(text)); err != nil {
			return nil, "", err
		}
	} else {
		conv, err := s.store.Find(ctx, conversationID)
		if err != nil {
			return nil, "", err
		}
		retitle = conv.Title == store.DefaultTitle || len(conv.Messages) == 0
	}

	if err := s.store.BeginTurn(ctx, conversationID); err != nil {
		if errors.Is(err, store.ErrTurnInFlight) {
			s.logger.Debug("submission rejected, turn in flight", "conversation_id", conversationID)
			return nil, "", ErrConversationBusy
		}
		return nil, "", err
	}
	defer func() {
		if err := s.store.EndTurn(ctx, conversationID); err != nil {
			s.logger.Error("failed to end turn", "conversation_id", conversationID, "error", err)
		}
	}()

	if req.Progress != nil {
		req.Progress(TurnUpdate{Phase: PhaseStarted, ConversationID: conversationID})
	}

	if retitle {
		if err := s.store.Rename(ctx, conversationID, deriveTitle(text)); err != nil {
			return nil, "", err
		}
	}

	// Record the user message before the outbound call so transcript order
	// holds even when the transport is slow.
	userMsg := store.Message{
		ID:         uuid.New().String(),
		Sender:     store.SenderUser,
		Text:       text,
		ContextTag: req.ContextTag,
		Timestamp:  time.Now(),
	}
	if err := s.store.Append(ctx, conversationID, userMsg); err != nil {
		return nil, "", err
	}
	s.publishMessage(conversationID, userMsg)
	if req.Progress != nil {
		req.Progress(TurnUpdate{Phase: PhaseUser, ConversationID: conversationID, Message: &userMsg})
	}

	s.logger.Debug("user message recorded",
		"conversation_id", conversationID,
		"message_id", userMsg.ID,
		"mentor", mentor.Name)

	raw, invokeErr := s.invoke(ctx, mentor, conversationID, text, req.ContextTag)

	agentMsg := store.Message{
		ID:        uuid.New().String(),
		Sender:    store.SenderAgent,
		Timestamp: time.Now(),
	}
	fallback := false
	if invokeErr != nil {
		// The transcript gets the safe wording; the detail stays in the log.
		s.logger.Warn("turn failed, substituting fallback reply",
			"conversation_id", conversationID,
			"mentor", mentor.Name,
			"error", invokeErr)
		agentMsg.Text = mentor.Fallback()
		fallback = true
		raw = ""
	} else {
		agentMsg.Text = reply.CleanDisplayText(raw)
	}
	if err := s.store.Append(ctx, conversationID, agentMsg); err != nil {
		return nil, "", err
	}
	s.publishMessage(conversationID, agentMsg)
	if req.Progress != nil {
		req.Progress(TurnUpdate{Phase: PhaseAgent, ConversationID: conversationID, Message: &agentMsg, Fallback: fallback})
	}

	return &SubmitResult{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		AgentMessage:   agentMsg,
		Fallback:       fallback,
	}, raw, nil
}

// invoke acquires credentials and performs the single transport attempt.
func (s *Service) invoke(ctx context.Context, mentor Mentor, conversationID, text, tag string) (string, error) {
	// Credentials are short-lived; acquire immediately before the call.
	if _, err := s.creds.Credentials(ctx); err != nil {
		return "", err
	}

	if s.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.invokeTimeout)
		defer cancel()
	}

	return s.invoker.Invoke(ctx, &agent.InvokeRequest{
		Endpoint:     mentor.Endpoint,
		SessionToken: s.sessions.Token("session", conversationID, time.Now()),
		Prompt:       mentor.Prompt(tag, text),
	})
}

// Rename sets a conversation title on the user's behalf. Empty titles are
// ignored by the store; a successful rename pins the title against future
// auto-titling.
func (s *Service) Rename(ctx context.Context, conversationID, title string) error {
	if err := s.store.Rename(ctx, conversationID, title); err != nil {
		return err
	}
	if t := strings.TrimSpace(title); t != "" && s.broadcaster != nil {
		s.broadcaster.Publish(&Event{
			Type:           EventRenamed,
			ConversationID: conversationID,
			Title:          t,
		})
	}
	return nil
}

// Conversations returns read-only snapshots, most recently created first.
func (s *Service) Conversations(ctx context.Context) []*store.Conversation {
	return s.store.List(ctx)
}

// Conversation returns a read-only snapshot of one conversation.
func (s *Service) Conversation(ctx context.Context, id string) (*store.Conversation, error) {
	return s.store.Find(ctx, id)
}

// Search returns snapshots of conversations matching term.
func (s *Service) Search(ctx context.Context, term string) []*store.Conversation {
	return s.store.Search(ctx, term)
}

func (s *Service) publishMessage(conversationID string, msg store.Message) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(&Event{
		Type:           EventMessage,
		ConversationID: conversationID,
		Message:        &msg,
	})
}

func mentorName(name string) string {
	if name == "" {
		return MentorGeneral
	}
	return name
}

// deriveTitle truncates a first message into a short display title.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTitleRunes {
		return text
	}
	return string(runes[:maxTitleRunes]) + titleEllipsis
}
