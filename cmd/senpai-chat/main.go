// ABOUTME: Terminal chat client for senpai-gateway via the HTTP API.
// ABOUTME: Provides readline-style input with SSE streaming of each turn.

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
)

// sendRequest is the JSON body sent to POST /api/send and POST /api/quiz.
type sendRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Mentor         string `json:"mentor,omitempty"`
	Text           string `json:"text"`
	ContextTag     string `json:"context_tag,omitempty"`
}

// conversationSummary is one entry from GET /api/conversations.
type conversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	State        string `json:"state"`
	LastActivity string `json:"last_activity"`
	MessageCount int    `json:"message_count"`
}

type conversationList struct {
	Conversations []conversationSummary `json:"conversations"`
}

// quizResponse is the JSON body from POST /api/quiz.
type quizResponse struct {
	ConversationID string              `json:"conversation_id"`
	Fallback       bool                `json:"fallback"`
	Questions      []string            `json:"questions"`
	Selects        []map[string]string `json:"selects"`
	Answers        []string            `json:"answers"`
	Explanations   []string            `json:"explanations"`
}

// session is the client's mutable chat state.
type session struct {
	server         string
	conversationID string
	mentor         string
	contextTag     string
}

func main() {
	configPath := flag.String("config", defaultConfigPath(), "Config file path")
	server := flag.String("server", "", "Gateway server URL (overrides config)")
	mentor := flag.String("mentor", "", "Mentor domain (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Gateway.URL = *server
	}
	if *mentor != "" {
		cfg.Chat.Mentor = *mentor
	}

	fmt.Printf("senpai-chat connected to %s\n", cfg.Gateway.URL)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s := &session{
		server:     cfg.Gateway.URL,
		mentor:     cfg.Chat.Mentor,
		contextTag: cfg.Chat.ContextTag,
	}
	if err := s.run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

func (s *session) run(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		// Print prompt (include mentor if one is selected)
		if s.mentor != "" {
			fmt.Printf("[%s]> ", s.mentor)
		} else {
			fmt.Print("> ")
		}

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if s.handleCommand(ctx, input) {
			fmt.Println()
			continue
		}

		// Send message and stream the turn
		if err := s.send(ctx, input); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
		fmt.Println()
	}
}

// handleCommand dispatches slash commands. Returns false for plain messages.
func (s *session) handleCommand(ctx context.Context, input string) bool {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch cmd {
	case "/help":
		printHelp()
	case "/list":
		if err := s.listConversations(ctx, ""); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	case "/search":
		if err := s.listConversations(ctx, args); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	case "/open":
		if args == "" {
			s.conversationID = ""
			fmt.Println("Starting a new conversation on the next message")
		} else {
			s.conversationID = args
			fmt.Printf("Continuing conversation %s\n", args)
		}
	case "/mentor":
		s.mentor = args
		if args == "" {
			fmt.Println("Cleared mentor selection, using general chat")
		} else {
			fmt.Printf("Now talking to the %s mentor\n", args)
		}
	case "/tag":
		s.contextTag = args
		if args == "" {
			fmt.Println("Cleared context tag")
		} else {
			fmt.Printf("Tagging messages with %q\n", args)
		}
	case "/rename":
		if err := s.rename(ctx, args); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	case "/quiz":
		if err := s.quiz(ctx, args); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
	default:
		if strings.HasPrefix(cmd, "/") {
			fmt.Printf("Unknown command %s (try /help)\n", cmd)
			return true
		}
		return false
	}
	return true
}

// printHelp displays available commands.
func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /list             List conversations")
	fmt.Println("  /search <term>    Search conversations by title or text")
	fmt.Println("  /open <id>        Continue an existing conversation")
	fmt.Println("  /open             Start a new conversation")
	fmt.Println("  /mentor <name>    Talk to a mentor (learning, communication, counseling)")
	fmt.Println("  /tag <label>      Attach a context tag (role, emotion) to messages")
	fmt.Println("  /rename <title>   Rename the current conversation")
	fmt.Println("  /quiz <prompt>    Generate a quiz from the learning mentor")
	fmt.Println("  /help             Show this help")
	fmt.Println("  /quit             Exit")
}

// listConversations fetches and displays conversations, optionally filtered.
func (s *session) listConversations(ctx context.Context, term string) error {
	endpoint := s.server + "/api/conversations"
	if term != "" {
		endpoint = s.server + "/api/search?q=" + url.QueryEscape(term)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching conversations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var list conversationList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if len(list.Conversations) == 0 {
		fmt.Println("No conversations")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	for _, c := range list.Conversations {
		marker := "  "
		if c.ID == s.conversationID {
			marker = "* "
		}
		fmt.Printf("%s%s", marker, c.Title)
		gray.Printf("  (%s, %d messages)\n", c.ID, c.MessageCount)
	}
	return nil
}

// rename renames the current conversation.
func (s *session) rename(ctx context.Context, title string) error {
	if s.conversationID == "" {
		return fmt.Errorf("no conversation open (send a message first)")
	}
	if title == "" {
		return fmt.Errorf("usage: /rename <title>")
	}

	body, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/conversations/%s/rename", s.server, s.conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("renaming: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	fmt.Printf("Renamed to %q\n", title)
	return nil
}

// quiz requests a quiz turn and prints the decoded questions.
func (s *session) quiz(ctx context.Context, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("usage: /quiz <prompt>")
	}

	body, err := json.Marshal(sendRequest{
		ConversationID: s.conversationID,
		Text:           prompt,
		ContextTag:     s.contextTag,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.server+"/api/quiz", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	var quiz quizResponse
	if err := json.NewDecoder(resp.Body).Decode(&quiz); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	s.conversationID = quiz.ConversationID

	if quiz.Fallback {
		fmt.Println("The mentor is unreachable right now; try again shortly.")
		return nil
	}
	if len(quiz.Questions) == 0 {
		fmt.Println("The mentor's reply did not contain a quiz.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	for i, q := range quiz.Questions {
		cyan.Printf("Q%d: ", i+1)
		fmt.Println(q)
		if i < len(quiz.Selects) {
			for key, option := range quiz.Selects[i] {
				fmt.Printf("    %s) %s\n", key, option)
			}
		}
		if i < len(quiz.Answers) {
			color.New(color.FgHiBlack).Printf("    answer: %s\n", quiz.Answers[i])
		}
		if i < len(quiz.Explanations) {
			color.New(color.FgHiBlack).Printf("    %s\n", quiz.Explanations[i])
		}
	}
	return nil
}

// send submits a message and streams the SSE turn events.
func (s *session) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendRequest{
		ConversationID: s.conversationID,
		Mentor:         s.mentor,
		Text:           text,
		ContextTag:     s.contextTag,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.server+"/api/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	return s.streamSSE(ctx, resp.Body)
}

// decodeAPIError turns a non-200 JSON response into an error.
func decodeAPIError(resp *http.Response) error {
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			if msg, ok := errResp["error"]; ok {
				return fmt.Errorf("%s", msg)
			}
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

func (s *session) streamSSE(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewScanner(body)

	var eventType string
	var dataLines []string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			if eventType != "" && len(dataLines) > 0 {
				data := strings.Join(dataLines, "\n")
				if err := s.handleSSEEvent(eventType, data); err != nil {
					return err
				}
			}
			eventType = ""
			dataLines = nil
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}

	return scanner.Err()
}

func (s *session) handleSSEEvent(eventType, data string) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return fmt.Errorf("parsing event data: %w", err)
	}

	switch eventType {
	case "started":
		if id, ok := payload["conversation_id"].(string); ok {
			s.conversationID = id
		}

	case "user":
		// Our own message echoed back; nothing to print.

	case "agent":
		msg, _ := payload["message"].(map[string]interface{})
		text, _ := msg["text"].(string)
		if fallback, _ := payload["fallback"].(bool); fallback {
			color.New(color.FgYellow).Println(text)
		} else {
			fmt.Println(text)
		}

	case "done":

	case "error":
		if errMsg, ok := payload["error"].(string); ok {
			fmt.Printf("[error] %s\n", errMsg)
		}

	default:
		fmt.Printf("[%s] %v\n", eventType, payload)
	}

	return nil
}
