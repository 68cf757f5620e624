// ABOUTME: HTML transcript export for conversations.
// ABOUTME: Renders the transcript as markdown and converts it with goldmark.

package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/senpai-gateway/internal/store"
)

var transcriptMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

var transcriptPage = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}</body>
</html>
`))

// handleTranscript handles GET /api/conversations/{id}/transcript.
// Returns the conversation rendered as a standalone HTML page. Agent replies
// are markdown and render as such; user messages are quoted verbatim.
func (g *Gateway) handleTranscript(w http.ResponseWriter, r *http.Request, conversationID string) {
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

	body, err := renderTranscriptHTML(conv)
	if err != nil {
		g.logger.Error("failed to render transcript", "error", err, "conversation_id", conversationID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

// renderTranscriptHTML builds the transcript markdown and converts it to a
// full HTML document.
func renderTranscriptHTML(conv *store.Conversation) ([]byte, error) {
	md := transcriptToMarkdown(conv)

	var rendered bytes.Buffer
	if err := transcriptMarkdown.Convert([]byte(md), &rendered); err != nil {
		return nil, fmt.Errorf("converting transcript markdown: %w", err)
	}

	data := struct {
		Title string
		Body  template.HTML
	}{
		Title: conv.Title,
		Body:  template.HTML(rendered.String()),
	}

	var page bytes.Buffer
	if err := transcriptPage.Execute(&page, data); err != nil {
		return nil, fmt.Errorf("rendering transcript page: %w", err)
	}
	return page.Bytes(), nil
}

// transcriptToMarkdown flattens a conversation into a markdown document.
func transcriptToMarkdown(conv *store.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", conv.Title)

	for _, msg := range conv.Messages {
		label := "Mentor"
		if msg.Sender == store.SenderUser {
			label = "You"
		}
		fmt.Fprintf(&b, "**%s** (%s):\n\n", label, msg.Timestamp.Format(time.RFC3339))
		if msg.ContextTag != "" {
			fmt.Fprintf(&b, "_%s_\n\n", msg.ContextTag)
		}
		b.WriteString(msg.Text)
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}
