package ragservice

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/ragmcp/internal/chat"
)

const chatSourceTextLimit = 200

// Chat answers query grounded in kbName's retrieved passages. If
// kbName is empty and useRouting is set, the Router picks the
// best-matching KB; otherwise an empty kbName is an error.
func (s *Service) Chat(ctx context.Context, kbName, query, sessionID string, topK int, useRouting, useReranking bool) ChatResult {
	if kbName == "" {
		if !useRouting {
			return ChatResult{Success: false, Message: "kb_name is required when auto-routing is disabled"}
		}
		matches, err := s.router.Route(ctx, query, nil, 1, 0)
		if err != nil {
			return ChatResult{Success: false, Message: err.Error()}
		}
		if len(matches) == 0 {
			return ChatResult{Success: false, Message: "no knowledge base matched the query"}
		}
		kbName = matches[0].KBName
	}

	search := s.Search(ctx, kbName, query, topK, useReranking, true)
	if !search.Success {
		return ChatResult{Success: false, KBName: kbName, Message: search.Message}
	}

	contextTexts := make([]string, len(search.Results))
	for i, r := range search.Results {
		contextTexts[i] = r.Content
	}

	resp := s.chatEngine.Chat(ctx, query, chat.ChatOptions{
		Context:   contextTexts,
		SessionID: sessionID,
	})

	sources := make([]ChatSource, len(search.Results))
	for i, r := range search.Results {
		text := r.Content
		if len(text) > chatSourceTextLimit {
			text = text[:chatSourceTextLimit] + "..."
		}
		filename, _ := r.Metadata["filename"].(string)
		page, _ := r.Metadata["page"].(int)
		sources[i] = ChatSource{Text: text, Score: float32(r.Score), Filename: filename, Page: page}
	}

	return ChatResult{
		Success:   true,
		Answer:    resp.Answer,
		KBName:    kbName,
		Sources:   sources,
		SessionID: resp.SessionID,
		Model:     resp.Model,
		Timestamp: resp.Timestamp,
	}
}

// ClearChatHistory forgets sessionID's history. Success reports true
// only if a session was actually present to clear.
func (s *Service) ClearChatHistory(sessionID string) ClearChatHistoryResult {
	cleared := s.chatEngine.ClearHistory(sessionID)
	if !cleared {
		return ClearChatHistoryResult{Success: false, Message: fmt.Sprintf("no active session %q", sessionID)}
	}
	return ClearChatHistoryResult{Success: true, Message: fmt.Sprintf("cleared history for session %q", sessionID)}
}
