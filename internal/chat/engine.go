// Package chat implements the Chat Engine: per-session conversation
// memory, prompt assembly from system prompt + history + retrieved
// context, LLM invocation, and token-budget history trimming.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragmcp/internal/llm"
)

const (
	defaultMemoryTokenLimit = 3000
	charsPerToken           = 4
	maxHistoryTurns         = 10
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Response is the result of a chat call.
type Response struct {
	Answer      string
	Model       string
	ContextUsed []string
	SessionID   string
	Timestamp   time.Time
	Tokens      llm.Usage
}

// Options configures an Engine.
type Options struct {
	SystemPrompt     string
	MemoryTokenLimit int
	ModelName        string
}

// session holds one session's turn history behind its own mutex, so a
// long-running chat call against one session never blocks calls
// against another.
type session struct {
	mu    sync.Mutex
	turns []Turn
}

// Engine maintains per-session turn history and generates answers via
// an llm.Client.
type Engine struct {
	llmClient llm.Client
	opts      Options
	logger    *zap.Logger

	mapMu    sync.Mutex
	sessions map[string]*session
}

// NewEngine creates an Engine.
func NewEngine(llmClient llm.Client, opts Options, logger *zap.Logger) *Engine {
	if opts.MemoryTokenLimit <= 0 {
		opts.MemoryTokenLimit = defaultMemoryTokenLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		llmClient: llmClient,
		opts:      opts,
		logger:    logger,
		sessions:  make(map[string]*session),
	}
}

// sessionFor returns the session state for sessionID, creating it if
// absent.
func (e *Engine) sessionFor(sessionID string) *session {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		s = &session{}
		e.sessions[sessionID] = s
	}
	return s
}

// ChatOptions carries the optional inputs to Chat beyond the query.
type ChatOptions struct {
	Context          []string
	History          []Turn
	SessionID        string
	QAPromptTemplate string
}

// Chat resolves history (session-backed if SessionID is set, else the
// caller-supplied History), builds a prompt, invokes the LLM, appends
// the new turns to the session if any, and trims the session to stay
// under the token budget. Calls sharing a SessionID are serialized
// against each other so history stays linearizable; calls against
// different sessions run concurrently.
func (e *Engine) Chat(ctx context.Context, query string, opts ChatOptions) Response {
	now := time.Now()

	var sess *session
	history := opts.History
	if opts.SessionID != "" {
		sess = e.sessionFor(opts.SessionID)
		sess.mu.Lock()
		defer sess.mu.Unlock()
		history = sess.turns
	}

	prompt := e.buildPrompt(query, opts.Context, history, opts.QAPromptTemplate)

	completion, err := e.llmClient.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		System:   e.opts.SystemPrompt,
	})
	if err != nil {
		e.logger.Error("chat completion failed", zap.Error(err))
		return Response{
			Answer:      fmt.Sprintf("Sorry, an error occurred: %v", err),
			ContextUsed: nil,
			SessionID:   opts.SessionID,
			Timestamp:   now,
		}
	}

	if sess != nil {
		sess.turns = append(sess.turns,
			Turn{Role: "user", Content: query, Timestamp: now},
			Turn{Role: "assistant", Content: completion.Text, Timestamp: time.Now()},
		)
		sess.turns = trimTurns(sess.turns, e.opts.MemoryTokenLimit)
	}

	return Response{
		Answer:      completion.Text,
		Model:       e.opts.ModelName,
		ContextUsed: opts.Context,
		SessionID:   opts.SessionID,
		Timestamp:   now,
		Tokens:      completion.Usage,
	}
}

// buildPrompt concatenates the last maxHistoryTurns history turns
// formatted as User:/Assistant: lines and either a templated or default
// QA block built from context and query. The system prompt is not part
// of this text; Chat sends it in the request's System field.
func (e *Engine) buildPrompt(query string, context []string, history []Turn, qaTemplate string) string {
	var parts []string

	if len(history) > 0 {
		recent := history
		if len(recent) > maxHistoryTurns {
			recent = recent[len(recent)-maxHistoryTurns:]
		}
		for _, turn := range recent {
			if turn.Role == "user" {
				parts = append(parts, "User: "+turn.Content)
			} else {
				parts = append(parts, "Assistant: "+turn.Content)
			}
		}
	}

	if len(context) > 0 {
		contextText := strings.Join(context, "\n\n")
		if qaTemplate != "" {
			replacer := strings.NewReplacer("{context}", contextText, "{query}", query)
			parts = append(parts, replacer.Replace(qaTemplate))
		} else {
			parts = append(parts, fmt.Sprintf("Context:\n%s", contextText))
			parts = append(parts, fmt.Sprintf("\nQuestion: %s\n\nAnswer:", query))
		}
	} else {
		parts = append(parts, fmt.Sprintf("Question: %s\n\nAnswer:", query))
	}

	return strings.Join(parts, "\n\n")
}

// trimTurns drops the oldest turn while the estimated token count
// (total content chars / 4) exceeds limit and at least two turns
// remain.
func trimTurns(turns []Turn, limit int) []Turn {
	for estimatedTokens(turns) > limit && len(turns) > 2 {
		turns = turns[1:]
	}
	return turns
}

func estimatedTokens(history []Turn) int {
	totalChars := 0
	for _, t := range history {
		totalChars += len(t.Content)
	}
	return totalChars / charsPerToken
}

// GetHistory returns the current turns for a session.
func (e *Engine) GetHistory(sessionID string) []Turn {
	e.mapMu.Lock()
	sess, ok := e.sessions[sessionID]
	e.mapMu.Unlock()
	if !ok {
		return nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Turn(nil), sess.turns...)
}

// ClearHistory removes a session's history. Returns true only if a
// session was actually present.
func (e *Engine) ClearHistory(sessionID string) bool {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return false
	}
	delete(e.sessions, sessionID)
	return true
}

const rewriteHistoryTurns = 5

const defaultRewriteTemplate = "Given the conversation so far, rewrite the follow-up question as a standalone " +
	"question that resolves any pronouns or implicit references. Return only the rewritten question.\n\n" +
	"Conversation:\n{history}\n\nFollow-up question: {query}\n\nStandalone question:"

// RewriteQuery resolves pronouns and implicit references in query
// against the last rewriteHistoryTurns turns of history, returning
// query unchanged if there is no history to resolve against.
func (e *Engine) RewriteQuery(ctx context.Context, query string, history []Turn, rewritePromptTemplate string) (string, error) {
	if len(history) == 0 {
		return query, nil
	}

	recent := history
	if len(recent) > rewriteHistoryTurns {
		recent = recent[len(recent)-rewriteHistoryTurns:]
	}

	var lines []string
	for _, turn := range recent {
		if turn.Role == "user" {
			lines = append(lines, "User: "+turn.Content)
		} else {
			lines = append(lines, "Assistant: "+turn.Content)
		}
	}
	historyText := strings.Join(lines, "\n")

	template := rewritePromptTemplate
	if template == "" {
		template = defaultRewriteTemplate
	}
	replacer := strings.NewReplacer("{history}", historyText, "{query}", query)
	prompt := replacer.Replace(template)

	completion, err := e.llmClient.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		e.logger.Warn("query rewrite failed, using original query", zap.Error(err))
		return query, nil
	}

	rewritten := strings.TrimSpace(completion.Text)
	if len(rewritten) <= 5 {
		return query, nil
	}
	return rewritten, nil
}

// ListSessions returns all active session IDs.
func (e *Engine) ListSessions() []string {
	e.mapMu.Lock()
	defer e.mapMu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}
