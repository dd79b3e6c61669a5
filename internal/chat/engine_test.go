package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragmcp/internal/llm"
)

type stubLLM struct {
	lastPrompt string
	lastSystem string
	text       string
	err        error
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (llm.Completion, error) {
	if len(req.Messages) > 0 {
		s.lastPrompt = req.Messages[0].Content
	}
	s.lastSystem = req.System
	if s.err != nil {
		return llm.Completion{}, s.err
	}
	return llm.Completion{Text: s.text, Usage: llm.Usage{TotalTokens: 10}}, nil
}

func (s *stubLLM) Close() error { return nil }

func TestChat_WithoutSessionDoesNotPersistHistory(t *testing.T) {
	stub := &stubLLM{text: "the answer"}
	engine := NewEngine(stub, Options{SystemPrompt: "be helpful"}, nil)

	resp := engine.Chat(context.Background(), "what is Go?", ChatOptions{})
	assert.Equal(t, "the answer", resp.Answer)
	assert.Empty(t, engine.ListSessions())
	assert.Equal(t, "be helpful", stub.lastSystem)
}

func TestChat_WithSessionPersistsAndOrdersTurns(t *testing.T) {
	stub := &stubLLM{text: "answer one"}
	engine := NewEngine(stub, Options{}, nil)

	resp := engine.Chat(context.Background(), "first question", ChatOptions{SessionID: "s1"})
	require.Equal(t, "answer one", resp.Answer)

	history := engine.GetHistory("s1")
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "first question", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "answer one", history[1].Content)
}

func TestChat_SecondTurnIncludesPriorHistoryInPrompt(t *testing.T) {
	stub := &stubLLM{text: "answer two"}
	engine := NewEngine(stub, Options{}, nil)

	engine.Chat(context.Background(), "my name is Ada", ChatOptions{SessionID: "s1"})
	engine.Chat(context.Background(), "what is my name?", ChatOptions{SessionID: "s1"})

	assert.Contains(t, stub.lastPrompt, "my name is Ada")
	assert.Contains(t, stub.lastPrompt, "what is my name?")
}

func TestChat_ContextUsesQATemplate(t *testing.T) {
	stub := &stubLLM{text: "answer"}
	engine := NewEngine(stub, Options{}, nil)

	engine.Chat(context.Background(), "query here", ChatOptions{
		Context:          []string{"passage one"},
		QAPromptTemplate: "Use this: {context}\nTo answer: {query}",
	})

	assert.Contains(t, stub.lastPrompt, "Use this: passage one")
	assert.Contains(t, stub.lastPrompt, "To answer: query here")
}

func TestChat_LLMErrorReturnsFallbackAnswerWithoutPanicking(t *testing.T) {
	stub := &stubLLM{err: assert.AnError}
	engine := NewEngine(stub, Options{}, nil)

	resp := engine.Chat(context.Background(), "hello", ChatOptions{SessionID: "s1"})
	assert.Contains(t, resp.Answer, "error occurred")
	assert.Empty(t, engine.GetHistory("s1"))
}

func TestTrimHistory_DropsOldestTurnsOverTokenLimit(t *testing.T) {
	stub := &stubLLM{text: strings.Repeat("x", 20)}
	engine := NewEngine(stub, Options{MemoryTokenLimit: 5}, nil)

	for i := 0; i < 5; i++ {
		engine.Chat(context.Background(), "question", ChatOptions{SessionID: "s1"})
	}

	history := engine.GetHistory("s1")
	assert.Len(t, history, 2)
}

func TestClearHistory_RemovesSessionAndReportsPresence(t *testing.T) {
	stub := &stubLLM{text: "answer"}
	engine := NewEngine(stub, Options{}, nil)
	engine.Chat(context.Background(), "q", ChatOptions{SessionID: "s1"})

	assert.True(t, engine.ClearHistory("s1"))
	assert.False(t, engine.ClearHistory("s1"))
	assert.Empty(t, engine.GetHistory("s1"))
}

func TestListSessions_ReturnsAllActiveSessionIDs(t *testing.T) {
	stub := &stubLLM{text: "answer"}
	engine := NewEngine(stub, Options{}, nil)
	engine.Chat(context.Background(), "q", ChatOptions{SessionID: "s1"})
	engine.Chat(context.Background(), "q", ChatOptions{SessionID: "s2"})

	sessions := engine.ListSessions()
	assert.ElementsMatch(t, []string{"s1", "s2"}, sessions)
}

func TestRewriteQuery_NoHistoryReturnsQueryUnchanged(t *testing.T) {
	stub := &stubLLM{text: "should not be used"}
	engine := NewEngine(stub, Options{}, nil)

	rewritten, err := engine.RewriteQuery(context.Background(), "what about it?", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "what about it?", rewritten)
}

func TestRewriteQuery_UsesHistoryToProduceStandaloneQuery(t *testing.T) {
	stub := &stubLLM{text: "What is the capital of France?"}
	engine := NewEngine(stub, Options{}, nil)
	history := []Turn{
		{Role: "user", Content: "Tell me about France"},
		{Role: "assistant", Content: "France is a country in Europe"},
	}

	rewritten, err := engine.RewriteQuery(context.Background(), "what is its capital?", history, "")
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of France?", rewritten)
	assert.Contains(t, stub.lastPrompt, "Tell me about France")
}

func TestRewriteQuery_LLMErrorFallsBackToOriginalQuery(t *testing.T) {
	stub := &stubLLM{err: assert.AnError}
	engine := NewEngine(stub, Options{}, nil)
	history := []Turn{{Role: "user", Content: "hi"}}

	rewritten, err := engine.RewriteQuery(context.Background(), "original query", history, "")
	require.NoError(t, err)
	assert.Equal(t, "original query", rewritten)
}
