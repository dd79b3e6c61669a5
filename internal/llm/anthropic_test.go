package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate_RequiresAPIKey(t *testing.T) {
	err := Config{}.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewAnthropicClient_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewAnthropicClient_AppliesDefaults(t *testing.T) {
	client, err := NewAnthropicClient(Config{APIKey: "sk-ant-test"})
	assert.NoError(t, err)
	assert.Equal(t, defaultModel, client.model)
	assert.Equal(t, defaultMaxTokens, client.maxTokens)
}

func TestFirstNonZero(t *testing.T) {
	assert.Equal(t, 7, firstNonZero(0, 7, 9))
	assert.Equal(t, 0, firstNonZero(0, 0))
}

func TestAdaptMessages_RoundTripsRoles(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	params := adaptMessages(msgs)
	assert.Len(t, params, 2)
}
