package resolution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeminiClassifier(t *testing.T) {
	// the key is used for authentication only; constructing the client
	// performs no request
	g, err := NewGeminiClassifier(context.Background(), "test-key", "")
	require.NoError(t, err)
	assert.Equal(t, GeminiModelName, g.model)

	g, err = NewGeminiClassifier(context.Background(), "test-key", "gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", g.model)
}

func TestStripModelFences(t *testing.T) {
	t.Run("raw json passes through", func(t *testing.T) {
		assert.Equal(t, `[{"a":1}]`, stripModelFences(`[{"a":1}]`))
	})

	t.Run("code fences are removed", func(t *testing.T) {
		raw := "```json\n[{\"a\":1}]\n```"
		assert.Equal(t, `[{"a":1}]`, stripModelFences(raw))
	})

	t.Run("surrounding prose is trimmed to the array", func(t *testing.T) {
		raw := "Here you go:\n[{\"a\":1}]\nHope that helps."
		assert.Equal(t, `[{"a":1}]`, stripModelFences(raw))
	})
}

func TestBuildClassifyPrompt(t *testing.T) {
	prompt := buildClassifyPrompt([]string{"STARBUCKS #221", "AMZN MKTP"})
	assert.Contains(t, prompt, "1. STARBUCKS #221")
	assert.Contains(t, prompt, "2. AMZN MKTP")
	assert.Contains(t, prompt, "vendor_name")
}
