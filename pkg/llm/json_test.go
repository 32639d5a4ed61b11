package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced with language", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type result struct {
		Answer string `json:"answer"`
	}

	t.Run("clean json", func(t *testing.T) {
		var out result
		require.NoError(t, decodeJSON(`{"answer": "ok"}`, &out))
		assert.Equal(t, "ok", out.Answer)
	})

	t.Run("fenced json", func(t *testing.T) {
		var out result
		require.NoError(t, decodeJSON("```json\n{\"answer\": \"ok\"}\n```", &out))
		assert.Equal(t, "ok", out.Answer)
	})

	t.Run("repairable json", func(t *testing.T) {
		var out result
		// Trailing comma and single quotes — mechanically repairable.
		require.NoError(t, decodeJSON(`{'answer': 'ok',}`, &out))
		assert.Equal(t, "ok", out.Answer)
	})

	t.Run("prose fails", func(t *testing.T) {
		var out result
		assert.Error(t, decodeJSON("I am unable to answer that question.", &out))
	})
}
