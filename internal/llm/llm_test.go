package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCompletion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"message content", `{"choices":[{"message":{"content":"hello"}}]}`, "hello"},
		{"reasoning content", `{"choices":[{"message":{"content":"","reasoning_content":"thought"}}]}`, "thought"},
		{"legacy text", `{"choices":[{"text":"legacy"}]}`, "legacy"},
		{"generated_text object", `{"generated_text":"gen"}`, "gen"},
		{"generated_text array", `[{"generated_text":"gen"}]`, "gen"},
		{"completion", `{"completion":"done"}`, "done"},
		{"content", `{"content":"plain"}`, "plain"},
		{"content wins over reasoning", `{"choices":[{"message":{"content":"a","reasoning_content":"b"}}]}`, "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCompletion([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCompletion_Errors(t *testing.T) {
	_, err := NormalizeCompletion([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	_, err = NormalizeCompletion([]byte(`[]`))
	assert.ErrorIs(t, err, ErrEmptyCompletion)

	_, err = NormalizeCompletion([]byte(`not json`))
	assert.Error(t, err)
}

func TestOpenAICompleter(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"memories\":[]}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(srv.URL, "k", "m", 0)
	out, err := c.Complete(context.Background(), Prompt{System: "sys", User: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"memories":[]}`, out)

	assert.Equal(t, "m", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAICompleter_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOpenAICompleter(srv.URL, "", "", 0).Complete(context.Background(), Prompt{User: "hi"})
	assert.ErrorContains(t, err, "502")
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), Options{})
	assert.NoError(t, err)
	assert.Nil(t, c)

	_, err = New(context.Background(), Options{Provider: "gemini"})
	assert.Error(t, err)

	_, err = New(context.Background(), Options{Provider: "nope"})
	assert.Error(t, err)
}
