package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chat"
	"ragchat/internal/domain"
)

func streamOf(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			fmt.Fprintln(w, l)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func TestComplete_StreamsPartialsInOrder(t *testing.T) {
	var body struct {
		Model    string    `json:"model"`
		Messages []message `json:"messages"`
		Stream   bool      `json:"stream"`
	}
	stream := streamOf(
		`{"message":{"role":"assistant","content":"The library "},"done":false}`,
		`{"message":{"role":"assistant","content":"opens at 8."},"done":false}`,
		`{"message":{"role":"assistant","content":""},"done":true}`,
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		stream(w, r)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Model: "tiny"})
	var partials []string
	answer, err := c.Complete(context.Background(), chat.Request{
		System:  "be brief",
		History: []domain.Message{{Role: domain.RoleUser, Content: "hi"}, {Role: domain.RoleAssistant, Content: "hello"}},
		Prompt:  "What are library hours?",
	}, func(s string) { partials = append(partials, s) })
	require.NoError(t, err)
	assert.Equal(t, "The library opens at 8.", answer)
	assert.Equal(t, []string{"The library ", "opens at 8."}, partials)

	assert.Equal(t, "tiny", body.Model)
	assert.True(t, body.Stream)
	assert.Equal(t, []message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "What are library hours?"},
	}, body.Messages)
}

func TestComplete_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"truncated": streamOf(`{"message":{"content":"par"},"done":false}`),
		"error chunk": streamOf(
			`{"message":{"content":"par"},"done":false}`,
			`{"error":"model crashed"}`,
		),
		"status": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			var partials []string
			_, err := New(Config{BaseURL: srv.URL}).Complete(context.Background(), chat.Request{Prompt: "q"},
				func(s string) { partials = append(partials, s) })
			require.ErrorIs(t, err, domain.ErrChatCompletion)
			if name != "status" {
				assert.Equal(t, []string{"par"}, partials)
			}
		})
	}
}
