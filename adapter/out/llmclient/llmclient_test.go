package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

func TestChatCompleteReturnsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"SENSITIVE"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", srv.Client())
	seed := 42
	content, err := c.ChatComplete(context.Background(), out.ChatCompletionRequest{
		Model:    "test-model",
		Messages: []out.ChatMessage{{Role: "system", Content: "sys"}, {Role: "user", Content: "usr"}},
		Seed:     &seed,
	})
	if err != nil {
		t.Fatalf("ChatComplete: %v", err)
	}
	if content != "SENSITIVE" {
		t.Errorf("content = %q, want SENSITIVE", content)
	}
}

func TestChatCompleteNoChoicesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", srv.Client())
	_, err := c.ChatComplete(context.Background(), out.ChatCompletionRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestTokenCountFlatShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tokenize" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[1,2,3,4,5]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", srv.Client())
	n, err := c.TokenCount(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if n != 5 {
		t.Errorf("n = %d, want 5", n)
	}
}

func TestTokenCountObjectShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_ids":[1,2,3]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1", srv.Client())
	n, err := c.TokenCount(context.Background(), "hi")
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
}

func TestTokenCountEmptyText(t *testing.T) {
	c := New("http://unused/v1", http.DefaultClient)
	n, err := c.TokenCount(context.Background(), "")
	if err != nil || n != 0 {
		t.Fatalf("TokenCount(\"\") = (%d, %v), want (0, nil)", n, err)
	}
}
