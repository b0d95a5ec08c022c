package embedclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

func TestEmbedReturnsVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`[[1,2,3],[4,5,6]]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 3 {
		t.Fatalf("vecs = %v", vecs)
	}
}

func TestEmbedReturns413AsPayloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Embed(context.Background(), []string{"a"})
	if err != out.ErrPayloadTooLarge {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestTokenizeHandlesNestedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1,2,3,4]]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	ids, err := c.Tokenize(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("ids = %v, want 4 entries", ids)
	}
}

func TestTokenizeHandlesFlatShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	ids, err := c.Tokenize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want 3 entries", ids)
	}
}

func TestTokenCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1,2]]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	n, err := c.TokenCount(context.Background(), "hi")
	if err != nil {
		t.Fatalf("TokenCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestEmbedEmptyReturnsNil(t *testing.T) {
	c := New("http://unused", http.DefaultClient)
	vecs, err := c.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("Embed(nil) = (%v, %v), want (nil, nil)", vecs, err)
	}
}
