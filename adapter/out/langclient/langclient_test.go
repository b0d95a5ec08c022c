package langclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectReturnsTopPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"predictions":[{"language":"es","confidence":0.93}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	lang, confidence, err := c.Detect(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if lang != "es" || confidence != 0.93 {
		t.Errorf("Detect() = (%q, %v), want (es, 0.93)", lang, confidence)
	}
}

func TestDetectEmptyPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	lang, confidence, err := c.Detect(context.Background(), "??")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if lang != "" || confidence != 0 {
		t.Errorf("Detect() = (%q, %v), want zero values", lang, confidence)
	}
}
