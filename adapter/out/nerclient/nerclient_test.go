package nerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEntitiesBareList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"start":0,"end":4,"label":"person"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	spans, err := c.Entities(context.Background(), "John said hi", "en")
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(spans) != 1 || spans[0].Label != "PERSON" {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestEntitiesWrappedUnderEntitiesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entities":[{"start_char":2,"end_char":6,"entity":"org"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	spans, err := c.Entities(context.Background(), "at Acme today", "en")
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(spans) != 1 || spans[0].Label != "ORG" || spans[0].Start != 2 || spans[0].End != 6 {
		t.Fatalf("spans = %+v", spans)
	}
}

func TestEntitiesEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	spans, err := c.Entities(context.Background(), "nothing here", "en")
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(spans) != 0 {
		t.Fatalf("spans = %+v, want empty", spans)
	}
}

func TestEntitiesSkipsIncompleteRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"start":0},{"start":0,"end":3,"label":"loc"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	spans, err := c.Entities(context.Background(), "NYC is nice", "en")
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(spans) != 1 || spans[0].Label != "LOC" {
		t.Fatalf("spans = %+v", spans)
	}
}
