package animechan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRandom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/quotes/random" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"content":"People's lives don't end when they die.","character":{"id":1,"name":"Itachi Uchiha"},"anime":{"id":2,"name":"Naruto"}}}`))
	}))
	defer srv.Close()

	q, err := NewClient(srv.URL+"/api/v1/", time.Second).Random(context.Background())
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if q.Content != "People's lives don't end when they die." || q.Character != "Itachi Uchiha" || q.Anime != "Naruto" {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestRandom_MissingNames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"content":"  Believe it!  "}}`))
	}))
	defer srv.Close()

	q, err := NewClient(srv.URL, time.Second).Random(context.Background())
	if err != nil {
		t.Fatalf("Random: %v", err)
	}
	if q.Content != "Believe it!" || q.Character != "Unknown" || q.Anime != "Unknown" {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestRandom_Errors(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer empty.Close()
	if _, err := NewClient(empty.URL, time.Second).Random(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	limited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer limited.Close()
	if _, err := NewClient(limited.URL, time.Second).Random(context.Background()); err == nil {
		t.Fatalf("expected error on 429")
	}

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer garbage.Close()
	if _, err := NewClient(garbage.URL, time.Second).Random(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewClient_DefaultURL(t *testing.T) {
	if got := NewClient("", time.Second).client.BaseURL; got != DefaultURL {
		t.Fatalf("BaseURL = %q", got)
	}
}
