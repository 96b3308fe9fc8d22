package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/curanote/curanote/internal/resilience"
)

func TestPing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: got %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPingDownIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping: expected error for 503")
	}
	if !resilience.IsTransient(err) {
		t.Errorf("Ping: error %v not classified transient", err)
	}
}

func TestDeliverCreateEntry(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotKey, gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("secret"))
	err := c.Deliver(context.Background(), Action{
		Type:           ActionCreateEntry,
		Payload:        json.RawMessage(`{"residentId":"r1"}`),
		IdempotencyKey: "abc-123",
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/api/v1/entries" {
		t.Errorf("request: got %s %s, want POST /api/v1/entries", gotMethod, gotPath)
	}
	if gotKey != "abc-123" {
		t.Errorf("Idempotency-Key: got %q, want %q", gotKey, "abc-123")
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization: got %q", gotAuth)
	}
	if string(gotBody) != `{"residentId":"r1"}` {
		t.Errorf("body: got %s", gotBody)
	}
}

func TestDeliverEntityEndpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action     ActionType
		wantMethod string
		wantPath   string
	}{
		{ActionUpdateEntry, http.MethodPut, "/api/v1/entries/e7"},
		{ActionApproveEntry, http.MethodPost, "/api/v1/entries/e7/approve"},
		{ActionRejectEntry, http.MethodPost, "/api/v1/entries/e7/reject"},
		{ActionCreateResident, http.MethodPost, "/api/v1/residents"},
		{ActionUpdateResident, http.MethodPut, "/api/v1/residents/e7"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			t.Parallel()

			var gotMethod, gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			c := New(srv.URL)
			if err := c.Deliver(context.Background(), Action{Type: tt.action, EntityID: "e7"}); err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			if gotMethod != tt.wantMethod || gotPath != tt.wantPath {
				t.Errorf("request: got %s %s, want %s %s", gotMethod, gotPath, tt.wantMethod, tt.wantPath)
			}
		})
	}
}

func TestDeliverStatusClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"conflict", http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := New(srv.URL)
			err := c.Deliver(context.Background(), Action{Type: ActionCreateEntry})
			if err == nil {
				t.Fatalf("Deliver: expected error for status %d", tt.status)
			}
			if got := resilience.IsTransient(err); got != tt.wantTransient {
				t.Errorf("IsTransient(%v) = %v, want %v", err, got, tt.wantTransient)
			}
		})
	}
}

func TestDeliverUnknownActionType(t *testing.T) {
	t.Parallel()

	c := New("http://localhost:0")
	err := c.Deliver(context.Background(), Action{Type: "Frobnicate"})
	if !errors.Is(err, ErrUnknownActionType) {
		t.Fatalf("Deliver: got %v, want ErrUnknownActionType", err)
	}
}
