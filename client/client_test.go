package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
	"github.com/marovole/HearthBulter/pkg/logger"
)

func init() {
	logger.InitLogger("test")
}

func TestLoginAndGetFlags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/login":
			json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-123"})
		case "/v1/dualwrite/config":
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"flags": v1.Flags{EnableDualWrite: true},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHearthClient(srv.URL, "")
	defer c.Close()

	if err := c.Login("admin", "admin123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	flags, err := c.GetFlags(context.Background())
	if err != nil {
		t.Fatalf("get flags failed: %v", err)
	}
	if !flags.EnableDualWrite || flags.EnableSupabasePrimary {
		t.Errorf("unexpected flags: %+v", flags)
	}
}

func TestToggleSendsPatch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PATCH" || r.URL.Path != "/v1/dualwrite/toggle" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"flags": v1.Flags{EnableDualWrite: true, EnableSupabasePrimary: true},
		})
	}))
	defer srv.Close()

	c := NewHearthClient(srv.URL, "tok")
	defer c.Close()

	on := true
	flags, err := c.Toggle(context.Background(), &on, "supabase")
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !flags.EnableSupabasePrimary {
		t.Errorf("unexpected flags: %+v", flags)
	}
	if got["dual_write"] != true || got["primary"] != "supabase" {
		t.Errorf("unexpected patch body: %v", got)
	}
}

func TestWatchDiffs_ReceivesEventsAndTracksLastID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/diffs/stream" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		for i := 1; i <= 3; i++ {
			ev := v1.DiffEvent{ID: int64(i), APIEndpoint: "budget.recordSpending", Severity: "warning"}
			raw, _ := json.Marshal(ev)
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", raw)
		}
		// Duplicate of an already delivered id must be discarded.
		raw, _ := json.Marshal(v1.DiffEvent{ID: 2, APIEndpoint: "budget.recordSpending"})
		fmt.Fprintf(w, "event: diff\ndata: %s\n\n", raw)
		flusher.Flush()

		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewHearthClient(srv.URL, "tok")
	received := make(chan v1.DiffEvent, 8)
	c.WatchDiffs("", func(ev v1.DiffEvent) { received <- ev }, nil)
	defer c.Close()

	var ids []int64
	deadline := time.After(2 * time.Second)
	for len(ids) < 3 {
		select {
		case ev := <-received:
			ids = append(ids, ev.ID)
		case <-deadline:
			t.Fatalf("timed out, got ids %v", ids)
		}
	}

	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("unexpected id order: %v", ids)
		}
	}

	select {
	case ev := <-received:
		t.Errorf("duplicate event %d delivered", ev.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchDiffs_ResetCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: reset\ndata: last_id_too_old\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewHearthClient(srv.URL, "tok")
	defer c.Close()

	resets := make(chan struct{}, 1)
	c.WatchDiffs("", nil, func() { resets <- struct{}{} })

	select {
	case <-resets:
	case <-time.After(2 * time.Second):
		t.Fatal("reset callback never fired")
	}
}
