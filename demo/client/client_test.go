package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"scenecast/types"
)

func TestCommandsSendJSON(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = nil
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"accepted":true,"state":{"asset_id":"a1","position_seconds":30,"status":"seeking"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	state, err := c.Seek(context.Background(), 30)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/session/seek" || gotBody["seconds"] != 30.0 {
		t.Fatalf("request = %s %v", gotPath, gotBody)
	}
	if state.Status != types.PlaybackSeeking || state.PositionSeconds != 30 {
		t.Fatalf("state = %+v", state)
	}

	if _, err := c.ReportEvent(context.Background(), types.EventSeeked); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/api/session/event" || gotBody["event"] != "seeked" {
		t.Fatalf("request = %s %v", gotPath, gotBody)
	}
}

func TestAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"no meaningful playback position"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Generate(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v; want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "no meaningful playback position" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestTimelineAndNearest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/assets/a1/timeline", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"asset_id":"a1","timeline":[{"timestamp_seconds":5},{"timestamp_seconds":20}]}`))
	})
	mux.HandleFunc("/api/assets/a1/timeline/nearest", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") != "22.000" {
			http.Error(w, `{"error":"bad t"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"timestamp_seconds":20,"image_ref":"/api/images/x.png"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL)
	entries, err := c.Timeline(context.Background(), "a1")
	if err != nil || len(entries) != 2 || entries[1].TimestampSeconds != 20 {
		t.Fatalf("timeline = %+v, %v", entries, err)
	}

	e, err := c.Nearest(context.Background(), "a1", 22)
	if err != nil || e.ImageRef != "/api/images/x.png" {
		t.Fatalf("nearest = %+v, %v", e, err)
	}
}
