package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"feid-go/internal/model"
	"feid-go/internal/tables"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL+"/api", 5*time.Second, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

const tableJSON = `{
	"columns": [
		{"name": "Id", "sql_name": "id", "type": "integer"},
		{"name": "Time", "sql_name": "time", "type": "time"},
		{"name": "Magnitude", "sql_name": "magnitude", "type": "real", "nullable": true},
		{"name": "Class", "sql_name": "class", "type": "enum", "enum": ["A", "B"]}
	],
	"data": [
		[1, 1682269200, 2.5, "A"],
		[2, 1682272800, null, "B"]
	],
	"changelog": {
		"1": {"magnitude": [{"time": 1682270000, "author": "anna", "old": 2, "new": 2.5}]}
	}
}`

func TestClient_FetchTable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/events" {
			t.Errorf("request = %s %s, want GET /api/events", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("entity"); got != "feid" {
			t.Errorf("entity = %q, want feid", got)
		}
		if got := r.URL.Query().Get("changelog"); got != "true" {
			t.Errorf("changelog = %q, want true", got)
		}
		io.WriteString(w, tableJSON)
	})

	data, err := c.FetchTable(context.Background(), "feid", true)
	if err != nil {
		t.Fatalf("FetchTable() error = %v", err)
	}

	if len(data.Columns) != 4 || data.Columns[3].Enum[1] != "B" {
		t.Fatalf("Columns = %+v", data.Columns)
	}
	want := []model.Row{
		{int64(1), time.Date(2023, 4, 23, 17, 0, 0, 0, time.UTC), 2.5, "A"},
		{int64(2), time.Date(2023, 4, 23, 18, 0, 0, 0, time.UTC), nil, "B"},
	}
	if !reflect.DeepEqual(data.Rows, want) {
		t.Errorf("Rows = %#v, want %#v", data.Rows, want)
	}

	entries := data.Changelog[1]["magnitude"]
	if len(entries) != 1 {
		t.Fatalf("Changelog[1][magnitude] = %v, want one entry", entries)
	}
	e := entries[0]
	if e.Author != "anna" || e.Old != int64(2) || e.New != 2.5 {
		t.Errorf("changelog entry = %+v", e)
	}
	if !e.Time.Equal(time.Unix(1682270000, 0)) {
		t.Errorf("changelog time = %v", e.Time)
	}
}

func TestClient_FetchTable_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no columns", `{"columns": [], "data": []}`},
		{"short row", `{"columns": [{"sql_name": "id", "type": "integer"}], "data": [[1, 2]]}`},
		{"bad time", `{"columns": [{"sql_name": "time", "type": "time"}], "data": [[true]]}`},
		{"not json", `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})
			if _, err := c.FetchTable(context.Background(), "feid", false); err == nil {
				t.Error("FetchTable() expected error")
			}
		})
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"message field", http.StatusBadRequest, `{"message": "row 7 is locked"}`, "row 7 is locked"},
		{"error field", http.StatusForbidden, `{"error": "not an author"}`, "not an author"},
		{"raw body", http.StatusInternalServerError, "database is down\n", "database is down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			err := c.RemoveSample(context.Background(), 3)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("RemoveSample() error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v, want status %d message %q", apiErr, tt.status, tt.wantMsg)
			}
		})
	}
}

func TestClient_Samples(t *testing.T) {
	var gotPaths []string
	var gotBodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding request body: %v", err)
			}
			gotBodies = append(gotBodies, body)
		}
		switch r.URL.Path {
		case "/api/events/samples":
			io.WriteString(w, `{"samples": [{"id": 4, "name": "X-flares", "authors": ["anna"], "public": true,
				"filters": [{"column": "magnitude", "operation": ">=", "value": "3"}],
				"whitelist": [10], "blacklist": [20], "includes": []}]}`)
		case "/api/events/samples/create":
			io.WriteString(w, `{"id": 5, "name": "new"}`)
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	samples, err := c.FetchSamples(ctx)
	if err != nil {
		t.Fatalf("FetchSamples() error = %v", err)
	}
	if len(samples) != 1 || samples[0].ID != 4 || samples[0].Filters[0].Operator != ">=" {
		t.Errorf("FetchSamples() = %+v", samples)
	}

	created, err := c.CreateSample(ctx, "new")
	if err != nil {
		t.Fatalf("CreateSample() error = %v", err)
	}
	if created.ID != 5 {
		t.Errorf("CreateSample() id = %d, want 5", created.ID)
	}

	if err := c.UpdateSample(ctx, model.Sample{ID: 5, Name: "renamed"}); err != nil {
		t.Fatalf("UpdateSample() error = %v", err)
	}
	if err := c.RemoveSample(ctx, 5); err != nil {
		t.Fatalf("RemoveSample() error = %v", err)
	}

	wantPaths := []string{
		"GET /api/events/samples",
		"POST /api/events/samples/create",
		"POST /api/events/samples/update",
		"POST /api/events/samples/remove",
	}
	if !reflect.DeepEqual(gotPaths, wantPaths) {
		t.Errorf("requests = %v, want %v", gotPaths, wantPaths)
	}
	if gotBodies[0]["name"] != "new" || gotBodies[1]["name"] != "renamed" || gotBodies[2]["id"] != float64(5) {
		t.Errorf("request bodies = %v", gotBodies)
	}
}

func TestClient_CommitChanges(t *testing.T) {
	var got struct {
		Entities map[string]struct {
			Changes []map[string]any `json:"changes"`
			Created [][]any          `json:"created"`
			Deleted []int64          `json:"deleted"`
		} `json:"entities"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/events/changes" {
			t.Errorf("request = %s %s, want POST /api/events/changes", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
	})

	t0 := time.Date(2023, 4, 23, 17, 0, 0, 0, time.UTC)
	err := c.CommitChanges(context.Background(), map[string]tables.Pending{
		tables.FEID: {
			Created: []model.Row{{int64(-5), t0, nil}},
			Changes: []model.Change{{ID: 7, Column: "time", Value: t0}},
		},
		tables.SourcesCH: {Deleted: []int64{3}},
	})
	if err != nil {
		t.Fatalf("CommitChanges() error = %v", err)
	}

	feid := got.Entities[tables.FEID]
	if len(feid.Created) != 1 || feid.Created[0][1] != float64(t0.Unix()) || feid.Created[0][2] != nil {
		t.Errorf("created = %v, want time as epoch seconds", feid.Created)
	}
	if len(feid.Changes) != 1 || feid.Changes[0]["value"] != float64(t0.Unix()) || feid.Changes[0]["column"] != "time" {
		t.Errorf("changes = %v", feid.Changes)
	}
	if feid.Deleted == nil || len(feid.Deleted) != 0 {
		t.Errorf("deleted = %v, want empty list", feid.Deleted)
	}
	if ch := got.Entities[tables.SourcesCH]; !reflect.DeepEqual(ch.Deleted, []int64{3}) {
		t.Errorf("%s deleted = %v, want [3]", tables.SourcesCH, ch.Deleted)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"ftp://host/api", "://bad", "localhost:8080"} {
		if _, err := NewClient(raw, time.Second, nil); err == nil {
			t.Errorf("NewClient(%q) expected error", raw)
		}
	}
}
