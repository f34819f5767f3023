package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/devdash/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func testState() *model.DashboardState {
	return &model.DashboardState{
		Categories: []*model.Category{
			{ID: "c1", Name: "Coding", Icon: "fas fa-code", Color: "red", Items: []*model.Item{
				{ID: "i1", Title: "Go", URL: "https://go.dev", Type: model.ItemTypeWebsite, AddedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			}},
		},
		LastUpdated: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func encodeFile(t *testing.T, state *model.DashboardState) string {
	t.Helper()
	data, err := json.Marshal(state)
	if err != nil {
		t.Fatal(err)
	}
	enc := base64.StdEncoding.EncodeToString(data)
	// contents APIは60文字ごとに改行を入れる
	var out bytes.Buffer
	for i := 0; i < len(enc); i += 60 {
		end := i + 60
		if end > len(enc) {
			end = len(enc)
		}
		out.WriteString(enc[i:end])
		out.WriteString("\n")
	}
	return out.String()
}

func TestClient_Load_NoTokenSkipsNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{Owner: "o", Repo: "r", APIURL: server.URL})

	state, err := c.Load(context.Background())
	if err != nil || state != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", state, err)
	}
	if err := c.Save(context.Background(), testState()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Save() err = %v, want ErrNotConfigured", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("network calls = %d, want 0", calls)
	}
}

func TestClient_Load_DecodesContent(t *testing.T) {
	want := testState()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/dash/contents/data/dashboard.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "token secret" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("ref = %q, want main", r.URL.Query().Get("ref"))
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sha":      "abc",
			"content":  encodeFile(t, want),
			"encoding": "base64",
		})
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{
		Owner: "octo", Repo: "dash", Path: "data/dashboard.json", Token: "secret", APIURL: server.URL,
	})

	got, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || len(got.Categories) != 1 || got.Categories[0].Items[0].Title != "Go" {
		t.Errorf("Load() = %+v", got)
	}
}

func TestClient_Load_FailuresDegradeToAbsent(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Bad credentials"}`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed content", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"sha":     "abc",
				"content": base64.StdEncoding.EncodeToString([]byte("{not json")),
			})
		}},
		{"bad base64", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"sha": "abc", "content": "!!!"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			var buf bytes.Buffer
			c := NewClient(server.Client(), newTestLogger(&buf), Config{
				Owner: "o", Repo: "r", Token: "t", APIURL: server.URL,
			})

			state, err := c.Load(context.Background())
			if err != nil {
				t.Errorf("Load() error = %v, want nil", err)
			}
			if state != nil {
				t.Errorf("Load() = %+v, want nil", state)
			}
		})
	}
}

func TestClient_Load_NetworkErrorDegradesToAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewClient(&http.Client{Timeout: time.Second}, newTestLogger(&buf), Config{
		Owner: "o", Repo: "r", Token: "t", APIURL: url,
	})

	state, err := c.Load(context.Background())
	if err != nil || state != nil {
		t.Errorf("Load() = %v, %v; want nil, nil", state, err)
	}
}

func TestClient_Save_UpdatesWithExistingSHA(t *testing.T) {
	var put putRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]string{"sha": "old-sha", "content": ""})
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&put); err != nil {
				t.Errorf("decode PUT body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{
		Owner: "o", Repo: "r", Branch: "data", Token: "t", APIURL: server.URL,
	})
	c.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	if err := c.Save(context.Background(), testState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if put.SHA != "old-sha" {
		t.Errorf("sha = %q, want old-sha", put.SHA)
	}
	if put.Branch != "data" {
		t.Errorf("branch = %q, want data", put.Branch)
	}
	if put.Message != "Update dashboard data - 2024-06-01T10:00:00Z" {
		t.Errorf("message = %q", put.Message)
	}
	raw, err := base64.StdEncoding.DecodeString(put.Content)
	if err != nil {
		t.Fatalf("content is not base64: %v", err)
	}
	if _, err := model.DecodeDashboardState(raw); err != nil {
		t.Errorf("content is not a dashboard state: %v", err)
	}
}

func TestClient_Save_MissingFileCreates(t *testing.T) {
	var put putRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&put)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{Owner: "o", Repo: "r", Token: "t", APIURL: server.URL})

	if err := c.Save(context.Background(), testState()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if put.SHA != "" {
		t.Errorf("sha = %q, want empty for create", put.SHA)
	}
}

func TestClient_Save_RejectedWriteIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"sha mismatch"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{Owner: "o", Repo: "r", Token: "t", APIURL: server.URL})

	err := c.Save(context.Background(), testState())
	if err == nil {
		t.Fatal("Save() should fail on 409")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("sha mismatch")) {
		t.Errorf("error = %v, should include API message", err)
	}
}

func TestClient_TestConnection_CreatesMissingFile(t *testing.T) {
	var putCalled bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		putCalled = true
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{Owner: "o", Repo: "r", Token: "t", APIURL: server.URL})

	got, err := c.TestConnection(context.Background(), testState())
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if got != nil {
		t.Errorf("TestConnection() = %+v, want nil for newly created file", got)
	}
	if !putCalled {
		t.Error("expected file to be created")
	}
}
